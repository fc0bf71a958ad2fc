package stage

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/keithlinneman/tours-api/internal/pathutil"
	"github.com/keithlinneman/tours-api/internal/pipeline"
)

// Static serves a regular file from fsys when the request path names one.
// Everything else, directories included, continues down the pipeline.
func Static(fsys fs.FS) pipeline.Stage {
	return pipeline.Stage{
		Name: "static",
		Run: func(w http.ResponseWriter, r *http.Request) pipeline.Outcome {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				return pipeline.Next(r)
			}
			name, ok := resolveFile(r.URL.Path, fsys)
			if !ok {
				return pipeline.Next(r)
			}
			return pipeline.Respond(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if cc := cacheControlForFile(name); cc != "" {
					w.Header().Set("Cache-Control", cc)
				}
				http.ServeFileFS(w, r, fsys, name)
			}))
		},
	}
}

// resolveFile maps a URL path to a regular file within fsys.
func resolveFile(urlPath string, fsys fs.FS) (string, bool) {
	if fsys == nil {
		return "", false
	}
	name, ok := pathutil.FileName(urlPath)
	if !ok || !existsFile(fsys, name) {
		return "", false
	}
	return name, true
}

func existsFile(fsys fs.FS, name string) bool {
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

func cacheControlForFile(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".css", ".js", ".mjs",
		".png", ".jpg", ".jpeg", ".webp", ".gif", ".svg", ".ico",
		".woff", ".woff2", ".ttf", ".eot",
		".map":
		return "public, max-age=86400"
	case ".html", "":
		return "no-cache"
	default:
		return "public, max-age=3600"
	}
}
