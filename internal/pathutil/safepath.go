package pathutil

import (
	"io/fs"
	"path"
	"strings"
)

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// FileName maps a request path to an fs.FS name. Roots, directory paths
// (trailing slash), NUL bytes, backslashes and dot segments are refused.
func FileName(urlPath string) (string, bool) {
	if urlPath == "" || urlPath == "/" || strings.HasSuffix(urlPath, "/") {
		return "", false
	}
	if strings.ContainsAny(urlPath, "\x00\\") || HasDotSegments(urlPath) {
		return "", false
	}
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	name := strings.TrimPrefix(path.Clean(urlPath), "/")
	if name == "" || !fs.ValidPath(name) {
		return "", false
	}
	return name, true
}
