package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

// public/ and templates/ must exist and have at least one file each to satisfy go:embed
//
//go:embed public templates
var embedded embed.FS

// PublicFS is the default static root, used when no public dir is configured.
func PublicFS() fs.FS {
	return sub("public")
}

// TemplatesFS holds the view templates (*.html).
func TemplatesFS() fs.FS {
	return sub("templates")
}

func sub(dir string) fs.FS {
	s, err := fs.Sub(embedded, dir)
	if err != nil {
		panic(fmt.Errorf("webassets: %s subfs: %w", dir, err))
	}
	return s
}
