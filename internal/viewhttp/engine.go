package viewhttp

import (
	"bytes"
	"html/template"
	"io/fs"
	"net/http"
	"sort"
	"strings"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/store"
)

const layout = "base.html"

// Engine renders pages from a directory of templates: base.html defines the
// "base" layout and each other file defines its "content".
type Engine struct {
	fsys  fs.FS
	pages map[string]*template.Template
}

func NewEngine(fsys fs.FS) *Engine {
	return &Engine{fsys: fsys}
}

// Load parses every page. It is called once before the engine serves.
func (e *Engine) Load() error {
	names, err := fs.Glob(e.fsys, "*.html")
	if err != nil {
		return apperr.Wrap(err, "list templates")
	}
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == layout {
			continue
		}
		t, err := template.ParseFS(e.fsys, layout, name)
		if err != nil {
			return apperr.Wrapf(err, "parse template %s", name)
		}
		pages[strings.TrimSuffix(name, ".html")] = t
	}
	if _, ok := pages["error"]; !ok {
		return apperr.Errorf("templates: error.html is required")
	}
	e.pages = pages
	return nil
}

// Pages lists the loaded page names.
func (e *Engine) Pages() []string {
	out := make([]string, 0, len(e.pages))
	for name := range e.pages {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type pageData struct {
	Title   string
	User    *store.User
	Tours   []store.Tour
	Tour    *store.Tour
	Reviews []store.Review
	Message string
}

// Render executes page into a buffer first so a template error never leaves
// a half-written response.
func (e *Engine) Render(w http.ResponseWriter, status int, page string, data pageData) error {
	t, ok := e.pages[page]
	if !ok {
		return apperr.Errorf("render: unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return apperr.Wrapf(err, "render %s", page)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderError implements errorhttp.Renderer.
func (e *Engine) RenderError(w http.ResponseWriter, r *http.Request, status int, title, msg string) error {
	data := pageData{Title: title, Message: msg}
	if u, ok := userFrom(r); ok {
		data.User = u
	}
	return e.Render(w, status, "error", data)
}
