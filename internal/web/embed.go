package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"

	"github.com/google/uuid"
)

//go:embed templates
var TemplatesFS embed.FS

//go:embed static
var StaticFS embed.FS

const baseLayout = "templates/layouts/base.html"

// Templates maps a page file name to its own template set. Each set holds
// the base layout plus one page, so block names never clash between pages.
type Templates map[string]*template.Template

var funcs = template.FuncMap{
	// idString renders an optional foreign key as a select value.
	"idString": func(id *uuid.UUID) string {
		if id == nil {
			return ""
		}
		return id.String()
	},
}

// LoadTemplates parses all pages from the embedded filesystem.
func LoadTemplates() (Templates, error) {
	pages, err := fs.Glob(TemplatesFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}

	templates := make(Templates, len(pages))
	for _, page := range pages {
		name := path.Base(page)
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(TemplatesFS, baseLayout, page)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		templates[name] = tmpl
	}

	return templates, nil
}

// Render executes the base layout with the named page's blocks.
func (t Templates) Render(w io.Writer, name string, data interface{}) error {
	tmpl, ok := t[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

// GetStaticFS returns the static file system for serving static files
func GetStaticFS() (fs.FS, error) {
	return fs.Sub(StaticFS, "static")
}
