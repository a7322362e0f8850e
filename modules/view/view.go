// Package view renders HTML pages, including the user-safe error page the
// escalator shows in production.
package view

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
)

//go:embed templates/*.html
var embedded embed.FS

// ErrUnknownView is returned when no template has the requested name.
var ErrUnknownView = errors.New("view: unknown template")

// Translate renders a message in a locale.
type Translate func(locale, key string, args ...any) string

// Templates returns the built-in templates.
func Templates() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Source picks the template set: dir when it exists, the built-in set otherwise.
func Source(dir string) fs.FS {
	if dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return os.DirFS(dir)
		}
	}
	return Templates()
}

// Renderer executes named templates. Page templates are "<name>.html" and
// may use the shared "header" and "footer" blocks.
type Renderer struct {
	tmpl  *template.Template
	title string
}

// New parses every *.html file in fsys. A nil translate leaves messages
// untranslated.
func New(fsys fs.FS, title string, translate Translate) (*Renderer, error) {
	if translate == nil {
		translate = func(_ string, key string, args ...any) string {
			if len(args) == 0 {
				return key
			}
			return fmt.Sprintf(key, args...)
		}
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{"t": translate}).ParseFS(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("view: parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, title: title}, nil
}

// Has reports whether the page template exists.
func (r *Renderer) Has(name string) bool {
	return r.tmpl.Lookup(name+".html") != nil
}

// Render writes page name to w. Map data is merged over the defaults
// Title and Locale; other data is exposed as .Data.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	t := r.tmpl.Lookup(name + ".html")
	if t == nil {
		return fmt.Errorf("%w: %s", ErrUnknownView, name)
	}
	vars := map[string]any{"Title": r.title, "Locale": ""}
	switch d := data.(type) {
	case nil:
	case map[string]any:
		for k, v := range d {
			vars[k] = v
		}
	default:
		vars["Data"] = d
	}
	// Render to a buffer so a failing template never leaves half a page.
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return fmt.Errorf("view: render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Page is rendered HTML returned from a controller action.
type Page struct {
	body string
}

func (p Page) Content() string { return p.body }

// Page renders name into a Page.
func (r *Renderer) Page(name string, data any) (Page, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		return Page{}, err
	}
	return Page{body: buf.String()}, nil
}
