// Package view renders the HTML pages from plain data structs.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Page names.
const (
	PageHome     = "home"
	PageLogin    = "login"
	PageRegister = "register"
	PageSecrets  = "secrets"
	PageSubmit   = "submit"
)

// Base is shared by every page.
type Base struct {
	Viewer string // display name, empty when anonymous
	Flash  string
}

// HomeData backs the landing page.
type HomeData struct {
	Base
}

// AuthForm backs both login and register.
type AuthForm struct {
	Base
	Username     string
	ProviderName string
	ProviderURL  string
}

// SecretsData backs the public board. Secrets are already filtered to non-empty.
type SecretsData struct {
	Base
	Secrets []string
}

// SubmitData backs the submit form; Current is the viewer's stored secret.
type SubmitData struct {
	Base
	Current string
}

// Renderer writes a named page.
type Renderer interface {
	Render(w io.Writer, page string, data any) error
}

// Templates is the html/template backed Renderer.
type Templates struct {
	pages map[string]*template.Template
}

var _ Renderer = (*Templates)(nil)

// New parses the embedded templates once.
func New() (*Templates, error) {
	layout, err := template.ParseFS(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	t := &Templates{pages: map[string]*template.Template{}}
	for _, p := range []string{PageHome, PageLogin, PageRegister, PageSecrets, PageSubmit} {
		c, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := c.ParseFS(templatesFS, "templates/"+p+".html"); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		t.pages[p] = c
	}
	return t, nil
}

// MustNew is New for wiring code that cannot continue without views.
func MustNew() *Templates {
	t, err := New()
	if err != nil {
		panic(err)
	}
	return t
}

// Render executes page into a buffer first so a failing template never
// leaves a half-written response.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tpl, ok := t.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
