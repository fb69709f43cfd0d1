package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/drstein77/storefront/internal/cart"
	"github.com/drstein77/storefront/internal/models"
	"github.com/drstein77/storefront/internal/notify"
)

//go:embed templates/*.html
var templates embed.FS

var pages = []string{"products", "checkout", "register", "login"}

// Page is what every template receives.
type Page struct {
	Title         string
	Session       *models.Session
	Notifications notify.Notifications
	HideAuth      bool
	Body          any
}

type Renderer struct {
	pages map[string]*template.Template
}

func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"next": func(dir string, qty int) int {
			return cart.NextQuantity(cart.Direction(dir), qty)
		},
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.New(name).Funcs(funcs).ParseFS(templates, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes the named page with the given status.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name+".html", page); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
