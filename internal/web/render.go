// Package web renders the server-side HTML views and carries flash messages
// across redirects.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/ayush/course-assistant/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

const flashCookie = "flash"

var pageNames = []string{
	"index", "signup", "login", "profile", "dashboard",
	"semester", "edit_course", "history", "not_found", "error",
}

// Page is the value every template executes against.
type Page struct {
	Flash         string
	Authenticated bool
	Data          any
}

// Renderer executes the embedded page templates inside the shared layout.
type Renderer struct {
	pages         map[string]*template.Template
	authenticated func(*http.Request) bool
	log           zerolog.Logger
}

// NewRenderer parses all templates up front. authenticated decides whether
// the layout shows the signed-in navigation.
func NewRenderer(log zerolog.Logger, authenticated func(*http.Request) bool) (*Renderer, error) {
	funcs := template.FuncMap{
		"semesters": models.Semesters,
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).
			ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages, authenticated: authenticated, log: log}, nil
}

// Render writes the named page with status. Any pending flash message is
// consumed.
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	t, ok := v.pages[name]
	if !ok {
		v.ServerError(w, r, fmt.Errorf("unknown template %q", name))
		return
	}

	page := Page{Flash: popFlash(w, r), Data: data}
	if v.authenticated != nil {
		page.Authenticated = v.authenticated(r)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, page); err != nil {
		v.log.Error().Err(err).Str("template", name).Msg("render failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// RenderFlash renders a page with msg shown in place of any stored flash.
func (v *Renderer) RenderFlash(w http.ResponseWriter, r *http.Request, status int, name, msg string, data any) {
	r.AddCookie(&http.Cookie{Name: flashCookie, Value: url.QueryEscape(msg)})
	v.Render(w, r, status, name, data)
}

// NotFound renders the 404 page.
func (v *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	v.Render(w, r, http.StatusNotFound, "not_found", nil)
}

// ServerError logs err and renders the 500 page.
func (v *Renderer) ServerError(w http.ResponseWriter, r *http.Request, err error) {
	v.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	if t, ok := v.pages["error"]; ok {
		var buf bytes.Buffer
		if t.Execute(&buf, Page{}) == nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = buf.WriteTo(w)
			return
		}
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
