package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/maraudr/console/internal/console"
	"github.com/maraudr/console/internal/flow"
	"github.com/maraudr/console/internal/inventory"
	"github.com/maraudr/console/internal/model"
	webembed "github.com/maraudr/console/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"categoryName": model.CategoryName,
		"categories":   model.AllCategories,
		"selectable":   model.SelectableCategories,
		"comma":        func(n int) string { return humanize.Comma(int64(n)) },
		"ago": func(t time.Time) string {
			if t.IsZero() {
				return "unknown date"
			}
			return humanize.Time(t)
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02 15:04")
		},
		"inc": func(n int) int { return n + 1 },
		"dec": func(n int) int {
			if n <= 0 {
				return 0
			}
			return n - 1
		},
		"eqCategory": func(a model.Category, b *model.Category) bool { return b != nil && a == *b },
	}
}

var pages = []string{
	"login.html",
	"dashboard.html",
	"stock.html",
	"scan.html",
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	return parseTemplates(webembed.TemplatesFS())
}

func parseTemplates(tfs fs.FS) (*Templates, error) {
	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title        string
	Email        string
	Associations []model.Association
	Association  model.Association
	Counts       inventory.Counts
	Error        string
	Notice       *flow.Notice
}

// Server holds all dependencies for page handlers.
type Server struct {
	Registry      *console.Registry
	Templates     *Templates
	SecureCookies bool
}

// page builds the base data of an authenticated page and consumes the
// session's pending notice.
func (s *Server) page(r *http.Request, title string) PageData {
	sess := console.FromContext(r.Context())
	st := sess.State.Get()
	a, _ := st.Selected()
	return PageData{
		Title:        title,
		Email:        st.Email,
		Associations: st.Associations,
		Association:  a,
		Counts:       sess.Counts(),
		Notice:       sess.TakeFlash(),
	}
}
