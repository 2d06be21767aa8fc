package web

import (
	"net/http"

	"github.com/maraudr/console/internal/console"
	webembed "github.com/maraudr/console/web"
)

// NewRouter creates the web page router with all page routes registered.
func NewRouter(reg *console.Registry, secureCookies bool) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	return newRouter(&Server{Registry: reg, Templates: templates, SecureCookies: secureCookies}), nil
}

func newRouter(s *Server) http.Handler {
	mux := http.NewServeMux()
	cookieAuth := CookieAuthMiddleware(s.Registry)
	page := func(h http.HandlerFunc) http.Handler { return cookieAuth(h) }

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	// Public routes.
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)

	// Authenticated routes.
	mux.Handle("POST /logout", page(s.Logout))
	mux.Handle("POST /association", page(s.AssociationSubmit))

	mux.Handle("GET /{$}", page(s.Dashboard))
	mux.Handle("POST /chart/mode", page(s.ChartModeSubmit))
	mux.Handle("POST /chart/category", page(s.ChartCategorySubmit))
	mux.Handle("POST /chart/items/{id}", page(s.ChartItemToggle))

	mux.Handle("GET /stock", page(s.StockPage))
	mux.Handle("POST /stock", page(s.StockCreateSubmit))
	mux.Handle("GET /stock/export.xlsx", page(s.ExportXLSX))
	mux.Handle("POST /stock/add/open", page(s.AddOpen))
	mux.Handle("POST /stock/add/close", page(s.AddClose))
	mux.Handle("POST /stock/add/mode", page(s.AddModeSubmit))
	mux.Handle("POST /stock/add", page(s.AddSubmit))
	mux.Handle("POST /stock/edit/close", page(s.EditClose))
	mux.Handle("POST /stock/edit", page(s.EditSubmit))
	mux.Handle("POST /stock/items/{id}/edit", page(s.EditOpen))
	mux.Handle("POST /stock/items/{id}/quantity", page(s.QuantitySubmit))
	mux.Handle("POST /stock/items/{id}/delete", page(s.DeleteSubmit))

	mux.Handle("GET /scan", page(s.ScanPage))

	return mux
}
