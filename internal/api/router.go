package api

import (
	"net/http"

	"github.com/maraudr/console/internal/console"
)

// NewRouter creates the API router with all endpoints registered. Every
// route except login acts on the caller's console session.
func NewRouter(reg *console.Registry) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{Registry: reg}
	itemsHandler := &ItemsHandler{}
	scannerHandler := &ScannerHandler{}

	authMW := AuthMiddleware(reg)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authMW(h))
	}

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	handle("POST /api/auth/logout", authHandler.Logout)
	handle("GET /api/me", authHandler.Me)
	handle("PUT /api/association", authHandler.Select)

	// Stock of the selected association.
	handle("GET /api/stock", itemsHandler.Stock)
	handle("POST /api/stock", itemsHandler.CreateStock)

	handle("GET /api/items", itemsHandler.List)
	handle("POST /api/items", itemsHandler.Create)
	handle("GET /api/items/{id}", itemsHandler.Get)
	handle("PUT /api/items/{id}", itemsHandler.Update)
	handle("DELETE /api/items/{id}", itemsHandler.Delete)
	handle("PUT /api/items/{id}/quantity", itemsHandler.UpdateQuantity)
	handle("GET /api/items/barcode/{barcode}", itemsHandler.ByBarcode)
	handle("POST /api/items/barcode/{barcode}/reduce", itemsHandler.Reduce)
	handle("GET /api/items/category/{category}", itemsHandler.ByCategory)

	handle("GET /api/chart", itemsHandler.Chart)
	handle("GET /api/history", itemsHandler.History)

	// Scanner.
	handle("POST /api/scanner/devices", scannerHandler.Devices)
	handle("POST /api/scanner/open", scannerHandler.Open)
	handle("POST /api/scanner/frame", scannerHandler.Frame)
	handle("GET /api/scanner/status", scannerHandler.Status)
	handle("POST /api/scanner/switch", scannerHandler.Switch)
	handle("POST /api/scanner/close", scannerHandler.Close)

	return mux
}
