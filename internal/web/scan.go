package web

import (
	"net/http"

	"github.com/maraudr/console/internal/console"
	"github.com/maraudr/console/internal/scanner"
)

// ScanPage handles GET /scan. The page script reports the browser's cameras,
// uploads frames and follows the scanner status through the JSON API.
func (s *Server) ScanPage(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())

	s.Templates.Render(w, "scan.html", &struct {
		PageData
		Status scanner.Status
	}{
		PageData: s.page(r, "Scan a barcode"),
		Status:   sess.Scanner.Status(),
	})
}
