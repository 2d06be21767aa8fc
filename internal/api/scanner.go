package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/maraudr/console/internal/console"
	"github.com/maraudr/console/internal/scanner"
)

// ScannerHandler bridges the browser camera to the session's scanner. The
// page reports devices, opens a session and uploads frames until the status
// turns "decoded".
type ScannerHandler struct{}

type devicesRequest struct {
	Devices []scanner.Device `json:"devices"`
	Error   string           `json:"error"`
}

// Devices handles POST /api/scanner/devices.
func (h *ScannerHandler) Devices(w http.ResponseWriter, r *http.Request) {
	var req devicesRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := console.FromContext(r.Context())
	sess.Camera.Report(req.Devices, req.Error)
	jsonResponse(w, http.StatusOK, sess.Scanner.Status())
}

// Open handles POST /api/scanner/open. A camera failure is part of the
// returned status, not an HTTP error.
func (h *ScannerHandler) Open(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	_ = sess.Scanner.Open(r.Context())
	jsonResponse(w, http.StatusOK, sess.Scanner.Status())
}

// Frame handles POST /api/scanner/frame with a JPEG or PNG body.
func (h *ScannerHandler) Frame(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, scanner.MaxFrameSize))
	if err != nil {
		jsonError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}

	sess := console.FromContext(r.Context())
	if err := sess.Camera.Push(data); err != nil && !errors.Is(err, scanner.ErrNoActiveStream) {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Without a stream the session already ended; the status says how.
	jsonResponse(w, http.StatusOK, sess.Scanner.Status())
}

// Status handles GET /api/scanner/status.
func (h *ScannerHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	jsonResponse(w, http.StatusOK, sess.Scanner.Status())
}

// Switch handles POST /api/scanner/switch.
func (h *ScannerHandler) Switch(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	sess.Scanner.SwitchCamera(r.Context())
	jsonResponse(w, http.StatusOK, sess.Scanner.Status())
}

// Close handles POST /api/scanner/close.
func (h *ScannerHandler) Close(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	sess.Scanner.Close()
	w.WriteHeader(http.StatusNoContent)
}
