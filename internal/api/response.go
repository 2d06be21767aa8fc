package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/maraudr/console/internal/flow"
	"github.com/maraudr/console/internal/stockapi"
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 1 << 20

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// backendError maps a stock backend error to a status code and the message
// the console shows for it.
func backendError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		status = http.StatusBadRequest
	case errors.Is(err, stockapi.ErrAuthenticationMissing):
		status = http.StatusUnauthorized
	case errors.Is(err, stockapi.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, stockapi.ErrBarcodeNotFound), errors.Is(err, stockapi.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, stockapi.ErrNetwork), errors.Is(err, stockapi.ErrServer):
		status = http.StatusBadGateway
	default:
		slog.Error("unexpected backend error", "error", err)
	}
	jsonError(w, status, flow.MessageFor(err))
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize)).Decode(target)
}
