package stockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Error kinds. Every *Error unwraps to exactly one of these, so callers branch
// with errors.Is.
var (
	ErrAuthenticationMissing = errors.New("no authentication token")
	ErrNotFound              = errors.New("not found")
	ErrValidation            = errors.New("validation failed")
	ErrBarcodeNotFound       = errors.New("barcode not found in catalog")
	ErrNetwork               = errors.New("network error")
	ErrServer                = errors.New("server error")
	ErrUnknown               = errors.New("unexpected backend response")
)

// ErrStockNotFound is returned when an association has no stock yet. It
// matches ErrNotFound.
var ErrStockNotFound = fmt.Errorf("stock %w", ErrNotFound)

// Error is a failed backend operation.
type Error struct {
	Op      string // client operation, e.g. "create_item"
	Status  int    // HTTP status, 0 when no response was received
	Message string // backend or client supplied message
	Kind    error  // one of the Err* kinds above
	Err     error  // underlying transport error, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// MessageOf returns the backend message carried by err, or err's text.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// ResponseError builds the error for a non-2xx backend answer. It is shared
// with the association client.
func ResponseError(op string, status int, body []byte) *Error {
	return &Error{
		Op:      op,
		Status:  status,
		Message: extractMessage(body),
		Kind:    kindForStatus(status),
	}
}

// Outcome is the metrics label of an error kind.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuthenticationMissing):
		return "unauthorized"
	case errors.Is(err, ErrBarcodeNotFound):
		return "barcode_not_found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrServer):
		return "server"
	default:
		return "unknown"
	}
}

func validationError(op, message string) error {
	return &Error{Op: op, Message: message, Kind: ErrValidation}
}

// kindForStatus maps a non-2xx status onto the error taxonomy.
func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrAuthenticationMissing
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity, status == http.StatusConflict:
		return ErrValidation
	case status >= 500:
		return ErrServer
	default:
		return ErrUnknown
	}
}

// barcodeMissing matches the texts the backend uses when a barcode is absent
// from the product catalog.
var barcodeMissing = regexp.MustCompile(`(?i)(not\s*found|introuvable|no\s+product|unknown\s+barcode|aucun\s+produit)`)

// errorBody covers the error payload shapes the backends produce: plain
// {"message"}, {"error"} and problem-details {"title","detail"}.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Title   string `json:"title"`
	Detail  string `json:"detail"`
}

// extractMessage pulls a human readable message out of an error response body.
func extractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		for _, s := range []string{eb.Message, eb.Detail, eb.Error, eb.Title} {
			if s != "" {
				return s
			}
		}
	}

	var s string
	if json.Unmarshal(body, &s) == nil && s != "" {
		return s
	}

	if len(trimmed) > 300 {
		trimmed = trimmed[:300]
	}
	return trimmed
}
