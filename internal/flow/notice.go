// Package flow implements the add-item and edit-item flows of the stock page.
package flow

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/maraudr/console/internal/stockapi"
)

// NoticeTTL is how long a success or failure notice stays up.
const NoticeTTL = 3 * time.Second

// NoticeKind tells the templates how to style a notice.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient message shown in a flow.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Messages shown to the operator.
const (
	msgBarcodeNotFound = "No product matches this barcode. Try manual entry."
	msgNoAssociation   = "Select an association first."
	msgNoStock         = "This association has no stock yet. Create it from the stock page."
	msgNotAuthorized   = "Your session has expired. Please sign in again."
	msgNotFound        = "The item no longer exists."
	msgNetwork         = "The stock service is unreachable. Try again."
	msgServer          = "The stock service failed. Try again later."
	msgUnknown         = "Something went wrong."
)

// MessageFor maps an error to the message shown to the operator.
func MessageFor(err error) string {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for _, field := range []string{"association", "barcode", "name", "category", "quantity"} {
			if e, ok := verrs[field]; ok {
				return e.Error()
			}
		}
		return verrs.Error()
	}

	switch {
	case errors.Is(err, stockapi.ErrBarcodeNotFound):
		return msgBarcodeNotFound
	case errors.Is(err, stockapi.ErrStockNotFound):
		return msgNoStock
	case errors.Is(err, stockapi.ErrAuthenticationMissing):
		return msgNotAuthorized
	case errors.Is(err, stockapi.ErrNotFound):
		return msgNotFound
	case errors.Is(err, stockapi.ErrNetwork):
		return msgNetwork
	case errors.Is(err, stockapi.ErrServer):
		return msgServer
	case errors.Is(err, stockapi.ErrValidation):
		if m := stockapi.MessageOf(err); m != "" {
			return m
		}
	case err != nil:
		// Backend text is shown as is for anything we do not classify.
		if m := stockapi.MessageOf(err); m != "" {
			return m
		}
	}
	return msgUnknown
}

// Timer is the part of *time.Timer the flows use.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Tests substitute a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
