package web

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maraudr/console/internal/console"
	"github.com/maraudr/console/internal/export"
	"github.com/maraudr/console/internal/flow"
	"github.com/maraudr/console/internal/model"
	"github.com/maraudr/console/internal/stockapi"
)

// notice turns an error into a page notice.
func notice(err error) flow.Notice {
	return flow.Notice{Kind: flow.NoticeError, Message: flow.MessageFor(err)}
}

// StockPage handles GET /stock.
func (s *Server) StockPage(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())

	ov, err := sess.Overview(r.Context())
	data := s.page(r, "Stock")
	if err != nil {
		slog.Error("failed to load stock", "session", sess.ID, "error", err)
		data.Error = notice(err).Message
	}

	s.Templates.Render(w, "stock.html", &struct {
		PageData
		Overview  console.Overview
		Highlight string
		Add       flow.AddItemView
		Edit      flow.EditItemView
	}{
		PageData:  data,
		Overview:  ov,
		Highlight: sess.TakeHighlight(),
		Add:       sess.AddItem.View(),
		Edit:      sess.EditItem.View(),
	})
}

// StockCreateSubmit handles POST /stock.
func (s *Server) StockCreateSubmit(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	if _, err := sess.CreateStock(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	sess.Flash(flow.Notice{Kind: flow.NoticeSuccess, Message: "Stock created."})
	http.Redirect(w, r, "/stock", http.StatusSeeOther)
}

// AddOpen handles POST /stock/add/open.
func (s *Server) AddOpen(w http.ResponseWriter, r *http.Request) {
	console.FromContext(r.Context()).AddItem.Open()
	http.Redirect(w, r, "/stock", http.StatusSeeOther)
}

// AddClose handles POST /stock/add/close.
func (s *Server) AddClose(w http.ResponseWriter, r *http.Request) {
	console.FromContext(r.Context()).AddItem.Close()
	http.Redirect(w, r, "/stock", http.StatusSeeOther)
}

// AddModeSubmit handles POST /stock/add/mode.
func (s *Server) AddModeSubmit(w http.ResponseWriter, r *http.Request) {
	console.FromContext(r.Context()).AddItem.SetMode(flow.ParseMode(r.FormValue("mode")))
	http.Redirect(w, r, "/stock", http.StatusSeeOther)
}

// AddSubmit handles POST /stock/add.
func (s *Server) AddSubmit(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	add := sess.AddItem

	if add.View().Mode == flow.ModeManual {
		category, ok := model.ParseCategory(r.FormValue("category"))
		if !ok || strings.TrimSpace(r.FormValue("category")) == "" {
			category = -1
		}
		add.SetDraft(model.ItemDraft{
			Name:        r.FormValue("name"),
			Description: r.FormValue("description"),
			BarCode:     strings.TrimSpace(r.FormValue("barcode")),
			Category:    category,
		})
	} else {
		add.SetBarcode(r.FormValue("barcode"))
	}

	n, err := add.Submit(r.Context())
	switch {
	case err == nil:
		sess.Flash(n)
	case errors.Is(err, flow.ErrBusy) || errors.Is(err, flow.ErrClosed):
		sess.Flash(notice(err))
	default:
		// The flow keeps the failure notice until it is dismissed.
		slog.Info("add item failed", "session", sess.ID, "outcome", stockapi.Outcome(err))
	}
	http.Redirect(w, r, "/stock", http.StatusSeeOther)
}

// EditOpen handles POST /stock/items/{id}/edit.
func (s *Server) EditOpen(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	item, err := sess.FindItem(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess.EditItem.Open(item)
	http.Redirect(w, r, "/stock", http.StatusSeeOther)
}

// EditClose handles POST /stock/edit/close.
func (s *Server) EditClose(w http.ResponseWriter, r *http.Request) {
	console.FromContext(r.Context()).EditItem.Close()
	http.Redirect(w, r, "/stock", http.StatusSeeOther)
}

// EditSubmit handles POST /stock/edit.
func (s *Server) EditSubmit(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())

	quantity, err := strconv.Atoi(strings.TrimSpace(r.FormValue("quantity")))
	if err != nil {
		sess.Flash(flow.Notice{Kind: flow.NoticeError, Message: "Quantity must be a number."})
		http.Redirect(w, r, "/stock", http.StatusSeeOther)
		return
	}
	err = sess.EditItem.SetDraft(flow.EditInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		BarCode:     r.FormValue("barcode"),
		Category:    r.FormValue("category"),
		Quantity:    quantity,
	})
	if err != nil {
		sess.Flash(notice(err))
		http.Redirect(w, r, "/stock", http.StatusSeeOther)
		return
	}

	n, err := sess.EditItem.Submit(r.Context())
	switch {
	case err == nil:
		sess.Flash(n)
	case errors.Is(err, flow.ErrBusy) || errors.Is(err, flow.ErrClosed):
		sess.Flash(notice(err))
	}
	http.Redirect(w, r, "/stock", http.StatusSeeOther)
}

// QuantitySubmit handles POST /stock/items/{id}/quantity.
func (s *Server) QuantitySubmit(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())

	quantity, err := strconv.Atoi(strings.TrimSpace(r.FormValue("quantity")))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: quantity must be a number", stockapi.ErrValidation))
		return
	}
	if err := sess.SetQuantity(r.Context(), r.PathValue("id"), quantity); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/stock", http.StatusSeeOther)
}

// DeleteSubmit handles POST /stock/items/{id}/delete.
func (s *Server) DeleteSubmit(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	id := r.PathValue("id")
	if err := sess.DeleteItem(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	slog.Info("item deleted", "session", sess.ID, "item", id)
	sess.Flash(flow.Notice{Kind: flow.NoticeSuccess, Message: "Item deleted."})
	http.Redirect(w, r, "/stock", http.StatusSeeOther)
}

// ExportXLSX handles GET /stock/export.xlsx.
func (s *Server) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	a, ok := sess.Association()
	if !ok {
		http.Error(w, "no association selected", http.StatusBadRequest)
		return
	}

	items, err := sess.ListItems(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteItems(&buf, items); err != nil {
		slog.Error("failed to export items", "association", a.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(a.Name, time.Now())))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("failed to write export", "error", err)
	}
}
