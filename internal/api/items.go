package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/maraudr/console/internal/chart"
	"github.com/maraudr/console/internal/console"
	"github.com/maraudr/console/internal/flow"
	"github.com/maraudr/console/internal/model"
)

// ItemsHandler handles the stock endpoints of the selected association.
type ItemsHandler struct{}

// List handles GET /api/items. The optional category query filters the
// cached list.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	items, err := sess.ListItems(r.Context())
	if err != nil {
		backendError(w, err)
		return
	}

	if raw := r.URL.Query().Get("category"); raw != "" {
		c, ok := model.ParseCategory(raw)
		if !ok {
			jsonError(w, http.StatusBadRequest, "unknown category")
			return
		}
		filtered := make([]model.StockItem, 0, len(items))
		for _, it := range items {
			if it.Category == c {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	if items == nil {
		items = []model.StockItem{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	item, err := sess.Stock.GetItemByID(r.Context(), r.PathValue("id"), sess.AssociationID())
	if err != nil {
		backendError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// ByBarcode handles GET /api/items/barcode/{barcode}.
func (h *ItemsHandler) ByBarcode(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	items, err := sess.Stock.GetItemByBarcode(r.Context(), r.PathValue("barcode"), sess.AssociationID())
	if err != nil {
		backendError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// ByCategory handles GET /api/items/category/{category}.
func (h *ItemsHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := model.ParseCategory(r.PathValue("category"))
	if !ok || !c.Known() {
		jsonError(w, http.StatusBadRequest, "unknown category")
		return
	}
	sess := console.FromContext(r.Context())
	items, err := sess.Stock.GetItemsByCategory(r.Context(), c, sess.AssociationID())
	if err != nil {
		backendError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

type createItemRequest struct {
	Mode        string `json:"mode"`
	Barcode     string `json:"barcode"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    any    `json:"category"`
}

type createItemResponse struct {
	Message string `json:"message"`
}

// Create handles POST /api/items. It runs the same add-item flow as the
// stock page.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess := console.FromContext(r.Context())
	add := sess.AddItem
	add.Open()
	mode := flow.ParseMode(req.Mode)
	add.SetMode(mode)
	if mode == flow.ModeManual {
		category, ok := model.ParseCategory(req.Category)
		if !ok {
			category = -1
		}
		add.SetDraft(model.ItemDraft{
			Name:        req.Name,
			Description: req.Description,
			BarCode:     strings.TrimSpace(req.Barcode),
			Category:    category,
		})
	} else {
		add.SetBarcode(req.Barcode)
	}

	n, err := add.Submit(r.Context())
	if err != nil {
		if errors.Is(err, flow.ErrBusy) || errors.Is(err, flow.ErrClosed) {
			jsonError(w, http.StatusConflict, err.Error())
			return
		}
		backendError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, createItemResponse{Message: n.Message})
}

type updateItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	BarCode     string `json:"barCode"`
	Category    any    `json:"category"`
	Quantity    int    `json:"quantity"`
}

// Update handles PUT /api/items/{id}. It runs the edit flow.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess := console.FromContext(r.Context())
	item, err := sess.FindItem(r.Context(), r.PathValue("id"))
	if err != nil {
		backendError(w, err)
		return
	}

	// A private flow keeps an edit dialog open in the browser untouched.
	edit := flow.NewEditItem(flow.EditItemConfig{Save: sess.SaveItem})
	defer edit.Close()
	edit.Open(item)
	err = edit.SetDraft(flow.EditInput{
		Name:        req.Name,
		Description: req.Description,
		BarCode:     req.BarCode,
		Category:    req.Category,
		Quantity:    req.Quantity,
	})
	if err != nil {
		jsonError(w, http.StatusBadRequest, flow.MessageFor(err))
		return
	}

	if _, err := edit.Submit(r.Context()); err != nil {
		backendError(w, err)
		return
	}
	updated, _ := sess.FindItem(r.Context(), item.ID)
	jsonResponse(w, http.StatusOK, updated)
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

// UpdateQuantity handles PUT /api/items/{id}/quantity.
func (h *ItemsHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil || req.Quantity == nil {
		jsonError(w, http.StatusBadRequest, "quantity required")
		return
	}

	sess := console.FromContext(r.Context())
	if err := sess.SetQuantity(r.Context(), r.PathValue("id"), *req.Quantity); err != nil {
		backendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reduce handles POST /api/items/barcode/{barcode}/reduce.
func (h *ItemsHandler) Reduce(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil || req.Quantity == nil {
		jsonError(w, http.StatusBadRequest, "quantity required")
		return
	}

	sess := console.FromContext(r.Context())
	if err := sess.ReduceStock(r.Context(), r.PathValue("barcode"), *req.Quantity); err != nil {
		backendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	if err := sess.DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		backendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stock handles GET /api/stock.
func (h *ItemsHandler) Stock(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	id, err := sess.Stock.GetStockID(r.Context(), sess.AssociationID())
	if err != nil {
		backendError(w, err)
		return
	}
	if id == "" {
		jsonError(w, http.StatusNotFound, "association has no stock")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"stockId": id})
}

// CreateStock handles POST /api/stock.
func (h *ItemsHandler) CreateStock(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	id, err := sess.CreateStock(r.Context())
	if err != nil {
		backendError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]string{"stockId": id})
}

// Chart handles GET /api/chart?mode=category|item&category=N&item=ID...
// It derives the series from the cached list without touching the page's
// chart selection.
func (h *ItemsHandler) Chart(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	items, err := sess.ListItems(r.Context())
	if err != nil {
		backendError(w, err)
		return
	}

	q := r.URL.Query()
	var only *model.Category
	if c, ok := model.ParseCategory(q.Get("category")); ok && q.Get("category") != "" {
		only = &c
	}

	var points []chart.Point
	if chart.ParseMode(q.Get("mode")) == chart.ModeByItem {
		if only == nil {
			jsonError(w, http.StatusBadRequest, chart.ErrNoCategory.Error())
			return
		}
		points = chart.ByItem(items, *only, q["item"])
	} else {
		points = chart.ByCategory(items, only)
	}
	if points == nil {
		points = []chart.Point{}
	}
	jsonResponse(w, http.StatusOK, points)
}

// History handles GET /api/history.
func (h *ItemsHandler) History(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	items, err := sess.ListItems(r.Context())
	if err != nil {
		backendError(w, err)
		return
	}
	recent := chart.Recent(items, console.RecentCount)
	if recent == nil {
		recent = []model.StockItem{}
	}
	jsonResponse(w, http.StatusOK, recent)
}
