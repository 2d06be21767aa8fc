package stockapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/maraudr/console/internal/model"
)

type recordedCall struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

// fakeBackend records every call and answers through handle.
type fakeBackend struct {
	mu     sync.Mutex
	calls  []recordedCall
	handle func(w http.ResponseWriter, r *http.Request, body map[string]any)
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		json.Unmarshal(data, &body)
	}
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
		Body:   body,
	})
	f.mu.Unlock()
	f.handle(w, r, body)
}

func (f *fakeBackend) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, backend *fakeBackend, profile Profile, route QuantityRoute) *Client {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	routes, err := NewRoutes(srv.URL, profile)
	if err != nil {
		t.Fatalf("NewRoutes: %v", err)
	}
	client, err := New(Options{
		Routes:        routes,
		Tokens:        StaticToken("tok"),
		QuantityRoute: route,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestMissingTokenSkipsNetwork(t *testing.T) {
	backend := &fakeBackend{handle: func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		writeJSON(w, http.StatusOK, []any{})
	}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	routes, _ := NewRoutes(srv.URL, Profile{})
	client, err := New(Options{Routes: routes, Tokens: StaticToken("")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.ListItems(context.Background(), "assoc-1", ItemFilter{})
	if !errors.Is(err, ErrAuthenticationMissing) {
		t.Fatalf("expected ErrAuthenticationMissing, got %v", err)
	}

	tokenErr := errors.New("session expired")
	client.tokens = TokenFunc(func(context.Context) (string, error) { return "", tokenErr })
	err = client.DeleteItem(context.Background(), "item-1", "assoc-1")
	if !errors.Is(err, ErrAuthenticationMissing) || !errors.Is(err, tokenErr) {
		t.Fatalf("expected wrapped token error, got %v", err)
	}

	if n := len(backend.Calls()); n != 0 {
		t.Errorf("expected no backend calls, got %d", n)
	}
}

func TestGetStockIDNotFoundIsNoStock(t *testing.T) {
	backend := &fakeBackend{handle: func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no stock"})
	}}
	client := newTestClient(t, backend, Profile{}, "")

	id, err := client.GetStockID(context.Background(), "assoc-1")
	if err != nil {
		t.Fatalf("GetStockID: %v", err)
	}
	if id != "" {
		t.Errorf("expected empty stock id, got %q", id)
	}

	calls := backend.Calls()
	if len(calls) != 1 || calls[0].Path != "/stock/assoc-1" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
	if calls[0].Auth != "Bearer tok" {
		t.Errorf("expected bearer header, got %q", calls[0].Auth)
	}
}

func TestCreateItemWithoutStock(t *testing.T) {
	backend := &fakeBackend{handle: func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		writeJSON(w, http.StatusNotFound, nil)
	}}
	client := newTestClient(t, backend, Profile{}, "")

	_, err := client.CreateItem(context.Background(), model.ItemDraft{Name: "Soap", Category: model.CategoryMedical}, "assoc-1")
	if !errors.Is(err, ErrStockNotFound) {
		t.Fatalf("expected ErrStockNotFound, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("ErrStockNotFound should match ErrNotFound")
	}

	for _, c := range backend.Calls() {
		if c.Method == http.MethodPost {
			t.Errorf("no creation call expected, got %s %s", c.Method, c.Path)
		}
	}
}

func TestCreateItemForcesQuantityOne(t *testing.T) {
	backend := &fakeBackend{handle: func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/stock/assoc-1":
			writeJSON(w, http.StatusOK, map[string]string{"stockId": "stock-9"})
		case r.Method == http.MethodPost && r.URL.Path == "/item":
			writeJSON(w, http.StatusCreated, map[string]string{"id": "item-1"})
		default:
			http.NotFound(w, r)
		}
	}}
	client := newTestClient(t, backend, Profile{}, "")

	for _, qty := range []int{0, 1, 7, -3, 1000} {
		id, err := client.CreateItem(context.Background(), model.ItemDraft{
			Name:     "Blankets",
			BarCode:  " 123 ",
			Category: model.CategoryClothes,
			Quantity: qty,
		}, "assoc-1")
		if err != nil {
			t.Fatalf("CreateItem(qty=%d): %v", qty, err)
		}
		if id != "item-1" {
			t.Errorf("expected id item-1, got %q", id)
		}
	}

	for _, c := range backend.Calls() {
		if c.Method != http.MethodPost {
			continue
		}
		if c.Body["quantity"] != float64(1) {
			t.Errorf("expected quantity 1, got %v", c.Body["quantity"])
		}
		if c.Body["stockId"] != "stock-9" {
			t.Errorf("expected stockId stock-9, got %v", c.Body["stockId"])
		}
		if c.Body["itemType"] != float64(model.CategoryClothes) {
			t.Errorf("expected itemType 4, got %v", c.Body["itemType"])
		}
		if c.Body["barCode"] != "123" {
			t.Errorf("expected trimmed barcode, got %v", c.Body["barCode"])
		}
	}
}

func TestCreateItemFromBarcodeNotFound(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   error
	}{
		{"404", http.StatusNotFound, nil, ErrBarcodeNotFound},
		{"400 with text", http.StatusBadRequest, map[string]string{"message": "Product not found for barcode"}, ErrBarcodeNotFound},
		{"500 problem details", http.StatusInternalServerError, map[string]string{"title": "Error", "detail": "Produit introuvable"}, ErrBarcodeNotFound},
		{"generic 500", http.StatusInternalServerError, map[string]string{"message": "database down"}, ErrServer},
		{"validation", http.StatusBadRequest, map[string]string{"message": "association required"}, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{handle: func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
				writeJSON(w, tt.status, tt.body)
			}}
			client := newTestClient(t, backend, Profile{}, "")

			_, err := client.CreateItemFromBarcode(context.Background(), "3017620422003", "assoc-1")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if StatusOf(err) != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, StatusOf(err))
			}
		})
	}
}

func TestCreateItemFromBarcodeSuccess(t *testing.T) {
	backend := &fakeBackend{handle: func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		writeJSON(w, http.StatusCreated, map[string]string{"id": "new-item"})
	}}
	client := newTestClient(t, backend, Profile{}, "")

	id, err := client.CreateItemFromBarcode(context.Background(), "5449000000996", "assoc-1")
	if err != nil {
		t.Fatalf("CreateItemFromBarcode: %v", err)
	}
	if id != "new-item" {
		t.Errorf("expected new-item, got %q", id)
	}

	calls := backend.Calls()
	if calls[0].Method != http.MethodPost || calls[0].Path != "/item/5449000000996" {
		t.Errorf("unexpected call %s %s", calls[0].Method, calls[0].Path)
	}
	if calls[0].Body["associationId"] != "assoc-1" {
		t.Errorf("expected associationId in body, got %v", calls[0].Body)
	}
}

func TestEmptyInputsNeverReachBackend(t *testing.T) {
	backend := &fakeBackend{handle: func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		writeJSON(w, http.StatusOK, nil)
	}}
	client := newTestClient(t, backend, Profile{}, "")
	ctx := context.Background()

	checks := []error{
		func() error { _, err := client.CreateItemFromBarcode(ctx, "  ", "assoc-1"); return err }(),
		func() error { _, err := client.CreateItem(ctx, model.ItemDraft{Name: ""}, "assoc-1"); return err }(),
		client.UpdateQuantity(ctx, "item-1", "assoc-1", -1),
		client.DeleteItem(ctx, "", "assoc-1"),
		client.ReduceItemStock(ctx, "123", "assoc-1", 0),
	}
	for i, err := range checks {
		if !errors.Is(err, ErrValidation) {
			t.Errorf("check %d: expected ErrValidation, got %v", i, err)
		}
	}
	if n := len(backend.Calls()); n != 0 {
		t.Errorf("expected no backend calls, got %d", n)
	}
}

func TestUpdateQuantityRoutes(t *testing.T) {
	tests := []struct {
		route    QuantityRoute
		wantPath string
		wantBody map[string]any
	}{
		{QuantityRouteScoped, "/item/update-quantity/item-1", map[string]any{"associationId": "assoc-1", "quantity": float64(5)}},
		{QuantityRouteLegacy, "/item/item-1", map[string]any{"quantity": float64(5)}},
	}

	for _, tt := range tests {
		t.Run(string(tt.route), func(t *testing.T) {
			backend := &fakeBackend{handle: func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
				w.WriteHeader(http.StatusNoContent)
			}}
			client := newTestClient(t, backend, Profile{}, tt.route)

			if err := client.UpdateQuantity(context.Background(), "item-1", "assoc-1", 5); err != nil {
				t.Fatalf("UpdateQuantity: %v", err)
			}
			calls := backend.Calls()
			if len(calls) != 1 {
				t.Fatalf("expected 1 call, got %d", len(calls))
			}
			if calls[0].Method != http.MethodPut || calls[0].Path != tt.wantPath {
				t.Errorf("unexpected call %s %s", calls[0].Method, calls[0].Path)
			}
			if len(calls[0].Body) != len(tt.wantBody) {
				t.Errorf("unexpected body %v", calls[0].Body)
			}
			for k, v := range tt.wantBody {
				if calls[0].Body[k] != v {
					t.Errorf("body[%s] = %v, want %v", k, calls[0].Body[k], v)
				}
			}
		})
	}
}

func TestProductionProfileNestsPrefix(t *testing.T) {
	backend := &fakeBackend{handle: func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "a", "name": "Milk", "itemType": "2", "quantity": 3},
			{"id": "b", "name": "Bread", "category": 1, "quantity": 1},
		})
	}}
	client := newTestClient(t, backend, Profile{Prefix: "/stock", ItemsPath: "items"}, "")

	food := model.CategoryFood
	items, err := client.ListItems(context.Background(), "assoc 1", ItemFilter{Category: &food})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 2 || items[0].Category != model.CategoryLiquid || items[1].Category != model.CategoryFood {
		t.Errorf("unexpected items %+v", items)
	}

	calls := backend.Calls()
	if calls[0].Path != "/stock/items" {
		t.Errorf("expected /stock/items, got %s", calls[0].Path)
	}
	if calls[0].Query != "associationId=assoc+1&category=1" {
		t.Errorf("unexpected query %q", calls[0].Query)
	}
}

func TestDeleteItemScopedNotFound(t *testing.T) {
	backend := &fakeBackend{handle: func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "item not in association"})
	}}
	client := newTestClient(t, backend, Profile{}, "")

	err := client.DeleteItem(context.Background(), "item-1", "assoc-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if MessageOf(err) != "item not in association" {
		t.Errorf("unexpected message %q", MessageOf(err))
	}

	calls := backend.Calls()
	if calls[0].Method != http.MethodDelete || calls[0].Path != "/item/item-1" || calls[0].Query != "associationId=assoc-1" {
		t.Errorf("unexpected call %+v", calls[0])
	}
}

func TestScopedFetchesUseMapper(t *testing.T) {
	backend := &fakeBackend{handle: func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		switch r.URL.Path {
		case "/item/item-1":
			writeJSON(w, http.StatusOK, map[string]any{"id": "item-1", "itemType": "3"})
		case "/item/type/4":
			writeJSON(w, http.StatusOK, []map[string]any{{"id": "c", "category": "4"}})
		case "/item/barcode/123":
			writeJSON(w, http.StatusOK, map[string]any{"id": "d", "itemType": 1})
		default:
			http.NotFound(w, r)
		}
	}}
	client := newTestClient(t, backend, Profile{}, "")
	ctx := context.Background()

	item, err := client.GetItemByID(ctx, "item-1", "assoc-1")
	if err != nil || item.Category != model.CategoryMedical {
		t.Errorf("GetItemByID: %+v, %v", item, err)
	}

	byCat, err := client.GetItemsByCategory(ctx, model.CategoryClothes, "assoc-1")
	if err != nil || len(byCat) != 1 || byCat[0].Category != model.CategoryClothes {
		t.Errorf("GetItemsByCategory: %+v, %v", byCat, err)
	}

	byCode, err := client.GetItemByBarcode(ctx, "123", "assoc-1")
	if err != nil || len(byCode) != 1 || byCode[0].Category != model.CategoryFood {
		t.Errorf("GetItemByBarcode: %+v, %v", byCode, err)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	routes, _ := NewRoutes(srv.URL, Profile{})
	srv.Close()

	client, _ := New(Options{Routes: routes, Tokens: StaticToken("tok")})
	_, err := client.ListItems(context.Background(), "assoc-1", ItemFilter{})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestUnknownQuantityRouteRejected(t *testing.T) {
	routes, _ := NewRoutes("http://localhost:5000", Profile{})
	if _, err := New(Options{Routes: routes, Tokens: StaticToken("t"), QuantityRoute: "sideways"}); err == nil {
		t.Error("expected error for unknown quantity route")
	}
}
