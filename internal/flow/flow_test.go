package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/maraudr/console/internal/model"
	"github.com/maraudr/console/internal/stockapi"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeClock hands out timers that only fire on demand.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) fire() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.f()
		}
	}
}

func (c *fakeClock) last() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return nil
	}
	return c.timers[len(c.timers)-1]
}

type fakeCreator struct {
	mu           sync.Mutex
	barcodeCalls []string
	manualCalls  []model.ItemDraft
	err          error
	release      chan struct{}
}

func (f *fakeCreator) CreateItemFromBarcode(_ context.Context, barcode, _ string) (string, error) {
	f.mu.Lock()
	f.barcodeCalls = append(f.barcodeCalls, barcode)
	release, err := f.release, f.err
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	return "item-" + barcode, err
}

func (f *fakeCreator) CreateItem(_ context.Context, draft model.ItemDraft, _ string) (string, error) {
	f.mu.Lock()
	f.manualCalls = append(f.manualCalls, draft)
	err := f.err
	f.mu.Unlock()
	return "item-manual", err
}

func (f *fakeCreator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.barcodeCalls) + len(f.manualCalls)
}

func newAddItem(creator *fakeCreator, clock *fakeClock, association string, added *[]Added) *AddItem {
	return NewAddItem(AddItemConfig{
		Creator:     creator,
		Association: func() string { return association },
		OnAdded:     func(a Added) { *added = append(*added, a) },
		AfterFunc:   clock.AfterFunc,
	})
}

func TestAddItemReopenResets(t *testing.T) {
	var added []Added
	f := newAddItem(&fakeCreator{}, &fakeClock{}, "a1", &added)

	for round := range 3 {
		f.Open()
		v := f.View()
		if v.Mode != ModeBarcode || v.Barcode != "" || v.Draft.Name != "" || v.Draft.Description != "" {
			t.Fatalf("round %d: flow not reset on open: %+v", round, v)
		}

		f.SetMode(ModeManual)
		f.SetBarcode("3017620422003")
		f.SetDraft(model.ItemDraft{Name: "Rice", Description: "bags", Category: model.CategoryFood})
		f.Close()
	}
}

func TestAddItemOpenWhileOpenKeepsFields(t *testing.T) {
	var added []Added
	f := newAddItem(&fakeCreator{}, &fakeClock{}, "a1", &added)

	f.Open()
	f.SetBarcode("123")
	f.Open()
	if f.View().Barcode != "123" {
		t.Error("opening an open flow should not reset it")
	}
}

func TestAddItemValidationSkipsBackend(t *testing.T) {
	tests := []struct {
		name        string
		association string
		mode        Mode
		barcode     string
		draft       model.ItemDraft
		want        string
	}{
		{"empty barcode", "a1", ModeBarcode, "  ", model.ItemDraft{}, "barcode"},
		{"empty name", "a1", ModeManual, "", model.ItemDraft{Name: " ", Category: model.CategoryFood}, "Name is required"},
		{"bad category", "a1", ModeManual, "", model.ItemDraft{Name: "Rice", Category: model.Category(7)}, "category"},
		{"no association barcode", "", ModeBarcode, "123", model.ItemDraft{}, msgNoAssociation},
		{"no association manual", "", ModeManual, "", model.ItemDraft{Name: "Rice"}, msgNoAssociation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creator := &fakeCreator{}
			var added []Added
			f := newAddItem(creator, &fakeClock{}, tt.association, &added)
			f.Open()
			f.SetMode(tt.mode)
			f.SetBarcode(tt.barcode)
			f.SetDraft(tt.draft)

			n, err := f.Submit(context.Background())
			if err == nil {
				t.Fatal("expected validation error")
			}
			if n.Kind != NoticeError || !strings.Contains(strings.ToLower(n.Message), strings.ToLower(tt.want)) {
				t.Errorf("unexpected notice %+v", n)
			}
			if creator.calls() != 0 {
				t.Errorf("expected no backend call, got %d", creator.calls())
			}
			if v := f.View(); v.Phase != PhaseFailed || v.Notice == nil {
				t.Errorf("expected failed phase with notice, got %+v", v)
			}
		})
	}
}

func TestAddItemManualForcesQuantity(t *testing.T) {
	creator := &fakeCreator{}
	var added []Added
	f := newAddItem(creator, &fakeClock{}, "a1", &added)

	f.Open()
	f.SetMode(ModeManual)
	f.SetDraft(model.ItemDraft{Name: " Soap ", Category: model.CategoryMedical, Quantity: 40})
	if f.View().Draft.Quantity != model.InitialQuantity {
		t.Error("draft quantity should be pinned")
	}

	n, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if n.Kind != NoticeSuccess {
		t.Errorf("expected success notice, got %+v", n)
	}

	want := []model.ItemDraft{{Name: "Soap", Category: model.CategoryMedical, Quantity: 1}}
	if diff := cmp.Diff(want, creator.manualCalls); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}
	if len(added) != 1 || added[0].Highlight != "Soap" || added[0].Mode != ModeManual {
		t.Errorf("unexpected OnAdded calls %+v", added)
	}
	if f.View().Open {
		t.Error("flow should close after success")
	}
}

func TestAddItemBarcodeSuccess(t *testing.T) {
	creator := &fakeCreator{}
	var added []Added
	f := newAddItem(creator, &fakeClock{}, "a1", &added)

	f.Open()
	f.SetBarcode(" 5449000000996 ")
	if _, err := f.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	want := []Added{{ItemID: "item-5449000000996", Highlight: "5449000000996", Mode: ModeBarcode}}
	if diff := cmp.Diff(want, added); diff != "" {
		t.Errorf("OnAdded mismatch (-want +got):\n%s", diff)
	}
	if f.View().Open {
		t.Error("flow should close after success")
	}
}

func TestAddItemFailureNoticeDismisses(t *testing.T) {
	creator := &fakeCreator{err: &stockapi.Error{Op: "create_item_from_barcode", Status: 404, Kind: stockapi.ErrBarcodeNotFound}}
	clock := &fakeClock{}
	var added []Added
	f := newAddItem(creator, clock, "a1", &added)

	f.Open()
	f.SetBarcode("000")
	n, err := f.Submit(context.Background())
	if !errors.Is(err, stockapi.ErrBarcodeNotFound) {
		t.Fatalf("expected ErrBarcodeNotFound, got %v", err)
	}
	if n.Message != msgBarcodeNotFound {
		t.Errorf("expected barcode not found message, got %q", n.Message)
	}
	if timer := clock.last(); timer == nil || timer.d != NoticeTTL {
		t.Fatalf("expected a %v dismiss timer", NoticeTTL)
	}

	clock.fire()
	v := f.View()
	if v.Notice != nil || v.Phase != PhaseIdle {
		t.Errorf("expected dismissed notice, got %+v", v)
	}
	if !v.Open || v.Barcode != "000" {
		t.Error("failure should keep the flow open with its input")
	}
	if len(added) != 0 {
		t.Error("OnAdded must not run on failure")
	}
}

func TestAddItemCloseCancelsDismissTimer(t *testing.T) {
	clock := &fakeClock{}
	var added []Added
	f := newAddItem(&fakeCreator{}, clock, "a1", &added)

	f.Open()
	f.Submit(context.Background()) // empty barcode
	timer := clock.last()
	f.Close()

	if timer == nil || !timer.stopped {
		t.Error("closing must stop the dismiss timer")
	}
}

func TestAddItemLateResultDropped(t *testing.T) {
	creator := &fakeCreator{release: make(chan struct{})}
	var added []Added
	f := newAddItem(creator, &fakeClock{}, "a1", &added)

	f.Open()
	f.SetBarcode("123")

	done := make(chan error)
	go func() {
		_, err := f.Submit(context.Background())
		done <- err
	}()

	for creator.calls() == 0 {
		time.Sleep(time.Millisecond)
	}
	if f.View().Phase != PhaseSubmitting {
		t.Error("expected submitting phase while the call is in flight")
	}
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy for a second submit, got %v", err)
	}

	f.Close()
	f.Open()
	close(creator.release)

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed for the late result, got %v", err)
	}
	if len(added) != 0 {
		t.Error("late result must not reach OnAdded")
	}
	if v := f.View(); !v.Open || v.Phase != PhaseIdle {
		t.Errorf("reopened flow should be idle, got %+v", v)
	}
}

func TestAddItemSubmitClosed(t *testing.T) {
	var added []Added
	f := newAddItem(&fakeCreator{}, &fakeClock{}, "a1", &added)
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestEditItemSubmit(t *testing.T) {
	var saved []model.StockItem
	f := NewEditItem(EditItemConfig{
		Save: func(_ context.Context, item model.StockItem) error {
			saved = append(saved, item)
			return nil
		},
		AfterFunc: (&fakeClock{}).AfterFunc,
	})

	entry := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	original := model.StockItem{
		ID: "i1", StockID: "s1", Name: "Rice", Category: model.CategoryFood, EntryDate: entry, Quantity: 3,
	}
	f.Open(&original)

	if v := f.View(); v.Draft.Name != "Rice" || v.Draft.Quantity != 3 {
		t.Fatalf("draft not loaded: %+v", v.Draft)
	}

	if err := f.SetDraft(EditInput{Name: "Brown rice", Category: "2", Quantity: 8}); err != nil {
		t.Fatalf("SetDraft: %v", err)
	}
	if _, err := f.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	want := []model.StockItem{{
		ID: "i1", StockID: "s1", Name: "Brown rice", Category: model.CategoryLiquid, EntryDate: entry, Quantity: 8,
	}}
	if diff := cmp.Diff(want, saved); diff != "" {
		t.Errorf("saved item mismatch (-want +got):\n%s", diff)
	}
	if f.View().Open {
		t.Error("edit flow should close after saving")
	}
}

func TestEditItemWithoutTarget(t *testing.T) {
	called := false
	f := NewEditItem(EditItemConfig{
		Save:      func(context.Context, model.StockItem) error { called = true; return nil },
		AfterFunc: (&fakeClock{}).AfterFunc,
	})

	f.Open(nil)
	n, err := f.Submit(context.Background())
	if !errors.Is(err, ErrNoTargetItem) {
		t.Fatalf("expected ErrNoTargetItem, got %v", err)
	}
	if n.Kind != NoticeError {
		t.Errorf("expected error notice, got %+v", n)
	}
	if called {
		t.Error("Save must not run without a target")
	}
}

func TestEditItemSaveFailure(t *testing.T) {
	f := NewEditItem(EditItemConfig{
		Save: func(context.Context, model.StockItem) error {
			return &stockapi.Error{Op: "update_item", Status: 503, Kind: stockapi.ErrServer}
		},
		AfterFunc: (&fakeClock{}).AfterFunc,
	})

	f.Open(&model.StockItem{ID: "i1", Name: "Rice"})
	n, err := f.Submit(context.Background())
	if !errors.Is(err, stockapi.ErrServer) {
		t.Fatalf("expected ErrServer, got %v", err)
	}
	if n.Message != msgServer {
		t.Errorf("unexpected message %q", n.Message)
	}
	if v := f.View(); !v.Open || v.Phase != PhaseFailed {
		t.Errorf("expected open failed flow, got %+v", v)
	}
}

func TestEditItemRejectsBadInput(t *testing.T) {
	f := NewEditItem(EditItemConfig{
		Save:      func(context.Context, model.StockItem) error { return nil },
		AfterFunc: (&fakeClock{}).AfterFunc,
	})
	f.Open(&model.StockItem{ID: "i1", Name: "Rice"})

	if err := f.SetDraft(EditInput{Name: "Rice", Category: "soup"}); err == nil {
		t.Error("expected error for unparseable category")
	}

	f.SetDraft(EditInput{Name: "Rice", Category: 1, Quantity: -2})
	if _, err := f.Submit(context.Background()); err == nil {
		t.Error("expected error for negative quantity")
	}
}

func TestMessageFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"barcode", &stockapi.Error{Kind: stockapi.ErrBarcodeNotFound}, msgBarcodeNotFound},
		{"no stock", &stockapi.Error{Kind: stockapi.ErrStockNotFound}, msgNoStock},
		{"not found", &stockapi.Error{Kind: stockapi.ErrNotFound}, msgNotFound},
		{"token", &stockapi.Error{Kind: stockapi.ErrAuthenticationMissing}, msgNotAuthorized},
		{"network", &stockapi.Error{Kind: stockapi.ErrNetwork}, msgNetwork},
		{"server", &stockapi.Error{Kind: stockapi.ErrServer}, msgServer},
		{"backend validation", &stockapi.Error{Kind: stockapi.ErrValidation, Message: "barcode too long"}, "barcode too long"},
		{"unknown with text", &stockapi.Error{Kind: stockapi.ErrUnknown, Message: "teapot"}, "teapot"},
		{"plain", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MessageFor(tt.err); got != tt.want {
				t.Errorf("MessageFor = %q, want %q", got, tt.want)
			}
		})
	}
}
