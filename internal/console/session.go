// Package console ties the per-operator state of the management console
// together: application state, item cache, flows, chart view and scanner.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maraudr/console/internal/appstate"
	"github.com/maraudr/console/internal/chart"
	"github.com/maraudr/console/internal/flow"
	"github.com/maraudr/console/internal/inventory"
	"github.com/maraudr/console/internal/model"
	"github.com/maraudr/console/internal/scanner"
	"github.com/maraudr/console/internal/stockapi"
)

// RecentCount is the length of the dashboard history panel.
const RecentCount = 5

// Session is one signed-in operator. Every browser tab of the operator
// shares it.
type Session struct {
	ID        string
	Email     string
	ExpiresAt time.Time

	State    *appstate.Store
	Items    *inventory.Cache
	Stock    *stockapi.Client
	AddItem  *flow.AddItem
	EditItem *flow.EditItem
	Camera   *scanner.FeedCamera
	Scanner  *scanner.Scanner

	reg *Registry
	log *slog.Logger

	mu           sync.Mutex
	backendToken string
	selected     string
	chart        chart.View
	counts       inventory.Counts
	highlight    string
	flash        *flow.Notice
	unsubscribe  []func()
}

// token is the stock client's token source. An expired backend token is
// reported as missing so no request is sent with it.
func (s *Session) token(context.Context) (string, error) {
	if s.expired(time.Now()) {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backendToken, nil
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.ExpiresAt)
}

// wire connects the session's components to each other.
func (s *Session) wire() {
	s.unsubscribe = append(s.unsubscribe,
		s.Items.Subscribe(func(snap inventory.Snapshot) {
			if snap.AssociationID != s.State.Get().SelectedAssociationID() {
				return
			}
			s.mu.Lock()
			s.counts = snap.Counts()
			s.mu.Unlock()
		}),
		s.State.Subscribe(func(st appstate.State) {
			s.associationChanged(st.SelectedAssociationID())
		}),
	)
}

// associationChanged drops everything tied to the previous association.
func (s *Session) associationChanged(associationID string) {
	s.mu.Lock()
	same := s.selected == associationID
	s.selected = associationID
	s.mu.Unlock()
	if same {
		return
	}

	s.AddItem.Close()
	s.EditItem.Close()
	s.Scanner.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chart = chart.View{}
	s.highlight = ""
	s.counts = inventory.Counts{}
	if snap, ok := s.Items.Get(associationID); ok {
		s.counts = snap.Counts()
	}
}

func (s *Session) close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	s.Scanner.Close()
	s.AddItem.Close()
	s.EditItem.Close()
}

// Association returns the selected association.
func (s *Session) Association() (model.Association, bool) {
	return s.State.Get().Selected()
}

// AssociationID is the selected association id, or "".
func (s *Session) AssociationID() string {
	return s.State.Get().SelectedAssociationID()
}

// Select switches the selected association and remembers the choice.
func (s *Session) Select(ctx context.Context, associationID string) error {
	st := s.State.Update(appstate.Select(associationID))
	if st.SelectedID != associationID {
		return fmt.Errorf("%w: not a member of association %q", stockapi.ErrValidation, associationID)
	}
	return s.reg.rememberSelection(ctx, s.Email, associationID)
}

// Counts are the navbar figures of the selected association.
func (s *Session) Counts() inventory.Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// ListItems returns the selected association's items, loading them when not
// cached. An association without a stock has no items.
func (s *Session) ListItems(ctx context.Context) ([]model.StockItem, error) {
	id := s.AssociationID()
	if id == "" {
		return nil, nil
	}
	items, err := s.Items.Items(ctx, id)
	if errors.Is(err, stockapi.ErrNotFound) {
		return nil, nil
	}
	return items, err
}

// Refresh reloads the selected association's items.
func (s *Session) Refresh(ctx context.Context) error {
	id := s.AssociationID()
	if id == "" {
		return nil
	}
	_, err := s.Items.Refresh(ctx, id)
	return err
}

// Overview is what the dashboard and the stock page render.
type Overview struct {
	Association model.Association
	HasStock    bool
	Items       []model.StockItem
	Recent      []model.StockItem
	Chart       chart.View
	Bars        []chart.Bar
	Choices     []model.StockItem
	Counts      inventory.Counts
}

// Overview loads the stock id and the item list concurrently and derives
// the chart and history from the list.
func (s *Session) Overview(ctx context.Context) (Overview, error) {
	var ov Overview
	a, ok := s.Association()
	if !ok {
		return ov, nil
	}
	ov.Association = a

	var stockID string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stockID, err = s.Stock.GetStockID(gctx, a.ID)
		return err
	})
	g.Go(func() error {
		var err error
		ov.Items, err = s.ListItems(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ov, err
	}
	ov.HasStock = stockID != ""

	s.mu.Lock()
	view := s.chart
	ov.Counts = s.counts
	s.mu.Unlock()

	ov.Chart = view
	ov.Bars = chart.Layout(view.Points(ov.Items))
	ov.Choices = view.Choices(ov.Items)
	ov.Recent = chart.Recent(ov.Items, RecentCount)
	return ov, nil
}

// CreateStock creates the selected association's stock.
func (s *Session) CreateStock(ctx context.Context) (string, error) {
	id := s.AssociationID()
	if id == "" {
		return "", fmt.Errorf("%w: no association selected", stockapi.ErrValidation)
	}
	stockID, err := s.Stock.CreateStock(ctx, id)
	if err != nil {
		return "", err
	}
	s.Items.Invalidate(id)
	s.log.Info("stock created", "association", id, "stock", stockID)
	return stockID, nil
}

// SetQuantity changes an item's quantity and refreshes the list.
func (s *Session) SetQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", stockapi.ErrValidation)
	}
	if err := s.Stock.UpdateQuantity(ctx, itemID, s.AssociationID(), quantity); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// DeleteItem removes an item and refreshes the list.
func (s *Session) DeleteItem(ctx context.Context, itemID string) error {
	if err := s.Stock.DeleteItem(ctx, itemID, s.AssociationID()); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// FindItem looks an item up in the cached list.
func (s *Session) FindItem(ctx context.Context, itemID string) (*model.StockItem, error) {
	items, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == itemID {
			it := items[i]
			return &it, nil
		}
	}
	return nil, stockapi.ErrNotFound
}

// SaveItem writes an edited item to the backend and reloads the list. It is
// the persistence step of every edit flow opened for this session.
func (s *Session) SaveItem(ctx context.Context, item model.StockItem) error {
	if err := s.Stock.UpdateItem(ctx, item, s.AssociationID()); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// added runs after the add-item flow succeeded.
func (s *Session) added(a flow.Added) {
	s.Items.Invalidate(s.AssociationID())
	s.mu.Lock()
	s.highlight = a.Highlight
	s.mu.Unlock()
	s.log.Info("item added", "item", a.ItemID, "mode", a.Mode.String())
}

// scanned feeds a decoded code into the add-item flow.
func (s *Session) scanned(code string) {
	s.AddItem.Open()
	s.AddItem.SetMode(flow.ModeBarcode)
	s.AddItem.SetBarcode(code)
}

// TakeHighlight returns the string identifying the last added item, once.
func (s *Session) TakeHighlight() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.highlight
	s.highlight = ""
	return h
}

// Flash stores a notice for the next page render.
func (s *Session) Flash(n flow.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = &n
}

// TakeFlash returns the pending notice, once.
func (s *Session) TakeFlash() *flow.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.flash
	s.flash = nil
	return n
}

// ChartView returns the current chart selection.
func (s *Session) ChartView() chart.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chart
}

// SetChartMode switches the chart between by-category and by-item.
func (s *Session) SetChartMode(ctx context.Context, m chart.Mode) error {
	items, err := s.ListItems(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chart.SetMode(m, items)
	return nil
}

// SetChartCategory restricts the chart to one category; nil means all.
func (s *Session) SetChartCategory(c *model.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chart.SetCategory(c)
}

// ToggleChartItem adds or removes an item from the by-item selection.
func (s *Session) ToggleChartItem(ctx context.Context, itemID string) error {
	items, err := s.ListItems(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chart.ToggleItem(itemID, items)
}

// ReduceStock decrements the item carrying barcode and refreshes the list.
func (s *Session) ReduceStock(ctx context.Context, barcode string, quantity int) error {
	if err := s.Stock.ReduceItemStock(ctx, barcode, s.AssociationID(), quantity); err != nil {
		return err
	}
	return s.Refresh(ctx)
}
