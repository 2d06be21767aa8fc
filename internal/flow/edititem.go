package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/maraudr/console/internal/model"
)

// ErrNoTargetItem is returned when the edit flow is submitted without an item.
var ErrNoTargetItem = errors.New("no item selected for editing")

// EditDraft holds the editable fields of an item.
type EditDraft struct {
	Name        string
	Description string
	BarCode     string
	Category    model.Category
	Quantity    int
}

// EditInput is raw form input. Category may be a number, a numeric string or
// a label.
type EditInput struct {
	Name        string
	Description string
	BarCode     string
	Category    any
	Quantity    int
}

// EditItemConfig wires an EditItem. Save owns persistence and the list
// refresh that follows it.
type EditItemConfig struct {
	Save      func(ctx context.Context, item model.StockItem) error
	AfterFunc AfterFunc
}

// EditItemView is what the templates render.
type EditItemView struct {
	Open   bool
	Item   *model.StockItem
	Draft  EditDraft
	Phase  Phase
	Notice *Notice
}

// EditItem edits one item and hands the result to the caller.
type EditItem struct {
	cfg EditItemConfig

	mu      sync.Mutex
	open    bool
	target  *model.StockItem
	draft   EditDraft
	phase   Phase
	notice  *Notice
	gen     uint64
	dismiss Timer
}

// NewEditItem creates a closed edit flow.
func NewEditItem(cfg EditItemConfig) *EditItem {
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = realAfterFunc
	}
	return &EditItem{cfg: cfg}
}

// Open opens the flow on item. A non-nil item is loaded into the draft on
// every call.
func (f *EditItem) Open(item *model.StockItem) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.open = true
	f.phase = PhaseIdle
	f.notice = nil
	f.stopDismiss()

	if item == nil {
		f.target = nil
		f.draft = EditDraft{}
		return
	}
	it := *item
	f.target = &it
	f.draft = EditDraft{
		Name:        it.Name,
		Description: it.Description,
		BarCode:     it.BarCode,
		Category:    it.Category,
		Quantity:    it.Quantity,
	}
}

// Close closes the flow and discards any save still in flight.
func (f *EditItem) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.close()
}

func (f *EditItem) close() {
	f.open = false
	f.gen++
	f.target = nil
	f.draft = EditDraft{}
	f.phase = PhaseIdle
	f.notice = nil
	f.stopDismiss()
}

func (f *EditItem) stopDismiss() {
	if f.dismiss != nil {
		f.dismiss.Stop()
		f.dismiss = nil
	}
}

// View returns a copy of the flow state.
func (f *EditItem) View() EditItemView {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := EditItemView{Open: f.open, Draft: f.draft, Phase: f.phase}
	if f.target != nil {
		it := *f.target
		v.Item = &it
	}
	if f.notice != nil {
		n := *f.notice
		v.Notice = &n
	}
	return v
}

// SetDraft replaces the draft from form input, coercing the category.
func (f *EditItem) SetDraft(in EditInput) error {
	cat, ok := model.ParseCategory(in.Category)
	if !ok {
		return validation.Errors{"category": errors.New("Choose a category.")}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return ErrClosed
	}
	f.draft = EditDraft{
		Name:        in.Name,
		Description: in.Description,
		BarCode:     strings.TrimSpace(in.BarCode),
		Category:    cat,
		Quantity:    in.Quantity,
	}
	return nil
}

// Submit overlays the draft on the target's identity and calls Save.
func (f *EditItem) Submit(ctx context.Context) (Notice, error) {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return Notice{}, ErrClosed
	}
	if f.phase == PhaseSubmitting {
		f.mu.Unlock()
		return Notice{}, ErrBusy
	}
	if f.target == nil {
		n := f.fail(ErrNoTargetItem, "There is no item to update.")
		f.mu.Unlock()
		return n, ErrNoTargetItem
	}
	if err := validateEdit(f.draft); err != nil {
		n := f.fail(err, MessageFor(err))
		f.mu.Unlock()
		return n, err
	}

	updated := *f.target
	updated.Name = strings.TrimSpace(f.draft.Name)
	updated.Description = f.draft.Description
	updated.BarCode = f.draft.BarCode
	updated.Category = f.draft.Category
	updated.Quantity = f.draft.Quantity

	f.stopDismiss()
	f.notice = nil
	f.phase = PhaseSubmitting
	gen := f.gen
	f.mu.Unlock()

	settled := false
	defer func() {
		if settled {
			return
		}
		f.mu.Lock()
		if f.gen == gen && f.phase == PhaseSubmitting {
			f.phase = PhaseIdle
		}
		f.mu.Unlock()
	}()

	err := f.cfg.Save(ctx, updated)

	f.mu.Lock()
	defer f.mu.Unlock()
	settled = true
	if f.gen != gen {
		return Notice{}, ErrClosed
	}
	if err != nil {
		return f.fail(err, MessageFor(err)), err
	}
	f.close()
	return Notice{Kind: NoticeSuccess, Message: fmt.Sprintf("%q updated.", updated.Name)}, nil
}

// fail records a failure notice and schedules its dismissal. f.mu is held.
func (f *EditItem) fail(_ error, message string) Notice {
	n := Notice{Kind: NoticeError, Message: message}
	f.phase = PhaseFailed
	f.notice = &n
	f.stopDismiss()

	gen, shown := f.gen, f.notice
	f.dismiss = f.cfg.AfterFunc(NoticeTTL, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.gen == gen && f.notice == shown {
			f.notice = nil
			f.phase = PhaseIdle
			f.dismiss = nil
		}
	})
	return n
}

func validateEdit(d EditDraft) error {
	return validation.Errors{
		"name":     validation.Validate(strings.TrimSpace(d.Name), validation.Required.Error("Name is required.")),
		"quantity": validation.Validate(d.Quantity, validation.Min(0).Error("Quantity cannot be negative.")),
	}.Filter()
}
