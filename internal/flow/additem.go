package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/maraudr/console/internal/metrics"
	"github.com/maraudr/console/internal/model"
	"github.com/maraudr/console/internal/stockapi"
)

// Mode is the entry mode of the add-item flow.
type Mode int

const (
	ModeBarcode Mode = iota
	ModeManual
)

func (m Mode) String() string {
	if m == ModeManual {
		return "manual"
	}
	return "barcode"
}

// ParseMode reads a mode from a form value. Anything but "manual" is barcode.
func ParseMode(s string) Mode {
	if s == "manual" {
		return ModeManual
	}
	return ModeBarcode
}

// Phase is where a flow is in its submit cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSubmitting:
		return "submitting"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

var (
	// ErrClosed is returned when a flow is used while closed, and when a
	// submission completes after its flow was closed.
	ErrClosed = errors.New("flow is closed")
	// ErrBusy is returned while a submission is in flight.
	ErrBusy = errors.New("submission already in progress")
)

// Creator is the part of the stock client the add-item flow needs.
type Creator interface {
	CreateItemFromBarcode(ctx context.Context, barcode, associationID string) (string, error)
	CreateItem(ctx context.Context, draft model.ItemDraft, associationID string) (string, error)
}

// Added describes a successful addition. Highlight is the string the stock
// list uses to highlight the new row: the barcode or the item name.
type Added struct {
	ItemID    string
	Highlight string
	Mode      Mode
}

// AddItemConfig wires an AddItem to its collaborators.
type AddItemConfig struct {
	Creator     Creator
	Association func() string // selected association id, "" when none
	OnAdded     func(Added)
	Metrics     *metrics.Collector
	AfterFunc   AfterFunc
}

// AddItemView is what the templates render.
type AddItemView struct {
	Open    bool
	Mode    Mode
	Phase   Phase
	Barcode string
	Draft   model.ItemDraft
	Notice  *Notice
}

// AddItem is the dual-mode add-item state machine.
type AddItem struct {
	cfg AddItemConfig

	mu      sync.Mutex
	open    bool
	mode    Mode
	phase   Phase
	barcode string
	draft   model.ItemDraft
	notice  *Notice
	gen     uint64 // bumped on every close; stale completions compare against it
	dismiss Timer
}

// NewAddItem creates a closed flow.
func NewAddItem(cfg AddItemConfig) *AddItem {
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = realAfterFunc
	}
	if cfg.Association == nil {
		cfg.Association = func() string { return "" }
	}
	return &AddItem{cfg: cfg, draft: model.ItemDraft{Quantity: model.InitialQuantity}}
}

// Open opens the flow. Going from closed to open always resets it to barcode
// mode with empty fields.
func (f *AddItem) Open() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		return
	}
	f.reset()
	f.open = true
}

// Close closes the flow, cancels its notice timer and discards any submission
// still in flight.
func (f *AddItem) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.close()
}

func (f *AddItem) close() {
	f.open = false
	f.gen++
	f.stopDismiss()
	f.notice = nil
	f.phase = PhaseIdle
}

func (f *AddItem) reset() {
	f.mode = ModeBarcode
	f.phase = PhaseIdle
	f.barcode = ""
	f.draft = model.ItemDraft{Quantity: model.InitialQuantity}
	f.notice = nil
	f.stopDismiss()
}

func (f *AddItem) stopDismiss() {
	if f.dismiss != nil {
		f.dismiss.Stop()
		f.dismiss = nil
	}
}

// View returns a copy of the flow state.
func (f *AddItem) View() AddItemView {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := AddItemView{
		Open:    f.open,
		Mode:    f.mode,
		Phase:   f.phase,
		Barcode: f.barcode,
		Draft:   f.draft,
	}
	if f.notice != nil {
		n := *f.notice
		v.Notice = &n
	}
	return v
}

// SetMode switches between barcode and manual entry. Entered fields are kept.
func (f *AddItem) SetMode(m Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open && f.phase != PhaseSubmitting {
		f.mode = m
	}
}

// SetBarcode fills the barcode field, from typing or from the scanner.
func (f *AddItem) SetBarcode(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		f.barcode = strings.TrimSpace(code)
	}
}

// SetDraft fills the manual fields. The quantity is not operator editable.
func (f *AddItem) SetDraft(d model.ItemDraft) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		d.Quantity = model.InitialQuantity
		f.draft = d
	}
}

// Submit runs the submission of the current mode. The returned notice is
// also kept in the flow until it is dismissed. On success the caller's
// OnAdded runs and the flow closes.
func (f *AddItem) Submit(ctx context.Context) (Notice, error) {
	associationID := f.cfg.Association()

	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return Notice{}, ErrClosed
	}
	if f.phase == PhaseSubmitting {
		f.mu.Unlock()
		return Notice{}, ErrBusy
	}

	mode, barcode, draft := f.mode, f.barcode, f.draft
	var err error
	if mode == ModeManual {
		err = validateManual(associationID, draft)
	} else {
		err = validateBarcode(associationID, barcode)
	}
	if err != nil {
		n := f.fail(err)
		f.mu.Unlock()
		f.cfg.Metrics.FlowSubmitted(mode.String(), "invalid")
		return n, err
	}

	f.stopDismiss()
	f.notice = nil
	f.phase = PhaseSubmitting
	gen := f.gen
	f.mu.Unlock()

	// The submitting phase is cleared on every path, panics included.
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

	var id, highlight string
	if mode == ModeManual {
		draft.Name = strings.TrimSpace(draft.Name)
		draft.Quantity = model.InitialQuantity
		highlight = draft.Name
		id, err = f.cfg.Creator.CreateItem(ctx, draft, associationID)
	} else {
		highlight = barcode
		id, err = f.cfg.Creator.CreateItemFromBarcode(ctx, barcode, associationID)
	}
	f.cfg.Metrics.FlowSubmitted(mode.String(), stockapi.Outcome(err))

	f.mu.Lock()
	settled = true
	if f.gen != gen {
		f.mu.Unlock()
		return Notice{}, ErrClosed
	}
	if err != nil {
		n := f.fail(err)
		f.mu.Unlock()
		return n, err
	}
	f.phase = PhaseSucceeded
	f.mu.Unlock()

	if f.cfg.OnAdded != nil {
		f.cfg.OnAdded(Added{ItemID: id, Highlight: highlight, Mode: mode})
	}

	f.mu.Lock()
	if f.gen == gen {
		f.close()
	}
	f.mu.Unlock()

	return Notice{Kind: NoticeSuccess, Message: fmt.Sprintf("%q added to the stock.", highlight)}, nil
}

// fail records a failure notice and schedules its dismissal. f.mu is held.
func (f *AddItem) fail(err error) Notice {
	n := Notice{Kind: NoticeError, Message: MessageFor(err)}
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

func validateBarcode(associationID, barcode string) error {
	return validation.Errors{
		"association": validation.Validate(associationID, validation.Required.Error(msgNoAssociation)),
		"barcode":     validation.Validate(strings.TrimSpace(barcode), validation.Required.Error("Enter or scan a barcode.")),
	}.Filter()
}

func validateManual(associationID string, d model.ItemDraft) error {
	return validation.Errors{
		"association": validation.Validate(associationID, validation.Required.Error(msgNoAssociation)),
		"name":        validation.Validate(strings.TrimSpace(d.Name), validation.Required.Error("Name is required.")),
		"category": validation.Validate(int(d.Category),
			validation.Min(int(model.CategoryUnknown)).Error("Choose a category."),
			validation.Max(int(model.CategoryClothes)).Error("Choose a category."),
		),
	}.Filter()
}
