package chart

import (
	"errors"
	"slices"

	"github.com/maraudr/console/internal/model"
)

// Mode selects how the chart aggregates.
type Mode int

const (
	ModeByCategory Mode = iota
	ModeByItem
)

func (m Mode) String() string {
	if m == ModeByItem {
		return "item"
	}
	return "category"
}

// ParseMode reads a mode from a query value.
func ParseMode(s string) Mode {
	if s == "item" {
		return ModeByItem
	}
	return ModeByCategory
}

// ErrNoCategory is returned when items are selected before a single category
// is chosen.
var ErrNoCategory = errors.New("choose a category before selecting items")

// View is the chart's selection state.
type View struct {
	Mode     Mode
	Category *model.Category // nil means all categories
	Selected []string        // item ids, by-item mode only
}

// SetMode switches the aggregation mode. Entering by-item mode without a
// category selects the category of the first item that has a known one.
func (v *View) SetMode(m Mode, items []model.StockItem) {
	v.Mode = m
	if m != ModeByItem {
		v.Selected = nil
		return
	}
	if v.Category != nil {
		return
	}
	for _, it := range items {
		if it.Category.Known() && it.Category != model.CategoryUnknown {
			c := it.Category
			v.Category = &c
			return
		}
	}
}

// SetCategory restricts the chart to one category, or lifts the restriction
// when c is nil. The item selection is cleared on every change since it
// belongs to the previous category.
func (v *View) SetCategory(c *model.Category) {
	if c != nil && (!c.Known() || *c == model.CategoryUnknown) {
		c = nil
	}
	if sameCategory(v.Category, c) {
		return
	}
	if c != nil {
		cc := *c
		c = &cc
	}
	v.Category = c
	v.Selected = nil
}

func sameCategory(a, b *model.Category) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ToggleItem adds or removes an item from the by-item selection. Items of
// other categories are ignored.
func (v *View) ToggleItem(id string, items []model.StockItem) error {
	if v.Mode != ModeByItem || v.Category == nil {
		return ErrNoCategory
	}
	if i := slices.Index(v.Selected, id); i >= 0 {
		v.Selected = slices.Delete(slices.Clone(v.Selected), i, i+1)
		return nil
	}
	for _, it := range items {
		if it.ID == id && it.Category == *v.Category {
			v.Selected = append(slices.Clone(v.Selected), id)
			return nil
		}
	}
	return nil
}

// Points computes the series for the current selection.
func (v View) Points(items []model.StockItem) []Point {
	if v.Mode == ModeByItem {
		if v.Category == nil {
			return nil
		}
		return ByItem(items, *v.Category, v.Selected)
	}
	return ByCategory(items, v.Category)
}

// Choices lists the items selectable in by-item mode.
func (v View) Choices(items []model.StockItem) []model.StockItem {
	if v.Mode != ModeByItem || v.Category == nil {
		return nil
	}
	var out []model.StockItem
	for _, it := range items {
		if it.Category == *v.Category {
			out = append(out, it)
		}
	}
	return out
}

// IsSelected reports whether the item is part of the by-item selection.
func (v View) IsSelected(id string) bool {
	return slices.Contains(v.Selected, id)
}
