package model

import (
	"strconv"
	"strings"
)

// Category classifies a stock item. Values match the backend's integer enum.
type Category int

// Categories, in declaration order.
const (
	CategoryUnknown Category = iota
	CategoryFood
	CategoryLiquid
	CategoryMedical
	CategoryClothes
)

// UnknownLabel is displayed for any category value outside the taxonomy.
const UnknownLabel = "Unknown"

var categoryLabels = [...]string{
	CategoryUnknown: UnknownLabel,
	CategoryFood:    "Food",
	CategoryLiquid:  "Liquid",
	CategoryMedical: "Medical",
	CategoryClothes: "Clothes",
}

// CategoryOption is a value/label pair used to populate selection controls.
type CategoryOption struct {
	Value Category `json:"value"`
	Label string   `json:"label"`
}

// AllCategories returns every known category in declaration order.
func AllCategories() []CategoryOption {
	opts := make([]CategoryOption, 0, len(categoryLabels))
	for v, label := range categoryLabels {
		opts = append(opts, CategoryOption{Value: Category(v), Label: label})
	}
	return opts
}

// SelectableCategories returns the known categories without Unknown. Charts and
// category filters only ever offer these.
func SelectableCategories() []CategoryOption {
	return AllCategories()[1:]
}

// Known reports whether c is one of the declared variants.
func (c Category) Known() bool {
	return c >= CategoryUnknown && int(c) < len(categoryLabels)
}

// String returns the category label, or UnknownLabel.
func (c Category) String() string {
	if !c.Known() {
		return UnknownLabel
	}
	return categoryLabels[c]
}

// CategoryName returns the label for a category value given as a Category, any
// integer type, or a string holding either a number or a label. Unrecognised
// input yields UnknownLabel.
func CategoryName(v any) string {
	c, ok := ParseCategory(v)
	if !ok {
		return UnknownLabel
	}
	return c.String()
}

// ParseCategory coerces v into a Category. Numeric input is kept as is even
// when it falls outside the taxonomy, so drifting backend values survive a
// round trip. Label strings are matched case-insensitively. The boolean is
// false only when v cannot be read as a category at all.
func ParseCategory(v any) (Category, bool) {
	switch x := v.(type) {
	case Category:
		return x, true
	case *Category:
		if x == nil {
			return CategoryUnknown, false
		}
		return *x, true
	case int:
		return Category(x), true
	case int8:
		return Category(x), true
	case int16:
		return Category(x), true
	case int32:
		return Category(x), true
	case int64:
		return Category(x), true
	case uint:
		return Category(x), true
	case uint8:
		return Category(x), true
	case uint16:
		return Category(x), true
	case uint32:
		return Category(x), true
	case uint64:
		return Category(x), true
	case float64:
		if x != float64(int64(x)) {
			return CategoryUnknown, false
		}
		return Category(int64(x)), true
	case float32:
		if x != float32(int64(x)) {
			return CategoryUnknown, false
		}
		return Category(int64(x)), true
	case string:
		return parseCategoryString(x)
	default:
		return CategoryUnknown, false
	}
}

func parseCategoryString(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CategoryUnknown, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Category(n), true
	}
	for v, label := range categoryLabels {
		if strings.EqualFold(label, s) {
			return Category(v), true
		}
	}
	return CategoryUnknown, false
}
