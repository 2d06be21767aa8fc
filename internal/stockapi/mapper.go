package stockapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/maraudr/console/internal/model"
)

// RawItem is an item record as the stock backend sends it. Depending on the
// endpoint the category arrives as "itemType" or "category", as a number or a
// string.
type RawItem struct {
	ID          flexString      `json:"id"`
	StockID     flexString      `json:"stockId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	BarCode     string          `json:"barCode"`
	ItemType    json.RawMessage `json:"itemType"`
	Category    json.RawMessage `json:"category"`
	EntryDate   string          `json:"entryDate"`
	Quantity    int             `json:"quantity"`
}

// ToCanonicalItem maps a backend record onto model.StockItem. "itemType" takes
// precedence over "category".
func ToCanonicalItem(raw RawItem) model.StockItem {
	category := raw.Category
	if present(raw.ItemType) {
		category = raw.ItemType
	}

	return model.StockItem{
		ID:          string(raw.ID),
		StockID:     string(raw.StockID),
		Name:        raw.Name,
		Description: raw.Description,
		BarCode:     raw.BarCode,
		Category:    coerceCategory(category),
		EntryDate:   parseEntryDate(raw.EntryDate),
		Quantity:    raw.Quantity,
	}
}

// decodeItem and decodeItems are the only places backend bytes become
// model.StockItem values.
func decodeItem(body []byte) (model.StockItem, error) {
	var raw RawItem
	if err := json.Unmarshal(body, &raw); err != nil {
		return model.StockItem{}, fmt.Errorf("decoding item: %w", err)
	}
	return ToCanonicalItem(raw), nil
}

func decodeItems(body []byte) ([]model.StockItem, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []model.StockItem{}, nil
	}

	// Some endpoints answer with a single record where a list is expected.
	if trimmed[0] == '{' {
		item, err := decodeItem(trimmed)
		if err != nil {
			return nil, err
		}
		return []model.StockItem{item}, nil
	}

	var raws []RawItem
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, fmt.Errorf("decoding items: %w", err)
	}
	items := make([]model.StockItem, 0, len(raws))
	for _, raw := range raws {
		items = append(items, ToCanonicalItem(raw))
	}
	return items, nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func coerceCategory(raw json.RawMessage) model.Category {
	if !present(raw) {
		return model.CategoryUnknown
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return model.CategoryUnknown
	}

	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return model.Category(n)
		}
		if f, err := x.Float64(); err == nil {
			if c, ok := model.ParseCategory(f); ok {
				return c
			}
		}
	case string:
		if c, ok := model.ParseCategory(x); ok {
			return c
		}
	}
	return model.CategoryUnknown
}

var entryDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseEntryDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range entryDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// flexString accepts a JSON string or number. Backend identifiers are opaque
// and not consistently typed across services.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
