package model

import "time"

// StockItem is one inventory unit tracked in an association's stock.
type StockItem struct {
	ID          string    `json:"id"`
	StockID     string    `json:"stockId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	BarCode     string    `json:"barCode,omitempty"`
	Category    Category  `json:"category"`
	EntryDate   time.Time `json:"entryDate"`
	Quantity    int       `json:"quantity"`
}

// InitialQuantity is the quantity of every newly created item, whatever the
// entry mode.
const InitialQuantity = 1

// ItemDraft is the operator's description of an item to create manually.
type ItemDraft struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	BarCode     string   `json:"barCode,omitempty"`
	Category    Category `json:"category"`
	Quantity    int      `json:"quantity"`
}

// Association is an organisation the operator is a member of. Each
// association owns at most one stock.
type Association struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
