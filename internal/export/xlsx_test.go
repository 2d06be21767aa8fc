package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/maraudr/console/internal/model"
)

func TestWriteItems(t *testing.T) {
	items := []model.StockItem{
		{ID: "1", Name: "Rice", Category: model.CategoryFood, Quantity: 3, BarCode: "3017620422003",
			EntryDate: time.Date(2025, 3, 4, 10, 11, 0, 0, time.UTC)},
		{ID: "2", Name: "Water", Category: model.CategoryLiquid, Quantity: 12},
		{ID: "3", Name: "Mystery", Category: model.CategoryUnknown, Quantity: 7},
	}

	var buf bytes.Buffer
	if err := WriteItems(&buf, items); err != nil {
		t.Fatalf("WriteItems: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(itemsSheet)
	if err != nil {
		t.Fatalf("GetRows items: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header and 3 rows, got %d", len(rows))
	}
	if diff := cmp.Diff([]string{"Rice", "Food", "3", "3017620422003", "", "2025-03-04 10:11", "1"}, rows[1]); diff != "" {
		t.Errorf("first row mismatch (-want +got):\n%s", diff)
	}
	if rows[3][1] != "Unknown" {
		t.Errorf("expected Unknown label, got %q", rows[3][1])
	}

	summary, err := f.GetRows(summarySheet)
	if err != nil {
		t.Fatalf("GetRows summary: %v", err)
	}
	want := [][]string{
		{"Category", "Quantity"},
		{"Food", "3"},
		{"Liquid", "12"},
		{"Total", "15"},
	}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestFilename(t *testing.T) {
	at := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
	if got := Filename("Maraude Nord", at); got != "Maraude Nord-2025-06-07.xlsx" {
		t.Errorf("unexpected filename %q", got)
	}
	if got := Filename("", at); got != "stock-2025-06-07.xlsx" {
		t.Errorf("unexpected filename %q", got)
	}
}
