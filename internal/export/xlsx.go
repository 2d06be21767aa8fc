// Package export writes an association's item list as a spreadsheet.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/maraudr/console/internal/chart"
	"github.com/maraudr/console/internal/model"
)

const (
	itemsSheet   = "Items"
	summarySheet = "Summary"
)

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Filename suggests a download name for an association's export.
func Filename(associationName string, at time.Time) string {
	if associationName == "" {
		associationName = "stock"
	}
	return fmt.Sprintf("%s-%s.xlsx", associationName, at.Format("2006-01-02"))
}

// WriteItems writes items and a per-category summary to w.
func WriteItems(w io.Writer, items []model.StockItem) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, itemsSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}

	header := []any{"Name", "Category", "Quantity", "Barcode", "Description", "Entry date", "ID"}
	if err := f.SetSheetRow(itemsSheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, it := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		var entry any
		if !it.EntryDate.IsZero() {
			entry = it.EntryDate.Format("2006-01-02 15:04")
		}
		row := []any{it.Name, it.Category.String(), it.Quantity, it.BarCode, it.Description, entry, it.ID}
		if err := f.SetSheetRow(itemsSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if err := writeSummary(f, items); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, items []model.StockItem) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}

	header := []any{"Category", "Quantity"}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return fmt.Errorf("writing summary header: %w", err)
	}

	points := chart.ByCategory(items, nil)
	for i, p := range points {
		row := []any{p.Label, p.Value}
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("writing summary row: %w", err)
		}
	}

	total := []any{"Total", chart.Total(points)}
	return f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", len(points)+2), &total)
}
