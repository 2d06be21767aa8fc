// Package chart derives the dashboard's quantity series and recent-history
// list from an association's item list. Items of the Unknown category never
// take part in aggregation.
package chart

import (
	"cmp"
	"slices"

	"github.com/dustin/go-humanize"

	"github.com/maraudr/console/internal/model"
)

// Point is one bar of the chart.
type Point struct {
	Label    string         `json:"label"`
	Value    int            `json:"value"`
	Category model.Category `json:"category"`
	ItemID   string         `json:"itemId,omitempty"` // set in by-item mode
}

// ByCategory sums quantities per category, in taxonomy order. When only is
// set, the other categories are left out. Categories without items produce no
// point.
func ByCategory(items []model.StockItem, only *model.Category) []Point {
	sums := make(map[model.Category]int)
	for _, it := range items {
		if !it.Category.Known() || it.Category == model.CategoryUnknown {
			continue
		}
		if only != nil && it.Category != *only {
			continue
		}
		sums[it.Category] += it.Quantity
	}

	var points []Point
	for _, opt := range model.SelectableCategories() {
		sum, ok := sums[opt.Value]
		if !ok {
			continue
		}
		points = append(points, Point{Label: opt.Label, Value: sum, Category: opt.Value})
	}
	return points
}

// ByItem lists the raw quantities of the selected items of one category, in
// list order.
func ByItem(items []model.StockItem, category model.Category, selected []string) []Point {
	if category == model.CategoryUnknown || !category.Known() {
		return nil
	}

	var points []Point
	for _, it := range items {
		if it.Category != category || !slices.Contains(selected, it.ID) {
			continue
		}
		points = append(points, Point{Label: it.Name, Value: it.Quantity, Category: it.Category, ItemID: it.ID})
	}
	return points
}

// Recent returns the n most recently entered items, newest first. It ignores
// every chart filter.
func Recent(items []model.StockItem, n int) []model.StockItem {
	n = max(n, 0)
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b model.StockItem) int {
		return cmp.Compare(b.EntryDate.UnixNano(), a.EntryDate.UnixNano())
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Bar is a Point laid out for rendering.
type Bar struct {
	Point
	Percent float64 // of the largest value, 0-100
	Display string
}

// Layout scales points against the largest value.
func Layout(points []Point) []Bar {
	peak := 0
	for _, p := range points {
		peak = max(peak, p.Value)
	}

	bars := make([]Bar, len(points))
	for i, p := range points {
		bars[i] = Bar{Point: p, Display: humanize.Comma(int64(p.Value))}
		if peak > 0 {
			bars[i].Percent = float64(max(p.Value, 0)) * 100 / float64(peak)
		}
	}
	return bars
}

// Total sums the values of points.
func Total(points []Point) int {
	total := 0
	for _, p := range points {
		total += p.Value
	}
	return total
}
