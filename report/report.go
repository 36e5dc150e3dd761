// Package report renders crawl results for people: the HTML offer and price
// pages, the dealer directory and console tables.
package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"

	"github.com/dustin/go-humanize"

	"car_scrooper/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// FormatPrice renders an amount the way the site prints prices: space
// thousands separator, comma decimals.
func FormatPrice(v float64) string {
	return humanize.FormatFloat("# ###,##", v)
}

type offerRow struct {
	ID    string
	Offer models.Offer
	Sold  bool
}

type offersPage struct {
	Rows      []offerRow
	SoldCount int
	DiffedAt  string
}

// RenderOffers writes every known offer, sold ones flagged, ordered by id.
func RenderOffers(w io.Writer, diff models.DiffResult) error {
	page := offersPage{
		Rows:      make([]offerRow, 0, len(diff.AllCars)),
		SoldCount: len(diff.Sold),
		DiffedAt:  diff.DiffedAt,
	}
	for id, offer := range diff.AllCars {
		_, sold := diff.Sold[id]
		page.Rows = append(page.Rows, offerRow{ID: id, Offer: offer, Sold: sold})
	}
	sort.Slice(page.Rows, func(i, j int) bool { return page.Rows[i].ID < page.Rows[j].ID })

	if err := templates.ExecuteTemplate(w, "offers.html", page); err != nil {
		return fmt.Errorf("render offers: %w", err)
	}
	return nil
}

type totalRow struct {
	Model string
	Total string
}

type totalsPage struct {
	Rows       []totalRow
	GrandTotal string
	Suffix     string
}

// RenderTotals writes the summed price per model, ordered by model name.
func RenderTotals(w io.Writer, totals models.AggregateTotals, suffix string) error {
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	page := totalsPage{Suffix: suffix}
	var grand float64
	for _, name := range names {
		grand += totals[name]
		page.Rows = append(page.Rows, totalRow{Model: name, Total: FormatPrice(totals[name])})
	}
	page.GrandTotal = FormatPrice(grand)

	if err := templates.ExecuteTemplate(w, "cars.html", page); err != nil {
		return fmt.Errorf("render totals: %w", err)
	}
	return nil
}
