package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"car_scrooper/models"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// WriteDealerDirectory writes the title line followed by a table of dealers.
func WriteDealerDirectory(w io.Writer, title string, dealers []models.Dealer) error {
	if _, err := fmt.Fprintf(w, "%s\n\n", title); err != nil {
		return err
	}

	t := newTable(w)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"ID", "Dealer", "Pages", "Shop"})
	for _, d := range dealers {
		t.AppendRow(table.Row{d.ID, d.Name, len(d.Pages), d.ShopURL})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d dealers", len(dealers)), "", ""})
	t.Render()
	return nil
}

// Summary is what one pipeline run produced, for the console.
type Summary struct {
	Run          *models.CrawlRun
	ListingPages int
	Dropped      int
	Skipped      int
	Totals       models.AggregateTotals
	PriceSuffix  string
	Files        []string
}

// PrintSummary writes the run counters and, when present, the top models by
// total offer value.
func PrintSummary(w io.Writer, s Summary, topModels int) {
	t := newTable(w)
	t.SetTitle("%s run %s", s.Run.SiteID, s.Run.Status)
	t.AppendRows([]table.Row{
		{"Started", s.Run.StartedAt.Format(models.TimestampLayout)},
		{"Duration", s.Run.Duration().Round(time.Millisecond)},
		{"Pages fetched", humanize.Comma(int64(s.Run.PagesVisited))},
		{"Listing pages", s.ListingPages},
		{"Dealers", fmt.Sprintf("%d (%d dropped)", s.Run.DealersFound, s.Dropped)},
		{"Offers", fmt.Sprintf("%s (%d skipped)", humanize.Comma(int64(s.Run.OffersFound)), s.Skipped)},
		{"Sold", s.Run.OffersSold},
	})
	if s.Run.ErrorMessage != "" {
		t.AppendRow(table.Row{"Error", s.Run.ErrorMessage})
	}
	for _, f := range s.Files {
		t.AppendRow(table.Row{"Report", f})
	}
	t.Render()

	if len(s.Totals) == 0 || topModels <= 0 {
		return
	}

	top := newTable(w)
	top.SetTitle("Top models by offer value")
	top.AppendHeader(table.Row{"#", "Model", "Total"})
	top.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight}})
	for i, m := range TopModels(s.Totals, topModels) {
		top.AppendRow(table.Row{i + 1, m, FormatPrice(s.Totals[m]) + s.PriceSuffix})
	}
	top.Render()
}

// TopModels returns up to n model names by descending total, ties by name.
func TopModels(totals models.AggregateTotals, n int) []string {
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if totals[names[i]] != totals[names[j]] {
			return totals[names[i]] > totals[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}

// RunsTable lists crawl runs, newest first as given.
func RunsTable(w io.Writer, runs []models.CrawlRun) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Site", "Started", "Status", "Duration", "Pages", "Dealers", "Offers", "Sold", "Error"})
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.Duration().Round(time.Second).String()
		}
		t.AppendRow(table.Row{
			r.ID, r.SiteID, r.StartedAt.Local().Format(models.TimestampLayout), r.Status, duration,
			r.PagesVisited, r.DealersFound, r.OffersFound, r.OffersSold, text.Trim(r.ErrorMessage, 60),
		})
	}
	t.Render()
}
