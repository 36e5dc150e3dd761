package scraper

import (
	"fmt"
	"strconv"
	"strings"

	"car_scrooper/config"
	"car_scrooper/models"
)

// Paginator reads the page count of a paginated listing and expands it into
// page URLs.
type Paginator struct {
	sel config.Selectors
}

func NewPaginator(sel config.Selectors) *Paginator {
	return &Paginator{sel: sel}
}

// PageCount returns 1 when the page has no pagination control. Otherwise the
// count is the trimmed text of the control's last numbered item, whether the
// control holds one item or many.
func (p *Paginator) PageCount(page *Page) (int, error) {
	control := page.Find(p.sel.Pagination).First()
	if control.Length() == 0 {
		return 1, nil
	}

	items := control.Find(p.sel.PaginationItem)
	if items.Length() == 0 {
		return 0, &PageStructureError{URL: page.URL, Element: p.sel.PaginationItem}
	}

	text := strings.TrimSpace(items.Last().Text())
	count, err := strconv.Atoi(text)
	if err != nil {
		return 0, &PageStructureError{URL: page.URL, Element: p.sel.PaginationItem, Err: err}
	}
	if count < 1 {
		return 0, &PageStructureError{
			URL:     page.URL,
			Element: p.sel.PaginationItem,
			Err:     fmt.Errorf("page count %d", count),
		}
	}
	return count, nil
}

// ListingPages expands a search result page into all of its page refs.
// Page 1 is base itself; page k appends page=k to the query.
func (p *Paginator) ListingPages(base string, page *Page) ([]models.ListingPageRef, error) {
	count, err := p.PageCount(page)
	if err != nil {
		return nil, err
	}

	refs := make([]models.ListingPageRef, 0, count)
	refs = append(refs, models.ListingPageRef{URL: base, Index: 1})
	for n := 2; n <= count; n++ {
		refs = append(refs, models.ListingPageRef{URL: listingPageURL(base, n), Index: n})
	}
	return refs, nil
}

// DealerPages expands a dealer shop page into the URLs of all its offer pages.
func (p *Paginator) DealerPages(shopURL string, page *Page) ([]string, error) {
	count, err := p.PageCount(page)
	if err != nil {
		return nil, err
	}

	pages := make([]string, 0, count)
	pages = append(pages, shopURL)
	for n := 2; n <= count; n++ {
		pages = append(pages, dealerPageURL(shopURL, n))
	}
	return pages, nil
}

func listingPageURL(base string, n int) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
		if strings.HasSuffix(base, "?") || strings.HasSuffix(base, "&") {
			sep = ""
		}
	}
	return fmt.Sprintf("%s%spage=%d", base, sep, n)
}

func dealerPageURL(shopURL string, n int) string {
	return fmt.Sprintf("%s/shop/?page=%d", strings.TrimSuffix(shopURL, "/"), n)
}
