package scraper

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a fetched document that can be queried with CSS selectors.
// Queries with no match return an empty selection, never an error.
type Page struct {
	URL string
	doc *goquery.Document
}

func NewPage(pageURL string, r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &PageStructureError{URL: pageURL, Element: "document", Err: err}
	}
	return &Page{URL: pageURL, doc: doc}, nil
}

func (p *Page) Find(selector string) *goquery.Selection {
	return p.doc.Find(selector)
}

// Text returns the whitespace-normalized text of the first match.
func (p *Page) Text(selector string) string {
	return normalizeSpace(p.doc.Find(selector).First().Text())
}

// Resolve turns href into an absolute URL relative to the page.
func (p *Page) Resolve(href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil || ref.IsAbs() {
		return href
	}
	base, err := url.Parse(p.URL)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// normalizeSpace collapses every whitespace run to a single space.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
