package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"car_scrooper/config"
	"car_scrooper/logging"
	"car_scrooper/models"
)

// DealerDiscoverer walks listing pages and collects the shop links of
// dealer-marked entries. Private sellers are ignored.
type DealerDiscoverer struct {
	fetcher Fetcher
	sel     config.Selectors
}

func NewDealerDiscoverer(fetcher Fetcher, sel config.Selectors) *DealerDiscoverer {
	return &DealerDiscoverer{fetcher: fetcher, sel: sel}
}

// Discover returns distinct shop URLs in order of first appearance.
func (d *DealerDiscoverer) Discover(ctx context.Context, pages []models.ListingPageRef) ([]string, error) {
	var shops []string
	seen := make(map[string]struct{})

	for _, ref := range pages {
		page, err := d.fetcher.Fetch(ctx, ref.URL)
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", ref.Index, err)
		}

		skipped := 0
		page.Find(d.sel.DealerEntry).Each(func(_ int, entry *goquery.Selection) {
			link, err := d.sellerLink(page, entry)
			if err != nil {
				skipped++
				return
			}
			if _, dup := seen[link]; dup {
				return
			}
			seen[link] = struct{}{}
			shops = append(shops, link)
		})

		if skipped > 0 {
			logging.Debugf("Listing page %d: %d dealer entries without seller link", ref.Index, skipped)
		}
	}

	return shops, nil
}

func (d *DealerDiscoverer) sellerLink(page *Page, entry *goquery.Selection) (string, error) {
	href, ok := entry.Find(d.sel.SellerLink).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", ErrMissingField
	}
	return page.Resolve(href), nil
}

// DealerProfiler turns shop URLs into dealer records: display name plus the
// URLs of every page of the dealer's own offer listing.
type DealerProfiler struct {
	fetcher   Fetcher
	paginator *Paginator
	sel       config.Selectors
}

func NewDealerProfiler(fetcher Fetcher, paginator *Paginator, sel config.Selectors) *DealerProfiler {
	return &DealerProfiler{fetcher: fetcher, paginator: paginator, sel: sel}
}

// Profile returns one dealer per usable shop URL and the number of shops
// dropped. Dealer ids are the position of the shop URL in the input.
func (p *DealerProfiler) Profile(ctx context.Context, shopURLs []string) ([]models.Dealer, int, error) {
	var dealers []models.Dealer
	dropped := 0

	for id, shopURL := range shopURLs {
		dealer, err := p.profile(ctx, id, shopURL)
		if err == nil {
			dealers = append(dealers, *dealer)
			continue
		}

		var structErr *PageStructureError
		switch {
		case errors.Is(err, ErrMissingField):
			logging.Warnf("Dealer %s has no name, skipping", shopURL)
		case errors.As(err, &structErr):
			logging.Warnf("Dealer %s: %v, skipping", shopURL, structErr)
		default:
			return nil, dropped, err
		}
		dropped++
	}

	return dealers, dropped, nil
}

func (p *DealerProfiler) profile(ctx context.Context, id int, shopURL string) (*models.Dealer, error) {
	page, err := p.fetcher.Fetch(ctx, shopURL)
	if err != nil {
		return nil, fmt.Errorf("dealer shop: %w", err)
	}

	name := page.Text(p.sel.DealerTitle)
	if name == "" {
		return nil, ErrMissingField
	}

	pages, err := p.paginator.DealerPages(shopURL, page)
	if err != nil {
		return nil, err
	}

	return &models.Dealer{
		ID:      id,
		Name:    name,
		ShopURL: shopURL,
		Pages:   pages,
	}, nil
}
