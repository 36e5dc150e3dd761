package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"car_scrooper/config"
	"car_scrooper/logging"
	"car_scrooper/models"
)

const offerIDAttr = "data-ad-id"

// CollectStats counts what the collector skipped.
type CollectStats struct {
	EmptyPages    int
	OffersSkipped int
}

// OfferCollector reads every offer from every page of every dealer.
//
// By default each offer's price comes from its own offer card. With
// pageLevelPrice the first price on the page is applied to all offers of
// that page, which is how the site's legacy markup was read.
type OfferCollector struct {
	fetcher        Fetcher
	sel            config.Selectors
	pageLevelPrice bool
	now            func() time.Time
}

func NewOfferCollector(fetcher Fetcher, sel config.Selectors, pageLevelPrice bool, now func() time.Time) *OfferCollector {
	if now == nil {
		now = time.Now
	}
	return &OfferCollector{
		fetcher:        fetcher,
		sel:            sel,
		pageLevelPrice: pageLevelPrice,
		now:            now,
	}
}

func (c *OfferCollector) Collect(ctx context.Context, dealers []models.Dealer) (models.Snapshot, CollectStats, error) {
	snapshot := make(models.Snapshot)
	var stats CollectStats

	for _, dealer := range dealers {
		for pageNum, pageURL := range dealer.Pages {
			page, err := c.fetcher.Fetch(ctx, pageURL)
			if err != nil {
				return nil, stats, fmt.Errorf("dealer %d page %d: %w", dealer.ID, pageNum+1, err)
			}

			anchors := page.Find(c.sel.OfferLink)
			if anchors.Length() == 0 {
				stats.EmptyPages++
				logging.Debugf("Dealer %d page %d: no offers", dealer.ID, pageNum+1)
				continue
			}

			var pagePrice string
			if c.pageLevelPrice {
				pagePrice = page.Text(c.sel.OfferPrice)
			}
			collectedAt := c.now().Format(models.TimestampLayout)

			anchors.Each(func(_ int, anchor *goquery.Selection) {
				offer, err := c.readOffer(page, anchor, pagePrice)
				if err != nil {
					stats.OffersSkipped++
					return
				}
				offer.DealerName = dealer.Name
				offer.CollectedAt = collectedAt
				snapshot[offer.ID] = *offer
			})
		}
	}

	return snapshot, stats, nil
}

func (c *OfferCollector) readOffer(page *Page, anchor *goquery.Selection, pagePrice string) (*models.Offer, error) {
	id := strings.TrimSpace(anchor.AttrOr(offerIDAttr, ""))
	if id == "" {
		return nil, ErrMissingField
	}

	price := pagePrice
	if !c.pageLevelPrice {
		price = normalizeSpace(anchor.Closest(c.sel.OfferItem).Find(c.sel.OfferPrice).First().Text())
	}
	if price == "" {
		logging.Warnf("Offer %s on %s has no price, skipping", id, page.URL)
		return nil, ErrMissingField
	}

	return &models.Offer{
		ID:      id,
		Link:    page.Resolve(anchor.AttrOr("href", "")),
		CarName: strings.TrimSpace(anchor.AttrOr("title", "")),
		Price:   price,
	}, nil
}
