package scraper

import (
	"context"
	"fmt"
	"time"

	"car_scrooper/config"
	"car_scrooper/logging"
	"car_scrooper/models"
)

// CrawlStats summarizes one crawl.
type CrawlStats struct {
	PagesVisited      int
	ListingPages      int
	DealersDiscovered int
	DealersDropped    int
	EmptyPages        int
	OffersSkipped     int
}

type CrawlResult struct {
	Dealers  []models.Dealer
	Snapshot models.Snapshot
	Stats    CrawlStats
}

// Crawler runs pagination, dealer discovery, dealer profiling and offer
// collection for one site, strictly in sequence.
type Crawler struct {
	site    *config.SiteConfig
	fetcher *countingFetcher

	paginator  *Paginator
	discoverer *DealerDiscoverer
	profiler   *DealerProfiler
	collector  *OfferCollector
}

func NewCrawler(site *config.SiteConfig, fetcher Fetcher, now func() time.Time) *Crawler {
	counting := &countingFetcher{inner: fetcher}
	paginator := NewPaginator(site.Selectors)

	return &Crawler{
		site:       site,
		fetcher:    counting,
		paginator:  paginator,
		discoverer: NewDealerDiscoverer(counting, site.Selectors),
		profiler:   NewDealerProfiler(counting, paginator, site.Selectors),
		collector:  NewOfferCollector(counting, site.Selectors, site.PageLevelPrice, now),
	}
}

func (c *Crawler) Crawl(ctx context.Context) (*CrawlResult, error) {
	result := &CrawlResult{}

	var pages []models.ListingPageRef
	err := stage("Creating pagination links for main page", func() error {
		first, err := c.fetcher.Fetch(ctx, c.site.BaseURL)
		if err != nil {
			return err
		}
		pages, err = c.paginator.ListingPages(c.site.BaseURL, first)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("pagination: %w", err)
	}
	result.Stats.ListingPages = len(pages)
	logging.Infof("%d listing pages", len(pages))

	var shops []string
	err = stage("Getting dealers shop links", func() error {
		shops, err = c.discoverer.Discover(ctx, pages)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("dealer discovery: %w", err)
	}
	result.Stats.DealersDiscovered = len(shops)
	logging.Infof("%d distinct dealer shops", len(shops))

	err = stage("Getting information about all dealers", func() error {
		result.Dealers, result.Stats.DealersDropped, err = c.profiler.Profile(ctx, shops)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("dealer profiles: %w", err)
	}

	err = stage("Getting information about dealers offers", func() error {
		var collectStats CollectStats
		result.Snapshot, collectStats, err = c.collector.Collect(ctx, result.Dealers)
		result.Stats.EmptyPages = collectStats.EmptyPages
		result.Stats.OffersSkipped = collectStats.OffersSkipped
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("offer collection: %w", err)
	}

	result.Stats.PagesVisited = c.fetcher.count
	return result, nil
}

// stage logs START/FINISHED around fn with the elapsed time.
func stage(name string, fn func() error) error {
	logging.Infof("(START) %s.", name)
	start := time.Now()
	if err := fn(); err != nil {
		logging.Errorf("(FAILED) %s after %.2f sec: %v", name, time.Since(start).Seconds(), err)
		return err
	}
	logging.Infof("FINISHED after %.2f sec.", time.Since(start).Seconds())
	return nil
}
