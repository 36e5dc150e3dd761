package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"car_scrooper/models"
)

const (
	shopAutoHandel = "https://autohandel.otomoto.pl"
	shopNoName     = "https://nonamecars.otomoto.pl"
	shopCarCenter  = "https://carcenter.otomoto.pl/"
)

func listingRefs() []models.ListingPageRef {
	return []models.ListingPageRef{
		{URL: testBaseURL, Index: 1},
		{URL: testBaseURL + "&page=2", Index: 2},
	}
}

func TestDealerDiscoverer_DedupsInFirstSeenOrder(t *testing.T) {
	fetcher := newFakeFetcher(t, map[string]string{
		testBaseURL:             "listing_page1.html",
		testBaseURL + "&page=2": "listing_page2.html",
	})

	shops, err := NewDealerDiscoverer(fetcher, testSelectors()).Discover(context.Background(), listingRefs())
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	// The private seller and the dealer entry without a seller link are skipped.
	want := []string{shopAutoHandel, shopNoName, shopCarCenter}
	if diff := cmp.Diff(want, shops); diff != "" {
		t.Fatalf("shops mismatch (-want +got):\n%s", diff)
	}
}

func TestDealerDiscoverer_FetchErrorIsFatal(t *testing.T) {
	fetcher := newFakeFetcher(t, map[string]string{testBaseURL: "listing_page1.html"})

	_, err := NewDealerDiscoverer(fetcher, testSelectors()).Discover(context.Background(), listingRefs())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestDealerProfiler_DropsNamelessDealers(t *testing.T) {
	fetcher := newFakeFetcher(t, map[string]string{
		shopAutoHandel: "dealer_autohandel.html",
		shopNoName:     "dealer_noname.html",
		shopCarCenter:  "dealer_carcenter.html",
	})
	sel := testSelectors()
	profiler := NewDealerProfiler(fetcher, NewPaginator(sel), sel)

	dealers, dropped, err := profiler.Profile(context.Background(), []string{shopAutoHandel, shopNoName, shopCarCenter})
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("expected 1 dropped dealer, got %d", dropped)
	}

	want := []models.Dealer{
		{
			ID:      0,
			Name:    "Auto Handel Poznań",
			ShopURL: shopAutoHandel,
			Pages:   []string{shopAutoHandel, shopAutoHandel + "/shop/?page=2"},
		},
		{
			ID:      2,
			Name:    "Car Center",
			ShopURL: shopCarCenter,
			Pages:   []string{shopCarCenter},
		},
	}
	if diff := cmp.Diff(want, dealers); diff != "" {
		t.Fatalf("dealers mismatch (-want +got):\n%s", diff)
	}
}

func TestDealerProfiler_MalformedPaginationDropsDealer(t *testing.T) {
	fetcher := newFakeFetcher(t, map[string]string{
		shopAutoHandel: "dealer_bad_pager.html",
		shopCarCenter:  "dealer_carcenter.html",
	})
	sel := testSelectors()
	profiler := NewDealerProfiler(fetcher, NewPaginator(sel), sel)

	dealers, dropped, err := profiler.Profile(context.Background(), []string{shopAutoHandel, shopCarCenter})
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if dropped != 1 || len(dealers) != 1 {
		t.Fatalf("expected the malformed dealer dropped, got %d dealers, %d dropped", len(dealers), dropped)
	}
	if dealers[0].ID != 1 {
		t.Fatalf("expected surviving dealer to keep id 1, got %d", dealers[0].ID)
	}
}

func TestDealerProfiler_FetchErrorIsFatal(t *testing.T) {
	fetcher := newFakeFetcher(t, map[string]string{shopAutoHandel: "dealer_autohandel.html"})
	sel := testSelectors()

	_, _, err := NewDealerProfiler(fetcher, NewPaginator(sel), sel).Profile(context.Background(), []string{shopAutoHandel, shopCarCenter})
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}
