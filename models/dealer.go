package models

// ListingPageRef is one page of a paginated listing.
type ListingPageRef struct {
	URL   string
	Index int
}

// Dealer is a shop-type seller discovered during a crawl. ID is crawl-local.
type Dealer struct {
	ID      int      `json:"id"`
	Name    string   `json:"dealer_name"`
	ShopURL string   `json:"shop_url"`
	Pages   []string `json:"dealers_pages"`
}
