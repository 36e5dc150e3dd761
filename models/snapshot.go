package models

import "encoding/json"

// TimestampLayout is the DD.MM.YYYY, HH:MM:SS format stamped on collected offers.
const TimestampLayout = "02.01.2006, 15:04:05"

// Offer is a single dealer car offer. ID is the site-assigned offer id and is
// the only identity that survives between crawls; on disk it is the map key.
// Fields are in JSON key order so encoded files have sorted keys throughout.
type Offer struct {
	ID          string `json:"-"`
	CarName     string `json:"car_name"`
	CollectedAt string `json:"collected_date"`
	DealerName  string `json:"dealer_name"`
	Link        string `json:"offer_link"`
	Price       string `json:"offer_price"`
}

// UnmarshalJSON also reads the collected_data key written by older crawls.
func (o *Offer) UnmarshalJSON(data []byte) error {
	type offer Offer
	var aux struct {
		offer
		LegacyCollectedAt string `json:"collected_data"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*o = Offer(aux.offer)
	if o.CollectedAt == "" {
		o.CollectedAt = aux.LegacyCollectedAt
	}
	return nil
}

// Snapshot is every offer collected in one crawl, keyed by offer id.
type Snapshot map[string]Offer

// SoldSet holds offers of the previous snapshot whose ids vanished from the
// current one. It is a heuristic: a vanished id is not a confirmed sale.
type SoldSet map[string]Offer

// DiffResult is what the offers report is rendered from.
type DiffResult struct {
	AllCars  Snapshot `json:"all_cars"`
	Sold     SoldSet  `json:"sold_cars"`
	DiffedAt string   `json:"sold_date"`
}

// AggregateTotals maps an exact car model name to the summed offer price.
type AggregateTotals map[string]float64
