package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"car_scrooper/models"
)

// PriceParseError is a price text that does not follow the site's
// "<digits with space thousands>[,<decimals>]<suffix>" format.
type PriceParseError struct {
	OfferID string
	Price   string
	Err     error
}

func (e *PriceParseError) Error() string {
	if e.OfferID != "" {
		return fmt.Sprintf("offer %s: cannot parse price %q: %v", e.OfferID, e.Price, e.Err)
	}
	return fmt.Sprintf("cannot parse price %q: %v", e.Price, e.Err)
}

func (e *PriceParseError) Unwrap() error {
	return e.Err
}

var thousandsSeparators = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")

// ParsePrice strips suffix, drops thousands separators and reads a comma as
// the decimal point: "45 900,50 PLN" is 45900.5.
func ParsePrice(text, suffix string) (float64, error) {
	if !strings.HasSuffix(text, suffix) {
		return 0, &PriceParseError{Price: text, Err: fmt.Errorf("missing suffix %q", suffix)}
	}

	number := strings.TrimSuffix(text, suffix)
	number = thousandsSeparators.Replace(number)
	number = strings.Replace(number, ",", ".", 1)
	if number == "" {
		return 0, &PriceParseError{Price: text, Err: fmt.Errorf("no amount")}
	}
	if strings.IndexFunc(number, func(r rune) bool { return (r < '0' || r > '9') && r != '.' }) >= 0 {
		return 0, &PriceParseError{Price: text, Err: fmt.Errorf("unexpected characters in %q", number)}
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, &PriceParseError{Price: text, Err: err}
	}
	return value, nil
}

// Aggregate sums offer prices per exact car model name. The first price that
// cannot be parsed aborts the whole aggregation: no totals beat wrong ones.
func Aggregate(snapshot models.Snapshot, suffix string) (models.AggregateTotals, error) {
	totals := make(models.AggregateTotals)

	// Sorted ids make the reported failure deterministic.
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		offer := snapshot[id]
		price, err := ParsePrice(offer.Price, suffix)
		if err != nil {
			if perr, ok := err.(*PriceParseError); ok {
				perr.OfferID = id
			}
			return nil, err
		}
		totals[offer.CarName] += price
	}

	return totals, nil
}
