package scraper

import (
	"errors"
	"fmt"
)

// ErrMissingField marks an optional field that was absent. Records hitting it
// are dropped where they were read and never abort the crawl.
var ErrMissingField = errors.New("missing field")

// FetchError is a transport or HTTP failure. It aborts the run.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// PageStructureError means an element that must be present was not, e.g. a
// pagination control without a page count.
type PageStructureError struct {
	URL     string
	Element string
	Err     error
}

func (e *PageStructureError) Error() string {
	msg := fmt.Sprintf("page %s: malformed %q", e.URL, e.Element)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PageStructureError) Unwrap() error {
	return e.Err
}
