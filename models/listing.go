package models

import "time"

// Listing is one scraped property in the canonical schema.
// Price is 0 when the price text did not convert to a number; Rooms and
// Size are nil when the portal did not publish them or they did not convert.
type Listing struct {
	URL         string  `validate:"required,http_url"`
	Price       float64 `validate:"gt=0"`
	RawPrice    string
	Location    string   `validate:"max=500"`
	Rooms       *int     `validate:"omitempty,gte=0,lte=100"`
	Size        *float64 `validate:"omitempty,gt=0"`
	Description string
	RetrievedAt time.Time `validate:"required"`
}

type ScrapeJob struct {
	URL        string
	PageNumber int
}

// ScrapeResult is what one worker reports for one page.
type ScrapeResult struct {
	URL           string
	PageNumber    int
	StatusCode    int
	Listings      []Listing
	ParseFailures int
	Error         error
}

func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }
