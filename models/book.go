// Package models defines data structures for the scraper.
package models

import "time"

// Book is the record extracted from one detail page. Every field is
// optional: nil means the page did not carry the markup for it.
type Book struct {
	Title         *string  `json:"title"`
	Price         *float64 `json:"price"`
	AmountInStock *int     `json:"amount_in_stock"`
	Rating        *int     `json:"rating"`
	Category      *string  `json:"category"`
	Description   *string  `json:"description"`
	UPC           *string  `json:"upc"`

	// URL and ScrapedAt are set by the scheduler and are not part of the
	// record payload.
	URL       string    `json:"-"`
	ScrapedAt time.Time `json:"-"`
}

// RecordKeys lists the record payload keys in output order.
var RecordKeys = []string{
	"title",
	"price",
	"amount_in_stock",
	"rating",
	"category",
	"description",
	"upc",
}

// ScraperResult holds the overall result of a scraping operation
type ScraperResult struct {
	RunID          string
	StartTime      time.Time
	EndTime        time.Time
	TotalCount     int
	ErrorCount     int
	FailedURLs     []string
	ErrorsByType   map[string]int
	RetryCount     int
	RequestCount   int
	PageCount      int
	DetailCount    int
	MissingByField map[string]int
	DuplicateCount int
}
