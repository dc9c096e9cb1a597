// Package models defines the data structures shared by the crawler and the API.
package models

import "time"

// Book is one catalog entry. IDs are assigned in discovery order by the
// dataset builder; until then ID is zero and the record is considered partial.
type Book struct {
	ID           int     `csv:"id" json:"id"`
	Title        string  `csv:"title" json:"title"`
	Price        float64 `csv:"price" json:"price"`
	Rating       int     `csv:"rating" json:"rating"`
	Availability int     `csv:"availability" json:"availability"`
	Category     string  `csv:"category" json:"category"`
	ImageURL     string  `csv:"image_url" json:"image_url"`
	URL          string  `csv:"book_url" json:"book_url"`
}

// CrawlReport summarizes a crawl run, including runs that ended early.
type CrawlReport struct {
	StartTime    time.Time
	EndTime      time.Time
	PagesCrawled int
	ItemsFound   int
	ItemsKept    int
	ItemsSkipped int
	SkipsByKind  map[string]int
	ErrorsByType map[string]int
	FailedURLs   []string
	RetryCount   int
	RequestCount int

	// Aborted is set when a list page could not be fetched. The items
	// accumulated before the failure are still returned.
	Aborted     bool
	AbortReason string
}

// Duration returns the wall-clock duration of the run.
func (r *CrawlReport) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
