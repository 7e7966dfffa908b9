// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "time"

// ListingItem is one raw listing submitted for ingest. ObservedAt lets
// delayed batches carry the original scrape time; when absent the server
// stamps the listing at ingest time.
type ListingItem struct {
	Platform     string     `json:"platform" validate:"required"`
	Title        string     `json:"title" validate:"required_without=URL,max=2048"`
	URL          string     `json:"url,omitempty" validate:"omitempty,max=4096"`
	Price        *float64   `json:"price,omitempty" validate:"omitempty,gte=0"`
	Currency     string     `json:"currency,omitempty" validate:"omitempty,len=3"`
	Rating       *float64   `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	ReviewCount  *int       `json:"review_count,omitempty" validate:"omitempty,gte=0"`
	Availability *string    `json:"availability,omitempty"`
	Category     *string    `json:"category,omitempty"`
	Brand        *string    `json:"brand,omitempty"`
	ObservedAt   *time.Time `json:"observed_at,omitempty"`
}

// IngestListingsRequest submits one scraped batch for canonical ingest
type IngestListingsRequest struct {
	Kind     string        `json:"kind" validate:"required,oneof=discovery monitoring"`
	Query    string        `json:"query,omitempty" validate:"omitempty,max=512"`
	Keyword  string        `json:"keyword,omitempty" validate:"omitempty,max=512"`
	Listings []ListingItem `json:"listings" validate:"required,min=1,dive"`
}

// IngestListingsResponse reports the outcome of one ingest batch
type IngestListingsResponse struct {
	Message         string `json:"message"`
	SessionID       string `json:"session_id"`
	ProductsFound   int    `json:"products_found"`
	ProductsAdded   int    `json:"products_added"`
	ListingsSkipped int    `json:"listings_skipped"`
}

// IngestSessionDTO represents one recorded ingest session
type IngestSessionDTO struct {
	SessionID       string `json:"session_id"`
	Kind            string `json:"kind"`
	Query           string `json:"query,omitempty"`
	StartedAt       string `json:"started_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
	ProductsFound   int    `json:"products_found"`
	ProductsAdded   int    `json:"products_added"`
	ListingsSkipped int    `json:"listings_skipped"`
	Status          string `json:"status"`
}

// ListIngestSessionsResponse wraps recent ingest sessions
type ListIngestSessionsResponse struct {
	Message string             `json:"message"`
	Items   []IngestSessionDTO `json:"items"`
}
