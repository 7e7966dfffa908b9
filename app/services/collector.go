package services

import (
	"context"
	"sync"

	"github.com/amane-dev/kakaku-tracker/models"
)

// Collector delivers raw marketplace listings. Implementations wrap a scraper
// provider; the mock variant serves tests and local runs.
type Collector interface {
	// Search returns listings matching a keyword on one platform, capped at
	// maxResults.
	Search(ctx context.Context, platform models.Platform, keyword string, maxResults int) ([]models.RawListing, error)
	// Lookup re-checks one known product by its monitoring URL. A nil listing
	// with nil error means the product was not found on the platform.
	Lookup(ctx context.Context, platform models.Platform, url string) (*models.RawListing, error)
}

// MockCollector implements Collector for testing and local development. It
// serves pre-seeded listings and records every call.
type MockCollector struct {
	mu sync.Mutex

	searchResults map[string][]models.RawListing
	lookupResults map[string]*models.RawListing
	searchErr     error
	lookupErr     error

	SearchCalls []MockSearchCall
	LookupCalls []MockLookupCall
}

// MockSearchCall records one Search invocation
type MockSearchCall struct {
	Platform   models.Platform
	Keyword    string
	MaxResults int
}

// MockLookupCall records one Lookup invocation
type MockLookupCall struct {
	Platform models.Platform
	URL      string
}

// NewMockCollector creates a new mock collector
func NewMockCollector() *MockCollector {
	return &MockCollector{
		searchResults: make(map[string][]models.RawListing),
		lookupResults: make(map[string]*models.RawListing),
	}
}

// SeedSearch registers the listings returned for a platform and keyword pair
func (c *MockCollector) SeedSearch(platform models.Platform, keyword string, listings []models.RawListing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchResults[string(platform)+"|"+keyword] = listings
}

// SeedLookup registers the listing returned for a monitoring URL
func (c *MockCollector) SeedLookup(url string, listing *models.RawListing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookupResults[url] = listing
}

// FailWith makes subsequent calls return the given errors
func (c *MockCollector) FailWith(searchErr, lookupErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchErr = searchErr
	c.lookupErr = lookupErr
}

// Search returns the seeded listings for the platform and keyword
func (c *MockCollector) Search(ctx context.Context, platform models.Platform, keyword string, maxResults int) ([]models.RawListing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.SearchCalls = append(c.SearchCalls, MockSearchCall{Platform: platform, Keyword: keyword, MaxResults: maxResults})
	if c.searchErr != nil {
		return nil, c.searchErr
	}

	listings := c.searchResults[string(platform)+"|"+keyword]
	if maxResults > 0 && len(listings) > maxResults {
		listings = listings[:maxResults]
	}
	return listings, nil
}

// Lookup returns the seeded listing for the URL, or nil when none was seeded
func (c *MockCollector) Lookup(ctx context.Context, platform models.Platform, url string) (*models.RawListing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.LookupCalls = append(c.LookupCalls, MockLookupCall{Platform: platform, URL: url})
	if c.lookupErr != nil {
		return nil, c.lookupErr
	}
	return c.lookupResults[url], nil
}
