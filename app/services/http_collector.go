package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/amane-dev/kakaku-tracker/config"
	"github.com/amane-dev/kakaku-tracker/models"
	"github.com/amane-dev/kakaku-tracker/utils"
)

// HTTPCollector fetches listings from an external scraping provider over HTTP.
// The provider exposes a search endpoint per platform and a product lookup
// endpoint; both return listing payloads in the provider's JSON shape.
type HTTPCollector struct {
	cfg    *config.CollectorConfig
	client *http.Client
}

func NewHTTPCollector(cfg *config.CollectorConfig) *HTTPCollector {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCollector{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type collectorListing struct {
	Platform     string     `json:"platform"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	Price        *float64   `json:"price"`
	Currency     string     `json:"currency"`
	Rating       *float64   `json:"rating"`
	ReviewCount  *int       `json:"review_count"`
	Availability *string    `json:"availability"`
	Category     *string    `json:"category"`
	Brand        *string    `json:"brand"`
	ObservedAt   *time.Time `json:"observed_at"`
}

type collectorSearchResponse struct {
	Items []collectorListing `json:"items"`
}

// Search queries the provider's search endpoint for one platform and keyword
func (c *HTTPCollector) Search(ctx context.Context, platform models.Platform, keyword string, maxResults int) ([]models.RawListing, error) {
	u, err := url.Parse(c.cfg.BaseURL + "/v1/search")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("platform", string(platform))
	q.Set("keyword", keyword)
	if maxResults > 0 {
		q.Set("limit", fmt.Sprintf("%d", maxResults))
	}
	u.RawQuery = q.Encode()

	var out collectorSearchResponse
	if err := c.doJSON(ctx, u.String(), &out); err != nil {
		return nil, err
	}

	listings := make([]models.RawListing, 0, len(out.Items))
	for _, item := range out.Items {
		listings = append(listings, toDomainListing(platform, item))
	}
	if maxResults > 0 && len(listings) > maxResults {
		listings = listings[:maxResults]
	}
	return listings, nil
}

// Lookup re-checks one product page by URL. A 404 from the provider means the
// listing is gone; that is reported as nil, nil.
func (c *HTTPCollector) Lookup(ctx context.Context, platform models.Platform, productURL string) (*models.RawListing, error) {
	u, err := url.Parse(c.cfg.BaseURL + "/v1/lookup")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("platform", string(platform))
	q.Set("url", productURL)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("collector lookup http status: %d", resp.StatusCode)
	}

	var item collectorListing
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, err
	}
	listing := toDomainListing(platform, item)
	return &listing, nil
}

func (c *HTTPCollector) doJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector http status: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPCollector) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

func toDomainListing(platform models.Platform, item collectorListing) models.RawListing {
	if item.Platform != "" {
		platform = models.Platform(item.Platform)
	}
	currency := item.Currency
	if currency == "" {
		currency = utils.DefaultCurrency
	}
	var observedAt time.Time
	if item.ObservedAt != nil {
		observedAt = item.ObservedAt.UTC()
	}
	return models.RawListing{
		Platform:     platform,
		Title:        item.Title,
		URL:          item.URL,
		Price:        item.Price,
		Currency:     currency,
		Rating:       item.Rating,
		ReviewCount:  item.ReviewCount,
		Availability: item.Availability,
		Category:     item.Category,
		Brand:        item.Brand,
		ObservedAt:   observedAt,
	}
}
