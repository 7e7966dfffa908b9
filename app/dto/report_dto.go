// Package dto contains Data Transfer Objects for API request and response structures
package dto

// CanonicalProductDTO represents a tracked product for responses
type CanonicalProductDTO struct {
	CanonicalID   string  `json:"canonical_id"`
	Platform      string  `json:"platform"`
	PlatformID    string  `json:"platform_id"`
	Title         string  `json:"title"`
	URL           string  `json:"url,omitempty"`
	Brand         *string `json:"brand,omitempty"`
	Category      *string `json:"category,omitempty"`
	DiscoveredVia string  `json:"discovered_via,omitempty"`
	FirstSeen     string  `json:"first_seen"`
	LastSeen      string  `json:"last_seen"`
	IsActive      bool    `json:"is_active"`
}

// ListProductsResponse wraps a page of tracked products
type ListProductsResponse struct {
	Message string                `json:"message"`
	Items   []CanonicalProductDTO `json:"items"`
	Total   int64                 `json:"total"`
}

// ObservationDTO represents one price observation for responses
type ObservationDTO struct {
	ObservedAt   string   `json:"observed_at"`
	Price        *float64 `json:"price,omitempty"`
	Currency     string   `json:"currency"`
	Availability *string  `json:"availability,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	ReviewCount  *int     `json:"review_count,omitempty"`
	TitleAtTime  string   `json:"title_at_time"`
}

// ProductHistoryResponse wraps a product with its observation history
type ProductHistoryResponse struct {
	Message      string              `json:"message"`
	Product      CanonicalProductDTO `json:"product"`
	Observations []ObservationDTO    `json:"observations"`
}

// PriceChangeDTO represents one detected price movement
type PriceChangeDTO struct {
	CanonicalID   string   `json:"canonical_id"`
	Title         string   `json:"title"`
	Platform      string   `json:"platform"`
	URL           string   `json:"url,omitempty"`
	OldPrice      float64  `json:"old_price"`
	NewPrice      float64  `json:"new_price"`
	ChangeAmount  float64  `json:"change_amount"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
	OldTime       string   `json:"old_time"`
	NewTime       string   `json:"new_time"`
}

// ListPriceChangesResponse wraps detected price changes for a window
type ListPriceChangesResponse struct {
	Message      string           `json:"message"`
	WindowHours  int              `json:"window_hours"`
	Items        []PriceChangeDTO `json:"items"`
	NotableItems []PriceChangeDTO `json:"notable_items"`
	TotalChecked int              `json:"total_products_checked"`
	TotalChanges int              `json:"total_changes"`
	TotalNotable int              `json:"total_notable"`
	Increases    int              `json:"total_increases"`
	Decreases    int              `json:"total_decreases"`
	ByPlatform   map[string]int   `json:"changes_by_platform,omitempty"`
}

// TopChangesResponse wraps the largest price movements
type TopChangesResponse struct {
	Message string           `json:"message"`
	Items   []PriceChangeDTO `json:"items"`
}

// StatsResponse summarizes the canonical store
type StatsResponse struct {
	Message                  string           `json:"message"`
	TotalCanonicalProducts   int64            `json:"total_canonical_products"`
	ActiveProducts           int64            `json:"active_products"`
	TotalPricePoints         int64            `json:"total_price_points"`
	ProductsWithPriceHistory int64            `json:"products_with_price_history"`
	ByPlatform               map[string]int64 `json:"by_platform"`
}

// SetChangeDTO is one difference between two keyword snapshots
type SetChangeDTO struct {
	ChangeType string `json:"change_type"`
	ProductKey string `json:"product_key"`
	Platform   string `json:"platform"`
	OldValue   any    `json:"old_value,omitempty"`
	NewValue   any    `json:"new_value,omitempty"`
}

// NotableChangeDTO is a price movement above the notable threshold
type NotableChangeDTO struct {
	ProductKey      string  `json:"product_id"`
	Platform        string  `json:"platform"`
	OldPrice        float64 `json:"old_price"`
	NewPrice        float64 `json:"new_price"`
	PriceDifference float64 `json:"price_difference"`
	PercentChange   float64 `json:"percentage_change"`
}

// KeywordChangesResponse reports the diff of the two latest snapshots for a keyword
type KeywordChangesResponse struct {
	Message             string             `json:"message"`
	Keyword             string             `json:"keyword"`
	HasSufficientData   bool               `json:"has_sufficient_data"`
	ChangesDetected     bool               `json:"changes_detected"`
	NewProducts         int                `json:"new_products"`
	RemovedProducts     int                `json:"removed_products"`
	PriceChanges        int                `json:"price_changes"`
	AvailabilityChanges int                `json:"availability_changes"`
	RatingChanges       int                `json:"rating_changes"`
	TotalBefore         int                `json:"total_products_before"`
	TotalAfter          int                `json:"total_products_after"`
	Changes             []SetChangeDTO     `json:"changes,omitempty"`
	NotableChanges      []NotableChangeDTO `json:"notable_changes,omitempty"`
}

// DeactivateProductResponse confirms a product was retired from monitoring
type DeactivateProductResponse struct {
	Message     string `json:"message"`
	CanonicalID string `json:"canonical_id"`
	IsActive    bool   `json:"is_active"`
}
