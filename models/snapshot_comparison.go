package models

import (
	"time"
)

// SetChangeType classifies one difference between two keyword snapshots
type SetChangeType string

const (
	SetChangeNewProduct         SetChangeType = "new_product"
	SetChangeRemovedProduct     SetChangeType = "removed_product"
	SetChangePriceChange        SetChangeType = "price_change"
	SetChangeAvailabilityChange SetChangeType = "availability_change"
	SetChangeRatingChange       SetChangeType = "rating_change"
)

// SetChange is one detected difference between two snapshots of the same
// keyword. ProductKey is the normalized-title plus platform identity used for
// set-level matching; it is independent of canonical ids.
type SetChange struct {
	Type       SetChangeType `json:"change_type"`
	ProductKey string        `json:"product_key"`
	Platform   Platform      `json:"platform"`
	OldValue   any           `json:"old_value,omitempty"`
	NewValue   any           `json:"new_value,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// SnapshotComparison is the result of diffing two keyword snapshots
type SnapshotComparison struct {
	HasChanges          bool        `json:"has_changes"`
	Changes             []SetChange `json:"changes"`
	NewProducts         int         `json:"new_products"`
	RemovedProducts     int         `json:"removed_products"`
	PriceChanges        int         `json:"price_changes"`
	AvailabilityChanges int         `json:"availability_changes"`
	RatingChanges       int         `json:"rating_changes"`
	TotalBefore         int         `json:"total_products_before"`
	TotalAfter          int         `json:"total_products_after"`
	ComparedAt          time.Time   `json:"comparison_timestamp"`
}

// NotablePriceChange is a price movement at or above the notable threshold,
// extracted from a snapshot comparison for reporting.
type NotablePriceChange struct {
	ProductKey      string   `json:"product_id"`
	Platform        Platform `json:"platform"`
	OldPrice        float64  `json:"old_price"`
	NewPrice        float64  `json:"new_price"`
	PriceDifference float64  `json:"price_difference"`
	PercentChange   float64  `json:"percentage_change"`
}
