package models

import (
	"time"

	"github.com/amane-dev/kakaku-tracker/utils"
	"gorm.io/gorm"
)

// Observation is one timestamped sighting of a canonical product. Rows are
// append-only: they are created once by ingest and never mutated or deleted.
// A null price is a valid observation ("currently unavailable"), not zero.
type Observation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CanonicalID  string    `gorm:"not null;index:idx_observations_canonical_id" json:"canonical_id"`
	ObservedAt   time.Time `gorm:"not null;index:idx_observations_observed_at" json:"observed_at"`
	Price        *float64  `json:"price,omitempty"`
	Currency     string    `gorm:"type:text;not null;default:'JPY'" json:"currency"`
	Availability *string   `gorm:"type:text" json:"availability,omitempty"`
	Rating       *float64  `json:"rating,omitempty"`
	ReviewCount  *int      `json:"review_count,omitempty"`
	TitleAtTime  string    `gorm:"type:text;not null" json:"title_at_time"`
	URL          string    `gorm:"type:text" json:"url"`
	SessionID    string    `gorm:"type:text;index:idx_observations_session_id" json:"session_id"`
}

// TableName returns the table name for the model
func (Observation) TableName() string {
	return "observations"
}

// BeforeCreate is called before creating a new record
func (o *Observation) BeforeCreate(tx *gorm.DB) error {
	if o.ObservedAt.IsZero() {
		o.ObservedAt = utils.UTCNow()
	}
	if o.Currency == "" {
		o.Currency = "JPY"
	}
	return nil
}

// HasPrice reports whether the observation carries a usable price
func (o *Observation) HasPrice() bool {
	return o.Price != nil
}

// ObservationFilter represents filter criteria for observations
type ObservationFilter struct {
	ID             *uint      `json:"id,omitempty"`
	CanonicalID    *string    `json:"canonical_id,omitempty"`
	SessionID      *string    `json:"session_id,omitempty"`
	ObservedAfter  *time.Time `json:"observed_after,omitempty"`
	ObservedBefore *time.Time `json:"observed_before,omitempty"`
	HasPrice       *bool      `json:"has_price,omitempty"`
}
