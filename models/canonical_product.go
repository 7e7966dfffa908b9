package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/amane-dev/kakaku-tracker/utils"
	"gorm.io/gorm"
)

// CanonicalProduct is the stable internal notion of one distinct product,
// independent of how many times or under what title it is scraped.
type CanonicalProduct struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CanonicalID   string    `gorm:"not null;uniqueIndex:uk_canonical_products_canonical_id" json:"canonical_id"`
	Platform      Platform  `gorm:"type:text;not null;uniqueIndex:uk_canonical_products_platform_pid;index:idx_canonical_products_platform" json:"platform"`
	PlatformID    string    `gorm:"not null;uniqueIndex:uk_canonical_products_platform_pid" json:"platform_id"`
	Title         string    `gorm:"type:text;not null" json:"title"`
	URL           string    `gorm:"type:text" json:"url"`
	Brand         *string   `gorm:"type:text" json:"brand,omitempty"`
	Category      *string   `gorm:"type:text" json:"category,omitempty"`
	DiscoveredVia string    `gorm:"type:text;default:''" json:"discovered_via"`
	FirstSeen     time.Time `gorm:"not null" json:"first_seen"`
	LastSeen      time.Time `gorm:"not null;index:idx_canonical_products_last_seen" json:"last_seen"`
	IsActive      *bool     `gorm:"not null;default:true;index:idx_canonical_products_is_active" json:"is_active"`

	// Relations
	Observations []Observation `gorm:"foreignKey:CanonicalID;references:CanonicalID" json:"observations,omitempty"`
}

// TableName returns the table name for the model
func (CanonicalProduct) TableName() string {
	return "canonical_products"
}

// BeforeCreate is called before creating a new record
func (p *CanonicalProduct) BeforeCreate(tx *gorm.DB) error {
	if p.CanonicalID == "" {
		p.CanonicalID = DeriveCanonicalID(p.Platform, p.PlatformID)
	}
	if p.FirstSeen.IsZero() {
		if !p.LastSeen.IsZero() {
			p.FirstSeen = p.LastSeen
		} else {
			p.FirstSeen = utils.UTCNow()
		}
	}
	if p.LastSeen.IsZero() {
		p.LastSeen = p.FirstSeen
	}
	if p.IsActive == nil {
		p.IsActive = utils.ToPtr(true)
	}
	return nil
}

// DeriveCanonicalID builds the stable canonical identifier for a
// (platform, platform_id) pair. The mapping is deterministic, so re-deriving
// it for the same pair always yields the same id.
func DeriveCanonicalID(platform Platform, platformID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", platform, platformID)))
	return hex.EncodeToString(sum[:])[:16]
}

// ShouldAdoptTitle reports whether an incoming title should replace the
// current one. Longer titles tend to carry more signal; very short ones are
// usually truncated listings. Length is counted in runes so Japanese titles
// are measured the same way as ASCII ones.
func (p *CanonicalProduct) ShouldAdoptTitle(incoming string) bool {
	if utf8.RuneCountInString(incoming) <= 10 {
		return false
	}
	return incoming != p.Title
}

// CanonicalProductFilter represents filter criteria for canonical products
type CanonicalProductFilter struct {
	ID              *uint      `json:"id,omitempty"`
	CanonicalID     *string    `json:"canonical_id,omitempty"`
	Platform        *Platform  `json:"platform,omitempty"`
	PlatformID      *string    `json:"platform_id,omitempty"`
	IsActive        *bool      `json:"is_active,omitempty"`
	FirstSeenAfter  *time.Time `json:"first_seen_after,omitempty"`
	FirstSeenBefore *time.Time `json:"first_seen_before,omitempty"`
	LastSeenAfter   *time.Time `json:"last_seen_after,omitempty"`
	LastSeenBefore  *time.Time `json:"last_seen_before,omitempty"`
}

// CanonicalStats summarizes the state of the canonical store
type CanonicalStats struct {
	TotalCanonicalProducts   int64            `json:"total_canonical_products"`
	ActiveProducts           int64            `json:"active_products"`
	TotalPricePoints         int64            `json:"total_price_points"`
	ProductsWithPriceHistory int64            `json:"products_with_price_history"`
	ByPlatform               map[string]int64 `json:"by_platform"`
}
