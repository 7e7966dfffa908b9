package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amane-dev/kakaku-tracker/utils"
	"gorm.io/gorm"
)

// ListingSet is the full result set of one keyword search, stored as jsonb so
// two batches for the same keyword can be diffed later.
type ListingSet []RawListing

// Value implements the driver.Valuer interface for ListingSet
func (s ListingSet) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for ListingSet
func (s *ListingSet) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ListingSet", value)
	}

	return json.Unmarshal(bytes, s)
}

// KeywordSnapshot is one captured search-result batch for a keyword. The two
// most recent snapshots per keyword feed the set-level change detector.
type KeywordSnapshot struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Keyword    string     `gorm:"type:text;not null;index:idx_keyword_snapshots_keyword" json:"keyword"`
	SessionID  string     `gorm:"type:text;not null" json:"session_id"`
	CapturedAt time.Time  `gorm:"not null;index:idx_keyword_snapshots_captured_at" json:"captured_at"`
	Listings   ListingSet `gorm:"type:jsonb;not null" json:"listings"`
}

// TableName returns the table name for the model
func (KeywordSnapshot) TableName() string {
	return "keyword_snapshots"
}

// BeforeCreate is called before creating a new record
func (s *KeywordSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.CapturedAt.IsZero() {
		s.CapturedAt = utils.UTCNow()
	}
	return nil
}

// KeywordSnapshotFilter represents filter criteria for keyword snapshots
type KeywordSnapshotFilter struct {
	Keyword        *string    `json:"keyword,omitempty"`
	SessionID      *string    `json:"session_id,omitempty"`
	CapturedAfter  *time.Time `json:"captured_after,omitempty"`
	CapturedBefore *time.Time `json:"captured_before,omitempty"`
}
