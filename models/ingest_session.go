package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amane-dev/kakaku-tracker/utils"
	"gorm.io/gorm"
)

// SessionKind distinguishes discovery runs (keyword searches that may find
// new products) from monitoring runs (re-checks of known products).
type SessionKind string

const (
	SessionKindDiscovery  SessionKind = "discovery"
	SessionKindMonitoring SessionKind = "monitoring"
)

// Valid checks if the session kind is known
func (k SessionKind) Valid() bool {
	return k == SessionKindDiscovery || k == SessionKindMonitoring
}

// Scan implements the sql.Scanner interface for SessionKind
func (k *SessionKind) Scan(value any) error {
	if value == nil {
		*k = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*k = SessionKind(v)
	case []byte:
		*k = SessionKind(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SessionKind", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for SessionKind
func (k SessionKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid SessionKind: %s", k)
	}
	return string(k), nil
}

// SessionStatus represents the lifecycle state of an ingest session
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// IngestSession records one batch run against the canonical store, for audit
// and operational stats.
type IngestSession struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	SessionID       string        `gorm:"not null;uniqueIndex:uk_ingest_sessions_session_id" json:"session_id"`
	Kind            SessionKind   `gorm:"type:text;not null" json:"kind"`
	Query           string        `gorm:"type:text" json:"query"`
	StartedAt       time.Time     `gorm:"not null;index:idx_ingest_sessions_started_at" json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	ProductsFound   int           `gorm:"not null;default:0" json:"products_found"`
	ProductsAdded   int           `gorm:"not null;default:0" json:"products_added"`
	ListingsSkipped int           `gorm:"not null;default:0" json:"listings_skipped"`
	Status          SessionStatus `gorm:"type:text;not null;default:'running'" json:"status"`
}

// TableName returns the table name for the model
func (IngestSession) TableName() string {
	return "ingest_sessions"
}

// BeforeCreate is called before creating a new record
func (s *IngestSession) BeforeCreate(tx *gorm.DB) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = utils.UTCNow()
	}
	if s.Status == "" {
		s.Status = SessionStatusRunning
	}
	return nil
}

// IngestSessionFilter represents filter criteria for ingest sessions
type IngestSessionFilter struct {
	SessionID     *string        `json:"session_id,omitempty"`
	Kind          *SessionKind   `json:"kind,omitempty"`
	Status        *SessionStatus `json:"status,omitempty"`
	StartedAfter  *time.Time     `json:"started_after,omitempty"`
	StartedBefore *time.Time     `json:"started_before,omitempty"`
}
