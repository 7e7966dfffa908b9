// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amane-dev/kakaku-tracker/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
}

// CanonicalProductRepository defines operations for the canonical product store
type CanonicalProductRepository interface {
	Repository[models.CanonicalProduct, models.CanonicalProductFilter]
	ByCanonicalID(ctx context.Context, canonicalID string) (*models.CanonicalProduct, error)
	ByPlatformID(ctx context.Context, platform models.Platform, platformID string) (*models.CanonicalProduct, error)
	Upsert(ctx context.Context, product *models.CanonicalProduct) (created bool, err error)
	TouchLastSeen(ctx context.Context, canonicalID string, seenAt time.Time, title string) error
	ListActive(ctx context.Context, platform *models.Platform, limit, offset int) ([]*models.CanonicalProduct, error)
	ListByCanonicalIDs(ctx context.Context, canonicalIDs []string) ([]*models.CanonicalProduct, error)
	SetActive(ctx context.Context, canonicalID string, active bool) error
	Count(ctx context.Context, filter models.CanonicalProductFilter) (int64, error)
	CountByPlatform(ctx context.Context) (map[string]int64, error)
	Stats(ctx context.Context) (*models.CanonicalStats, error)
}

// ObservationRepository defines operations for the append-only observation log
type ObservationRepository interface {
	Repository[models.Observation, models.ObservationFilter]
	ListByCanonicalID(ctx context.Context, canonicalID string) ([]*models.Observation, error)
	ListByCanonicalIDSince(ctx context.Context, canonicalID string, since time.Time) ([]*models.Observation, error)
	ListCanonicalIDsObservedSince(ctx context.Context, since time.Time) ([]string, error)
	LatestByCanonicalID(ctx context.Context, canonicalID string) (*models.Observation, error)
	CountPricePoints(ctx context.Context) (int64, error)
	CountProductsWithPriceHistory(ctx context.Context) (int64, error)
}

// IngestSessionRepository defines operations for ingest session records
type IngestSessionRepository interface {
	Repository[models.IngestSession, models.IngestSessionFilter]
	BySessionID(ctx context.Context, sessionID string) (*models.IngestSession, error)
	Complete(ctx context.Context, sessionID string, status models.SessionStatus, found, added, skipped int) error
	ListRecent(ctx context.Context, limit, offset int) ([]*models.IngestSession, error)
}

// KeywordSnapshotRepository defines operations for captured keyword search batches
type KeywordSnapshotRepository interface {
	Repository[models.KeywordSnapshot, models.KeywordSnapshotFilter]
	LatestTwoByKeyword(ctx context.Context, keyword string) ([]*models.KeywordSnapshot, error)
	ListKeywords(ctx context.Context) ([]string, error)
}
