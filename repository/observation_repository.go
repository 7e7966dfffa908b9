package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amane-dev/kakaku-tracker/models"
	"gorm.io/gorm"
)

// ObservationRepositoryImpl implements ObservationRepository interface
type ObservationRepositoryImpl struct {
	*BaseRepository[models.Observation, models.ObservationFilter]
}

// NewObservationRepository creates a new observation repository
func NewObservationRepository(db *gorm.DB) ObservationRepository {
	return &ObservationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Observation, models.ObservationFilter](db),
	}
}

// ListByCanonicalID returns the full observation history for a product,
// oldest first
func (r *ObservationRepositoryImpl) ListByCanonicalID(ctx context.Context, canonicalID string) ([]*models.Observation, error) {
	db := r.getDB(ctx)
	var observations []*models.Observation
	err := db.Where("canonical_id = ?", canonicalID).
		Order("observed_at ASC, id ASC").
		Find(&observations).Error
	if err != nil {
		return nil, err
	}
	return observations, nil
}

// ListByCanonicalIDSince returns observations for a product at or after the
// given time, oldest first
func (r *ObservationRepositoryImpl) ListByCanonicalIDSince(ctx context.Context, canonicalID string, since time.Time) ([]*models.Observation, error) {
	db := r.getDB(ctx)
	var observations []*models.Observation
	err := db.Where("canonical_id = ? AND observed_at >= ?", canonicalID, since).
		Order("observed_at ASC, id ASC").
		Find(&observations).Error
	if err != nil {
		return nil, err
	}
	return observations, nil
}

// ListCanonicalIDsObservedSince returns the distinct canonical ids that have
// at least one observation at or after the given time
func (r *ObservationRepositoryImpl) ListCanonicalIDsObservedSince(ctx context.Context, since time.Time) ([]string, error) {
	db := r.getDB(ctx)
	var ids []string
	err := db.Model(&models.Observation{}).
		Where("observed_at >= ?", since).
		Distinct("canonical_id").
		Pluck("canonical_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// LatestByCanonicalID returns the most recent observation for a product
func (r *ObservationRepositoryImpl) LatestByCanonicalID(ctx context.Context, canonicalID string) (*models.Observation, error) {
	db := r.getDB(ctx)
	var observation models.Observation
	err := db.Where("canonical_id = ?", canonicalID).
		Order("observed_at DESC, id DESC").
		First(&observation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &observation, nil
}

// CountPricePoints returns the number of observations carrying a price
func (r *ObservationRepositoryImpl) CountPricePoints(ctx context.Context) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.Observation{}).Where("price IS NOT NULL").Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountProductsWithPriceHistory returns the number of distinct products that
// have at least one priced observation
func (r *ObservationRepositoryImpl) CountProductsWithPriceHistory(ctx context.Context) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.Observation{}).
		Where("price IS NOT NULL").
		Distinct("canonical_id").
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
