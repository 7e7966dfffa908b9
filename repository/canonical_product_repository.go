package repository

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/amane-dev/kakaku-tracker/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CanonicalProductRepositoryImpl implements CanonicalProductRepository interface
type CanonicalProductRepositoryImpl struct {
	*BaseRepository[models.CanonicalProduct, models.CanonicalProductFilter]
}

// NewCanonicalProductRepository creates a new canonical product repository
func NewCanonicalProductRepository(db *gorm.DB) CanonicalProductRepository {
	return &CanonicalProductRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CanonicalProduct, models.CanonicalProductFilter](db),
	}
}

// ByCanonicalID finds a canonical product by its canonical identifier
func (r *CanonicalProductRepositoryImpl) ByCanonicalID(ctx context.Context, canonicalID string) (*models.CanonicalProduct, error) {
	db := r.getDB(ctx)
	var product models.CanonicalProduct
	err := db.Where("canonical_id = ?", canonicalID).Last(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// ByPlatformID finds a canonical product by its (platform, platform_id) pair
func (r *CanonicalProductRepositoryImpl) ByPlatformID(ctx context.Context, platform models.Platform, platformID string) (*models.CanonicalProduct, error) {
	db := r.getDB(ctx)
	var product models.CanonicalProduct
	err := db.Where("platform = ? AND platform_id = ?", platform, platformID).Last(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// Upsert inserts the product or, when the canonical id already exists, bumps
// last_seen and adopts the incoming title and url. Re-ingesting the same
// product never produces a duplicate row. The returned flag reports whether a
// new row was created.
func (r *CanonicalProductRepositoryImpl) Upsert(ctx context.Context, product *models.CanonicalProduct) (bool, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	// On conflict the insert is turned into an update, so the row count alone
	// cannot distinguish the two paths. Callers serialize per canonical id, so
	// a pre-count inside the same transaction is reliable.
	var existingCount int64
	if err = db.Model(&models.CanonicalProduct{}).
		Where("canonical_id = ?", product.CanonicalID).
		Count(&existingCount).Error; err != nil {
		return false, err
	}

	res := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "canonical_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_seen": clause.Expr{SQL: "GREATEST(canonical_products.last_seen, EXCLUDED.last_seen)"},
			"title":     clause.Expr{SQL: "CASE WHEN LENGTH(EXCLUDED.title) > 10 THEN EXCLUDED.title ELSE canonical_products.title END"},
			"url":       clause.Expr{SQL: "CASE WHEN EXCLUDED.url <> '' THEN EXCLUDED.url ELSE canonical_products.url END"},
		}),
	}).Create(product)
	if res.Error != nil {
		err = res.Error
		return false, err
	}

	var existing models.CanonicalProduct
	if err = db.Where("canonical_id = ?", product.CanonicalID).Last(&existing).Error; err != nil {
		return false, err
	}
	*product = existing
	return existingCount == 0, nil
}

// TouchLastSeen advances last_seen for a known product and optionally adopts
// a longer title
func (r *CanonicalProductRepositoryImpl) TouchLastSeen(ctx context.Context, canonicalID string, seenAt time.Time, title string) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	updates := map[string]any{"last_seen": seenAt}
	// Rune count, matching the char-based LENGTH() check used on upsert
	if utf8.RuneCountInString(title) > 10 {
		updates["title"] = title
	}
	err = db.Model(&models.CanonicalProduct{}).
		Where("canonical_id = ?", canonicalID).
		Updates(updates).Error
	return err
}

// ListActive lists active canonical products, optionally restricted to one platform
func (r *CanonicalProductRepositoryImpl) ListActive(ctx context.Context, platform *models.Platform, limit, offset int) ([]*models.CanonicalProduct, error) {
	db := r.getDB(ctx)
	var products []*models.CanonicalProduct

	query := db.Where("is_active = ?", true).Order("last_seen DESC")
	if platform != nil {
		query = query.Where("platform = ?", *platform)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// ListByCanonicalIDs loads canonical products for a set of canonical ids
func (r *CanonicalProductRepositoryImpl) ListByCanonicalIDs(ctx context.Context, canonicalIDs []string) ([]*models.CanonicalProduct, error) {
	if len(canonicalIDs) == 0 {
		return nil, nil
	}
	db := r.getDB(ctx)
	var products []*models.CanonicalProduct
	err := db.Where("canonical_id IN ?", canonicalIDs).Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// SetActive marks a canonical product active or inactive
func (r *CanonicalProductRepositoryImpl) SetActive(ctx context.Context, canonicalID string, active bool) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	res := db.Model(&models.CanonicalProduct{}).
		Where("canonical_id = ?", canonicalID).
		Update("is_active", active)
	if res.Error != nil {
		err = res.Error
		return err
	}
	if res.RowsAffected == 0 {
		err = gorm.ErrRecordNotFound
		return err
	}
	return nil
}

// Count returns the number of canonical products matching the filter
func (r *CanonicalProductRepositoryImpl) Count(ctx context.Context, filter models.CanonicalProductFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.CanonicalProduct{})

	if filter.CanonicalID != nil {
		query = query.Where("canonical_id = ?", *filter.CanonicalID)
	}
	if filter.Platform != nil {
		query = query.Where("platform = ?", *filter.Platform)
	}
	if filter.PlatformID != nil {
		query = query.Where("platform_id = ?", *filter.PlatformID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.FirstSeenAfter != nil {
		query = query.Where("first_seen >= ?", *filter.FirstSeenAfter)
	}
	if filter.FirstSeenBefore != nil {
		query = query.Where("first_seen <= ?", *filter.FirstSeenBefore)
	}
	if filter.LastSeenAfter != nil {
		query = query.Where("last_seen >= ?", *filter.LastSeenAfter)
	}
	if filter.LastSeenBefore != nil {
		query = query.Where("last_seen <= ?", *filter.LastSeenBefore)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByPlatform returns the number of canonical products per platform
func (r *CanonicalProductRepositoryImpl) CountByPlatform(ctx context.Context) (map[string]int64, error) {
	db := r.getDB(ctx)

	type row struct {
		Platform string
		Total    int64
	}
	var rows []row
	err := db.Model(&models.CanonicalProduct{}).
		Select("platform, COUNT(*) AS total").
		Group("platform").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Platform] = r.Total
	}
	return counts, nil
}

// Stats summarizes the canonical store
func (r *CanonicalProductRepositoryImpl) Stats(ctx context.Context) (*models.CanonicalStats, error) {
	db := r.getDB(ctx)

	stats := &models.CanonicalStats{}
	if err := db.Model(&models.CanonicalProduct{}).Count(&stats.TotalCanonicalProducts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.CanonicalProduct{}).Where("is_active = ?", true).Count(&stats.ActiveProducts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Observation{}).Where("price IS NOT NULL").Count(&stats.TotalPricePoints).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Observation{}).
		Where("price IS NOT NULL").
		Distinct("canonical_id").
		Count(&stats.ProductsWithPriceHistory).Error; err != nil {
		return nil, err
	}

	byPlatform, err := r.CountByPlatform(ctx)
	if err != nil {
		return nil, err
	}
	stats.ByPlatform = byPlatform

	return stats, nil
}
