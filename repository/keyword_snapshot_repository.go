package repository

import (
	"context"

	"github.com/amane-dev/kakaku-tracker/models"
	"gorm.io/gorm"
)

// KeywordSnapshotRepositoryImpl implements KeywordSnapshotRepository interface
type KeywordSnapshotRepositoryImpl struct {
	*BaseRepository[models.KeywordSnapshot, models.KeywordSnapshotFilter]
}

// NewKeywordSnapshotRepository creates a new keyword snapshot repository
func NewKeywordSnapshotRepository(db *gorm.DB) KeywordSnapshotRepository {
	return &KeywordSnapshotRepositoryImpl{
		BaseRepository: NewBaseRepository[models.KeywordSnapshot, models.KeywordSnapshotFilter](db),
	}
}

// LatestTwoByKeyword returns the two most recent snapshots for a keyword,
// newest first. Fewer than two rows means there is not enough history to diff.
func (r *KeywordSnapshotRepositoryImpl) LatestTwoByKeyword(ctx context.Context, keyword string) ([]*models.KeywordSnapshot, error) {
	db := r.getDB(ctx)
	var snapshots []*models.KeywordSnapshot
	err := db.Where("keyword = ?", keyword).
		Order("captured_at DESC, id DESC").
		Limit(2).
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

// ListKeywords returns the distinct keywords that have at least one snapshot
func (r *KeywordSnapshotRepositoryImpl) ListKeywords(ctx context.Context) ([]string, error) {
	db := r.getDB(ctx)
	var keywords []string
	err := db.Model(&models.KeywordSnapshot{}).
		Distinct("keyword").
		Order("keyword ASC").
		Pluck("keyword", &keywords).Error
	if err != nil {
		return nil, err
	}
	return keywords, nil
}
