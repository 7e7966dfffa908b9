package repository

import (
	"context"
	"errors"

	"github.com/amane-dev/kakaku-tracker/models"
	"github.com/amane-dev/kakaku-tracker/utils"
	"gorm.io/gorm"
)

// IngestSessionRepositoryImpl implements IngestSessionRepository interface
type IngestSessionRepositoryImpl struct {
	*BaseRepository[models.IngestSession, models.IngestSessionFilter]
}

// NewIngestSessionRepository creates a new ingest session repository
func NewIngestSessionRepository(db *gorm.DB) IngestSessionRepository {
	return &IngestSessionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.IngestSession, models.IngestSessionFilter](db),
	}
}

// BySessionID finds an ingest session by its session identifier
func (r *IngestSessionRepositoryImpl) BySessionID(ctx context.Context, sessionID string) (*models.IngestSession, error) {
	db := r.getDB(ctx)
	var session models.IngestSession
	err := db.Where("session_id = ?", sessionID).Last(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// Complete finalizes a session with its outcome counters
func (r *IngestSessionRepositoryImpl) Complete(ctx context.Context, sessionID string, status models.SessionStatus, found, added, skipped int) error {
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

	res := db.Model(&models.IngestSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"status":           status,
			"completed_at":     utils.UTCNow(),
			"products_found":   found,
			"products_added":   added,
			"listings_skipped": skipped,
		})
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

// ListRecent returns sessions ordered by start time, newest first
func (r *IngestSessionRepositoryImpl) ListRecent(ctx context.Context, limit, offset int) ([]*models.IngestSession, error) {
	db := r.getDB(ctx)
	var sessions []*models.IngestSession

	query := db.Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
