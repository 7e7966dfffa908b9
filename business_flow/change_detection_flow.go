package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/amane-dev/kakaku-tracker/app/dto"
	"github.com/amane-dev/kakaku-tracker/app/services"
	"github.com/amane-dev/kakaku-tracker/config"
	"github.com/amane-dev/kakaku-tracker/models"
	"github.com/amane-dev/kakaku-tracker/repository"
	"github.com/amane-dev/kakaku-tracker/utils"
	"github.com/redis/go-redis/v9"
)

// ChangeDetectionFlow defines the price movement and snapshot diff use cases
type ChangeDetectionFlow interface {
	GetPriceChanges(ctx context.Context, windowHours int) (*dto.ListPriceChangesResponse, error)
	GetKeywordChanges(ctx context.Context, keyword string) (*dto.KeywordChangesResponse, error)
}

type ChangeDetectionFlowImpl struct {
	canonicalRepo repository.CanonicalProductRepository
	obsRepo       repository.ObservationRepository
	snapshotRepo  repository.KeywordSnapshotRepository
	detector      services.ChangeDetector
	rc            *redis.Client
	cacheConfig   *config.CacheConfig
	trackerConfig *config.TrackerConfig
}

func NewChangeDetectionFlow(
	canonicalRepo repository.CanonicalProductRepository,
	obsRepo repository.ObservationRepository,
	snapshotRepo repository.KeywordSnapshotRepository,
	detector services.ChangeDetector,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
	trackerConfig *config.TrackerConfig,
) ChangeDetectionFlow {
	return &ChangeDetectionFlowImpl{
		canonicalRepo: canonicalRepo,
		obsRepo:       obsRepo,
		snapshotRepo:  snapshotRepo,
		detector:      detector,
		rc:            rc,
		cacheConfig:   cacheConfig,
		trackerConfig: trackerConfig,
	}
}

// GetPriceChanges reports price movements detected inside the lookback
// window. Products with fewer than two priced observations in the window are
// silently excluded. Results are cached per window until the next ingest.
func (f *ChangeDetectionFlowImpl) GetPriceChanges(ctx context.Context, windowHours int) (resp *dto.ListPriceChangesResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("GET_PRICE_CHANGES_FAILED", "Failed to compute price changes", err)
		}
	}()

	if windowHours < 0 {
		err = ErrInvalidWindow
		return nil, err
	}
	if windowHours == 0 {
		windowHours = int(f.trackerConfig.DefaultChangeWindow / time.Hour)
	}

	cacheKey := redisKey(*f.cacheConfig, fmt.Sprintf("%s%d", utils.ChangesCacheKeyPrefix, windowHours))
	if cached := f.readCachedChanges(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	since := utils.UTCNow().Add(-time.Duration(windowHours) * time.Hour)

	canonicalIDs, err := f.obsRepo.ListCanonicalIDsObservedSince(ctx, since)
	if err != nil {
		return nil, err
	}

	products, err := f.canonicalRepo.ListByCanonicalIDs(ctx, canonicalIDs)
	if err != nil {
		return nil, err
	}
	productByID := make(map[string]*models.CanonicalProduct, len(products))
	for _, product := range products {
		productByID[product.CanonicalID] = product
	}

	var changes []models.ChangeRecord
	for _, canonicalID := range canonicalIDs {
		history, histErr := f.obsRepo.ListByCanonicalIDSince(ctx, canonicalID, since)
		if histErr != nil {
			err = histErr
			return nil, err
		}

		record := f.detector.DetectPointChange(history)
		if record == nil {
			continue
		}
		if product, ok := productByID[canonicalID]; ok {
			record.Platform = product.Platform
			record.Title = product.Title
			record.URL = product.URL
		}
		changes = append(changes, *record)
	}

	// Largest movement first, ties broken by absolute amount
	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].AbsPercent() != changes[j].AbsPercent() {
			return changes[i].AbsPercent() > changes[j].AbsPercent()
		}
		return changes[i].AbsAmount() > changes[j].AbsAmount()
	})

	items := make([]dto.PriceChangeDTO, 0, len(changes))
	notable := make([]dto.PriceChangeDTO, 0)
	byPlatform := make(map[string]int)
	var increases, decreases int
	for i := range changes {
		item := ToPriceChangeDTO(changes[i])
		items = append(items, item)
		if changes[i].AbsPercent() >= f.trackerConfig.NotableChangePercent {
			notable = append(notable, item)
		}
		if changes[i].IsIncrease() {
			increases++
		} else {
			decreases++
		}
		byPlatform[changes[i].Platform.String()]++
	}

	response := &dto.ListPriceChangesResponse{
		Message:      "Price changes computed successfully",
		WindowHours:  windowHours,
		Items:        items,
		NotableItems: notable,
		TotalChecked: len(canonicalIDs),
		TotalChanges: len(items),
		TotalNotable: len(notable),
		Increases:    increases,
		Decreases:    decreases,
		ByPlatform:   byPlatform,
	}

	f.writeCachedChanges(ctx, cacheKey, response)
	return response, nil
}

// GetKeywordChanges diffs the two most recent snapshots captured for a
// keyword. Fewer than two snapshots is a normal outcome, not an error.
func (f *ChangeDetectionFlowImpl) GetKeywordChanges(ctx context.Context, keyword string) (resp *dto.KeywordChangesResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("GET_KEYWORD_CHANGES_FAILED", "Failed to compute keyword changes", err)
		}
	}()

	if keyword == "" {
		err = ErrKeywordRequired
		return nil, err
	}

	snapshots, err := f.snapshotRepo.LatestTwoByKeyword(ctx, keyword)
	if err != nil {
		return nil, err
	}
	if len(snapshots) < 2 {
		return &dto.KeywordChangesResponse{
			Message:           "Need at least two captures of this keyword to detect changes",
			Keyword:           keyword,
			HasSufficientData: false,
		}, nil
	}

	// LatestTwoByKeyword returns newest first
	newSet := []models.RawListing(snapshots[0].Listings)
	oldSet := []models.RawListing(snapshots[1].Listings)

	comparison := f.detector.CompareSnapshots(oldSet, newSet)
	notable := f.detector.NotableChanges(comparison, f.trackerConfig.NotableChangePercent)

	changes := make([]dto.SetChangeDTO, 0, len(comparison.Changes))
	for _, change := range comparison.Changes {
		changes = append(changes, ToSetChangeDTO(change))
	}
	notableItems := make([]dto.NotableChangeDTO, 0, len(notable))
	for _, change := range notable {
		notableItems = append(notableItems, ToNotableChangeDTO(change))
	}

	return &dto.KeywordChangesResponse{
		Message:             "Keyword changes computed successfully",
		Keyword:             keyword,
		HasSufficientData:   true,
		ChangesDetected:     comparison.HasChanges,
		NewProducts:         comparison.NewProducts,
		RemovedProducts:     comparison.RemovedProducts,
		PriceChanges:        comparison.PriceChanges,
		AvailabilityChanges: comparison.AvailabilityChanges,
		RatingChanges:       comparison.RatingChanges,
		TotalBefore:         comparison.TotalBefore,
		TotalAfter:          comparison.TotalAfter,
		Changes:             changes,
		NotableChanges:      notableItems,
	}, nil
}

func (f *ChangeDetectionFlowImpl) readCachedChanges(ctx context.Context, cacheKey string) *dto.ListPriceChangesResponse {
	if f.rc == nil || f.cacheConfig == nil || !f.cacheConfig.Enabled {
		return nil
	}
	raw, err := f.rc.Get(ctx, cacheKey).Bytes()
	if err != nil || len(raw) == 0 {
		return nil
	}
	var cached dto.ListPriceChangesResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil
	}
	return &cached
}

func (f *ChangeDetectionFlowImpl) writeCachedChanges(ctx context.Context, cacheKey string, response *dto.ListPriceChangesResponse) {
	if f.rc == nil || f.cacheConfig == nil || !f.cacheConfig.Enabled {
		return
	}
	raw, err := json.Marshal(response)
	if err != nil {
		return
	}
	_ = f.rc.Set(ctx, cacheKey, raw, f.cacheConfig.DefaultTTL).Err()
}
