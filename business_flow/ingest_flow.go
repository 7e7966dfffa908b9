package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/amane-dev/kakaku-tracker/app/dto"
	"github.com/amane-dev/kakaku-tracker/app/middleware"
	"github.com/amane-dev/kakaku-tracker/app/services"
	"github.com/amane-dev/kakaku-tracker/config"
	"github.com/amane-dev/kakaku-tracker/models"
	"github.com/amane-dev/kakaku-tracker/repository"
	"github.com/amane-dev/kakaku-tracker/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// IngestFlow defines the canonical ingest use cases: resolving raw listings
// to canonical products and appending observations.
type IngestFlow interface {
	IngestListings(ctx context.Context, req *dto.IngestListingsRequest, metadata *ClientMetadata) (*dto.IngestListingsResponse, error)
	DiscoverKeyword(ctx context.Context, keyword string) (*dto.IngestListingsResponse, error)
	MonitorActiveProducts(ctx context.Context, batchSize int) (*dto.IngestListingsResponse, error)
	ListSessions(ctx context.Context, limit, offset int) (*dto.ListIngestSessionsResponse, error)
}

type IngestFlowImpl struct {
	canonicalRepo repository.CanonicalProductRepository
	obsRepo       repository.ObservationRepository
	sessionRepo   repository.IngestSessionRepository
	snapshotRepo  repository.KeywordSnapshotRepository
	resolver      services.IdentityResolver
	collector     services.Collector
	db            *gorm.DB
	rc            *redis.Client
	cacheConfig   *config.CacheConfig
	collectorCfg  *config.CollectorConfig
}

func NewIngestFlow(
	canonicalRepo repository.CanonicalProductRepository,
	obsRepo repository.ObservationRepository,
	sessionRepo repository.IngestSessionRepository,
	snapshotRepo repository.KeywordSnapshotRepository,
	resolver services.IdentityResolver,
	collector services.Collector,
	db *gorm.DB,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
	collectorCfg *config.CollectorConfig,
) IngestFlow {
	return &IngestFlowImpl{
		canonicalRepo: canonicalRepo,
		obsRepo:       obsRepo,
		sessionRepo:   sessionRepo,
		snapshotRepo:  snapshotRepo,
		resolver:      resolver,
		collector:     collector,
		db:            db,
		rc:            rc,
		cacheConfig:   cacheConfig,
		collectorCfg:  collectorCfg,
	}
}

// IngestListings processes one scraped batch. Listings that cannot be
// resolved to a stable identity are skipped and counted; storage failures
// abort the whole batch. An observation is appended for every resolved
// listing, including re-sightings of known products.
func (f *IngestFlowImpl) IngestListings(ctx context.Context, req *dto.IngestListingsRequest, metadata *ClientMetadata) (resp *dto.IngestListingsResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("INGEST_LISTINGS_FAILED", "Failed to ingest listings", err)
		}
	}()

	kind := models.SessionKind(req.Kind)
	if !kind.Valid() {
		err = ErrInvalidSessionKind
		return nil, err
	}
	if len(req.Listings) == 0 {
		err = ErrNoListings
		return nil, err
	}

	listings := make([]models.RawListing, 0, len(req.Listings))
	for _, item := range req.Listings {
		listings = append(listings, toRawListing(item))
	}

	// Timestamp keeps session ids sortable in logs, the uuid suffix keeps
	// concurrent batches distinct.
	sessionID := fmt.Sprintf("%s_%s_%s", kind, utils.UTCNowFormat("20060102_150405"), uuid.NewString()[:8])
	session := &models.IngestSession{
		SessionID: sessionID,
		Kind:      kind,
		Query:     req.Query,
	}
	if err = f.sessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}

	found, added, skipped, err := f.ingestBatch(ctx, sessionID, kind, listings)
	if err != nil {
		_ = f.sessionRepo.Complete(ctx, sessionID, models.SessionStatusFailed, found, added, skipped)
		middleware.RecordIngestSession(string(kind), string(models.SessionStatusFailed), found, added, skipped)
		return nil, err
	}

	// Discovery batches for a keyword are also captured whole, so consecutive
	// captures can be diffed at set level.
	if req.Keyword != "" {
		snapshot := &models.KeywordSnapshot{
			Keyword:   req.Keyword,
			SessionID: sessionID,
			Listings:  listings,
		}
		if err = f.snapshotRepo.Save(ctx, snapshot); err != nil {
			_ = f.sessionRepo.Complete(ctx, sessionID, models.SessionStatusFailed, found, added, skipped)
			return nil, err
		}
	}

	if err = f.sessionRepo.Complete(ctx, sessionID, models.SessionStatusCompleted, found, added, skipped); err != nil {
		return nil, err
	}
	middleware.RecordIngestSession(string(kind), string(models.SessionStatusCompleted), found, added, skipped)

	f.invalidateCaches(ctx)

	return &dto.IngestListingsResponse{
		Message:         "Listings ingested successfully",
		SessionID:       sessionID,
		ProductsFound:   found,
		ProductsAdded:   added,
		ListingsSkipped: skipped,
	}, nil
}

// ingestBatch resolves and persists one batch of listings. Identity failures
// skip the listing; storage failures abort.
func (f *IngestFlowImpl) ingestBatch(ctx context.Context, sessionID string, kind models.SessionKind, listings []models.RawListing) (found, added, skipped int, err error) {
	discoveredVia := fmt.Sprintf("%s:%s", kind, sessionID)

	for i := range listings {
		listing := &listings[i]

		if !listing.Platform.Valid() {
			skipped++
			continue
		}

		platformID, resolveErr := f.resolver.ResolvePlatformID(listing)
		if resolveErr != nil {
			skipped++
			continue
		}

		canonicalID := models.DeriveCanonicalID(listing.Platform, platformID)

		observedAt := listing.ObservedAt
		if observedAt.IsZero() {
			observedAt = utils.UTCNow()
		}

		category := listing.Category
		if category == nil {
			category = services.CategorizeTitle(listing.Title)
		}

		mu := lockCanonical(canonicalID)
		txErr := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
			product := &models.CanonicalProduct{
				CanonicalID:   canonicalID,
				Platform:      listing.Platform,
				PlatformID:    platformID,
				Title:         listing.Title,
				URL:           f.resolver.CleanURL(listing.Platform, listing.URL),
				Brand:         listing.Brand,
				Category:      category,
				DiscoveredVia: discoveredVia,
				LastSeen:      observedAt,
			}
			created, upsertErr := f.canonicalRepo.Upsert(txCtx, product)
			if upsertErr != nil {
				return upsertErr
			}
			if created {
				added++
			}

			observation := &models.Observation{
				CanonicalID:  canonicalID,
				ObservedAt:   observedAt,
				Price:        listing.Price,
				Currency:     listing.Currency,
				Availability: listing.Availability,
				Rating:       listing.Rating,
				ReviewCount:  listing.ReviewCount,
				TitleAtTime:  listing.Title,
				URL:          listing.URL,
				SessionID:    sessionID,
			}
			return f.obsRepo.Save(txCtx, observation)
		})
		mu.Unlock()

		if txErr != nil {
			return found, added, skipped, txErr
		}
		found++
	}

	return found, added, skipped, nil
}

// DiscoverKeyword runs one discovery pass for a keyword across all platforms
// using the configured collector
func (f *IngestFlowImpl) DiscoverKeyword(ctx context.Context, keyword string) (resp *dto.IngestListingsResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("DISCOVER_KEYWORD_FAILED", "Failed to run keyword discovery", err)
		}
	}()

	if keyword == "" {
		err = ErrKeywordRequired
		return nil, err
	}

	var items []dto.ListingItem
	for _, platform := range models.AllPlatforms {
		listings, searchErr := f.collector.Search(ctx, platform, keyword, f.collectorCfg.MaxResultsPerPlatform)
		if searchErr != nil {
			// One failing platform does not abort discovery on the others
			continue
		}
		for _, listing := range listings {
			items = append(items, toListingItem(listing))
		}
	}
	if len(items) == 0 {
		err = ErrNoListings
		return nil, err
	}

	return f.IngestListings(ctx, &dto.IngestListingsRequest{
		Kind:     string(models.SessionKindDiscovery),
		Query:    keyword,
		Keyword:  keyword,
		Listings: items,
	}, nil)
}

// MonitorActiveProducts re-checks active canonical products by their
// monitoring URLs and ingests the results as a monitoring session
func (f *IngestFlowImpl) MonitorActiveProducts(ctx context.Context, batchSize int) (resp *dto.IngestListingsResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("MONITOR_PRODUCTS_FAILED", "Failed to monitor active products", err)
		}
	}()

	products, err := f.canonicalRepo.ListActive(ctx, nil, batchSize, 0)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return &dto.IngestListingsResponse{Message: "No active products to monitor"}, nil
	}

	var items []dto.ListingItem
	for _, product := range products {
		if product.URL == "" {
			continue
		}
		listing, lookupErr := f.collector.Lookup(ctx, product.Platform, product.URL)
		if lookupErr != nil || listing == nil {
			continue
		}
		items = append(items, toListingItem(*listing))
	}
	if len(items) == 0 {
		return &dto.IngestListingsResponse{Message: "No products could be re-checked"}, nil
	}

	return f.IngestListings(ctx, &dto.IngestListingsRequest{
		Kind:     string(models.SessionKindMonitoring),
		Query:    fmt.Sprintf("monitor:%d products", len(products)),
		Listings: items,
	}, nil)
}

// ListSessions returns recent ingest sessions, newest first
func (f *IngestFlowImpl) ListSessions(ctx context.Context, limit, offset int) (resp *dto.ListIngestSessionsResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("LIST_SESSIONS_FAILED", "Failed to list ingest sessions", err)
		}
	}()

	sessions, err := f.sessionRepo.ListRecent(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]dto.IngestSessionDTO, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, ToIngestSessionDTO(*session))
	}

	return &dto.ListIngestSessionsResponse{
		Message: "Ingest sessions retrieved successfully",
		Items:   items,
	}, nil
}

// invalidateCaches drops derived report caches after a successful ingest
func (f *IngestFlowImpl) invalidateCaches(ctx context.Context) {
	if f.rc == nil || f.cacheConfig == nil || !f.cacheConfig.Enabled {
		return
	}
	keys := []string{
		redisKey(*f.cacheConfig, utils.StatsCacheKey),
	}
	_ = f.rc.Del(ctx, keys...).Err()
	// Change reports are keyed per window, drop them by pattern
	iter := f.rc.Scan(ctx, 0, redisKey(*f.cacheConfig, utils.ChangesCacheKeyPrefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		_ = f.rc.Del(ctx, iter.Val()).Err()
	}
}

func toRawListing(item dto.ListingItem) models.RawListing {
	currency := item.Currency
	if currency == "" {
		currency = utils.DefaultCurrency
	}
	// A caller-supplied observation time survives the boundary so delayed
	// batches land at their true scrape time
	var observedAt time.Time
	if item.ObservedAt != nil {
		observedAt = item.ObservedAt.UTC()
	}
	return models.RawListing{
		Platform:     models.Platform(item.Platform),
		Title:        item.Title,
		URL:          item.URL,
		Price:        item.Price,
		Currency:     currency,
		Rating:       item.Rating,
		ReviewCount:  item.ReviewCount,
		Availability: item.Availability,
		Category:     item.Category,
		Brand:        item.Brand,
		ObservedAt:   observedAt,
	}
}

func toListingItem(listing models.RawListing) dto.ListingItem {
	var observedAt *time.Time
	if !listing.ObservedAt.IsZero() {
		t := listing.ObservedAt.UTC()
		observedAt = &t
	}
	return dto.ListingItem{
		Platform:     string(listing.Platform),
		Title:        listing.Title,
		URL:          listing.URL,
		Price:        listing.Price,
		Currency:     listing.Currency,
		Rating:       listing.Rating,
		ReviewCount:  listing.ReviewCount,
		Availability: listing.Availability,
		Category:     listing.Category,
		Brand:        listing.Brand,
		ObservedAt:   observedAt,
	}
}
