package tests

import (
	"errors"
	"testing"
	"time"

	"github.com/amane-dev/kakaku-tracker/app/dto"
	"github.com/amane-dev/kakaku-tracker/app/services"
	businessflow "github.com/amane-dev/kakaku-tracker/business_flow"
	"github.com/amane-dev/kakaku-tracker/config"
	"github.com/amane-dev/kakaku-tracker/models"
	"github.com/amane-dev/kakaku-tracker/repository"
	testingutil "github.com/amane-dev/kakaku-tracker/testing"
	"github.com/amane-dev/kakaku-tracker/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIngestFlow(testDB *testingutil.TestDB, collector services.Collector) businessflow.IngestFlow {
	return businessflow.NewIngestFlow(
		repository.NewCanonicalProductRepository(testDB.DB),
		repository.NewObservationRepository(testDB.DB),
		repository.NewIngestSessionRepository(testDB.DB),
		repository.NewKeywordSnapshotRepository(testDB.DB),
		services.NewIdentityResolver(),
		collector,
		testDB.DB,
		nil,
		&config.CacheConfig{Enabled: false},
		&config.CollectorConfig{MaxResultsPerPlatform: 10},
	)
}

func amazonListing(asin, title string, price *float64) dto.ListingItem {
	return dto.ListingItem{
		Platform: string(models.PlatformAmazonJP),
		Title:    title,
		URL:      "https://www.amazon.co.jp/dp/" + asin,
		Price:    price,
		Currency: utils.DefaultCurrency,
	}
}

func withObservedAt(item dto.ListingItem, at time.Time) dto.ListingItem {
	item.ObservedAt = &at
	return item
}

func TestIngestListings(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newIngestFlow(testDB, services.NewMockCollector())
		obsRepo := repository.NewObservationRepository(testDB.DB)
		sessionRepo := repository.NewIngestSessionRepository(testDB.DB)
		snapshotRepo := repository.NewKeywordSnapshotRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		t.Run("ResolvesAndStoresBatch", func(t *testing.T) {
			resp, err := flow.IngestListings(ctx, &dto.IngestListingsRequest{
				Kind:  string(models.SessionKindDiscovery),
				Query: "ワイヤレスイヤホン",
				Listings: []dto.ListingItem{
					amazonListing("B0BATCH0001", "Sony WF-1000XM5 Wireless Earbuds", utils.ToPtr(29980.0)),
					amazonListing("B0BATCH0002", "Anker Soundcore Liberty 4 NC", utils.ToPtr(12990.0)),
					// Re-sighting of the first product in the same batch
					amazonListing("B0BATCH0001", "Sony WF-1000XM5 Wireless Earbuds", utils.ToPtr(29980.0)),
				},
			}, nil)
			require.NoError(t, err)
			assert.Equal(t, 3, resp.ProductsFound)
			assert.Equal(t, 2, resp.ProductsAdded)
			assert.Equal(t, 0, resp.ListingsSkipped)
			assert.NotEmpty(t, resp.SessionID)

			// Both sightings of the first product are kept as observations
			canonicalID := models.DeriveCanonicalID(models.PlatformAmazonJP, "B0BATCH0001")
			observations, err := obsRepo.ListByCanonicalID(ctx, canonicalID)
			require.NoError(t, err)
			assert.Len(t, observations, 2)

			session, err := sessionRepo.BySessionID(ctx, resp.SessionID)
			require.NoError(t, err)
			require.NotNil(t, session)
			assert.Equal(t, models.SessionStatusCompleted, session.Status)
			assert.Equal(t, 3, session.ProductsFound)
			assert.Equal(t, 2, session.ProductsAdded)
			assert.NotNil(t, session.CompletedAt)
		})

		t.Run("SkipsUnresolvableListings", func(t *testing.T) {
			resp, err := flow.IngestListings(ctx, &dto.IngestListingsRequest{
				Kind: string(models.SessionKindDiscovery),
				Listings: []dto.ListingItem{
					amazonListing("B0SKIP00001", "Panasonic Eneloop Rechargeable Batteries", utils.ToPtr(1980.0)),
					// Unknown marketplace
					{Platform: "ebay", Title: "Some imported gadget with a long title"},
					// No URL and a title too short to carry identity
					{Platform: string(models.PlatformAmazonJP), Title: "abc"},
				},
			}, nil)
			require.NoError(t, err)
			assert.Equal(t, 1, resp.ProductsFound)
			assert.Equal(t, 1, resp.ProductsAdded)
			assert.Equal(t, 2, resp.ListingsSkipped)
		})

		t.Run("ReIngestIsIdempotentOnCanonicalStore", func(t *testing.T) {
			listing := amazonListing("B0REPEAT001", "Nintendo Switch Pro Controller", utils.ToPtr(6980.0))
			req := &dto.IngestListingsRequest{
				Kind:     string(models.SessionKindMonitoring),
				Listings: []dto.ListingItem{listing},
			}

			first, err := flow.IngestListings(ctx, req, nil)
			require.NoError(t, err)
			assert.Equal(t, 1, first.ProductsAdded)

			second, err := flow.IngestListings(ctx, req, nil)
			require.NoError(t, err)
			assert.Equal(t, 1, second.ProductsFound)
			assert.Equal(t, 0, second.ProductsAdded)

			// History still grows on every sighting
			canonicalID := models.DeriveCanonicalID(models.PlatformAmazonJP, "B0REPEAT001")
			observations, err := obsRepo.ListByCanonicalID(ctx, canonicalID)
			require.NoError(t, err)
			assert.Len(t, observations, 2)
		})

		t.Run("NilPriceObservationStored", func(t *testing.T) {
			resp, err := flow.IngestListings(ctx, &dto.IngestListingsRequest{
				Kind: string(models.SessionKindMonitoring),
				Listings: []dto.ListingItem{
					amazonListing("B0NOPRICE01", "Logicool MX Master 3S Mouse", nil),
				},
			}, nil)
			require.NoError(t, err)
			assert.Equal(t, 1, resp.ProductsFound)

			canonicalID := models.DeriveCanonicalID(models.PlatformAmazonJP, "B0NOPRICE01")
			observation, err := obsRepo.LatestByCanonicalID(ctx, canonicalID)
			require.NoError(t, err)
			require.NotNil(t, observation)
			assert.Nil(t, observation.Price)
		})

		t.Run("KeywordBatchCapturesSnapshot", func(t *testing.T) {
			resp, err := flow.IngestListings(ctx, &dto.IngestListingsRequest{
				Kind:    string(models.SessionKindDiscovery),
				Query:   "ゲーミングキーボード",
				Keyword: "ゲーミングキーボード",
				Listings: []dto.ListingItem{
					amazonListing("B0SNAP00001", "HHKB Professional Hybrid Type-S", utils.ToPtr(36850.0)),
					amazonListing("B0SNAP00002", "Keychron K8 Pro Wireless Keyboard", utils.ToPtr(15800.0)),
				},
			}, nil)
			require.NoError(t, err)

			snapshots, err := snapshotRepo.LatestTwoByKeyword(ctx, "ゲーミングキーボード")
			require.NoError(t, err)
			require.Len(t, snapshots, 1)
			assert.Equal(t, resp.SessionID, snapshots[0].SessionID)
			assert.Len(t, []models.RawListing(snapshots[0].Listings), 2)
		})

		t.Run("ExplicitObservedAtPreserved", func(t *testing.T) {
			later := utils.UTCNow().Add(-1 * time.Hour).Truncate(time.Second)
			earlier := later.Add(-24 * time.Hour)

			// The later sighting arrives first; each listing keeps its own scrape time
			resp, err := flow.IngestListings(ctx, &dto.IngestListingsRequest{
				Kind: string(models.SessionKindMonitoring),
				Listings: []dto.ListingItem{
					withObservedAt(amazonListing("B0DELAYED01", "Balmuda The Toaster Pro", utils.ToPtr(29700.0)), later),
					withObservedAt(amazonListing("B0DELAYED01", "Balmuda The Toaster Pro", utils.ToPtr(32900.0)), earlier),
				},
			}, nil)
			require.NoError(t, err)
			assert.Equal(t, 2, resp.ProductsFound)

			canonicalID := models.DeriveCanonicalID(models.PlatformAmazonJP, "B0DELAYED01")
			observations, err := obsRepo.ListByCanonicalID(ctx, canonicalID)
			require.NoError(t, err)
			require.Len(t, observations, 2)
			// History reads back in observed order, not arrival order
			assert.WithinDuration(t, earlier, observations[0].ObservedAt, time.Second)
			assert.WithinDuration(t, later, observations[1].ObservedAt, time.Second)
			require.NotNil(t, observations[0].Price)
			assert.Equal(t, 32900.0, *observations[0].Price)
		})

		t.Run("InvalidKindRejected", func(t *testing.T) {
			_, err := flow.IngestListings(ctx, &dto.IngestListingsRequest{
				Kind:     "backfill",
				Listings: []dto.ListingItem{amazonListing("B0KIND00001", "Any product title here", nil)},
			}, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrInvalidSessionKind)

			// Callers see the coded wrap, not just the bare sentinel
			var bizErr *businessflow.BusinessError
			require.ErrorAs(t, err, &bizErr)
			assert.Equal(t, "INGEST_LISTINGS_FAILED", bizErr.Code)
		})

		t.Run("EmptyBatchRejected", func(t *testing.T) {
			_, err := flow.IngestListings(ctx, &dto.IngestListingsRequest{
				Kind: string(models.SessionKindDiscovery),
			}, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrNoListings)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDiscoverKeyword(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		collector := services.NewMockCollector()
		flow := newIngestFlow(testDB, collector)
		snapshotRepo := repository.NewKeywordSnapshotRepository(testDB.DB)
		sessionRepo := repository.NewIngestSessionRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		t.Run("CollectsAcrossPlatforms", func(t *testing.T) {
			collector.SeedSearch(models.PlatformAmazonJP, "コーヒーミル", []models.RawListing{
				{
					Platform: models.PlatformAmazonJP,
					Title:    "Hario Ceramic Coffee Mill Skerton Plus",
					URL:      "https://www.amazon.co.jp/dp/B0COFFEE001",
					Price:    utils.ToPtr(3200.0),
					Currency: utils.DefaultCurrency,
				},
			})
			collector.SeedSearch(models.PlatformRakuten, "コーヒーミル", []models.RawListing{
				{
					Platform: models.PlatformRakuten,
					Title:    "Kalita Nice Cut G Coffee Grinder",
					URL:      "https://item.rakuten.co.jp/shop/product/kalita-ncg/",
					Price:    utils.ToPtr(26400.0),
					Currency: utils.DefaultCurrency,
				},
			})

			resp, err := flow.DiscoverKeyword(ctx, "コーヒーミル")
			require.NoError(t, err)
			assert.Equal(t, 2, resp.ProductsFound)
			assert.Equal(t, 2, resp.ProductsAdded)

			// Every supported marketplace was queried once
			assert.Len(t, collector.SearchCalls, len(models.AllPlatforms))

			session, err := sessionRepo.BySessionID(ctx, resp.SessionID)
			require.NoError(t, err)
			require.NotNil(t, session)
			assert.Equal(t, models.SessionKindDiscovery, session.Kind)
			assert.Equal(t, "コーヒーミル", session.Query)

			snapshots, err := snapshotRepo.LatestTwoByKeyword(ctx, "コーヒーミル")
			require.NoError(t, err)
			require.Len(t, snapshots, 1)
			assert.Len(t, []models.RawListing(snapshots[0].Listings), 2)
		})

		t.Run("AllPlatformsFailing", func(t *testing.T) {
			failing := services.NewMockCollector()
			failing.FailWith(errors.New("provider unavailable"), nil)
			failingFlow := newIngestFlow(testDB, failing)

			_, err := failingFlow.DiscoverKeyword(ctx, "コーヒーミル")
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrNoListings)
		})

		t.Run("EmptyKeywordRejected", func(t *testing.T) {
			_, err := flow.DiscoverKeyword(ctx, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrKeywordRequired)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestMonitorActiveProducts(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		collector := services.NewMockCollector()
		flow := newIngestFlow(testDB, collector)
		obsRepo := repository.NewObservationRepository(testDB.DB)
		canonicalRepo := repository.NewCanonicalProductRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		tracked := &models.CanonicalProduct{
			CanonicalID: models.DeriveCanonicalID(models.PlatformAmazonJP, "B0MONITOR01"),
			Platform:    models.PlatformAmazonJP,
			PlatformID:  "B0MONITOR01",
			Title:       "Anker PowerCore Essential 20000",
			URL:         "https://www.amazon.co.jp/dp/B0MONITOR01",
		}
		require.NoError(t, testDB.DB.Create(tracked).Error)

		gone := &models.CanonicalProduct{
			CanonicalID: models.DeriveCanonicalID(models.PlatformAmazonJP, "B0MONITOR02"),
			Platform:    models.PlatformAmazonJP,
			PlatformID:  "B0MONITOR02",
			Title:       "Discontinued Kettle That Vanished",
			URL:         "https://www.amazon.co.jp/dp/B0MONITOR02",
		}
		require.NoError(t, testDB.DB.Create(gone).Error)

		t.Run("ReChecksTrackedProducts", func(t *testing.T) {
			collector.SeedLookup(tracked.URL, &models.RawListing{
				Platform: models.PlatformAmazonJP,
				Title:    tracked.Title,
				URL:      tracked.URL,
				Price:    utils.ToPtr(4990.0),
				Currency: utils.DefaultCurrency,
			})
			// No seed for the second product, its lookup returns nil

			resp, err := flow.MonitorActiveProducts(ctx, 50)
			require.NoError(t, err)
			assert.Equal(t, 1, resp.ProductsFound)
			assert.Equal(t, 0, resp.ProductsAdded)
			assert.Len(t, collector.LookupCalls, 2)

			observation, err := obsRepo.LatestByCanonicalID(ctx, tracked.CanonicalID)
			require.NoError(t, err)
			require.NotNil(t, observation)
			require.NotNil(t, observation.Price)
			assert.Equal(t, 4990.0, *observation.Price)

			// The vanished product got no observation
			observations, err := obsRepo.ListByCanonicalID(ctx, gone.CanonicalID)
			require.NoError(t, err)
			assert.Empty(t, observations)
		})

		t.Run("NothingReCheckable", func(t *testing.T) {
			require.NoError(t, canonicalRepo.SetActive(ctx, tracked.CanonicalID, false))
			require.NoError(t, canonicalRepo.SetActive(ctx, gone.CanonicalID, false))

			resp, err := flow.MonitorActiveProducts(ctx, 50)
			require.NoError(t, err)
			assert.Equal(t, "No active products to monitor", resp.Message)
			assert.Equal(t, 0, resp.ProductsFound)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestListIngestSessions(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newIngestFlow(testDB, services.NewMockCollector())
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		older, err := fixtures.CreateTestSession(models.SessionKindDiscovery, models.SessionStatusCompleted)
		require.NoError(t, err)
		require.NoError(t, testDB.DB.Model(older).Update("started_at", utils.UTCNow().Add(-2*time.Hour)).Error)

		newer, err := fixtures.CreateTestSession(models.SessionKindMonitoring, models.SessionStatusFailed)
		require.NoError(t, err)

		t.Run("NewestFirst", func(t *testing.T) {
			resp, err := flow.ListSessions(ctx, 10, 0)
			require.NoError(t, err)
			require.Len(t, resp.Items, 2)
			assert.Equal(t, newer.SessionID, resp.Items[0].SessionID)
			assert.Equal(t, older.SessionID, resp.Items[1].SessionID)
			assert.Equal(t, string(models.SessionStatusFailed), resp.Items[0].Status)
		})

		t.Run("LimitApplies", func(t *testing.T) {
			resp, err := flow.ListSessions(ctx, 1, 0)
			require.NoError(t, err)
			assert.Len(t, resp.Items, 1)
		})

		return nil
	})
	require.NoError(t, err)
}
