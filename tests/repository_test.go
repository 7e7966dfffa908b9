// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"
	"time"

	"github.com/amane-dev/kakaku-tracker/models"
	"github.com/amane-dev/kakaku-tracker/repository"
	testingutil "github.com/amane-dev/kakaku-tracker/testing"
	"github.com/amane-dev/kakaku-tracker/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalProductRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewCanonicalProductRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("Save", func(t *testing.T) {
			product, err := fixtures.CreateTestProduct(models.PlatformAmazonJP)
			require.NoError(t, err)
			assert.NotZero(t, product.ID)
			assert.False(t, product.FirstSeen.IsZero())
		})

		t.Run("ByCanonicalID", func(t *testing.T) {
			original, err := fixtures.CreateTestProduct(models.PlatformRakuten)
			require.NoError(t, err)

			product, err := repo.ByCanonicalID(ctx, original.CanonicalID)
			require.NoError(t, err)
			require.NotNil(t, product)
			assert.Equal(t, original.CanonicalID, product.CanonicalID)
			assert.Equal(t, original.PlatformID, product.PlatformID)
		})

		t.Run("ByCanonicalIDNotFound", func(t *testing.T) {
			product, err := repo.ByCanonicalID(ctx, "missing_canonical")
			assert.NoError(t, err)
			assert.Nil(t, product)
		})

		t.Run("ByPlatformID", func(t *testing.T) {
			original, err := fixtures.CreateTestProduct(models.PlatformMercari)
			require.NoError(t, err)

			product, err := repo.ByPlatformID(ctx, models.PlatformMercari, original.PlatformID)
			require.NoError(t, err)
			require.NotNil(t, product)
			assert.Equal(t, original.CanonicalID, product.CanonicalID)
		})

		t.Run("UpsertCreatesOnce", func(t *testing.T) {
			seen := utils.UTCNow()
			product := &models.CanonicalProduct{
				CanonicalID: models.DeriveCanonicalID(models.PlatformAmazonJP, "B0UPSERT001"),
				Platform:    models.PlatformAmazonJP,
				PlatformID:  "B0UPSERT001",
				Title:       "Sony WH-1000XM5 Wireless Headphones",
				URL:         "https://www.amazon.co.jp/dp/B0UPSERT001",
				LastSeen:    seen,
			}
			created, err := repo.Upsert(ctx, product)
			require.NoError(t, err)
			assert.True(t, created)

			// Second upsert of the same identity is an update, not a new row
			again := &models.CanonicalProduct{
				CanonicalID: product.CanonicalID,
				Platform:    models.PlatformAmazonJP,
				PlatformID:  "B0UPSERT001",
				Title:       "Sony WH-1000XM5 Wireless Headphones Black",
				URL:         "https://www.amazon.co.jp/dp/B0UPSERT001",
				LastSeen:    seen.Add(time.Hour),
			}
			created, err = repo.Upsert(ctx, again)
			require.NoError(t, err)
			assert.False(t, created)

			count, err := repo.Count(ctx, models.CanonicalProductFilter{CanonicalID: &product.CanonicalID})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("UpsertAdvancesLastSeenAndTitle", func(t *testing.T) {
			seen := utils.UTCNow().Truncate(time.Second)
			canonicalID := models.DeriveCanonicalID(models.PlatformRakuten, "shop:item9001")
			first := &models.CanonicalProduct{
				CanonicalID: canonicalID,
				Platform:    models.PlatformRakuten,
				PlatformID:  "shop:item9001",
				Title:       "short",
				URL:         "https://item.rakuten.co.jp/shop/item9001/",
				LastSeen:    seen,
			}
			_, err := repo.Upsert(ctx, first)
			require.NoError(t, err)

			update := &models.CanonicalProduct{
				CanonicalID: canonicalID,
				Platform:    models.PlatformRakuten,
				PlatformID:  "shop:item9001",
				Title:       "Panasonic Rechargeable Shaver ES-LV9U",
				URL:         "https://item.rakuten.co.jp/shop/item9001/",
				LastSeen:    seen.Add(2 * time.Hour),
			}
			_, err = repo.Upsert(ctx, update)
			require.NoError(t, err)

			stored, err := repo.ByCanonicalID(ctx, canonicalID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, "Panasonic Rechargeable Shaver ES-LV9U", stored.Title)
			assert.True(t, stored.LastSeen.After(seen))

			// A stale sighting must not move last_seen backwards, and a short
			// title must not replace a longer one
			stale := &models.CanonicalProduct{
				CanonicalID: canonicalID,
				Platform:    models.PlatformRakuten,
				PlatformID:  "shop:item9001",
				Title:       "tiny",
				URL:         "https://item.rakuten.co.jp/shop/item9001/",
				LastSeen:    seen.Add(-24 * time.Hour),
			}
			_, err = repo.Upsert(ctx, stale)
			require.NoError(t, err)

			stored, err = repo.ByCanonicalID(ctx, canonicalID)
			require.NoError(t, err)
			assert.Equal(t, "Panasonic Rechargeable Shaver ES-LV9U", stored.Title)
			assert.True(t, stored.LastSeen.After(seen))
		})

		t.Run("TouchLastSeenAdoptsJapaneseTitle", func(t *testing.T) {
			product, err := fixtures.CreateTestProduct(models.PlatformMercari)
			require.NoError(t, err)

			// 12 runes clears the adoption bar; 5 runes does not even though
			// its byte length would
			seen := utils.UTCNow().Add(time.Hour).Truncate(time.Second)
			err = repo.TouchLastSeen(ctx, product.CanonicalID, seen, "ポータブル電源大容量防災")
			require.NoError(t, err)

			stored, err := repo.ByCanonicalID(ctx, product.CanonicalID)
			require.NoError(t, err)
			assert.Equal(t, "ポータブル電源大容量防災", stored.Title)
			assert.WithinDuration(t, seen, stored.LastSeen, time.Second)

			err = repo.TouchLastSeen(ctx, product.CanonicalID, seen.Add(time.Hour), "蓄電池新品")
			require.NoError(t, err)

			stored, err = repo.ByCanonicalID(ctx, product.CanonicalID)
			require.NoError(t, err)
			assert.Equal(t, "ポータブル電源大容量防災", stored.Title)
		})

		t.Run("SetActiveAndListActive", func(t *testing.T) {
			product, err := fixtures.CreateTestProduct(models.PlatformYahooShopping)
			require.NoError(t, err)

			err = repo.SetActive(ctx, product.CanonicalID, false)
			require.NoError(t, err)

			stored, err := repo.ByCanonicalID(ctx, product.CanonicalID)
			require.NoError(t, err)
			assert.False(t, utils.IsTrue(stored.IsActive))

			platform := models.PlatformYahooShopping
			active, err := repo.ListActive(ctx, &platform, 100, 0)
			require.NoError(t, err)
			for _, p := range active {
				assert.NotEqual(t, product.CanonicalID, p.CanonicalID)
			}
		})

		t.Run("SetActiveNotFound", func(t *testing.T) {
			err := repo.SetActive(ctx, "missing_canonical", false)
			assert.Error(t, err)
		})

		t.Run("Stats", func(t *testing.T) {
			product, err := fixtures.CreateTestProduct(models.PlatformQoo10)
			require.NoError(t, err)
			_, err = fixtures.CreateTestObservation(product.CanonicalID, utils.UTCNow(), utils.ToPtr(1980.0))
			require.NoError(t, err)

			stats, err := repo.Stats(ctx)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, stats.TotalCanonicalProducts, int64(1))
			assert.GreaterOrEqual(t, stats.TotalPricePoints, int64(1))
			assert.GreaterOrEqual(t, stats.ProductsWithPriceHistory, int64(1))
			assert.GreaterOrEqual(t, stats.ByPlatform[string(models.PlatformQoo10)], int64(1))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestObservationRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewObservationRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("ListByCanonicalIDOrdered", func(t *testing.T) {
			product, err := fixtures.CreateTestProduct(models.PlatformAmazonJP)
			require.NoError(t, err)

			now := utils.UTCNow().Truncate(time.Second)
			_, err = fixtures.CreatePriceSeries(product.CanonicalID, now, []*float64{
				utils.ToPtr(3000.0), utils.ToPtr(2800.0), utils.ToPtr(2900.0),
			})
			require.NoError(t, err)

			observations, err := repo.ListByCanonicalID(ctx, product.CanonicalID)
			require.NoError(t, err)
			require.Len(t, observations, 3)
			for i := 1; i < len(observations); i++ {
				assert.False(t, observations[i].ObservedAt.Before(observations[i-1].ObservedAt))
			}
		})

		t.Run("AppendOnlyAcrossSessions", func(t *testing.T) {
			product, err := fixtures.CreateTestProduct(models.PlatformRakuten)
			require.NoError(t, err)

			now := utils.UTCNow()
			_, err = fixtures.CreateTestObservation(product.CanonicalID, now.Add(-time.Hour), utils.ToPtr(5000.0))
			require.NoError(t, err)
			_, err = fixtures.CreateTestObservation(product.CanonicalID, now, utils.ToPtr(5000.0))
			require.NoError(t, err)

			// A re-sighting at the same price still lands as a new row
			observations, err := repo.ListByCanonicalID(ctx, product.CanonicalID)
			require.NoError(t, err)
			assert.Len(t, observations, 2)
		})

		t.Run("ListByCanonicalIDSince", func(t *testing.T) {
			product, err := fixtures.CreateTestProduct(models.PlatformMercari)
			require.NoError(t, err)

			now := utils.UTCNow().Truncate(time.Second)
			_, err = fixtures.CreateTestObservation(product.CanonicalID, now.Add(-48*time.Hour), utils.ToPtr(1000.0))
			require.NoError(t, err)
			_, err = fixtures.CreateTestObservation(product.CanonicalID, now.Add(-time.Hour), utils.ToPtr(900.0))
			require.NoError(t, err)

			recent, err := repo.ListByCanonicalIDSince(ctx, product.CanonicalID, now.Add(-24*time.Hour))
			require.NoError(t, err)
			require.Len(t, recent, 1)
			assert.Equal(t, 900.0, *recent[0].Price)
		})

		t.Run("ListCanonicalIDsObservedSince", func(t *testing.T) {
			product, err := fixtures.CreateTestProduct(models.PlatformAuPayMarket)
			require.NoError(t, err)

			now := utils.UTCNow()
			_, err = fixtures.CreateTestObservation(product.CanonicalID, now, utils.ToPtr(750.0))
			require.NoError(t, err)

			ids, err := repo.ListCanonicalIDsObservedSince(ctx, now.Add(-time.Minute))
			require.NoError(t, err)
			assert.Contains(t, ids, product.CanonicalID)
		})

		t.Run("LatestByCanonicalID", func(t *testing.T) {
			product, err := fixtures.CreateTestProduct(models.PlatformYahooShopping)
			require.NoError(t, err)

			now := utils.UTCNow().Truncate(time.Second)
			_, err = fixtures.CreateTestObservation(product.CanonicalID, now.Add(-time.Hour), utils.ToPtr(100.0))
			require.NoError(t, err)
			_, err = fixtures.CreateTestObservation(product.CanonicalID, now, nil)
			require.NoError(t, err)

			latest, err := repo.LatestByCanonicalID(ctx, product.CanonicalID)
			require.NoError(t, err)
			require.NotNil(t, latest)
			assert.Nil(t, latest.Price)
		})

		t.Run("NullPriceCounts", func(t *testing.T) {
			product, err := fixtures.CreateTestProduct(models.PlatformQoo10)
			require.NoError(t, err)

			before, err := repo.CountPricePoints(ctx)
			require.NoError(t, err)

			_, err = fixtures.CreateTestObservation(product.CanonicalID, utils.UTCNow(), nil)
			require.NoError(t, err)

			// Null-price observations are stored but not counted as price points
			after, err := repo.CountPricePoints(ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)

			_, err = fixtures.CreateTestObservation(product.CanonicalID, utils.UTCNow(), utils.ToPtr(200.0))
			require.NoError(t, err)

			after, err = repo.CountPricePoints(ctx)
			require.NoError(t, err)
			assert.Equal(t, before+1, after)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestIngestSessionRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewIngestSessionRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("BySessionID", func(t *testing.T) {
			original, err := fixtures.CreateTestSession(models.SessionKindDiscovery, models.SessionStatusRunning)
			require.NoError(t, err)

			session, err := repo.BySessionID(ctx, original.SessionID)
			require.NoError(t, err)
			require.NotNil(t, session)
			assert.Equal(t, models.SessionKindDiscovery, session.Kind)
		})

		t.Run("Complete", func(t *testing.T) {
			original, err := fixtures.CreateTestSession(models.SessionKindMonitoring, models.SessionStatusRunning)
			require.NoError(t, err)

			err = repo.Complete(ctx, original.SessionID, models.SessionStatusCompleted, 10, 3, 2)
			require.NoError(t, err)

			session, err := repo.BySessionID(ctx, original.SessionID)
			require.NoError(t, err)
			require.NotNil(t, session)
			assert.Equal(t, models.SessionStatusCompleted, session.Status)
			assert.Equal(t, 10, session.ProductsFound)
			assert.Equal(t, 3, session.ProductsAdded)
			assert.Equal(t, 2, session.ListingsSkipped)
			assert.NotNil(t, session.CompletedAt)
		})

		t.Run("CompleteNotFound", func(t *testing.T) {
			err := repo.Complete(ctx, "missing_session", models.SessionStatusCompleted, 0, 0, 0)
			assert.Error(t, err)
		})

		t.Run("ListRecentNewestFirst", func(t *testing.T) {
			_, err := fixtures.CreateTestSession(models.SessionKindDiscovery, models.SessionStatusCompleted)
			require.NoError(t, err)
			_, err = fixtures.CreateTestSession(models.SessionKindMonitoring, models.SessionStatusCompleted)
			require.NoError(t, err)

			sessions, err := repo.ListRecent(ctx, 10, 0)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(sessions), 2)
			for i := 1; i < len(sessions); i++ {
				assert.False(t, sessions[i].StartedAt.After(sessions[i-1].StartedAt))
			}
		})

		return nil
	})
	require.NoError(t, err)
}

func TestKeywordSnapshotRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewKeywordSnapshotRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("LatestTwoByKeyword", func(t *testing.T) {
			now := utils.UTCNow().Truncate(time.Second)
			listings := []models.RawListing{
				testingutil.MakeListing(models.PlatformAmazonJP, "B0SNAP0001", "Anker Soundcore Liberty 5", utils.ToPtr(12990.0)),
			}
			_, err := fixtures.CreateTestSnapshot("ワイヤレスイヤホン", now.Add(-2*time.Hour), listings)
			require.NoError(t, err)
			_, err = fixtures.CreateTestSnapshot("ワイヤレスイヤホン", now.Add(-time.Hour), listings)
			require.NoError(t, err)
			_, err = fixtures.CreateTestSnapshot("ワイヤレスイヤホン", now, listings)
			require.NoError(t, err)

			snapshots, err := repo.LatestTwoByKeyword(ctx, "ワイヤレスイヤホン")
			require.NoError(t, err)
			require.Len(t, snapshots, 2)
			assert.True(t, snapshots[0].CapturedAt.After(snapshots[1].CapturedAt))
			require.Len(t, snapshots[0].Listings, 1)
			assert.Equal(t, "Anker Soundcore Liberty 5", snapshots[0].Listings[0].Title)
		})

		t.Run("LatestTwoSingleCapture", func(t *testing.T) {
			listings := []models.RawListing{
				testingutil.MakeListing(models.PlatformRakuten, "shop:item42", "Logicool G PRO X", utils.ToPtr(17800.0)),
			}
			_, err := fixtures.CreateTestSnapshot("ゲーミングマウス", utils.UTCNow(), listings)
			require.NoError(t, err)

			snapshots, err := repo.LatestTwoByKeyword(ctx, "ゲーミングマウス")
			require.NoError(t, err)
			assert.Len(t, snapshots, 1)
		})

		t.Run("ListKeywords", func(t *testing.T) {
			keywords, err := repo.ListKeywords(ctx)
			require.NoError(t, err)
			assert.Contains(t, keywords, "ワイヤレスイヤホン")
			assert.Contains(t, keywords, "ゲーミングマウス")
		})

		return nil
	})
	require.NoError(t, err)
}
