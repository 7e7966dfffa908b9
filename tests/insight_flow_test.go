package tests

import (
	"bytes"
	"regexp"
	"testing"

	businessflow "github.com/amane-dev/kakaku-tracker/business_flow"
	"github.com/amane-dev/kakaku-tracker/config"
	"github.com/amane-dev/kakaku-tracker/models"
	"github.com/amane-dev/kakaku-tracker/repository"
	testingutil "github.com/amane-dev/kakaku-tracker/testing"
	"github.com/amane-dev/kakaku-tracker/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newInsightFlow(testDB *testingutil.TestDB) businessflow.InsightFlow {
	return businessflow.NewInsightFlow(
		repository.NewCanonicalProductRepository(testDB.DB),
		repository.NewObservationRepository(testDB.DB),
		newChangeFlow(testDB),
		nil,
		&config.CacheConfig{Enabled: false},
	)
}

func TestGetStats(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newInsightFlow(testDB)
		canonicalRepo := repository.NewCanonicalProductRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		now := utils.UTCNow()

		priced, err := fixtures.CreateTestProduct(models.PlatformAmazonJP)
		require.NoError(t, err)
		_, err = fixtures.CreatePriceSeries(priced.CanonicalID, now, []*float64{
			utils.ToPtr(4980.0), nil, utils.ToPtr(4480.0),
		})
		require.NoError(t, err)

		_, err = fixtures.CreateTestProduct(models.PlatformAmazonJP)
		require.NoError(t, err)

		retired, err := fixtures.CreateTestProduct(models.PlatformRakuten)
		require.NoError(t, err)
		require.NoError(t, canonicalRepo.SetActive(ctx, retired.CanonicalID, false))

		resp, err := flow.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), resp.TotalCanonicalProducts)
		assert.Equal(t, int64(2), resp.ActiveProducts)
		// Null-price observations are not price points
		assert.Equal(t, int64(2), resp.TotalPricePoints)
		assert.Equal(t, int64(1), resp.ProductsWithPriceHistory)
		assert.Equal(t, int64(2), resp.ByPlatform[models.PlatformAmazonJP.String()])
		assert.Equal(t, int64(1), resp.ByPlatform[models.PlatformRakuten.String()])

		return nil
	})
	require.NoError(t, err)
}

func TestGetTopChanges(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newInsightFlow(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		now := utils.UTCNow()

		big, err := fixtures.CreateTestProduct(models.PlatformAmazonJP)
		require.NoError(t, err)
		_, err = fixtures.CreatePriceSeries(big.CanonicalID, now, []*float64{
			utils.ToPtr(10000.0), utils.ToPtr(9000.0),
		})
		require.NoError(t, err)

		small, err := fixtures.CreateTestProduct(models.PlatformRakuten)
		require.NoError(t, err)
		_, err = fixtures.CreatePriceSeries(small.CanonicalID, now, []*float64{
			utils.ToPtr(5000.0), utils.ToPtr(4900.0),
		})
		require.NoError(t, err)

		t.Run("TruncatesToN", func(t *testing.T) {
			resp, err := flow.GetTopChanges(ctx, 1, 24)
			require.NoError(t, err)
			require.Len(t, resp.Items, 1)
			assert.Equal(t, big.CanonicalID, resp.Items[0].CanonicalID)
		})

		t.Run("ReturnsAllWhenFewerThanN", func(t *testing.T) {
			resp, err := flow.GetTopChanges(ctx, 50, 24)
			require.NoError(t, err)
			assert.Len(t, resp.Items, 2)
		})

		t.Run("RejectsOutOfRangeN", func(t *testing.T) {
			_, err := flow.GetTopChanges(ctx, 0, 24)
			assert.ErrorIs(t, err, businessflow.ErrInvalidTopN)

			_, err = flow.GetTopChanges(ctx, 101, 24)
			assert.ErrorIs(t, err, businessflow.ErrInvalidTopN)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestListProducts(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newInsightFlow(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		for i := 0; i < 3; i++ {
			_, err := fixtures.CreateTestProduct(models.PlatformAmazonJP)
			require.NoError(t, err)
		}
		_, err := fixtures.CreateTestProduct(models.PlatformRakuten)
		require.NoError(t, err)

		t.Run("Paginates", func(t *testing.T) {
			page1, err := flow.ListProducts(ctx, "", 1, 3)
			require.NoError(t, err)
			assert.Len(t, page1.Items, 3)
			assert.Equal(t, int64(4), page1.Total)

			page2, err := flow.ListProducts(ctx, "", 2, 3)
			require.NoError(t, err)
			assert.Len(t, page2.Items, 1)
			assert.Equal(t, int64(4), page2.Total)
		})

		t.Run("FiltersByPlatform", func(t *testing.T) {
			resp, err := flow.ListProducts(ctx, models.PlatformRakuten.String(), 1, 10)
			require.NoError(t, err)
			require.Len(t, resp.Items, 1)
			assert.Equal(t, int64(1), resp.Total)
			assert.Equal(t, models.PlatformRakuten.String(), resp.Items[0].Platform)
		})

		t.Run("RejectsBadInput", func(t *testing.T) {
			_, err := flow.ListProducts(ctx, "", 0, 10)
			assert.ErrorIs(t, err, businessflow.ErrInvalidPage)

			_, err = flow.ListProducts(ctx, "", 1, 0)
			assert.ErrorIs(t, err, businessflow.ErrInvalidPageSize)

			_, err = flow.ListProducts(ctx, "", 1, 101)
			assert.ErrorIs(t, err, businessflow.ErrInvalidPageSize)

			_, err = flow.ListProducts(ctx, "ebay", 1, 10)
			assert.ErrorIs(t, err, businessflow.ErrInvalidPlatform)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestGetProductHistory(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newInsightFlow(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		now := utils.UTCNow()

		product, err := fixtures.CreateTestProduct(models.PlatformAmazonJP)
		require.NoError(t, err)
		_, err = fixtures.CreatePriceSeries(product.CanonicalID, now, []*float64{
			utils.ToPtr(2480.0), utils.ToPtr(2280.0),
		})
		require.NoError(t, err)

		t.Run("ReturnsProductWithObservations", func(t *testing.T) {
			resp, err := flow.GetProductHistory(ctx, product.CanonicalID)
			require.NoError(t, err)
			assert.Equal(t, product.CanonicalID, resp.Product.CanonicalID)
			require.Len(t, resp.Observations, 2)
			require.NotNil(t, resp.Observations[0].Price)
			assert.Equal(t, 2480.0, *resp.Observations[0].Price)
		})

		t.Run("NotFound", func(t *testing.T) {
			_, err := flow.GetProductHistory(ctx, "missing_canonical")
			require.Error(t, err)
			assert.True(t, businessflow.IsProductNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDeactivateProduct(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newInsightFlow(testDB)
		canonicalRepo := repository.NewCanonicalProductRepository(testDB.DB)
		obsRepo := repository.NewObservationRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		product, err := fixtures.CreateTestProduct(models.PlatformMercari)
		require.NoError(t, err)
		_, err = fixtures.CreateTestObservation(product.CanonicalID, utils.UTCNow(), utils.ToPtr(1200.0))
		require.NoError(t, err)

		t.Run("RetiresProductKeepsHistory", func(t *testing.T) {
			resp, err := flow.DeactivateProduct(ctx, product.CanonicalID)
			require.NoError(t, err)
			assert.False(t, resp.IsActive)

			stored, err := canonicalRepo.ByCanonicalID(ctx, product.CanonicalID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			require.NotNil(t, stored.IsActive)
			assert.False(t, *stored.IsActive)

			observations, err := obsRepo.ListByCanonicalID(ctx, product.CanonicalID)
			require.NoError(t, err)
			assert.Len(t, observations, 1)
		})

		t.Run("NotFound", func(t *testing.T) {
			_, err := flow.DeactivateProduct(ctx, "missing_canonical")
			require.Error(t, err)
			assert.True(t, businessflow.IsProductNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestExportChanges(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newInsightFlow(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		product, err := fixtures.CreateTestProduct(models.PlatformAmazonJP)
		require.NoError(t, err)
		_, err = fixtures.CreatePriceSeries(product.CanonicalID, utils.UTCNow(), []*float64{
			utils.ToPtr(15800.0), utils.ToPtr(13800.0),
		})
		require.NoError(t, err)

		filename, data, err := flow.ExportChanges(ctx, 24)
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^price_changes_\d{8}_24h\.xlsx$`), filename)
		require.NotEmpty(t, data)

		xl, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer func() { _ = xl.Close() }()

		rows, err := xl.GetRows("price_changes")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "canonical_id", rows[0][0])
		assert.Equal(t, product.CanonicalID, rows[1][0])
		assert.Equal(t, "15800.00", rows[1][4])
		assert.Equal(t, "13800.00", rows[1][5])

		return nil
	})
	require.NoError(t, err)
}
