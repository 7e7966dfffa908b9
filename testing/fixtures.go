// Package testing provides test utilities and database setup for testing the price tracking system
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amane-dev/kakaku-tracker/models"
	"github.com/amane-dev/kakaku-tracker/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestProduct creates a canonical product on the given platform with a
// random platform id
func (tf *TestFixtures) CreateTestProduct(platform models.Platform) (*models.CanonicalProduct, error) {
	platformID := fmt.Sprintf("TESTPID%08d", rand.Intn(100000000))

	product := &models.CanonicalProduct{
		CanonicalID:   models.DeriveCanonicalID(platform, platformID),
		Platform:      platform,
		PlatformID:    platformID,
		Title:         fmt.Sprintf("Test Product %s", platformID),
		URL:           fmt.Sprintf("https://example.com/%s", platformID),
		DiscoveredVia: "fixture",
		IsActive:      utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(product).Error; err != nil {
		return nil, fmt.Errorf("failed to create test product: %w", err)
	}
	return product, nil
}

// CreateTestObservation appends one observation for a canonical product at the
// given time, price may be nil
func (tf *TestFixtures) CreateTestObservation(canonicalID string, observedAt time.Time, price *float64) (*models.Observation, error) {
	observation := &models.Observation{
		CanonicalID: canonicalID,
		ObservedAt:  observedAt,
		Price:       price,
		Currency:    utils.DefaultCurrency,
		TitleAtTime: "Test Product",
		SessionID:   "fixture_session",
	}

	if err := tf.DB.DB.Create(observation).Error; err != nil {
		return nil, fmt.Errorf("failed to create test observation: %w", err)
	}
	return observation, nil
}

// CreatePriceSeries appends a sequence of observations one hour apart, ending
// at the given time. Nil entries produce null-price observations.
func (tf *TestFixtures) CreatePriceSeries(canonicalID string, endAt time.Time, prices []*float64) ([]*models.Observation, error) {
	observations := make([]*models.Observation, 0, len(prices))
	start := endAt.Add(-time.Duration(len(prices)-1) * time.Hour)
	for i, price := range prices {
		obs, err := tf.CreateTestObservation(canonicalID, start.Add(time.Duration(i)*time.Hour), price)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

// CreateTestSession creates an ingest session row in the given state
func (tf *TestFixtures) CreateTestSession(kind models.SessionKind, status models.SessionStatus) (*models.IngestSession, error) {
	session := &models.IngestSession{
		SessionID: fmt.Sprintf("%s_fixture_%d", kind, rand.Intn(100000000)),
		Kind:      kind,
		Query:     "fixture query",
		Status:    status,
	}

	if err := tf.DB.DB.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}
	return session, nil
}

// CreateTestSnapshot captures one keyword snapshot with the given listings
func (tf *TestFixtures) CreateTestSnapshot(keyword string, capturedAt time.Time, listings []models.RawListing) (*models.KeywordSnapshot, error) {
	snapshot := &models.KeywordSnapshot{
		Keyword:    keyword,
		SessionID:  fmt.Sprintf("discovery_fixture_%d", rand.Intn(100000000)),
		CapturedAt: capturedAt,
		Listings:   listings,
	}

	if err := tf.DB.DB.Create(snapshot).Error; err != nil {
		return nil, fmt.Errorf("failed to create test snapshot: %w", err)
	}
	return snapshot, nil
}

// MakeListing builds a raw listing for fixtures and mock collectors
func MakeListing(platform models.Platform, platformID, title string, price *float64) models.RawListing {
	return models.RawListing{
		Platform: platform,
		Title:    title,
		URL:      fmt.Sprintf("https://example.com/%s", platformID),
		Price:    price,
		Currency: utils.DefaultCurrency,
	}
}
