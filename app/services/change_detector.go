package services

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/amane-dev/kakaku-tracker/models"
	"github.com/amane-dev/kakaku-tracker/utils"
)

// ChangeDetector derives price movements and set-level differences from
// observation history and keyword snapshots. It is pure computation over its
// inputs; persistence stays with the callers.
type ChangeDetector interface {
	DetectPointChange(history []*models.Observation) *models.ChangeRecord
	CompareSnapshots(oldSet, newSet []models.RawListing) *models.SnapshotComparison
	NotableChanges(comparison *models.SnapshotComparison, minChangePercent float64) []models.NotablePriceChange
	ProductKey(listing *models.RawListing) string
}

// ChangeDetectorImpl implements ChangeDetector
type ChangeDetectorImpl struct {
	ratingDelta float64
}

// NewChangeDetector creates a new change detector. ratingDelta is the minimum
// rating difference reported as a change.
func NewChangeDetector(ratingDelta float64) ChangeDetector {
	return &ChangeDetectorImpl{ratingDelta: ratingDelta}
}

// DetectPointChange compares the two most recent priced observations of one
// product. Observations without a price are skipped, never treated as zero.
// Returns nil when fewer than two priced observations exist or when the two
// prices agree after rounding.
func (d *ChangeDetectorImpl) DetectPointChange(history []*models.Observation) *models.ChangeRecord {
	priced := make([]*models.Observation, 0, len(history))
	for _, obs := range history {
		if obs.HasPrice() {
			priced = append(priced, obs)
		}
	}
	if len(priced) < 2 {
		return nil
	}

	sort.SliceStable(priced, func(i, j int) bool {
		return priced[i].ObservedAt.Before(priced[j].ObservedAt)
	})

	oldObs := priced[len(priced)-2]
	newObs := priced[len(priced)-1]

	oldPrice := models.Round2(*oldObs.Price)
	newPrice := models.Round2(*newObs.Price)
	if oldPrice == newPrice {
		return nil
	}

	record := &models.ChangeRecord{
		CanonicalID:  newObs.CanonicalID,
		Title:        newObs.TitleAtTime,
		URL:          newObs.URL,
		OldPrice:     oldPrice,
		NewPrice:     newPrice,
		ChangeAmount: models.Round2(newPrice - oldPrice),
		OldTime:      oldObs.ObservedAt,
		NewTime:      newObs.ObservedAt,
	}
	if oldPrice != 0 {
		record.ChangePercent = utils.ToPtr(models.Round2((newPrice - oldPrice) / oldPrice * 100))
	}
	return record
}

// CompareSnapshots diffs two listing sets captured for the same keyword.
// Listings are matched by normalized title and platform, so reordering
// between captures produces no changes.
func (d *ChangeDetectorImpl) CompareSnapshots(oldSet, newSet []models.RawListing) *models.SnapshotComparison {
	now := utils.UTCNow()

	oldByKey := d.indexByKey(oldSet)
	newByKey := d.indexByKey(newSet)

	var changes []models.SetChange

	for key, listing := range newByKey {
		if _, ok := oldByKey[key]; !ok {
			changes = append(changes, models.SetChange{
				Type:       models.SetChangeNewProduct,
				ProductKey: key,
				Platform:   listing.Platform,
				NewValue:   listing.Title,
				Timestamp:  now,
			})
		}
	}

	for key, listing := range oldByKey {
		if _, ok := newByKey[key]; !ok {
			changes = append(changes, models.SetChange{
				Type:       models.SetChangeRemovedProduct,
				ProductKey: key,
				Platform:   listing.Platform,
				OldValue:   listing.Title,
				Timestamp:  now,
			})
		}
	}

	for key, newListing := range newByKey {
		oldListing, ok := oldByKey[key]
		if !ok {
			continue
		}

		if !floatPtrEqual(oldListing.Price, newListing.Price) {
			changes = append(changes, models.SetChange{
				Type:       models.SetChangePriceChange,
				ProductKey: key,
				Platform:   newListing.Platform,
				OldValue:   oldListing.Price,
				NewValue:   newListing.Price,
				Timestamp:  now,
			})
		}

		if !stringPtrEqual(oldListing.Availability, newListing.Availability) {
			changes = append(changes, models.SetChange{
				Type:       models.SetChangeAvailabilityChange,
				ProductKey: key,
				Platform:   newListing.Platform,
				OldValue:   oldListing.Availability,
				NewValue:   newListing.Availability,
				Timestamp:  now,
			})
		}

		if oldListing.Rating != nil && newListing.Rating != nil &&
			math.Abs(*oldListing.Rating-*newListing.Rating) >= d.ratingDelta {
			changes = append(changes, models.SetChange{
				Type:       models.SetChangeRatingChange,
				ProductKey: key,
				Platform:   newListing.Platform,
				OldValue:   oldListing.Rating,
				NewValue:   newListing.Rating,
				Timestamp:  now,
			})
		}
	}

	comparison := &models.SnapshotComparison{
		HasChanges:  len(changes) > 0,
		Changes:     changes,
		TotalBefore: len(oldByKey),
		TotalAfter:  len(newByKey),
		ComparedAt:  now,
	}
	for _, change := range changes {
		switch change.Type {
		case models.SetChangeNewProduct:
			comparison.NewProducts++
		case models.SetChangeRemovedProduct:
			comparison.RemovedProducts++
		case models.SetChangePriceChange:
			comparison.PriceChanges++
		case models.SetChangeAvailabilityChange:
			comparison.AvailabilityChanges++
		case models.SetChangeRatingChange:
			comparison.RatingChanges++
		}
	}
	return comparison
}

// NotableChanges extracts price movements at or above the threshold percent
// from a snapshot comparison
func (d *ChangeDetectorImpl) NotableChanges(comparison *models.SnapshotComparison, minChangePercent float64) []models.NotablePriceChange {
	var notable []models.NotablePriceChange
	for _, change := range comparison.Changes {
		if change.Type != models.SetChangePriceChange {
			continue
		}
		oldPrice, okOld := priceValue(change.OldValue)
		newPrice, okNew := priceValue(change.NewValue)
		if !okOld || !okNew || oldPrice == 0 {
			continue
		}
		diff := newPrice - oldPrice
		percent := diff / oldPrice * 100
		if math.Abs(percent) >= minChangePercent {
			notable = append(notable, models.NotablePriceChange{
				ProductKey:      change.ProductKey,
				Platform:        change.Platform,
				OldPrice:        oldPrice,
				NewPrice:        newPrice,
				PriceDifference: models.Round2(diff),
				PercentChange:   models.Round2(percent),
			})
		}
	}
	return notable
}

// ProductKey builds the set-matching identity for a listing from its
// normalized title and platform
func (d *ChangeDetectorImpl) ProductKey(listing *models.RawListing) string {
	return fmt.Sprintf("%s_%s", normalizeTitleForMatching(listing.Title), listing.Platform)
}

func (d *ChangeDetectorImpl) indexByKey(listings []models.RawListing) map[string]models.RawListing {
	indexed := make(map[string]models.RawListing, len(listings))
	for _, listing := range listings {
		indexed[d.ProductKey(&listing)] = listing
	}
	return indexed
}

// Fragments that vary between scrapes of the same listing and would break
// title matching
var matchingPromotionalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*\(amazon\.co\.jp exclusive\)`),
	regexp.MustCompile(`(?i)\s*amazon\.co\.jp\s*exclusive`),
	regexp.MustCompile(`(?i)\s*\+.*cloth\s*$`),
	regexp.MustCompile(`\s*お得な.*セット\s*$`),
}

var (
	matchingWhitespaceRe = regexp.MustCompile(`\s+`)
	ernieBallRe          = regexp.MustCompile(`ernie\s*ball`)
	regularSlinkyRe      = regexp.MustCompile(`regular\s*slinky`)
)

func normalizeTitleForMatching(title string) string {
	title = strings.ToLower(title)
	for _, pattern := range matchingPromotionalPatterns {
		title = pattern.ReplaceAllString(title, "")
	}
	title = matchingWhitespaceRe.ReplaceAllString(title, " ")
	title = ernieBallRe.ReplaceAllString(title, "ernie ball")
	title = regularSlinkyRe.ReplaceAllString(title, "regular slinky")
	return strings.TrimSpace(title)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func priceValue(v any) (float64, bool) {
	switch p := v.(type) {
	case *float64:
		if p == nil {
			return 0, false
		}
		return *p, true
	case float64:
		return p, true
	default:
		return 0, false
	}
}
