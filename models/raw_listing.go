package models

import (
	"strconv"
	"strings"
	"time"
)

// RawListing is one scraped listing as delivered by a collector. It is
// ephemeral producer input: no uniqueness is guaranteed across calls and the
// same listing may arrive many times.
type RawListing struct {
	Platform     Platform  `json:"platform" validate:"required"`
	Title        string    `json:"title" validate:"required_without=URL"`
	URL          string    `json:"url,omitempty" validate:"omitempty,url"`
	Price        *float64  `json:"price,omitempty" validate:"omitempty,gte=0"`
	Currency     string    `json:"currency,omitempty"`
	Rating       *float64  `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	ReviewCount  *int      `json:"review_count,omitempty" validate:"omitempty,gte=0"`
	Availability *string   `json:"availability,omitempty"`
	Category     *string   `json:"category,omitempty"`
	Brand        *string   `json:"brand,omitempty"`
	ObservedAt   time.Time `json:"observed_at,omitempty"`
}

// CoercePrice parses a loosely formatted price string into a float pointer.
// Collectors occasionally deliver prices with currency marks or thousands
// separators; anything that does not parse is treated as absent, never fatal.
func CoercePrice(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	s = strings.NewReplacer(",", "", "¥", "", "円", "", " ", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

// CoerceRating parses a rating string, rejecting values outside 0..5.
func CoerceRating(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 5 {
		return nil
	}
	return &v
}
