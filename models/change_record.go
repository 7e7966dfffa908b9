package models

import (
	"math"
	"time"
)

// ChangeRecord describes a detected price movement between the two most
// recent priced observations of a canonical product. It is derived data,
// computed on demand and optionally cached, never stored as primary state.
type ChangeRecord struct {
	CanonicalID   string   `json:"canonical_id"`
	Title         string   `json:"title"`
	Platform      Platform `json:"platform"`
	URL           string   `json:"url"`
	OldPrice      float64  `json:"old_price"`
	NewPrice      float64  `json:"new_price"`
	ChangeAmount  float64  `json:"change_amount"`
	// ChangePercent is nil when the old price was zero: the amount is still
	// reported but no percentage is computable.
	ChangePercent *float64  `json:"change_percent,omitempty"`
	OldTime       time.Time `json:"old_time"`
	NewTime       time.Time `json:"new_time"`
}

// AbsPercent returns the magnitude of the percentage change, or 0 when no
// percentage is computable.
func (c *ChangeRecord) AbsPercent() float64 {
	if c.ChangePercent == nil {
		return 0
	}
	return math.Abs(*c.ChangePercent)
}

// AbsAmount returns the magnitude of the price change
func (c *ChangeRecord) AbsAmount() float64 {
	return math.Abs(c.ChangeAmount)
}

// IsIncrease reports whether the price went up
func (c *ChangeRecord) IsIncrease() bool {
	return c.ChangeAmount > 0
}

// Round2 rounds to two decimals, the precision used for reported amounts and
// percentages.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
