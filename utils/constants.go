package utils

import (
	"time"
)

// Context keys used to thread request metadata through handler and flow layers
type ContextKey string

const (
	RequestIDKey  ContextKey = "X-Request-ID"
	UserAgentKey  ContextKey = "User-Agent"
	IPAddressKey  ContextKey = "IP-Address"
	EndpointKey   ContextKey = "Endpoint"
	TimeoutKey    ContextKey = "Timeout"
	CancelFuncKey ContextKey = "CancelFunc"
)

// Tracking constants
const (
	// DefaultCurrency is the currency assumed for every marketplace price
	DefaultCurrency = "JPY"

	// DefaultChangeWindow is the default lookback window for price-change queries
	DefaultChangeWindow = 24 * time.Hour

	// NotableChangePercent is the default threshold above which a price change
	// is surfaced separately from the full change list
	NotableChangePercent = 5.0

	// RatingChangeDelta is the minimum rating delta treated as a change
	RatingChangeDelta = 0.1
)

// Cache keys for derived report data
const (
	// StatsCacheKey caches the canonical store summary
	StatsCacheKey = "report:stats"

	// ChangesCacheKeyPrefix prefixes per-window price change reports
	ChangesCacheKeyPrefix = "report:changes:"
)
