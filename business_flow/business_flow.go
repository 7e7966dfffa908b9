// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/amane-dev/kakaku-tracker/app/dto"
	"github.com/amane-dev/kakaku-tracker/config"
	"github.com/amane-dev/kakaku-tracker/models"
	"github.com/amane-dev/kakaku-tracker/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// redisKey namespaces a cache key with the configured prefix
func redisKey(cfg config.CacheConfig, key string) string {
	return cfg.RedisPrefix + key
}

// ToCanonicalProductDTO converts a canonical product model for responses
func ToCanonicalProductDTO(product models.CanonicalProduct) dto.CanonicalProductDTO {
	return dto.CanonicalProductDTO{
		CanonicalID:   product.CanonicalID,
		Platform:      string(product.Platform),
		PlatformID:    product.PlatformID,
		Title:         product.Title,
		URL:           product.URL,
		Brand:         product.Brand,
		Category:      product.Category,
		DiscoveredVia: product.DiscoveredVia,
		FirstSeen:     product.FirstSeen.UTC().Format(time.RFC3339),
		LastSeen:      product.LastSeen.UTC().Format(time.RFC3339),
		IsActive:      utils.IsTrue(product.IsActive),
	}
}

// ToObservationDTO converts an observation model for responses
func ToObservationDTO(observation models.Observation) dto.ObservationDTO {
	return dto.ObservationDTO{
		ObservedAt:   observation.ObservedAt.UTC().Format(time.RFC3339),
		Price:        observation.Price,
		Currency:     observation.Currency,
		Availability: observation.Availability,
		Rating:       observation.Rating,
		ReviewCount:  observation.ReviewCount,
		TitleAtTime:  observation.TitleAtTime,
	}
}

// ToPriceChangeDTO converts a change record for responses
func ToPriceChangeDTO(record models.ChangeRecord) dto.PriceChangeDTO {
	return dto.PriceChangeDTO{
		CanonicalID:   record.CanonicalID,
		Title:         record.Title,
		Platform:      string(record.Platform),
		URL:           record.URL,
		OldPrice:      record.OldPrice,
		NewPrice:      record.NewPrice,
		ChangeAmount:  record.ChangeAmount,
		ChangePercent: record.ChangePercent,
		OldTime:       record.OldTime.UTC().Format(time.RFC3339),
		NewTime:       record.NewTime.UTC().Format(time.RFC3339),
	}
}

// ToIngestSessionDTO converts an ingest session model for responses
func ToIngestSessionDTO(session models.IngestSession) dto.IngestSessionDTO {
	out := dto.IngestSessionDTO{
		SessionID:       session.SessionID,
		Kind:            string(session.Kind),
		Query:           session.Query,
		StartedAt:       session.StartedAt.UTC().Format(time.RFC3339),
		ProductsFound:   session.ProductsFound,
		ProductsAdded:   session.ProductsAdded,
		ListingsSkipped: session.ListingsSkipped,
		Status:          string(session.Status),
	}
	if session.CompletedAt != nil {
		out.CompletedAt = session.CompletedAt.UTC().Format(time.RFC3339)
	}
	return out
}

// ToSetChangeDTO converts a snapshot set change for responses
func ToSetChangeDTO(change models.SetChange) dto.SetChangeDTO {
	return dto.SetChangeDTO{
		ChangeType: string(change.Type),
		ProductKey: change.ProductKey,
		Platform:   string(change.Platform),
		OldValue:   change.OldValue,
		NewValue:   change.NewValue,
	}
}

// ToNotableChangeDTO converts a notable price change for responses
func ToNotableChangeDTO(change models.NotablePriceChange) dto.NotableChangeDTO {
	return dto.NotableChangeDTO{
		ProductKey:      change.ProductKey,
		Platform:        string(change.Platform),
		OldPrice:        change.OldPrice,
		NewPrice:        change.NewPrice,
		PriceDifference: change.PriceDifference,
		PercentChange:   change.PercentChange,
	}
}
