// Package businessflow contains the core business logic and use cases for price tracking workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Product-related errors
	ErrProductNotFound = errors.New("canonical product not found")
	ErrInvalidPlatform = errors.New("unknown platform")

	// Ingest-related errors
	ErrNoListings         = errors.New("at least one listing is required")
	ErrInvalidSessionKind = errors.New("session kind must be discovery or monitoring")

	// Change detection errors
	ErrKeywordRequired = errors.New("keyword is required")
	ErrInvalidWindow   = errors.New("window hours must not be negative")

	// Insight errors
	ErrInvalidTopN = errors.New("top N must be between 1 and 100")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsProductNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound)
}

func IsInvalidPlatform(err error) bool {
	return errors.Is(err, ErrInvalidPlatform)
}

func IsInvalidWindow(err error) bool {
	return errors.Is(err, ErrInvalidWindow)
}
