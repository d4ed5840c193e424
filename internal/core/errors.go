package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned when a referenced stock record, item, or location does not exist.
var ErrRecordNotFound = errors.New("record not found")

// InsufficientStockError reports the concrete shortfall of a rejected transfer.
type InsufficientStockError struct {
	ItemID     int
	LocationID int
	Available  int
	Requested  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d at location %d: available %d, requested %d",
		e.ItemID, e.LocationID, e.Available, e.Requested)
}

// Shortfall is the number of units missing to satisfy the request.
func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}

// ConfigurationError indicates a provisioning fault such as a missing pool location.
// It is not a user error and must not be retried per request.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// InvalidArgumentError is returned for non-positive quantities, malformed identifiers,
// or requests that target the pool where a center is required.
type InvalidArgumentError struct {
	Field string
	Msg   string
}

func (e *InvalidArgumentError) Error() string {
	if e.Field == "" {
		return "invalid argument: " + e.Msg
	}
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Msg)
}

// Error kinds returned by Kind.
const (
	KindInsufficientStock = "INSUFFICIENT_STOCK"
	KindNotFound          = "NOT_FOUND"
	KindInvalidArgument   = "INVALID_ARGUMENT"
	KindConfiguration     = "CONFIGURATION_ERROR"
	KindCanceled          = "CANCELED"
	KindInternal          = "INTERNAL_ERROR"
)

// Kind classifies err into one of the Kind* codes. A nil error returns "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var insufficient *InsufficientStockError
	var invalid *InvalidArgumentError
	var config *ConfigurationError
	switch {
	case errors.As(err, &insufficient):
		return KindInsufficientStock
	case errors.As(err, &invalid):
		return KindInvalidArgument
	case errors.As(err, &config):
		return KindConfiguration
	case errors.Is(err, ErrRecordNotFound):
		return KindNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindInternal
}

func invalidArg(field, format string, args ...any) error {
	return &InvalidArgumentError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
