// Package provider defines the boundary to upstream exchange-rate data
// sources. A RateSource fetches point-in-time rates, amount conversions,
// and historical series for a currency pair; the registry routes requests
// to a named provider implementation.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/seenimoa/fxstream/pkg/models"
)

// RateSource is the interface every upstream rate provider implements.
// Each call may fail with a transport or upstream error; callers treat
// any such failure as non-fatal. Any de-duplication or coalescing of
// calls is the caller's job, never the provider's.
type RateSource interface {
	// Latest fetches the current exchange rate for a pair.
	Latest(ctx context.Context, pair models.CurrencyPair) (*models.RateQuote, error)

	// Convert fetches an amount-scaled conversion for a pair.
	Convert(ctx context.Context, amount float64, pair models.CurrencyPair) (*models.ConversionResult, error)

	// History fetches the daily rate series for a pair over [start, end].
	History(ctx context.Context, pair models.CurrencyPair, start, end time.Time) (models.HistoricalSeries, error)

	// Currencies lists the supported currency codes with display names.
	Currencies(ctx context.Context) (map[string]string, error)
}

// Provider is a named, pingable RateSource.
type Provider interface {
	RateSource

	// Name returns the registry key for this provider, e.g. "frankfurter".
	Name() string

	// Ping verifies upstream connectivity.
	Ping(ctx context.Context) error
}

// ErrProviderNotFound is returned when a requested provider is not registered.
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return fmt.Sprintf("provider %q not found", e.Name)
}

// UpstreamError wraps a failed upstream fetch with the provider name and
// the operation that failed.
type UpstreamError struct {
	Provider string
	Op       string // "latest", "convert", "history", "currencies"
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
