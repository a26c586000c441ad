package interfaces

import "context"

// RateClient provides currency exchange rates. Implementations must return
// 1.0 when the currencies match; the caller decides caching and retries.
type RateClient interface {
	GetExchangeRate(ctx context.Context, from, to string) (float64, error)
}

// LookupClient provides best-effort external identity lookups with no
// guaranteed freshness. A miss returns an empty name and nil error.
type LookupClient interface {
	LookupNameFromTicker(ctx context.Context, ticker string) (string, error)
	LookupNameFromISIN(ctx context.Context, isin string) (string, error)
}
