package fetcher

import (
	"context"

	"trm-report/internal/series"
)

// RateFetcher retrieves the full published TRM history, already normalized to
// one row per day.
type RateFetcher interface {
	FetchRates(ctx context.Context) (series.Series, error)
}
