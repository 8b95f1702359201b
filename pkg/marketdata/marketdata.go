// Package marketdata defines the price feed contract consumed by settlement.
package marketdata

import (
	"context"
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/types"
)

// PriceSeriesProvider supplies historical and current prices for a trading pair.
type PriceSeriesProvider interface {
	// GetPriceHistory returns the points in [from, to], ascending and
	// deduplicated by timestamp. An empty slice is not an error.
	GetPriceHistory(ctx context.Context, pair string, from, to time.Time) ([]types.PricePoint, error)
	// GetCurrentPrice returns the latest price, or None when the venue has no quote.
	GetCurrentPrice(ctx context.Context, pair string) (optional.Option[float64], error)
}

// Normalize sorts points ascending, drops points outside [from, to] and
// keeps the first point seen for every timestamp. Non-positive prices are dropped.
func Normalize(points []types.PricePoint, from, to time.Time) []types.PricePoint {
	filtered := make([]types.PricePoint, 0, len(points))

	for _, p := range points {
		if p.Price <= 0 {
			continue
		}

		if !from.IsZero() && p.Timestamp.Before(from) {
			continue
		}

		if !to.IsZero() && p.Timestamp.After(to) {
			continue
		}

		filtered = append(filtered, p)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	out := filtered[:0]

	for i, p := range filtered {
		if i > 0 && p.Timestamp.Equal(out[len(out)-1].Timestamp) {
			continue
		}

		out = append(out, p)
	}

	return out
}
