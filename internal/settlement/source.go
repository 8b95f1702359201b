package settlement

import (
	"context"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// PriceSource yields price observations for one trading pair in time order.
// Next returns false once the source is exhausted.
type PriceSource interface {
	Next(ctx context.Context) (types.PricePoint, bool, error)
}

// SeriesSource replays a fetched price series. It never blocks.
type SeriesSource struct {
	points []types.PricePoint
	pos    int
}

// Compile-time interface check.
var _ PriceSource = (*SeriesSource)(nil)

// NewSeriesSource wraps points, which must already be sorted and deduplicated.
func NewSeriesSource(points []types.PricePoint) *SeriesSource {
	return &SeriesSource{points: points, pos: 0}
}

// Next returns the next point of the series.
func (s *SeriesSource) Next(_ context.Context) (types.PricePoint, bool, error) {
	if s.pos >= len(s.points) {
		return types.PricePoint{}, false, nil //nolint:exhaustruct
	}

	p := s.points[s.pos]
	s.pos++

	return p, true, nil
}

// Len is the total number of points.
func (s *SeriesSource) Len() int {
	return len(s.points)
}

// Remaining is the number of points not consumed yet.
func (s *SeriesSource) Remaining() int {
	return len(s.points) - s.pos
}
