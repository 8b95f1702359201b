package provider

import (
	"context"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
)

// MemoryProvider serves fixed series per pair. It is safe for concurrent use.
type MemoryProvider struct {
	mu     sync.RWMutex
	series map[string][]types.PricePoint
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		mu:     sync.RWMutex{},
		series: make(map[string][]types.PricePoint),
	}
}

// Set replaces the series of pair.
func (m *MemoryProvider) Set(pair string, points []types.PricePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.series[pair] = marketdata.Normalize(append([]types.PricePoint(nil), points...), time.Time{}, time.Time{})
}

// Append adds points to the series of pair.
func (m *MemoryProvider) Append(pair string, points ...types.PricePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	merged := append(append([]types.PricePoint(nil), m.series[pair]...), points...)
	m.series[pair] = marketdata.Normalize(merged, time.Time{}, time.Time{})
}

// GetPriceHistory returns the stored points of pair inside [from, to].
func (m *MemoryProvider) GetPriceHistory(_ context.Context, pair string, from, to time.Time) ([]types.PricePoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return marketdata.Normalize(append([]types.PricePoint(nil), m.series[pair]...), from, to), nil
}

// GetCurrentPrice returns the last stored point of pair.
func (m *MemoryProvider) GetCurrentPrice(_ context.Context, pair string) (optional.Option[float64], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	points := m.series[pair]
	if len(points) == 0 {
		return optional.None[float64](), nil
	}

	return optional.Some(points[len(points)-1].Price), nil
}
