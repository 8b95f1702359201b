package mocks

import (
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/shopspring/decimal"
)

// DataGenerator produces seeded random-walk price paths for settlement tests.
// The same seed always yields the same path.
type DataGenerator struct {
	rng *rand.Rand
}

func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

// GeneratorConfig shapes a generated path.
type GeneratorConfig struct {
	StartTime    time.Time
	Interval     time.Duration
	Count        int
	InitialPrice float64
	// Volatility is the standard deviation of one step as a fraction of price.
	Volatility float64
	// Trend is the drift spread over the whole path, as a fraction of price.
	Trend float64
}

// DefaultConfig is ten thousand one-minute BTC-like ticks with no drift.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		StartTime:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:     time.Minute,
		Count:        10000,
		InitialPrice: 50000,
		Volatility:   0.001,
		Trend:        0,
	}
}

// Generate walks the price multiplicatively with normal shocks. The first
// point is InitialPrice and prices never reach zero. Prices are rounded to
// cents.
func (g *DataGenerator) Generate(cfg GeneratorConfig) []types.PricePoint {
	if cfg.Count <= 0 {
		return nil
	}

	points := make([]types.PricePoint, 0, cfg.Count)
	stepDrift := cfg.Trend / float64(cfg.Count)
	price := cfg.InitialPrice

	for i := range cfg.Count {
		points = append(points, types.PricePoint{
			Timestamp: cfg.StartTime.Add(time.Duration(i) * cfg.Interval),
			Price:     decimal.NewFromFloat(price).Round(2).InexactFloat64(),
		})

		factor := 1 + stepDrift + cfg.Volatility*g.rng.NormFloat64()
		if factor <= 0 {
			factor = 0.99
		}

		price *= factor
	}

	return points
}

// GenerateAround is DefaultConfig anchored at price and start, so an entry
// at price is armed by the first point.
func (g *DataGenerator) GenerateAround(price float64, start time.Time, count int) []types.PricePoint {
	cfg := DefaultConfig()
	cfg.StartTime = start
	cfg.InitialPrice = price
	cfg.Count = count

	return g.Generate(cfg)
}
