package types

import "time"

// PricePoint is one observation of a trading pair's price.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Price     float64   `json:"price" yaml:"price"`
}
