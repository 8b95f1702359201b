package marketdata

import (
	"fmt"
	"time"

	"github.com/polygon-io/client-go/rest/models"
)

// Timespan is the bar resolution requested from bar-based venues.
// Settlement uses the close of each bar as the price point.
type Timespan string

const (
	TimespanOneSecond      Timespan = "1s"
	TimespanOneMinute      Timespan = "1m"
	TimespanFiveMinutes    Timespan = "5m"
	TimespanFifteenMinutes Timespan = "15m"
	TimespanOneHour        Timespan = "1h"
	TimespanOneDay         Timespan = "1d"
)

// bar describes one resolution as Polygon's aggregates endpoint expects it.
// Binance kline intervals use the Timespan string itself.
type bar struct {
	length     time.Duration
	multiplier int
	unit       models.Timespan
}

var bars = map[Timespan]bar{
	TimespanOneSecond:      {length: time.Second, multiplier: 1, unit: models.Second},
	TimespanOneMinute:      {length: time.Minute, multiplier: 1, unit: models.Minute},
	TimespanFiveMinutes:    {length: 5 * time.Minute, multiplier: 5, unit: models.Minute},
	TimespanFifteenMinutes: {length: 15 * time.Minute, multiplier: 15, unit: models.Minute},
	TimespanOneHour:        {length: time.Hour, multiplier: 1, unit: models.Hour},
	TimespanOneDay:         {length: 24 * time.Hour, multiplier: 1, unit: models.Day},
}

func (t Timespan) lookup() (bar, error) {
	b, ok := bars[t]
	if !ok {
		return bar{}, fmt.Errorf("unsupported timespan: %s", t) //nolint:exhaustruct
	}

	return b, nil
}

// Duration returns the bar length, or zero for an unknown timespan.
func (t Timespan) Duration() time.Duration {
	return bars[t].length
}

// Polygon returns the multiplier and unit of the aggregates endpoint.
func (t Timespan) Polygon() (int, models.Timespan, error) {
	b, err := t.lookup()
	if err != nil {
		return 0, "", err
	}

	return b.multiplier, b.unit, nil
}

// Binance returns the kline interval.
func (t Timespan) Binance() (string, error) {
	if _, err := t.lookup(); err != nil {
		return "", err
	}

	return string(t), nil
}
