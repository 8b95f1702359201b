package marketdata

import (
	"testing"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/stretchr/testify/suite"
)

type MarketDataTestSuite struct {
	suite.Suite
}

func TestMarketDataSuite(t *testing.T) {
	suite.Run(t, new(MarketDataTestSuite))
}

func (suite *MarketDataTestSuite) TestNormalize() {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []types.PricePoint{
		{Timestamp: base.Add(2 * time.Minute), Price: 102},
		{Timestamp: base, Price: 100},
		{Timestamp: base.Add(time.Minute), Price: 101},
		{Timestamp: base.Add(time.Minute), Price: 999},
		{Timestamp: base.Add(3 * time.Minute), Price: 0},
		{Timestamp: base.Add(-time.Minute), Price: 99},
		{Timestamp: base.Add(time.Hour), Price: 150},
	}

	got := Normalize(points, base, base.Add(10*time.Minute))
	suite.Require().Len(got, 3)
	suite.Equal(100.0, got[0].Price)
	suite.Equal(101.0, got[1].Price)
	suite.Equal(102.0, got[2].Price)
}

func (suite *MarketDataTestSuite) TestNormalizeEmpty() {
	suite.Empty(Normalize(nil, time.Time{}, time.Time{}))
}

func (suite *MarketDataTestSuite) TestProviderRegistry() {
	suite.Equal([]string{"binance", "clickhouse", "memory", "parquet", "polygon"}, GetSupportedProviders())

	info, err := GetProviderInfo("polygon")
	suite.NoError(err)
	suite.True(info.RequiresAuth)

	_, err = GetProviderInfo("kraken")
	suite.Error(err)
}

func (suite *MarketDataTestSuite) TestTimespan() {
	multiplier, span, err := TimespanFiveMinutes.Polygon()
	suite.NoError(err)
	suite.Equal(5, multiplier)
	suite.Equal(models.Minute, span)

	interval, err := TimespanOneHour.Binance()
	suite.NoError(err)
	suite.Equal("1h", interval)

	_, err = Timespan("7m").Binance()
	suite.Error(err)
	suite.Equal(15*time.Minute, TimespanFifteenMinutes.Duration())
}
