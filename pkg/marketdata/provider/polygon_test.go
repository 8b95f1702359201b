package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/ratelimit"
	argoerrors "github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"github.com/stretchr/testify/suite"
)

type fakePolygonAPI struct {
	aggs      []models.Agg
	aggsErr   error
	params    *models.ListAggsParams
	lastPrice float64
	hasLast   bool
}

func (f *fakePolygonAPI) Aggregates(_ context.Context, params *models.ListAggsParams) ([]models.Agg, error) {
	f.params = params

	return f.aggs, f.aggsErr
}

func (f *fakePolygonAPI) LastTrade(context.Context, string) (float64, bool, error) {
	return f.lastPrice, f.hasLast, nil
}

type PolygonClientTestSuite struct {
	suite.Suite
}

func TestPolygonClientSuite(t *testing.T) {
	suite.Run(t, new(PolygonClientTestSuite))
}

func (suite *PolygonClientTestSuite) TestRequiresAPIKey() {
	_, err := NewPolygonClient("", marketdata.TimespanOneMinute, ratelimit.Noop{}, logger.NewNopLogger())
	suite.Error(err)
	suite.True(argoerrors.HasCode(err, argoerrors.ErrCodeMissingParameter))
}

func (suite *PolygonClientTestSuite) TestHistory() {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	api := &fakePolygonAPI{ //nolint:exhaustruct
		aggs: []models.Agg{
			{Timestamp: models.Millis(base.Add(time.Minute)), Close: 1.0850}, //nolint:exhaustruct
			{Timestamp: models.Millis(base), Close: 1.0840},                  //nolint:exhaustruct
		},
	}

	client, err := NewPolygonClientWithAPI(api, marketdata.TimespanFiveMinutes, nil, logger.NewNopLogger())
	suite.Require().NoError(err)

	points, err := client.GetPriceHistory(context.Background(), "C:EURUSD", base, base.Add(time.Hour))
	suite.Require().NoError(err)
	suite.Require().Len(points, 2)
	suite.Equal(1.0840, points[0].Price)
	suite.Equal(5, api.params.Multiplier)
	suite.Equal(models.Minute, api.params.Timespan)
}

func (suite *PolygonClientTestSuite) TestHistoryError() {
	api := &fakePolygonAPI{aggsErr: errors.New("boom")} //nolint:exhaustruct
	client, err := NewPolygonClientWithAPI(api, marketdata.TimespanOneMinute, nil, logger.NewNopLogger())
	suite.Require().NoError(err)

	_, err = client.GetPriceHistory(context.Background(), "AAPL", time.Now().Add(-time.Hour), time.Now())
	suite.True(argoerrors.IsRetryable(err))
}

func (suite *PolygonClientTestSuite) TestCurrentPrice() {
	api := &fakePolygonAPI{lastPrice: 187.2, hasLast: true} //nolint:exhaustruct
	client, err := NewPolygonClientWithAPI(api, marketdata.TimespanOneMinute, nil, logger.NewNopLogger())
	suite.Require().NoError(err)

	price, err := client.GetCurrentPrice(context.Background(), "AAPL")
	suite.NoError(err)
	suite.Equal(187.2, price.Unwrap())

	api.hasLast = false
	price, err = client.GetCurrentPrice(context.Background(), "AAPL")
	suite.NoError(err)
	suite.True(price.IsNone())
}
