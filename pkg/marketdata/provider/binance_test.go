package provider

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/ratelimit"
	argoerrors "github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"github.com/stretchr/testify/suite"
)

type fakeBinanceAPI struct {
	pages     [][]*binance.Kline
	calls     int
	starts    []int64
	klinesErr error
	price     string
	priceErr  error
}

func (f *fakeBinanceAPI) NewKlinesService() BinanceKlinesService {
	return &fakeKlinesService{api: f}
}

func (f *fakeBinanceAPI) LastPrice(_ context.Context, _ string) (string, error) {
	return f.price, f.priceErr
}

type fakeKlinesService struct {
	api   *fakeBinanceAPI
	start int64
}

func (s *fakeKlinesService) Symbol(string) BinanceKlinesService   { return s }
func (s *fakeKlinesService) Interval(string) BinanceKlinesService { return s }
func (s *fakeKlinesService) EndTime(int64) BinanceKlinesService   { return s }
func (s *fakeKlinesService) Limit(int) BinanceKlinesService       { return s }

func (s *fakeKlinesService) StartTime(start int64) BinanceKlinesService {
	s.start = start

	return s
}

func (s *fakeKlinesService) Do(context.Context) ([]*binance.Kline, error) {
	s.api.starts = append(s.api.starts, s.start)
	if s.api.klinesErr != nil {
		return nil, s.api.klinesErr
	}

	if s.api.calls >= len(s.api.pages) {
		return nil, nil
	}

	page := s.api.pages[s.api.calls]
	s.api.calls++

	return page, nil
}

func makeKlines(start time.Time, count int, price float64) []*binance.Kline {
	klines := make([]*binance.Kline, 0, count)
	for i := 0; i < count; i++ {
		open := start.Add(time.Duration(i) * time.Minute)
		klines = append(klines, &binance.Kline{ //nolint:exhaustruct
			OpenTime:  open.UnixMilli(),
			CloseTime: open.Add(time.Minute).UnixMilli() - 1,
			Close:     strconv.FormatFloat(price+float64(i), 'f', 2, 64),
		})
	}

	return klines
}

type BinanceClientTestSuite struct {
	suite.Suite
	base time.Time
}

func TestBinanceClientSuite(t *testing.T) {
	suite.Run(t, new(BinanceClientTestSuite))
}

func (suite *BinanceClientTestSuite) SetupTest() {
	suite.base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *BinanceClientTestSuite) newClient(api *fakeBinanceAPI) *BinanceClient {
	client, err := NewBinanceClientWithAPI(api, marketdata.TimespanOneMinute, ratelimit.Noop{}, logger.NewNopLogger())
	suite.Require().NoError(err)

	return client
}

func (suite *BinanceClientTestSuite) TestInvalidTimespan() {
	_, err := NewBinanceClientWithAPI(&fakeBinanceAPI{}, marketdata.Timespan("7m"), nil, logger.NewNopLogger()) //nolint:exhaustruct
	suite.Error(err)
	suite.True(argoerrors.HasCode(err, argoerrors.ErrCodeInvalidConfiguration))
}

func (suite *BinanceClientTestSuite) TestHistoryPaginates() {
	first := makeKlines(suite.base, binanceKlinesPageSize, 100)
	second := makeKlines(suite.base.Add(binanceKlinesPageSize*time.Minute), 10, 2000)
	api := &fakeBinanceAPI{pages: [][]*binance.Kline{first, second}} //nolint:exhaustruct

	points, err := suite.newClient(api).GetPriceHistory(context.Background(), "BTCUSDT", suite.base, suite.base.Add(48*time.Hour))
	suite.Require().NoError(err)
	suite.Len(points, binanceKlinesPageSize+10)
	suite.Equal(2, api.calls)
	suite.Equal(first[len(first)-1].CloseTime+1, api.starts[1])

	for i := 1; i < len(points); i++ {
		suite.True(points[i].Timestamp.After(points[i-1].Timestamp))
	}
}

func (suite *BinanceClientTestSuite) TestHistorySkipsBadClose() {
	klines := makeKlines(suite.base, 3, 100)
	klines[1].Close = "not-a-number"
	api := &fakeBinanceAPI{pages: [][]*binance.Kline{klines}} //nolint:exhaustruct

	points, err := suite.newClient(api).GetPriceHistory(context.Background(), "BTCUSDT", suite.base, suite.base.Add(time.Hour))
	suite.NoError(err)
	suite.Len(points, 2)
}

func (suite *BinanceClientTestSuite) TestHistoryErrorIsRetryable() {
	api := &fakeBinanceAPI{klinesErr: errors.New("503 service unavailable")} //nolint:exhaustruct

	_, err := suite.newClient(api).GetPriceHistory(context.Background(), "BTCUSDT", suite.base, suite.base.Add(time.Hour))
	suite.Error(err)
	suite.True(argoerrors.HasCode(err, argoerrors.ErrCodePriceFetchFailed))
	suite.True(argoerrors.IsRetryable(err))
}

func (suite *BinanceClientTestSuite) TestCurrentPrice() {
	tests := []struct {
		name      string
		api       *fakeBinanceAPI
		expectErr bool
		expected  float64
		present   bool
	}{
		{name: "quote", api: &fakeBinanceAPI{price: "50123.5"}, expected: 50123.5, present: true},             //nolint:exhaustruct
		{name: "no quote", api: &fakeBinanceAPI{price: ""}, present: false},                                    //nolint:exhaustruct
		{name: "garbage", api: &fakeBinanceAPI{price: "abc"}, present: false},                                  //nolint:exhaustruct
		{name: "api error", api: &fakeBinanceAPI{priceErr: errors.New("timeout")}, expectErr: true, present: false}, //nolint:exhaustruct
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			price, err := suite.newClient(tt.api).GetCurrentPrice(context.Background(), "BTCUSDT")
			if tt.expectErr {
				suite.Error(err)
				suite.True(argoerrors.HasCode(err, argoerrors.ErrCodeCurrentPriceFailed))

				return
			}

			suite.NoError(err)
			suite.Equal(tt.present, price.IsSome())

			if tt.present {
				suite.Equal(tt.expected, price.Unwrap())
			}
		})
	}
}
