package provider

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata/writer"
	"github.com/stretchr/testify/suite"
)

type ParquetProviderTestSuite struct {
	suite.Suite
	path string
	base time.Time
}

func TestParquetProviderSuite(t *testing.T) {
	suite.Run(t, new(ParquetProviderTestSuite))
}

func (suite *ParquetProviderTestSuite) SetupTest() {
	suite.base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	suite.path = filepath.Join(suite.T().TempDir(), "prices.parquet")

	w := writer.NewParquetWriter(suite.path)
	suite.Require().NoError(w.Initialize())

	defer w.Close()

	for i := 0; i < 5; i++ {
		ts := suite.base.Add(time.Duration(i) * time.Minute)
		suite.Require().NoError(w.Write("BTCUSDT", types.PricePoint{Timestamp: ts, Price: 50000 + float64(i)*10}))
		suite.Require().NoError(w.Write("ETHUSDT", types.PricePoint{Timestamp: ts, Price: 3000}))
	}

	_, err := w.Finalize()
	suite.Require().NoError(err)
}

func (suite *ParquetProviderTestSuite) TestHistoryFiltersPairAndWindow() {
	p, err := NewParquetProvider(suite.path, logger.NewNopLogger())
	suite.Require().NoError(err)

	defer p.Close()

	points, err := p.GetPriceHistory(context.Background(), "BTCUSDT", suite.base.Add(time.Minute), suite.base.Add(3*time.Minute))
	suite.Require().NoError(err)
	suite.Require().Len(points, 3)
	suite.Equal(50010.0, points[0].Price)
	suite.Equal(50030.0, points[2].Price)
}

func (suite *ParquetProviderTestSuite) TestCurrentPrice() {
	p, err := NewParquetProvider(suite.path, logger.NewNopLogger())
	suite.Require().NoError(err)

	defer p.Close()

	price, err := p.GetCurrentPrice(context.Background(), "BTCUSDT")
	suite.NoError(err)
	suite.Equal(50040.0, price.Unwrap())

	price, err = p.GetCurrentPrice(context.Background(), "XRPUSDT")
	suite.NoError(err)
	suite.True(price.IsNone())
}

func (suite *ParquetProviderTestSuite) TestMissingFile() {
	_, err := NewParquetProvider(filepath.Join(suite.T().TempDir(), "missing.parquet"), logger.NewNopLogger())
	suite.Error(err)

	_, err = NewParquetProvider("", logger.NewNopLogger())
	suite.Error(err)
}
