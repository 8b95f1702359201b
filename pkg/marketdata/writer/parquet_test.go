package writer

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/stretchr/testify/suite"
)

type ParquetWriterTestSuite struct {
	suite.Suite
}

func TestParquetWriterSuite(t *testing.T) {
	suite.Run(t, new(ParquetWriterTestSuite))
}

func (suite *ParquetWriterTestSuite) TestWriteAndExport() {
	path := filepath.Join(suite.T().TempDir(), "prices.parquet")
	w := NewParquetWriter(path)
	suite.Require().NoError(w.Initialize())

	defer w.Close()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	suite.NoError(w.Write("BTCUSDT", types.PricePoint{Timestamp: base.Add(time.Minute), Price: 50100}))
	suite.NoError(w.Write("BTCUSDT", types.PricePoint{Timestamp: base, Price: 50000}))

	out, err := w.Finalize()
	suite.Require().NoError(err)
	suite.Equal(path, out)

	db, err := sql.Open("duckdb", "")
	suite.Require().NoError(err)

	defer db.Close()

	var count int
	suite.Require().NoError(db.QueryRow("SELECT COUNT(*) FROM read_parquet('" + path + "')").Scan(&count))
	suite.Equal(2, count)
}

func (suite *ParquetWriterTestSuite) TestWriteBeforeInitialize() {
	w := NewParquetWriter("unused.parquet")
	suite.Error(w.Write("BTCUSDT", types.PricePoint{Timestamp: time.Now(), Price: 1}))

	_, err := w.Finalize()
	suite.Error(err)
	suite.NoError(w.Close())
}

func (suite *ParquetWriterTestSuite) TestWriteAll() {
	path := filepath.Join(suite.T().TempDir(), "eth.parquet")
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	out, err := WriteAll(NewParquetWriter(path), "ETHUSDT", []types.PricePoint{
		{Timestamp: base, Price: 3000},
		{Timestamp: base.Add(time.Minute), Price: 3010},
		{Timestamp: base.Add(2 * time.Minute), Price: 3005},
	})
	suite.Require().NoError(err)
	suite.Equal(path, out)

	db, err := sql.Open("duckdb", "")
	suite.Require().NoError(err)

	defer db.Close()

	var symbol string

	var count int
	suite.Require().NoError(db.QueryRow("SELECT symbol, COUNT(*) FROM read_parquet('" + path + "') GROUP BY symbol").Scan(&symbol, &count))
	suite.Equal("ETHUSDT", symbol)
	suite.Equal(3, count)
}
