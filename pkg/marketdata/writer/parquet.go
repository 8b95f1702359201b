package writer

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-signals/internal/types"
)

var _ PriceWriter = (*ParquetWriter)(nil)

const insertBatch = 500

type row struct {
	pair  string
	point types.PricePoint
}

// ParquetWriter collects price points and, on Finalize, stages them in an
// in-memory DuckDB table that is copied to a parquet file with the columns
// id, time, symbol, close. The parquet provider reads that layout back.
type ParquetWriter struct {
	db         *sql.DB
	rows       []row
	outputPath string
}

func NewParquetWriter(outputPath string) *ParquetWriter {
	return &ParquetWriter{db: nil, rows: nil, outputPath: outputPath}
}

// Initialize opens the staging database.
func (w *ParquetWriter) Initialize() error {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open DuckDB connection: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE market_data (id TEXT, time TIMESTAMP, symbol TEXT, close DOUBLE)`); err != nil {
		db.Close()

		return fmt.Errorf("failed to create staging table: %w", err)
	}

	w.db = db

	return nil
}

// Write buffers one price point of pair.
func (w *ParquetWriter) Write(pair string, point types.PricePoint) error {
	if w.db == nil {
		return fmt.Errorf("writer not initialized")
	}

	w.rows = append(w.rows, row{pair: pair, point: point})

	return nil
}

// Finalize stages the buffered rows and exports them ordered by symbol and
// time. It returns the parquet path.
func (w *ParquetWriter) Finalize() (string, error) {
	if w.db == nil {
		return "", fmt.Errorf("writer not initialized")
	}

	if err := w.stage(); err != nil {
		return "", err
	}

	// COPY does not accept bound parameters.
	target := strings.ReplaceAll(w.outputPath, "'", "''")
	query := fmt.Sprintf(`COPY (SELECT * FROM market_data ORDER BY symbol, time) TO '%s' (FORMAT PARQUET)`, target)

	if _, err := w.db.Exec(query); err != nil {
		return "", fmt.Errorf("failed to export to parquet: %w", err)
	}

	return w.outputPath, nil
}

func (w *ParquetWriter) stage() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for start := 0; start < len(w.rows); start += insertBatch {
		batch := w.rows[start:min(start+insertBatch, len(w.rows))]

		insert := squirrel.Insert("market_data").Columns("id", "time", "symbol", "close")
		for _, r := range batch {
			insert = insert.Values(uuid.NewString(), r.point.Timestamp.UTC(), r.pair, r.point.Price)
		}

		query, args, err := insert.ToSql()
		if err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("failed to build insert: %w", err)
		}

		if _, err := tx.Exec(query, args...); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("failed to insert price points: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.rows = nil

	return nil
}

// Close drops any buffered rows and closes the staging database. It is safe
// to call more than once.
func (w *ParquetWriter) Close() error {
	w.rows = nil

	if w.db == nil {
		return nil
	}

	err := w.db.Close()
	w.db = nil

	if err != nil {
		return fmt.Errorf("failed to close staging database: %w", err)
	}

	return nil
}
