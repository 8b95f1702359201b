// Package writer exports price history to files that the parquet provider can replay offline.
package writer

import (
	"github.com/rxtech-lab/argo-signals/internal/types"
)

// PriceWriter is the export lifecycle: Initialize once, Write each point,
// then Finalize to learn where the data ended up. Close is always safe to call.
type PriceWriter interface {
	Initialize() error
	Write(pair string, point types.PricePoint) error
	Finalize() (outputPath string, err error)
	Close() error
}

// WriteAll runs the whole lifecycle on w for the points of pair and returns
// the output location.
func WriteAll(w PriceWriter, pair string, points []types.PricePoint) (string, error) {
	if err := w.Initialize(); err != nil {
		return "", err
	}
	defer w.Close()

	for _, p := range points {
		if err := w.Write(pair, p); err != nil {
			return "", err
		}
	}

	return w.Finalize()
}
