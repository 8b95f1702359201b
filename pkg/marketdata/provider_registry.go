package marketdata

import (
	"fmt"
	"slices"
)

// ProviderType names a price source in the run configuration.
type ProviderType string

const (
	ProviderBinance    ProviderType = "binance"
	ProviderPolygon    ProviderType = "polygon"
	ProviderParquet    ProviderType = "parquet"
	ProviderClickHouse ProviderType = "clickhouse"
	ProviderMemory     ProviderType = "memory"
)

// ProviderInfo is what the providers command prints for each price source.
type ProviderInfo struct {
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Description string `json:"description" yaml:"description"`
	// RequiresAuth is true when the run configuration must carry credentials.
	RequiresAuth bool `json:"requires_auth" yaml:"requires_auth"`
	// Live is true when the provider can answer GetCurrentPrice, which the
	// monitor and open-trade marking need.
	Live bool `json:"live" yaml:"live"`
}

func info(t ProviderType, display, description string, auth, live bool) ProviderInfo {
	return ProviderInfo{Name: string(t), DisplayName: display, Description: description, RequiresAuth: auth, Live: live}
}

var providers = map[ProviderType]ProviderInfo{
	ProviderBinance:    info(ProviderBinance, "Binance", "Crypto venue klines and ticker prices", false, true),
	ProviderPolygon:    info(ProviderPolygon, "Polygon.io", "FX and stock aggregates with last trade quotes", true, true),
	ProviderParquet:    info(ProviderParquet, "Parquet files", "Offline price history read from parquet files through DuckDB", false, false),
	ProviderClickHouse: info(ProviderClickHouse, "ClickHouse", "Price history stored in a ClickHouse price_timeseries table", true, false),
	ProviderMemory:     info(ProviderMemory, "In-memory", "Fixed series for tests and dry runs", false, true),
}

// GetSupportedProviders returns the provider names in alphabetical order.
func GetSupportedProviders() []string {
	names := make([]string, 0, len(providers))
	for t := range providers {
		names = append(names, string(t))
	}

	slices.Sort(names)

	return names
}

// GetProviderInfo looks up a provider by name.
func GetProviderInfo(name string) (ProviderInfo, error) {
	p, ok := providers[ProviderType(name)]
	if !ok {
		return ProviderInfo{}, fmt.Errorf("unsupported provider: %s", name) //nolint:exhaustruct
	}

	return p, nil
}
