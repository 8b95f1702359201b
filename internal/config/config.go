// Package config loads the run configuration and the prop firm rule sets.
package config

import (
	"bytes"
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-signals/internal/coordinator"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/monitor"
	"github.com/rxtech-lab/argo-signals/internal/ratelimit"
	"github.com/rxtech-lab/argo-signals/internal/settlement"
	"github.com/rxtech-lab/argo-signals/internal/storage"
	"github.com/rxtech-lab/argo-signals/internal/storage/memory"
	"github.com/rxtech-lab/argo-signals/internal/storage/postgres"
	"github.com/rxtech-lab/argo-signals/internal/storage/sqlstore"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata/provider"
	"gopkg.in/yaml.v3"
)

type StorageType string

const (
	StorageMemory   StorageType = "memory"
	StorageDuckDB   StorageType = "duckdb"
	StorageSQLite   StorageType = "sqlite"
	StoragePostgres StorageType = "postgres"
)

type StorageConfig struct {
	Type StorageType `yaml:"type" validate:"required,oneof=memory duckdb sqlite postgres"`
	// DSN is a file path for duckdb and sqlite, a connection string for postgres.
	DSN string `yaml:"dsn" validate:"required_unless=Type memory"`
}

type SettlementConfig struct {
	// BreakevenAfterTPs defaults to 1 when unset. Zero disables the move.
	BreakevenAfterTPs *int    `yaml:"breakeven_after_tps" validate:"omitempty,gte=0"`
	MaxDurationDays   int     `yaml:"max_duration_days" validate:"gte=0"`
	QuantityPrecision *int    `yaml:"quantity_precision" validate:"omitempty,gte=0,lte=18"`
	EntryTolerancePct float64 `yaml:"entry_tolerance_pct" validate:"gte=0,lte=100"`

	Concurrency      int           `yaml:"concurrency" validate:"gte=0"`
	MaxFetchAttempts int           `yaml:"max_fetch_attempts" validate:"gte=0"`
	RetryBackoff     time.Duration `yaml:"retry_backoff" validate:"gte=0"`
	MarkOpenTrades   bool          `yaml:"mark_open_trades"`
}

type MonitorConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" validate:"gte=0"`
	Rescan       time.Duration `yaml:"rescan" validate:"gte=0"`
}

// RunConfig is the document passed with --config.
type RunConfig struct {
	Storage    StorageConfig    `yaml:"storage"`
	Provider   provider.Config  `yaml:"provider"`
	RateLimit  ratelimit.Config `yaml:"rate_limit"`
	Settlement SettlementConfig `yaml:"settlement"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	// RulesFile is a rule document; empty uses the built-in catalog.
	RulesFile string `yaml:"rules_file"`
	// PropFirms selects rule sets by name; empty selects all.
	PropFirms []string       `yaml:"prop_firms"`
	Logging   logger.Options `yaml:"logging"`
}

// ParseRunConfig expands environment variables in data, decodes it and
// validates the result. API keys missing from the document are read from
// the environment.
func ParseRunConfig(data []byte) (*RunConfig, error) {
	var cfg RunConfig

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "decode run config", err)
	}

	cfg.applyEnv()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid run config", err)
	}

	return &cfg, nil
}

// LoadRunConfig reads and parses the run configuration at path.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "read run config %s", path)
	}

	return ParseRunConfig(data)
}

func (c *RunConfig) applyEnv() {
	switch c.Provider.Type {
	case marketdata.ProviderBinance:
		if c.Provider.APIKey == "" {
			c.Provider.APIKey = os.Getenv("BINANCE_API_KEY")
		}

		if c.Provider.SecretKey == "" {
			c.Provider.SecretKey = os.Getenv("BINANCE_SECRET_KEY")
		}
	case marketdata.ProviderPolygon:
		if c.Provider.APIKey == "" {
			c.Provider.APIKey = os.Getenv("POLYGON_API_KEY")
		}
	}
}

// Rules loads the rule document and returns the selected rule sets.
func (c *RunConfig) Rules() ([]types.PropFirmRule, error) {
	file, err := LoadRuleFile(c.RulesFile)
	if err != nil {
		return nil, err
	}

	return file.Select(c.PropFirms)
}

// SettlementOptions translates the settlement section into engine options.
func (c *RunConfig) SettlementOptions() []settlement.Option {
	s := c.Settlement

	var opts []settlement.Option

	if s.BreakevenAfterTPs != nil {
		opts = append(opts, settlement.WithBreakevenAfterTPs(*s.BreakevenAfterTPs))
	}

	if s.QuantityPrecision != nil {
		opts = append(opts, settlement.WithQuantityPrecision(*s.QuantityPrecision))
	}

	if s.EntryTolerancePct > 0 {
		opts = append(opts, settlement.WithEntryTolerance(s.EntryTolerancePct))
	}

	return opts
}

func (c *RunConfig) CoordinatorConfig() coordinator.Config {
	return coordinator.Config{
		Concurrency:      c.Settlement.Concurrency,
		MaxDurationDays:  c.Settlement.MaxDurationDays,
		MaxFetchAttempts: c.Settlement.MaxFetchAttempts,
		RetryBackoff:     c.Settlement.RetryBackoff,
		MarkOpenTrades:   c.Settlement.MarkOpenTrades,
	}
}

func (c *RunConfig) MonitorConfig(channel string) monitor.Config {
	return monitor.Config{
		Channel:      channel,
		PollInterval: c.Monitor.PollInterval,
		Rescan:       c.Monitor.Rescan,
	}
}

// OpenStore opens the configured backend and creates its schema.
func (c *RunConfig) OpenStore(ctx context.Context, log *logger.Logger) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)

	switch c.Storage.Type {
	case StorageMemory:
		store = memory.NewStore()
	case StorageDuckDB:
		store, err = sqlstore.Open(sqlstore.DriverDuckDB, c.Storage.DSN, log)
	case StorageSQLite:
		store, err = sqlstore.Open(sqlstore.DriverSQLite, c.Storage.DSN, log)
	case StoragePostgres:
		store, err = postgres.Open(ctx, c.Storage.DSN, log)
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedStorage, "unsupported storage: %s", c.Storage.Type)
	}

	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()

		return nil, err
	}

	return store, nil
}
