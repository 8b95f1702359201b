package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/coordinator"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/marketdata"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

const runYAML = `
storage:
  type: sqlite
  dsn: ${PROPFIRM_TEST_DIR}/signals.db
provider:
  type: polygon
  timespan: 1m
rate_limit:
  requests_per_second: 5
  burst: 2
settlement:
  breakeven_after_tps: 2
  max_duration_days: 14
  quantity_precision: 6
  entry_tolerance_pct: 0.2
  concurrency: 8
  max_fetch_attempts: 4
  retry_backoff: 500ms
  mark_open_trades: true
monitor:
  poll_interval: 2s
  rescan: 30s
prop_firms: [instant-100k, two-step-10k]
logging:
  level: debug
`

func (suite *ConfigTestSuite) TestParseRunConfig() {
	suite.T().Setenv("PROPFIRM_TEST_DIR", "/tmp/propfirm")
	suite.T().Setenv("POLYGON_API_KEY", "pk-test")

	cfg, err := ParseRunConfig([]byte(runYAML))
	suite.Require().NoError(err)

	suite.Equal(StorageSQLite, cfg.Storage.Type)
	suite.Equal("/tmp/propfirm/signals.db", cfg.Storage.DSN)
	suite.Equal(marketdata.ProviderPolygon, cfg.Provider.Type)
	suite.Equal("pk-test", cfg.Provider.APIKey)
	suite.Equal(5.0, cfg.RateLimit.RequestsPerSecond)
	suite.Equal(2, *cfg.Settlement.BreakevenAfterTPs)
	suite.Equal(500*time.Millisecond, cfg.Settlement.RetryBackoff)
	suite.Equal("debug", cfg.Logging.Level)
	suite.Len(cfg.SettlementOptions(), 3)

	suite.Equal(coordinator.Config{
		Concurrency:      8,
		MaxDurationDays:  14,
		MaxFetchAttempts: 4,
		RetryBackoff:     500 * time.Millisecond,
		MarkOpenTrades:   true,
	}, cfg.CoordinatorConfig())

	mon := cfg.MonitorConfig("alpha")
	suite.Equal("alpha", mon.Channel)
	suite.Equal(2*time.Second, mon.PollInterval)

	rules, err := cfg.Rules()
	suite.Require().NoError(err)
	suite.Require().Len(rules, 2)
	suite.Equal("instant-100k", rules[0].Name)
	suite.Equal("two-step-10k", rules[1].Name)
}

func (suite *ConfigTestSuite) TestParseRunConfigErrors() {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "storage: {type: memory}\nprovider: {type: memory}\nbogus: 1\n"},
		{"missing storage type", "provider: {type: memory}\n"},
		{"unsupported storage", "storage: {type: mongo, dsn: x}\nprovider: {type: memory}\n"},
		{"file storage without dsn", "storage: {type: duckdb}\nprovider: {type: memory}\n"},
		{"parquet provider without path", "storage: {type: memory}\nprovider: {type: parquet}\n"},
		{"negative concurrency", "storage: {type: memory}\nprovider: {type: memory}\nsettlement: {concurrency: -1}\n"},
		{"not yaml", "storage: [\n"},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := ParseRunConfig([]byte(tc.yaml))
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration), err.Error())
		})
	}
}

func (suite *ConfigTestSuite) TestMinimalRunConfig() {
	cfg, err := ParseRunConfig([]byte("storage: {type: memory}\nprovider: {type: memory}\n"))
	suite.Require().NoError(err)
	suite.Empty(cfg.SettlementOptions())

	rules, err := cfg.Rules()
	suite.Require().NoError(err)
	suite.Len(rules, 3)

	store, err := cfg.OpenStore(context.Background(), nil)
	suite.Require().NoError(err)
	suite.NoError(store.Close())
}

func (suite *ConfigTestSuite) TestOpenSQLiteStore() {
	cfg, err := ParseRunConfig([]byte("storage: {type: sqlite, dsn: " + filepath.Join(suite.T().TempDir(), "s.db") + "}\nprovider: {type: memory}\n"))
	suite.Require().NoError(err)

	store, err := cfg.OpenStore(context.Background(), nil)
	suite.Require().NoError(err)

	defer store.Close()

	trades, err := store.GetActiveTrades(context.Background(), "alpha")
	suite.Require().NoError(err)
	suite.Empty(trades)
}

func (suite *ConfigTestSuite) TestUnknownPropFirm() {
	cfg, err := ParseRunConfig([]byte("storage: {type: memory}\nprovider: {type: memory}\nprop_firms: [nope]\n"))
	suite.Require().NoError(err)

	_, err = cfg.Rules()
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownPropFirm))
}

func (suite *ConfigTestSuite) TestBuiltinCatalog() {
	file, err := LoadRuleFile("")
	suite.Require().NoError(err)

	rules := file.Rules()
	suite.Require().Len(rules, 3)

	oneStep := rules[1]
	suite.Equal("one-step-25k", oneStep.Name)
	suite.Equal(25000.0, oneStep.InitialBalance)
	suite.Equal(types.DailyDrawdownSwing, oneStep.DrawdownMode())
	suite.Equal(2*time.Minute, oneStep.MinTradeDuration.Unwrap())
	suite.True(oneStep.StopLossRequired)
	suite.True(oneStep.MinTradingDays.IsNone())

	instant := rules[2]
	suite.False(instant.ReverseTradingAllowed)
	suite.Equal(time.Minute, instant.ReverseTradingTimeLimit.Unwrap())
	suite.Equal(1, instant.MinTradesPerDay.Unwrap())
}

func (suite *ConfigTestSuite) TestRuleFileErrors() {
	tests := []struct {
		name string
		yaml string
		code errors.ErrorCode
	}{
		{"newer format", "version: 1.9.0\nfirms: [{name: a, initial_balance: 1}]\n", errors.ErrCodeVersionMismatch},
		{"missing version", "firms: [{name: a, initial_balance: 1}]\n", errors.ErrCodeVersionMismatch},
		{"no firms", "version: 1.0.0\nfirms: []\n", errors.ErrCodeInvalidRule},
		{"duplicate names", "version: 1.0.0\nfirms: [{name: a, initial_balance: 1}, {name: a, initial_balance: 2}]\n", errors.ErrCodeInvalidRule},
		{"percentage out of range", "version: 1.0.0\nfirms: [{name: a, initial_balance: 1, max_drawdown: 120}]\n", errors.ErrCodeInvalidRule},
		{"bad mode", "version: 1.0.0\nfirms: [{name: a, initial_balance: 1, daily_drawdown_mode: weekly}]\n", errors.ErrCodeInvalidRule},
		{"unknown key", "version: 1.0.0\nfirms: [{name: a, initial_balance: 1, max_lots: 3}]\n", errors.ErrCodeInvalidConfiguration},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := ParseRuleFile([]byte(tc.yaml))
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, tc.code), err.Error())
		})
	}
}

func (suite *ConfigTestSuite) TestLoadRuleFileFromDisk() {
	path := filepath.Join(suite.T().TempDir(), "rules.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte("version: v1.0.0\nfirms:\n  - name: custom\n    initial_balance: 5000\n    daily_drawdown: 3\n"), 0o600))

	file, err := LoadRuleFile(path)
	suite.Require().NoError(err)

	rules, err := file.Select([]string{"custom"})
	suite.Require().NoError(err)
	suite.Equal(3.0, rules[0].DailyDrawdown.Unwrap())

	_, err = LoadRuleFile(filepath.Join(suite.T().TempDir(), "missing.yaml"))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestRuleSchema() {
	schema, err := RuleSchema()
	suite.Require().NoError(err)
	suite.Contains(schema, "max_short_trades_percentage")
	suite.Contains(schema, "daily_drawdown_mode")
}
