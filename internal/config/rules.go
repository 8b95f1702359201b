package config

import (
	"bytes"
	_ "embed"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/internal/version"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/rxtech-lab/argo-signals/pkg/utils"
	"gopkg.in/yaml.v3"
)

//go:embed presets/propfirms.yaml
var builtinRules []byte

// RuleFile is a versioned document of prop firm rule sets.
type RuleFile struct {
	Version string    `yaml:"version" json:"version" jsonschema:"description=Rule file format version (semver),example=1.1.0" validate:"required"`
	Firms   []RuleSet `yaml:"firms" json:"firms" jsonschema:"description=Rule sets, one per funded-account program" validate:"required,min=1,dive"`
}

// RuleSet is the file form of types.PropFirmRule. Unset thresholds are not checked.
type RuleSet struct {
	Name           string  `yaml:"name" json:"name" jsonschema:"description=Unique rule set name" validate:"required"`
	InitialBalance float64 `yaml:"initial_balance" json:"initial_balance" jsonschema:"description=Starting account balance" validate:"gt=0"`

	ProfitTarget      *float64 `yaml:"profit_target,omitempty" json:"profit_target,omitempty" jsonschema:"description=Required profit in percent of the initial balance"`
	MaxDrawdown       *float64 `yaml:"max_drawdown,omitempty" json:"max_drawdown,omitempty" jsonschema:"description=Maximum peak-to-trough decline in percent of the initial balance"`
	DailyDrawdown     *float64 `yaml:"daily_drawdown,omitempty" json:"daily_drawdown,omitempty" jsonschema:"description=Maximum loss of one calendar day in percent"`
	DailyDrawdownMode string   `yaml:"daily_drawdown_mode,omitempty" json:"daily_drawdown_mode,omitempty" jsonschema:"description=Base of the daily limit,enum=balance,enum=swing" validate:"omitempty,oneof=balance swing"`

	MinTradingDays  *int `yaml:"min_trading_days,omitempty" json:"min_trading_days,omitempty" jsonschema:"description=Minimum number of days with a closed trade"`
	MinTradesPerDay *int `yaml:"min_trades_per_day,omitempty" json:"min_trades_per_day,omitempty" jsonschema:"description=Minimum closed trades on every trading day"`

	MaxRiskPerTrade  *float64 `yaml:"max_risk_per_trade,omitempty" json:"max_risk_per_trade,omitempty" jsonschema:"description=Maximum stop-loss risk of one trade in percent of the initial balance"`
	StopLossRequired bool     `yaml:"stop_loss_required,omitempty" json:"stop_loss_required,omitempty" jsonschema:"description=Reject trades without a stop-loss"`

	MaxProfitPerDay   *float64 `yaml:"max_profit_per_day,omitempty" json:"max_profit_per_day,omitempty" jsonschema:"description=Profit cap of one day in account currency"`
	MaxProfitPerTrade *float64 `yaml:"max_profit_per_trade,omitempty" json:"max_profit_per_trade,omitempty" jsonschema:"description=Profit cap of one trade in account currency"`

	MinTradeDuration         *time.Duration `yaml:"min_trade_duration,omitempty" json:"min_trade_duration,omitempty" jsonschema:"type=string,description=Trades held shorter than this count as short (Go duration)"`
	MaxShortTradesPercentage *float64       `yaml:"max_short_trades_percentage,omitempty" json:"max_short_trades_percentage,omitempty" jsonschema:"description=Maximum share of short trades in percent"`

	ReverseTradingAllowed   bool           `yaml:"reverse_trading_allowed,omitempty" json:"reverse_trading_allowed,omitempty" jsonschema:"description=Allow opposite positions held at the same time"`
	ReverseTradingTimeLimit *time.Duration `yaml:"reverse_trading_time_limit,omitempty" json:"reverse_trading_time_limit,omitempty" jsonschema:"type=string,description=Overlap of opposite positions that counts as reverse trading (Go duration)"`
}

// Rule converts the rule set to the form the evaluator consumes.
func (r RuleSet) Rule() types.PropFirmRule {
	return types.PropFirmRule{
		Name:                     r.Name,
		InitialBalance:           r.InitialBalance,
		ProfitTarget:             fromPtr(r.ProfitTarget),
		MaxDrawdown:              fromPtr(r.MaxDrawdown),
		DailyDrawdown:            fromPtr(r.DailyDrawdown),
		DailyDrawdownMode:        types.DailyDrawdownMode(r.DailyDrawdownMode),
		MinTradingDays:           fromPtr(r.MinTradingDays),
		MinTradesPerDay:          fromPtr(r.MinTradesPerDay),
		MaxRiskPerTrade:          fromPtr(r.MaxRiskPerTrade),
		StopLossRequired:         r.StopLossRequired,
		MaxProfitPerDay:          fromPtr(r.MaxProfitPerDay),
		MaxProfitPerTrade:        fromPtr(r.MaxProfitPerTrade),
		MinTradeDuration:         fromPtr(r.MinTradeDuration),
		MaxShortTradesPercentage: fromPtr(r.MaxShortTradesPercentage),
		ReverseTradingAllowed:    r.ReverseTradingAllowed,
		ReverseTradingTimeLimit:  fromPtr(r.ReverseTradingTimeLimit),
	}
}

// ParseRuleFile decodes and validates a rule document. Unknown keys are rejected.
func ParseRuleFile(data []byte) (*RuleFile, error) {
	var file RuleFile

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&file); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "decode rule file", err)
	}

	if err := version.CheckRulesVersion(file.Version); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&file); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRule, "invalid rule file", err)
	}

	seen := make(map[string]struct{}, len(file.Firms))

	for _, firm := range file.Firms {
		if _, dup := seen[firm.Name]; dup {
			return nil, errors.Newf(errors.ErrCodeInvalidRule, "rule set %q defined twice", firm.Name)
		}

		seen[firm.Name] = struct{}{}

		rule := firm.Rule()
		if err := rule.Validate(); err != nil {
			return nil, err
		}
	}

	return &file, nil
}

// LoadRuleFile reads a rule document. An empty path loads the built-in catalog.
func LoadRuleFile(path string) (*RuleFile, error) {
	if path == "" {
		return ParseRuleFile(builtinRules)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "read rule file %s", path)
	}

	return ParseRuleFile(data)
}

// Rules returns every rule set in file order.
func (f *RuleFile) Rules() []types.PropFirmRule {
	rules := make([]types.PropFirmRule, 0, len(f.Firms))
	for _, firm := range f.Firms {
		rules = append(rules, firm.Rule())
	}

	return rules
}

// Select returns the named rule sets in the requested order, or all of them
// when names is empty.
func (f *RuleFile) Select(names []string) ([]types.PropFirmRule, error) {
	if len(names) == 0 {
		return f.Rules(), nil
	}

	byName := make(map[string]RuleSet, len(f.Firms))
	for _, firm := range f.Firms {
		byName[firm.Name] = firm
	}

	rules := make([]types.PropFirmRule, 0, len(names))

	for _, name := range names {
		firm, ok := byName[name]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeUnknownPropFirm, "unknown prop firm %q", name)
		}

		rules = append(rules, firm.Rule())
	}

	return rules, nil
}

// RuleSchema returns the JSON schema of the rule document.
func RuleSchema() (string, error) {
	return utils.GetSchemaFromConfig(&RuleFile{}) //nolint:exhaustruct // empty document for schema generation
}

func fromPtr[T any](p *T) optional.Option[T] {
	if p == nil {
		return optional.None[T]()
	}

	return optional.Some(*p)
}
