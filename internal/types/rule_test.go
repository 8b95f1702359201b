package types

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type RuleTestSuite struct {
	suite.Suite
}

func TestRuleSuite(t *testing.T) {
	suite.Run(t, new(RuleTestSuite))
}

func baseRule() PropFirmRule {
	return PropFirmRule{ //nolint:exhaustruct
		Name:           "test-firm",
		InitialBalance: 10000,
		ProfitTarget:   optional.Some(10.0),
		MaxDrawdown:    optional.Some(10.0),
		DailyDrawdown:  optional.Some(5.0),
	}
}

func (suite *RuleTestSuite) TestValidRule() {
	rule := baseRule()
	suite.NoError(rule.Validate())
	suite.Equal(DailyDrawdownBalance, rule.DrawdownMode())
}

func (suite *RuleTestSuite) TestInvalidRules() {
	tests := []struct {
		name   string
		mutate func(r *PropFirmRule)
	}{
		{name: "missing name", mutate: func(r *PropFirmRule) { r.Name = "" }},
		{name: "zero balance", mutate: func(r *PropFirmRule) { r.InitialBalance = 0 }},
		{name: "negative drawdown", mutate: func(r *PropFirmRule) { r.MaxDrawdown = optional.Some(-1.0) }},
		{name: "daily drawdown over 100", mutate: func(r *PropFirmRule) { r.DailyDrawdown = optional.Some(150.0) }},
		{name: "bad mode", mutate: func(r *PropFirmRule) { r.DailyDrawdownMode = "weekly" }},
		{name: "zero profit cap", mutate: func(r *PropFirmRule) { r.MaxProfitPerDay = optional.Some(0.0) }},
		{name: "duration without percentage", mutate: func(r *PropFirmRule) { r.MinTradeDuration = optional.Some(time.Minute) }},
		{name: "negative trading days", mutate: func(r *PropFirmRule) { r.MinTradingDays = optional.Some(-2) }},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			rule := baseRule()
			tt.mutate(&rule)
			err := rule.Validate()
			suite.Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidRule))
		})
	}
}
