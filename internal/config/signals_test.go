package config

import (
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

const signalYAML = `
channel: alpha
signals:
  - id: s1
    pair: BTCUSDT
    entry: 100
    stop_loss: 95
    take_profits: [105, 110]
    quantity: 2
    created_at: 2025-03-01T10:00:00Z
    expires_at: 2025-03-02T10:00:00Z
  - pair: ETHUSDT
    entry: 50
    take_profits: [45]
    risk_percentage: 1
    created_at: 2025-03-01T11:00:00+02:00
`

func (suite *ConfigTestSuite) TestSignalFileToTrades() {
	file, err := ParseSignalFile([]byte(signalYAML))
	suite.Require().NoError(err)

	trades, err := file.Trades()
	suite.Require().NoError(err)
	suite.Require().Len(trades, 2)

	first := trades[0]
	suite.Equal("s1", first.ID)
	suite.Equal("alpha", first.Channel)
	suite.Equal(types.TradeStatusPending, first.Status)
	suite.Equal([]float64{105, 110}, first.TakeProfits)
	suite.Equal(types.DirectionLong, first.Direction())
	suite.Equal(time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC), first.ExpiresAt.Unwrap())

	second := trades[1]
	suite.NotEmpty(second.ID)
	suite.Equal(types.DirectionShort, second.Direction())
	suite.Equal(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), second.CreatedAt)
	suite.Equal(time.UTC, second.CreatedAt.Location())
	suite.True(second.ExpiresAt.IsNone())
}

func (suite *ConfigTestSuite) TestSignalFileErrors() {
	tests := []struct {
		name string
		yaml string
		code errors.ErrorCode
	}{
		{"missing channel", "signals: [{pair: X, entry: 1, created_at: 2025-01-01T00:00:00Z}]\n", errors.ErrCodeInvalidTrade},
		{"empty batch", "channel: a\nsignals: []\n", errors.ErrCodeInvalidTrade},
		{"zero entry", "channel: a\nsignals: [{pair: X, entry: 0, created_at: 2025-01-01T00:00:00Z}]\n", errors.ErrCodeInvalidTrade},
		{"negative target", "channel: a\nsignals: [{pair: X, entry: 1, take_profits: [-1], created_at: 2025-01-01T00:00:00Z}]\n", errors.ErrCodeInvalidTrade},
		{"unknown key", "channel: a\nsignals: [{pair: X, entry: 1, side: buy, created_at: 2025-01-01T00:00:00Z}]\n", errors.ErrCodeInvalidConfiguration},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := ParseSignalFile([]byte(tc.yaml))
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, tc.code), err.Error())
		})
	}
}
