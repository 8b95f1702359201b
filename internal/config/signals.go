package config

import (
	"bytes"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SignalFile is a batch of structured signals to be imported as pending trades.
type SignalFile struct {
	Channel string   `yaml:"channel" validate:"required"`
	Signals []Signal `yaml:"signals" validate:"required,min=1,dive"`
}

// Signal is one parsed entry instruction.
type Signal struct {
	// ID defaults to a random uuid.
	ID             string     `yaml:"id"`
	Pair           string     `yaml:"pair" validate:"required"`
	Entry          float64    `yaml:"entry" validate:"gt=0"`
	StopLoss       float64    `yaml:"stop_loss" validate:"gte=0"`
	TakeProfits    []float64  `yaml:"take_profits" validate:"dive,gt=0"`
	Quantity       float64    `yaml:"quantity" validate:"gte=0"`
	Leverage       float64    `yaml:"leverage" validate:"gte=0"`
	RiskPercentage float64    `yaml:"risk_percentage" validate:"gte=0,lte=100"`
	CreatedAt      time.Time  `yaml:"created_at" validate:"required"`
	ExpiresAt      *time.Time `yaml:"expires_at"`
}

// ParseSignalFile decodes and validates a signal batch.
func ParseSignalFile(data []byte) (*SignalFile, error) {
	var file SignalFile

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&file); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "decode signal file", err)
	}

	if err := validator.New().Struct(&file); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidTrade, "invalid signal file", err)
	}

	return &file, nil
}

// LoadSignalFile reads and parses the signal batch at path.
func LoadSignalFile(path string) (*SignalFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "read signal file %s", path)
	}

	return ParseSignalFile(data)
}

// Trades converts the signals into pending trades of the file's channel.
func (f *SignalFile) Trades() ([]*types.Trade, error) {
	trades := make([]*types.Trade, 0, len(f.Signals))

	for _, s := range f.Signals {
		id := s.ID
		if id == "" {
			id = uuid.New().String()
		}

		trade := &types.Trade{
			ID:                id,
			Channel:           f.Channel,
			TradingPair:       s.Pair,
			EntryPrice:        s.Entry,
			StopLoss:          s.StopLoss,
			TakeProfits:       append([]float64(nil), s.TakeProfits...),
			Quantity:          s.Quantity,
			Leverage:          s.Leverage,
			RiskPercentage:    s.RiskPercentage,
			Status:            types.TradeStatusPending,
			CreatedAt:         s.CreatedAt.UTC(),
			EntryFilledAt:     optional.None[time.Time](),
			ExitFilledAt:      optional.None[time.Time](),
			ExitPrice:         optional.None[float64](),
			PnL:               optional.None[float64](),
			PnLPercentage:     optional.None[float64](),
			StopLossBreakeven: false,
			ExpiresAt:         fromPtr(s.ExpiresAt),
		}

		if err := trade.Validate(); err != nil {
			return nil, err
		}

		trades = append(trades, trade)
	}

	return trades, nil
}
