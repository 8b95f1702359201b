package types

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

type OrderType string

type OrderStatus string

const (
	OrderTypeEntry      OrderType = "entry"
	OrderTypeStopLoss   OrderType = "stop_loss"
	OrderTypeTakeProfit OrderType = "take_profit"
)

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusFilled  OrderStatus = "filled"
)

// Order is one child order of a Trade.
type Order struct {
	ID        string    `json:"id" validate:"required"`
	TradeID   string    `json:"trade_id" validate:"required"`
	OrderType OrderType `json:"order_type" validate:"required,oneof=entry stop_loss take_profit"`
	// TPIndex is the 0-based take-profit leg. Only set for take_profit orders.
	TPIndex     optional.Option[int]       `json:"tp_index"`
	Price       float64                    `json:"price" validate:"gte=0"`
	Quantity    float64                    `json:"quantity" validate:"gte=0"`
	Status      OrderStatus                `json:"status" validate:"required,oneof=pending filled"`
	FilledAt    optional.Option[time.Time] `json:"filled_at"`
	FilledPrice optional.Option[float64]   `json:"filled_price"`
	CreatedAt   time.Time                  `json:"created_at"`
}

// IsFilled reports whether the order has been executed.
func (o *Order) IsFilled() bool {
	return o.Status == OrderStatusFilled
}

// Key identifies the order slot inside its trade: one entry, one stop and one
// take-profit per leg.
func (o *Order) Key() string {
	if o.OrderType == OrderTypeTakeProfit && o.TPIndex.IsSome() {
		return string(o.OrderType) + ":" + strconv.Itoa(o.TPIndex.Unwrap())
	}

	return string(o.OrderType)
}

// Clone returns a copy of the order.
func (o *Order) Clone() *Order {
	c := *o

	return &c
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	if o.OrderType == OrderTypeTakeProfit && o.TPIndex.IsNone() {
		return errors.New(errors.ErrCodeInvalidOrder, "take profit order requires tp_index")
	}

	if o.OrderType != OrderTypeTakeProfit && o.TPIndex.IsSome() {
		return errors.Newf(errors.ErrCodeInvalidOrder, "%s order must not carry tp_index", o.OrderType)
	}

	return nil
}
