// Package types defines shared types used across the trading pipeline.
package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices cross process boundaries as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Operation represents the direction of a trade.
type Operation int

const (
	OperationBuy Operation = iota
	OperationSell
)

func (o Operation) String() string {
	switch o {
	case OperationBuy:
		return "BUY"
	case OperationSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the opposite operation.
func (o Operation) Opposite() Operation {
	if o == OperationBuy {
		return OperationSell
	}
	return OperationBuy
}

// ParseOperation parses an operation by name.
func ParseOperation(s string) (Operation, error) {
	switch s {
	case "BUY":
		return OperationBuy, nil
	case "SELL":
		return OperationSell, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOperation, s)
	}
}

// MarshalJSON encodes the operation by name.
func (o Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON decodes the operation from its name.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	op, err := ParseOperation(s)
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// ConditionState represents the lifecycle state of a condition.
//
// A condition advances at most one edge per tick:
// WAITING -> TRIGGERED -> OPEN -> EXITED.
type ConditionState int

const (
	StateWaiting ConditionState = iota
	StateTriggered
	StateOpen
	StateExited
)

func (s ConditionState) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateTriggered:
		return "TRIGGERED"
	case StateOpen:
		return "OPEN"
	case StateExited:
		return "EXITED"
	default:
		return "UNKNOWN"
	}
}

// ParseConditionState parses a condition state by name.
func ParseConditionState(s string) (ConditionState, error) {
	switch s {
	case "WAITING":
		return StateWaiting, nil
	case "TRIGGERED":
		return StateTriggered, nil
	case "OPEN":
		return StateOpen, nil
	case "EXITED":
		return StateExited, nil
	default:
		return 0, fmt.Errorf("invalid condition state %q", s)
	}
}

// MarshalJSON encodes the state by name.
func (s ConditionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the state from its name.
func (s *ConditionState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	st, err := ParseConditionState(name)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Tick is a single market-data observation for a commodity.
type Tick struct {
	CommodityID string          `json:"commodity_id"`
	MatchPrice  decimal.Decimal `json:"match_price"`
	ObservedAt  time.Time       `json:"observed_at"`
}

// ParseTick decodes a wire payload into a Tick. Undecodable payloads fail
// with ErrInvalidTick.
func ParseTick(data []byte) (Tick, error) {
	var tick Tick
	if err := json.Unmarshal(data, &tick); err != nil {
		return Tick{}, fmt.Errorf("%w: %v", ErrInvalidTick, err)
	}
	return tick, nil
}

// TradingSignal is an instruction emitted by the strategy.
type TradingSignal struct {
	When        time.Time `json:"when"`
	Operation   Operation `json:"operation"`
	CommodityID string    `json:"commodity_id"`
}

// ParseTradingSignal decodes a wire payload into a TradingSignal. The
// operation and timestamp must be present: JSON that merely decodes is not
// enough, since a zero-value signal would read as an immediate BUY. The
// commodity may be empty; the executor substitutes the session item code.
func ParseTradingSignal(data []byte) (TradingSignal, error) {
	var raw struct {
		When        *time.Time `json:"when"`
		Operation   *Operation `json:"operation"`
		CommodityID string     `json:"commodity_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return TradingSignal{}, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	if raw.Operation == nil {
		return TradingSignal{}, fmt.Errorf("%w: missing operation", ErrInvalidSignal)
	}
	if raw.When == nil || raw.When.IsZero() {
		return TradingSignal{}, fmt.Errorf("%w: missing timestamp", ErrInvalidSignal)
	}
	return TradingSignal{
		When:        *raw.When,
		Operation:   *raw.Operation,
		CommodityID: raw.CommodityID,
	}, nil
}

// Condition is a user-defined trading rule with trigger, entry and exit
// thresholds. Configured fields are set at creation; derived prices are
// recomputed whenever the trigger price moves (trailing).
type Condition struct {
	ID string `json:"condition_id"`

	// Configured
	Action          Operation       `json:"action"`
	TriggerPrice    decimal.Decimal `json:"trigger_price"`
	TurningPoint    int64           `json:"turning_point"`
	Quantity        int64           `json:"quantity"`
	TakeProfitPoint int64           `json:"take_profit_point"`
	StopLossPoint   int64           `json:"stop_loss_point"`
	IsFollowing     bool            `json:"is_following"`

	// Derived
	OrderPrice      decimal.Decimal `json:"order_price"`
	TakeProfitPrice decimal.Decimal `json:"take_profit_price"`
	StopLossPrice   decimal.Decimal `json:"stop_loss_price"`

	// Runtime
	State ConditionState `json:"state"`
}

// DerivePrices recomputes order, take-profit and stop-loss prices from the
// current trigger price and the configured point distances.
func (c *Condition) DerivePrices() {
	turning := decimal.NewFromInt(c.TurningPoint)
	tp := decimal.NewFromInt(c.TakeProfitPoint)
	sl := decimal.NewFromInt(c.StopLossPoint)

	if c.Action == OperationBuy {
		c.OrderPrice = c.TriggerPrice.Add(turning)
		c.TakeProfitPrice = c.OrderPrice.Add(tp)
		c.StopLossPrice = c.OrderPrice.Sub(sl)
	} else {
		c.OrderPrice = c.TriggerPrice.Sub(turning)
		c.TakeProfitPrice = c.OrderPrice.Sub(tp)
		c.StopLossPrice = c.OrderPrice.Add(sl)
	}
}

// Validate checks configured bounds and the derived price ordering: for BUY
// stop_loss < order < take_profit, for SELL take_profit < order < stop_loss.
// Overlapping thresholds would make entry and exit ambiguous.
func (c *Condition) Validate() error {
	if c.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidCondition)
	}
	if c.TurningPoint < 0 || c.TakeProfitPoint < 0 || c.StopLossPoint < 0 {
		return fmt.Errorf("%w: point distances must be non-negative", ErrInvalidCondition)
	}

	switch c.Action {
	case OperationBuy:
		if !(c.StopLossPrice.LessThan(c.OrderPrice) && c.OrderPrice.LessThan(c.TakeProfitPrice)) {
			return fmt.Errorf("%w: BUY requires stop_loss < order < take_profit (%s, %s, %s)",
				ErrInvalidCondition, c.StopLossPrice, c.OrderPrice, c.TakeProfitPrice)
		}
	case OperationSell:
		if !(c.TakeProfitPrice.LessThan(c.OrderPrice) && c.OrderPrice.LessThan(c.StopLossPrice)) {
			return fmt.Errorf("%w: SELL requires take_profit < order < stop_loss (%s, %s, %s)",
				ErrInvalidCondition, c.TakeProfitPrice, c.OrderPrice, c.StopLossPrice)
		}
	default:
		return fmt.Errorf("%w: unknown action", ErrInvalidCondition)
	}

	return nil
}

// OrderType represents the broker order type.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OpenClose represents the position effect of an order.
type OpenClose string

const (
	OpenCloseAuto  OpenClose = "AUTO"
	OpenCloseOpen  OpenClose = "OPEN"
	OpenCloseClose OpenClose = "CLOSE"
)

// DayTrade marks an order as a day trade.
type DayTrade string

const (
	DayTradeNo  DayTrade = "No"
	DayTradeYes DayTrade = "Yes"
)

// TimeInForce represents how long an order stays working.
type TimeInForce string

const (
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceROD TimeInForce = "ROD"
	TimeInForceFOK TimeInForce = "FOK"
)

// OrderRequest is the gateway order DTO.
type OrderRequest struct {
	OrderAccount string          `json:"order_account"`
	ItemCode     string          `json:"item_code"`
	Side         Operation       `json:"side"`
	OrderType    OrderType       `json:"order_type"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int64           `json:"quantity"`
	OpenClose    OpenClose       `json:"open_close"`
	Note         string          `json:"note"`
	DayTrade     DayTrade        `json:"day_trade"`
	TimeInForce  TimeInForce     `json:"time_in_force"`
}

// Validate checks the fields required to submit an order.
func (r OrderRequest) Validate() error {
	if r.OrderAccount == "" {
		return fmt.Errorf("%w: order_account is required", ErrInvalidOrder)
	}
	if r.ItemCode == "" {
		return fmt.Errorf("%w: item_code is required", ErrInvalidOrder)
	}
	if r.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidOrder)
	}
	if r.OrderType == "" {
		return fmt.Errorf("%w: order_type is required", ErrInvalidOrder)
	}
	return nil
}

// OrderResponse is the gateway order result DTO.
type OrderResponse struct {
	Accepted     bool   `json:"accepted"`
	OrderSerial  string `json:"order_serial"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Position is a broker position as reported through the gateway.
type Position struct {
	Account       string          `json:"account"`
	ItemCode      string          `json:"item_code"`
	Quantity      int64           `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// HealthSnapshot reports gateway health at a point in time.
type HealthSnapshot struct {
	Status            string `json:"status"`
	ExchangeConnected bool   `json:"exchange_connected"`
	Timestamp         int64  `json:"timestamp"`
}
