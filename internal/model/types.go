package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Enums
// -----------------------------------------------------------------------------

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// TimeInForce for limit orders.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "gtc"
)

// OrderState is the lifecycle state reported by the exchange.
type OrderState string

const (
	OrderStateOpen            OrderState = "open"
	OrderStatePartiallyFilled OrderState = "partially_filled"
	OrderStateFilled          OrderState = "filled"
	OrderStateCanceled        OrderState = "canceled"
	OrderStateFailed          OrderState = "failed"
)

// IsOpen reports whether the order can still trade.
func (s OrderState) IsOpen() bool {
	return s == OrderStateOpen || s == OrderStatePartiallyFilled
}

// IsTerminal reports whether the order will never change again.
func (s OrderState) IsTerminal() bool {
	return s == OrderStateFilled || s == OrderStateCanceled || s == OrderStateFailed
}

// -----------------------------------------------------------------------------
// Account Types
// -----------------------------------------------------------------------------

// Account is the crypto trading account.
type Account struct {
	AccountNumber string
	Status        string          // "active", "deactivated", "sell_only"
	BuyingPower   decimal.Decimal // Spendable cash
	Currency      string          // Buying power currency (e.g., "USD")
}

// Holding is the quantity of one asset held in the account.
type Holding struct {
	AssetCode         string          // e.g., "BTC"
	TotalQuantity     decimal.Decimal // Everything held, including amounts locked in open orders
	AvailableQuantity decimal.Decimal // Quantity available for trading
}

// -----------------------------------------------------------------------------
// Market Data Types
// -----------------------------------------------------------------------------

// Quote is the best bid/ask for a trading pair at an instant.
type Quote struct {
	Symbol    string
	Bid       decimal.Decimal // Bid inclusive of sell spread
	Ask       decimal.Decimal // Ask inclusive of buy spread
	Price     decimal.Decimal // Mid price
	Timestamp time.Time
}

// EstimatedPrice is a price estimate for a given side and quantity.
type EstimatedPrice struct {
	Symbol   string
	Side     string // "bid" or "ask"
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// TradingPair describes trading constraints for a symbol.
type TradingPair struct {
	Symbol         string
	AssetCode      string
	QuoteCode      string
	QuoteIncrement decimal.Decimal // Price tick
	AssetIncrement decimal.Decimal // Quantity step
	MinOrderSize   decimal.Decimal
	MaxOrderSize   decimal.Decimal
	Status         string // "tradable", "untradable", "sell_only"
}

// -----------------------------------------------------------------------------
// Order Types
// -----------------------------------------------------------------------------

// OrderRequest is an order to be submitted. ClientOrderID makes resubmission idempotent.
type OrderRequest struct {
	ClientOrderID string
	Side          Side
	Type          OrderType
	Symbol        string
	Quantity      decimal.Decimal // Asset quantity
	LimitPrice    decimal.Decimal // Limit orders only
	TimeInForce   TimeInForce     // Limit orders only
}

// Order is an order as reported by the exchange.
type Order struct {
	ID             string
	ClientOrderID  string
	Symbol         string
	Side           Side
	Type           OrderType
	State          OrderState
	Quantity       decimal.Decimal // Requested asset quantity
	LimitPrice     decimal.Decimal // Zero for market orders
	AveragePrice   decimal.Decimal // Zero until something fills
	FilledQuantity decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Fill is the executed portion of an order.
type Fill struct {
	OrderID  string
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	At       time.Time
}

// Fill returns the executed portion of the order, if any.
func (o Order) Fill() (Fill, bool) {
	if !o.FilledQuantity.IsPositive() || !o.AveragePrice.IsPositive() {
		return Fill{}, false
	}
	at := o.UpdatedAt
	if at.IsZero() {
		at = o.CreatedAt
	}
	return Fill{
		OrderID:  o.ID,
		Side:     o.Side,
		Price:    o.AveragePrice,
		Quantity: o.FilledQuantity,
		At:       at,
	}, true
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// AssetCode returns the asset half of a trading pair ("BTC-USD" -> "BTC").
func AssetCode(symbol string) string {
	asset, _, _ := strings.Cut(symbol, "-")
	return asset
}

// TruncateToIncrement rounds v down to a multiple of increment.
// A non-positive increment returns v unchanged.
func TruncateToIncrement(v, increment decimal.Decimal) decimal.Decimal {
	if !increment.IsPositive() {
		return v
	}
	return v.Div(increment).Floor().Mul(increment)
}

// OrderRecord is one order submission as written to the journal.
type OrderRecord struct {
	ClientOrderID string
	OrderID       string
	Symbol        string
	Side          Side
	Type          OrderType
	Action        string
	Quantity      decimal.Decimal
	LimitPrice    decimal.Decimal
	Outcome       string
	Reason        string
	CreatedAt     time.Time
}
