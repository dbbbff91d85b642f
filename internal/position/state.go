package position

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/rh-crypto-trader/internal/model"
)

// State is the trading record for one symbol. The zero value means "never traded".
type State struct {
	Symbol string

	LastPriceBought    decimal.Decimal
	LastQuantityBought decimal.Decimal
	LastBoughtAt       time.Time

	LastPriceSold    decimal.Decimal
	LastQuantitySold decimal.Decimal
	LastSoldAt       time.Time

	LastPriceChecked decimal.Decimal

	// OpenOrderID is the exchange id of the order being tracked, "" if none.
	OpenOrderID string

	UpdatedAt time.Time
}

// New returns an empty state for symbol.
func New(symbol string) *State {
	return &State{Symbol: symbol}
}

// NeverBought reports whether no buy has been confirmed.
func (s State) NeverBought() bool {
	return s.LastPriceBought.IsZero()
}

// NeverSold reports whether no sell has been confirmed.
func (s State) NeverSold() bool {
	return s.LastPriceSold.IsZero()
}

// HasOpenOrder reports whether an order is being tracked.
func (s State) HasOpenOrder() bool {
	return s.OpenOrderID != ""
}

// ApplyFill records a confirmed fill. Fills with a non-positive price or
// quantity are ignored and false is returned.
func (s *State) ApplyFill(f model.Fill) bool {
	if !f.Price.IsPositive() || !f.Quantity.IsPositive() {
		return false
	}

	at := f.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	switch f.Side {
	case model.SideBuy:
		s.LastPriceBought = f.Price
		s.LastQuantityBought = f.Quantity
		s.LastBoughtAt = at
	case model.SideSell:
		s.LastPriceSold = f.Price
		s.LastQuantitySold = f.Quantity
		s.LastSoldAt = at
	default:
		return false
	}

	s.UpdatedAt = at
	return true
}

// MarkChecked records the price observed on this tick.
func (s *State) MarkChecked(price decimal.Decimal, at time.Time) {
	s.LastPriceChecked = price
	s.UpdatedAt = at
}

// TrackOrder starts tracking a resting order.
func (s *State) TrackOrder(id string) {
	s.OpenOrderID = id
}

// ClearOrder stops tracking the resting order.
func (s *State) ClearOrder() {
	s.OpenOrderID = ""
}

// Resolve applies the outcome of a tracked order once it reaches a terminal
// state: any executed quantity is recorded and the order id is cleared.
// It reports whether the order was terminal.
func (s *State) Resolve(o model.Order) bool {
	if !o.State.IsTerminal() {
		return false
	}
	if fill, ok := o.Fill(); ok {
		s.ApplyFill(fill)
	}
	if s.OpenOrderID == o.ID {
		s.ClearOrder()
	}
	return true
}

// Snapshot returns a copy safe to hand to other goroutines.
func (s *State) Snapshot() State {
	return *s
}
