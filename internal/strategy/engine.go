package strategy

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/rh-crypto-trader/internal/model"
	"github.com/rickgao/rh-crypto-trader/internal/position"
)

// Params are the strategy thresholds. Fractions, so 0.03 means 3%.
type Params struct {
	EntryAmount       decimal.Decimal // dollars spent on each entry
	BuyDipThreshold   decimal.Decimal // re-entry once bid falls this far below the last sell
	SellGainThreshold decimal.Decimal // sell once bid rises this far above the last buy
	RepriceThreshold  decimal.Decimal // reprice a resting sell once bid rises this far above the last check
	UndercutMargin    decimal.Decimal // limit price discount below the bid

	// RequireCostBasis holds instead of selling holdings whose buy price is
	// unknown. Off by default: a zero cost basis makes every bid a gain.
	RequireCostBasis bool
}

// DefaultParams returns $10 entries, 3% dip, 3% gain, 1% reprice and 0.5% undercut.
func DefaultParams() Params {
	return Params{
		EntryAmount:       decimal.NewFromInt(10),
		BuyDipThreshold:   decimal.RequireFromString("0.03"),
		SellGainThreshold: decimal.RequireFromString("0.03"),
		RepriceThreshold:  decimal.RequireFromString("0.01"),
		UndercutMargin:    decimal.RequireFromString("0.005"),
	}
}

// Inputs is everything Decide looks at.
type Inputs struct {
	State      position.State
	Quote      model.Quote
	Holding    model.Holding
	OpenOrders []model.Order // open orders for this symbol
	Pair       model.TradingPair
}

// Engine evaluates Params against Inputs.
type Engine struct {
	params Params
	newID  func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator replaces the client order id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// NewEngine creates an Engine.
func NewEngine(params Params, opts ...Option) *Engine {
	e := &Engine{
		params: params,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params returns the engine's thresholds.
func (e *Engine) Params() Params {
	return e.params
}

var one = decimal.NewFromInt(1)

// Decide returns the action for one tick. The current price is the bid.
func (e *Engine) Decide(in Inputs) Action {
	price := in.Quote.Bid
	if !price.IsPositive() {
		return hold("no_price")
	}

	resting, side := restingOrder(in)

	if !in.Holding.TotalQuantity.IsPositive() {
		if resting != "" {
			return hold("order_resting")
		}
		return e.decideEntry(in, price)
	}

	if resting != "" {
		switch side {
		case model.SideBuy:
			return hold("buy_resting")
		case model.SideSell:
			return e.decideReprice(in, price, resting)
		default:
			return hold("order_state_unknown")
		}
	}
	return e.decideExit(in, price)
}

func (e *Engine) decideEntry(in Inputs, bid decimal.Decimal) Action {
	reason := "first_entry"
	if !in.State.NeverSold() {
		trigger := in.State.LastPriceSold.Mul(one.Sub(e.params.BuyDipThreshold))
		if bid.GreaterThan(trigger) {
			return hold("above_dip_trigger")
		}
		reason = "dip_reentry"
	}

	ask := in.Quote.Ask
	if !ask.IsPositive() {
		return hold("no_ask")
	}

	qty := model.TruncateToIncrement(e.params.EntryAmount.Div(ask), in.Pair.AssetIncrement)
	if maxSize := in.Pair.MaxOrderSize; maxSize.IsPositive() && qty.GreaterThan(maxSize) {
		qty = maxSize
	}
	if !qty.IsPositive() || qty.LessThan(in.Pair.MinOrderSize) {
		return hold("below_min_order_size")
	}

	return Action{
		Kind:          Buy,
		DollarAmount:  e.params.EntryAmount,
		Quantity:      qty,
		ClientOrderID: e.newID(),
		Reason:        reason,
	}
}

func (e *Engine) decideExit(in Inputs, bid decimal.Decimal) Action {
	if in.State.NeverBought() && e.params.RequireCostBasis {
		return hold("no_cost_basis")
	}

	trigger := in.State.LastPriceBought.Mul(one.Add(e.params.SellGainThreshold))
	if bid.LessThan(trigger) {
		return hold("below_gain_trigger")
	}

	qty := model.TruncateToIncrement(in.Holding.AvailableQuantity, in.Pair.AssetIncrement)
	if !qty.IsPositive() || qty.LessThan(in.Pair.MinOrderSize) {
		return hold("nothing_available")
	}

	return Action{
		Kind:          SellLimit,
		Quantity:      qty,
		LimitPrice:    e.limitPrice(bid, in.Pair),
		ClientOrderID: e.newID(),
		Reason:        "gain_target",
	}
}

func (e *Engine) decideReprice(in Inputs, bid decimal.Decimal, orderID string) Action {
	checked := in.State.LastPriceChecked
	if !checked.IsPositive() {
		return hold("no_reference_price")
	}

	trigger := checked.Mul(one.Add(e.params.RepriceThreshold))
	if bid.LessThan(trigger) {
		return hold("below_reprice_trigger")
	}

	return Action{
		Kind:          CancelAndReplace,
		OrderID:       orderID,
		Quantity:      model.TruncateToIncrement(in.Holding.TotalQuantity, in.Pair.AssetIncrement),
		LimitPrice:    e.limitPrice(bid, in.Pair),
		ClientOrderID: e.newID(),
		Reason:        "price_rose",
	}
}

func (e *Engine) limitPrice(bid decimal.Decimal, pair model.TradingPair) decimal.Decimal {
	return model.TruncateToIncrement(bid.Mul(one.Sub(e.params.UndercutMargin)), pair.QuoteIncrement)
}

// restingOrder returns the order considered resting: the tracked one if set,
// otherwise the first open order reported by the exchange. side is empty
// when the tracked order is not among OpenOrders, and Decide then holds.
func restingOrder(in Inputs) (id string, side model.Side) {
	if tracked := in.State.OpenOrderID; tracked != "" {
		for _, o := range in.OpenOrders {
			if o.ID == tracked {
				return tracked, o.Side
			}
		}
		return tracked, ""
	}
	for _, o := range in.OpenOrders {
		if o.State.IsOpen() && (in.Quote.Symbol == "" || o.Symbol == "" || o.Symbol == in.Quote.Symbol) {
			return o.ID, o.Side
		}
	}
	return "", ""
}
