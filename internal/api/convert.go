package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/rh-crypto-trader/internal/model"
)

// ParseTimestamp parses an ISO 8601 timestamp.
// Returns the zero time for empty or invalid input.
func ParseTimestamp(iso string) time.Time {
	if iso == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return time.Time{}
		}
	}

	return t.UTC()
}

// ToModel converts an AccountResponse to model.Account.
func (r *AccountResponse) ToModel() model.Account {
	return model.Account{
		AccountNumber: r.AccountNumber,
		Status:        r.Status,
		BuyingPower:   r.BuyingPower.Decimal,
		Currency:      r.BuyingPowerCurrency,
	}
}

// ToModel converts an APIHolding to model.Holding.
func (h *APIHolding) ToModel() model.Holding {
	available := h.QuantityAvailableForTrading.Decimal
	if !h.QuantityAvailableForTrading.Valid {
		available = h.TotalQuantity.Decimal
	}
	return model.Holding{
		AssetCode:         h.AssetCode,
		TotalQuantity:     h.TotalQuantity.Decimal,
		AvailableQuantity: available,
	}
}

// ToModel converts an APITradingPair to model.TradingPair.
func (p *APITradingPair) ToModel() model.TradingPair {
	return model.TradingPair{
		Symbol:         p.Symbol,
		AssetCode:      p.AssetCode,
		QuoteCode:      p.QuoteCode,
		QuoteIncrement: p.QuoteIncrement.Decimal,
		AssetIncrement: p.AssetIncrement.Decimal,
		MinOrderSize:   p.MinOrderSize.Decimal,
		MaxOrderSize:   p.MaxOrderSize.Decimal,
		Status:         p.Status,
	}
}

// ToModel converts an APIQuote to model.Quote. The mid price is derived
// when the API omits it.
func (q *APIQuote) ToModel() model.Quote {
	bid := q.BidInclusiveOfSellSpread.Decimal
	ask := q.AskInclusiveOfBuySpread.Decimal
	price := q.Price.Decimal
	if !q.Price.Valid || !price.IsPositive() {
		price = bid.Add(ask).Div(decimal.NewFromInt(2))
	}
	return model.Quote{
		Symbol:    q.Symbol,
		Bid:       bid,
		Ask:       ask,
		Price:     price,
		Timestamp: ParseTimestamp(q.Timestamp),
	}
}

// ToModel converts an APIEstimatedPrice to model.EstimatedPrice.
func (e *APIEstimatedPrice) ToModel() model.EstimatedPrice {
	return model.EstimatedPrice{
		Symbol:   e.Symbol,
		Side:     e.Side,
		Quantity: e.Quantity.Decimal,
		Price:    e.Price.Decimal,
	}
}

// ToModel converts an APIOrder to model.Order.
func (o *APIOrder) ToModel() model.Order {
	order := model.Order{
		ID:             o.ID,
		ClientOrderID:  o.ClientOrderID,
		Symbol:         o.Symbol,
		Side:           model.Side(o.Side),
		Type:           model.OrderType(o.Type),
		State:          model.OrderState(o.State),
		AveragePrice:   o.AveragePrice.Decimal,
		FilledQuantity: o.FilledAssetQuantity.Decimal,
		CreatedAt:      ParseTimestamp(o.CreatedAt),
		UpdatedAt:      ParseTimestamp(o.UpdatedAt),
	}

	cfg := o.MarketOrderConfig
	if o.LimitOrderConfig != nil {
		cfg = o.LimitOrderConfig
	}
	if cfg != nil {
		order.Quantity = cfg.AssetQuantity.Decimal
		order.LimitPrice = cfg.LimitPrice.Decimal
	}

	// Derive fill figures from executions when the summary fields are absent.
	if !o.FilledAssetQuantity.Valid && len(o.Executions) > 0 {
		qty, notional := decimal.Zero, decimal.Zero
		for _, ex := range o.Executions {
			qty = qty.Add(ex.Quantity.Decimal)
			notional = notional.Add(ex.Quantity.Decimal.Mul(ex.EffectivePrice.Decimal))
		}
		order.FilledQuantity = qty
		if qty.IsPositive() && !o.AveragePrice.Valid {
			order.AveragePrice = notional.Div(qty)
		}
	}

	return order
}
