package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// API paths.
const (
	PathAccounts       = "/api/v1/crypto/trading/accounts/"
	PathTradingPairs   = "/api/v1/crypto/trading/trading_pairs/"
	PathHoldings       = "/api/v1/crypto/trading/holdings/"
	PathBestBidAsk     = "/api/v1/crypto/marketdata/best_bid_ask/"
	PathEstimatedPrice = "/api/v1/crypto/marketdata/estimated_price/"
	PathOrders         = "/api/v1/crypto/trading/orders/"
)

// OrderPath returns the path of a single order.
func OrderPath(id string) string {
	return PathOrders + id + "/"
}

// CancelOrderPath returns the cancel path of a single order.
func CancelOrderPath(id string) string {
	return PathOrders + id + "/cancel/"
}

// AccountResponse from GET /accounts/
type AccountResponse struct {
	AccountNumber       string              `json:"account_number"`
	Status              string              `json:"status"`
	BuyingPower         decimal.NullDecimal `json:"buying_power"`
	BuyingPowerCurrency string              `json:"buying_power_currency"`
}

func (r *AccountResponse) validate() error {
	if !r.BuyingPower.Valid {
		return errors.New("buying_power missing")
	}
	return nil
}

// HoldingsResponse from GET /holdings/
type HoldingsResponse struct {
	Next     *string      `json:"next"`
	Previous *string      `json:"previous"`
	Results  []APIHolding `json:"results"`
}

// APIHolding represents a single asset holding.
type APIHolding struct {
	AccountNumber               string              `json:"account_number"`
	AssetCode                   string              `json:"asset_code"`
	TotalQuantity               decimal.NullDecimal `json:"total_quantity"`
	QuantityAvailableForTrading decimal.NullDecimal `json:"quantity_available_for_trading"`
}

func (r *HoldingsResponse) validate() error {
	for i, h := range r.Results {
		if h.AssetCode == "" {
			return fmt.Errorf("results[%d]: asset_code missing", i)
		}
		if !h.TotalQuantity.Valid {
			return fmt.Errorf("results[%d] %s: total_quantity missing", i, h.AssetCode)
		}
	}
	return nil
}

// TradingPairsResponse from GET /trading_pairs/
type TradingPairsResponse struct {
	Next     *string          `json:"next"`
	Previous *string          `json:"previous"`
	Results  []APITradingPair `json:"results"`
}

// APITradingPair represents trading constraints for a symbol.
type APITradingPair struct {
	AssetCode      string              `json:"asset_code"`
	QuoteCode      string              `json:"quote_code"`
	QuoteIncrement decimal.NullDecimal `json:"quote_increment"`
	AssetIncrement decimal.NullDecimal `json:"asset_increment"`
	MaxOrderSize   decimal.NullDecimal `json:"max_order_size"`
	MinOrderSize   decimal.NullDecimal `json:"min_order_size"`
	Status         string              `json:"status"`
	Symbol         string              `json:"symbol"`
}

func (r *TradingPairsResponse) validate() error {
	for i, p := range r.Results {
		if p.Symbol == "" {
			return fmt.Errorf("results[%d]: symbol missing", i)
		}
	}
	return nil
}

// BestBidAskResponse from GET /marketdata/best_bid_ask/
type BestBidAskResponse struct {
	Results []APIQuote `json:"results"`
}

// APIQuote represents a best bid/ask for a symbol.
type APIQuote struct {
	Symbol                   string              `json:"symbol"`
	Price                    decimal.NullDecimal `json:"price"`
	BidInclusiveOfSellSpread decimal.NullDecimal `json:"bid_inclusive_of_sell_spread"`
	SellSpread               decimal.NullDecimal `json:"sell_spread"`
	AskInclusiveOfBuySpread  decimal.NullDecimal `json:"ask_inclusive_of_buy_spread"`
	BuySpread                decimal.NullDecimal `json:"buy_spread"`
	Timestamp                string              `json:"timestamp"`
}

func (q *APIQuote) validate() error {
	if q.Symbol == "" {
		return errors.New("symbol missing")
	}
	if !q.BidInclusiveOfSellSpread.Valid || !q.BidInclusiveOfSellSpread.Decimal.IsPositive() {
		return fmt.Errorf("%s: bid missing or not positive", q.Symbol)
	}
	if !q.AskInclusiveOfBuySpread.Valid || !q.AskInclusiveOfBuySpread.Decimal.IsPositive() {
		return fmt.Errorf("%s: ask missing or not positive", q.Symbol)
	}
	return nil
}

func (r *BestBidAskResponse) validate() error {
	for i := range r.Results {
		if err := r.Results[i].validate(); err != nil {
			return fmt.Errorf("results[%d]: %w", i, err)
		}
	}
	return nil
}

// EstimatedPriceResponse from GET /marketdata/estimated_price/
type EstimatedPriceResponse struct {
	Results []APIEstimatedPrice `json:"results"`
}

// APIEstimatedPrice represents one quantity's estimate.
type APIEstimatedPrice struct {
	Symbol                   string              `json:"symbol"`
	Side                     string              `json:"side"`
	Price                    decimal.NullDecimal `json:"price"`
	Quantity                 decimal.NullDecimal `json:"quantity"`
	BidInclusiveOfSellSpread decimal.NullDecimal `json:"bid_inclusive_of_sell_spread"`
	AskInclusiveOfBuySpread  decimal.NullDecimal `json:"ask_inclusive_of_buy_spread"`
	Timestamp                string              `json:"timestamp"`
}

func (r *EstimatedPriceResponse) validate() error {
	for i, e := range r.Results {
		if !e.Price.Valid {
			return fmt.Errorf("results[%d]: price missing", i)
		}
	}
	return nil
}

// OrdersResponse from GET /orders/
type OrdersResponse struct {
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []APIOrder `json:"results"`
}

func (r *OrdersResponse) validate() error {
	for i := range r.Results {
		if err := r.Results[i].validate(); err != nil {
			return fmt.Errorf("results[%d]: %w", i, err)
		}
	}
	return nil
}

// APIOrder represents an order from the API.
type APIOrder struct {
	ID                  string              `json:"id"`
	AccountNumber       string              `json:"account_number"`
	Symbol              string              `json:"symbol"`
	ClientOrderID       string              `json:"client_order_id"`
	Side                string              `json:"side"`
	Type                string              `json:"type"`
	State               string              `json:"state"`
	AveragePrice        decimal.NullDecimal `json:"average_price"`
	FilledAssetQuantity decimal.NullDecimal `json:"filled_asset_quantity"`
	Executions          []APIExecution      `json:"executions"`
	CreatedAt           string              `json:"created_at"`
	UpdatedAt           string              `json:"updated_at"`

	MarketOrderConfig *APIOrderConfig `json:"market_order_config,omitempty"`
	LimitOrderConfig  *APIOrderConfig `json:"limit_order_config,omitempty"`
}

// APIExecution is a single fill of an order.
type APIExecution struct {
	EffectivePrice decimal.NullDecimal `json:"effective_price"`
	Quantity       decimal.NullDecimal `json:"quantity"`
	Timestamp      string              `json:"timestamp"`
}

// APIOrderConfig is the per-type order configuration.
type APIOrderConfig struct {
	AssetQuantity decimal.NullDecimal `json:"asset_quantity"`
	QuoteAmount   decimal.NullDecimal `json:"quote_amount"`
	LimitPrice    decimal.NullDecimal `json:"limit_price"`
	TimeInForce   string              `json:"time_in_force"`
}

func (o *APIOrder) validate() error {
	if o.ID == "" {
		return errors.New("order id missing")
	}
	if o.State == "" {
		return fmt.Errorf("order %s: state missing", o.ID)
	}
	return nil
}

// Per-type configs for the POST /orders/ payload. The payload key is suffixed
// by order type ("market_order_config", "limit_order_config").
type marketOrderConfig struct {
	AssetQuantity string `json:"asset_quantity"`
}

type limitOrderConfig struct {
	AssetQuantity string `json:"asset_quantity"`
	LimitPrice    string `json:"limit_price"`
	TimeInForce   string `json:"time_in_force"`
}

// GetOrdersOptions configures a GetOrders request.
type GetOrdersOptions struct {
	Symbol         string
	State          string
	Side           string
	Type           string
	CreatedAtStart time.Time // zero means no lower bound
}
