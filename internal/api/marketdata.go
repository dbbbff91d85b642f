package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rickgao/rh-crypto-trader/internal/model"
)

// GetTradingPairs fetches trading constraints for the given symbols ("BTC-USD").
// No symbols returns every supported pair.
func (c *Client) GetTradingPairs(ctx context.Context, symbols ...string) ([]model.TradingPair, error) {
	var pairs []model.TradingPair
	path := PathTradingPairs + queryParams("symbol", symbols...)

	for path != "" {
		var resp TradingPairsResponse
		if err := c.get(ctx, "trading_pairs", path, &resp); err != nil {
			return nil, fmt.Errorf("get trading pairs: %w", err)
		}

		for i := range resp.Results {
			pairs = append(pairs, resp.Results[i].ToModel())
		}

		next, err := nextPath(resp.Next)
		if err != nil {
			return nil, &ParseError{Op: "trading_pairs", Err: err}
		}
		path = next
	}

	return pairs, nil
}

// GetTradingPair fetches the constraints for a single symbol.
func (c *Client) GetTradingPair(ctx context.Context, symbol string) (model.TradingPair, error) {
	pairs, err := c.GetTradingPairs(ctx, symbol)
	if err != nil {
		return model.TradingPair{}, err
	}
	for _, p := range pairs {
		if p.Symbol == symbol {
			return p, nil
		}
	}
	return model.TradingPair{}, &ParseError{Op: "trading_pairs", Err: fmt.Errorf("symbol %s not in response", symbol)}
}

// GetBestBidAsk fetches best bid/ask quotes for the given symbols.
// No symbols returns quotes for every supported pair.
func (c *Client) GetBestBidAsk(ctx context.Context, symbols ...string) ([]model.Quote, error) {
	var resp BestBidAskResponse
	path := PathBestBidAsk + queryParams("symbol", symbols...)
	if err := c.get(ctx, "best_bid_ask", path, &resp); err != nil {
		return nil, fmt.Errorf("get best bid ask: %w", err)
	}

	quotes := make([]model.Quote, 0, len(resp.Results))
	for i := range resp.Results {
		quotes = append(quotes, resp.Results[i].ToModel())
	}
	return quotes, nil
}

// GetQuote fetches the best bid/ask for a single symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	quotes, err := c.GetBestBidAsk(ctx, symbol)
	if err != nil {
		return model.Quote{}, err
	}
	for _, q := range quotes {
		if q.Symbol == symbol {
			return q, nil
		}
	}
	return model.Quote{}, &ParseError{Op: "best_bid_ask", Err: fmt.Errorf("symbol %s not in response", symbol)}
}

// GetEstimatedPrice fetches price estimates for a symbol. side is "bid", "ask" or "both".
func (c *Client) GetEstimatedPrice(ctx context.Context, symbol, side string, quantities ...decimal.Decimal) ([]model.EstimatedPrice, error) {
	if len(quantities) == 0 {
		return nil, fmt.Errorf("get estimated price: at least one quantity is required")
	}

	qs := make([]string, 0, len(quantities))
	for _, q := range quantities {
		qs = append(qs, q.String())
	}
	path := fmt.Sprintf("%s?symbol=%s&side=%s&quantity=%s", PathEstimatedPrice, symbol, side, strings.Join(qs, ","))

	var resp EstimatedPriceResponse
	if err := c.get(ctx, "estimated_price", path, &resp); err != nil {
		return nil, fmt.Errorf("get estimated price: %w", err)
	}

	estimates := make([]model.EstimatedPrice, 0, len(resp.Results))
	for i := range resp.Results {
		estimates = append(estimates, resp.Results[i].ToModel())
	}
	return estimates, nil
}
