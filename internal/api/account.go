package api

import (
	"context"
	"fmt"

	"github.com/rickgao/rh-crypto-trader/internal/model"
)

// GetAccount fetches the crypto trading account.
func (c *Client) GetAccount(ctx context.Context) (model.Account, error) {
	var resp AccountResponse
	if err := c.get(ctx, "account", PathAccounts, &resp); err != nil {
		return model.Account{}, fmt.Errorf("get account: %w", err)
	}
	return resp.ToModel(), nil
}

// GetHoldings fetches holdings for the given asset codes ("BTC", "ETH").
// No codes returns every holding. Pages are followed until exhausted.
func (c *Client) GetHoldings(ctx context.Context, assetCodes ...string) ([]model.Holding, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPaginationTimeout)
		defer cancel()
	}

	var holdings []model.Holding
	path := PathHoldings + queryParams("asset_code", assetCodes...)

	for path != "" {
		var resp HoldingsResponse
		if err := c.get(ctx, "holdings", path, &resp); err != nil {
			return nil, fmt.Errorf("get holdings: %w", err)
		}

		for i := range resp.Results {
			holdings = append(holdings, resp.Results[i].ToModel())
		}

		next, err := nextPath(resp.Next)
		if err != nil {
			return nil, &ParseError{Op: "holdings", Err: err}
		}
		path = next
	}

	return holdings, nil
}

// GetHolding returns the holding for one asset code, or a zero holding if none is held.
func (c *Client) GetHolding(ctx context.Context, assetCode string) (model.Holding, error) {
	holdings, err := c.GetHoldings(ctx, assetCode)
	if err != nil {
		return model.Holding{}, err
	}
	for _, h := range holdings {
		if h.AssetCode == assetCode {
			return h, nil
		}
	}
	return model.Holding{AssetCode: assetCode}, nil
}

// nextPath turns a pagination cursor into the next request path ("" when done).
func nextPath(next *string) (string, error) {
	if next == nil || *next == "" {
		return "", nil
	}
	return requestURI(*next)
}
