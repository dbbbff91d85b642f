package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rickgao/rh-crypto-trader/internal/model"
)

// OrdersPage is one page of GET /orders/.
type OrdersPage struct {
	Orders []model.Order
	Next   string // request path of the next page, "" on the last page
}

// buildOrderBody renders the order submission payload.
func buildOrderBody(req model.OrderRequest) ([]byte, error) {
	if req.ClientOrderID == "" {
		return nil, errors.New("client_order_id is required")
	}
	if req.Symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		return nil, fmt.Errorf("invalid side %q", req.Side)
	}
	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("quantity must be positive, got %s", req.Quantity)
	}

	var cfg any
	switch req.Type {
	case model.OrderTypeMarket:
		cfg = marketOrderConfig{AssetQuantity: req.Quantity.String()}
	case model.OrderTypeLimit:
		if !req.LimitPrice.IsPositive() {
			return nil, fmt.Errorf("limit_price must be positive, got %s", req.LimitPrice)
		}
		tif := req.TimeInForce
		if tif == "" {
			tif = model.TimeInForceGTC
		}
		cfg = limitOrderConfig{
			AssetQuantity: req.Quantity.String(),
			LimitPrice:    req.LimitPrice.String(),
			TimeInForce:   string(tif),
		}
	default:
		return nil, fmt.Errorf("invalid order type %q", req.Type)
	}

	body := map[string]any{
		"client_order_id":                 req.ClientOrderID,
		"side":                            string(req.Side),
		"type":                            string(req.Type),
		"symbol":                          req.Symbol,
		string(req.Type) + "_order_config": cfg,
	}
	return json.Marshal(body)
}

// PlaceOrder submits an order. A 4xx response (other than 429) is returned as
// *OrderRejectedError; resubmitting the same ClientOrderID is safe.
func (c *Client) PlaceOrder(ctx context.Context, req model.OrderRequest) (model.Order, error) {
	payload, err := buildOrderBody(req)
	if err != nil {
		return model.Order{}, fmt.Errorf("place order: invalid order: %w", err)
	}

	var resp APIOrder
	if err := c.post(ctx, "place_order", PathOrders, payload, &resp); err != nil {
		var te *TransportError
		if errors.As(err, &te) && te.StatusCode >= 400 && te.StatusCode < 500 && te.StatusCode != http.StatusTooManyRequests {
			return model.Order{}, &OrderRejectedError{
				ClientOrderID: req.ClientOrderID,
				StatusCode:    te.StatusCode,
				Reason:        te.Message,
				Err:           te,
			}
		}
		return model.Order{}, fmt.Errorf("place order: %w", err)
	}

	order := resp.ToModel()
	c.logger.Info("order placed",
		"order_id", order.ID,
		"client_order_id", req.ClientOrderID,
		"symbol", req.Symbol,
		"side", req.Side,
		"type", req.Type,
		"quantity", req.Quantity,
		"state", order.State,
	)
	return order, nil
}

// CancelOrder requests cancellation. Success means the request was accepted,
// not that the order is canceled; confirm with GetOrder.
func (c *Client) CancelOrder(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("cancel order: id is required")
	}
	if err := c.post(ctx, "cancel_order", CancelOrderPath(id), nil, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", id, err)
	}
	return nil
}

// GetOrder fetches a single order by exchange id.
func (c *Client) GetOrder(ctx context.Context, id string) (model.Order, error) {
	if id == "" {
		return model.Order{}, errors.New("get order: id is required")
	}
	var resp APIOrder
	if err := c.get(ctx, "order", OrderPath(id), &resp); err != nil {
		return model.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return resp.ToModel(), nil
}

// GetOrders fetches a page of orders.
func (c *Client) GetOrders(ctx context.Context, opts GetOrdersOptions) (*OrdersPage, error) {
	query := url.Values{}
	if opts.Symbol != "" {
		query.Set("symbol", opts.Symbol)
	}
	if opts.State != "" {
		query.Set("state", opts.State)
	}
	if opts.Side != "" {
		query.Set("side", opts.Side)
	}
	if opts.Type != "" {
		query.Set("type", opts.Type)
	}
	if !opts.CreatedAtStart.IsZero() {
		query.Set("created_at_start", opts.CreatedAtStart.UTC().Format(time.RFC3339))
	}

	path := PathOrders
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.getOrdersPage(ctx, path)
}

func (c *Client) getOrdersPage(ctx context.Context, path string) (*OrdersPage, error) {
	var resp OrdersResponse
	if err := c.get(ctx, "orders", path, &resp); err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}

	next, err := nextPath(resp.Next)
	if err != nil {
		return nil, &ParseError{Op: "orders", Err: err}
	}

	page := &OrdersPage{
		Orders: make([]model.Order, 0, len(resp.Results)),
		Next:   next,
	}
	for i := range resp.Results {
		page.Orders = append(page.Orders, resp.Results[i].ToModel())
	}
	return page, nil
}

// GetAllOrders fetches all orders matching opts by following the cursor.
// Uses DefaultPaginationTimeout if the context has no deadline.
func (c *Client) GetAllOrders(ctx context.Context, opts GetOrdersOptions) ([]model.Order, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPaginationTimeout)
		defer cancel()
	}

	page, err := c.GetOrders(ctx, opts)
	if err != nil {
		return nil, err
	}
	orders := page.Orders

	for page.Next != "" {
		page, err = c.getOrdersPage(ctx, page.Next)
		if err != nil {
			return nil, err
		}
		orders = append(orders, page.Orders...)
	}

	return orders, nil
}

// FindOrder looks up an order by the client_order_id it was submitted with,
// scanning orders for symbol created since the given time. It resolves
// submissions whose response was lost.
func (c *Client) FindOrder(ctx context.Context, symbol, clientOrderID string, since time.Time) (model.Order, bool, error) {
	if clientOrderID == "" {
		return model.Order{}, false, errors.New("find order: client_order_id is required")
	}
	orders, err := c.GetAllOrders(ctx, GetOrdersOptions{Symbol: symbol, CreatedAtStart: since})
	if err != nil {
		return model.Order{}, false, fmt.Errorf("find order %s: %w", clientOrderID, err)
	}
	for _, o := range orders {
		if o.ClientOrderID == clientOrderID {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

// GetOpenOrders returns orders for symbol that can still trade
// (state open or partially_filled).
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]model.Order, error) {
	var open []model.Order
	for _, state := range []model.OrderState{model.OrderStateOpen, model.OrderStatePartiallyFilled} {
		orders, err := c.GetAllOrders(ctx, GetOrdersOptions{Symbol: symbol, State: string(state)})
		if err != nil {
			return nil, err
		}
		for _, o := range orders {
			if o.State.IsOpen() {
				open = append(open, o)
			}
		}
	}
	return open, nil
}
