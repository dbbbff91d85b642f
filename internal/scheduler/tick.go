package scheduler

import (
	"context"
	"time"

	"github.com/rickgao/rh-crypto-trader/internal/model"
	"github.com/rickgao/rh-crypto-trader/internal/strategy"
)

// Tick runs one evaluation and execution cycle. It never panics on gateway
// failure; errors are reported in the result and the tick degrades to Hold.
func (s *Scheduler) Tick(ctx context.Context) (res TickResult) {
	start := s.now()
	res = TickResult{
		Symbol:  s.cfg.Symbol,
		At:      start.UTC(),
		Action:  strategy.Action{Kind: strategy.Hold},
		Outcome: OutcomeNone,
	}

	defer func() {
		res.Duration = s.now().Sub(start)
		res.State = s.Snapshot()
		if res.Err != nil {
			s.logger.Warn("tick failed",
				"op", res.FailedOp,
				"kind", ErrorKind(res.Err),
				"err", res.Err,
			)
		}
		if s.publisher != nil {
			s.publisher.Publish(res)
		}
	}()

	fail := func(op string, err error) {
		res.FailedOp = op
		res.Err = err
		if res.Action.IsHold() {
			res.Action = strategy.Action{Kind: strategy.Hold, Reason: "gateway_error"}
		}
	}

	acct, err := s.gw.GetAccount(ctx)
	if err != nil {
		fail("get_account", err)
		return res
	}
	res.BuyingPower = acct.BuyingPower

	if acct.BuyingPower.LessThan(s.cfg.MinimumTradeAmount) {
		res.SkipReason = "insufficient_buying_power"
		res.Action.Reason = res.SkipReason
		s.logger.Info("tick skipped",
			"reason", ErrInsufficientBuyingPower,
			"buying_power", acct.BuyingPower,
			"minimum", s.cfg.MinimumTradeAmount,
		)
		return res
	}

	tracked, err := s.reconcile(ctx)
	if err != nil {
		fail("get_order", err)
		return res
	}

	pair, err := s.tradingPair(ctx)
	if err != nil {
		fail("get_trading_pair", err)
		return res
	}

	quote, err := s.gw.GetQuote(ctx, s.cfg.Symbol)
	if err != nil {
		fail("get_quote", err)
		return res
	}
	res.Quote = quote

	// Decide against the state as it was before this tick's price is recorded.
	before := s.Snapshot()
	s.mu.Lock()
	s.state.MarkChecked(quote.Bid, start.UTC())
	s.mu.Unlock()
	defer s.checkpoint(ctx)

	holding, err := s.gw.GetHolding(ctx, pair.AssetCode)
	if err != nil {
		fail("get_holdings", err)
		return res
	}

	open, err := s.gw.GetOpenOrders(ctx, s.cfg.Symbol)
	if err != nil {
		fail("get_orders", err)
		return res
	}
	open = withTracked(open, tracked)

	action := s.decider.Decide(strategy.Inputs{
		State:      before,
		Quote:      quote,
		Holding:    holding,
		OpenOrders: open,
		Pair:       pair,
	})
	res.Action = action

	if action.IsHold() {
		s.logger.Debug("hold", "reason", action.Reason, "bid", quote.Bid)
		return res
	}

	s.logger.Info("action decided",
		"action", action.Kind,
		"reason", action.Reason,
		"bid", quote.Bid,
		"ask", quote.Ask,
		"quantity", action.Quantity,
		"limit_price", action.LimitPrice,
	)

	s.execute(ctx, action, pair, &res)
	return res
}

// reconcile refreshes the tracked order and resolves it if it reached a
// terminal state. It returns the order while it is still live.
func (s *Scheduler) reconcile(ctx context.Context) (*model.Order, error) {
	s.mu.Lock()
	id := s.state.OpenOrderID
	s.mu.Unlock()
	if id == "" {
		return nil, nil
	}

	order, err := s.gw.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	resolved := s.state.Resolve(order)
	s.mu.Unlock()

	if resolved {
		s.logger.Info("tracked order resolved",
			"order_id", order.ID,
			"state", order.State,
			"filled_quantity", order.FilledQuantity,
			"average_price", order.AveragePrice,
		)
		s.checkpoint(ctx)
		return nil, nil
	}
	return &order, nil
}

// withTracked adds the live tracked order to the open order list when the
// listing has not caught up with it yet.
func withTracked(open []model.Order, tracked *model.Order) []model.Order {
	if tracked == nil {
		return open
	}
	for _, o := range open {
		if o.ID == tracked.ID {
			return open
		}
	}
	return append(open, *tracked)
}

// tradingPair returns the cached pair metadata, fetching it on first use.
func (s *Scheduler) tradingPair(ctx context.Context) (model.TradingPair, error) {
	if s.pair != nil {
		return *s.pair, nil
	}
	pair, err := s.gw.GetTradingPair(ctx, s.cfg.Symbol)
	if err != nil {
		return model.TradingPair{}, err
	}
	if pair.AssetCode == "" {
		pair.AssetCode = model.AssetCode(s.cfg.Symbol)
	}
	s.pair = &pair
	return pair, nil
}

// checkpoint saves the position if a store is configured.
func (s *Scheduler) checkpoint(ctx context.Context) {
	if s.store == nil {
		return
	}
	st := s.Snapshot()
	st.UpdatedAt = s.now().UTC()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.Save(ctx, &st); err != nil {
		s.logger.Warn("failed to checkpoint position", "err", err)
	}
}
