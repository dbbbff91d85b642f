package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/rh-crypto-trader/internal/api"
	"github.com/rickgao/rh-crypto-trader/internal/model"
	"github.com/rickgao/rh-crypto-trader/internal/strategy"
)

// submitLookback bounds how far back lookupSubmitted searches.
const submitLookback = 10 * time.Minute

// execute carries out a non-Hold action and records the outcome in res.
func (s *Scheduler) execute(ctx context.Context, action strategy.Action, pair model.TradingPair, res *TickResult) {
	switch action.Kind {
	case strategy.Buy:
		s.submit(ctx, action, model.OrderRequest{
			ClientOrderID: action.ClientOrderID,
			Side:          model.SideBuy,
			Type:          model.OrderTypeMarket,
			Symbol:        s.cfg.Symbol,
			Quantity:      action.Quantity,
		}, res)

	case strategy.SellLimit:
		s.submit(ctx, action, sellLimit(s.cfg.Symbol, action), res)

	case strategy.CancelAndReplace:
		s.cancelAndReplace(ctx, action, pair, res)
	}
}

func sellLimit(symbol string, action strategy.Action) model.OrderRequest {
	return model.OrderRequest{
		ClientOrderID: action.ClientOrderID,
		Side:          model.SideSell,
		Type:          model.OrderTypeLimit,
		Symbol:        symbol,
		Quantity:      action.Quantity,
		LimitPrice:    action.LimitPrice,
		TimeInForce:   model.TimeInForceGTC,
	}
}

// submit places req, resubmitting with the same client order id after a
// retryable failure, then confirms the result.
func (s *Scheduler) submit(ctx context.Context, action strategy.Action, req model.OrderRequest, res *TickResult) {
	var (
		order     model.Order
		err       error
		ambiguous bool
	)
	for attempt := 0; ; attempt++ {
		order, err = s.gw.PlaceOrder(ctx, req)
		if err != nil && retryable(err) {
			ambiguous = true
		}
		if err == nil || attempt >= s.cfg.SubmitRetries || !retryable(err) {
			break
		}
		s.logger.Warn("order submission failed, resubmitting",
			"client_order_id", req.ClientOrderID,
			"attempt", attempt+1,
			"err", err,
		)
		if sleep(ctx, s.cfg.FillPollInterval) != nil {
			break
		}
	}

	if err != nil && ambiguous {
		// An earlier attempt may have reached the exchange even though its
		// response was lost.
		if found, ok := s.lookupSubmitted(ctx, req); ok {
			order, err = found, nil
		}
	}

	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		res.FailedOp = "place_order"

		var rej *api.OrderRejectedError
		if errors.As(err, &rej) {
			res.Outcome = OutcomeRejected
			s.logger.Warn("order rejected",
				"client_order_id", req.ClientOrderID,
				"status", rej.StatusCode,
				"reason", rej.Reason,
			)
		}
		s.record(ctx, action, req, model.Order{}, res.Outcome)
		return
	}

	order = s.confirm(ctx, order)
	res.Order = &order
	res.Outcome = s.applyOrder(order)
	s.record(ctx, action, req, order, res.Outcome)
}

// lookupSubmitted searches recent orders for one carrying req's client
// order id.
func (s *Scheduler) lookupSubmitted(ctx context.Context, req model.OrderRequest) (model.Order, bool) {
	order, found, err := s.gw.FindOrder(ctx, req.Symbol, req.ClientOrderID, s.now().Add(-submitLookback))
	if err != nil {
		s.logger.Warn("failed to look up submitted order",
			"client_order_id", req.ClientOrderID,
			"err", err,
		)
		return model.Order{}, false
	}
	if found {
		s.logger.Info("found order from failed submission",
			"client_order_id", req.ClientOrderID,
			"order_id", order.ID,
			"state", order.State,
		)
	}
	return order, found
}

// confirm polls the order until it reaches a terminal state or the poll
// budget runs out, returning the last state seen.
func (s *Scheduler) confirm(ctx context.Context, order model.Order) model.Order {
	for i := 0; i < s.cfg.FillPollAttempts && !order.State.IsTerminal(); i++ {
		if sleep(ctx, s.cfg.FillPollInterval) != nil {
			break
		}
		latest, err := s.gw.GetOrder(ctx, order.ID)
		if err != nil {
			s.logger.Warn("failed to poll order", "order_id", order.ID, "err", err)
			continue
		}
		order = latest
	}
	return order
}

// applyOrder updates the position from a submitted order's latest state.
func (s *Scheduler) applyOrder(order model.Order) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.State.IsTerminal() {
		s.state.Resolve(order)
		if order.State == model.OrderStateFilled {
			s.logger.Info("order filled",
				"order_id", order.ID,
				"side", order.Side,
				"quantity", order.FilledQuantity,
				"price", order.AveragePrice,
			)
			return OutcomeFilled
		}
		s.logger.Warn("order ended without filling",
			"order_id", order.ID,
			"state", order.State,
			"filled_quantity", order.FilledQuantity,
		)
		return OutcomeRejected
	}

	s.state.TrackOrder(order.ID)
	s.logger.Info("order resting", "order_id", order.ID, "state", order.State)
	return OutcomeResting
}

// cancelAndReplace cancels the resting order, confirms the cancel, and posts
// a replacement limit sell for whatever is available afterwards.
func (s *Scheduler) cancelAndReplace(ctx context.Context, action strategy.Action, pair model.TradingPair, res *TickResult) {
	if err := s.gw.CancelOrder(ctx, action.OrderID); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		res.FailedOp = "cancel_order"
		return
	}

	old, err := s.gw.GetOrder(ctx, action.OrderID)
	if err == nil {
		old = s.confirm(ctx, old)
	}
	if err != nil || !old.State.IsTerminal() {
		s.mu.Lock()
		s.state.TrackOrder(action.OrderID)
		s.mu.Unlock()
		res.Outcome = OutcomeCancelPending
		if err != nil {
			res.Err = err
			res.FailedOp = "get_order"
		}
		s.logger.Warn("cancel not confirmed", "order_id", action.OrderID, "state", old.State)
		return
	}

	s.mu.Lock()
	s.state.Resolve(old)
	s.mu.Unlock()

	if old.State == model.OrderStateFilled {
		// Filled before the cancel landed; nothing to replace.
		res.Order = &old
		res.Outcome = OutcomeFilled
		return
	}

	holding, err := s.gw.GetHolding(ctx, pair.AssetCode)
	if err != nil {
		res.Outcome = OutcomeCanceled
		res.Err = err
		res.FailedOp = "get_holdings"
		return
	}

	qty := model.TruncateToIncrement(holding.AvailableQuantity, pair.AssetIncrement)
	if !qty.IsPositive() || qty.LessThan(pair.MinOrderSize) {
		res.Outcome = OutcomeCanceled
		s.logger.Info("order canceled, nothing left to replace", "order_id", action.OrderID)
		return
	}

	action.Quantity = qty
	s.submit(ctx, action, sellLimit(s.cfg.Symbol, action), res)
}

// record writes a submission to the journal, if one is configured.
func (s *Scheduler) record(ctx context.Context, action strategy.Action, req model.OrderRequest, order model.Order, outcome Outcome) {
	if s.journal == nil {
		return
	}
	rec := model.OrderRecord{
		ClientOrderID: req.ClientOrderID,
		OrderID:       order.ID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Action:        string(action.Kind),
		Quantity:      req.Quantity,
		LimitPrice:    req.LimitPrice,
		Outcome:       string(outcome),
		Reason:        action.Reason,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.journal.Record(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("failed to journal order", "client_order_id", req.ClientOrderID, "err", err)
	}
}

// retryable reports whether a failed submission may be resubmitted.
func retryable(err error) bool {
	var rej *api.OrderRejectedError
	if errors.As(err, &rej) {
		return false
	}
	var te *api.TransportError
	return errors.As(err, &te) && te.IsRetryable()
}
