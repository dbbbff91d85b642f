package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/rh-crypto-trader/internal/api"
	"github.com/rickgao/rh-crypto-trader/internal/model"
	"github.com/rickgao/rh-crypto-trader/internal/position"
	"github.com/rickgao/rh-crypto-trader/internal/strategy"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeGateway is an in-memory exchange.
type fakeGateway struct {
	mu sync.Mutex

	account    model.Account
	accountErr error
	quote      model.Quote
	quoteErr   error
	holding    model.Holding
	openOrders []model.Order
	pair       model.TradingPair
	orders     map[string]model.Order

	placeFn  func(req model.OrderRequest) (model.Order, error)
	cancelFn func(id string) error

	calls    map[string]int
	placed   []model.OrderRequest
	canceled []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		account: model.Account{BuyingPower: dec("50")},
		quote:   model.Quote{Symbol: "BTC-USD", Bid: dec("50"), Ask: dec("50"), Price: dec("50")},
		holding: model.Holding{AssetCode: "BTC"},
		pair: model.TradingPair{
			Symbol:         "BTC-USD",
			AssetCode:      "BTC",
			QuoteCode:      "USD",
			QuoteIncrement: dec("0.01"),
			AssetIncrement: dec("0.00000001"),
			MinOrderSize:   dec("0.000001"),
		},
		orders: map[string]model.Order{},
		calls:  map[string]int{},
	}
}

func (g *fakeGateway) call(op string) {
	g.mu.Lock()
	g.calls[op]++
	g.mu.Unlock()
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) GetAccount(ctx context.Context) (model.Account, error) {
	g.call("get_account")
	return g.account, g.accountErr
}

func (g *fakeGateway) GetHolding(ctx context.Context, assetCode string) (model.Holding, error) {
	g.call("get_holding")
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holding, nil
}

func (g *fakeGateway) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	g.call("get_quote")
	return g.quote, g.quoteErr
}

func (g *fakeGateway) GetTradingPair(ctx context.Context, symbol string) (model.TradingPair, error) {
	g.call("get_trading_pair")
	return g.pair, nil
}

func (g *fakeGateway) GetOpenOrders(ctx context.Context, symbol string) ([]model.Order, error) {
	g.call("get_open_orders")
	return g.openOrders, nil
}

func (g *fakeGateway) PlaceOrder(ctx context.Context, req model.OrderRequest) (model.Order, error) {
	g.call("place_order")
	g.mu.Lock()
	g.placed = append(g.placed, req)
	fn := g.placeFn
	g.mu.Unlock()

	if fn == nil {
		return model.Order{}, errors.New("unexpected order")
	}
	order, err := fn(req)
	if err == nil {
		g.mu.Lock()
		g.orders[order.ID] = order
		g.mu.Unlock()
	}
	return order, err
}

func (g *fakeGateway) CancelOrder(ctx context.Context, id string) error {
	g.call("cancel_order")
	g.mu.Lock()
	g.canceled = append(g.canceled, id)
	fn := g.cancelFn
	g.mu.Unlock()
	if fn != nil {
		return fn(id)
	}
	return nil
}

func (g *fakeGateway) GetOrder(ctx context.Context, id string) (model.Order, error) {
	g.call("get_order")
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	if !ok {
		return model.Order{}, &api.TransportError{StatusCode: 404, Message: "Not Found"}
	}
	return o, nil
}

func (g *fakeGateway) FindOrder(ctx context.Context, symbol, clientOrderID string, since time.Time) (model.Order, bool, error) {
	g.call("find_order")
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, o := range g.orders {
		if o.ClientOrderID == clientOrderID {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (g *fakeGateway) setOrder(o model.Order) {
	g.mu.Lock()
	g.orders[o.ID] = o
	g.mu.Unlock()
}

// memJournal collects journal records.
type memJournal struct {
	mu      sync.Mutex
	records []model.OrderRecord
}

func (j *memJournal) Record(_ context.Context, rec model.OrderRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Symbol = "BTC-USD"
	cfg.FillPollAttempts = 2
	cfg.FillPollInterval = time.Millisecond
	return cfg
}

func newTestScheduler(gw *fakeGateway, opts ...Option) *Scheduler {
	ids := 0
	engine := strategy.NewEngine(strategy.DefaultParams(), strategy.WithIDGenerator(func() string {
		ids++
		return fmt.Sprintf("cid-%d", ids)
	}))
	return New(testConfig(), gw, engine, opts...)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Interval != 1200*time.Second {
		t.Errorf("Interval = %v, want 1200s", cfg.Interval)
	}
	if !cfg.MinimumTradeAmount.Equal(dec("10")) {
		t.Errorf("MinimumTradeAmount = %s, want 10", cfg.MinimumTradeAmount)
	}
	if cfg.FillPollAttempts != 5 {
		t.Errorf("FillPollAttempts = %d, want 5", cfg.FillPollAttempts)
	}
}

func TestTick_InsufficientBuyingPower(t *testing.T) {
	gw := newFakeGateway()
	gw.account.BuyingPower = dec("5")
	s := newTestScheduler(gw)

	res := s.Tick(context.Background())

	if res.SkipReason != "insufficient_buying_power" {
		t.Errorf("SkipReason = %q, want insufficient_buying_power", res.SkipReason)
	}
	if res.Result() != "skipped" {
		t.Errorf("Result() = %q, want skipped", res.Result())
	}
	if !res.Action.IsHold() {
		t.Errorf("Action = %s, want hold", res.Action.Kind)
	}
	if n := gw.count("get_quote"); n != 0 {
		t.Errorf("get_quote calls = %d, want 0", n)
	}
	if n := gw.count("place_order"); n != 0 {
		t.Errorf("place_order calls = %d, want 0", n)
	}
	if !s.Snapshot().LastPriceChecked.IsZero() {
		t.Error("skipped tick should not record a checked price")
	}
}

func TestTick_FirstBuyFills(t *testing.T) {
	gw := newFakeGateway()
	gw.placeFn = func(req model.OrderRequest) (model.Order, error) {
		return model.Order{
			ID:             "order-1",
			ClientOrderID:  req.ClientOrderID,
			Symbol:         req.Symbol,
			Side:           req.Side,
			Type:           req.Type,
			State:          model.OrderStateFilled,
			Quantity:       req.Quantity,
			AveragePrice:   dec("50"),
			FilledQuantity: req.Quantity,
		}, nil
	}
	journal := &memJournal{}
	s := newTestScheduler(gw, WithJournal(journal))

	res := s.Tick(context.Background())

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Action.Kind != strategy.Buy {
		t.Fatalf("Action = %s (%s), want buy", res.Action.Kind, res.Action.Reason)
	}
	if !res.Action.DollarAmount.Equal(dec("10")) {
		t.Errorf("DollarAmount = %s, want 10", res.Action.DollarAmount)
	}
	if res.Outcome != OutcomeFilled {
		t.Errorf("Outcome = %s, want filled", res.Outcome)
	}
	if len(gw.placed) != 1 {
		t.Fatalf("placed = %d, want 1", len(gw.placed))
	}
	req := gw.placed[0]
	if req.Type != model.OrderTypeMarket || req.Side != model.SideBuy {
		t.Errorf("request = %s %s, want market buy", req.Type, req.Side)
	}
	if !req.Quantity.Equal(dec("0.2")) {
		t.Errorf("Quantity = %s, want 0.2", req.Quantity)
	}

	st := s.Snapshot()
	if !st.LastPriceBought.Equal(dec("50")) {
		t.Errorf("LastPriceBought = %s, want 50", st.LastPriceBought)
	}
	if !st.LastQuantityBought.Equal(dec("0.2")) {
		t.Errorf("LastQuantityBought = %s, want 0.2", st.LastQuantityBought)
	}
	if !st.LastPriceChecked.Equal(dec("50")) {
		t.Errorf("LastPriceChecked = %s, want 50", st.LastPriceChecked)
	}
	if st.HasOpenOrder() {
		t.Errorf("OpenOrderID = %q, want none", st.OpenOrderID)
	}

	if len(journal.records) != 1 {
		t.Fatalf("journal records = %d, want 1", len(journal.records))
	}
	if rec := journal.records[0]; rec.ClientOrderID != "cid-1" || rec.OrderID != "order-1" || rec.Outcome != "filled" {
		t.Errorf("journal record = %+v", rec)
	}
}

func TestTick_FillConfirmedByPolling(t *testing.T) {
	gw := newFakeGateway()
	gw.placeFn = func(req model.OrderRequest) (model.Order, error) {
		return model.Order{ID: "order-1", Side: req.Side, State: model.OrderStateOpen}, nil
	}
	var polls atomic.Int32
	s := newTestScheduler(gw)
	s.gw = &pollingGateway{fakeGateway: gw, onGetOrder: func() {
		if polls.Add(1) == 1 {
			gw.setOrder(model.Order{ID: "order-1", Side: model.SideBuy, State: model.OrderStateFilled, AveragePrice: dec("49.9"), FilledQuantity: dec("0.2")})
		}
	}}

	res := s.Tick(context.Background())

	if res.Outcome != OutcomeFilled {
		t.Fatalf("Outcome = %s, want filled", res.Outcome)
	}
	if !s.Snapshot().LastPriceBought.Equal(dec("49.9")) {
		t.Errorf("LastPriceBought = %s, want 49.9", s.Snapshot().LastPriceBought)
	}
}

// pollingGateway runs a hook before each GetOrder.
type pollingGateway struct {
	*fakeGateway
	onGetOrder func()
}

func (g *pollingGateway) GetOrder(ctx context.Context, id string) (model.Order, error) {
	g.onGetOrder()
	return g.fakeGateway.GetOrder(ctx, id)
}

func TestTick_TransportErrorDegradesToHold(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(gw *fakeGateway)
		wantOp string
	}{
		{
			name:   "account",
			setup:  func(gw *fakeGateway) { gw.accountErr = &api.TransportError{Message: "do request", Err: context.DeadlineExceeded} },
			wantOp: "get_account",
		},
		{
			name:   "quote",
			setup:  func(gw *fakeGateway) { gw.quoteErr = &api.TransportError{StatusCode: 503, Message: "Service Unavailable"} },
			wantOp: "get_quote",
		},
		{
			name:   "malformed quote",
			setup:  func(gw *fakeGateway) { gw.quoteErr = &api.ParseError{Op: "best_bid_ask", Err: errors.New("bid missing")} },
			wantOp: "get_quote",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway()
			tt.setup(gw)
			s := newTestScheduler(gw)

			res := s.Tick(context.Background())

			if res.Err == nil {
				t.Fatal("expected error in result")
			}
			if res.FailedOp != tt.wantOp {
				t.Errorf("FailedOp = %q, want %q", res.FailedOp, tt.wantOp)
			}
			if !res.Action.IsHold() {
				t.Errorf("Action = %s, want hold", res.Action.Kind)
			}
			if res.Result() != "error" {
				t.Errorf("Result() = %q, want error", res.Result())
			}
			if n := gw.count("place_order"); n != 0 {
				t.Errorf("place_order calls = %d, want 0", n)
			}
			if !s.Snapshot().NeverBought() {
				t.Error("state should be unchanged")
			}
		})
	}
}

func TestTick_SellRestsThenFills(t *testing.T) {
	gw := newFakeGateway()
	gw.holding = model.Holding{AssetCode: "BTC", TotalQuantity: dec("0.2"), AvailableQuantity: dec("0.2")}
	gw.quote = model.Quote{Symbol: "BTC-USD", Bid: dec("51.51"), Ask: dec("51.6")}
	gw.placeFn = func(req model.OrderRequest) (model.Order, error) {
		return model.Order{ID: "sell-1", ClientOrderID: req.ClientOrderID, Side: req.Side, Type: req.Type, State: model.OrderStateOpen}, nil
	}

	s := newTestScheduler(gw)
	s.state.LastPriceBought = dec("50")

	res := s.Tick(context.Background())

	if res.Action.Kind != strategy.SellLimit {
		t.Fatalf("Action = %s (%s), want sell_limit", res.Action.Kind, res.Action.Reason)
	}
	if res.Outcome != OutcomeResting {
		t.Errorf("Outcome = %s, want resting", res.Outcome)
	}
	if !gw.placed[0].LimitPrice.Equal(dec("51.25")) {
		t.Errorf("LimitPrice = %s, want 51.25", gw.placed[0].LimitPrice)
	}
	if got := s.Snapshot().OpenOrderID; got != "sell-1" {
		t.Fatalf("OpenOrderID = %q, want sell-1", got)
	}
	if !s.Snapshot().NeverSold() {
		t.Error("submission alone must not record a sell")
	}

	// Next tick: the exchange reports the sell filled.
	gw.setOrder(model.Order{ID: "sell-1", Side: model.SideSell, State: model.OrderStateFilled, AveragePrice: dec("51.25"), FilledQuantity: dec("0.2")})
	gw.mu.Lock()
	gw.holding = model.Holding{AssetCode: "BTC"}
	gw.mu.Unlock()
	gw.quote = model.Quote{Symbol: "BTC-USD", Bid: dec("51"), Ask: dec("51.1")}

	res = s.Tick(context.Background())

	st := s.Snapshot()
	if !st.LastPriceSold.Equal(dec("51.25")) {
		t.Errorf("LastPriceSold = %s, want 51.25", st.LastPriceSold)
	}
	if st.HasOpenOrder() {
		t.Errorf("OpenOrderID = %q, want none", st.OpenOrderID)
	}
	// 51 is above 51.25 * 0.97, so no re-entry yet.
	if res.Action.Kind != strategy.Hold {
		t.Errorf("Action = %s, want hold", res.Action.Kind)
	}
}

func TestTick_CancelAndReplace(t *testing.T) {
	gw := newFakeGateway()
	gw.holding = model.Holding{AssetCode: "BTC", TotalQuantity: dec("0.2"), AvailableQuantity: decimal.Zero}
	gw.quote = model.Quote{Symbol: "BTC-USD", Bid: dec("101.5"), Ask: dec("101.6")}
	gw.openOrders = []model.Order{{ID: "sell-1", Symbol: "BTC-USD", Side: model.SideSell, State: model.OrderStateOpen}}
	gw.setOrder(model.Order{ID: "sell-1", Side: model.SideSell, State: model.OrderStateOpen})
	gw.cancelFn = func(id string) error {
		gw.setOrder(model.Order{ID: id, Side: model.SideSell, State: model.OrderStateCanceled})
		gw.mu.Lock()
		gw.holding.AvailableQuantity = dec("0.2")
		gw.mu.Unlock()
		return nil
	}
	gw.placeFn = func(req model.OrderRequest) (model.Order, error) {
		return model.Order{ID: "sell-2", ClientOrderID: req.ClientOrderID, Side: req.Side, State: model.OrderStateOpen}, nil
	}

	s := newTestScheduler(gw)
	s.state.LastPriceBought = dec("90")
	s.state.LastPriceChecked = dec("100")
	s.state.TrackOrder("sell-1")

	res := s.Tick(context.Background())

	if res.Action.Kind != strategy.CancelAndReplace {
		t.Fatalf("Action = %s (%s), want cancel_and_replace", res.Action.Kind, res.Action.Reason)
	}
	if len(gw.canceled) != 1 || gw.canceled[0] != "sell-1" {
		t.Errorf("canceled = %v, want [sell-1]", gw.canceled)
	}
	if len(gw.placed) != 1 {
		t.Fatalf("placed = %d, want 1", len(gw.placed))
	}
	req := gw.placed[0]
	if !req.LimitPrice.Equal(dec("100.99")) || !req.Quantity.Equal(dec("0.2")) {
		t.Errorf("replacement = %s @ %s, want 0.2 @ 100.99", req.Quantity, req.LimitPrice)
	}
	if res.Outcome != OutcomeResting {
		t.Errorf("Outcome = %s, want resting", res.Outcome)
	}
	st := s.Snapshot()
	if st.OpenOrderID != "sell-2" {
		t.Errorf("OpenOrderID = %q, want sell-2", st.OpenOrderID)
	}
	if !st.LastPriceChecked.Equal(dec("101.5")) {
		t.Errorf("LastPriceChecked = %s, want 101.5", st.LastPriceChecked)
	}
}

func TestTick_CancelNotConfirmed(t *testing.T) {
	gw := newFakeGateway()
	gw.holding = model.Holding{AssetCode: "BTC", TotalQuantity: dec("0.2")}
	gw.quote = model.Quote{Symbol: "BTC-USD", Bid: dec("101.5"), Ask: dec("101.6")}
	gw.setOrder(model.Order{ID: "sell-1", Side: model.SideSell, State: model.OrderStateOpen})

	s := newTestScheduler(gw)
	s.state.LastPriceBought = dec("90")
	s.state.LastPriceChecked = dec("100")
	s.state.TrackOrder("sell-1")

	res := s.Tick(context.Background())

	if res.Outcome != OutcomeCancelPending {
		t.Errorf("Outcome = %s, want cancel_pending", res.Outcome)
	}
	if n := gw.count("place_order"); n != 0 {
		t.Errorf("place_order calls = %d, want 0", n)
	}
	if got := s.Snapshot().OpenOrderID; got != "sell-1" {
		t.Errorf("OpenOrderID = %q, want sell-1", got)
	}
}

func TestTick_RejectedOrderLeavesStateUnchanged(t *testing.T) {
	gw := newFakeGateway()
	gw.placeFn = func(req model.OrderRequest) (model.Order, error) {
		return model.Order{}, &api.OrderRejectedError{
			ClientOrderID: req.ClientOrderID,
			StatusCode:    400,
			Reason:        "Insufficient buying power.",
			Err:           &api.TransportError{StatusCode: 400},
		}
	}
	journal := &memJournal{}
	s := newTestScheduler(gw, WithJournal(journal))

	res := s.Tick(context.Background())

	if res.Outcome != OutcomeRejected {
		t.Errorf("Outcome = %s, want rejected", res.Outcome)
	}
	if ErrorKind(res.Err) != "rejected" {
		t.Errorf("ErrorKind = %q, want rejected", ErrorKind(res.Err))
	}
	if n := gw.count("place_order"); n != 1 {
		t.Errorf("place_order calls = %d, want 1 (rejections are not retried)", n)
	}
	if n := gw.count("find_order"); n != 0 {
		t.Errorf("find_order calls = %d, want 0", n)
	}
	st := s.Snapshot()
	if !st.NeverBought() || st.HasOpenOrder() {
		t.Errorf("state changed after rejection: %+v", st)
	}
	if len(journal.records) != 1 || journal.records[0].Outcome != "rejected" {
		t.Errorf("journal = %+v, want one rejected record", journal.records)
	}
}

func TestTick_RetryableSubmissionReusesClientID(t *testing.T) {
	gw := newFakeGateway()
	var attempts atomic.Int32
	gw.placeFn = func(req model.OrderRequest) (model.Order, error) {
		if attempts.Add(1) == 1 {
			return model.Order{}, &api.TransportError{Message: "do request", Err: context.DeadlineExceeded}
		}
		return model.Order{ID: "order-1", Side: req.Side, State: model.OrderStateFilled, AveragePrice: dec("50"), FilledQuantity: dec("0.2")}, nil
	}
	s := newTestScheduler(gw)

	res := s.Tick(context.Background())

	if res.Outcome != OutcomeFilled {
		t.Fatalf("Outcome = %s (%v), want filled", res.Outcome, res.Err)
	}
	if len(gw.placed) != 2 {
		t.Fatalf("placed = %d, want 2", len(gw.placed))
	}
	if gw.placed[0].ClientOrderID != gw.placed[1].ClientOrderID {
		t.Errorf("client ids differ: %q vs %q", gw.placed[0].ClientOrderID, gw.placed[1].ClientOrderID)
	}
}

func TestTick_AmbiguousSubmissionRecoversFill(t *testing.T) {
	gw := newFakeGateway()
	var attempts atomic.Int32
	gw.placeFn = func(req model.OrderRequest) (model.Order, error) {
		if attempts.Add(1) == 1 {
			// The exchange accepts and fills the order but the response is lost.
			gw.setOrder(model.Order{
				ID:             "order-1",
				ClientOrderID:  req.ClientOrderID,
				Symbol:         req.Symbol,
				Side:           req.Side,
				Type:           req.Type,
				State:          model.OrderStateFilled,
				AveragePrice:   dec("50"),
				FilledQuantity: dec("0.2"),
			})
			return model.Order{}, &api.TransportError{Message: "do request", Err: context.DeadlineExceeded}
		}
		return model.Order{}, &api.OrderRejectedError{
			ClientOrderID: req.ClientOrderID,
			StatusCode:    400,
			Reason:        "Duplicate client_order_id.",
			Err:           &api.TransportError{StatusCode: 400},
		}
	}
	journal := &memJournal{}
	s := newTestScheduler(gw, WithJournal(journal))

	res := s.Tick(context.Background())

	if res.Outcome != OutcomeFilled {
		t.Fatalf("Outcome = %s (%v), want filled", res.Outcome, res.Err)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil", res.Err)
	}
	if n := gw.count("place_order"); n != 2 {
		t.Errorf("place_order calls = %d, want 2", n)
	}
	if n := gw.count("find_order"); n != 1 {
		t.Errorf("find_order calls = %d, want 1", n)
	}
	if res.Order == nil || res.Order.ID != "order-1" {
		t.Errorf("Order = %+v, want order-1", res.Order)
	}
	st := s.Snapshot()
	if !st.LastPriceBought.Equal(dec("50")) {
		t.Errorf("LastPriceBought = %s, want 50", st.LastPriceBought)
	}
	if !st.LastQuantityBought.Equal(dec("0.2")) {
		t.Errorf("LastQuantityBought = %s, want 0.2", st.LastQuantityBought)
	}
	if len(journal.records) != 1 || journal.records[0].Outcome != "filled" || journal.records[0].OrderID != "order-1" {
		t.Errorf("journal = %+v, want one filled record for order-1", journal.records)
	}
}

func TestTick_AmbiguousSubmissionNotFound(t *testing.T) {
	gw := newFakeGateway()
	gw.placeFn = func(req model.OrderRequest) (model.Order, error) {
		return model.Order{}, &api.TransportError{Message: "do request", Err: context.DeadlineExceeded}
	}
	s := newTestScheduler(gw)

	res := s.Tick(context.Background())

	if res.Outcome != OutcomeFailed {
		t.Errorf("Outcome = %s, want failed", res.Outcome)
	}
	if res.FailedOp != "place_order" {
		t.Errorf("FailedOp = %q, want place_order", res.FailedOp)
	}
	if n := gw.count("find_order"); n != 1 {
		t.Errorf("find_order calls = %d, want 1", n)
	}
	if st := s.Snapshot(); !st.NeverBought() || st.HasOpenOrder() {
		t.Errorf("state changed after failed submission: %+v", st)
	}
}

func TestTick_TrackedOrderMissingFromListing(t *testing.T) {
	gw := newFakeGateway()
	gw.holding = model.Holding{AssetCode: "BTC", TotalQuantity: dec("0.2")}
	gw.quote = model.Quote{Symbol: "BTC-USD", Bid: dec("101.5"), Ask: dec("101.6")}
	gw.setOrder(model.Order{ID: "sell-1", Symbol: "BTC-USD", Side: model.SideSell, State: model.OrderStateOpen})
	gw.cancelFn = func(id string) error {
		gw.setOrder(model.Order{ID: id, Side: model.SideSell, State: model.OrderStateCanceled})
		gw.mu.Lock()
		gw.holding.AvailableQuantity = dec("0.2")
		gw.mu.Unlock()
		return nil
	}
	gw.placeFn = func(req model.OrderRequest) (model.Order, error) {
		return model.Order{ID: "sell-2", ClientOrderID: req.ClientOrderID, Side: req.Side, State: model.OrderStateOpen}, nil
	}

	s := newTestScheduler(gw)
	s.state.LastPriceBought = dec("90")
	s.state.LastPriceChecked = dec("100")
	s.state.TrackOrder("sell-1")

	res := s.Tick(context.Background())

	if res.Action.Kind != strategy.CancelAndReplace {
		t.Fatalf("Action = %s (%s), want cancel_and_replace", res.Action.Kind, res.Action.Reason)
	}
	if got := s.Snapshot().OpenOrderID; got != "sell-2" {
		t.Errorf("OpenOrderID = %q, want sell-2", got)
	}
}

func TestWithTracked(t *testing.T) {
	listed := []model.Order{{ID: "a"}}
	tests := []struct {
		name    string
		tracked *model.Order
		want    int
	}{
		{"none tracked", nil, 1},
		{"already listed", &model.Order{ID: "a"}, 1},
		{"missing", &model.Order{ID: "b"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := withTracked(listed, tt.tracked)
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestTick_TradingPairCached(t *testing.T) {
	gw := newFakeGateway()
	gw.account.BuyingPower = dec("50")
	gw.holding = model.Holding{AssetCode: "BTC", TotalQuantity: dec("1"), AvailableQuantity: dec("1")}
	s := newTestScheduler(gw)
	// 50 is below the sell trigger for this cost basis.
	s.state.LastPriceBought = dec("100")

	s.Tick(context.Background())
	s.Tick(context.Background())

	if n := gw.count("get_trading_pair"); n != 1 {
		t.Errorf("get_trading_pair calls = %d, want 1", n)
	}
}

func TestScheduler_RestoreAndCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := position.NewMemoryStore()

	saved := position.New("BTC-USD")
	saved.LastPriceSold = dec("100")
	if err := store.Save(ctx, saved); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	gw := newFakeGateway()
	gw.quote = model.Quote{Symbol: "BTC-USD", Bid: dec("98"), Ask: dec("98.1")}
	s := newTestScheduler(gw, WithStore(store))

	if err := s.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !s.Snapshot().LastPriceSold.Equal(dec("100")) {
		t.Fatalf("LastPriceSold = %s, want 100", s.Snapshot().LastPriceSold)
	}

	// 98 is above the 97 dip trigger, so the restored state must yield Hold.
	res := s.Tick(ctx)
	if res.Action.Kind != strategy.Hold {
		t.Errorf("Action = %s, want hold", res.Action.Kind)
	}

	got, ok, err := store.Load(ctx, "BTC-USD")
	if err != nil || !ok {
		t.Fatalf("Load = ok %v err %v", ok, err)
	}
	if !got.LastPriceChecked.Equal(dec("98")) {
		t.Errorf("checkpointed LastPriceChecked = %s, want 98", got.LastPriceChecked)
	}
}

func TestScheduler_PublishesEveryTick(t *testing.T) {
	gw := newFakeGateway()
	gw.account.BuyingPower = dec("1")

	var results []TickResult
	s := newTestScheduler(gw, WithPublisher(PublisherFunc(func(r TickResult) {
		results = append(results, r)
	})))

	s.Tick(context.Background())
	s.Tick(context.Background())

	if len(results) != 2 {
		t.Fatalf("published = %d, want 2", len(results))
	}
	if results[0].Symbol != "BTC-USD" || results[0].SkipReason == "" {
		t.Errorf("result = %+v", results[0])
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	gw := newFakeGateway()
	gw.account.BuyingPower = dec("1")

	cfg := testConfig()
	cfg.Interval = 10 * time.Millisecond
	s := New(cfg, gw, strategy.NewEngine(strategy.DefaultParams()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for gw.count("get_account") < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d ticks ran", gw.count("get_account"))
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestScheduler_RunFinishesTickAfterCancel(t *testing.T) {
	gw := newFakeGateway()
	ctx, cancel := context.WithCancel(context.Background())
	gw.placeFn = func(req model.OrderRequest) (model.Order, error) {
		cancel()
		return model.Order{ID: "order-1", ClientOrderID: req.ClientOrderID, Side: req.Side, State: model.OrderStateOpen}, nil
	}

	var (
		mu      sync.Mutex
		results []TickResult
	)
	cfg := testConfig()
	cfg.Interval = time.Hour
	s := New(cfg, gw, strategy.NewEngine(strategy.DefaultParams()), WithPublisher(PublisherFunc(func(r TickResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})))

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if n := gw.count("get_order"); n != cfg.FillPollAttempts {
		t.Errorf("get_order calls = %d, want %d", n, cfg.FillPollAttempts)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(results) != 1 {
		t.Fatalf("published = %d, want 1", len(results))
	}
	if results[0].Outcome != OutcomeResting {
		t.Errorf("Outcome = %s, want resting", results[0].Outcome)
	}
	if got := s.Snapshot().OpenOrderID; got != "order-1" {
		t.Errorf("OpenOrderID = %q, want order-1", got)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	gw := newFakeGateway()
	gw.account.BuyingPower = dec("1")

	cfg := testConfig()
	cfg.Interval = time.Hour
	s := New(cfg, gw, strategy.NewEngine(strategy.DefaultParams()))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for gw.count("get_account") < 1 {
		select {
		case <-deadline:
			t.Fatal("first tick did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestSleep_Interruptible(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleep = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleep did not return promptly")
	}
}

func TestTickResult_MarshalJSON(t *testing.T) {
	res := TickResult{
		Symbol:      "BTC-USD",
		At:          time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		Duration:    1500 * time.Millisecond,
		BuyingPower: dec("50"),
		Quote:       model.Quote{Bid: dec("51.51"), Ask: dec("51.6")},
		Action:      strategy.Action{Kind: strategy.SellLimit, Quantity: dec("0.2"), LimitPrice: dec("51.25"), Reason: "gain_target"},
		Order:       &model.Order{ID: "sell-1"},
		Outcome:     OutcomeResting,
		State:       position.State{OpenOrderID: "sell-1"},
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	checks := map[string]any{
		"symbol":        "BTC-USD",
		"action":        "sell_limit",
		"limit_price":   "51.25",
		"outcome":       "resting",
		"order_id":      "sell-1",
		"result":        "ok",
		"duration_ms":   float64(1500),
		"open_order_id": "sell-1",
	}
	for k, want := range checks {
		if got[k] != want {
			t.Errorf("%s = %v, want %v", k, got[k], want)
		}
	}
	if _, ok := got["error"]; ok {
		t.Error("error should be omitted")
	}
}
