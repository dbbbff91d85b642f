package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/rh-crypto-trader/internal/model"
	"github.com/rickgao/rh-crypto-trader/internal/position"
	"github.com/rickgao/rh-crypto-trader/internal/strategy"
)

// ErrInsufficientBuyingPower marks a tick skipped because buying power is
// below the minimum trade amount. It is a Hold condition, not a failure.
var ErrInsufficientBuyingPower = errors.New("insufficient buying power")

// Gateway is the subset of the API client the scheduler calls.
// *api.Client satisfies this interface.
type Gateway interface {
	GetAccount(ctx context.Context) (model.Account, error)
	GetHolding(ctx context.Context, assetCode string) (model.Holding, error)
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	GetTradingPair(ctx context.Context, symbol string) (model.TradingPair, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]model.Order, error)
	PlaceOrder(ctx context.Context, req model.OrderRequest) (model.Order, error)
	CancelOrder(ctx context.Context, id string) error
	GetOrder(ctx context.Context, id string) (model.Order, error)
	FindOrder(ctx context.Context, symbol, clientOrderID string, since time.Time) (model.Order, bool, error)
}

// Decider produces one Action per tick. *strategy.Engine satisfies this interface.
type Decider interface {
	Decide(in strategy.Inputs) strategy.Action
}

// Journal records order submissions.
type Journal interface {
	Record(ctx context.Context, rec model.OrderRecord) error
}

// Publisher receives every tick result.
type Publisher interface {
	Publish(res TickResult)
}

// PublisherFunc is a function adapter for Publisher.
type PublisherFunc func(TickResult)

func (f PublisherFunc) Publish(res TickResult) {
	f(res)
}

// Config holds scheduler configuration.
type Config struct {
	Symbol             string
	Interval           time.Duration   // time between the end of one tick and the start of the next (default: 20m)
	MinimumTradeAmount decimal.Decimal // ticks are skipped below this buying power (default: $10)
	FillPollAttempts   int             // getOrder polls after a submission (default: 5)
	FillPollInterval   time.Duration   // delay between fill polls (default: 2s)
	SubmitRetries      int             // resubmissions with the same client id after a retryable failure (default: 1)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:           1200 * time.Second,
		MinimumTradeAmount: decimal.NewFromInt(10),
		FillPollAttempts:   5,
		FillPollInterval:   2 * time.Second,
		SubmitRetries:      1,
	}
}

// Scheduler runs the tick loop for one trading pair. It exclusively owns the
// pair's position.State.
type Scheduler struct {
	cfg       Config
	gw        Gateway
	decider   Decider
	store     position.Store
	journal   Journal
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex // guards state for Snapshot readers
	state *position.State
	pair  *model.TradingPair

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore sets where position state is restored from and checkpointed to.
func WithStore(store position.Store) Option {
	return func(s *Scheduler) {
		s.store = store
	}
}

// WithJournal sets the order journal.
func WithJournal(j Journal) Option {
	return func(s *Scheduler) {
		s.journal = j
	}
}

// WithPublisher sets the tick result receiver.
func WithPublisher(p Publisher) Option {
	return func(s *Scheduler) {
		s.publisher = p
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a Scheduler with an empty position.
func New(cfg Config, gw Gateway, decider Decider, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:     cfg,
		gw:      gw,
		decider: decider,
		logger:  slog.Default(),
		now:     time.Now,
		state:   position.New(cfg.Symbol),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("symbol", cfg.Symbol)
	return s
}

// Snapshot returns a copy of the current position state.
func (s *Scheduler) Snapshot() position.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

// Restore loads saved state from the store, if one is configured.
func (s *Scheduler) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	st, ok, err := s.store.Load(ctx, s.cfg.Symbol)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	s.logger.Info("position restored",
		"last_price_bought", st.LastPriceBought,
		"last_price_sold", st.LastPriceSold,
		"open_order_id", st.OpenOrderID,
	)
	return nil
}

// Run restores state and ticks until ctx is canceled. The first tick runs
// immediately; each later tick starts Interval after the previous one ended.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Restore(ctx); err != nil {
		s.logger.Warn("failed to restore position, starting empty", "err", err)
	}

	s.logger.Info("scheduler started",
		"interval", s.cfg.Interval,
		"minimum_trade_amount", s.cfg.MinimumTradeAmount,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-timer.C:
		}

		// A tick that has placed an order must finish polling it.
		s.Tick(context.WithoutCancel(ctx))

		if ctx.Err() != nil {
			s.logger.Info("scheduler stopped")
			return nil
		}
		timer.Reset(s.cfg.Interval)
	}
}

// Start runs the loop in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()

	return nil
}

// Stop cancels the loop and waits for the current tick to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
