package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/rh-crypto-trader/internal/api"
	"github.com/rickgao/rh-crypto-trader/internal/auth"
	"github.com/rickgao/rh-crypto-trader/internal/config"
	"github.com/rickgao/rh-crypto-trader/internal/database"
	"github.com/rickgao/rh-crypto-trader/internal/events"
	"github.com/rickgao/rh-crypto-trader/internal/metrics"
	"github.com/rickgao/rh-crypto-trader/internal/position"
	"github.com/rickgao/rh-crypto-trader/internal/scheduler"
	"github.com/rickgao/rh-crypto-trader/internal/strategy"
	"github.com/rickgao/rh-crypto-trader/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional; env-only when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading config")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting trader",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"symbols", cfg.Trading.Symbols,
		"interval", cfg.Trading.Interval,
	)

	creds, err := auth.LoadCredentials(cfg.API.APIKey, cfg.API.PrivateKey)
	if err != nil {
		logger.Error("failed to load credentials", "err", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	client := api.NewClient(
		cfg.API.BaseURL,
		creds,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithUserAgent(version.UserAgent()),
	)

	// Persistence is optional; without a database positions live in memory.
	var (
		store   position.Store = position.NewMemoryStore()
		journal *database.Journal
		pinger  func(context.Context) error
	)
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to create schema", "err", err)
			os.Exit(1)
		}

		store = database.NewPositionStore(pool)
		journal = database.NewJournal(database.DefaultJournalConfig(), pool, logger)
		journal.Start(ctx)
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			journal.Stop(stopCtx)
		}()
		pinger = pool.Ping
		logger.Info("database connected")
	}

	m := metrics.New()
	publishers := fanout{m}

	var hub *events.Hub
	if cfg.Events.Enabled {
		hub = events.NewHub(events.DefaultHubConfig(), logger)
		defer hub.Close()
		publishers = append(publishers, hub)
	}

	engine := strategy.NewEngine(cfg.Trading.StrategyParams())

	schedulers := make([]*scheduler.Scheduler, 0, len(cfg.Trading.Symbols))
	for _, symbol := range cfg.Trading.Symbols {
		opts := []scheduler.Option{
			scheduler.WithLogger(logger),
			scheduler.WithStore(store),
			scheduler.WithPublisher(publishers),
		}
		if journal != nil {
			opts = append(opts, scheduler.WithJournal(journal))
		}
		schedulers = append(schedulers,
			scheduler.New(cfg.Trading.SchedulerConfig(symbol), client, engine, opts...))
	}

	mux := http.NewServeMux()
	mux.Handle("/health", healthHandler(schedulers, pinger))
	mux.Handle(cfg.Metrics.Path, m.Handler())
	if hub != nil {
		mux.Handle(cfg.Events.Path, hub)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.Metrics.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	for _, s := range schedulers {
		s := s
		g.Go(func() error {
			return s.Run(gctx)
		})
	}

	logger.Info("trader running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	if err := g.Wait(); err != nil {
		logger.Error("trader stopped with error", "err", err)
		os.Exit(1)
	}

	logger.Info("trader stopped")
}

// newLogger builds the process logger from the log settings.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// fanout publishes every tick result to each receiver in order.
type fanout []scheduler.Publisher

func (f fanout) Publish(res scheduler.TickResult) {
	for _, p := range f {
		p.Publish(res)
	}
}

// healthHandler reports database reachability and each symbol's position.
func healthHandler(schedulers []*scheduler.Scheduler, ping func(context.Context) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Version    string         `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.String(),
			Components: make(map[string]any),
		}

		if ping != nil {
			if err := ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		positions := make(map[string]any, len(schedulers))
		for _, s := range schedulers {
			st := s.Snapshot()
			positions[st.Symbol] = map[string]any{
				"last_price_bought":  st.LastPriceBought,
				"last_price_sold":    st.LastPriceSold,
				"last_price_checked": st.LastPriceChecked,
				"open_order_id":      st.OpenOrderID,
			}
		}
		health.Components["positions"] = positions

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})
}
