// rhcheck verifies credentials and connectivity without placing orders.
// It prints the account, the trading pair, the best bid/ask, holdings and
// open orders for each symbol, plus the action the strategy would take now.
//
// Usage: go run ./cmd/rhcheck --config configs/trader.example.yaml
//
// With -watch it instead tails a running trader's event stream:
//
//	go run ./cmd/rhcheck -watch ws://localhost:9090/ws
//
// Required environment variables (or a .env file):
//
//	RH_API_KEY     - API key from the Robinhood crypto credentials page
//	RH_PRIVATE_KEY - base64 Ed25519 private key seed
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/rh-crypto-trader/internal/api"
	"github.com/rickgao/rh-crypto-trader/internal/auth"
	"github.com/rickgao/rh-crypto-trader/internal/config"
	"github.com/rickgao/rh-crypto-trader/internal/events"
	"github.com/rickgao/rh-crypto-trader/internal/position"
	"github.com/rickgao/rh-crypto-trader/internal/strategy"
	"github.com/rickgao/rh-crypto-trader/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file to load")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	watchURL := flag.String("watch", "", "tail tick events from a running trader at this ws:// URL")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	if *watchURL != "" {
		if err := watch(*watchURL, logger); err != nil {
			fail("watch", err)
		}
		return
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		logger.Error("failed to load env file", "err", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	creds, err := auth.LoadCredentials(cfg.API.APIKey, cfg.API.PrivateKey)
	if err != nil {
		logger.Error("failed to load credentials", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	client := api.NewClient(cfg.API.BaseURL, creds,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithUserAgent(version.UserAgent()),
	)

	fmt.Printf("public key: %s\n", creds.PublicKey())

	acct, err := client.GetAccount(ctx)
	if err != nil {
		fail("get account", err)
	}
	printJSON("account", acct)

	engine := strategy.NewEngine(cfg.Trading.StrategyParams())
	failed := false

	for _, symbol := range cfg.Trading.Symbols {
		fmt.Printf("\n== %s ==\n", symbol)
		if err := check(ctx, client, engine, symbol); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
	fmt.Println("\nok")
}

// check prints read-only market and account data for one symbol and the
// action the engine would take from an empty position.
func check(ctx context.Context, client *api.Client, engine *strategy.Engine, symbol string) error {
	pair, err := client.GetTradingPair(ctx, symbol)
	if err != nil {
		return fmt.Errorf("get trading pair: %w", err)
	}
	printJSON("trading pair", pair)

	quote, err := client.GetQuote(ctx, symbol)
	if err != nil {
		return fmt.Errorf("get quote: %w", err)
	}
	printJSON("quote", quote)

	holding, err := client.GetHolding(ctx, pair.AssetCode)
	if err != nil {
		return fmt.Errorf("get holding: %w", err)
	}
	printJSON("holding", holding)

	open, err := client.GetOpenOrders(ctx, symbol)
	if err != nil {
		return fmt.Errorf("get open orders: %w", err)
	}
	fmt.Printf("open orders: %d\n", len(open))
	for _, o := range open {
		fmt.Printf("  %s %s %s qty=%s state=%s\n", o.ID, o.Side, o.Type, o.Quantity, o.State)
	}

	action := engine.Decide(strategy.Inputs{
		State:      *position.New(symbol),
		Quote:      quote,
		Holding:    holding,
		OpenOrders: open,
		Pair:       pair,
	})
	fmt.Printf("would decide (empty position): %s\n", action)
	return nil
}

// watch prints tick events until interrupted or the stream ends.
func watch(url string, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sub, err := events.Subscribe(ctx, events.SubscriberConfig{URL: url}, logger)
	if err != nil {
		return err
	}
	defer sub.Close()

	fmt.Printf("watching %s\n", url)
	for {
		env, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var tick map[string]any
		if err := json.Unmarshal(env.Data, &tick); err != nil {
			fmt.Printf("%s: %s\n", env.Type, env.Data)
			continue
		}
		fmt.Printf("%s %v %v result=%v action=%v reason=%v outcome=%v bid=%v\n",
			tick["at"], env.Type, tick["symbol"], tick["result"], tick["action"],
			tick["reason"], tick["outcome"], tick["bid"])
	}
}

func printJSON(label string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%s: %+v\n", label, v)
		return
	}
	fmt.Printf("%s: %s\n", label, data)
}

func fail(op string, err error) {
	fmt.Fprintf(os.Stderr, "%s failed: %v\n", op, err)
	if api.IsTransport(err) {
		fmt.Fprintln(os.Stderr, "check RH_API_KEY, RH_PRIVATE_KEY and network access")
	}
	os.Exit(1)
}
