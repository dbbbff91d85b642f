package config

import (
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rickgao/rh-crypto-trader/internal/scheduler"
	"github.com/rickgao/rh-crypto-trader/internal/strategy"
)

// Config is the root configuration for a trader process.
type Config struct {
	API      APIConfig     `yaml:"api"`
	Trading  TradingConfig `yaml:"trading"`
	Database DBConfig      `yaml:"database"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Events   EventsConfig  `yaml:"events"`
	Log      LogConfig     `yaml:"log"`
}

// APIConfig holds Robinhood API settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	PrivateKey string        `yaml:"private_key"` // base64 Ed25519 seed
	Timeout    time.Duration `yaml:"timeout"`
}

// TradingConfig holds the strategy and scheduler settings shared by every symbol.
type TradingConfig struct {
	Symbols            []string        `yaml:"symbols"`
	Interval           time.Duration   `yaml:"interval"`
	MinimumTradeAmount decimal.Decimal `yaml:"minimum_trade_amount"`
	EntryAmount        decimal.Decimal `yaml:"entry_amount"`
	BuyDipThreshold    decimal.Decimal `yaml:"buy_dip_threshold"`
	SellGainThreshold  decimal.Decimal `yaml:"sell_gain_threshold"`
	RepriceThreshold   decimal.Decimal `yaml:"reprice_threshold"`
	UndercutMargin     decimal.Decimal `yaml:"undercut_margin"`
	FillPollAttempts   int             `yaml:"fill_poll_attempts"`
	FillPollInterval   time.Duration   `yaml:"fill_poll_interval"`
	SubmitRetries      int             `yaml:"submit_retries"`
	RequireCostBasis   bool            `yaml:"require_cost_basis"`

	// keys present in the YAML, so an explicit 0 is not replaced by a default
	explicit map[string]bool
}

// UnmarshalYAML decodes the section and remembers which keys were given.
func (t *TradingConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain TradingConfig
	if err := node.Decode((*plain)(t)); err != nil {
		return err
	}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	t.explicit = make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		t.explicit[node.Content[i].Value] = true
	}
	return nil
}

// isSet reports whether key was present in the loaded YAML.
func (t *TradingConfig) isSet(key string) bool {
	return t.explicit[key]
}

// DBConfig holds the optional PostgreSQL connection.
type DBConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds the HTTP server settings for health and metrics.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// EventsConfig holds the websocket tick stream settings.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// StrategyParams returns the decision engine thresholds.
func (t TradingConfig) StrategyParams() strategy.Params {
	return strategy.Params{
		EntryAmount:       t.EntryAmount,
		BuyDipThreshold:   t.BuyDipThreshold,
		SellGainThreshold: t.SellGainThreshold,
		RepriceThreshold:  t.RepriceThreshold,
		UndercutMargin:    t.UndercutMargin,
		RequireCostBasis:  t.RequireCostBasis,
	}
}

// SchedulerConfig returns the scheduler settings for one symbol.
func (t TradingConfig) SchedulerConfig(symbol string) scheduler.Config {
	return scheduler.Config{
		Symbol:             symbol,
		Interval:           t.Interval,
		MinimumTradeAmount: t.MinimumTradeAmount,
		FillPollAttempts:   t.FillPollAttempts,
		FillPollInterval:   t.FillPollInterval,
		SubmitRetries:      t.SubmitRetries,
	}
}
