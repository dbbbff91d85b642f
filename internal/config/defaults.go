package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default values for optional configuration fields.
const (
	DefaultBaseURL          = "https://trading.robinhood.com"
	DefaultAPITimeout       = 10 * time.Second
	DefaultSymbol           = "BTC-USD"
	DefaultInterval         = 1200 * time.Second
	DefaultFillPollAttempts = 5
	DefaultFillPollInterval = 2 * time.Second
	DefaultSubmitRetries    = 1
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
	DefaultEventsPath       = "/ws"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// Default trading amounts and thresholds.
var (
	DefaultMinimumTradeAmount = decimal.NewFromInt(10)
	DefaultEntryAmount        = decimal.NewFromInt(10)
	DefaultBuyDipThreshold    = decimal.RequireFromString("0.03")
	DefaultSellGainThreshold  = decimal.RequireFromString("0.03")
	DefaultRepriceThreshold   = decimal.RequireFromString("0.01")
	DefaultUndercutMargin     = decimal.RequireFromString("0.005")
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}

	// Trading defaults
	t := &c.Trading
	if len(t.Symbols) == 0 {
		t.Symbols = []string{DefaultSymbol}
	}
	if t.Interval == 0 {
		t.Interval = DefaultInterval
	}
	// Zero is a usable value for these, so only an omitted key gets the default.
	t.defaultDecimal("minimum_trade_amount", &t.MinimumTradeAmount, DefaultMinimumTradeAmount)
	t.defaultDecimal("buy_dip_threshold", &t.BuyDipThreshold, DefaultBuyDipThreshold)
	t.defaultDecimal("sell_gain_threshold", &t.SellGainThreshold, DefaultSellGainThreshold)
	t.defaultDecimal("reprice_threshold", &t.RepriceThreshold, DefaultRepriceThreshold)
	t.defaultDecimal("undercut_margin", &t.UndercutMargin, DefaultUndercutMargin)
	if t.FillPollAttempts == 0 && !t.isSet("fill_poll_attempts") {
		t.FillPollAttempts = DefaultFillPollAttempts
	}
	if t.FillPollInterval == 0 && !t.isSet("fill_poll_interval") {
		t.FillPollInterval = DefaultFillPollInterval
	}
	if t.SubmitRetries == 0 && !t.isSet("submit_retries") {
		t.SubmitRetries = DefaultSubmitRetries
	}

	// entry_amount must be positive, so zero always means unset.
	if t.EntryAmount.IsZero() {
		t.EntryAmount = DefaultEntryAmount
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Events.Path == "" {
		c.Events.Path = DefaultEventsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func (t *TradingConfig) defaultDecimal(key string, d *decimal.Decimal, def decimal.Decimal) {
	if d.IsZero() && !t.isSet(key) {
		*d = def
	}
}
