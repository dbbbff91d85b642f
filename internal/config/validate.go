package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.API.APIKey == "" {
		return errors.New("api.api_key is required")
	}
	if c.API.PrivateKey == "" {
		return errors.New("api.private_key is required")
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be > 0")
	}

	if err := c.Trading.validate(); err != nil {
		return err
	}

	if c.Database.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}
	if c.Events.Enabled && !strings.HasPrefix(c.Events.Path, "/") {
		return fmt.Errorf("events.path must start with /, got %q", c.Events.Path)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

var one = decimal.NewFromInt(1)

func (t *TradingConfig) validate() error {
	if len(t.Symbols) == 0 {
		return errors.New("trading.symbols is required")
	}
	seen := make(map[string]bool, len(t.Symbols))
	for _, s := range t.Symbols {
		base, quote, ok := strings.Cut(s, "-")
		if !ok || base == "" || quote == "" {
			return fmt.Errorf("trading.symbols: %q is not a BASE-QUOTE pair", s)
		}
		if seen[s] {
			return fmt.Errorf("trading.symbols: %q listed twice", s)
		}
		seen[s] = true
	}

	if t.Interval <= 0 {
		return errors.New("trading.interval must be > 0")
	}
	if t.MinimumTradeAmount.IsNegative() {
		return errors.New("trading.minimum_trade_amount must be >= 0")
	}
	if !t.EntryAmount.IsPositive() {
		return errors.New("trading.entry_amount must be > 0")
	}

	fractions := []struct {
		name  string
		value decimal.Decimal
	}{
		{"trading.buy_dip_threshold", t.BuyDipThreshold},
		{"trading.sell_gain_threshold", t.SellGainThreshold},
		{"trading.reprice_threshold", t.RepriceThreshold},
		{"trading.undercut_margin", t.UndercutMargin},
	}
	for _, f := range fractions {
		if f.value.IsNegative() || f.value.GreaterThanOrEqual(one) {
			return fmt.Errorf("%s must be in [0, 1), got %s", f.name, f.value)
		}
	}

	if t.FillPollAttempts < 0 {
		return errors.New("trading.fill_poll_attempts must be >= 0")
	}
	if t.FillPollInterval < 0 {
		return errors.New("trading.fill_poll_interval must be >= 0")
	}
	if t.SubmitRetries < 0 {
		return errors.New("trading.submit_retries must be >= 0")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
