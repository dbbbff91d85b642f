package database

import (
	"context"
	"fmt"
)

// Schema creates the trader tables. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS positions (
    symbol               TEXT PRIMARY KEY,
    last_price_bought    NUMERIC NOT NULL DEFAULT 0,
    last_quantity_bought NUMERIC NOT NULL DEFAULT 0,
    last_bought_at       TIMESTAMPTZ,
    last_price_sold      NUMERIC NOT NULL DEFAULT 0,
    last_quantity_sold   NUMERIC NOT NULL DEFAULT 0,
    last_sold_at         TIMESTAMPTZ,
    last_price_checked   NUMERIC NOT NULL DEFAULT 0,
    open_order_id        TEXT NOT NULL DEFAULT '',
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS order_journal (
    client_order_id TEXT PRIMARY KEY,
    order_id        TEXT NOT NULL DEFAULT '',
    symbol          TEXT NOT NULL,
    side            TEXT NOT NULL,
    type            TEXT NOT NULL,
    action          TEXT NOT NULL,
    quantity        NUMERIC NOT NULL,
    limit_price     NUMERIC NOT NULL DEFAULT 0,
    outcome         TEXT NOT NULL,
    reason          TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS order_journal_symbol_created_at
    ON order_journal (symbol, created_at DESC);
`

// EnsureSchema creates any missing tables.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
