package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/rh-crypto-trader/internal/position"
)

// PositionStore checkpoints position.State in the positions table.
type PositionStore struct {
	db DBTX
}

// NewPositionStore creates a PositionStore.
func NewPositionStore(db DBTX) *PositionStore {
	return &PositionStore{db: db}
}

const selectPosition = `
	SELECT last_price_bought, last_quantity_bought, last_bought_at,
	       last_price_sold, last_quantity_sold, last_sold_at,
	       last_price_checked, open_order_id, updated_at
	FROM positions
	WHERE symbol = $1
`

const upsertPosition = `
	INSERT INTO positions (symbol, last_price_bought, last_quantity_bought, last_bought_at,
	                       last_price_sold, last_quantity_sold, last_sold_at,
	                       last_price_checked, open_order_id, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (symbol) DO UPDATE SET
		last_price_bought    = EXCLUDED.last_price_bought,
		last_quantity_bought = EXCLUDED.last_quantity_bought,
		last_bought_at       = EXCLUDED.last_bought_at,
		last_price_sold      = EXCLUDED.last_price_sold,
		last_quantity_sold   = EXCLUDED.last_quantity_sold,
		last_sold_at         = EXCLUDED.last_sold_at,
		last_price_checked   = EXCLUDED.last_price_checked,
		open_order_id        = EXCLUDED.open_order_id,
		updated_at           = EXCLUDED.updated_at
`

// Load implements position.Store.
func (s *PositionStore) Load(ctx context.Context, symbol string) (*position.State, bool, error) {
	st := position.New(symbol)
	var boughtAt, soldAt *time.Time

	err := s.db.QueryRow(ctx, selectPosition, symbol).Scan(
		&st.LastPriceBought, &st.LastQuantityBought, &boughtAt,
		&st.LastPriceSold, &st.LastQuantitySold, &soldAt,
		&st.LastPriceChecked, &st.OpenOrderID, &st.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load position %s: %w", symbol, err)
	}

	if boughtAt != nil {
		st.LastBoughtAt = boughtAt.UTC()
	}
	if soldAt != nil {
		st.LastSoldAt = soldAt.UTC()
	}
	return st, true, nil
}

// Save implements position.Store.
func (s *PositionStore) Save(ctx context.Context, st *position.State) error {
	updated := st.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx, upsertPosition,
		st.Symbol,
		st.LastPriceBought, st.LastQuantityBought, nullTime(st.LastBoughtAt),
		st.LastPriceSold, st.LastQuantitySold, nullTime(st.LastSoldAt),
		st.LastPriceChecked, st.OpenOrderID, updated,
	)
	if err != nil {
		return fmt.Errorf("save position %s: %w", st.Symbol, err)
	}
	return nil
}

// nullTime maps the zero time to NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
