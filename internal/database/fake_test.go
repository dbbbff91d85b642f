package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// fakeDB records statements and serves canned rows.
type fakeDB struct {
	mu      sync.Mutex
	execs   []string
	args    [][]any
	batches []*pgx.Batch
	row     []any // values returned by QueryRow; nil means no rows
	seen    map[string]bool
	execErr error
}

func newFakeDB() *fakeDB {
	return &fakeDB{seen: map[string]bool{}}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{values: f.row}
}

// SendBatch treats the first argument of each query as a unique key.
func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b)

	tags := make([]pgconn.CommandTag, 0, len(b.QueuedQueries))
	for _, q := range b.QueuedQueries {
		key := fmt.Sprint(q.Arguments[0])
		if f.seen[key] {
			tags = append(tags, pgconn.NewCommandTag("INSERT 0 0"))
			continue
		}
		f.seen[key] = true
		tags = append(tags, pgconn.NewCommandTag("INSERT 0 1"))
	}
	return &fakeBatchResults{tags: tags, err: f.execErr}
}

func (f *fakeDB) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakeBatchResults struct {
	tags []pgconn.CommandTag
	i    int
	err  error
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	if r.i >= len(r.tags) {
		return pgconn.CommandTag{}, errors.New("no more results")
	}
	tag := r.tags[r.i]
	r.i++
	return tag, nil
}

func (r *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeBatchResults) QueryRow() pgx.Row        { return fakeRow{} }
func (r *fakeBatchResults) Close() error             { return nil }

type fakeRow struct {
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	if r.values == nil {
		return pgx.ErrNoRows
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *decimal.Decimal:
			*p = r.values[i].(decimal.Decimal)
		case *string:
			*p = r.values[i].(string)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case **time.Time:
			*p, _ = r.values[i].(*time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}
