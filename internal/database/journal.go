package database

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/rh-crypto-trader/internal/model"
)

// JournalConfig holds journal batching settings.
type JournalConfig struct {
	BatchSize     int           // flush once this many records are pending (default: 50)
	FlushInterval time.Duration // flush pending records at least this often (default: 1s)
}

// DefaultJournalConfig returns sensible defaults.
func DefaultJournalConfig() JournalConfig {
	return JournalConfig{
		BatchSize:     50,
		FlushInterval: time.Second,
	}
}

// JournalStats counts journal writes.
type JournalStats struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
}

// Journal buffers order records and writes them to order_journal in batches.
// A client_order_id already present is skipped, so resubmissions with the
// same id are recorded once.
type Journal struct {
	cfg    JournalConfig
	db     DBTX
	logger *slog.Logger

	pending []model.OrderRecord
	mu      sync.Mutex
	stats   JournalStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJournal creates a Journal.
func NewJournal(cfg JournalConfig, db DBTX, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Journal{
		cfg:     cfg,
		db:      db,
		logger:  logger,
		pending: make([]model.OrderRecord, 0, cfg.BatchSize),
		ctx:     context.Background(),
	}
}

// Start begins the periodic flush loop.
func (j *Journal) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go j.flushLoop()

	j.logger.Info("order journal started",
		"batch_size", j.cfg.BatchSize,
		"flush_interval", j.cfg.FlushInterval,
	)
	return nil
}

// Stop ends the flush loop and writes whatever is pending.
func (j *Journal) Stop(ctx context.Context) error {
	if j.cancel != nil {
		j.cancel()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		j.logger.Warn("order journal stop timed out")
	}

	// Final flush on the caller's context; the loop's context is canceled.
	j.flush(ctx)
	j.logger.Info("order journal stopped")
	return nil
}

// Record queues rec, flushing immediately when the batch is full.
func (j *Journal) Record(ctx context.Context, rec model.OrderRecord) error {
	j.mu.Lock()
	j.pending = append(j.pending, rec)
	full := len(j.pending) >= j.cfg.BatchSize
	j.mu.Unlock()

	if full {
		j.flush(ctx)
	}
	return nil
}

// Stats returns write counters.
func (j *Journal) Stats() JournalStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

func (j *Journal) flushLoop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.flush(j.ctx)
		}
	}
}

// flush writes the pending records.
func (j *Journal) flush(ctx context.Context) {
	j.mu.Lock()
	if len(j.pending) == 0 {
		j.mu.Unlock()
		return
	}
	batch := j.pending
	j.pending = make([]model.OrderRecord, 0, j.cfg.BatchSize)
	j.mu.Unlock()

	start := time.Now()
	conflicts, err := j.batchInsert(ctx, batch)
	if err != nil {
		j.logger.Error("journal insert failed", "err", err, "count", len(batch))
		j.mu.Lock()
		j.stats.Errors++
		j.mu.Unlock()
		return
	}

	j.mu.Lock()
	j.stats.Inserts += int64(len(batch) - conflicts)
	j.stats.Conflicts += int64(conflicts)
	j.stats.Flushes++
	j.mu.Unlock()

	j.logger.Debug("flushed order journal",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts records using pgx.Batch with ON CONFLICT DO NOTHING.
func (j *Journal) batchInsert(ctx context.Context, recs []model.OrderRecord) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range recs {
		batch.Queue(`
			INSERT INTO order_journal (client_order_id, order_id, symbol, side, type, action,
			                           quantity, limit_price, outcome, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (client_order_id) DO NOTHING
		`, r.ClientOrderID, r.OrderID, r.Symbol, string(r.Side), string(r.Type), r.Action,
			r.Quantity, r.LimitPrice, r.Outcome, r.Reason, r.CreatedAt)
	}

	results := j.db.SendBatch(ctx, batch)
	defer results.Close()

	for range recs {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
