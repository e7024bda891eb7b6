// Package hoplog persists internal/logging.HopLog records to Postgres
// asynchronously, for diagnostic history across hops. This is explicitly
// NOT the interpreter's cross-invocation state (spec.md's Non-goal): a
// HopLog row records the observable outcome of a finished hop, never the
// data_cache/met_folds carried mid-hop, and reading it back never feeds
// into a future hop's execution.
//
// Grounded in the teacher's internal/executor/invocation_log_batcher.go
// (bounded channel, ticker-or-batch-size flush, exponential-backoff
// retry) and internal/store/postgres.go (pgxpool.New, Ping-on-connect,
// ensureSchema).
package hoplog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oriys/airvm/internal/logging"
)

const (
	defaultBatchSize     = 100
	defaultBufferSize    = 1000
	defaultFlushInterval = 500 * time.Millisecond
	defaultTimeout       = 5 * time.Second
	defaultMaxRetries    = 3
	defaultRetryInterval = 100 * time.Millisecond
)

// Config configures a Batcher's flush cadence and retry behavior.
type Config struct {
	BatchSize     int
	BufferSize    int
	FlushInterval time.Duration
	Timeout       time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	return c
}

// Store persists batches of hop logs to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore opens a pgx pool against dsn and ensures the hop_logs table
// exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	s := &Store{pool: pool}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS hop_logs (
		request_id       TEXT PRIMARY KEY,
		timestamp        TIMESTAMPTZ NOT NULL,
		trace_id         TEXT,
		span_id          TEXT,
		script           TEXT NOT NULL,
		current_peer_id  TEXT NOT NULL,
		init_peer_id     TEXT NOT NULL,
		duration_ms      BIGINT NOT NULL,
		success          BOOLEAN NOT NULL,
		ret_code         INT NOT NULL,
		error_message    TEXT,
		calls_executed   INT NOT NULL,
		calls_deferred   INT NOT NULL,
		next_peer_count  INT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("ensure hop_logs schema: %w", err)
	}
	return nil
}

// SaveBatch inserts every record in one round trip via a batched pipeline.
func (s *Store) SaveBatch(ctx context.Context, records []logging.HopLog) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgxBatch{}
	for _, r := range records {
		batch.queue(r)
	}
	return batch.send(ctx, s.pool)
}

// Batcher accumulates HopLog records into a bounded channel and flushes
// them to a Store on a ticker or batch-size threshold, retrying failed
// flushes with exponential backoff, mirroring the teacher's
// invocationLogBatcher almost line-for-line.
type Batcher struct {
	store  *Store
	logger *slog.Logger
	logs   chan logging.HopLog
	cfg    Config
	done   chan struct{}
}

// NewBatcher starts a background flush loop persisting to store.
func NewBatcher(store *Store, cfg Config) *Batcher {
	cfg = cfg.withDefaults()
	b := &Batcher{
		store:  store,
		logger: logging.Op(),
		logs:   make(chan logging.HopLog, cfg.BufferSize),
		cfg:    cfg,
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

// Enqueue submits a hop log for eventual persistence, dropping it with a
// warning if the buffer is full rather than blocking the engine.
func (b *Batcher) Enqueue(rec logging.HopLog) {
	select {
	case b.logs <- rec:
	default:
		b.logger.Warn("dropping hop log due to full buffer", "request_id", rec.RequestID)
	}
}

// Shutdown closes the input channel and waits up to timeout for the final
// flush to complete.
func (b *Batcher) Shutdown(timeout time.Duration) {
	close(b.logs)
	select {
	case <-b.done:
	case <-time.After(timeout):
		b.logger.Warn("timeout waiting for hop log batcher shutdown", "timeout", timeout)
	}
}

func (b *Batcher) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]logging.HopLog, 0, b.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		var lastErr error
		for attempt := 0; attempt < b.cfg.MaxRetries; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Timeout)
			lastErr = b.store.SaveBatch(ctx, batch)
			cancel()
			if lastErr == nil {
				break
			}
			b.logger.Warn("failed to persist hop logs, retrying",
				"error", lastErr, "count", len(batch), "attempt", attempt+1)
			time.Sleep(time.Duration(1<<uint(attempt)) * b.cfg.RetryInterval)
		}
		if lastErr != nil {
			b.logger.Error("permanently failed to persist hop logs after retries",
				"error", lastErr, "count", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-b.logs:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= b.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
