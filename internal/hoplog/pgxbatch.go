package hoplog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oriys/airvm/internal/logging"
)

const insertHopLogSQL = `INSERT INTO hop_logs (
	request_id, timestamp, trace_id, span_id, script, current_peer_id,
	init_peer_id, duration_ms, success, ret_code, error_message,
	calls_executed, calls_deferred, next_peer_count
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (request_id) DO NOTHING`

// pgxBatch wraps pgx.Batch to queue one INSERT per HopLog record and send
// them all in a single round trip, the same batched-pipeline pattern the
// teacher's store package uses for bulk writes.
type pgxBatch struct {
	batch pgx.Batch
}

func (b *pgxBatch) queue(r logging.HopLog) {
	b.batch.Queue(insertHopLogSQL,
		r.RequestID, r.Timestamp, r.TraceID, r.SpanID, r.Script, r.CurrentPeerID,
		r.InitPeerID, r.DurationMs, r.Success, r.RetCode, r.ErrorMessage,
		r.CallsExecuted, r.CallsDeferred, r.NextPeerCount,
	)
}

func (b *pgxBatch) send(ctx context.Context, pool *pgxpool.Pool) error {
	br := pool.SendBatch(ctx, &b.batch)
	defer br.Close()
	for i := 0; i < b.batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert hop log %d/%d: %w", i+1, b.batch.Len(), err)
		}
	}
	return nil
}
