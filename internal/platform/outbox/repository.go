package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medclinic/clinic/internal/platform/db"
	"github.com/medclinic/clinic/internal/platform/telemetry"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

// Record inserts evt using the transaction bound to ctx, capturing the
// caller's trace context so the relay can continue the trace.
func (r *Repository) Record(ctx context.Context, evt Event) error {
	traceparent, tracestate := telemetry.TraceContextStrings(ctx)
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		evt.ID, evt.AggregateType, evt.AggregateID, evt.EventType, []byte(evt.Payload), traceparent, tracestate)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// FetchUnpublished locks up to limit pending rows. Call inside a transaction.
func (r *Repository) FetchUnpublished(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox events: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rcd Record
		if err := rows.Scan(&rcd.ID, &rcd.EventID, &rcd.AggregateType, &rcd.AggregateID, &rcd.EventType,
			&rcd.Payload, &rcd.Traceparent, &rcd.Tracestate, &rcd.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		records = append(records, rcd)
	}
	return records, rows.Err()
}

func (r *Repository) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark outbox events published: %w", err)
	}
	return nil
}

// Pending counts unpublished events.
func (r *Repository) Pending(ctx context.Context) (int64, error) {
	var n int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT count(*) FROM outbox_events WHERE published_at IS NULL`).Scan(&n)
	return n, err
}
