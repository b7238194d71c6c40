package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docelar/backoffice/pkg/outbox"
)

// OutboxStore drives the relay lease protocol. FOR UPDATE SKIP LOCKED
// lets several relay instances drain the table without stepping on each
// other; lease_until fences crashed relays.
type OutboxStore struct {
	pool *pgxpool.Pool
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{pool: pool}
}

func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	rows, err := s.pool.Query(ctx, `UPDATE outbox SET
			status='in_progress', relay_id=$1, lease_until=now()+make_interval(secs => $3)
		WHERE id IN (
			SELECT id FROM outbox
			WHERE status='pending'
			   OR (status='in_progress' AND lease_until < now())
			ORDER BY id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, aggregate_type, aggregate_id, type, payload, headers, traceparent, created_at, status, relay_id, retry_count, last_error`,
		relayID, batchSize, lease.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var e outbox.Event
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.Type, &e.Payload,
			&e.Headers, &e.Traceparent, &e.CreatedAt, &e.Status, &e.RelayID, &e.RetryCount, &e.LastError); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent', lease_until=NULL WHERE id = ANY($1)`, ids)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET
			status='failed', retry_count=retry_count+1, last_error=$2, lease_until=NULL
		WHERE id=$1`, id, errMsg)
	return err
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET lease_until=now()+make_interval(secs => $3)
		WHERE relay_id=$1 AND id = ANY($2) AND status='in_progress'`, relayID, ids, lease.Seconds())
	return err
}
