package db

import (
	"context"
	"encoding/json"

	"backoffice/internal/types"
)

// EventRepository provides data access for the events and event_pushes
// tables. Events are the work queue drained by the event-send and
// event-retry jobs; event_pushes records one row per (event, channel) pair
// so channel outcomes are tracked independently.
type EventRepository struct {
	db DBTX
}

// NewEventRepository creates a new EventRepository backed by the given
// database connection (pool or transaction).
func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, tenant_id, code, subject, content, params,
	 status, attempts, last_error, created_at, updated_at`

// ListPending returns up to limit first-attempt pending events, oldest
// first. Items that have already failed at least once are drained by the
// retry job instead (ListRetryable).
func (r *EventRepository) ListPending(ctx context.Context, limit int) ([]types.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE status = 'pending' AND attempts = 0
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list pending events", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRetryable returns up to limit pending events that have failed at
// least once but have not exhausted the attempt cap, oldest first.
func (r *EventRepository) ListRetryable(ctx context.Context, limit int, maxAttempts int) ([]types.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE status = 'pending' AND attempts > 0 AND attempts < $2
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
		maxAttempts,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list retryable events", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// MarkDelivered transitions an event to the terminal delivered status.
// Called as the last action of processing, after all channel sends returned.
func (r *EventRepository) MarkDelivered(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events SET status = 'delivered', last_error = '', updated_at = NOW()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark event delivered", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "event not found", nil)
	}
	return nil
}

// MarkSkipped consumes an event that had nothing to send (no channel
// binding, no recipients), recording the reason so skips stay queryable
// and distinguishable from deliveries.
func (r *EventRepository) MarkSkipped(ctx context.Context, id int64, reason string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events SET status = 'skipped', last_error = $2, updated_at = NOW()
		 WHERE id = $1`,
		id,
		types.CapError(reason),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark event skipped", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "event not found", nil)
	}
	return nil
}

// RecordFailure increments the attempt count, stores the capped error
// message, and transitions to failed when terminal is true (attempt cap
// reached), otherwise leaves the event pending for the retry job.
func (r *EventRepository) RecordFailure(ctx context.Context, id int64, msg string, terminal bool) error {
	status := types.WorkPending
	if terminal {
		status = types.WorkFailed
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE events SET attempts = attempts + 1, last_error = $2, status = $3, updated_at = NOW()
		 WHERE id = $1`,
		id,
		types.CapError(msg),
		string(status),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record event failure", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "event not found", nil)
	}
	return nil
}

// MarkBatchFailed records a loop-level failure against every event in the
// batch: attempts are incremented, the shared error message is stored, and
// events at the attempt cap transition to failed.
func (r *EventRepository) MarkBatchFailed(ctx context.Context, ids []int64, msg string, maxAttempts int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE events SET
			attempts = attempts + 1,
			last_error = $2,
			status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END,
			updated_at = NOW()
		 WHERE id = ANY($1)`,
		ids,
		types.CapError(msg),
		maxAttempts,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark event batch failed", err)
	}
	return nil
}

// RecordPush upserts the per-channel outcome row for an event. The
// deterministic (event_id, notice_type) key makes re-processing after a
// crash idempotent.
func (r *EventRepository) RecordPush(ctx context.Context, push *types.EventPush) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO event_pushes (event_id, tenant_id, notice_type, status, attempts, last_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (event_id, notice_type) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = event_pushes.attempts + 1,
			last_error = EXCLUDED.last_error`,
		push.EventID,
		push.TenantID,
		string(push.NoticeType),
		string(push.Status),
		push.Attempts,
		types.CapError(push.LastError),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record event push", err)
	}
	return nil
}

// scanEvents reads event rows into domain structs. Params are stored as
// JSONB and decoded into the map; a NULL params column yields a nil map.
func scanEvents(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]types.Event, error) {
	var events []types.Event
	for rows.Next() {
		var (
			ev        types.Event
			paramsRaw []byte
			lastError *string
		)
		if err := rows.Scan(
			&ev.ID, &ev.TenantID, &ev.Code, &ev.Subject, &ev.Content, &paramsRaw,
			&ev.Status, &ev.Attempts, &lastError, &ev.CreatedAt, &ev.UpdatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan event row", err)
		}
		if len(paramsRaw) > 0 {
			if err := json.Unmarshal(paramsRaw, &ev.Params); err != nil {
				return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode event params", err)
			}
		}
		if lastError != nil {
			ev.LastError = *lastError
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate event rows", err)
	}
	return events, nil
}
