package db

import (
	"context"

	"backoffice/internal/types"
)

// EmailRepository provides data access for the emails work queue.
type EmailRepository struct {
	db DBTX
}

// NewEmailRepository creates a new EmailRepository backed by the given
// database connection (pool or transaction).
func NewEmailRepository(db DBTX) *EmailRepository {
	return &EmailRepository{db: db}
}

// ListPending returns up to limit never-attempted pending emails, oldest
// first. Emails that already failed once stay pending but are excluded
// here; ListRetryable picks them up on the retry schedule, so a failing
// email is not re-offered within the same drain run.
func (r *EmailRepository) ListPending(ctx context.Context, limit int) ([]types.Email, error) {
	return r.list(ctx,
		`SELECT id, tenant_id, event_id, subject, body, html, recipients,
			status, attempts, last_error, created_at
		 FROM emails
		 WHERE status = 'pending' AND attempts = 0
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
}

// ListRetryable returns up to limit pending emails that failed at least
// once but have not exhausted the attempt cap, oldest first.
func (r *EmailRepository) ListRetryable(ctx context.Context, limit int, maxAttempts int) ([]types.Email, error) {
	return r.list(ctx,
		`SELECT id, tenant_id, event_id, subject, body, html, recipients,
			status, attempts, last_error, created_at
		 FROM emails
		 WHERE status = 'pending' AND attempts > 0 AND attempts < $2
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
		maxAttempts,
	)
}

func (r *EmailRepository) list(ctx context.Context, sql string, args ...any) ([]types.Email, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list emails", err)
	}
	defer rows.Close()

	var emails []types.Email
	for rows.Next() {
		var (
			e         types.Email
			lastError *string
		)
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.EventID, &e.Subject, &e.Body, &e.HTML, &e.To,
			&e.Status, &e.Attempts, &lastError, &e.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan email row", err)
		}
		if lastError != nil {
			e.LastError = *lastError
		}
		emails = append(emails, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate email rows", err)
	}
	return emails, nil
}

// Create inserts a pending email row, typically from the event fan-out.
func (r *EmailRepository) Create(ctx context.Context, e *types.Email) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO emails (tenant_id, event_id, subject, body, html, recipients, status, attempts, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 'pending', 0, NOW())
		 RETURNING id, created_at`,
		e.TenantID,
		e.EventID,
		e.Subject,
		e.Body,
		e.HTML,
		e.To,
	)
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create email", err)
	}
	e.Status = types.WorkPending
	return nil
}

// MarkDelivered transitions an email to the terminal delivered status.
func (r *EmailRepository) MarkDelivered(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE emails SET status = 'delivered', last_error = '' WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark email delivered", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "email not found", nil)
	}
	return nil
}

// MarkSkipped consumes an email that had nothing to send, recording the
// reason distinctly from a delivery.
func (r *EmailRepository) MarkSkipped(ctx context.Context, id int64, reason string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE emails SET status = 'skipped', last_error = $2 WHERE id = $1`,
		id,
		types.CapError(reason),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark email skipped", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "email not found", nil)
	}
	return nil
}

// RecordFailure increments attempts, stores the capped error message, and
// transitions to failed when terminal is true. When the email originated
// from an event, terminal failure also fails the parent event so it is not
// retried indefinitely by a different job.
func (r *EmailRepository) RecordFailure(ctx context.Context, id int64, msg string, terminal bool) error {
	status := types.WorkPending
	if terminal {
		status = types.WorkFailed
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE emails SET attempts = attempts + 1, last_error = $2, status = $3 WHERE id = $1`,
		id,
		types.CapError(msg),
		string(status),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record email failure", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "email not found", nil)
	}

	if terminal {
		// Propagate to the originating event, if any.
		_, err = r.db.Exec(ctx,
			`UPDATE events SET status = 'failed', last_error = $2, updated_at = NOW()
			 WHERE id = (SELECT event_id FROM emails WHERE id = $1) AND status <> 'delivered'`,
			id,
			types.CapError(msg),
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to propagate email failure to event", err)
		}
	}
	return nil
}

// MarkBatchFailed records a loop-level failure against every email in the
// batch with a shared error message.
func (r *EmailRepository) MarkBatchFailed(ctx context.Context, ids []int64, msg string, maxAttempts int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE emails SET
			attempts = attempts + 1,
			last_error = $2,
			status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END
		 WHERE id = ANY($1)`,
		ids,
		types.CapError(msg),
		maxAttempts,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark email batch failed", err)
	}
	return nil
}

// InsiteRepository provides data access for the insite_messages work queue.
type InsiteRepository struct {
	db DBTX
}

// NewInsiteRepository creates a new InsiteRepository backed by the given
// database connection (pool or transaction).
func NewInsiteRepository(db DBTX) *InsiteRepository {
	return &InsiteRepository{db: db}
}

// ListPending returns up to limit never-attempted pending in-site
// messages, oldest first. Previously failed messages are served by
// ListRetryable on the retry schedule.
func (r *InsiteRepository) ListPending(ctx context.Context, limit int) ([]types.InsiteMessage, error) {
	return r.list(ctx,
		`SELECT id, tenant_id, event_id, title, content, receiver_ids, urgent,
			status, attempts, last_error, created_at
		 FROM insite_messages
		 WHERE status = 'pending' AND attempts = 0
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
}

// ListRetryable returns up to limit pending in-site messages that failed
// at least once but have not exhausted the attempt cap, oldest first.
func (r *InsiteRepository) ListRetryable(ctx context.Context, limit int, maxAttempts int) ([]types.InsiteMessage, error) {
	return r.list(ctx,
		`SELECT id, tenant_id, event_id, title, content, receiver_ids, urgent,
			status, attempts, last_error, created_at
		 FROM insite_messages
		 WHERE status = 'pending' AND attempts > 0 AND attempts < $2
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
		maxAttempts,
	)
}

func (r *InsiteRepository) list(ctx context.Context, sql string, args ...any) ([]types.InsiteMessage, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list insite messages", err)
	}
	defer rows.Close()

	var msgs []types.InsiteMessage
	for rows.Next() {
		var (
			m         types.InsiteMessage
			lastError *string
		)
		if err := rows.Scan(
			&m.ID, &m.TenantID, &m.EventID, &m.Title, &m.Content, &m.ReceiverIDs, &m.Urgent,
			&m.Status, &m.Attempts, &lastError, &m.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan insite row", err)
		}
		if lastError != nil {
			m.LastError = *lastError
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate insite rows", err)
	}
	return msgs, nil
}

// Create inserts a pending in-site message row.
func (r *InsiteRepository) Create(ctx context.Context, m *types.InsiteMessage) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO insite_messages (tenant_id, event_id, title, content, receiver_ids, urgent, status, attempts, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 'pending', 0, NOW())
		 RETURNING id, created_at`,
		m.TenantID,
		m.EventID,
		m.Title,
		m.Content,
		m.ReceiverIDs,
		m.Urgent,
	)
	if err := row.Scan(&m.ID, &m.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create insite message", err)
	}
	m.Status = types.WorkPending
	return nil
}

// MarkDelivered transitions an in-site message to delivered.
func (r *InsiteRepository) MarkDelivered(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE insite_messages SET status = 'delivered', last_error = '' WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark insite message delivered", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "insite message not found", nil)
	}
	return nil
}

// MarkSkipped consumes an in-site message that had nothing to send,
// recording the reason so the skip is queryable afterwards.
func (r *InsiteRepository) MarkSkipped(ctx context.Context, id int64, reason string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE insite_messages SET status = 'skipped', last_error = $2 WHERE id = $1`,
		id,
		types.CapError(reason),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark insite message skipped", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "insite message not found", nil)
	}
	return nil
}

// RecordFailure increments attempts and transitions to failed when terminal
// is true, propagating terminal failures to the originating event.
func (r *InsiteRepository) RecordFailure(ctx context.Context, id int64, msg string, terminal bool) error {
	status := types.WorkPending
	if terminal {
		status = types.WorkFailed
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE insite_messages SET attempts = attempts + 1, last_error = $2, status = $3 WHERE id = $1`,
		id,
		types.CapError(msg),
		string(status),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record insite failure", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFound, "insite message not found", nil)
	}

	if terminal {
		_, err = r.db.Exec(ctx,
			`UPDATE events SET status = 'failed', last_error = $2, updated_at = NOW()
			 WHERE id = (SELECT event_id FROM insite_messages WHERE id = $1) AND status <> 'delivered'`,
			id,
			types.CapError(msg),
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to propagate insite failure to event", err)
		}
	}
	return nil
}

// MarkBatchFailed records a loop-level failure against every in-site
// message in the batch with a shared error message.
func (r *InsiteRepository) MarkBatchFailed(ctx context.Context, ids []int64, msg string, maxAttempts int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE insite_messages SET
			attempts = attempts + 1,
			last_error = $2,
			status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END
		 WHERE id = ANY($1)`,
		ids,
		types.CapError(msg),
		maxAttempts,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark insite batch failed", err)
	}
	return nil
}
