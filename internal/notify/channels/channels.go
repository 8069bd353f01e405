// Package channels implements the per-channel delivery backends the
// dispatcher fans out to. SMS is sent synchronously through the gateway;
// email and in-site delivery hand off to their own work queues, which
// have dedicated drain jobs with independent retry accounting.
package channels

import (
	"context"

	"backoffice/internal/types"
)

// Directory resolves a binding's receiver set into concrete delivery
// targets. db.ReceiverRepository is the production implementation.
type Directory interface {
	PhonesFor(ctx context.Context, tenantID int64, set types.ReceiverSet) ([]string, error)
	EmailsFor(ctx context.Context, tenantID int64, set types.ReceiverSet) ([]string, error)
	UserIDsFor(ctx context.Context, tenantID int64, set types.ReceiverSet) ([]int64, error)
}

// EmailEnqueuer is the subset of db.EmailRepository the email channel needs.
type EmailEnqueuer interface {
	Create(ctx context.Context, e *types.Email) error
}

// InsiteEnqueuer is the subset of db.InsiteRepository the in-site channel
// needs.
type InsiteEnqueuer interface {
	Create(ctx context.Context, m *types.InsiteMessage) error
}

// eventRef returns a pointer to the originating event ID, or nil when the
// request did not come from the event fan-out.
func eventRef(eventID int64) *int64 {
	if eventID == 0 {
		return nil
	}
	return &eventID
}
