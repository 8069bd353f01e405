package channels

import (
	"context"

	"backoffice/internal/notify/core"
	"backoffice/internal/notify/dispatch"
	"backoffice/internal/types"
)

// EmailChannel enqueues a pending email row for the email-send job. The
// channel outcome reflects the handoff only; transmission to the provider
// is tracked by the email queue's own attempt accounting.
type EmailChannel struct {
	emails    EmailEnqueuer
	directory Directory
	logger    types.Logger
}

// NewEmailChannel creates a new EmailChannel.
func NewEmailChannel(emails EmailEnqueuer, directory Directory, logger types.Logger) *EmailChannel {
	return &EmailChannel{
		emails:    emails,
		directory: directory,
		logger:    logger,
	}
}

// Type returns the channel type identifier for email.
func (c *EmailChannel) Type() types.NoticeType {
	return types.NoticeEmail
}

// Send resolves the receiver set to addresses and enqueues the email.
func (c *EmailChannel) Send(ctx context.Context, req dispatch.Request) core.Outcome {
	addrs, err := c.directory.EmailsFor(ctx, req.TenantID, req.Receivers)
	if err != nil {
		return core.OutcomeFromError(err)
	}
	if len(addrs) == 0 {
		return core.Skipped("no email recipients resolved")
	}

	email := &types.Email{
		TenantID: req.TenantID,
		EventID:  eventRef(req.EventID),
		Subject:  req.Subject,
		Body:     req.Content,
		HTML:     req.HTML,
		To:       addrs,
	}
	if err := c.emails.Create(ctx, email); err != nil {
		return core.Retryable(err)
	}

	redacted := make([]string, len(addrs))
	for i, a := range addrs {
		redacted[i] = RedactEmail(a)
	}
	c.logger.Info("email enqueued",
		"email_id", email.ID,
		"event_id", req.EventID,
		"tenant_id", req.TenantID,
		"trace_id", req.TraceID,
		"to", redacted,
	)

	return core.Delivered()
}

// Compile-time assertion that EmailChannel implements dispatch.Channel.
var _ dispatch.Channel = (*EmailChannel)(nil)
