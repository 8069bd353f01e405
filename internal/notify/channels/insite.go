package channels

import (
	"context"

	"backoffice/internal/notify/core"
	"backoffice/internal/notify/dispatch"
	"backoffice/internal/types"
)

// InsiteChannel enqueues a pending in-site message row for the insite-send
// job, which publishes it to the websocket gateway.
type InsiteChannel struct {
	messages  InsiteEnqueuer
	directory Directory
	logger    types.Logger
}

// NewInsiteChannel creates a new InsiteChannel.
func NewInsiteChannel(messages InsiteEnqueuer, directory Directory, logger types.Logger) *InsiteChannel {
	return &InsiteChannel{
		messages:  messages,
		directory: directory,
		logger:    logger,
	}
}

// Type returns the channel type identifier for in-site messages.
func (c *InsiteChannel) Type() types.NoticeType {
	return types.NoticeInsite
}

// Send resolves the receiver set to user IDs and enqueues the message.
func (c *InsiteChannel) Send(ctx context.Context, req dispatch.Request) core.Outcome {
	ids, err := c.directory.UserIDsFor(ctx, req.TenantID, req.Receivers)
	if err != nil {
		return core.OutcomeFromError(err)
	}
	if len(ids) == 0 {
		return core.Skipped("no insite recipients resolved")
	}

	msg := &types.InsiteMessage{
		TenantID:    req.TenantID,
		EventID:     eventRef(req.EventID),
		Title:       req.Subject,
		Content:     req.Content,
		ReceiverIDs: ids,
		Urgent:      req.Urgent,
	}
	if err := c.messages.Create(ctx, msg); err != nil {
		return core.Retryable(err)
	}

	c.logger.Info("insite message enqueued",
		"message_id", msg.ID,
		"event_id", req.EventID,
		"tenant_id", req.TenantID,
		"trace_id", req.TraceID,
		"receivers", len(ids),
		"urgent", req.Urgent,
	)

	return core.Delivered()
}

// Compile-time assertion that InsiteChannel implements dispatch.Channel.
var _ dispatch.Channel = (*InsiteChannel)(nil)
