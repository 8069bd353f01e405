// Package notify exposes the producer-facing entry point of the delivery
// pipeline: validated notice requests fan out through the same dispatcher
// the drain jobs use, so direct sends and queued events share one set of
// channel semantics.
package notify

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"backoffice/internal/notify/core"
	"backoffice/internal/notify/dispatch"
	"backoffice/internal/types"
)

// NoticeDispatcher is the dispatcher subset the sender needs.
type NoticeDispatcher interface {
	Dispatch(ctx context.Context, noticeTypes []types.NoticeType, req dispatch.Request) map[types.NoticeType]core.Outcome
}

// Sender validates a SendNoticeDto and dispatches each selected channel
// with its channel-specific payload. Email and in-site sends are enqueued
// for their drain jobs; SMS transmits synchronously.
type Sender struct {
	dispatcher NoticeDispatcher
	logger     types.Logger
}

// NewSender creates a new Sender over the channel dispatcher.
func NewSender(dispatcher NoticeDispatcher, logger types.Logger) *Sender {
	return &Sender{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Send fans the notice out to its selected channels and returns an error
// only when at least one channel failed; skips (no recipients resolved,
// channel not registered) are success from the producer's view. Each
// channel receives its own sub-payload, so a multi-channel notice can
// carry different content per channel.
func (s *Sender) Send(ctx context.Context, dto types.SendNoticeDto) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	traceID := dto.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}
	ctx = types.WithTraceID(ctx, traceID)

	outcomes := make(map[types.NoticeType]core.Outcome, len(dto.NoticeTypes))
	for _, nt := range dto.NoticeTypes {
		req := requestFor(nt, dto, traceID)
		for k, v := range s.dispatcher.Dispatch(ctx, []types.NoticeType{nt}, req) {
			outcomes[k] = v
		}
	}

	agg := dispatch.Aggregate(outcomes)
	s.logger.Info("notice dispatched",
		"tenant_id", dto.TenantID,
		"trace_id", traceID,
		"channels", len(dto.NoticeTypes),
		"outcome", string(agg.Kind),
	)

	switch agg.Kind {
	case core.OutcomeRetryable, core.OutcomeTerminal:
		return agg.Err
	default:
		return nil
	}
}

// requestFor builds the channel-specific dispatch request for one selected
// notice type. Validate has already guaranteed the sub-payload is present.
func requestFor(nt types.NoticeType, dto types.SendNoticeDto, traceID string) dispatch.Request {
	req := dispatch.Request{
		TenantID: dto.TenantID,
		TraceID:  traceID,
	}

	switch nt {
	case types.NoticeSms:
		p := dto.Sms
		req.TemplateCode = p.BusinessKey
		req.Params = p.Params
		req.Urgent = p.Urgent
		req.Receivers = types.ReceiverSet{
			Addresses:   p.Mobiles,
			ObjectType:  p.ObjectType,
			ObjectIDs:   p.ObjectIDs,
			PolicyCodes: p.PolicyCodes,
		}
	case types.NoticeEmail:
		p := dto.Email
		req.Subject = p.Subject
		req.Content = p.Body
		req.HTML = p.HTML
		req.Params = p.Params
		req.Receivers = types.ReceiverSet{
			Addresses:   p.To,
			ObjectType:  p.ObjectType,
			ObjectIDs:   p.ObjectIDs,
			PolicyCodes: p.PolicyCodes,
		}
	case types.NoticeInsite:
		p := dto.Insite
		req.Subject = p.Title
		req.Content = p.Content
		req.Params = p.Params
		req.Urgent = p.Urgent
		addrs := make([]string, len(p.ReceiverIDs))
		for i, id := range p.ReceiverIDs {
			addrs[i] = strconv.FormatInt(id, 10)
		}
		req.Receivers = types.ReceiverSet{
			Addresses:   addrs,
			ObjectType:  p.ObjectType,
			ObjectIDs:   p.ObjectIDs,
			PolicyCodes: p.PolicyCodes,
		}
	}

	return req
}
