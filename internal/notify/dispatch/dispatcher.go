// Package dispatch fans a delivery request out to the configured
// notification channels. Channels are isolated from each other: a
// failing or panicking channel yields a failure outcome for that
// channel only and never suppresses delivery on the others.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backoffice/internal/notify/core"
	"backoffice/internal/types"
)

// Request is the channel-agnostic delivery request built by the drain
// jobs from a work item and its resolved binding, or by the notice sender
// from a direct SendNoticeDto.
type Request struct {
	TenantID int64
	EventID  int64 // zero for direct notice requests
	TraceID  string
	Subject  string
	Content  string
	// TemplateCode selects a provider-side template when Content is empty.
	TemplateCode string
	Params       map[string]string
	Receivers    types.ReceiverSet
	HTML         bool // email body is HTML rather than plain text
	Urgent       bool
}

// Channel delivers a request over one notice type.
type Channel interface {
	Type() types.NoticeType
	Send(ctx context.Context, req Request) core.Outcome
}

// Dispatcher routes requests to registered channels and records
// per-channel delivery metrics.
type Dispatcher struct {
	channels map[types.NoticeType]Channel
	metrics  core.DeliveryMetrics
	logger   types.Logger
}

// NewDispatcher creates a Dispatcher over the given channels. Registering
// two channels with the same notice type is a wiring bug and panics.
func NewDispatcher(metrics core.DeliveryMetrics, logger types.Logger, channels ...Channel) *Dispatcher {
	byType := make(map[types.NoticeType]Channel, len(channels))
	for _, ch := range channels {
		if _, dup := byType[ch.Type()]; dup {
			panic(fmt.Sprintf("dispatch: duplicate channel %q", ch.Type()))
		}
		byType[ch.Type()] = ch
	}
	return &Dispatcher{channels: byType, metrics: metrics, logger: logger}
}

// Dispatch sends req over every requested notice type and returns the
// outcome per channel. A notice type with no registered channel yields a
// skip outcome for that type.
func (d *Dispatcher) Dispatch(ctx context.Context, noticeTypes []types.NoticeType, req Request) map[types.NoticeType]core.Outcome {
	outcomes := make(map[types.NoticeType]core.Outcome, len(noticeTypes))
	for _, nt := range noticeTypes {
		if _, seen := outcomes[nt]; seen {
			continue
		}
		outcomes[nt] = d.sendOne(ctx, nt, req)
	}
	return outcomes
}

func (d *Dispatcher) sendOne(ctx context.Context, nt types.NoticeType, req Request) (out core.Outcome) {
	ch, ok := d.channels[nt]
	if !ok {
		d.logger.Warn("no channel registered for notice type",
			"notice_type", string(nt),
			"event_id", req.EventID,
		)
		return core.Skipped("channel not registered: " + string(nt))
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = core.Terminal(fmt.Errorf("channel %s panic: %v", nt, r))
		}
		d.metrics.RecordLatency(ctx, nt, time.Since(start))
		d.metrics.RecordDelivery(ctx, nt, core.MetricFor(out))
	}()

	out = ch.Send(ctx, req)
	return out
}

// Aggregate collapses per-channel outcomes into one event-level outcome.
// Any retryable channel keeps the event retryable so transient failures
// are retried; a terminal channel without retryable siblings fails the
// event; an event whose channels all skipped is itself skipped.
func Aggregate(outcomes map[types.NoticeType]core.Outcome) core.Outcome {
	if len(outcomes) == 0 {
		return core.Skipped("no channels requested")
	}

	var (
		retryable []error
		terminal  []error
		delivered bool
	)
	for nt, out := range outcomes {
		switch out.Kind {
		case core.OutcomeDelivered:
			delivered = true
		case core.OutcomeRetryable:
			retryable = append(retryable, fmt.Errorf("%s: %w", nt, out.Err))
		case core.OutcomeTerminal:
			terminal = append(terminal, fmt.Errorf("%s: %w", nt, out.Err))
		}
	}

	switch {
	case len(retryable) > 0:
		return core.Retryable(errors.Join(retryable...))
	case len(terminal) > 0:
		return core.Terminal(errors.Join(terminal...))
	case delivered:
		return core.Delivered()
	default:
		return core.Skipped("no channel configured")
	}
}
