// Package core provides the shared delivery infrastructure used by the
// drain jobs: the per-item outcome type, the retry ledger that applies
// state transitions, and delivery metrics. It centralizes retry accounting
// so every work queue (events, emails, in-site messages) behaves the same.
package core

import (
	"context"
	"time"

	"backoffice/internal/types"
)

// OutcomeKind tags the result of processing one work item.
type OutcomeKind string

const (
	// OutcomeDelivered is terminal success.
	OutcomeDelivered OutcomeKind = "delivered"
	// OutcomeSkipped means no channel is configured for the item. Not a
	// failure: the item is consumed without a delivery attempt.
	OutcomeSkipped OutcomeKind = "skipped"
	// OutcomeRetryable is a transient failure, retried on a later run until
	// the attempt cap is reached.
	OutcomeRetryable OutcomeKind = "retryable"
	// OutcomeTerminal is a non-retryable failure regardless of attempt count.
	OutcomeTerminal OutcomeKind = "terminal"
)

// Outcome is the tagged result returned by a drain job's processOne. The
// ledger branches on the tag instead of inspecting error types.
type Outcome struct {
	Kind   OutcomeKind
	Reason string // skip reason, empty otherwise
	Err    error  // set for retryable/terminal
}

// Delivered returns a success outcome.
func Delivered() Outcome {
	return Outcome{Kind: OutcomeDelivered}
}

// Skipped returns a no-channel-configured outcome with the given reason.
func Skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

// Retryable returns a transient-failure outcome wrapping err.
func Retryable(err error) Outcome {
	return Outcome{Kind: OutcomeRetryable, Err: err}
}

// Terminal returns a permanent-failure outcome wrapping err.
func Terminal(err error) Outcome {
	return Outcome{Kind: OutcomeTerminal, Err: err}
}

// OutcomeFromError classifies err using the upstream error taxonomy:
// explicitly terminal codes map to Terminal, everything else to Retryable.
func OutcomeFromError(err error) Outcome {
	if types.IsRetryableUpstream(err) {
		return Retryable(err)
	}
	return Terminal(err)
}

// RetryPolicy bounds automatic retries per work queue. The retry delay is
// the owning job's inter-run delay, so no backoff parameters live here.
type RetryPolicy struct {
	MaxAttempts int
}

// MetricResult categorizes a delivery outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
	MetricSkipped MetricResult = "skipped"
)

// DeliveryMetrics abstracts CloudWatch/telemetry operations for the
// delivery pipeline.
type DeliveryMetrics interface {
	RecordDelivery(ctx context.Context, channel types.NoticeType, result MetricResult)
	RecordLatency(ctx context.Context, channel types.NoticeType, duration time.Duration)
	RecordQueueLag(ctx context.Context, job types.JobName, lag time.Duration)
	RecordDrainBatch(ctx context.Context, job types.JobName, size int)
}

// NopMetrics is a DeliveryMetrics that discards everything. Used by the
// job-runner tool and in tests.
type NopMetrics struct{}

func (NopMetrics) RecordDelivery(context.Context, types.NoticeType, MetricResult) {}
func (NopMetrics) RecordLatency(context.Context, types.NoticeType, time.Duration) {}
func (NopMetrics) RecordQueueLag(context.Context, types.JobName, time.Duration)   {}
func (NopMetrics) RecordDrainBatch(context.Context, types.JobName, int)           {}

// Compile-time assertion that NopMetrics implements DeliveryMetrics.
var _ DeliveryMetrics = NopMetrics{}
