package core

import (
	"context"
	"fmt"

	"backoffice/internal/types"
)

// LedgerStore is the minimal persistence interface the retry ledger needs
// from a work-queue repository. Each queue repository (events, emails,
// in-site messages) satisfies it, so one ledger implementation serves all
// drain jobs.
type LedgerStore interface {
	// MarkDelivered transitions the item to the terminal delivered status.
	MarkDelivered(ctx context.Context, id int64) error

	// RecordFailure increments the attempt count, stores the capped error
	// message, and transitions to the terminal failed status when terminal
	// is true.
	RecordFailure(ctx context.Context, id int64, msg string, terminal bool) error

	// MarkSkipped transitions the item to the terminal skipped status,
	// recording why nothing was sent.
	MarkSkipped(ctx context.Context, id int64, reason string) error
}

// Ledger applies outcome-driven state transitions to work items:
//
//	pending -> delivered                    (success)
//	pending -> skipped                      (nothing configured to send)
//	pending -> pending,  attempts+1         (retryable, below cap)
//	pending -> failed,   attempts+1         (retryable at cap, or terminal)
//
// The attempts parameter is the item's count BEFORE the current attempt;
// the cap check therefore uses attempts+1.
type Ledger struct {
	store  LedgerStore
	policy RetryPolicy
	logger types.Logger
}

// NewLedger creates a Ledger over the given store and retry policy.
func NewLedger(store LedgerStore, policy RetryPolicy, logger types.Logger) *Ledger {
	return &Ledger{store: store, policy: policy, logger: logger}
}

// Apply records the outcome of one processing attempt. Marking delivered is
// the caller's last action after the channel call returned success, so a
// crash mid-dispatch leaves the item pending and safe to retry.
func (l *Ledger) Apply(ctx context.Context, id int64, attempts int, out Outcome) error {
	switch out.Kind {
	case OutcomeDelivered:
		if err := l.store.MarkDelivered(ctx, id); err != nil {
			return fmt.Errorf("ledger: mark delivered: %w", err)
		}
		return nil

	case OutcomeSkipped:
		// Configuration absence is not a failure; consume the item so the
		// queue does not re-offer it, but record the skip distinctly from a
		// delivery so it is queryable afterwards.
		if err := l.store.MarkSkipped(ctx, id, out.Reason); err != nil {
			return fmt.Errorf("ledger: mark skipped: %w", err)
		}
		l.logger.Info("work item skipped",
			"item_id", id,
			"reason", out.Reason,
		)
		return nil

	case OutcomeRetryable:
		terminal := attempts+1 >= l.policy.MaxAttempts
		msg := ""
		if out.Err != nil {
			msg = out.Err.Error()
		}
		if err := l.store.RecordFailure(ctx, id, msg, terminal); err != nil {
			return fmt.Errorf("ledger: record failure: %w", err)
		}
		if terminal {
			l.logger.Error("work item permanently failed",
				"item_id", id,
				"attempts", attempts+1,
				"max_attempts", l.policy.MaxAttempts,
				"error", msg,
			)
		} else {
			l.logger.Warn("work item failed, will retry",
				"item_id", id,
				"attempts", attempts+1,
				"max_attempts", l.policy.MaxAttempts,
				"error", msg,
			)
		}
		return nil

	case OutcomeTerminal:
		msg := ""
		if out.Err != nil {
			msg = out.Err.Error()
		}
		if err := l.store.RecordFailure(ctx, id, msg, true); err != nil {
			return fmt.Errorf("ledger: record terminal failure: %w", err)
		}
		l.logger.Error("work item terminally failed",
			"item_id", id,
			"error", msg,
		)
		return nil

	default:
		return fmt.Errorf("ledger: unknown outcome kind %q", out.Kind)
	}
}

// MetricFor maps an outcome to its metrics result category.
func MetricFor(out Outcome) MetricResult {
	switch out.Kind {
	case OutcomeDelivered:
		return MetricSuccess
	case OutcomeSkipped:
		return MetricSkipped
	default:
		return MetricFailed
	}
}
