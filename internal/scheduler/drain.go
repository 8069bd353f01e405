package scheduler

import (
	"context"
	"fmt"
	"time"

	"backoffice/internal/notify/core"
	"backoffice/internal/types"
)

// Queue describes one drainable work queue to the generic drain loop.
// Fetch returns up to limit pending items oldest first; Process handles a
// single item and reports a tagged outcome; the Ledger persists the
// resulting state transition.
type Queue[T any] struct {
	Fetch     func(ctx context.Context, limit int) ([]T, error)
	ID        func(T) int64
	Attempts  func(T) int
	CreatedAt func(T) time.Time
	Process   func(ctx context.Context, item T) core.Outcome
	Channel   func(T) types.NoticeType
	Ledger    *core.Ledger

	// BatchFail marks every listed item failed when the loop itself breaks
	// (ledger write failure), so the batch is not silently re-offered as if
	// untouched.
	BatchFail func(ctx context.Context, ids []int64, msg string) error
}

// drain runs fetch/process cycles until a short page signals the queue is
// empty. Item failures are absorbed by the ledger; only infrastructure
// failures (fetch or ledger writes) abort the drain. Returns the number of
// items processed.
func drain[T any](
	ctx context.Context,
	job types.JobName,
	q Queue[T],
	batchSize int,
	metrics core.DeliveryMetrics,
	logger types.Logger,
) (int, error) {
	processed := 0

	for {
		items, err := q.Fetch(ctx, batchSize)
		if err != nil {
			return processed, fmt.Errorf("%s: fetch batch: %w", job, err)
		}
		if len(items) == 0 {
			return processed, nil
		}

		metrics.RecordDrainBatch(ctx, job, len(items))
		metrics.RecordQueueLag(ctx, job, time.Since(q.CreatedAt(items[0])))

		for i, item := range items {
			id := q.ID(item)

			start := time.Now()
			out := q.Process(ctx, item)
			if q.Channel != nil {
				ch := q.Channel(item)
				metrics.RecordLatency(ctx, ch, time.Since(start))
				metrics.RecordDelivery(ctx, ch, core.MetricFor(out))
			}

			if err := q.Ledger.Apply(ctx, id, q.Attempts(item), out); err != nil {
				// The ledger could not persist the transition; fail the rest
				// of the batch in bulk and abort the drain.
				remaining := make([]int64, 0, len(items)-i)
				for _, it := range items[i:] {
					remaining = append(remaining, q.ID(it))
				}
				msg := types.CapError(fmt.Sprintf("%s: ledger write failed: %v", job, err))
				if bfErr := q.BatchFail(ctx, remaining, msg); bfErr != nil {
					logger.Error("batch fail after ledger error also failed",
						"item_ids", remaining,
						"error", bfErr.Error(),
					)
				}
				return processed, fmt.Errorf("%s: apply outcome for item %d: %w", job, id, err)
			}
			processed++
		}

		// A short page means the queue is drained; a full page may hide more.
		if len(items) < batchSize {
			return processed, nil
		}
	}
}
