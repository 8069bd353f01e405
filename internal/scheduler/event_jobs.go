package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"backoffice/internal/notify/core"
	"backoffice/internal/notify/dispatch"
	"backoffice/internal/types"
)

// EventQueue defines the database operations the event jobs need. Using a
// narrow interface keeps the jobs testable without a database;
// db.EventRepository is the production implementation.
type EventQueue interface {
	ListPending(ctx context.Context, limit int) ([]types.Event, error)
	ListRetryable(ctx context.Context, limit int, maxAttempts int) ([]types.Event, error)
	MarkDelivered(ctx context.Context, id int64) error
	MarkSkipped(ctx context.Context, id int64, reason string) error
	RecordFailure(ctx context.Context, id int64, msg string, terminal bool) error
	MarkBatchFailed(ctx context.Context, ids []int64, msg string, maxAttempts int) error
	RecordPush(ctx context.Context, push *types.EventPush) error
}

// BindingResolver answers event code lookups; notify/resolver.Resolver is
// the production implementation.
type BindingResolver interface {
	ResolveByEventCode(ctx context.Context, code string) (*types.ChannelBinding, error)
}

// EventDispatcher fans a request out to the bound channels.
type EventDispatcher interface {
	Dispatch(ctx context.Context, noticeTypes []types.NoticeType, req dispatch.Request) map[types.NoticeType]core.Outcome
}

// EventJobConfig holds the dependencies and tuning for the event jobs.
type EventJobConfig struct {
	Events      EventQueue
	Resolver    BindingResolver
	Dispatcher  EventDispatcher
	Metrics     core.DeliveryMetrics
	Logger      types.Logger
	BatchSize   int
	MaxAttempts int
}

// EventJob drains the events queue: it resolves each event's channel
// binding, fans out to the bound channels, records one push row per
// channel, and applies the aggregated outcome to the event.
//
// The first-attempt queue (event-send) and the retry queue (event-retry)
// share the implementation and differ only in fetch predicate.
type EventJob struct {
	name   types.JobName
	fetch  func(ctx context.Context, limit int) ([]types.Event, error)
	cfg    EventJobConfig
	ledger *core.Ledger
}

// NewEventSendJob creates the first-attempt event drain job.
func NewEventSendJob(cfg EventJobConfig) *EventJob {
	return newEventJob(types.JobEventSend, cfg, cfg.Events.ListPending)
}

// NewEventRetryJob creates the retry-queue drain job; it fetches events
// that failed at least once but have not exhausted the attempt cap.
func NewEventRetryJob(cfg EventJobConfig) *EventJob {
	return newEventJob(types.JobEventRetry, cfg, func(ctx context.Context, limit int) ([]types.Event, error) {
		return cfg.Events.ListRetryable(ctx, limit, cfg.MaxAttempts)
	})
}

func newEventJob(name types.JobName, cfg EventJobConfig, fetch func(ctx context.Context, limit int) ([]types.Event, error)) *EventJob {
	return &EventJob{
		name:   name,
		fetch:  fetch,
		cfg:    cfg,
		ledger: core.NewLedger(cfg.Events, core.RetryPolicy{MaxAttempts: cfg.MaxAttempts}, cfg.Logger),
	}
}

// Name returns the job's typed identity.
func (j *EventJob) Name() types.JobName {
	return j.name
}

// Run drains the queue once.
func (j *EventJob) Run(ctx context.Context) error {
	processed, err := drain(ctx, j.name, Queue[types.Event]{
		Fetch:     j.fetch,
		ID:        func(e types.Event) int64 { return e.ID },
		Attempts:  func(e types.Event) int { return e.Attempts },
		CreatedAt: func(e types.Event) time.Time { return e.CreatedAt },
		Process:   j.processOne,
		Ledger:    j.ledger,
		BatchFail: func(ctx context.Context, ids []int64, msg string) error {
			return j.cfg.Events.MarkBatchFailed(ctx, ids, msg, j.cfg.MaxAttempts)
		},
	}, j.cfg.BatchSize, j.cfg.Metrics, j.cfg.Logger)
	if processed > 0 {
		j.cfg.Logger.Info("event drain finished", "job", string(j.name), "processed", processed)
	}
	return err
}

// processOne resolves the binding, dispatches, and records per-channel
// push rows. Push row failures are logged but do not change the event
// outcome; the aggregate decides the event's fate.
func (j *EventJob) processOne(ctx context.Context, ev types.Event) core.Outcome {
	traceID := uuid.New().String()
	ctx = types.WithTraceID(ctx, traceID)

	binding, err := j.cfg.Resolver.ResolveByEventCode(ctx, ev.Code)
	if err != nil {
		return core.Retryable(err)
	}
	if binding == nil {
		return core.Skipped("no channel binding for event code " + ev.Code)
	}

	req := dispatch.Request{
		TenantID:  ev.TenantID,
		EventID:   ev.ID,
		TraceID:   traceID,
		Subject:   ev.Subject,
		Content:   ev.Content,
		Params:    ev.Params,
		Receivers: binding.Receivers,
	}

	outcomes := j.cfg.Dispatcher.Dispatch(ctx, binding.NoticeTypes, req)
	for nt, out := range outcomes {
		push := &types.EventPush{
			EventID:    ev.ID,
			TenantID:   ev.TenantID,
			NoticeType: nt,
			Status:     pushStatus(out),
			Attempts:   ev.Attempts + 1,
		}
		if out.Err != nil {
			push.LastError = types.CapError(out.Err.Error())
		}
		if err := j.cfg.Events.RecordPush(ctx, push); err != nil {
			j.cfg.Logger.Error("failed to record event push",
				"event_id", ev.ID,
				"notice_type", string(nt),
				"error", err.Error(),
			)
		}
	}

	return dispatch.Aggregate(outcomes)
}

// pushStatus maps a channel outcome onto the push row's work status.
func pushStatus(out core.Outcome) types.WorkStatus {
	switch out.Kind {
	case core.OutcomeDelivered:
		return types.WorkDelivered
	case core.OutcomeSkipped:
		return types.WorkSkipped
	case core.OutcomeTerminal:
		return types.WorkFailed
	default:
		return types.WorkPending
	}
}
