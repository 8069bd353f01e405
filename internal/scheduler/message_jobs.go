package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"backoffice/internal/external"
	"backoffice/internal/notify/core"
	"backoffice/internal/queue"
	"backoffice/internal/types"
)

// EmailQueue defines the database operations the email jobs need;
// db.EmailRepository is the production implementation.
type EmailQueue interface {
	ListPending(ctx context.Context, limit int) ([]types.Email, error)
	ListRetryable(ctx context.Context, limit int, maxAttempts int) ([]types.Email, error)
	MarkDelivered(ctx context.Context, id int64) error
	MarkSkipped(ctx context.Context, id int64, reason string) error
	RecordFailure(ctx context.Context, id int64, msg string, terminal bool) error
	MarkBatchFailed(ctx context.Context, ids []int64, msg string, maxAttempts int) error
}

// EmailJobConfig holds the dependencies and tuning for the email jobs.
type EmailJobConfig struct {
	Emails      EmailQueue
	Provider    external.EmailProvider
	FromAddress string
	FromName    string
	Metrics     core.DeliveryMetrics
	Logger      types.Logger
	BatchSize   int
	MaxAttempts int
}

// EmailJob drains the emails queue and transmits through the provider.
//
// Like the event jobs, first attempts and retries run as separate jobs so
// an email that fails within a run waits for the next retry run instead of
// being re-offered by a full page in the same drain.
type EmailJob struct {
	name   types.JobName
	fetch  func(ctx context.Context, limit int) ([]types.Email, error)
	cfg    EmailJobConfig
	ledger *core.Ledger
}

// NewEmailSendJob creates the first-attempt email drain job.
func NewEmailSendJob(cfg EmailJobConfig) *EmailJob {
	return newEmailJob(types.JobEmailSend, cfg, cfg.Emails.ListPending)
}

// NewEmailRetryJob creates the email retry-queue drain job.
func NewEmailRetryJob(cfg EmailJobConfig) *EmailJob {
	return newEmailJob(types.JobEmailRetry, cfg, func(ctx context.Context, limit int) ([]types.Email, error) {
		return cfg.Emails.ListRetryable(ctx, limit, cfg.MaxAttempts)
	})
}

func newEmailJob(name types.JobName, cfg EmailJobConfig, fetch func(ctx context.Context, limit int) ([]types.Email, error)) *EmailJob {
	return &EmailJob{
		name:   name,
		fetch:  fetch,
		cfg:    cfg,
		ledger: core.NewLedger(cfg.Emails, core.RetryPolicy{MaxAttempts: cfg.MaxAttempts}, cfg.Logger),
	}
}

// Name returns the job's typed identity.
func (j *EmailJob) Name() types.JobName {
	return j.name
}

// Run drains the queue once.
func (j *EmailJob) Run(ctx context.Context) error {
	_, err := drain(ctx, j.name, Queue[types.Email]{
		Fetch:     j.fetch,
		ID:        func(e types.Email) int64 { return e.ID },
		Attempts:  func(e types.Email) int { return e.Attempts },
		CreatedAt: func(e types.Email) time.Time { return e.CreatedAt },
		Channel:   func(types.Email) types.NoticeType { return types.NoticeEmail },
		Process:   j.processOne,
		Ledger:    j.ledger,
		BatchFail: func(ctx context.Context, ids []int64, msg string) error {
			return j.cfg.Emails.MarkBatchFailed(ctx, ids, msg, j.cfg.MaxAttempts)
		},
	}, j.cfg.BatchSize, j.cfg.Metrics, j.cfg.Logger)
	return err
}

func (j *EmailJob) processOne(ctx context.Context, e types.Email) core.Outcome {
	if len(e.To) == 0 {
		return core.Terminal(types.NewAppError(
			types.ErrCodeValidationRecipients,
			"email has no recipients",
			nil,
		))
	}

	msgID, err := j.cfg.Provider.Send(ctx, external.EmailSendInput{
		To:          e.To,
		Subject:     e.Subject,
		Body:        e.Body,
		HTML:        e.HTML,
		FromAddress: j.cfg.FromAddress,
		FromName:    j.cfg.FromName,
		ReferenceID: fmt.Sprintf("email_%d", e.ID),
	})
	if err != nil {
		return core.OutcomeFromError(err)
	}

	j.cfg.Logger.Info("email sent",
		"email_id", e.ID,
		"tenant_id", e.TenantID,
		"provider_msg_id", msgID,
	)
	return core.Delivered()
}

// InsiteQueue defines the database operations the insite jobs need;
// db.InsiteRepository is the production implementation.
type InsiteQueue interface {
	ListPending(ctx context.Context, limit int) ([]types.InsiteMessage, error)
	ListRetryable(ctx context.Context, limit int, maxAttempts int) ([]types.InsiteMessage, error)
	MarkDelivered(ctx context.Context, id int64) error
	MarkSkipped(ctx context.Context, id int64, reason string) error
	RecordFailure(ctx context.Context, id int64, msg string, terminal bool) error
	MarkBatchFailed(ctx context.Context, ids []int64, msg string, maxAttempts int) error
}

// InsiteJobConfig holds the dependencies and tuning for the insite jobs.
type InsiteJobConfig struct {
	Messages    InsiteQueue
	Publisher   queue.GatewayPublisher
	Metrics     core.DeliveryMetrics
	Logger      types.Logger
	BatchSize   int
	MaxAttempts int
}

// InsiteJob drains the in-site message queue and publishes to the
// websocket gateway. First attempts and retries run as separate jobs.
type InsiteJob struct {
	name   types.JobName
	fetch  func(ctx context.Context, limit int) ([]types.InsiteMessage, error)
	cfg    InsiteJobConfig
	ledger *core.Ledger
}

// NewInsiteSendJob creates the first-attempt insite drain job.
func NewInsiteSendJob(cfg InsiteJobConfig) *InsiteJob {
	return newInsiteJob(types.JobInsiteSend, cfg, cfg.Messages.ListPending)
}

// NewInsiteRetryJob creates the insite retry-queue drain job.
func NewInsiteRetryJob(cfg InsiteJobConfig) *InsiteJob {
	return newInsiteJob(types.JobInsiteRetry, cfg, func(ctx context.Context, limit int) ([]types.InsiteMessage, error) {
		return cfg.Messages.ListRetryable(ctx, limit, cfg.MaxAttempts)
	})
}

func newInsiteJob(name types.JobName, cfg InsiteJobConfig, fetch func(ctx context.Context, limit int) ([]types.InsiteMessage, error)) *InsiteJob {
	return &InsiteJob{
		name:   name,
		fetch:  fetch,
		cfg:    cfg,
		ledger: core.NewLedger(cfg.Messages, core.RetryPolicy{MaxAttempts: cfg.MaxAttempts}, cfg.Logger),
	}
}

// Name returns the job's typed identity.
func (j *InsiteJob) Name() types.JobName {
	return j.name
}

// Run drains the queue once.
func (j *InsiteJob) Run(ctx context.Context) error {
	_, err := drain(ctx, j.name, Queue[types.InsiteMessage]{
		Fetch:     j.fetch,
		ID:        func(m types.InsiteMessage) int64 { return m.ID },
		Attempts:  func(m types.InsiteMessage) int { return m.Attempts },
		CreatedAt: func(m types.InsiteMessage) time.Time { return m.CreatedAt },
		Channel:   func(types.InsiteMessage) types.NoticeType { return types.NoticeInsite },
		Process:   j.processOne,
		Ledger:    j.ledger,
		BatchFail: func(ctx context.Context, ids []int64, msg string) error {
			return j.cfg.Messages.MarkBatchFailed(ctx, ids, msg, j.cfg.MaxAttempts)
		},
	}, j.cfg.BatchSize, j.cfg.Metrics, j.cfg.Logger)
	return err
}

func (j *InsiteJob) processOne(ctx context.Context, m types.InsiteMessage) core.Outcome {
	if len(m.ReceiverIDs) == 0 {
		return core.Terminal(types.NewAppError(
			types.ErrCodeValidationRecipients,
			"insite message has no receivers",
			nil,
		))
	}

	err := j.cfg.Publisher.Publish(ctx, queue.GatewayMessage{
		MessageID:   m.ID,
		TenantID:    m.TenantID,
		TraceID:     uuid.New().String(),
		Title:       m.Title,
		Content:     m.Content,
		ReceiverIDs: m.ReceiverIDs,
		Urgent:      m.Urgent,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		return core.OutcomeFromError(err)
	}
	return core.Delivered()
}
