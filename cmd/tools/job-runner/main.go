// Package main implements the job-runner CLI tool for invoking a single
// queue-drain job directly, bypassing the worker's scheduler loops.
//
// This tool is intended for local development, manual queue draining, and
// operational debugging. It wires the same repositories and pipeline as
// the worker, runs the named job exactly once, and exits.
//
// Usage:
//
//	go run ./cmd/tools/job-runner --job=event-send
//	go run ./cmd/tools/job-runner --job=email-send --stub-providers
//	go run ./cmd/tools/job-runner --list
//
// The tool reads configuration from environment variables (or a .env file
// via godotenv, loaded by the config loader). With --stub-providers, SMS
// and email sends are logged instead of transmitted and in-site messages
// are printed instead of published to SQS, so a drain run can be exercised
// against a real database without touching live providers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"backoffice/internal/config"
	"backoffice/internal/db"
	"backoffice/internal/external"
	"backoffice/internal/notify/channels"
	"backoffice/internal/notify/core"
	"backoffice/internal/notify/dispatch"
	"backoffice/internal/notify/resolver"
	"backoffice/internal/queue"
	"backoffice/internal/scheduler"
	"backoffice/internal/types"
)

// validJobs is the exhaustive set of drain jobs the worker schedules.
// Maintained in sync with the JobName constants in internal/types.
var validJobs = map[types.JobName]string{
	types.JobEventSend:   "Drain first-attempt events through the channel dispatcher",
	types.JobEventRetry:  "Drain previously failed events still under the attempt cap",
	types.JobEmailSend:   "Drain first-attempt emails through the email provider",
	types.JobEmailRetry:  "Drain previously failed emails still under the attempt cap",
	types.JobInsiteSend:  "Drain first-attempt in-site messages to the websocket gateway",
	types.JobInsiteRetry: "Drain previously failed in-site messages still under the attempt cap",
}

// slogAdapter wraps *slog.Logger to implement types.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// logPublisher implements queue.GatewayPublisher by logging instead of
// publishing. Used with --stub-providers.
type logPublisher struct {
	logger types.Logger
}

func (p *logPublisher) Publish(_ context.Context, msg queue.GatewayMessage) error {
	p.logger.Info("stub: gateway publish",
		"message_id", msg.MessageID,
		"tenant_id", msg.TenantID,
		"receivers", len(msg.ReceiverIDs),
		"urgent", msg.Urgent,
	)
	return nil
}

func main() {
	jobFlag := flag.String("job", "", "Job to run once (e.g., event-send)")
	listFlag := flag.Bool("list", false, "List all available jobs and exit")
	stubFlag := flag.Bool("stub-providers", false, "Log sends instead of calling providers")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: job-runner [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Run a single queue-drain job once, bypassing the scheduler.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nUse --list to see all available jobs.\n")
	}

	flag.Parse()

	if *listFlag {
		printAvailableJobs()
		return
	}

	if *jobFlag == "" {
		fmt.Fprintf(os.Stderr, "error: --job is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	jobName := types.JobName(*jobFlag)
	if _, ok := validJobs[jobName]; !ok {
		fmt.Fprintf(os.Stderr, "error: unknown job %q\n\n", *jobFlag)
		printAvailableJobs()
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	typedLogger := &slogAdapter{logger: logger}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	job, err := buildJob(ctx, jobName, cfg, typedLogger, *stubFlag)
	if err != nil {
		logger.Error("failed to wire job", "job", string(jobName), "error", err)
		os.Exit(1)
	}

	logger.Info("running job", "job", string(jobName), "stub_providers", *stubFlag)
	if err := job.Run(ctx); err != nil {
		logger.Error("job run failed", "job", string(jobName), "error", err)
		os.Exit(1)
	}
	logger.Info("job run completed", "job", string(jobName))
}

// buildJob wires the database and pipeline dependencies for the named job.
// It mirrors the wiring in cmd/notify-worker but swaps metrics for a no-op
// recorder: a manual run should not pollute the delivery dashboards.
func buildJob(ctx context.Context, name types.JobName, cfg *config.Config, logger types.Logger, stub bool) (scheduler.Job, error) {
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	metrics := core.NopMetrics{}

	switch name {
	case types.JobEventSend, types.JobEventRetry:
		events := db.NewEventRepository(pool)
		emails := db.NewEmailRepository(pool)
		insite := db.NewInsiteRepository(pool)
		bindings := db.NewChannelBindingRepository(pool)
		receivers := db.NewReceiverRepository(pool)

		var smsProvider external.SmsProvider
		if stub || cfg.Sms.AccessKey.Unmask() == "" {
			smsProvider = external.NewStubSmsProvider(logger)
		} else {
			smsProvider = external.NewSmsClient(
				&http.Client{Timeout: cfg.Sms.Timeout},
				external.SmsClientConfig{
					BaseURL:   cfg.Sms.BaseURL,
					AccessKey: cfg.Sms.AccessKey.Unmask(),
					SignName:  cfg.Sms.SignName,
					Logger:    logger,
				},
			)
		}

		dispatcher := dispatch.NewDispatcher(metrics, logger,
			channels.NewSmsChannel(smsProvider, receivers, logger),
			channels.NewEmailChannel(emails, receivers, logger),
			channels.NewInsiteChannel(insite, receivers, logger),
		)

		eventCfg := scheduler.EventJobConfig{
			Events:      events,
			Resolver:    resolver.NewResolver(bindings, cfg.Jobs.BindingCacheTTL, logger),
			Dispatcher:  dispatcher,
			Metrics:     metrics,
			Logger:      logger,
			BatchSize:   cfg.Jobs.EventBatchSize,
			MaxAttempts: cfg.Jobs.MaxAttempts,
		}
		if name == types.JobEventRetry {
			return scheduler.NewEventRetryJob(eventCfg), nil
		}
		return scheduler.NewEventSendJob(eventCfg), nil

	case types.JobEmailSend, types.JobEmailRetry:
		var emailProvider external.EmailProvider
		if stub || cfg.Email.SendGridAPIKey.Unmask() == "" {
			emailProvider = external.NewStubEmailProvider(logger)
		} else {
			emailProvider = external.NewSendGridClient(
				&http.Client{Timeout: cfg.Email.Timeout},
				external.SendGridClientConfig{
					APIKey: cfg.Email.SendGridAPIKey.Unmask(),
					Logger: logger,
				},
			)
		}
		emailCfg := scheduler.EmailJobConfig{
			Emails:      db.NewEmailRepository(pool),
			Provider:    emailProvider,
			FromAddress: cfg.Email.FromAddress,
			FromName:    cfg.Email.FromName,
			Metrics:     metrics,
			Logger:      logger,
			BatchSize:   cfg.Jobs.EmailBatchSize,
			MaxAttempts: cfg.Jobs.MaxAttempts,
		}
		if name == types.JobEmailRetry {
			return scheduler.NewEmailRetryJob(emailCfg), nil
		}
		return scheduler.NewEmailSendJob(emailCfg), nil

	case types.JobInsiteSend, types.JobInsiteRetry:
		var publisher queue.GatewayPublisher
		if stub {
			publisher = &logPublisher{logger: logger}
		} else {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
			if err != nil {
				return nil, fmt.Errorf("load AWS config: %w", err)
			}
			sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
				if cfg.AWS.EndpointURL != "" {
					o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
				}
			})
			publisher = queue.NewInsiteGateway(sqsClient, cfg.AWS.InsiteGatewayQueue, logger)
		}
		insiteCfg := scheduler.InsiteJobConfig{
			Messages:    db.NewInsiteRepository(pool),
			Publisher:   publisher,
			Metrics:     metrics,
			Logger:      logger,
			BatchSize:   cfg.Jobs.InsiteBatchSize,
			MaxAttempts: cfg.Jobs.MaxAttempts,
		}
		if name == types.JobInsiteRetry {
			return scheduler.NewInsiteRetryJob(insiteCfg), nil
		}
		return scheduler.NewInsiteSendJob(insiteCfg), nil
	}

	return nil, fmt.Errorf("unknown job %q", name)
}

func printAvailableJobs() {
	fmt.Println("Available jobs:")
	names := make([]string, 0, len(validJobs))
	for name := range validJobs {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-14s %s\n", name, validJobs[types.JobName(name)])
	}
}
