// Package main is the entrypoint for the notification worker.
//
// The worker runs the four queue-drain jobs (event-send, event-retry,
// email-send, insite-send) on fixed-delay loops, each guarded by a
// distributed lock so that exactly one replica drains a given queue at a
// time. It also serves a small ops HTTP listener with health and version
// endpoints.
//
// Startup:
//  1. Initialize structured logger.
//  2. Load and validate configuration from the environment.
//  3. Connect Postgres (pgx pool) and Redis (job locks).
//  4. Initialize AWS clients (SQS gateway queue, CloudWatch metrics).
//  5. Build repositories, resolver, delivery channels, and dispatcher.
//  6. Register the drain jobs with the scheduler and run until SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"backoffice/internal/config"
	"backoffice/internal/db"
	"backoffice/internal/external"
	"backoffice/internal/lock"
	"backoffice/internal/notify/channels"
	"backoffice/internal/notify/core"
	"backoffice/internal/notify/dispatch"
	"backoffice/internal/notify/resolver"
	"backoffice/internal/ops"
	"backoffice/internal/queue"
	"backoffice/internal/scheduler"
	"backoffice/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog satisfies Info, Error, and Warn directly but With returns the
// concrete *slog.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

var _ types.Logger = (*slogAdapter)(nil)

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	typedLogger := &slogAdapter{logger: logger}

	logger.Info("notification worker starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres.
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis backs the distributed job locks. Local runs fall back to an
	// in-process locker so a bare `go run` needs no Redis.
	var locker lock.Locker
	var redisClient *redis.Client
	if cfg.Environment == "local" && cfg.Redis.Addr == "" {
		logger.Warn("REDIS_ADDR not set, using in-process job locks")
		locker = lock.NewMemoryLocker()
	} else {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password.Unmask(),
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient)
	}

	// AWS clients. EndpointURL points SQS and CloudWatch at LocalStack in
	// development environments.
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}
	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	metrics := core.NewCloudWatchDeliveryMetrics(cwClient, cfg.AWS.MetricNamespace, typedLogger)

	// Repositories.
	events := db.NewEventRepository(pool)
	emails := db.NewEmailRepository(pool)
	insite := db.NewInsiteRepository(pool)
	bindings := db.NewChannelBindingRepository(pool)
	receivers := db.NewReceiverRepository(pool)

	bindingResolver := resolver.NewResolver(bindings, cfg.Jobs.BindingCacheTTL, typedLogger)

	// Delivery providers. Missing credentials in local mode swap in
	// logging stubs so the full pipeline runs without live accounts.
	var smsProvider external.SmsProvider
	if cfg.Sms.AccessKey.Unmask() == "" {
		logger.Warn("SMS_GATEWAY_KEY not set, using stub SMS provider")
		smsProvider = external.NewStubSmsProvider(typedLogger)
	} else {
		smsProvider = external.NewSmsClient(
			&http.Client{Timeout: cfg.Sms.Timeout},
			external.SmsClientConfig{
				BaseURL:   cfg.Sms.BaseURL,
				AccessKey: cfg.Sms.AccessKey.Unmask(),
				SignName:  cfg.Sms.SignName,
				Logger:    typedLogger,
			},
		)
	}
	var emailProvider external.EmailProvider
	if cfg.Email.SendGridAPIKey.Unmask() == "" {
		logger.Warn("SENDGRID_API_KEY not set, using stub email provider")
		emailProvider = external.NewStubEmailProvider(typedLogger)
	} else {
		emailProvider = external.NewSendGridClient(
			&http.Client{Timeout: cfg.Email.Timeout},
			external.SendGridClientConfig{
				APIKey: cfg.Email.SendGridAPIKey.Unmask(),
				Logger: typedLogger,
			},
		)
	}

	// Channels and dispatcher. SMS transmits synchronously; email and
	// in-site hand off rows to their own queues.
	dispatcher := dispatch.NewDispatcher(metrics, typedLogger,
		channels.NewSmsChannel(smsProvider, receivers, typedLogger),
		channels.NewEmailChannel(emails, receivers, typedLogger),
		channels.NewInsiteChannel(insite, receivers, typedLogger),
	)

	gateway := queue.NewInsiteGateway(sqsClient, cfg.AWS.InsiteGatewayQueue, typedLogger)

	eventCfg := scheduler.EventJobConfig{
		Events:      events,
		Resolver:    bindingResolver,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      typedLogger,
		BatchSize:   cfg.Jobs.EventBatchSize,
		MaxAttempts: cfg.Jobs.MaxAttempts,
	}

	emailCfg := scheduler.EmailJobConfig{
		Emails:      emails,
		Provider:    emailProvider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		Metrics:     metrics,
		Logger:      typedLogger,
		BatchSize:   cfg.Jobs.EmailBatchSize,
		MaxAttempts: cfg.Jobs.MaxAttempts,
	}
	insiteCfg := scheduler.InsiteJobConfig{
		Messages:    insite,
		Publisher:   gateway,
		Metrics:     metrics,
		Logger:      typedLogger,
		BatchSize:   cfg.Jobs.InsiteBatchSize,
		MaxAttempts: cfg.Jobs.MaxAttempts,
	}

	sched := scheduler.NewScheduler(locker, typedLogger,
		scheduler.JobSpec{
			Job:     scheduler.NewEventSendJob(eventCfg),
			Delay:   cfg.Jobs.EventSendDelay,
			LockTTL: cfg.Jobs.LockTTL,
		},
		scheduler.JobSpec{
			Job:     scheduler.NewEventRetryJob(eventCfg),
			Delay:   cfg.Jobs.EventRetryDelay,
			LockTTL: cfg.Jobs.LockTTL,
		},
		scheduler.JobSpec{
			Job:     scheduler.NewEmailSendJob(emailCfg),
			Delay:   cfg.Jobs.EmailSendDelay,
			LockTTL: cfg.Jobs.LockTTL,
		},
		scheduler.JobSpec{
			Job:     scheduler.NewEmailRetryJob(emailCfg),
			Delay:   cfg.Jobs.EmailRetryDelay,
			LockTTL: cfg.Jobs.LockTTL,
		},
		scheduler.JobSpec{
			Job:     scheduler.NewInsiteSendJob(insiteCfg),
			Delay:   cfg.Jobs.InsiteSendDelay,
			LockTTL: cfg.Jobs.LockTTL,
		},
		scheduler.JobSpec{
			Job:     scheduler.NewInsiteRetryJob(insiteCfg),
			Delay:   cfg.Jobs.InsiteRetryDelay,
			LockTTL: cfg.Jobs.LockTTL,
		},
	)

	probes := []ops.HealthProbe{ops.NewDatabaseProbe(pool)}
	if redisClient != nil {
		probes = append(probes, ops.NewRedisProbe(redisClient))
	}
	opsServer := ops.NewServer(cfg.Build, typedLogger, probes...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Start(gctx)
	})
	g.Go(func() error {
		return opsServer.Start(gctx, ":"+cfg.Server.OpsPort)
	})

	logger.Info("notification worker running", "ops_port", cfg.Server.OpsPort)

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("notification worker stopped")
}
