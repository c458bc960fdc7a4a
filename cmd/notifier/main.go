// Package main is the entry point for the StudioPulse notifier.
//
// The notifier owns the delivery pipeline: the in-memory delivery queue,
// the per-channel dispatch workers, and the cron triggers that create daily
// summary and appointment reminder jobs. On startup it recovers the queue
// from the job store, so a restart never loses scheduled work.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"studiopulse/internal/config"
	"studiopulse/internal/db"
	"studiopulse/internal/external"
	notify "studiopulse/internal/notify/core"
	"studiopulse/internal/notify/prefs"
	"studiopulse/internal/notify/queue"
	"studiopulse/internal/notify/summary"
	"studiopulse/internal/scheduler"
	"studiopulse/internal/types"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := types.NewSlogLogger(newSlog(cfg.LogLevel))
	logger.Info("studiopulse notifier starting",
		"environment", cfg.Environment,
		"workers_per_channel", cfg.Delivery.WorkersPerChannel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	jobRepo := db.NewJobRepository(pool)
	prefRepo := db.NewPreferenceRepository(pool)
	aptRepo := db.NewAppointmentRepository(pool)
	resolver := prefs.NewResolver(prefRepo, logger)

	q := queue.New(queue.Backoff{
		Base: cfg.Delivery.BackoffBase,
		Cap:  cfg.Delivery.BackoffCap,
	})

	transports, textGen, metrics, err := buildProviders(ctx, cfg, logger)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(
		jobRepo,
		q,
		transports,
		queue.Backoff{Base: cfg.Delivery.BackoffBase, Cap: cfg.Delivery.BackoffCap},
		metrics,
		logger,
		notify.DispatcherConfig{
			WorkersPerChannel: cfg.Delivery.WorkersPerChannel,
			TransportTimeout:  cfg.Delivery.TransportTimeout,
			RecoveryBatch:     cfg.Delivery.RecoveryBatch,
		},
	)

	builder := summary.NewBuilder(textGen, logger)

	runner := scheduler.NewRunner(logger)
	daily := scheduler.NewDailySummaryTrigger(prefRepo, resolver, aptRepo, builder, jobRepo, q, logger)
	if err := runner.Register(ctx, "daily_summary", cfg.Scheduler.DailySummarySpec, daily); err != nil {
		return err
	}
	reminders := scheduler.NewReminderTrigger(aptRepo, resolver, jobRepo, q, cfg.Scheduler.ReminderLeadTimes, logger)
	if err := runner.Register(ctx, "appointment_reminders", cfg.Scheduler.ReminderWindowSpec, reminders); err != nil {
		return err
	}

	runner.Start()
	defer runner.Stop()

	// Run blocks until ctx is cancelled; queue recovery happens inside.
	if err := dispatcher.Run(ctx); err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}

	logger.Info("notifier stopped cleanly")
	return nil
}

// buildProviders wires the channel transports, the text generation client,
// and the metrics emitter. Local mode uses in-process stubs so the pipeline
// runs without AWS credentials or live gateways.
func buildProviders(ctx context.Context, cfg *config.Config, logger types.Logger) ([]notify.Transport, summary.TextGenerator, notify.DeliveryMetrics, error) {
	if cfg.Environment == "local" {
		transports := []notify.Transport{
			external.NewEmailTransport(external.NewStubEmailProvider(logger)),
			external.NewSMSTransport(external.NewStubSMSProvider(logger)),
			external.NewPushTransport(external.NewStubPushProvider(logger)),
		}
		return transports, external.NewStubTextGenerator(logger), notify.NopDeliveryMetrics{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Email.Region))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading AWS configuration: %w", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	transports := []notify.Transport{
		external.NewEmailTransport(external.NewSESProvider(awsCfg, cfg.Email, logger)),
		external.NewSMSTransport(external.NewSMSGatewayClient(httpClient, cfg.SMS)),
		external.NewPushTransport(external.NewWebPushProvider(httpClient, cfg.Push)),
	}

	textGen := external.NewTextGenClient(&http.Client{Timeout: cfg.TextGen.Timeout}, cfg.TextGen)

	var metrics notify.DeliveryMetrics = notify.NopDeliveryMetrics{}
	if cfg.Observability.EnableMetrics {
		metrics = notify.NewCloudWatchDeliveryMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
	}

	return transports, textGen, metrics, nil
}

// newSlog creates a JSON structured logger at the configured level.
func newSlog(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
