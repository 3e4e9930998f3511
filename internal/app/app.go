// Package app assembles the delivery services from configuration. Both the
// API server and the maintenance Lambda build their dependencies here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"penpal/internal/archive"
	"penpal/internal/config"
	"penpal/internal/db"
	"penpal/internal/delay"
	"penpal/internal/events"
	"penpal/internal/scheduler"
	"penpal/internal/transit"
	"penpal/internal/types"
)

// App holds the long-lived dependencies of one process.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool       *pgxpool.Pool
	Store      *db.Store
	Publisher  events.Publisher
	Calculator *delay.Calculator

	Transits   *transit.Service
	Deliveries *scheduler.DeliveryService
	Cycle      *scheduler.CycleService
	Runner     *scheduler.Runner
	WorkerID   string
}

// New connects to the database and AWS and builds every service. The caller
// must Close the returned App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	mode, err := delay.ParseMode(cfg.Delivery.DefaultMode)
	if err != nil {
		return nil, fmt.Errorf("delay mode: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, cfg.Database.URL.Unmask(), logger); err != nil {
			return nil, err
		}
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Pool:     pool,
		Store:    db.NewStore(pool),
		WorkerID: workerID(),
	}

	awsCfg, err := loadAWS(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	var sqsClient events.SQSSender
	if cfg.Events.Backend == "sqs" {
		sqsClient = sqs.NewFromConfig(awsCfg)
	}
	a.Publisher, err = events.New(cfg, sqsClient, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	var metrics scheduler.Metrics = scheduler.NopMetrics{}
	if cfg.Observability.EnableMetrics {
		metrics = scheduler.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
	}

	var archiver scheduler.LetterArchiver
	if cfg.AWS.ArchiveBucket != "" {
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWS.EndpointURL != ""
		})
		archiver = archive.NewS3Uploader(client, cfg.AWS.ArchiveBucket, logger)
	}

	rnd := delay.NewRand(cfg.Delivery.RandomSeed)
	a.Calculator = delay.NewCalculator(rnd, mode)
	a.Transits = transit.NewService(a.Store, a.Calculator, types.RealClock{}, logger)

	a.Deliveries = scheduler.NewDeliveryService(scheduler.DeliveryServiceConfig{
		Store:       a.Store,
		Publisher:   a.Publisher,
		Metrics:     metrics,
		BatchSize:   cfg.Delivery.BatchSize,
		ItemTimeout: cfg.Delivery.ItemTimeout,
		Logger:      logger,
	})
	a.Cycle = scheduler.NewCycleService(scheduler.CycleConfig{
		Store:           a.Store,
		Archiver:        archiver,
		Rand:            rnd,
		Metrics:         metrics,
		StalenessWindow: cfg.Cycle.StalenessWindow,
		MatchesPerUser:  cfg.Cycle.MatchesPerUser,
		Concurrency:     cfg.Cycle.Concurrency,
		Logger:          logger,
	})
	a.Runner = NewRunner(cfg, a.Deliveries, a.Cycle, a.Store.JobLocks, a.Store.JobHistory, a.WorkerID, logger)

	return a, nil
}

// NewRunner builds the background Runner. Disabled halves are left nil so
// the Runner skips them.
func NewRunner(
	cfg *config.Config,
	deliveries *scheduler.DeliveryService,
	cycle *scheduler.CycleService,
	locks scheduler.JobLocker,
	history scheduler.JobRecorder,
	workerID string,
	logger *slog.Logger,
) *scheduler.Runner {
	rc := scheduler.RunnerConfig{
		Locks:         locks,
		History:       history,
		Interval:      cfg.Delivery.Interval,
		CycleSchedule: cfg.Cycle.Schedule,
		LockTTL:       cfg.Cycle.LockTTL,
		WorkerID:      workerID,
		Logger:        logger,
	}
	if cfg.Delivery.Enabled {
		rc.Deliveries = deliveries
	}
	if cfg.Cycle.Enabled {
		rc.Cycle = cycle
	}
	return scheduler.NewRunner(rc)
}

// Close releases the publisher and the database pool.
func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing publisher: %w", err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return errors.Join(errs...)
}

// Ping checks database connectivity.
func (a *App) Ping(ctx context.Context) error {
	return a.Pool.Ping(ctx)
}

func loadAWS(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.AWS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
	}
	return awsCfg, nil
}

// workerID identifies this process in job locks: hostname plus a random
// suffix so restarts do not inherit a stale lock owner.
func workerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "penpal"
	}
	return host + "-" + uuid.NewString()[:8]
}

// NewLogger creates a JSON slog.Logger on stdout for the given level name.
func NewLogger(level string) *slog.Logger {
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
