// Package main is the entrypoint for the maintenance Lambda function.
//
// The Lambda acts as a maintenance multiplexer. EventBridge rules send JSON
// payloads naming a TaskType and the handler routes execution to the
// matching scheduler service. Deployments that do not run the API's
// in-process runner schedule the delivery pass and the daily cycle here.
//
// Handler flow:
//  1. Parse MaintenancePayload from EventBridge.
//  2. Acquire the per-day job lock for daily tasks.
//  3. Switch on TaskType and call the appropriate service method.
//  4. Record job history for operational visibility.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"penpal/internal/app"
	"penpal/internal/config"
	"penpal/internal/scheduler"
)

// DeliveryProcessor runs one delivery pass.
type DeliveryProcessor interface {
	ProcessReadyDeliveries(ctx context.Context, now time.Time) (*scheduler.DeliverySummary, error)
}

// CycleRunner runs the daily cycle or one of its phases.
type CycleRunner interface {
	RunDaily(ctx context.Context, now time.Time) (*scheduler.CycleReport, error)
	ArchiveStale(ctx context.Context, now time.Time) (archived, failed int, err error)
	Redistribute(ctx context.Context, now time.Time) (*scheduler.RedistributeReport, error)
}

// Handler holds the dependencies for the maintenance Lambda handler function.
type Handler struct {
	Deliveries DeliveryProcessor
	Cycle      CycleRunner
	JobLock    scheduler.JobLocker
	JobHistory scheduler.JobRecorder
	LockTTL    time.Duration
	WorkerID   string
	Logger     *slog.Logger
}

// Handle processes a MaintenancePayload from EventBridge, routing to the
// appropriate service method based on the TaskType.
func (h *Handler) Handle(ctx context.Context, payload scheduler.MaintenancePayload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now().UTC()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	taskStr := string(payload.Task)
	logger.InfoContext(ctx, "maintenance handler invoked",
		"task", taskStr,
		"reference_time", now.Format(time.RFC3339),
		"worker_id", h.WorkerID,
	)

	if payload.Task == "" {
		return "", fmt.Errorf("empty task type in maintenance payload")
	}

	// Delivery passes are idempotent and run every minute; only the daily
	// tasks take a lock.
	if payload.Task != scheduler.TaskProcessDeliveries {
		lockID := scheduler.DailyLockID(payload.Task, now)
		acquired, err := h.JobLock.Acquire(ctx, lockID, h.WorkerID, now, h.LockTTL)
		if err != nil {
			logger.ErrorContext(ctx, "failed to acquire job lock", "lock_id", lockID, "error", err)
			return "", fmt.Errorf("acquiring job lock %s: %w", lockID, err)
		}
		if !acquired {
			logger.InfoContext(ctx, "job lock not acquired, another worker is processing", "lock_id", lockID)
			return fmt.Sprintf("skipped: lock %s held by another worker", lockID), nil
		}
	}

	// A failed history start is non-fatal; jobID=0 skips Finish.
	jobID, err := h.JobHistory.Start(ctx, taskStr)
	if err != nil {
		logger.ErrorContext(ctx, "failed to start job history", "task", taskStr, "error", err)
		jobID = 0
	}

	items, execErr := h.dispatch(ctx, payload.Task, now)

	status := "success"
	if execErr != nil {
		status = "failed"
	}
	if jobID != 0 {
		if finishErr := h.JobHistory.Finish(ctx, jobID, status, items, execErr); finishErr != nil {
			logger.ErrorContext(ctx, "failed to finish job history",
				"job_id", jobID,
				"task", taskStr,
				"error", finishErr,
			)
		}
	}

	if execErr != nil {
		logger.ErrorContext(ctx, "task execution failed",
			"task", taskStr,
			"error", execErr,
			"items_before_error", items,
		)
		return "", fmt.Errorf("task %s failed: %w", taskStr, execErr)
	}

	result := fmt.Sprintf("task %s complete: %d items processed", taskStr, items)
	logger.InfoContext(ctx, result, "task", taskStr, "items", items)
	return result, nil
}

// dispatch routes a TaskType to the appropriate service method.
// Returns the number of items processed and any error.
func (h *Handler) dispatch(ctx context.Context, task scheduler.TaskType, now time.Time) (int, error) {
	switch task {
	case scheduler.TaskProcessDeliveries:
		summary, err := h.Deliveries.ProcessReadyDeliveries(ctx, now)
		if err != nil {
			return 0, err
		}
		return summary.ProcessedCount, nil

	case scheduler.TaskDailyCycle:
		report, err := h.Cycle.RunDaily(ctx, now)
		if report == nil {
			return 0, err
		}
		return report.Archived + report.LettersRedistributed, err

	case scheduler.TaskArchiveLetters:
		archived, _, err := h.Cycle.ArchiveStale(ctx, now)
		return archived, err

	case scheduler.TaskRedistributeLetters:
		report, err := h.Cycle.Redistribute(ctx, now)
		if report == nil {
			return 0, err
		}
		return report.LettersRedistributed, err

	default:
		return 0, fmt.Errorf("unknown task type: %q", task)
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	logger.Info("maintenance Lambda initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger = app.NewLogger(cfg.LogLevel)

	deps, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}

	handler := &Handler{
		Deliveries: deps.Deliveries,
		Cycle:      deps.Cycle,
		JobLock:    deps.Store.JobLocks,
		JobHistory: deps.Store.JobHistory,
		LockTTL:    cfg.Cycle.LockTTL,
		WorkerID:   deps.WorkerID,
		Logger:     logger,
	}

	logger.Info("maintenance Lambda initialized", "worker_id", deps.WorkerID, "build", cfg.Build)

	lambda.Start(handler.Handle)
}
