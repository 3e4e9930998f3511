// Package main implements the job-runner CLI tool for invoking maintenance
// tasks directly, bypassing the AWS Lambda shim.
//
// This tool is intended for local development, manual backfilling, and
// operational debugging.
//
// Usage:
//
//	go run ./cmd/tools/job-runner --task=process_deliveries
//	go run ./cmd/tools/job-runner --task=daily_cycle --reference-time=2026-01-15T03:00:00Z
//	go run ./cmd/tools/job-runner --dry-run --task=archive_letters
//	go run ./cmd/tools/job-runner --list
//
// The tool reads its configuration from the environment (or a .env file via
// godotenv). In --dry-run mode it prints the JSON payload that the archiver
// Lambda would receive, without executing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"penpal/internal/app"
	"penpal/internal/config"
	"penpal/internal/scheduler"
)

// validTasks is the exhaustive set of TaskType values the archiver supports.
var validTasks = map[scheduler.TaskType]string{
	scheduler.TaskProcessDeliveries:   "Deliver every transit record whose delivery date has passed",
	scheduler.TaskDailyCycle:          "Archive stale letters, then redistribute recent ones",
	scheduler.TaskArchiveLetters:      "Archive delivered letters older than the staleness window",
	scheduler.TaskRedistributeLetters: "Send recent letters to users with shared interests",
}

// options holds the parsed command line.
type options struct {
	Task    scheduler.TaskType
	RefTime *time.Time
	List    bool
	DryRun  bool
}

// services is the subset of app.App the runner dispatches to.
type services struct {
	Deliveries interface {
		ProcessReadyDeliveries(ctx context.Context, now time.Time) (*scheduler.DeliverySummary, error)
	}
	Cycle interface {
		RunDaily(ctx context.Context, now time.Time) (*scheduler.CycleReport, error)
		ArchiveStale(ctx context.Context, now time.Time) (archived, failed int, err error)
		Redistribute(ctx context.Context, now time.Time) (*scheduler.RedistributeReport, error)
	}
	Locks    scheduler.JobLocker
	History  scheduler.JobRecorder
	LockTTL  time.Duration
	WorkerID string
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if opts.List {
		printAvailableTasks(os.Stderr)
		return
	}

	payload := scheduler.MaintenancePayload{Task: opts.Task, ReferenceTime: opts.RefTime}
	if opts.DryRun {
		if err := printPayload(os.Stdout, payload); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "no .env file loaded (this is fine in production): %v\n", err)
	}

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	svc := services{
		Deliveries: deps.Deliveries,
		Cycle:      deps.Cycle,
		Locks:      deps.Store.JobLocks,
		History:    deps.Store.JobHistory,
		LockTTL:    cfg.Cycle.LockTTL,
		WorkerID:   "job-runner-" + deps.WorkerID,
	}

	result, err := executeTask(ctx, payload, svc, logger)
	if err != nil {
		logger.Error("task execution failed", "task", string(payload.Task), "error", err)
		os.Exit(1)
	}
	logger.Info("task execution succeeded", "task", string(payload.Task), "result", result)
}

// parseFlags parses and validates the command line.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("job-runner", flag.ContinueOnError)
	fs.SetOutput(stderr)

	taskFlag := fs.String("task", "", "Task type to execute (e.g., daily_cycle)")
	refTimeFlag := fs.String("reference-time", "", "Override reference time (RFC3339, e.g., 2026-01-15T03:00:00Z)")
	listFlag := fs.Bool("list", false, "List all available task types and exit")
	dryRunFlag := fs.Bool("dry-run", false, "Print the JSON payload without executing")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{List: *listFlag, DryRun: *dryRunFlag}
	if opts.List {
		return opts, nil
	}

	if *taskFlag == "" {
		return opts, fmt.Errorf("--task is required")
	}
	opts.Task = scheduler.TaskType(*taskFlag)
	if _, ok := validTasks[opts.Task]; !ok {
		return opts, fmt.Errorf("unknown task type %q (use --list)", *taskFlag)
	}

	if *refTimeFlag != "" {
		t, err := time.Parse(time.RFC3339, *refTimeFlag)
		if err != nil {
			return opts, fmt.Errorf("invalid --reference-time %q: expected RFC3339: %w", *refTimeFlag, err)
		}
		opts.RefTime = &t
	}
	return opts, nil
}

// executeTask mirrors the archiver handler: lock the daily tasks, record
// job history, dispatch.
func executeTask(ctx context.Context, payload scheduler.MaintenancePayload, svc services, logger *slog.Logger) (string, error) {
	now := time.Now().UTC()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	taskStr := string(payload.Task)
	logger.InfoContext(ctx, "executing task",
		"task", taskStr,
		"reference_time", now.Format(time.RFC3339),
		"worker_id", svc.WorkerID,
	)

	if payload.Task != scheduler.TaskProcessDeliveries {
		lockID := scheduler.DailyLockID(payload.Task, now)
		acquired, err := svc.Locks.Acquire(ctx, lockID, svc.WorkerID, now, svc.LockTTL)
		if err != nil {
			return "", fmt.Errorf("acquiring job lock %s: %w", lockID, err)
		}
		if !acquired {
			return fmt.Sprintf("skipped: lock %s held by another worker", lockID), nil
		}
		logger.InfoContext(ctx, "job lock acquired", "lock_id", lockID)
	}

	jobID, err := svc.History.Start(ctx, taskStr)
	if err != nil {
		logger.WarnContext(ctx, "failed to record job start (continuing anyway)", "error", err)
		jobID = 0
	}

	items, execErr := dispatch(ctx, payload.Task, now, svc)

	status := "success"
	if execErr != nil {
		status = "failed"
	}
	if jobID != 0 {
		if finishErr := svc.History.Finish(ctx, jobID, status, items, execErr); finishErr != nil {
			logger.ErrorContext(ctx, "failed to record job completion", "job_id", jobID, "error", finishErr)
		}
	}

	if execErr != nil {
		return "", fmt.Errorf("task %s failed: %w", taskStr, execErr)
	}
	return fmt.Sprintf("task %s complete: %d items processed", taskStr, items), nil
}

func dispatch(ctx context.Context, task scheduler.TaskType, now time.Time, svc services) (int, error) {
	switch task {
	case scheduler.TaskProcessDeliveries:
		summary, err := svc.Deliveries.ProcessReadyDeliveries(ctx, now)
		if err != nil {
			return 0, err
		}
		return summary.ProcessedCount, nil

	case scheduler.TaskDailyCycle:
		report, err := svc.Cycle.RunDaily(ctx, now)
		if report == nil {
			return 0, err
		}
		return report.Archived + report.LettersRedistributed, err

	case scheduler.TaskArchiveLetters:
		archived, _, err := svc.Cycle.ArchiveStale(ctx, now)
		return archived, err

	case scheduler.TaskRedistributeLetters:
		report, err := svc.Cycle.Redistribute(ctx, now)
		if report == nil {
			return 0, err
		}
		return report.LettersRedistributed, err

	default:
		return 0, fmt.Errorf("task %q cannot be dispatched", task)
	}
}

// printAvailableTasks prints all valid task types and their descriptions,
// sorted by name.
func printAvailableTasks(w io.Writer) {
	fmt.Fprintf(w, "Available task types:\n\n")

	tasks := make([]scheduler.TaskType, 0, len(validTasks))
	for t := range validTasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i] < tasks[j] })

	maxLen := 0
	for _, t := range tasks {
		maxLen = max(maxLen, len(t))
	}
	for _, t := range tasks {
		fmt.Fprintf(w, "  %-*s  %s\n", maxLen, string(t), validTasks[t])
	}
	fmt.Fprintln(w)
}

// printPayload writes the payload as indented JSON for piping into a
// manual Lambda invocation.
func printPayload(w io.Writer, payload scheduler.MaintenancePayload) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
