package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron"

	"penpal/internal/types"
)

const (
	DefaultDeliveryInterval = 60 * time.Second
	DefaultCycleSchedule    = "0 0 3 * * *"
	DefaultCycleLockTTL     = 23 * time.Hour

	jobDailyCycle = string(TaskDailyCycle)
)

var (
	ErrRunnerAlreadyStarted = errors.New("scheduler: runner already started")
	ErrRunnerNotStarted     = errors.New("scheduler: runner not started")
)

// RunnerConfig holds the dependencies for NewRunner. Locks and History may be
// nil, in which case daily runs are neither locked nor recorded.
type RunnerConfig struct {
	Deliveries    *DeliveryService
	Cycle         *CycleService
	Locks         JobLocker
	History       JobRecorder
	Interval      time.Duration
	CycleSchedule string // six-field cron spec with seconds, UTC
	LockTTL       time.Duration
	WorkerID      string
	Clock         types.Clock
	Logger        *slog.Logger
}

// Runner drives delivery passes on a fixed interval and the daily cycle on a
// cron schedule. Start and Stop are guarded by a state flag, so a second
// Start fails regardless of which caller issues it.
type Runner struct {
	deliveries *DeliveryService
	cycle      *CycleService
	locks      JobLocker
	history    JobRecorder

	interval time.Duration
	schedule string
	lockTTL  time.Duration
	workerID string
	clock    types.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	cron    *cron.Cron
	wg      sync.WaitGroup
}

// NewRunner creates a stopped Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultDeliveryInterval
	}
	if cfg.CycleSchedule == "" {
		cfg.CycleSchedule = DefaultCycleSchedule
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultCycleLockTTL
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "penpal-runner"
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		deliveries: cfg.Deliveries,
		cycle:      cfg.Cycle,
		locks:      cfg.Locks,
		history:    cfg.History,
		interval:   cfg.Interval,
		schedule:   cfg.CycleSchedule,
		lockTTL:    cfg.LockTTL,
		workerID:   cfg.WorkerID,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
}

// Running reports whether the Runner has been started and not stopped.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start runs one delivery pass immediately and then one every interval, and
// schedules the daily cycle. The loops live until Stop is called or ctx is
// cancelled.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrRunnerAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)

	var c *cron.Cron
	if r.cycle != nil {
		c = cron.NewWithLocation(time.UTC)
		if err := c.AddFunc(r.schedule, func() { r.cronTick(loopCtx) }); err != nil {
			cancel()
			return fmt.Errorf("scheduling daily cycle %q: %w", r.schedule, err)
		}
		c.Start()
	}

	r.running = true
	r.cancel = cancel
	r.cron = c

	r.wg.Add(1)
	go r.loop(loopCtx)

	r.logger.InfoContext(ctx, "scheduler started",
		"interval", r.interval,
		"cycle_schedule", r.schedule,
		"worker_id", r.workerID,
	)
	return nil
}

// Stop halts the ticker and cron schedule and waits for in-flight passes to
// finish or for ctx to expire.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return ErrRunnerNotStarted
	}
	r.running = false
	r.cancel()
	if r.cron != nil {
		r.cron.Stop()
	}
	r.cancel = nil
	r.cron = nil
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.InfoContext(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for scheduler passes: %w", ctx.Err())
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()

	r.deliveryTick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.deliveryTick(ctx)
		}
	}
}

func (r *Runner) deliveryTick(ctx context.Context) {
	if _, err := r.TriggerDeliveries(ctx, r.clock.Now()); err != nil && ctx.Err() == nil {
		r.logger.ErrorContext(ctx, "delivery pass failed", "error", err)
	}
}

func (r *Runner) cronTick(ctx context.Context) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	if _, err := r.RunDailyCycle(ctx, r.clock.Now()); err != nil {
		if types.CodeOf(err) == types.ErrCodeConflictJobLocked {
			r.logger.InfoContext(ctx, "daily cycle already claimed", "error", err)
			return
		}
		r.logger.ErrorContext(ctx, "daily cycle failed", "error", err)
	}
}

// TriggerDeliveries runs one delivery pass synchronously.
func (r *Runner) TriggerDeliveries(ctx context.Context, now time.Time) (*DeliverySummary, error) {
	if r.deliveries == nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "delivery service not configured", nil)
	}
	return r.deliveries.ProcessReadyDeliveries(ctx, now)
}

// DailyLockID is the job lock guarding task for now's UTC date. The API
// runner and the maintenance Lambda share it.
func DailyLockID(task TaskType, now time.Time) string {
	return fmt.Sprintf("%s:%s", task, now.UTC().Format("2006-01-02"))
}

// RunDailyCycle runs the daily cycle for now's UTC date. Only one run per
// date succeeds across workers while the lock is held; others receive a
// conflict_job_locked error.
func (r *Runner) RunDailyCycle(ctx context.Context, now time.Time) (*CycleReport, error) {
	if r.cycle == nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "cycle service not configured", nil)
	}

	lockID := DailyLockID(TaskDailyCycle, now)
	if r.locks != nil {
		acquired, err := r.locks.Acquire(ctx, lockID, r.workerID, now, r.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquiring %s: %w", lockID, err)
		}
		if !acquired {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeConflictJobLocked,
				"daily cycle already running or completed", nil,
				map[string]any{"lock_id": lockID})
		}
	}

	var historyID int64
	if r.history != nil {
		id, err := r.history.Start(ctx, jobDailyCycle)
		if err != nil {
			r.logger.WarnContext(ctx, "failed to record job start", "job", jobDailyCycle, "error", err)
		} else {
			historyID = id
		}
	}

	report, runErr := r.cycle.RunDaily(ctx, now)

	if r.history != nil && historyID != 0 {
		status, items := "success", 0
		if report != nil {
			items = report.Archived + report.LettersRedistributed
		}
		if runErr != nil {
			status = "failed"
		}
		if err := r.history.Finish(ctx, historyID, status, items, runErr); err != nil {
			r.logger.WarnContext(ctx, "failed to record job finish", "job", jobDailyCycle, "error", err)
		}
	}

	return report, runErr
}
