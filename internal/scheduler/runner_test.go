package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penpal/internal/storetest"
	"penpal/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeLocker struct {
	mu    sync.Mutex
	held  map[string]string
	calls []string
	err   error
}

func (l *fakeLocker) Acquire(_ context.Context, lockID, workerID string, _ time.Time, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, lockID)
	if l.err != nil {
		return false, l.err
	}
	if l.held == nil {
		l.held = make(map[string]string)
	}
	if _, ok := l.held[lockID]; ok {
		return false, nil
	}
	l.held[lockID] = workerID
	return true, nil
}

type jobRun struct {
	jobType string
	status  string
	items   int
	err     error
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []jobRun
}

func (r *fakeRecorder) Start(_ context.Context, jobType string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, jobRun{jobType: jobType})
	return int64(len(r.runs)), nil
}

func (r *fakeRecorder) Finish(_ context.Context, id int64, status string, items int, jobErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run := &r.runs[id-1]
	run.status = status
	run.items = items
	run.err = jobErr
	return nil
}

func newTestRunner(store *storetest.Store, cfg RunnerConfig) *Runner {
	cfg.Deliveries = newTestDeliveryService(store, nil, nil)
	cfg.Cycle = newTestCycleService(store, nil, CycleConfig{})
	if cfg.Clock == nil {
		cfg.Clock = fixedClock{testNow}
	}
	cfg.Logger = testLogger()
	return NewRunner(cfg)
}

func TestRunner_StartStop(t *testing.T) {
	store := storetest.New()
	seedTransit(store, "t1", types.LetterTypeRegular, testNow.Add(-time.Minute))
	r := newTestRunner(store, RunnerConfig{Interval: time.Hour})

	require.NoError(t, r.Start(context.Background()))
	assert.True(t, r.Running())
	assert.ErrorIs(t, r.Start(context.Background()), ErrRunnerAlreadyStarted)

	// The first pass runs immediately.
	require.Eventually(t, func() bool {
		rec, _ := store.Transit("t1")
		return rec.IsDelivered
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
	assert.False(t, r.Running())
	assert.ErrorIs(t, r.Stop(ctx), ErrRunnerNotStarted)

	// A stopped runner can be started again.
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop(ctx))
}

func TestRunner_TicksUntilStopped(t *testing.T) {
	store := storetest.New()
	r := newTestRunner(store, RunnerConfig{Interval: 10 * time.Millisecond})

	require.NoError(t, r.Start(context.Background()))
	seedTransit(store, "late", types.LetterTypeRegular, testNow.Add(-time.Second))

	require.Eventually(t, func() bool {
		rec, _ := store.Transit("late")
		return rec.IsDelivered
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, r.Stop(context.Background()))
}

func TestRunner_InvalidSchedule(t *testing.T) {
	r := newTestRunner(storetest.New(), RunnerConfig{CycleSchedule: "every day at noon"})

	err := r.Start(context.Background())
	require.Error(t, err)
	assert.False(t, r.Running())
	assert.ErrorIs(t, r.Stop(context.Background()), ErrRunnerNotStarted)
}

func TestRunner_TriggerDeliveries(t *testing.T) {
	store := storetest.New()
	seedTransit(store, "t1", types.LetterTypeRegular, testNow)
	r := newTestRunner(store, RunnerConfig{})

	summary, err := r.TriggerDeliveries(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProcessedCount)
}

func TestRunner_RunDailyCycleLocksPerDate(t *testing.T) {
	store := storetest.New()
	seedAuthors(store)
	locks := &fakeLocker{}
	history := &fakeRecorder{}
	r := newTestRunner(store, RunnerConfig{Locks: locks, History: history})

	report, err := r.RunDailyCycle(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 12, report.LettersRedistributed)

	_, err = r.RunDailyCycle(context.Background(), testNow.Add(2*time.Hour))
	assert.Equal(t, types.ErrCodeConflictJobLocked, types.CodeOf(err))

	_, err = r.RunDailyCycle(context.Background(), testNow.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"daily_cycle:2026-10-19",
		"daily_cycle:2026-10-19",
		"daily_cycle:2026-10-20",
	}, locks.calls)

	require.Len(t, history.runs, 2)
	assert.Equal(t, jobRun{jobType: "daily_cycle", status: "success", items: 12}, history.runs[0])
	assert.Equal(t, "success", history.runs[1].status)
}

func TestRunner_RunDailyCycleLockError(t *testing.T) {
	locks := &fakeLocker{err: errors.New("db down")}
	history := &fakeRecorder{}
	r := newTestRunner(storetest.New(), RunnerConfig{Locks: locks, History: history})

	_, err := r.RunDailyCycle(context.Background(), testNow)
	require.Error(t, err)
	assert.Empty(t, history.runs, "no history without the lock")
}

func TestRunner_RunDailyCycleRecordsFailure(t *testing.T) {
	store := storetest.New()
	store.FailOn(storetest.OpLetterFind, "", errors.New("db down"))
	history := &fakeRecorder{}
	r := newTestRunner(store, RunnerConfig{History: history})

	_, err := r.RunDailyCycle(context.Background(), testNow)
	require.Error(t, err)
	require.Len(t, history.runs, 1)
	assert.Equal(t, "failed", history.runs[0].status)
	assert.Error(t, history.runs[0].err)
}

func TestRunner_NotConfigured(t *testing.T) {
	r := NewRunner(RunnerConfig{Logger: testLogger()})

	_, err := r.TriggerDeliveries(context.Background(), testNow)
	assert.Equal(t, types.ErrCodeInternalUnexpected, types.CodeOf(err))
	_, err = r.RunDailyCycle(context.Background(), testNow)
	assert.Equal(t, types.ErrCodeInternalUnexpected, types.CodeOf(err))
}
