// Package scheduler implements the delivery and daily cycle jobs of the
// pen-pal postal simulation.
//
// This file defines the shared types for the maintenance multiplexer. They
// are used both by the in-process Runner and by the cmd/archiver Lambda
// handler, which receives a MaintenancePayload from an EventBridge rule.
package scheduler

import (
	"context"
	"time"

	"penpal/internal/types"
)

// TaskType identifies which job should handle a maintenance invocation.
type TaskType string

const (
	TaskProcessDeliveries   TaskType = "process_deliveries"
	TaskDailyCycle          TaskType = "daily_cycle"
	TaskArchiveLetters      TaskType = "archive_letters"
	TaskRedistributeLetters TaskType = "redistribute_letters"
)

// MaintenancePayload is the JSON payload sent by EventBridge to the Archiver
// Lambda function. It identifies the task to execute and optionally overrides
// the reference time for manual invocation or backfilling.
//
//	{
//	  "task": "daily_cycle",
//	  "reference_time": "2026-10-19T03:00:00Z"  // optional
//	}
type MaintenancePayload struct {
	Task TaskType `json:"task"`
	// ReferenceTime allows manual invocation to specify a different "now" for
	// deterministic execution and backfilling. If nil, time.Now().UTC() is used.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// Store is the persistence surface used by the jobs. *db.Store satisfies it.
type Store interface {
	types.TransactionManager
	types.RepositoryRegistry
}

// JobLocker grants at most one holder per lock ID until the TTL expires.
type JobLocker interface {
	Acquire(ctx context.Context, lockID, workerID string, now time.Time, ttl time.Duration) (bool, error)
}

// JobRecorder stores the outcome of scheduled runs.
type JobRecorder interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, jobErr error) error
}
