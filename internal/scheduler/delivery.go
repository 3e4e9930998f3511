package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"penpal/internal/events"
	"penpal/internal/types"
)

const (
	// DefaultDeliveryBatchSize bounds the records claimed per pass so a
	// backlog drains over several ticks instead of one long transaction set.
	DefaultDeliveryBatchSize = 500
	// DefaultItemTimeout bounds one record's cascade.
	DefaultItemTimeout = 5 * time.Second
)

// Outcome is the result of processing one due record.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	// OutcomeSkipped means another invocation delivered the record first.
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// DeliveryResult describes what happened to one record.
type DeliveryResult struct {
	TransitID string  `json:"transit_id"`
	LetterID  string  `json:"letter_id"`
	Outcome   Outcome `json:"outcome"`
	Error     string  `json:"error,omitempty"`
}

// DeliverySummary is returned by ProcessReadyDeliveries.
type DeliverySummary struct {
	ProcessedCount int              `json:"processed_count"`
	FailedCount    int              `json:"failed_count"`
	SkippedCount   int              `json:"skipped_count"`
	Results        []DeliveryResult `json:"results"`
}

// DeliveryServiceConfig holds the dependencies for NewDeliveryService.
type DeliveryServiceConfig struct {
	Store       Store
	Publisher   events.Publisher // nil disables events
	Metrics     Metrics          // nil disables metrics
	BatchSize   int
	ItemTimeout time.Duration
	Logger      *slog.Logger
}

// DeliveryService moves due transit records to delivered and cascades the
// change to letters and friend requests.
type DeliveryService struct {
	store       Store
	publisher   events.Publisher
	metrics     Metrics
	batchSize   int
	itemTimeout time.Duration
	logger      *slog.Logger
}

// NewDeliveryService creates a DeliveryService.
func NewDeliveryService(cfg DeliveryServiceConfig) *DeliveryService {
	if cfg.Publisher == nil {
		cfg.Publisher = events.NopPublisher{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultDeliveryBatchSize
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = DefaultItemTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &DeliveryService{
		store:       cfg.Store,
		publisher:   cfg.Publisher,
		metrics:     cfg.Metrics,
		batchSize:   cfg.BatchSize,
		itemTimeout: cfg.ItemTimeout,
		logger:      cfg.Logger,
	}
}

// ProcessReadyDeliveries delivers every record due at now, earliest first.
//
// Each record is delivered in its own transaction. A record that fails stays
// undelivered and is retried on the next pass; the failure is reported in
// the summary and never aborts the batch. Only failing to list due records
// returns an error.
//
// Overlapping invocations are safe: the conditional claim makes exactly one
// transaction per record perform the cascade, and the others report it as
// skipped.
func (d *DeliveryService) ProcessReadyDeliveries(ctx context.Context, now time.Time) (*DeliverySummary, error) {
	start := time.Now()

	due, err := d.store.Transits().FindDue(ctx, now, d.batchSize)
	if err != nil {
		return nil, fmt.Errorf("finding due transit records: %w", err)
	}

	summary := &DeliverySummary{Results: make([]DeliveryResult, 0, len(due))}
	if len(due) == 0 {
		d.metrics.RecordDeliveries(ctx, summary, time.Since(start))
		return summary, nil
	}

	d.logger.InfoContext(ctx, "processing due deliveries",
		"count", len(due),
		"now", now.Format(time.RFC3339),
	)

	for i := range due {
		rec := &due[i]
		result := DeliveryResult{TransitID: rec.ID, LetterID: rec.LetterID}

		delivered, err := d.deliver(ctx, rec, now)
		switch {
		case err != nil:
			result.Outcome = OutcomeFailed
			result.Error = err.Error()
			summary.FailedCount++
			d.logger.ErrorContext(ctx, "failed to deliver transit record",
				"transit_id", rec.ID,
				"letter_id", rec.LetterID,
				"letter_type", rec.LetterType,
				"error", err,
			)
		case !delivered:
			result.Outcome = OutcomeSkipped
			summary.SkippedCount++
		default:
			result.Outcome = OutcomeDelivered
			summary.ProcessedCount++
			d.publish(ctx, rec, now, false)
		}
		summary.Results = append(summary.Results, result)
	}

	d.metrics.RecordDeliveries(ctx, summary, time.Since(start))
	d.logger.InfoContext(ctx, "delivery pass complete",
		"processed", summary.ProcessedCount,
		"failed", summary.FailedCount,
		"skipped", summary.SkippedCount,
		"duration", time.Since(start),
	)
	return summary, nil
}

// DeliverOne delivers a single record on behalf of requesterID, who must be
// its sender or recipient.
//
// Errors: NotFound when the record is absent or belongs to someone else,
// AlreadyDelivered when it was delivered before (or concurrently), NotReady
// when now is before its delivery date.
func (d *DeliveryService) DeliverOne(ctx context.Context, recordID, requesterID string, now time.Time) (*types.TransitRecord, error) {
	if recordID == "" || requesterID == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField,
			"transit id and requester id are required", nil)
	}

	rec, err := d.store.Transits().GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.SenderID != requesterID && rec.RecipientID != requesterID {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundTransit,
			"transit record not found", nil, map[string]any{"transit_id": recordID})
	}
	if rec.IsDelivered {
		return nil, alreadyDelivered(rec)
	}
	if !rec.IsReady(now) {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeConflictNotReady,
			"letter is still in transit", nil,
			map[string]any{
				"transit_id":    rec.ID,
				"delivery_date": rec.DeliveryDate.Format(time.RFC3339),
			})
	}

	start := time.Now()
	delivered, err := d.deliver(ctx, rec, now)
	if err != nil {
		d.metrics.RecordDeliveries(ctx, &DeliverySummary{FailedCount: 1}, time.Since(start))
		return nil, err
	}
	if !delivered {
		return nil, alreadyDelivered(rec)
	}
	d.metrics.RecordDeliveries(ctx, &DeliverySummary{ProcessedCount: 1}, time.Since(start))

	at := now
	rec.IsDelivered = true
	rec.DeliveredAt = &at

	d.logger.InfoContext(ctx, "transit record delivered manually",
		"transit_id", rec.ID,
		"requester_id", requesterID,
	)
	d.publish(ctx, rec, now, true)
	return rec, nil
}

// deliver runs the cascade for rec in one transaction bounded by the item
// timeout. It reports false when another caller already delivered rec.
func (d *DeliveryService) deliver(ctx context.Context, rec *types.TransitRecord, now time.Time) (bool, error) {
	itemCtx, cancel := context.WithTimeout(ctx, d.itemTimeout)
	defer cancel()

	var delivered bool
	err := d.store.RunInTx(itemCtx, func(ctx context.Context, repos types.RepositoryRegistry) error {
		changed, err := repos.Transits().MarkDelivered(ctx, rec.ID, now)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		if rec.LetterType == types.LetterTypeFriendRequest {
			if rec.FriendRequestID == nil {
				return types.NewAppErrorWithDetails(types.ErrCodeNotFoundFriendRequest,
					"friend request transit has no friend request", nil,
					map[string]any{"transit_id": rec.ID})
			}
			if err := repos.FriendRequests().MarkDelivered(ctx, *rec.FriendRequestID, now); err != nil {
				return err
			}
		}

		// A letter already past "sent" keeps its status.
		if _, err := repos.Letters().UpdateStatus(ctx, rec.LetterID, types.LetterStatusUpdate{
			Status: types.LetterStatusDelivered,
			At:     now,
			From:   []types.LetterStatus{types.LetterStatusSent},
		}); err != nil {
			return err
		}

		delivered = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return delivered, nil
}

func (d *DeliveryService) publish(ctx context.Context, rec *types.TransitRecord, now time.Time, manual bool) {
	if err := d.publisher.PublishDelivered(ctx, events.NewLetterDelivered(rec, now, manual)); err != nil {
		d.logger.WarnContext(ctx, "failed to publish delivered event",
			"transit_id", rec.ID,
			"error", err,
		)
	}
}

func alreadyDelivered(rec *types.TransitRecord) error {
	return types.NewAppErrorWithDetails(types.ErrCodeConflictAlreadyDelivered,
		"letter was already delivered", nil, map[string]any{"transit_id": rec.ID})
}
