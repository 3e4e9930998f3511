package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"penpal/internal/types"
)

const transitColumns = `id, sender_id, recipient_id, letter_id, friend_request_id,
	sender_country, recipient_country, delivery_time_minutes, delivery_time_days,
	delay_mode, tier_name, delivery_date, sent_at, is_delivered, delivered_at, letter_type`

// TransitRepository provides data access for the transit_records table.
type TransitRepository struct {
	db DBTX
}

// NewTransitRepository creates a new TransitRepository backed by the given
// database connection (pool or transaction).
func NewTransitRepository(db DBTX) *TransitRepository {
	return &TransitRepository{db: db}
}

// Create inserts a transit record. The record is always created undelivered.
func (r *TransitRepository) Create(ctx context.Context, rec *types.TransitRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO transit_records (`+transitColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, FALSE, NULL, $14)`,
		rec.ID,
		rec.SenderID,
		rec.RecipientID,
		rec.LetterID,
		rec.FriendRequestID,
		rec.SenderCountry,
		rec.RecipientCountry,
		rec.DeliveryMinutes,
		rec.DeliveryDays,
		rec.DelayMode,
		rec.TierName,
		rec.DeliveryDate,
		rec.SentAt,
		string(rec.LetterType),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create transit record", err)
	}
	return nil
}

// GetByID returns the record or a NotFoundError.
func (r *TransitRepository) GetByID(ctx context.Context, id string) (*types.TransitRecord, error) {
	rec, err := scanTransit(r.db.QueryRow(ctx,
		`SELECT `+transitColumns+` FROM transit_records WHERE id = $1`, id))
	if err != nil {
		return nil, wrapNotFound(err, types.ErrCodeNotFoundTransit, "transit record")
	}
	return rec, nil
}

// FindDue returns up to limit undelivered records whose delivery date has
// elapsed at now, earliest first.
func (r *TransitRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]types.TransitRecord, error) {
	return r.list(ctx, "failed to query due transit records",
		`SELECT `+transitColumns+` FROM transit_records
		 WHERE is_delivered = FALSE AND delivery_date <= $1
		 ORDER BY delivery_date ASC, id ASC
		 LIMIT $2`,
		now, limit)
}

// FindPendingForUser returns undelivered records addressed to recipientID,
// earliest first.
func (r *TransitRepository) FindPendingForUser(ctx context.Context, recipientID string) ([]types.TransitRecord, error) {
	return r.list(ctx, "failed to query pending transit records",
		`SELECT `+transitColumns+` FROM transit_records
		 WHERE recipient_id = $1 AND is_delivered = FALSE
		 ORDER BY delivery_date ASC, id ASC`,
		recipientID)
}

// MarkDelivered flips is_delivered to true. The conditional WHERE makes the
// flip happen at most once: a concurrent transaction blocks on the row lock
// and then sees is_delivered = TRUE, affecting zero rows.
//
// Returns (false, nil) when the record exists but was already delivered or
// is not yet due, and a NotFoundError when it does not exist.
func (r *TransitRepository) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE transit_records
		 SET is_delivered = TRUE, delivered_at = $2
		 WHERE id = $1 AND is_delivered = FALSE AND delivery_date <= $2`,
		id,
		deliveredAt,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to mark transit record delivered", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transit_records WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check transit record", err)
	}
	if !exists {
		return false, types.NewAppError(types.ErrCodeNotFoundTransit, "transit record not found", nil)
	}
	return false, nil
}

// Stats counts records in transit to userID, sent by userID and delivered
// to userID.
func (r *TransitRepository) Stats(ctx context.Context, userID string) (*types.TransitStats, error) {
	var s types.TransitStats
	err := r.db.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE recipient_id = $1 AND is_delivered = FALSE),
		   COUNT(*) FILTER (WHERE sender_id = $1),
		   COUNT(*) FILTER (WHERE recipient_id = $1 AND is_delivered = TRUE)
		 FROM transit_records
		 WHERE sender_id = $1 OR recipient_id = $1`,
		userID,
	).Scan(&s.InTransitCount, &s.TotalSent, &s.TotalDelivered)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to compute transit stats", err)
	}
	return &s, nil
}

func (r *TransitRepository) list(ctx context.Context, failMsg, sql string, args ...any) ([]types.TransitRecord, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, failMsg, err)
	}
	defer rows.Close()

	var out []types.TransitRecord
	for rows.Next() {
		rec, err := scanTransit(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan transit record", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating transit records", err)
	}
	return out, nil
}

func scanTransit(row pgx.Row) (*types.TransitRecord, error) {
	var (
		rec        types.TransitRecord
		letterType string
	)
	err := row.Scan(
		&rec.ID,
		&rec.SenderID,
		&rec.RecipientID,
		&rec.LetterID,
		&rec.FriendRequestID,
		&rec.SenderCountry,
		&rec.RecipientCountry,
		&rec.DeliveryMinutes,
		&rec.DeliveryDays,
		&rec.DelayMode,
		&rec.TierName,
		&rec.DeliveryDate,
		&rec.SentAt,
		&rec.IsDelivered,
		&rec.DeliveredAt,
		&letterType,
	)
	if err != nil {
		return nil, err
	}
	rec.LetterType = types.LetterType(letterType)
	return &rec, nil
}

// isNoRows reports whether err is pgx.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
