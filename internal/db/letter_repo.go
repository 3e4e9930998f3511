package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"penpal/internal/types"
)

var letterColumns = []string{
	"id", "sender_id", "recipient_id", "kind", "original_letter_id", "content",
	"status", "created_at", "delivered_at", "archived_at",
}

// LetterRepository provides data access for the letters table. Filtered
// reads are assembled with squirrel because every LetterFilter field is
// optional.
type LetterRepository struct {
	db DBTX
}

// NewLetterRepository creates a new LetterRepository backed by the given
// database connection (pool or transaction).
func NewLetterRepository(db DBTX) *LetterRepository {
	return &LetterRepository{db: db}
}

func letterValues(l *types.Letter) []any {
	return []any{
		l.ID, l.SenderID, l.RecipientID, string(l.Kind), l.OriginalLetterID, l.Content,
		string(l.Status), l.CreatedAt, l.DeliveredAt, l.ArchivedAt,
	}
}

// Create inserts a letter.
func (r *LetterRepository) Create(ctx context.Context, l *types.Letter) error {
	sql, args, err := psql.Insert("letters").
		Columns(letterColumns...).
		Values(letterValues(l)...).
		ToSql()
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build letter insert", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create letter", err)
	}
	return nil
}

// CreateDelivery inserts a redistribution copy unless the recipient already
// holds one for the same original (enforced by letters_delivery_once).
func (r *LetterRepository) CreateDelivery(ctx context.Context, l *types.Letter) (bool, error) {
	sql, args, err := psql.Insert("letters").
		Columns(letterColumns...).
		Values(letterValues(l)...).
		Suffix("ON CONFLICT (recipient_id, original_letter_id) WHERE kind = 'delivery' DO NOTHING").
		ToSql()
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build delivery insert", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to create delivery letter", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateStatus applies update when the letter's current status is in
// update.From. delivered_at or archived_at is stamped to match the target
// status.
func (r *LetterRepository) UpdateStatus(ctx context.Context, id string, update types.LetterStatusUpdate) (bool, error) {
	q := psql.Update("letters").
		Set("status", string(update.Status)).
		Where(sq.Eq{"id": id})

	switch update.Status {
	case types.LetterStatusDelivered:
		q = q.Set("delivered_at", update.At)
	case types.LetterStatusArchived:
		q = q.Set("archived_at", update.At)
	}
	if len(update.From) > 0 {
		q = q.Where(sq.Eq{"status": statusStrings(update.From)})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build letter update", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to update letter status", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM letters WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check letter", err)
	}
	if !exists {
		return false, types.NewAppErrorWithDetails(types.ErrCodeNotFoundLetter, "letter not found", nil,
			map[string]any{"letter_id": id})
	}
	return false, nil
}

// Find returns letters matching filter, newest first.
func (r *LetterRepository) Find(ctx context.Context, filter types.LetterFilter) ([]types.Letter, error) {
	q := applyLetterFilter(psql.Select(letterColumns...).From("letters"), filter).
		OrderBy("created_at DESC", "id ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build letter query", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query letters", err)
	}
	defer rows.Close()

	var out []types.Letter
	for rows.Next() {
		l, err := scanLetter(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan letter", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating letters", err)
	}
	return out, nil
}

// DistinctSenders returns the sorted set of sender IDs among letters
// matching filter.
func (r *LetterRepository) DistinctSenders(ctx context.Context, filter types.LetterFilter) ([]string, error) {
	q := applyLetterFilter(psql.Select("sender_id").Distinct().From("letters"), filter).
		OrderBy("sender_id ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build sender query", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query letter senders", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan sender id", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating letter senders", err)
	}
	return out, nil
}

func applyLetterFilter(q sq.SelectBuilder, f types.LetterFilter) sq.SelectBuilder {
	if len(f.IDs) > 0 {
		q = q.Where(sq.Eq{"id": f.IDs})
	}
	if len(f.ExcludeIDs) > 0 {
		q = q.Where(sq.NotEq{"id": f.ExcludeIDs})
	}
	if len(f.Statuses) > 0 {
		q = q.Where(sq.Eq{"status": statusStrings(f.Statuses)})
	}
	if f.Kind != "" {
		q = q.Where(sq.Eq{"kind": string(f.Kind)})
	}
	if f.SenderID != "" {
		q = q.Where(sq.Eq{"sender_id": f.SenderID})
	}
	if f.ExcludeSenderID != "" {
		q = q.Where(sq.NotEq{"sender_id": f.ExcludeSenderID})
	}
	if f.RecipientID != "" {
		q = q.Where(sq.Eq{"recipient_id": f.RecipientID})
	}
	if !f.CreatedAfter.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": f.CreatedAfter})
	}
	if !f.DeliveredBefore.IsZero() {
		q = q.Where(sq.Lt{"delivered_at": f.DeliveredBefore})
	}
	return q
}

func statusStrings(statuses []types.LetterStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanLetter(row pgx.Row) (*types.Letter, error) {
	var (
		l      types.Letter
		kind   string
		status string
	)
	if err := row.Scan(
		&l.ID,
		&l.SenderID,
		&l.RecipientID,
		&kind,
		&l.OriginalLetterID,
		&l.Content,
		&status,
		&l.CreatedAt,
		&l.DeliveredAt,
		&l.ArchivedAt,
	); err != nil {
		return nil, fmt.Errorf("scanning letter: %w", err)
	}
	l.Kind = types.LetterKind(kind)
	l.Status = types.LetterStatus(status)
	return &l, nil
}
