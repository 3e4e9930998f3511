package db

import (
	"context"
	"time"

	"penpal/internal/types"
)

// FriendRequestRepository provides data access for the friend_requests table.
// Delivery only touches is_delivered and delivered_at; acceptance status is
// owned by the friendship flow.
type FriendRequestRepository struct {
	db DBTX
}

// NewFriendRequestRepository creates a new FriendRequestRepository backed by
// the given database connection (pool or transaction).
func NewFriendRequestRepository(db DBTX) *FriendRequestRepository {
	return &FriendRequestRepository{db: db}
}

// Create inserts a pending, undelivered friend request.
func (r *FriendRequestRepository) Create(ctx context.Context, fr *types.FriendRequest) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO friend_requests (id, sender_id, recipient_id, letter_id, status, is_delivered, created_at)
		 VALUES ($1, $2, $3, $4, $5, FALSE, $6)`,
		fr.ID,
		fr.SenderID,
		fr.RecipientID,
		fr.LetterID,
		string(fr.Status),
		fr.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create friend request", err)
	}
	return nil
}

// Get returns the friend request or a NotFoundError.
func (r *FriendRequestRepository) Get(ctx context.Context, id string) (*types.FriendRequest, error) {
	var (
		fr     types.FriendRequest
		status string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, sender_id, recipient_id, letter_id, status, is_delivered, delivered_at, created_at
		 FROM friend_requests WHERE id = $1`,
		id,
	).Scan(&fr.ID, &fr.SenderID, &fr.RecipientID, &fr.LetterID, &status, &fr.IsDelivered, &fr.DeliveredAt, &fr.CreatedAt)
	if err != nil {
		return nil, wrapNotFound(err, types.ErrCodeNotFoundFriendRequest, "friend request")
	}
	fr.Status = types.FriendRequestStatus(status)
	return &fr, nil
}

// MarkDelivered makes the request visible to its recipient. Repeat calls
// keep the original delivered_at.
func (r *FriendRequestRepository) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE friend_requests
		 SET is_delivered = TRUE, delivered_at = $2
		 WHERE id = $1 AND is_delivered = FALSE`,
		id,
		deliveredAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark friend request delivered", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM friend_requests WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to check friend request", err)
	}
	if !exists {
		return types.NewAppErrorWithDetails(types.ErrCodeNotFoundFriendRequest, "friend request not found", nil,
			map[string]any{"friend_request_id": id})
	}
	return nil
}
