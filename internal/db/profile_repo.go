package db

import (
	"context"

	"penpal/internal/types"
)

// ProfileRepository reads the country and interests of users.
type ProfileRepository struct {
	db DBTX
}

// NewProfileRepository creates a new ProfileRepository backed by the given
// database connection (pool or transaction).
func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetProfile returns the profile or a NotFoundError.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*types.UserProfile, error) {
	var p types.UserProfile
	err := r.db.QueryRow(ctx,
		`SELECT id, country, interests, last_active_at FROM users WHERE id = $1`,
		userID,
	).Scan(&p.ID, &p.Country, &p.Interests, &p.LastActiveAt)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundUser, "user not found", err,
				map[string]any{"user_id": userID})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load user profile", err)
	}
	return &p, nil
}

// GetProfiles returns the profiles that exist among userIDs keyed by ID.
// Missing users are omitted.
func (r *ProfileRepository) GetProfiles(ctx context.Context, userIDs []string) (map[string]types.UserProfile, error) {
	out := make(map[string]types.UserProfile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, country, interests, last_active_at FROM users WHERE id = ANY($1)`,
		userIDs,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query user profiles", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p types.UserProfile
		if err := rows.Scan(&p.ID, &p.Country, &p.Interests, &p.LastActiveAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan user profile", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating user profiles", err)
	}
	return out, nil
}
