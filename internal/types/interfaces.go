package types

import (
	"context"
	"time"
)

// TransitRepository persists transit records.
type TransitRepository interface {
	Create(ctx context.Context, r *TransitRecord) error
	GetByID(ctx context.Context, id string) (*TransitRecord, error)
	// FindDue returns undelivered records with delivery_date <= now, earliest first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]TransitRecord, error)
	// FindPendingForUser returns undelivered records addressed to recipientID, earliest first.
	FindPendingForUser(ctx context.Context, recipientID string) ([]TransitRecord, error)
	// MarkDelivered flips is_delivered from false to true. It reports false,
	// without error, when another caller already delivered the record.
	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (bool, error)
	Stats(ctx context.Context, userID string) (*TransitStats, error)
}

// LetterFilter selects letters. Zero-valued fields do not constrain the query.
type LetterFilter struct {
	IDs             []string
	ExcludeIDs      []string
	Statuses        []LetterStatus
	Kind            LetterKind
	SenderID        string
	ExcludeSenderID string
	RecipientID     string
	CreatedAfter    time.Time
	DeliveredBefore time.Time
	Limit           uint64
}

// LetterStatusUpdate moves a letter to Status at time At. The update only
// applies while the letter's current status is one of From.
type LetterStatusUpdate struct {
	Status LetterStatus
	At     time.Time
	From   []LetterStatus
}

// LetterRepository persists letters.
type LetterRepository interface {
	Create(ctx context.Context, l *Letter) error
	// CreateDelivery inserts a redistribution copy. It reports false when the
	// recipient already holds a copy of the same original.
	CreateDelivery(ctx context.Context, l *Letter) (bool, error)
	// UpdateStatus returns NotFoundError when the letter is absent and false
	// when its current status is not in update.From.
	UpdateStatus(ctx context.Context, id string, update LetterStatusUpdate) (bool, error)
	Find(ctx context.Context, filter LetterFilter) ([]Letter, error)
	DistinctSenders(ctx context.Context, filter LetterFilter) ([]string, error)
}

// FriendRequestRepository persists friend requests.
type FriendRequestRepository interface {
	Create(ctx context.Context, fr *FriendRequest) error
	// MarkDelivered returns NotFoundError when the request is absent and is a
	// no-op when it is already delivered.
	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error
}

// ProfileRepository reads user profiles.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
	GetProfiles(ctx context.Context, userIDs []string) (map[string]UserProfile, error)
}

// RepositoryRegistry provides access to repositories bound to one connection
// or transaction.
type RepositoryRegistry interface {
	Transits() TransitRepository
	Letters() LetterRepository
	FriendRequests() FriendRequestRepository
	Profiles() ProfileRepository
}

// TransactionManager provides transactional execution across repositories.
// fn's error rolls the transaction back.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryRegistry) error) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
