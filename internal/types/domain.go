package types

import "time"

// LetterType governs the cascade performed when a transit record is delivered.
type LetterType string

const (
	LetterTypeFriendRequest LetterType = "friend_request"
	LetterTypeRegular       LetterType = "regular_letter"
	LetterTypeRandomMatch   LetterType = "random_match"
)

// Valid reports whether t is one of the known letter types.
func (t LetterType) Valid() bool {
	switch t {
	case LetterTypeFriendRequest, LetterTypeRegular, LetterTypeRandomMatch:
		return true
	}
	return false
}

// LetterStatus is the lifecycle state of a Letter.
type LetterStatus string

const (
	LetterStatusSent      LetterStatus = "sent"
	LetterStatusDelivered LetterStatus = "delivered"
	LetterStatusReceived  LetterStatus = "received"
	LetterStatusRead      LetterStatus = "read"
	LetterStatusArchived  LetterStatus = "archived"
)

// LetterKind distinguishes letters written by users from the copies created
// by the daily redistribution.
type LetterKind string

const (
	LetterKindOriginal LetterKind = "original"
	LetterKindDelivery LetterKind = "delivery"
)

// FriendRequestStatus is the acceptance state of a friend request. Delivery
// does not change it.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestDeclined FriendRequestStatus = "declined"
)

// TransitRecord is the persisted state of a letter awaiting simulated
// delivery. Countries and delay are snapshots taken at send time.
type TransitRecord struct {
	ID               string     `json:"id" db:"id"`
	SenderID         string     `json:"sender_id" db:"sender_id"`
	RecipientID      string     `json:"recipient_id" db:"recipient_id"`
	LetterID         string     `json:"letter_id" db:"letter_id"`
	FriendRequestID  *string    `json:"friend_request_id,omitempty" db:"friend_request_id"`
	SenderCountry    string     `json:"sender_country" db:"sender_country"`
	RecipientCountry string     `json:"recipient_country" db:"recipient_country"`
	DeliveryMinutes  int        `json:"delivery_time_minutes" db:"delivery_time_minutes"`
	DeliveryDays     int        `json:"delivery_time_days" db:"delivery_time_days"`
	DelayMode        string     `json:"delay_mode" db:"delay_mode"`
	TierName         string     `json:"tier_name" db:"tier_name"`
	DeliveryDate     time.Time  `json:"delivery_date" db:"delivery_date"`
	SentAt           time.Time  `json:"sent_at" db:"sent_at"`
	IsDelivered      bool       `json:"is_delivered" db:"is_delivered"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	LetterType       LetterType `json:"letter_type" db:"letter_type"`
}

// IsReady reports whether the record's delivery date has elapsed at now.
func (r *TransitRecord) IsReady(now time.Time) bool {
	return !now.Before(r.DeliveryDate)
}

// Letter is a pen-pal letter. RecipientID is nil for open letters that only
// reach readers through redistribution.
type Letter struct {
	ID               string       `json:"id" db:"id"`
	SenderID         string       `json:"sender_id" db:"sender_id"`
	RecipientID      *string      `json:"recipient_id,omitempty" db:"recipient_id"`
	Kind             LetterKind   `json:"kind" db:"kind"`
	OriginalLetterID *string      `json:"original_letter_id,omitempty" db:"original_letter_id"`
	Content          string       `json:"content" db:"content"`
	Status           LetterStatus `json:"status" db:"status"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	DeliveredAt      *time.Time   `json:"delivered_at,omitempty" db:"delivered_at"`
	ArchivedAt       *time.Time   `json:"archived_at,omitempty" db:"archived_at"`
}

// FriendRequest gates a new pen-pal connection behind a delivered letter.
type FriendRequest struct {
	ID          string              `json:"id" db:"id"`
	SenderID    string              `json:"sender_id" db:"sender_id"`
	RecipientID string              `json:"recipient_id" db:"recipient_id"`
	LetterID    string              `json:"letter_id" db:"letter_id"`
	Status      FriendRequestStatus `json:"status" db:"status"`
	IsDelivered bool                `json:"is_delivered" db:"is_delivered"`
	DeliveredAt *time.Time          `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
}

// UserProfile is the read-only slice of a user needed for delay computation
// and matching.
type UserProfile struct {
	ID           string     `json:"id" db:"id"`
	Country      string     `json:"country" db:"country"`
	Interests    []string   `json:"interests" db:"interests"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty" db:"last_active_at"`
}

// TransitStats summarizes a user's transit activity.
type TransitStats struct {
	InTransitCount int `json:"in_transit_count"`
	TotalSent      int `json:"total_sent"`
	TotalDelivered int `json:"total_delivered"`
}
