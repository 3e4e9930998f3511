// Package events publishes notifications about delivered letters to
// downstream consumers. Publishing is best effort: callers log failures and
// never roll back delivery state because of them.
package events

import (
	"context"
	"time"

	"penpal/internal/types"
)

// EventLetterDelivered is the type attribute attached to every delivered event.
const EventLetterDelivered = "letter.delivered"

// LetterDelivered is emitted once per transit record, after the delivery
// transaction commits.
type LetterDelivered struct {
	TransitID       string           `json:"transit_id"`
	LetterID        string           `json:"letter_id"`
	SenderID        string           `json:"sender_id"`
	RecipientID     string           `json:"recipient_id"`
	FriendRequestID *string          `json:"friend_request_id,omitempty"`
	LetterType      types.LetterType `json:"letter_type"`
	DeliveryDate    time.Time        `json:"delivery_date"`
	DeliveredAt     time.Time        `json:"delivered_at"`
	Manual          bool             `json:"manual"`
}

// NewLetterDelivered builds the event for rec delivered at deliveredAt.
func NewLetterDelivered(rec *types.TransitRecord, deliveredAt time.Time, manual bool) LetterDelivered {
	return LetterDelivered{
		TransitID:       rec.ID,
		LetterID:        rec.LetterID,
		SenderID:        rec.SenderID,
		RecipientID:     rec.RecipientID,
		FriendRequestID: rec.FriendRequestID,
		LetterType:      rec.LetterType,
		DeliveryDate:    rec.DeliveryDate,
		DeliveredAt:     deliveredAt,
		Manual:          manual,
	}
}

// Publisher sends delivered events to a broker.
type Publisher interface {
	PublishDelivered(ctx context.Context, evt LetterDelivered) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) PublishDelivered(context.Context, LetterDelivered) error { return nil }
func (NopPublisher) Close() error                                           { return nil }
