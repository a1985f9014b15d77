package domain

import (
	"context"
	"time"
)

// EventType names a domain event that notifiers may subscribe to.
type EventType string

const (
	EventSeatRequested  EventType = "seat.requested"
	EventSeatApproved   EventType = "seat.approved"
	EventSeatRejected   EventType = "seat.rejected"
	EventSeatLeft       EventType = "seat.left"
	EventListingDeleted EventType = "listing.deleted"
	EventMessageSent    EventType = "message.sent"
	EventReviewCreated  EventType = "review.created"
)

// Event is emitted after a state change has been committed.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	ActorID    string            `json:"actor_id"`
	Recipients []string          `json:"recipients"`
	SubjectID  string            `json:"subject_id"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// EventPublisher hands events to the notification layer. Implementations must
// not block the caller on delivery.
type EventPublisher interface {
	Publish(ctx context.Context, e Event)
}
