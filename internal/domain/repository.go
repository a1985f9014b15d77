package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateProfile(ctx context.Context, id, displayName, bio string) error
	SetAvatarURL(ctx context.Context, id string, url *string) error
	SetRating(ctx context.Context, id string, summary RatingSummary) error
	// LockForUpdate serializes writers of the user's rating aggregate for the
	// rest of the transaction. Returns ErrNotFound for an unknown id.
	LockForUpdate(ctx context.Context, id string) error
	MarkOwner(ctx context.Context, id string) error
}

// ListingFilter narrows Browse results. Zero values disable a filter.
type ListingFilter struct {
	Service       ServiceType
	OnlyActive    bool
	OnlyWithSeats bool
	Limit         int
}

// ListingRepository defines persistence operations for listings.
//
// Seat counters are only changed through ReserveSeat and ReleaseSeat, which are
// single conditional updates.
type ListingRepository interface {
	Create(ctx context.Context, l *Listing) error
	GetByID(ctx context.Context, id string) (*Listing, error)
	UpdateDetails(ctx context.Context, l *Listing) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]*Listing, error)
	Browse(ctx context.Context, f ListingFilter) ([]*Listing, error)

	// ReserveSeat decrements available seats and increments the joined count
	// only if a seat is free. Returns ErrNoSeatsAvailable otherwise.
	ReserveSeat(ctx context.Context, id string) error
	// ReleaseSeat increments available seats (capped at total seats) and
	// decrements the joined count (floored at zero).
	ReleaseSeat(ctx context.Context, id string) error
}

// RequestRepository defines persistence operations for seat requests.
type RequestRepository interface {
	Create(ctx context.Context, r *SeatRequest) error
	GetByID(ctx context.Context, id string) (*SeatRequest, error)
	// Transition moves a request from one status to another in a single
	// conditional update. Returns ErrInvalidState if the stored status is not from.
	Transition(ctx context.Context, id string, from, to RequestStatus, at time.Time) error
	// FindOpen returns the pending or approved request of requesterID for
	// listingID, or nil if there is none.
	FindOpen(ctx context.Context, listingID, requesterID string) (*SeatRequest, error)
	ListByListing(ctx context.Context, listingID string) ([]*SeatRequest, error)
	ListByRequester(ctx context.Context, requesterID string) ([]*SeatRequest, error)
	ListPendingForOwner(ctx context.Context, ownerID string) ([]*SeatRequest, error)
	// Delete removes a single request. Only pending requests are deleted;
	// anything else returns ErrInvalidState.
	Delete(ctx context.Context, id string) error
	DeleteByListing(ctx context.Context, listingID string) (int64, error)
}

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	Create(ctx context.Context, r *Review) error
	GetByID(ctx context.Context, id string) (*Review, error)
	// Find returns the review reviewerID left for targetUserID on listingID, or nil.
	Find(ctx context.Context, reviewerID, targetUserID, listingID string) (*Review, error)
	ListByTargetUser(ctx context.Context, targetUserID string) ([]*Review, error)
	// Update rewrites rating and comment.
	Update(ctx context.Context, r *Review) error
	Delete(ctx context.Context, id string) error
	Summarize(ctx context.Context, targetUserID string) (RatingSummary, error)
}

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	Create(ctx context.Context, c *Conversation) error
	GetByID(ctx context.Context, id string) (*Conversation, error)
	// FindByParticipants looks up the conversation for a canonical pair and
	// listing scope, or returns nil.
	FindByParticipants(ctx context.Context, pair [2]string, listingID *string) (*Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]*Conversation, error)
	// RecordMessage updates the denormalized last-message fields and bumps the
	// unread counter of every participant except the sender.
	RecordMessage(ctx context.Context, conversationID, senderID, preview string, at time.Time) error
	ResetUnread(ctx context.Context, conversationID, userID string) error
	UnreadTotal(ctx context.Context, userID string) (int, error)
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	ListForConversation(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	MarkReadFor(ctx context.Context, conversationID, readerID string) error
	// PruneOld deletes all but the newest keepLimit messages and returns how
	// many were removed.
	PruneOld(ctx context.Context, conversationID string, keepLimit int) (int64, error)
}

// Store groups the repositories of one backend. InTx runs fn against a Store
// whose repositories share a single transaction; it commits when fn returns
// nil and rolls back otherwise.
type Store interface {
	Users() UserRepository
	Listings() ListingRepository
	Requests() RequestRepository
	Reviews() ReviewRepository
	Conversations() ConversationRepository
	Messages() MessageRepository

	InTx(ctx context.Context, fn func(tx Store) error) error
	Close() error
}
