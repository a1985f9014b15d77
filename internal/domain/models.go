package domain

import (
	"sort"
	"time"
)

// ServiceType names the subscription product a listing shares.
type ServiceType string

const (
	ServiceNetflix         ServiceType = "netflix"
	ServiceSpotify         ServiceType = "spotify"
	ServiceYouTubePremium  ServiceType = "youtube_premium"
	ServiceDisneyPlus      ServiceType = "disney_plus"
	ServiceAppleOne        ServiceType = "apple_one"
	ServiceHBOMax          ServiceType = "hbo_max"
	ServiceAmazonPrime     ServiceType = "amazon_prime"
	ServiceXboxGamePass    ServiceType = "xbox_game_pass"
	ServicePlayStationPlus ServiceType = "playstation_plus"
	ServiceMicrosoft365    ServiceType = "microsoft_365"
	ServiceOther           ServiceType = "other"
)

var knownServices = map[ServiceType]struct{}{
	ServiceNetflix: {}, ServiceSpotify: {}, ServiceYouTubePremium: {}, ServiceDisneyPlus: {},
	ServiceAppleOne: {}, ServiceHBOMax: {}, ServiceAmazonPrime: {}, ServiceXboxGamePass: {},
	ServicePlayStationPlus: {}, ServiceMicrosoft365: {}, ServiceOther: {},
}

// Valid reports whether s is one of the supported services.
func (s ServiceType) Valid() bool {
	_, ok := knownServices[s]
	return ok
}

// User represents an application user.
type User struct {
	ID             string    `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	AvatarURL      *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	Bio            string    `db:"bio" json:"bio"`
	Rating         float64   `db:"rating" json:"rating"`
	ReviewCount    int       `db:"review_count" json:"review_count"`
	IsOwner        bool      `db:"is_owner" json:"is_owner"`
	EmailVerified  bool      `db:"email_verified" json:"email_verified"`
	PhoneVerified  bool      `db:"phone_verified" json:"phone_verified"`
	IDVerified     bool      `db:"id_verified" json:"id_verified"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// TrustScore derives a 0..100 reputation value from verification flags and ratings.
func (u *User) TrustScore() int {
	score := 20.0
	if u.EmailVerified {
		score += 20
	}
	if u.PhoneVerified {
		score += 20
	}
	if u.IDVerified {
		score += 25
	}
	if u.ReviewCount > 0 {
		score += u.Rating / 5 * 15
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

// Listing is an owner's offer of spare seats in a paid subscription plan.
type Listing struct {
	ID             string      `db:"id" json:"id"`
	OwnerID        string      `db:"owner_id" json:"owner_id"`
	Service        ServiceType `db:"service" json:"service"`
	PlanName       string      `db:"plan_name" json:"plan_name"`
	TotalSeats     int         `db:"total_seats" json:"total_seats"`
	AvailableSeats int         `db:"available_seats" json:"available_seats"`
	PricePerSeat   float64     `db:"price_per_seat" json:"price_per_seat"`
	IsActive       bool        `db:"is_active" json:"is_active"`
	JoinedCount    int         `db:"joined_count" json:"joined_count"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// OccupiedSeats counts seats that are not open for requests, the owner's included.
func (l *Listing) OccupiedSeats() int {
	return l.TotalSeats - l.AvailableSeats
}

// MonthlyRevenue is the owner's income from occupied seats at the listed price.
func (l *Listing) MonthlyRevenue() float64 {
	return float64(l.OccupiedSeats()) * l.PricePerSeat
}

// RequestStatus is the lifecycle state of a SeatRequest.
//
// pending -> approved | rejected (owner action), approved -> cancelled (requester left).
// "cancelled" is only reached from "approved" and therefore always means the
// requester left a seat they held.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:  {RequestApproved, RequestRejected},
	RequestApproved: {RequestCancelled},
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s RequestStatus) Terminal() bool {
	return len(requestTransitions[s]) == 0
}

// SeatRequest is one user's ask to occupy one seat in a listing.
type SeatRequest struct {
	ID            string        `db:"id" json:"id"`
	ListingID     string        `db:"listing_id" json:"listing_id"`
	RequesterID   string        `db:"requester_id" json:"requester_id"`
	RequesterName string        `db:"requester_name" json:"requester_name"`
	Status        RequestStatus `db:"status" json:"status"`
	Message       string        `db:"message" json:"message"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	RespondedAt   *time.Time    `db:"responded_at" json:"responded_at,omitempty"`
}

// ReviewType says in which role the target user is being reviewed.
type ReviewType string

const (
	ReviewAsOwner      ReviewType = "as_owner"
	ReviewAsSubscriber ReviewType = "as_subscriber"
)

func (t ReviewType) Valid() bool {
	return t == ReviewAsOwner || t == ReviewAsSubscriber
}

const (
	MinRating = 1
	MaxRating = 5
)

// Review is feedback left by one user about another, scoped to a listing.
type Review struct {
	ID           string     `db:"id" json:"id"`
	ReviewerID   string     `db:"reviewer_id" json:"reviewer_id"`
	TargetUserID string     `db:"target_user_id" json:"target_user_id"`
	ListingID    string     `db:"listing_id" json:"listing_id"`
	Rating       int        `db:"rating" json:"rating"`
	Comment      string     `db:"comment" json:"comment"`
	ReviewType   ReviewType `db:"review_type" json:"review_type"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// NewReview builds a review with the rating clamped into [MinRating, MaxRating].
func NewReview(id, reviewerID, targetUserID, listingID string, rating int, comment string, reviewType ReviewType, at time.Time) *Review {
	if rating < MinRating {
		rating = MinRating
	}
	if rating > MaxRating {
		rating = MaxRating
	}
	return &Review{
		ID:           id,
		ReviewerID:   reviewerID,
		TargetUserID: targetUserID,
		ListingID:    listingID,
		Rating:       rating,
		Comment:      comment,
		ReviewType:   reviewType,
		CreatedAt:    at,
	}
}

// RatingSummary is the aggregate of every review a user has received.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// SummarizeRatings averages the ratings of the given reviews.
func SummarizeRatings(reviews []*Review) RatingSummary {
	if len(reviews) == 0 {
		return RatingSummary{}
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return RatingSummary{Average: float64(sum) / float64(len(reviews)), Count: len(reviews)}
}

// Conversation is a two-party messaging thread, optionally scoped to a listing.
type Conversation struct {
	ID               string            `db:"id" json:"id"`
	Participants     [2]string         `json:"participants"`
	ParticipantNames map[string]string `json:"participant_names"`
	ListingID        *string           `db:"listing_id" json:"listing_id,omitempty"`
	ServiceName      *string           `db:"service_name" json:"service_name,omitempty"`
	LastMessage      string            `db:"last_message" json:"last_message"`
	LastMessageAt    *time.Time        `db:"last_message_at" json:"last_message_at,omitempty"`
	LastSenderID     *string           `db:"last_sender_id" json:"last_sender_id,omitempty"`
	UnreadCount      map[string]int    `json:"unread_count"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
}

// CanonicalPair orders two participant ids so that lookups do not depend on who
// started the conversation.
func CanonicalPair(a, b string) [2]string {
	pair := []string{a, b}
	sort.Strings(pair)
	return [2]string{pair[0], pair[1]}
}

// HasParticipant reports whether userID is one of the two parties.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// OtherParticipant returns the party that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// SameListing compares optional listing scopes: both absent, or both the same id.
func SameListing(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Message represents a single chat message.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	SenderID       string    `db:"sender_id" json:"sender_id"`
	Content        string    `db:"content" json:"content"` // encrypted at rest
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	IsRead         bool      `db:"is_read" json:"is_read"`
}
