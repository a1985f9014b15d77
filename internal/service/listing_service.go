package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"seatshare/internal/domain"
	"seatshare/internal/logger"
)

const (
	minTotalSeats     = 2
	maxPlanNameLength = 100
	defaultBrowseSize = 50
	maxBrowseSize     = 200
)

// ListingService manages listing records. It never writes seat counters
// after creation; those belong to SeatService.
type ListingService struct {
	store domain.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewListingService(store domain.Store, log *zap.Logger) *ListingService {
	return &ListingService{
		store: store,
		log:   log.Named("listings"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type CreateListingInput struct {
	OwnerID        string
	Service        domain.ServiceType
	PlanName       string
	TotalSeats     int
	AvailableSeats int
	PricePerSeat   float64
}

func (in *CreateListingInput) validate() error {
	in.PlanName = strings.TrimSpace(in.PlanName)
	switch {
	case in.OwnerID == "":
		return fmt.Errorf("%w: owner is required", domain.ErrValidation)
	case !in.Service.Valid():
		return fmt.Errorf("%w: unknown service %q", domain.ErrValidation, in.Service)
	case in.PlanName == "":
		return fmt.Errorf("%w: plan name is required", domain.ErrValidation)
	case len([]rune(in.PlanName)) > maxPlanNameLength:
		return fmt.Errorf("%w: plan name is longer than %d characters", domain.ErrValidation, maxPlanNameLength)
	case in.TotalSeats < minTotalSeats:
		return fmt.Errorf("%w: a plan needs at least %d seats", domain.ErrValidation, minTotalSeats)
	case in.AvailableSeats < 0:
		return fmt.Errorf("%w: available seats cannot be negative", domain.ErrValidation)
	case in.AvailableSeats >= in.TotalSeats:
		return fmt.Errorf("%w: available seats must be fewer than total seats", domain.ErrValidation)
	case in.PricePerSeat <= 0:
		return fmt.Errorf("%w: price per seat must be positive", domain.ErrValidation)
	}
	return nil
}

// CreateListing validates and stores a new listing, then flags the owner as
// an owner. The flag is best effort.
func (s *ListingService) CreateListing(ctx context.Context, in CreateListingInput) (*domain.Listing, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	l := &domain.Listing{
		ID:             uuid.NewString(),
		OwnerID:        in.OwnerID,
		Service:        in.Service,
		PlanName:       in.PlanName,
		TotalSeats:     in.TotalSeats,
		AvailableSeats: in.AvailableSeats,
		PricePerSeat:   in.PricePerSeat,
		IsActive:       true,
		CreatedAt:      s.now(),
	}
	if err := s.store.Listings().Create(ctx, l); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}

	if err := s.store.Users().MarkOwner(ctx, in.OwnerID); err != nil {
		logger.WithContext(ctx, s.log).Warn("mark owner failed",
			zap.String("user_id", in.OwnerID),
			zap.String("listing_id", l.ID),
			zap.Error(err),
		)
	}
	return l, nil
}

func (s *ListingService) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	return s.store.Listings().GetByID(ctx, id)
}

func (s *ListingService) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Listing, error) {
	return s.store.Listings().ListByOwner(ctx, ownerID)
}

// Browse lists listings newest first. An empty filter service matches all.
func (s *ListingService) Browse(ctx context.Context, f domain.ListingFilter) ([]*domain.Listing, error) {
	if f.Service != "" && !f.Service.Valid() {
		return nil, fmt.Errorf("%w: unknown service %q", domain.ErrValidation, f.Service)
	}
	if f.Limit <= 0 {
		f.Limit = defaultBrowseSize
	}
	if f.Limit > maxBrowseSize {
		f.Limit = maxBrowseSize
	}
	return s.store.Listings().Browse(ctx, f)
}

type UpdateListingInput struct {
	PlanName     *string
	PricePerSeat *float64
}

// UpdateListing changes descriptive fields of the owner's listing.
func (s *ListingService) UpdateListing(ctx context.Context, id, ownerID string, in UpdateListingInput) (*domain.Listing, error) {
	if in.PlanName != nil {
		name := strings.TrimSpace(*in.PlanName)
		if name == "" || len([]rune(name)) > maxPlanNameLength {
			return nil, fmt.Errorf("%w: plan name must be 1 to %d characters", domain.ErrValidation, maxPlanNameLength)
		}
		in.PlanName = &name
	}
	if in.PricePerSeat != nil && *in.PricePerSeat <= 0 {
		return nil, fmt.Errorf("%w: price per seat must be positive", domain.ErrValidation)
	}

	return s.mutate(ctx, id, ownerID, func(l *domain.Listing) {
		if in.PlanName != nil {
			l.PlanName = *in.PlanName
		}
		if in.PricePerSeat != nil {
			l.PricePerSeat = *in.PricePerSeat
		}
	})
}

// SetActive hides or shows the owner's listing. Existing members keep their seats.
func (s *ListingService) SetActive(ctx context.Context, id, ownerID string, active bool) (*domain.Listing, error) {
	return s.mutate(ctx, id, ownerID, func(l *domain.Listing) {
		l.IsActive = active
	})
}

func (s *ListingService) mutate(ctx context.Context, id, ownerID string, apply func(*domain.Listing)) (*domain.Listing, error) {
	var out *domain.Listing
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		l, err := tx.Listings().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if l.OwnerID != ownerID {
			return domain.ErrUnauthorized
		}
		apply(l)
		if err := tx.Listings().UpdateDetails(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update listing %s: %w", id, err)
	}
	return out, nil
}

// OwnerSummary aggregates an owner's listings for the dashboard.
type OwnerSummary struct {
	ListingCount    int     `json:"listing_count"`
	ActiveCount     int     `json:"active_count"`
	OccupiedSeats   int     `json:"occupied_seats"`
	JoinedCount     int     `json:"joined_count"`
	MonthlyRevenue  float64 `json:"monthly_revenue"`
	PendingRequests int     `json:"pending_requests"`
}

func (s *ListingService) OwnerSummary(ctx context.Context, ownerID string) (*OwnerSummary, error) {
	listings, err := s.store.Listings().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.Requests().ListPendingForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	sum := &OwnerSummary{ListingCount: len(listings), PendingRequests: len(pending)}
	for _, l := range listings {
		if l.IsActive {
			sum.ActiveCount++
		}
		sum.OccupiedSeats += l.OccupiedSeats()
		sum.JoinedCount += l.JoinedCount
		sum.MonthlyRevenue += l.MonthlyRevenue()
	}
	return sum, nil
}
