package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"seatshare/internal/domain"
	"seatshare/internal/logger"
)

const maxRequestMessageLength = 500

// SeatService is the only writer of listing seat counters and request
// statuses. Every compound mutation runs in one store transaction, and seat
// counters change only through conditional updates.
type SeatService struct {
	store  domain.Store
	events domain.EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

func NewSeatService(store domain.Store, events domain.EventPublisher, log *zap.Logger) *SeatService {
	return &SeatService{
		store:  store,
		events: events,
		log:    log.Named("seats"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateRequestInput struct {
	ListingID     string
	RequesterID   string
	RequesterName string
	Message       string
}

// CreateRequest records a pending request. Seat counters are untouched until
// the owner approves.
func (s *SeatService) CreateRequest(ctx context.Context, in CreateRequestInput) (*domain.SeatRequest, error) {
	in.Message = strings.TrimSpace(in.Message)
	if in.ListingID == "" || in.RequesterID == "" {
		return nil, fmt.Errorf("%w: listing and requester are required", domain.ErrValidation)
	}
	if len([]rune(in.Message)) > maxRequestMessageLength {
		return nil, fmt.Errorf("%w: message is longer than %d characters", domain.ErrValidation, maxRequestMessageLength)
	}

	var (
		req     *domain.SeatRequest
		listing *domain.Listing
	)
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		var err error
		listing, err = tx.Listings().GetByID(ctx, in.ListingID)
		if err != nil {
			return err
		}
		if !listing.IsActive {
			return fmt.Errorf("listing %s is inactive: %w", listing.ID, domain.ErrNotFound)
		}
		if listing.OwnerID == in.RequesterID {
			return fmt.Errorf("%w: cannot request a seat in your own listing", domain.ErrValidation)
		}
		if listing.AvailableSeats == 0 {
			return domain.ErrNoSeatsAvailable
		}

		open, err := tx.Requests().FindOpen(ctx, listing.ID, in.RequesterID)
		if err != nil {
			return err
		}
		if open != nil {
			return fmt.Errorf("request %s is already %s: %w", open.ID, open.Status, domain.ErrConflict)
		}

		req = &domain.SeatRequest{
			ID:            uuid.NewString(),
			ListingID:     listing.ID,
			RequesterID:   in.RequesterID,
			RequesterName: in.RequesterName,
			Status:        domain.RequestPending,
			Message:       in.Message,
			CreatedAt:     s.now(),
		}
		return tx.Requests().Create(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	publish(ctx, s.events, s.log, domain.EventSeatRequested, in.RequesterID, req.ID,
		[]string{listing.OwnerID}, map[string]string{
			"listing_id":     listing.ID,
			"service":        string(listing.Service),
			"requester_name": in.RequesterName,
		})
	return req, nil
}

// ApproveRequest moves a pending request to approved and takes one seat, both
// or neither. Approving an already approved request is a no-op.
func (s *SeatService) ApproveRequest(ctx context.Context, requestID, approverID string) error {
	var (
		req     *domain.SeatRequest
		listing *domain.Listing
		noop    bool
	)
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		var err error
		req, listing, err = s.loadForOwner(ctx, tx, requestID, approverID)
		if err != nil {
			return err
		}

		switch req.Status {
		case domain.RequestApproved:
			noop = true
			return nil
		case domain.RequestPending:
		default:
			return fmt.Errorf("cannot approve a %s request: %w", req.Status, domain.ErrInvalidState)
		}
		if listing.AvailableSeats == 0 {
			return domain.ErrNoSeatsAvailable
		}

		at := s.now()
		if err := tx.Requests().Transition(ctx, req.ID, domain.RequestPending, domain.RequestApproved, at); err != nil {
			if !errors.Is(err, domain.ErrInvalidState) {
				return err
			}
			// Lost a race against another owner action; approved means it was us.
			current, getErr := tx.Requests().GetByID(ctx, req.ID)
			if getErr == nil && current.Status == domain.RequestApproved {
				noop = true
				return nil
			}
			return err
		}
		if err := tx.Listings().ReserveSeat(ctx, listing.ID); err != nil {
			return err
		}
		req.Status = domain.RequestApproved
		req.RespondedAt = &at
		return nil
	})
	if err != nil {
		return fmt.Errorf("approve request %s: %w", requestID, err)
	}
	if noop {
		logger.WithContext(ctx, s.log).Info("request already approved", zap.String("request_id", requestID))
		return nil
	}

	publish(ctx, s.events, s.log, domain.EventSeatApproved, approverID, req.ID,
		[]string{req.RequesterID}, map[string]string{
			"listing_id": listing.ID,
			"service":    string(listing.Service),
		})
	return nil
}

// RejectRequest moves a pending request to rejected. Seat counters are not
// touched.
func (s *SeatService) RejectRequest(ctx context.Context, requestID, approverID string) error {
	var (
		req     *domain.SeatRequest
		listing *domain.Listing
	)
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		var err error
		req, listing, err = s.loadForOwner(ctx, tx, requestID, approverID)
		if err != nil {
			return err
		}
		if req.Status != domain.RequestPending {
			return fmt.Errorf("cannot reject a %s request: %w", req.Status, domain.ErrInvalidState)
		}
		at := s.now()
		if err := tx.Requests().Transition(ctx, req.ID, domain.RequestPending, domain.RequestRejected, at); err != nil {
			return err
		}
		req.Status = domain.RequestRejected
		req.RespondedAt = &at
		return nil
	})
	if err != nil {
		return fmt.Errorf("reject request %s: %w", requestID, err)
	}

	publish(ctx, s.events, s.log, domain.EventSeatRejected, approverID, req.ID,
		[]string{req.RequesterID}, map[string]string{
			"listing_id": listing.ID,
			"service":    string(listing.Service),
		})
	return nil
}

// LeaveSubscription ends an approved membership: the request becomes
// cancelled and the seat is released, both or neither.
func (s *SeatService) LeaveSubscription(ctx context.Context, requestID, listingID, callerID string) error {
	var listing *domain.Listing
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		req, err := tx.Requests().GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.ListingID != listingID {
			return fmt.Errorf("request %s does not belong to listing %s: %w", requestID, listingID, domain.ErrNotFound)
		}
		if req.RequesterID != callerID {
			return domain.ErrUnauthorized
		}
		if req.Status != domain.RequestApproved {
			return fmt.Errorf("cannot leave with a %s request: %w", req.Status, domain.ErrInvalidState)
		}
		listing, err = tx.Listings().GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		if err := tx.Requests().Transition(ctx, req.ID, domain.RequestApproved, domain.RequestCancelled, s.now()); err != nil {
			return err
		}
		return tx.Listings().ReleaseSeat(ctx, listingID)
	})
	if err != nil {
		return fmt.Errorf("leave subscription %s: %w", requestID, err)
	}

	publish(ctx, s.events, s.log, domain.EventSeatLeft, callerID, requestID,
		[]string{listing.OwnerID}, map[string]string{
			"listing_id": listing.ID,
			"service":    string(listing.Service),
		})
	return nil
}

// WithdrawRequest deletes the caller's own pending request. Seat counters are
// untouched since pending requests never hold a seat.
func (s *SeatService) WithdrawRequest(ctx context.Context, requestID, callerID string) error {
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		req, err := tx.Requests().GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.RequesterID != callerID {
			return domain.ErrUnauthorized
		}
		if req.Status != domain.RequestPending {
			return fmt.Errorf("cannot withdraw a %s request: %w", req.Status, domain.ErrInvalidState)
		}
		return tx.Requests().Delete(ctx, req.ID)
	})
	if err != nil {
		return fmt.Errorf("withdraw request %s: %w", requestID, err)
	}
	return nil
}

// DeleteListing removes a listing and every request that references it.
func (s *SeatService) DeleteListing(ctx context.Context, listingID, ownerID string) error {
	var (
		listing *domain.Listing
		members []string
		removed int64
	)
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		var err error
		listing, err = tx.Listings().GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		if listing.OwnerID != ownerID {
			return domain.ErrUnauthorized
		}

		reqs, err := tx.Requests().ListByListing(ctx, listingID)
		if err != nil {
			return err
		}
		for _, r := range reqs {
			if r.Status == domain.RequestApproved || r.Status == domain.RequestPending {
				members = append(members, r.RequesterID)
			}
		}

		if removed, err = tx.Requests().DeleteByListing(ctx, listingID); err != nil {
			return err
		}
		return tx.Listings().Delete(ctx, listingID)
	})
	if err != nil {
		return fmt.Errorf("delete listing %s: %w", listingID, err)
	}

	logger.WithContext(ctx, s.log).Info("listing deleted",
		zap.String("listing_id", listingID),
		zap.Int64("requests_removed", removed),
	)
	publish(ctx, s.events, s.log, domain.EventListingDeleted, ownerID, listingID, members,
		map[string]string{
			"service":   string(listing.Service),
			"plan_name": listing.PlanName,
		})
	return nil
}

// ListRequestsForListing returns every request of a listing to its owner.
func (s *SeatService) ListRequestsForListing(ctx context.Context, listingID, ownerID string) ([]*domain.SeatRequest, error) {
	listing, err := s.store.Listings().GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != ownerID {
		return nil, domain.ErrUnauthorized
	}
	return s.store.Requests().ListByListing(ctx, listingID)
}

func (s *SeatService) ListMyRequests(ctx context.Context, requesterID string) ([]*domain.SeatRequest, error) {
	return s.store.Requests().ListByRequester(ctx, requesterID)
}

// ListIncomingRequests returns pending requests across all of the owner's listings.
func (s *SeatService) ListIncomingRequests(ctx context.Context, ownerID string) ([]*domain.SeatRequest, error) {
	return s.store.Requests().ListPendingForOwner(ctx, ownerID)
}

func (s *SeatService) loadForOwner(ctx context.Context, tx domain.Store, requestID, ownerID string) (*domain.SeatRequest, *domain.Listing, error) {
	req, err := tx.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	listing, err := tx.Listings().GetByID(ctx, req.ListingID)
	if err != nil {
		return nil, nil, err
	}
	if listing.OwnerID != ownerID {
		return nil, nil, domain.ErrUnauthorized
	}
	return req, listing, nil
}
