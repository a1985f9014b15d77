package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"seatshare/internal/domain"
)

const maxReviewCommentLength = 1000

// ReviewService stores reviews and keeps the target user's aggregate rating
// in step with them.
type ReviewService struct {
	store  domain.Store
	events domain.EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

func NewReviewService(store domain.Store, events domain.EventPublisher, log *zap.Logger) *ReviewService {
	return &ReviewService{
		store:  store,
		events: events,
		log:    log.Named("reviews"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateReviewInput struct {
	ReviewerID   string
	TargetUserID string
	ListingID    string
	Rating       int
	Comment      string
	ReviewType   domain.ReviewType
}

func (in *CreateReviewInput) validate() error {
	in.Comment = strings.TrimSpace(in.Comment)
	switch {
	case in.ReviewerID == "" || in.TargetUserID == "" || in.ListingID == "":
		return fmt.Errorf("%w: reviewer, target user and listing are required", domain.ErrValidation)
	case in.ReviewerID == in.TargetUserID:
		return fmt.Errorf("%w: cannot review yourself", domain.ErrValidation)
	case in.Rating < domain.MinRating || in.Rating > domain.MaxRating:
		return fmt.Errorf("%w: rating must be between %d and %d", domain.ErrValidation, domain.MinRating, domain.MaxRating)
	case !in.ReviewType.Valid():
		return fmt.Errorf("%w: unknown review type %q", domain.ErrValidation, in.ReviewType)
	case len([]rune(in.Comment)) > maxReviewCommentLength:
		return fmt.Errorf("%w: comment is longer than %d characters", domain.ErrValidation, maxReviewCommentLength)
	}
	return nil
}

// CreateReview stores the review and recomputes the target's rating and
// review count in the same transaction.
func (s *ReviewService) CreateReview(ctx context.Context, in CreateReviewInput) (*domain.Review, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var (
		review  *domain.Review
		summary domain.RatingSummary
	)
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		// Lock the target first so concurrent reviews recompute in turn.
		if err := tx.Users().LockForUpdate(ctx, in.TargetUserID); err != nil {
			return err
		}
		listing, err := tx.Listings().GetByID(ctx, in.ListingID)
		if err != nil {
			return err
		}
		switch in.ReviewType {
		case domain.ReviewAsSubscriber:
			if in.TargetUserID != listing.OwnerID {
				return fmt.Errorf("%w: subscriber reviews must target the listing owner", domain.ErrValidation)
			}
		case domain.ReviewAsOwner:
			if in.ReviewerID != listing.OwnerID {
				return fmt.Errorf("%w: only the listing owner can review a member", domain.ErrValidation)
			}
		}

		existing, err := tx.Reviews().Find(ctx, in.ReviewerID, in.TargetUserID, in.ListingID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("review %s already exists: %w", existing.ID, domain.ErrConflict)
		}

		review = domain.NewReview(uuid.NewString(), in.ReviewerID, in.TargetUserID, in.ListingID,
			in.Rating, in.Comment, in.ReviewType, s.now())
		if err := tx.Reviews().Create(ctx, review); err != nil {
			return err
		}
		summary, err = refreshRating(ctx, tx, in.TargetUserID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	publish(ctx, s.events, s.log, domain.EventReviewCreated, in.ReviewerID, review.ID,
		[]string{in.TargetUserID}, map[string]string{
			"listing_id":   in.ListingID,
			"rating":       strconv.Itoa(review.Rating),
			"review_count": strconv.Itoa(summary.Count),
		})
	return review, nil
}

// UpdateReview lets the author change rating and comment of their review.
func (s *ReviewService) UpdateReview(ctx context.Context, reviewID, reviewerID string, rating int, comment string) (*domain.Review, error) {
	comment = strings.TrimSpace(comment)
	switch {
	case rating < domain.MinRating || rating > domain.MaxRating:
		return nil, fmt.Errorf("%w: rating must be between %d and %d", domain.ErrValidation, domain.MinRating, domain.MaxRating)
	case len([]rune(comment)) > maxReviewCommentLength:
		return nil, fmt.Errorf("%w: comment is longer than %d characters", domain.ErrValidation, maxReviewCommentLength)
	}

	var review *domain.Review
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		rv, err := s.authored(ctx, tx, reviewID, reviewerID)
		if err != nil {
			return err
		}
		rv.Rating = rating
		rv.Comment = comment
		if err := tx.Reviews().Update(ctx, rv); err != nil {
			return err
		}
		review = rv
		_, err = refreshRating(ctx, tx, rv.TargetUserID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	return review, nil
}

// DeleteReview removes the author's review and recomputes the target's rating.
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID, reviewerID string) error {
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		rv, err := s.authored(ctx, tx, reviewID, reviewerID)
		if err != nil {
			return err
		}
		if err := tx.Reviews().Delete(ctx, rv.ID); err != nil {
			return err
		}
		_, err = refreshRating(ctx, tx, rv.TargetUserID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

// authored loads a review written by reviewerID and locks its target.
func (s *ReviewService) authored(ctx context.Context, tx domain.Store, reviewID, reviewerID string) (*domain.Review, error) {
	rv, err := tx.Reviews().GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if rv.ReviewerID != reviewerID {
		return nil, domain.ErrUnauthorized
	}
	if err := tx.Users().LockForUpdate(ctx, rv.TargetUserID); err != nil {
		return nil, err
	}
	return rv, nil
}

// refreshRating recomputes the aggregate from the stored reviews. The caller
// must hold the target's lock.
func refreshRating(ctx context.Context, tx domain.Store, targetUserID string) (domain.RatingSummary, error) {
	summary, err := tx.Reviews().Summarize(ctx, targetUserID)
	if err != nil {
		return domain.RatingSummary{}, err
	}
	return summary, tx.Users().SetRating(ctx, targetUserID, summary)
}

func (s *ReviewService) ListForUser(ctx context.Context, targetUserID string) ([]*domain.Review, error) {
	return s.store.Reviews().ListByTargetUser(ctx, targetUserID)
}

func (s *ReviewService) HasReviewed(ctx context.Context, reviewerID, targetUserID, listingID string) (bool, error) {
	r, err := s.store.Reviews().Find(ctx, reviewerID, targetUserID, listingID)
	if err != nil {
		return false, err
	}
	return r != nil, nil
}
