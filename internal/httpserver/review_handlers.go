package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"seatshare/internal/domain"
	"seatshare/internal/service"
)

type createReviewRequest struct {
	TargetUserID string `json:"target_user_id" validate:"required"`
	ListingID    string `json:"listing_id" validate:"required"`
	Rating       int    `json:"rating" validate:"min=1,max=5"`
	Comment      string `json:"comment" validate:"max=1000"`
	ReviewType   string `json:"review_type" validate:"required,oneof=as_owner as_subscriber"`
}

type updateReviewRequest struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

type reviewedResponse struct {
	Reviewed bool `json:"reviewed"`
}

// @Summary      Leave a review
// @Tags         reviews
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body createReviewRequest true "Review"
// @Success      201  {object}  domain.Review
// @Failure      400  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /reviews [post]
func handleCreateReview(reviews *service.ReviewService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createReviewRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		rv, err := reviews.CreateReview(r.Context(), service.CreateReviewInput{
			ReviewerID:   CurrentUser(r).ID,
			TargetUserID: req.TargetUserID,
			ListingID:    req.ListingID,
			Rating:       req.Rating,
			Comment:      req.Comment,
			ReviewType:   domain.ReviewType(req.ReviewType),
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, rv)
	}
}

// @Summary      Reviews about a user
// @Tags         reviews
// @Security     BearerAuth
// @Produce      json
// @Param        userID path string true "User ID"
// @Success      200  {array}   domain.Review
// @Router       /users/{userID}/reviews [get]
func handleUserReviews(reviews *service.ReviewService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := reviews.ListForUser(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(res))
	}
}

// @Summary      Has the caller reviewed a user for a listing
// @Tags         reviews
// @Security     BearerAuth
// @Produce      json
// @Param        target_user_id query string true "Reviewed user"
// @Param        listing_id     query string true "Listing"
// @Success      200  {object}  reviewedResponse
// @Router       /reviews/check [get]
func handleHasReviewed(reviews *service.ReviewService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ok, err := reviews.HasReviewed(r.Context(), CurrentUser(r).ID, q.Get("target_user_id"), q.Get("listing_id"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, reviewedResponse{Reviewed: ok})
	}
}

// @Summary      Edit your review
// @Tags         reviews
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        reviewID path string true "Review ID"
// @Param        input body updateReviewRequest true "New rating and comment"
// @Success      200  {object}  domain.Review
// @Failure      403  {object}  errorResponse
// @Router       /reviews/{reviewID} [patch]
func handleUpdateReview(reviews *service.ReviewService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateReviewRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		rv, err := reviews.UpdateReview(r.Context(), chi.URLParam(r, "reviewID"), CurrentUser(r).ID, req.Rating, req.Comment)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, rv)
	}
}

// @Summary      Delete your review
// @Tags         reviews
// @Security     BearerAuth
// @Param        reviewID path string true "Review ID"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Router       /reviews/{reviewID} [delete]
func handleDeleteReview(reviews *service.ReviewService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reviews.DeleteReview(r.Context(), chi.URLParam(r, "reviewID"), CurrentUser(r).ID); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
