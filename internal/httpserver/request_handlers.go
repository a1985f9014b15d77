package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"seatshare/internal/service"
)

type createRequestRequest struct {
	Message string `json:"message" validate:"max=500"`
}

type leaveRequest struct {
	ListingID string `json:"listing_id" validate:"required"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// @Summary      Request a seat
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        listingID path string true "Listing ID"
// @Param        input body createRequestRequest false "Note to the owner"
// @Success      201  {object}  domain.SeatRequest
// @Failure      409  {object}  errorResponse
// @Router       /listings/{listingID}/requests [post]
func handleCreateRequest(seats *service.SeatService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequestRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, r, log, err)
				return
			}
		}
		user := CurrentUser(r)
		sr, err := seats.CreateRequest(r.Context(), service.CreateRequestInput{
			ListingID:     chi.URLParam(r, "listingID"),
			RequesterID:   user.ID,
			RequesterName: user.DisplayName,
			Message:       req.Message,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, sr)
	}
}

// @Summary      Requests of a listing
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        listingID path string true "Listing ID"
// @Success      200  {array}   domain.SeatRequest
// @Failure      403  {object}  errorResponse
// @Router       /listings/{listingID}/requests [get]
func handleListingRequests(seats *service.SeatService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := seats.ListRequestsForListing(r.Context(), chi.URLParam(r, "listingID"), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(res))
	}
}

// @Summary      My requests
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   domain.SeatRequest
// @Router       /requests/mine [get]
func handleMyRequests(seats *service.SeatService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := seats.ListMyRequests(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(res))
	}
}

// @Summary      Pending requests on my listings
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   domain.SeatRequest
// @Router       /requests/incoming [get]
func handleIncomingRequests(seats *service.SeatService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := seats.ListIncomingRequests(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(res))
	}
}

// @Summary      Approve request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        requestID path string true "Request ID"
// @Success      200  {object}  statusResponse
// @Failure      409  {object}  errorResponse
// @Router       /requests/{requestID}/approve [post]
func handleApproveRequest(seats *service.SeatService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := seats.ApproveRequest(r.Context(), chi.URLParam(r, "requestID"), CurrentUser(r).ID); err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "approved"})
	}
}

// @Summary      Reject request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        requestID path string true "Request ID"
// @Success      200  {object}  statusResponse
// @Failure      409  {object}  errorResponse
// @Router       /requests/{requestID}/reject [post]
func handleRejectRequest(seats *service.SeatService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := seats.RejectRequest(r.Context(), chi.URLParam(r, "requestID"), CurrentUser(r).ID); err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "rejected"})
	}
}

// @Summary      Leave subscription
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        requestID path string true "Request ID"
// @Param        input body leaveRequest true "Listing the request belongs to"
// @Success      200  {object}  statusResponse
// @Failure      409  {object}  errorResponse
// @Router       /requests/{requestID}/leave [post]
func handleLeaveSubscription(seats *service.SeatService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req leaveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := seats.LeaveSubscription(r.Context(), chi.URLParam(r, "requestID"), req.ListingID, CurrentUser(r).ID); err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "cancelled"})
	}
}

// @Summary      Withdraw a pending request
// @Tags         requests
// @Security     BearerAuth
// @Param        requestID path string true "Request ID"
// @Success      204
// @Failure      409  {object}  errorResponse
// @Router       /requests/{requestID} [delete]
func handleWithdrawRequest(seats *service.SeatService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := seats.WithdrawRequest(r.Context(), chi.URLParam(r, "requestID"), CurrentUser(r).ID); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
