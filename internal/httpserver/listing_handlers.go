package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"seatshare/internal/domain"
	"seatshare/internal/service"
)

type createListingRequest struct {
	Service        string  `json:"service" validate:"required"`
	PlanName       string  `json:"plan_name" validate:"required,max=100"`
	TotalSeats     int     `json:"total_seats" validate:"gte=2"`
	AvailableSeats int     `json:"available_seats" validate:"gte=0"`
	PricePerSeat   float64 `json:"price_per_seat" validate:"gt=0"`
}

type updateListingRequest struct {
	PlanName     *string  `json:"plan_name" validate:"omitempty,max=100"`
	PricePerSeat *float64 `json:"price_per_seat" validate:"omitempty,gt=0"`
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// @Summary      Browse listings
// @Description  Active listings, newest first
// @Tags         listings
// @Security     BearerAuth
// @Produce      json
// @Param        service     query string false "Service filter"
// @Param        with_seats  query bool   false "Only listings with free seats"
// @Param        limit       query int    false "Page size (max 200)"
// @Success      200  {array}   domain.Listing
// @Router       /listings [get]
func handleBrowseListings(listings *service.ListingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		withSeats, _ := strconv.ParseBool(q.Get("with_seats"))

		res, err := listings.Browse(r.Context(), domain.ListingFilter{
			Service:       domain.ServiceType(q.Get("service")),
			OnlyActive:    true,
			OnlyWithSeats: withSeats,
			Limit:         limit,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(res))
	}
}

// @Summary      Create listing
// @Tags         listings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body createListingRequest true "Listing"
// @Success      201  {object}  domain.Listing
// @Failure      400  {object}  errorResponse
// @Router       /listings [post]
func handleCreateListing(listings *service.ListingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createListingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		l, err := listings.CreateListing(r.Context(), service.CreateListingInput{
			OwnerID:        CurrentUser(r).ID,
			Service:        domain.ServiceType(req.Service),
			PlanName:       req.PlanName,
			TotalSeats:     req.TotalSeats,
			AvailableSeats: req.AvailableSeats,
			PricePerSeat:   req.PricePerSeat,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

// @Summary      My listings
// @Tags         listings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   domain.Listing
// @Router       /listings/mine [get]
func handleMyListings(listings *service.ListingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := listings.ListByOwner(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(res))
	}
}

// @Summary      Owner dashboard summary
// @Tags         listings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  service.OwnerSummary
// @Router       /listings/summary [get]
func handleOwnerSummary(listings *service.ListingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := listings.OwnerSummary(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// @Summary      Get listing
// @Tags         listings
// @Security     BearerAuth
// @Produce      json
// @Param        listingID path string true "Listing ID"
// @Success      200  {object}  domain.Listing
// @Failure      404  {object}  errorResponse
// @Router       /listings/{listingID} [get]
func handleGetListing(listings *service.ListingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := listings.GetListing(r.Context(), chi.URLParam(r, "listingID"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// @Summary      Update listing
// @Description  Only plan name and price can change; seat counters are managed by requests
// @Tags         listings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        listingID path string true "Listing ID"
// @Param        input body updateListingRequest true "Fields to change"
// @Success      200  {object}  domain.Listing
// @Failure      403  {object}  errorResponse
// @Router       /listings/{listingID} [patch]
func handleUpdateListing(listings *service.ListingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateListingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		l, err := listings.UpdateListing(r.Context(), chi.URLParam(r, "listingID"), CurrentUser(r).ID, service.UpdateListingInput{
			PlanName:     req.PlanName,
			PricePerSeat: req.PricePerSeat,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// @Summary      Show or hide listing
// @Tags         listings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        listingID path string true "Listing ID"
// @Param        input body setActiveRequest true "Visibility"
// @Success      200  {object}  domain.Listing
// @Router       /listings/{listingID}/active [put]
func handleSetListingActive(listings *service.ListingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setActiveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		l, err := listings.SetActive(r.Context(), chi.URLParam(r, "listingID"), CurrentUser(r).ID, *req.IsActive)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// @Summary      Delete listing
// @Description  Removes the listing and all of its requests; members are notified
// @Tags         listings
// @Security     BearerAuth
// @Param        listingID path string true "Listing ID"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Router       /listings/{listingID} [delete]
func handleDeleteListing(seats *service.SeatService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := seats.DeleteListing(r.Context(), chi.URLParam(r, "listingID"), CurrentUser(r).ID); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
