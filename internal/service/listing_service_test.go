package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"seatshare/internal/domain"
	"seatshare/internal/service"
)

func TestCreateListing(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := service.NewListingService(s, zap.NewNop())
	owner := createUser(t, s, "owner")

	l, err := svc.CreateListing(ctx, service.CreateListingInput{
		OwnerID:        owner.ID,
		Service:        domain.ServiceSpotify,
		PlanName:       "Family",
		TotalSeats:     6,
		AvailableSeats: 5,
		PricePerSeat:   2.99,
	})
	require.NoError(t, err)
	assert.True(t, l.IsActive)
	assert.Equal(t, 0, l.JoinedCount)

	u, err := s.Users().GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.True(t, u.IsOwner)

	invalid := map[string]service.CreateListingInput{
		"UnknownService":  {OwnerID: owner.ID, Service: "myspace", PlanName: "x", TotalSeats: 4, AvailableSeats: 1, PricePerSeat: 1},
		"NoPlan":          {OwnerID: owner.ID, Service: domain.ServiceSpotify, TotalSeats: 4, AvailableSeats: 1, PricePerSeat: 1},
		"SingleSeat":      {OwnerID: owner.ID, Service: domain.ServiceSpotify, PlanName: "x", TotalSeats: 1, AvailableSeats: 0, PricePerSeat: 1},
		"AllSeatsOffered": {OwnerID: owner.ID, Service: domain.ServiceSpotify, PlanName: "x", TotalSeats: 4, AvailableSeats: 4, PricePerSeat: 1},
		"NegativeSeats":   {OwnerID: owner.ID, Service: domain.ServiceSpotify, PlanName: "x", TotalSeats: 4, AvailableSeats: -1, PricePerSeat: 1},
		"FreeSeat":        {OwnerID: owner.ID, Service: domain.ServiceSpotify, PlanName: "x", TotalSeats: 4, AvailableSeats: 1, PricePerSeat: 0},
	}
	for name, in := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateListing(ctx, in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestUpdateListing(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := service.NewListingService(s, zap.NewNop())
	owner := createUser(t, s, "owner")
	other := createUser(t, s, "other")
	l := createListing(t, s, owner.ID, 4, 2)

	name, price := "Standard", 3.25
	got, err := svc.UpdateListing(ctx, l.ID, owner.ID, service.UpdateListingInput{PlanName: &name, PricePerSeat: &price})
	require.NoError(t, err)
	assert.Equal(t, "Standard", got.PlanName)
	assert.Equal(t, 3.25, got.PricePerSeat)
	assert.Equal(t, 2, got.AvailableSeats)

	_, err = svc.UpdateListing(ctx, l.ID, other.ID, service.UpdateListingInput{PlanName: &name})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	zero := 0.0
	_, err = svc.UpdateListing(ctx, l.ID, owner.ID, service.UpdateListingInput{PricePerSeat: &zero})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err = svc.SetActive(ctx, l.ID, owner.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	active, err := svc.Browse(ctx, domain.ListingFilter{OnlyActive: true})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestBrowse(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := service.NewListingService(s, zap.NewNop())
	owner := createUser(t, s, "owner")
	createListing(t, s, owner.ID, 4, 2)
	createListing(t, s, owner.ID, 4, 0)

	full, err := svc.Browse(ctx, domain.ListingFilter{Service: domain.ServiceNetflix})
	require.NoError(t, err)
	assert.Len(t, full, 2)

	withSeats, err := svc.Browse(ctx, domain.ListingFilter{OnlyWithSeats: true})
	require.NoError(t, err)
	assert.Len(t, withSeats, 1)

	other, err := svc.Browse(ctx, domain.ListingFilter{Service: domain.ServiceSpotify})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestOwnerSummary(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	pub := newPublisher()
	listings := service.NewListingService(s, zap.NewNop())
	seats := service.NewSeatService(s, pub, zap.NewNop())
	owner := createUser(t, s, "owner")
	member := createUser(t, s, "member")
	waiting := createUser(t, s, "waiting")

	l := createListing(t, s, owner.ID, 4, 2)
	createListing(t, s, owner.ID, 2, 1)

	req, err := seats.CreateRequest(ctx, service.CreateRequestInput{ListingID: l.ID, RequesterID: member.ID})
	require.NoError(t, err)
	require.NoError(t, seats.ApproveRequest(ctx, req.ID, owner.ID))
	_, err = seats.CreateRequest(ctx, service.CreateRequestInput{ListingID: l.ID, RequesterID: waiting.ID})
	require.NoError(t, err)

	sum, err := listings.OwnerSummary(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.ListingCount)
	assert.Equal(t, 2, sum.ActiveCount)
	assert.Equal(t, 4, sum.OccupiedSeats)
	assert.Equal(t, 1, sum.JoinedCount)
	assert.InDelta(t, 4*4.5, sum.MonthlyRevenue, 1e-9)
	assert.Equal(t, 1, sum.PendingRequests)
}
