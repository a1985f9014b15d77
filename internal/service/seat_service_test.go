package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"seatshare/internal/domain"
	"seatshare/internal/service"
)

type seatFixture struct {
	store   domain.Store
	pub     *MockPublisher
	svc     *service.SeatService
	owner   *domain.User
	member  *domain.User
	listing *domain.Listing
}

func newSeatFixture(t *testing.T, total, available int) *seatFixture {
	t.Helper()
	s := newStore(t)
	pub := newPublisher()
	owner := createUser(t, s, "owner")
	member := createUser(t, s, "member")
	return &seatFixture{
		store:   s,
		pub:     pub,
		svc:     service.NewSeatService(s, pub, zap.NewNop()),
		owner:   owner,
		member:  member,
		listing: createListing(t, s, owner.ID, total, available),
	}
}

func (f *seatFixture) request(t *testing.T, requester *domain.User) *domain.SeatRequest {
	t.Helper()
	req, err := f.svc.CreateRequest(context.Background(), service.CreateRequestInput{
		ListingID:     f.listing.ID,
		RequesterID:   requester.ID,
		RequesterName: requester.DisplayName,
		Message:       "hi",
	})
	require.NoError(t, err)
	return req
}

func TestCreateRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("Pending", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		req := f.request(t, f.member)

		assert.Equal(t, domain.RequestPending, req.Status)
		assert.Nil(t, req.RespondedAt)
		l := getListing(t, f.store, f.listing.ID)
		assert.Equal(t, 2, l.AvailableSeats, "seats are only taken on approval")

		evs := f.pub.events(domain.EventSeatRequested)
		require.Len(t, evs, 1)
		assert.Equal(t, []string{f.owner.ID}, evs[0].Recipients)
	})

	t.Run("NoSeatsAvailable", func(t *testing.T) {
		f := newSeatFixture(t, 4, 0)
		_, err := f.svc.CreateRequest(ctx, service.CreateRequestInput{ListingID: f.listing.ID, RequesterID: f.member.ID})
		assert.ErrorIs(t, err, domain.ErrNoSeatsAvailable)
	})

	t.Run("ListingMissing", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		_, err := f.svc.CreateRequest(ctx, service.CreateRequestInput{ListingID: "missing", RequesterID: f.member.ID})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ListingInactive", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		f.listing.IsActive = false
		require.NoError(t, f.store.Listings().UpdateDetails(ctx, f.listing))

		_, err := f.svc.CreateRequest(ctx, service.CreateRequestInput{ListingID: f.listing.ID, RequesterID: f.member.ID})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("OwnListing", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		_, err := f.svc.CreateRequest(ctx, service.CreateRequestInput{ListingID: f.listing.ID, RequesterID: f.owner.ID})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("DuplicateOpenRequest", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		f.request(t, f.member)

		_, err := f.svc.CreateRequest(ctx, service.CreateRequestInput{ListingID: f.listing.ID, RequesterID: f.member.ID})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("RequestAgainAfterRejection", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		first := f.request(t, f.member)
		require.NoError(t, f.svc.RejectRequest(ctx, first.ID, f.owner.ID))

		second := f.request(t, f.member)
		assert.NotEqual(t, first.ID, second.ID)
	})
}

func TestApproveRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("HappyPath", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		req := f.request(t, f.member)

		require.NoError(t, f.svc.ApproveRequest(ctx, req.ID, f.owner.ID))

		l := getListing(t, f.store, f.listing.ID)
		assert.Equal(t, 1, l.AvailableSeats)
		assert.Equal(t, 1, l.JoinedCount)
		got := getRequest(t, f.store, req.ID)
		assert.Equal(t, domain.RequestApproved, got.Status)
		assert.NotNil(t, got.RespondedAt)

		evs := f.pub.events(domain.EventSeatApproved)
		require.Len(t, evs, 1)
		assert.Equal(t, []string{f.member.ID}, evs[0].Recipients)
	})

	t.Run("Unauthorized", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		req := f.request(t, f.member)

		err := f.svc.ApproveRequest(ctx, req.ID, f.member.ID)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)

		l := getListing(t, f.store, f.listing.ID)
		assert.Equal(t, 2, l.AvailableSeats)
		assert.Equal(t, 0, l.JoinedCount)
		assert.Equal(t, domain.RequestPending, getRequest(t, f.store, req.ID).Status)
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		assert.ErrorIs(t, f.svc.ApproveRequest(ctx, "missing", f.owner.ID), domain.ErrNotFound)
	})

	t.Run("AlreadyApprovedIsNoop", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		req := f.request(t, f.member)
		require.NoError(t, f.svc.ApproveRequest(ctx, req.ID, f.owner.ID))

		require.NoError(t, f.svc.ApproveRequest(ctx, req.ID, f.owner.ID))

		l := getListing(t, f.store, f.listing.ID)
		assert.Equal(t, 1, l.AvailableSeats, "retry must not take a second seat")
		assert.Equal(t, 1, l.JoinedCount)
		assert.Len(t, f.pub.events(domain.EventSeatApproved), 1)
	})

	t.Run("RejectedCannotBeApproved", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		req := f.request(t, f.member)
		require.NoError(t, f.svc.RejectRequest(ctx, req.ID, f.owner.ID))

		assert.ErrorIs(t, f.svc.ApproveRequest(ctx, req.ID, f.owner.ID), domain.ErrInvalidState)
	})

	t.Run("SeatsExhaustedSinceRequest", func(t *testing.T) {
		f := newSeatFixture(t, 3, 1)
		other := createUser(t, f.store, "other")
		first := f.request(t, f.member)
		second := f.request(t, other)
		require.NoError(t, f.svc.ApproveRequest(ctx, first.ID, f.owner.ID))

		err := f.svc.ApproveRequest(ctx, second.ID, f.owner.ID)
		assert.ErrorIs(t, err, domain.ErrNoSeatsAvailable)
		assert.Equal(t, domain.RequestPending, getRequest(t, f.store, second.ID).Status)
	})
}

func TestApproveRequest_ConcurrentLastSeat(t *testing.T) {
	f := newSeatFixture(t, 3, 1)
	other := createUser(t, f.store, "other")
	reqs := []*domain.SeatRequest{f.request(t, f.member), f.request(t, other)}

	var wg sync.WaitGroup
	errs := make([]error, len(reqs))
	for i, r := range reqs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = f.svc.ApproveRequest(context.Background(), id, f.owner.ID)
		}(i, r.ID)
	}
	wg.Wait()

	var ok, noSeats int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, domain.ErrNoSeatsAvailable):
			noSeats++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, noSeats)

	l := getListing(t, f.store, f.listing.ID)
	assert.Equal(t, 0, l.AvailableSeats)
	assert.Equal(t, 1, l.JoinedCount)

	approved := 0
	for _, r := range reqs {
		if getRequest(t, f.store, r.ID).Status == domain.RequestApproved {
			approved++
		}
	}
	assert.Equal(t, 1, approved)
}

func TestRejectRequest(t *testing.T) {
	ctx := context.Background()
	f := newSeatFixture(t, 4, 2)
	req := f.request(t, f.member)

	require.NoError(t, f.svc.RejectRequest(ctx, req.ID, f.owner.ID))
	err := f.svc.RejectRequest(ctx, req.ID, f.owner.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	got := getRequest(t, f.store, req.ID)
	assert.Equal(t, domain.RequestRejected, got.Status)
	assert.NotNil(t, got.RespondedAt)
	l := getListing(t, f.store, f.listing.ID)
	assert.Equal(t, 2, l.AvailableSeats)
	assert.Equal(t, 0, l.JoinedCount)
	assert.Len(t, f.pub.events(domain.EventSeatRejected), 1, "second reject must not notify again")

	t.Run("Unauthorized", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		req := f.request(t, f.member)
		assert.ErrorIs(t, f.svc.RejectRequest(ctx, req.ID, f.member.ID), domain.ErrUnauthorized)
	})
}

func TestLeaveSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		before := getListing(t, f.store, f.listing.ID)
		req := f.request(t, f.member)
		require.NoError(t, f.svc.ApproveRequest(ctx, req.ID, f.owner.ID))

		require.NoError(t, f.svc.LeaveSubscription(ctx, req.ID, f.listing.ID, f.member.ID))

		after := getListing(t, f.store, f.listing.ID)
		assert.Equal(t, before.AvailableSeats, after.AvailableSeats)
		assert.Equal(t, before.JoinedCount, after.JoinedCount)
		assert.Equal(t, domain.RequestCancelled, getRequest(t, f.store, req.ID).Status)

		evs := f.pub.events(domain.EventSeatLeft)
		require.Len(t, evs, 1)
		assert.Equal(t, []string{f.owner.ID}, evs[0].Recipients)
	})

	t.Run("PendingCannotLeave", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		req := f.request(t, f.member)
		err := f.svc.LeaveSubscription(ctx, req.ID, f.listing.ID, f.member.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Equal(t, 2, getListing(t, f.store, f.listing.ID).AvailableSeats)
	})

	t.Run("LeaveTwice", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		req := f.request(t, f.member)
		require.NoError(t, f.svc.ApproveRequest(ctx, req.ID, f.owner.ID))
		require.NoError(t, f.svc.LeaveSubscription(ctx, req.ID, f.listing.ID, f.member.ID))

		err := f.svc.LeaveSubscription(ctx, req.ID, f.listing.ID, f.member.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Equal(t, 2, getListing(t, f.store, f.listing.ID).AvailableSeats)
	})

	t.Run("OnlyRequesterCanLeave", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		req := f.request(t, f.member)
		require.NoError(t, f.svc.ApproveRequest(ctx, req.ID, f.owner.ID))

		err := f.svc.LeaveSubscription(ctx, req.ID, f.listing.ID, f.owner.ID)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("WrongListing", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		req := f.request(t, f.member)
		require.NoError(t, f.svc.ApproveRequest(ctx, req.ID, f.owner.ID))

		err := f.svc.LeaveSubscription(ctx, req.ID, "other-listing", f.member.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSeatCountersStayInBounds(t *testing.T) {
	ctx := context.Background()
	f := newSeatFixture(t, 3, 2)
	a := createUser(t, f.store, "a")
	b := createUser(t, f.store, "b")
	c := createUser(t, f.store, "c")

	ra, rb := f.request(t, a), f.request(t, b)
	rc := f.request(t, c)
	require.NoError(t, f.svc.ApproveRequest(ctx, ra.ID, f.owner.ID))
	require.NoError(t, f.svc.ApproveRequest(ctx, rb.ID, f.owner.ID))
	assert.ErrorIs(t, f.svc.ApproveRequest(ctx, rc.ID, f.owner.ID), domain.ErrNoSeatsAvailable)
	require.NoError(t, f.svc.LeaveSubscription(ctx, ra.ID, f.listing.ID, a.ID))
	require.NoError(t, f.svc.ApproveRequest(ctx, rc.ID, f.owner.ID))
	require.NoError(t, f.svc.LeaveSubscription(ctx, rb.ID, f.listing.ID, b.ID))
	require.NoError(t, f.svc.LeaveSubscription(ctx, rc.ID, f.listing.ID, c.ID))

	l := getListing(t, f.store, f.listing.ID)
	assert.Equal(t, 2, l.AvailableSeats)
	assert.Equal(t, 0, l.JoinedCount)
	assert.GreaterOrEqual(t, l.AvailableSeats, 0)
	assert.LessOrEqual(t, l.AvailableSeats, l.TotalSeats)
}

func TestDeleteListing(t *testing.T) {
	ctx := context.Background()

	t.Run("CascadesRequests", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		other := createUser(t, f.store, "other")
		approved := f.request(t, f.member)
		pending := f.request(t, other)
		require.NoError(t, f.svc.ApproveRequest(ctx, approved.ID, f.owner.ID))

		require.NoError(t, f.svc.DeleteListing(ctx, f.listing.ID, f.owner.ID))

		_, err := f.store.Listings().GetByID(ctx, f.listing.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		for _, id := range []string{approved.ID, pending.ID} {
			_, err := f.store.Requests().GetByID(ctx, id)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		}

		evs := f.pub.events(domain.EventListingDeleted)
		require.Len(t, evs, 1)
		assert.ElementsMatch(t, []string{f.member.ID, other.ID}, evs[0].Recipients)
	})

	t.Run("Unauthorized", func(t *testing.T) {
		f := newSeatFixture(t, 4, 2)
		err := f.svc.DeleteListing(ctx, f.listing.ID, f.member.ID)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		_, err = f.store.Listings().GetByID(ctx, f.listing.ID)
		assert.NoError(t, err)
	})
}

func TestListRequests(t *testing.T) {
	ctx := context.Background()
	f := newSeatFixture(t, 4, 2)
	other := createUser(t, f.store, "other")
	r1 := f.request(t, f.member)
	f.request(t, other)
	require.NoError(t, f.svc.ApproveRequest(ctx, r1.ID, f.owner.ID))

	all, err := f.svc.ListRequestsForListing(ctx, f.listing.ID, f.owner.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.ListRequestsForListing(ctx, f.listing.ID, f.member.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	mine, err := f.svc.ListMyRequests(ctx, f.member.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, r1.ID, mine[0].ID)

	incoming, err := f.svc.ListIncomingRequests(ctx, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, other.ID, incoming[0].RequesterID)
}

func TestWithdrawRequest(t *testing.T) {
	ctx := context.Background()
	f := newSeatFixture(t, 4, 2)

	req := f.request(t, f.member)
	assert.ErrorIs(t, f.svc.WithdrawRequest(ctx, req.ID, f.owner.ID), domain.ErrUnauthorized)
	require.NoError(t, f.svc.WithdrawRequest(ctx, req.ID, f.member.ID))
	assert.ErrorIs(t, f.svc.WithdrawRequest(ctx, req.ID, f.member.ID), domain.ErrNotFound)

	l := getListing(t, f.store, f.listing.ID)
	assert.Equal(t, 2, l.AvailableSeats)
	assert.Equal(t, 0, l.JoinedCount)

	// a fresh request is allowed once the old one is gone
	again := f.request(t, f.member)
	require.NoError(t, f.svc.ApproveRequest(ctx, again.ID, f.owner.ID))
	assert.ErrorIs(t, f.svc.WithdrawRequest(ctx, again.ID, f.member.ID), domain.ErrInvalidState)
	assert.Equal(t, domain.RequestApproved, getRequest(t, f.store, again.ID).Status)
}
