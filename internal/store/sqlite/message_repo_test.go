package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seatshare/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	s := NewStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedConversation(t *testing.T, s *Store) *domain.Conversation {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	for _, id := range []string{"ann", "bob"} {
		require.NoError(t, s.Users().Create(ctx, &domain.User{
			ID: id, Email: id + "@example.com", DisplayName: id, HashedPassword: "x", CreatedAt: now,
		}))
	}
	c := &domain.Conversation{
		ID:               "conv-1",
		Participants:     [2]string{"ann", "bob"},
		ParticipantNames: map[string]string{"ann": "ann", "bob": "bob"},
		UnreadCount:      map[string]int{},
		CreatedAt:        now,
	}
	require.NoError(t, s.Conversations().Create(ctx, c))
	return c
}

func TestMessagesWithEqualTimestamps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	conv := seedConversation(t, s)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	// ids sort opposite to insertion order
	for _, id := range []string{"m-z", "m-y", "m-x"} {
		require.NoError(t, s.Messages().Create(ctx, &domain.Message{
			ID: id, ConversationID: conv.ID, SenderID: "ann", Content: id, CreatedAt: at,
		}))
	}

	msgs, err := s.Messages().ListForConversation(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"m-x", "m-y", "m-z"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})

	removed, err := s.Messages().PruneOld(ctx, conv.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	msgs, err = s.Messages().ListForConversation(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m-x", msgs[0].ID, "the latest insert survives")
}

func TestRequestDeleteOnlyPending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()

	for _, id := range []string{"owner", "ann", "bob"} {
		require.NoError(t, s.Users().Create(ctx, &domain.User{
			ID: id, Email: id + "@example.com", DisplayName: id, HashedPassword: "x", CreatedAt: now,
		}))
	}
	require.NoError(t, s.Listings().Create(ctx, &domain.Listing{
		ID: "l-1", OwnerID: "owner", Service: domain.ServiceNetflix, PlanName: "Premium",
		TotalSeats: 4, AvailableSeats: 2, PricePerSeat: 4.5, IsActive: true, CreatedAt: now,
	}))
	for id, requester := range map[string]string{"r-pending": "ann", "r-approved": "bob"} {
		require.NoError(t, s.Requests().Create(ctx, &domain.SeatRequest{
			ID: id, ListingID: "l-1", RequesterID: requester, RequesterName: requester,
			Status: domain.RequestPending, CreatedAt: now,
		}))
	}
	require.NoError(t, s.Requests().Transition(ctx, "r-approved", domain.RequestPending, domain.RequestApproved, now))

	require.NoError(t, s.Requests().Delete(ctx, "r-pending"))
	_, err := s.Requests().GetByID(ctx, "r-pending")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, s.Requests().Delete(ctx, "r-approved"), domain.ErrInvalidState)
	assert.ErrorIs(t, s.Requests().Delete(ctx, "missing"), domain.ErrNotFound)
}
