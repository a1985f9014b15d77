package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"seatshare/internal/domain"
	"seatshare/internal/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(db))
	s := sqlite.NewStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type MockPublisher struct {
	mock.Mock
	mu sync.Mutex
}

func newPublisher() *MockPublisher {
	p := new(MockPublisher)
	p.On("Publish", mock.Anything, mock.Anything).Return()
	return p
}

func (m *MockPublisher) Publish(ctx context.Context, e domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(ctx, e)
}

func (m *MockPublisher) events(t domain.EventType) []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, c := range m.Calls {
		if e, ok := c.Arguments.Get(1).(domain.Event); ok && e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func createUser(t *testing.T, s domain.Store, name string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:             uuid.NewString(),
		Email:          name + "@example.com",
		DisplayName:    name,
		HashedPassword: "x",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func createListing(t *testing.T, s domain.Store, ownerID string, total, available int) *domain.Listing {
	t.Helper()
	l := &domain.Listing{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Service:        domain.ServiceNetflix,
		PlanName:       "Premium",
		TotalSeats:     total,
		AvailableSeats: available,
		PricePerSeat:   4.5,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.Listings().Create(context.Background(), l))
	return l
}

func getListing(t *testing.T, s domain.Store, id string) *domain.Listing {
	t.Helper()
	l, err := s.Listings().GetByID(context.Background(), id)
	require.NoError(t, err)
	return l
}

func getRequest(t *testing.T, s domain.Store, id string) *domain.SeatRequest {
	t.Helper()
	r, err := s.Requests().GetByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

// fakeCipher marks content instead of encrypting it so tests can see what was stored.
type fakeCipher struct{}

func (fakeCipher) Encrypt(plain string) (string, error) { return "enc:" + plain, nil }

func (fakeCipher) Decrypt(enc string) (string, error) {
	if len(enc) < 4 || enc[:4] != "enc:" {
		return "", errInvalidCipherText
	}
	return enc[4:], nil
}

type cipherError string

func (e cipherError) Error() string { return string(e) }

const errInvalidCipherText = cipherError("not encrypted")
