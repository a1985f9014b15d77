package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"seatshare/internal/domain"
	"seatshare/internal/security"
	"seatshare/internal/service"
)

// Mock mocks
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) UpdateProfile(ctx context.Context, id, displayName, bio string) error {
	args := m.Called(ctx, id, displayName, bio)
	return args.Error(0)
}

func (m *MockUserRepo) SetAvatarURL(ctx context.Context, id string, url *string) error {
	args := m.Called(ctx, id, url)
	return args.Error(0)
}

func (m *MockUserRepo) SetRating(ctx context.Context, id string, summary domain.RatingSummary) error {
	return nil // Not used in auth tests
}

func (m *MockUserRepo) MarkOwner(ctx context.Context, id string) error {
	return nil
}

func (m *MockUserRepo) LockForUpdate(ctx context.Context, id string) error {
	return nil
}

func TestRegister(t *testing.T) {
	mockRepo := new(MockUserRepo)
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4) // low cost for tests

	svc := service.NewAuthService(mockRepo, tokenSvc, hasher)

	t.Run("Success", func(t *testing.T) {
		input := service.RegisterInput{
			Email:       "  New@Example.com ",
			Password:    "Password1!",
			DisplayName: "New User",
		}

		mockRepo.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound)
		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Email == "new@example.com" && u.ID != ""
		})).Return(nil)

		user, err := svc.Register(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", user.Email)
		assert.Equal(t, "New User", user.DisplayName)
		assert.NotEqual(t, "Password1!", user.HashedPassword)
		assert.NoError(t, hasher.Verify("Password1!", user.HashedPassword))
	})

	t.Run("EmailTaken", func(t *testing.T) {
		input := service.RegisterInput{
			Email:       "existing@example.com",
			Password:    "Password1!",
			DisplayName: "Someone",
		}

		existing := &domain.User{Email: "existing@example.com"}
		mockRepo.On("GetByEmail", mock.Anything, "existing@example.com").Return(existing, nil)

		user, err := svc.Register(context.Background(), input)
		assert.Nil(t, user)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("Invalid", func(t *testing.T) {
		for name, in := range map[string]service.RegisterInput{
			"BadEmail":      {Email: "not-an-email", Password: "Password1!", DisplayName: "x"},
			"ShortPassword": {Email: "short@example.com", Password: "abc", DisplayName: "x"},
			"NoName":        {Email: "noname@example.com", Password: "Password1!", DisplayName: "  "},
		} {
			t.Run(name, func(t *testing.T) {
				_, err := svc.Register(context.Background(), in)
				assert.ErrorIs(t, err, domain.ErrValidation)
			})
		}
	})

	mockRepo.AssertExpectations(t)
}

func TestLogin(t *testing.T) {
	mockRepo := new(MockUserRepo)
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4)
	svc := service.NewAuthService(mockRepo, tokenSvc, hasher)

	hashed, err := hasher.Hash("Password1!")
	require.NoError(t, err)
	user := &domain.User{ID: "u-1", Email: "user@example.com", DisplayName: "User", HashedPassword: hashed}
	mockRepo.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)
	mockRepo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)
	corrupt := &domain.User{ID: "u-2", Email: "corrupt@example.com", HashedPassword: "not-a-hash"}
	mockRepo.On("GetByEmail", mock.Anything, "corrupt@example.com").Return(corrupt, nil)

	t.Run("Success", func(t *testing.T) {
		resp, err := svc.Login(context.Background(), service.LoginInput{Email: "User@example.com", Password: "Password1!"})
		require.NoError(t, err)
		assert.Equal(t, "bearer", resp.TokenType)
		assert.Equal(t, user, resp.User)

		claims, err := tokenSvc.Parse(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "u-1", claims.UserID())
		assert.Equal(t, "User", claims.DisplayName)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Email: "user@example.com", Password: "nope"})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Email: "ghost@example.com", Password: "Password1!"})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("CorruptHash", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Email: "corrupt@example.com", Password: "Password1!"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, service.ErrInvalidCredentials)
	})
}
