package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"seatshare/internal/domain"
	"seatshare/internal/logger"
	"seatshare/internal/objectstore"
)

const (
	maxDisplayNameLength = 100
	maxBioLength         = 500
)

// UserService provides profile operations.
type UserService struct {
	users   domain.UserRepository
	objects objectstore.Storage
	log     *zap.Logger
}

func NewUserService(users domain.UserRepository, objects objectstore.Storage, log *zap.Logger) *UserService {
	return &UserService{users: users, objects: objects, log: log.Named("users")}
}

// Profile is the public view of a user.
type Profile struct {
	*domain.User
	TrustScore int `json:"trust_score"`
}

func (s *UserService) GetProfile(ctx context.Context, id string) (*Profile, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Profile{User: u, TrustScore: u.TrustScore()}, nil
}

type UpdateProfileInput struct {
	DisplayName *string
	Bio         *string
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (*Profile, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	name, bio := u.DisplayName, u.Bio
	if in.DisplayName != nil {
		name = strings.TrimSpace(*in.DisplayName)
		if name == "" || len([]rune(name)) > maxDisplayNameLength {
			return nil, fmt.Errorf("%w: display name must be 1 to %d characters", domain.ErrValidation, maxDisplayNameLength)
		}
	}
	if in.Bio != nil {
		bio = strings.TrimSpace(*in.Bio)
		if len([]rune(bio)) > maxBioLength {
			return nil, fmt.Errorf("%w: bio is longer than %d characters", domain.ErrValidation, maxBioLength)
		}
	}
	if err := s.users.UpdateProfile(ctx, id, name, bio); err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, id)
}

// UploadAvatar stores a new avatar image and points the user at it. The
// previous image is removed best effort.
func (s *UserService) UploadAvatar(ctx context.Context, id, contentType string, body io.Reader) (*Profile, error) {
	ext, ok := objectstore.AvatarExtension(contentType)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported image type %q", domain.ErrValidation, contentType)
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := objectstore.AvatarKey(id, uuid.NewString(), ext)
	url, err := s.objects.Put(ctx, key, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("store avatar: %w", err)
	}
	if err := s.users.SetAvatarURL(ctx, id, &url); err != nil {
		s.removeObject(ctx, url)
		return nil, err
	}
	if u.AvatarURL != nil {
		s.removeObject(ctx, *u.AvatarURL)
	}
	return s.GetProfile(ctx, id)
}

func (s *UserService) DeleteAvatar(ctx context.Context, id string) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.AvatarURL == nil {
		return nil
	}
	if err := s.users.SetAvatarURL(ctx, id, nil); err != nil {
		return err
	}
	s.removeObject(ctx, *u.AvatarURL)
	return nil
}

func (s *UserService) removeObject(ctx context.Context, url string) {
	key, ok := s.objects.KeyForURL(url)
	if !ok {
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		logger.WithContext(ctx, s.log).Warn("avatar cleanup failed", zap.String("key", key), zap.Error(err))
	}
}
