package service_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"seatshare/internal/domain"
	"seatshare/internal/objectstore"
	"seatshare/internal/service"
)

func TestUserProfile(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	objects, err := objectstore.NewLocal(t.TempDir(), "http://localhost:8000/uploads")
	require.NoError(t, err)
	svc := service.NewUserService(s.Users(), objects, zap.NewNop())
	u := createUser(t, s, "dana")

	p, err := svc.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, p.TrustScore)

	name, bio := " Dana ", "sharing since 2019"
	p, err = svc.UpdateProfile(ctx, u.ID, service.UpdateProfileInput{DisplayName: &name, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Dana", p.DisplayName)
	assert.Equal(t, "sharing since 2019", p.Bio)

	empty := "   "
	_, err = svc.UpdateProfile(ctx, u.ID, service.UpdateProfileInput{DisplayName: &empty})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.GetProfile(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserAvatar(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	dir := t.TempDir()
	objects, err := objectstore.NewLocal(dir, "http://localhost:8000/uploads")
	require.NoError(t, err)
	svc := service.NewUserService(s.Users(), objects, zap.NewNop())
	u := createUser(t, s, "erin")

	_, err = svc.UploadAvatar(ctx, u.ID, "application/pdf", strings.NewReader("%PDF"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	first, err := svc.UploadAvatar(ctx, u.ID, "image/png", strings.NewReader("png-1"))
	require.NoError(t, err)
	require.NotNil(t, first.AvatarURL)
	firstKey, ok := objects.KeyForURL(*first.AvatarURL)
	require.True(t, ok)
	assert.FileExists(t, filepath.Join(dir, firstKey))

	second, err := svc.UploadAvatar(ctx, u.ID, "image/jpeg", strings.NewReader("jpg-2"))
	require.NoError(t, err)
	secondKey, ok := objects.KeyForURL(*second.AvatarURL)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(secondKey, ".jpg"))
	assert.NoFileExists(t, filepath.Join(dir, firstKey), "replaced avatar is removed")

	data, err := os.ReadFile(filepath.Join(dir, secondKey))
	require.NoError(t, err)
	assert.Equal(t, "jpg-2", string(data))

	require.NoError(t, svc.DeleteAvatar(ctx, u.ID))
	p, err := svc.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, p.AvatarURL)
	assert.NoFileExists(t, filepath.Join(dir, secondKey))
}
