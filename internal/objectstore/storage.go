// Package objectstore keeps user-uploaded binaries (avatars) outside the
// database. Only the resulting public URL is stored on the user record.
package objectstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var ErrInvalidKey = errors.New("invalid object key")

// Storage is implemented by Local and S3.
type Storage interface {
	// Put stores body under key and returns the public URL of the object.
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyForURL maps a URL returned by Put back to its key. It reports false
	// for URLs this storage did not produce.
	KeyForURL(url string) (string, bool)
}

// AvatarExtension returns the file extension for a supported image type.
func AvatarExtension(contentType string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg", true
	case "image/png":
		return ".png", true
	case "image/webp":
		return ".webp", true
	case "image/gif":
		return ".gif", true
	}
	return "", false
}

// AvatarKey builds the storage key avatars/<userID>/<name><ext>.
func AvatarKey(userID, name, ext string) string {
	return path.Join("avatars", userID, name+ext)
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" || key == "." || strings.HasPrefix(key, "..") {
		return "", ErrInvalidKey
	}
	return key, nil
}
