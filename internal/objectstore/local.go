package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local writes objects below a directory served by the HTTP server under
// publicPrefix (for example http://host/uploads).
type Local struct {
	dir          string
	publicPrefix string
}

var _ Storage = (*Local)(nil)

func NewLocal(dir, publicPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, publicPrefix: strings.TrimRight(publicPrefix, "/")}, nil
}

func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) Put(ctx context.Context, key, _ string, body io.Reader) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}
	return l.publicPrefix + "/" + key, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(l.dir, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (l *Local) KeyForURL(url string) (string, bool) {
	prefix := l.publicPrefix + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key, err := cleanKey(strings.TrimPrefix(url, prefix))
	if err != nil {
		return "", false
	}
	return key, true
}
