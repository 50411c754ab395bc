package media

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Store persists validated images and knows how to address them.
type Store interface {
	// Save writes data under posts/ and returns the stored name.
	Save(ctx context.Context, data []byte, format string) (string, error)
	Delete(ctx context.Context, name string) error
	URL(name string) string
}

func newName(format string) string {
	return path.Join("posts", uuid.NewString()+extension(format))
}

// LocalStore keeps images on the local filesystem under Root.
type LocalStore struct {
	Root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root}
}

func (s *LocalStore) Save(_ context.Context, data []byte, format string) (string, error) {
	name := newName(format)
	full := filepath.Join(s.Root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", errors.Wrap(err, "creating media directory")
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "writing %s", name)
	}
	return name, nil
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := os.Remove(filepath.Join(s.Root, filepath.FromSlash(name)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", name)
	}
	return nil
}

func (s *LocalStore) URL(name string) string {
	return "/media/" + name
}

// Handler serves stored files; mount it under /media/.
func (s *LocalStore) Handler() http.Handler {
	return http.StripPrefix("/media/", http.FileServer(http.Dir(s.Root)))
}
