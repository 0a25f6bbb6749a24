package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"drive-content-hub/internal/config"
)

// LocalStore keeps objects below a directory and serves them through
// Handler.
type LocalStore struct {
	dir       string
	prefix    string
	publicURL string
}

func NewLocalStore(prefix string, cfg config.LocalConfig) (*LocalStore, error) {
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("local: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local: %w", err)
	}
	return &LocalStore{dir: dir, prefix: prefix, publicURL: cfg.PublicURL}, nil
}

func (s *LocalStore) Name() string { return "local" }

// resolve maps an object id to a file below s.dir.
func (s *LocalStore) resolve(id string) (string, error) {
	if id == "" || strings.HasPrefix(id, "/") {
		return "", fmt.Errorf("local: invalid object id %q", id)
	}
	p := filepath.Join(s.dir, filepath.FromSlash(id))
	rel, err := filepath.Rel(s.dir, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("local: invalid object id %q", id)
	}
	return p, nil
}

func (s *LocalStore) Put(ctx context.Context, in PutInput) (Object, error) {
	key := objectKey(s.prefix, in.Folder, in.Filename)
	dst, err := s.resolve(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Object{}, fmt.Errorf("local put: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("local put: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: in.Body}); err != nil {
		_ = tmp.Close()
		return Object{}, fmt.Errorf("local put: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("local put: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return Object{}, fmt.Errorf("local put: %w", err)
	}

	u := publicURL(s.publicURL, key)
	return Object{ID: key, URL: u, ThumbnailURL: u}, nil
}

func (s *LocalStore) Delete(_ context.Context, id string) error {
	p, err := s.resolve(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("local delete: %w", err)
	}
	return nil
}

func (s *LocalStore) Ping(_ context.Context) error {
	fi, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("local ping: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("local ping: %s is not a directory", s.dir)
	}
	return nil
}

// Handler serves stored files. Directory paths answer 404 so listings are
// never exposed.
func (s *LocalStore) Handler() http.Handler {
	fs := http.FileServer(http.Dir(s.dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		if fi, err := os.Stat(filepath.Join(s.dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))); err != nil || fi.IsDir() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	})
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
