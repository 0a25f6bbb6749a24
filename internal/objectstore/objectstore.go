// Package objectstore stores uploaded image bytes outside the database.
//
// Three backends share the Store interface: MinIO, AWS S3 (or any S3
// compatible endpoint) and a local directory served over HTTP.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"drive-content-hub/internal/config"
)

// ErrObjectNotFound is returned by Delete when the backend reports the object
// as missing.
var ErrObjectNotFound = errors.New("object not found")

// PutInput describes one object to store.
type PutInput struct {
	// Folder is the namespace below the configured prefix, usually a
	// folder slug.
	Folder      string
	Filename    string
	ContentType string
	// Size may be -1 when unknown.
	Size int64
	Body io.Reader
}

// Object is a stored object. ID is the backend key used for Delete.
type Object struct {
	ID           string
	URL          string
	ThumbnailURL string
}

type Store interface {
	Put(ctx context.Context, in PutInput) (Object, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Name() string
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMinio:
		return NewMinioStore(ctx, cfg.ObjectPrefix, cfg.Minio)
	case config.BackendS3:
		return NewS3Store(ctx, cfg.ObjectPrefix, cfg.S3)
	case config.BackendLocal:
		return NewLocalStore(cfg.ObjectPrefix, cfg.Local)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Slug maps a folder label to a key segment. Letters, digits, '-' and '_'
// are kept, runs of anything else collapse to a single '-'.
func Slug(folder string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(folder) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
			dash = false
		default:
			if !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		return "general"
	}
	return s
}

// objectKey returns "<prefix>/<folder>/<uuid><ext>".
func objectKey(prefix, folder, filename string) string {
	name := uuid.NewString() + extension(filename)
	parts := make([]string, 0, 3)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, Slug(folder), name)
	return strings.Join(parts, "/")
}

// extension returns the lower-cased extension of filename when it is short
// and alphanumeric, otherwise "".
func extension(filename string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, "\\", "/")))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

// publicURL joins base and key, escaping each key segment.
func publicURL(base, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segs, "/")
}
