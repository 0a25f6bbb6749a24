package gallery

import (
	"context"
	"time"

	"drive-content-hub/internal/models"
)

// UserStore is implemented by store.UserRepository.
type UserStore interface {
	Create(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// SessionStore is implemented by store.SessionRepository.
type SessionStore interface {
	Create(ctx context.Context, id string, userID int64, expiresAt time.Time) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountActive(ctx context.Context, now time.Time) (int64, error)
}

// UploadStore is implemented by store.UploadRepository.
type UploadStore interface {
	Create(ctx context.Context, in models.NewUploadRow) (*models.Upload, error)
	Get(ctx context.Context, id int64) (*models.Upload, error)
	List(ctx context.Context, folder string) ([]models.Upload, error)
	Folders(ctx context.Context) ([]string, error)
	Update(ctx context.Context, id int64, p models.UploadPatch) (*models.Upload, error)
	Delete(ctx context.Context, id int64) error
}
