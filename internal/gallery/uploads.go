package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"drive-content-hub/internal/logging"
	"drive-content-hub/internal/metrics"
	"drive-content-hub/internal/models"
	"drive-content-hub/internal/objectstore"
	"drive-content-hub/internal/store"
)

// sniffLen is how many bytes http.DetectContentType looks at.
const sniffLen = 512

type UploadOptions struct {
	// MaxUploadBytes caps a single file. 0 means no limit.
	MaxUploadBytes int64
	// PutTimeout bounds the object store upload.
	PutTimeout time.Duration
}

type UploadService struct {
	uploads UploadStore
	objects objectstore.Store
	opts    UploadOptions
	metrics *metrics.Metrics
	log     logging.Logger
}

func NewUploadService(uploads UploadStore, objects objectstore.Store, opts UploadOptions,
	m *metrics.Metrics, log logging.Logger) *UploadService {
	if opts.PutTimeout <= 0 {
		opts.PutTimeout = 5 * time.Minute
	}
	return &UploadService{
		uploads: uploads,
		objects: objects,
		opts:    opts,
		metrics: m,
		log:     log.With("service", "uploads"),
	}
}

// NewUpload is the input of Create. Size is -1 when the caller does not know
// it.
type NewUpload struct {
	File        io.Reader
	Filename    string
	Size        int64
	PublicText  string
	PrivateText string
	FolderName  string
}

func (s *UploadService) ListPublic(ctx context.Context) ([]PublicUpload, error) {
	rows, err := s.uploads.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return publicViews(rows), nil
}

// ListAll returns every field of every upload, optionally limited to one
// folder.
func (s *UploadService) ListAll(ctx context.Context, user *models.User, folder string) ([]AdminUpload, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	rows, err := s.uploads.List(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return adminViews(rows), nil
}

func (s *UploadService) Folders(ctx context.Context, user *models.User) ([]string, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	folders, err := s.uploads.Folders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return folders, nil
}

func (s *UploadService) Get(ctx context.Context, id int64) (*models.Upload, error) {
	u, err := s.uploads.Get(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "get upload")
	}
	return u, nil
}

// Create stores the file in the object store and then records it. When the
// insert fails the stored object is removed again.
func (s *UploadService) Create(ctx context.Context, user *models.User, in NewUpload) (*AdminUpload, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	if in.File == nil || in.Size == 0 {
		return nil, invalid("file", MsgNoFile)
	}
	if strings.TrimSpace(in.PublicText) == "" {
		return nil, invalid("publicText", "Public text is required")
	}
	if s.opts.MaxUploadBytes > 0 && in.Size > s.opts.MaxUploadBytes {
		return nil, ErrTooLarge
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in.File, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if n == 0 {
		return nil, invalid("file", MsgNoFile)
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, invalid("file", MsgImagesOnly)
	}

	body, err := rewind(in.File, head)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	counter := &capReader{r: body, max: s.opts.MaxUploadBytes}
	var payload io.Reader = counter
	if seeker, ok := body.(io.Seeker); ok {
		payload = &seekableCapReader{capReader: counter, s: seeker}
	}

	folder := strings.TrimSpace(in.FolderName)
	if folder == "" {
		folder = models.DefaultFolder
	}

	start := time.Now()
	putCtx, cancel := context.WithTimeout(ctx, s.opts.PutTimeout)
	obj, err := s.objects.Put(putCtx, objectstore.PutInput{
		Folder:      objectstore.Slug(folder),
		Filename:    in.Filename,
		ContentType: contentType,
		Size:        in.Size,
		Body:        payload,
	})
	cancel()
	if err != nil {
		s.metrics.RecordUploadError()
		if counter.exceeded || errors.Is(err, ErrTooLarge) {
			return nil, ErrTooLarge
		}
		s.log.Error(ctx, "object store put failed", "backend", s.objects.Name(), "err", err)
		return nil, fmt.Errorf("store object: %w", err)
	}

	thumb := obj.ThumbnailURL
	if thumb == "" {
		thumb = obj.URL
	}
	row, err := s.uploads.Create(ctx, models.NewUploadRow{
		PublicText:    in.PublicText,
		PrivateText:   optional(in.PrivateText),
		FolderName:    folder,
		DriveFileID:   obj.ID,
		WebViewLink:   obj.URL,
		ThumbnailLink: &thumb,
	})
	if err != nil {
		s.metrics.RecordUploadError()
		s.compensate(ctx, obj.ID)
		return nil, fmt.Errorf("insert upload: %w", err)
	}

	s.metrics.RecordUpload(counter.n, time.Since(start))
	s.log.Info(ctx, "upload stored", "id", row.ID, "folder", folder, "object", obj.ID, "bytes", counter.n)
	v := AdminView(*row)
	return &v, nil
}

// compensate removes an object whose row could not be written.
func (s *UploadService) compensate(ctx context.Context, objectID string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.objects.Delete(cctx, objectID); err != nil && !errors.Is(err, objectstore.ErrObjectNotFound) {
		s.log.Error(ctx, "orphaned object after failed insert", "object", objectID, "err", err)
		return
	}
	s.log.Warn(ctx, "removed object after failed insert", "object", objectID)
}

// Update changes captions and the folder label. The stored object is never
// touched.
func (s *UploadService) Update(ctx context.Context, user *models.User, id int64, p models.UploadPatch) (*AdminUpload, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	if p.PublicText != nil && strings.TrimSpace(*p.PublicText) == "" {
		return nil, invalid("publicText", "Public text must not be empty")
	}
	if p.FolderName != nil {
		folder := strings.TrimSpace(*p.FolderName)
		if folder == "" {
			return nil, invalid("folderName", "Folder name must not be empty")
		}
		p.FolderName = &folder
	}
	if p.PrivateText.Set && p.PrivateText.Value != nil {
		p.PrivateText.Value = optional(*p.PrivateText.Value)
	}

	row, err := s.uploads.Update(ctx, id, p)
	if err != nil {
		return nil, mapStoreErr(err, "update upload")
	}
	if !p.Empty() {
		s.metrics.RecordUpdate()
	}
	v := AdminView(*row)
	return &v, nil
}

// Delete removes the stored object and then the row. If the object cannot
// be removed the row stays so the delete can be retried.
func (s *UploadService) Delete(ctx context.Context, user *models.User, id int64) error {
	if user == nil {
		return ErrUnauthorized
	}
	row, err := s.uploads.Get(ctx, id)
	if err != nil {
		return mapStoreErr(err, "get upload")
	}

	if err := s.objects.Delete(ctx, row.DriveFileID); err != nil && !errors.Is(err, objectstore.ErrObjectNotFound) {
		s.metrics.RecordDelete(false)
		s.log.Error(ctx, "object delete failed", "id", id, "object", row.DriveFileID, "err", err)
		return fmt.Errorf("delete object: %w", err)
	}

	if err := s.uploads.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted concurrently; the end state is what the caller asked for.
			s.metrics.RecordDelete(true)
			return nil
		}
		s.metrics.RecordDelete(false)
		s.log.Error(ctx, "row delete failed after object removal", "id", id, "object", row.DriveFileID, "err", err)
		return fmt.Errorf("delete upload: %w", err)
	}

	s.metrics.RecordDelete(true)
	s.log.Info(ctx, "upload deleted", "id", id, "object", row.DriveFileID)
	return nil
}

// PingStorage checks that the object store is reachable.
func (s *UploadService) PingStorage(ctx context.Context, user *models.User) (string, error) {
	if user == nil {
		return "", ErrUnauthorized
	}
	if err := s.objects.Ping(ctx); err != nil {
		return "", fmt.Errorf("check storage: %w", err)
	}
	return fmt.Sprintf("%s storage is reachable", s.objects.Name()), nil
}

func mapStoreErr(err error, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// optional maps blank text to nil.
func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// rewind returns a reader positioned at the start of the file, reusing the
// sniffed bytes when r cannot seek.
func rewind(r io.Reader, head []byte) (io.Reader, error) {
	if seeker, ok := r.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return r, nil
	}
	return io.MultiReader(bytes.NewReader(head), r), nil
}

// capReader counts bytes and fails once more than max have been read.
type capReader struct {
	r        io.Reader
	max      int64
	n        int64
	exceeded bool
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.max > 0 && c.n > c.max {
		c.exceeded = true
		return n, ErrTooLarge
	}
	return n, err
}

// seekableCapReader lets the object store rewind the body, for example to
// checksum it before sending. The count follows the read position.
type seekableCapReader struct {
	*capReader
	s io.Seeker
}

func (c *seekableCapReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := c.s.Seek(offset, whence)
	if err != nil {
		return pos, err
	}
	c.n = pos
	c.exceeded = c.max > 0 && pos > c.max
	return pos, nil
}
