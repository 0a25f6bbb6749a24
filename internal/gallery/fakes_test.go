package gallery

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"drive-content-hub/internal/models"
	"drive-content-hub/internal/objectstore"
	"drive-content-hub/internal/store"
)

type fakeUsers struct {
	mu        sync.Mutex
	byID      map[int64]*models.User
	nextID    int64
	createErr error
	getErr    error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[int64]*models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, username, hash string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, u := range f.byID {
		if u.Username == username {
			return nil, store.ErrConflict
		}
	}
	f.nextID++
	u := &models.User{ID: f.nextID, Username: username, PasswordHash: hash, CreatedAt: time.Now()}
	f.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) hash(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].PasswordHash
}

type fakeSessions struct {
	mu   sync.Mutex
	rows map[string]models.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{rows: map[string]models.Session{}}
}

func (f *fakeSessions) Create(_ context.Context, id string, userID int64, exp time.Time) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := models.Session{ID: id, UserID: userID, CreatedAt: time.Now(), ExpiresAt: exp}
	f.rows[id] = s
	return &s, nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.rows {
		if s.Expired(now) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) CountActive(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.rows {
		if !s.Expired(now) {
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeUploads struct {
	mu        sync.Mutex
	rows      map[int64]models.Upload
	nextID    int64
	clock     time.Time
	createErr error
	deleteErr error
}

func newFakeUploads() *fakeUploads {
	return &fakeUploads{
		rows:  map[int64]models.Upload{},
		clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeUploads) Create(_ context.Context, in models.NewUploadRow) (*models.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	u := models.Upload{
		ID:            f.nextID,
		PublicText:    in.PublicText,
		PrivateText:   in.PrivateText,
		FolderName:    in.FolderName,
		DriveFileID:   in.DriveFileID,
		WebViewLink:   in.WebViewLink,
		ThumbnailLink: in.ThumbnailLink,
		CreatedAt:     f.clock,
	}
	f.rows[u.ID] = u
	return &u, nil
}

func (f *fakeUploads) Get(_ context.Context, id int64) (*models.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUploads) List(_ context.Context, folder string) ([]models.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Upload, 0)
	for _, u := range f.rows {
		if folder == "" || u.FolderName == folder {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (f *fakeUploads) Folders(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	out := make([]string, 0)
	for _, u := range f.rows {
		if !seen[u.FolderName] {
			seen[u.FolderName] = true
			out = append(out, u.FolderName)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeUploads) Update(_ context.Context, id int64, p models.UploadPatch) (*models.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.PublicText != nil {
		u.PublicText = *p.PublicText
	}
	if p.PrivateText.Set {
		u.PrivateText = p.PrivateText.Value
	}
	if p.FolderName != nil {
		u.FolderName = *p.FolderName
	}
	f.rows[id] = u
	return &u, nil
}

func (f *fakeUploads) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeUploads) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// fakeObjects records calls instead of storing anything.
type fakeObjects struct {
	mu        sync.Mutex
	puts      []objectstore.PutInput
	bodies    [][]byte
	deletes   []string
	putErr    error
	deleteErr error
	pingErr   error
	n         int
	// rereads makes Put read a seekable body once, rewind it and read it
	// again, the way an S3 client checksums a payload before sending.
	rereads  bool
	seekable []bool
}

func (f *fakeObjects) Name() string { return "fake" }

func (f *fakeObjects) Put(_ context.Context, in objectstore.PutInput) (objectstore.Object, error) {
	seeker, seekable := in.Body.(io.Seeker)
	if f.rereads && seekable {
		if _, err := io.Copy(io.Discard, in.Body); err != nil {
			return objectstore.Object{}, err
		}
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return objectstore.Object{}, err
		}
	}
	b, err := io.ReadAll(in.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seekable = append(f.seekable, seekable)
	if err != nil {
		return objectstore.Object{}, err
	}
	if f.putErr != nil {
		return objectstore.Object{}, f.putErr
	}
	f.n++
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, b)
	id := "hub/" + in.Folder + "/obj-" + string(rune('0'+f.n)) + ".png"
	return objectstore.Object{ID: id, URL: "https://cdn.test/" + id}, nil
}

func (f *fakeObjects) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return f.deleteErr
}

func (f *fakeObjects) Ping(context.Context) error { return f.pingErr }

func (f *fakeObjects) calls() (puts, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts), len(f.deletes)
}

var errBoom = errors.New("boom")
