package server

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"drive-content-hub/internal/gallery"
	"drive-content-hub/internal/models"
)

const goodToken = "good-token"

var admin = &models.User{ID: 1, Username: "admin"}

var errBoom = errors.New("boom")

type fakeAuth struct {
	mu          sync.Mutex
	loggedOut   []string
	changeErr   error
	authErr     error
	lastCurrent string
	lastNext    string
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (*gallery.LoginResult, error) {
	if username == "admin" && password == "0777" {
		return &gallery.LoginResult{User: admin, Token: goodToken, ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	if username == "explode" {
		return nil, errBoom
	}
	return nil, gallery.ErrUnauthorized
}

func (f *fakeAuth) Logout(_ context.Context, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = append(f.loggedOut, token)
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	if token != goodToken {
		return nil, gallery.ErrUnauthorized
	}
	u := *admin
	return &u, nil
}

func (f *fakeAuth) ChangePassword(_ context.Context, _ *models.User, current, next string) (string, error) {
	f.lastCurrent, f.lastNext = current, next
	if f.changeErr != nil {
		return "", f.changeErr
	}
	return gallery.MsgPasswordUpdated, nil
}

type createCall struct {
	in   gallery.NewUpload
	body []byte
}

type fakeUploads struct {
	mu      sync.Mutex
	rows    map[int64]models.Upload
	calls   int
	created []createCall
	patches []models.UploadPatch
	deleted []int64
	folder  string

	createErr error
	listErr   error
	deleteErr error
	pingErr   error
	panicOn   string
}

func newFakeUploads() *fakeUploads {
	private := "secret"
	thumb := "https://cdn.example.com/a.png"
	return &fakeUploads{rows: map[int64]models.Upload{
		7: {
			ID:            7,
			PublicText:    "hello",
			PrivateText:   &private,
			FolderName:    "trips",
			DriveFileID:   "drive-content-hub/trips/a.png",
			WebViewLink:   thumb,
			ThumbnailLink: &thumb,
			CreatedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
	}}
}

func (f *fakeUploads) touch(op string) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panicOn == op {
		panic("kaboom")
	}
}

func (f *fakeUploads) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeUploads) ListPublic(context.Context) ([]gallery.PublicUpload, error) {
	f.touch("listPublic")
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []gallery.PublicUpload{}
	for _, r := range f.rows {
		out = append(out, gallery.PublicView(r))
	}
	return out, nil
}

func (f *fakeUploads) ListAll(_ context.Context, user *models.User, folder string) ([]gallery.AdminUpload, error) {
	f.touch("listAll")
	if user == nil {
		return nil, gallery.ErrUnauthorized
	}
	f.folder = folder
	out := []gallery.AdminUpload{}
	for _, r := range f.rows {
		if folder == "" || r.FolderName == folder {
			out = append(out, gallery.AdminView(r))
		}
	}
	return out, nil
}

func (f *fakeUploads) Folders(_ context.Context, user *models.User) ([]string, error) {
	f.touch("folders")
	if user == nil {
		return nil, gallery.ErrUnauthorized
	}
	return []string{"trips"}, nil
}

func (f *fakeUploads) Get(_ context.Context, id int64) (*models.Upload, error) {
	f.touch("get")
	r, ok := f.rows[id]
	if !ok {
		return nil, gallery.ErrNotFound
	}
	return &r, nil
}

func (f *fakeUploads) Create(_ context.Context, user *models.User, in gallery.NewUpload) (*gallery.AdminUpload, error) {
	f.touch("create")
	if user == nil {
		return nil, gallery.ErrUnauthorized
	}
	body, err := io.ReadAll(in.File)
	if err != nil {
		return nil, err
	}
	f.created = append(f.created, createCall{in: in, body: body})
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &gallery.AdminUpload{ID: 8, PublicText: in.PublicText, FolderName: in.FolderName}, nil
}

func (f *fakeUploads) Update(_ context.Context, user *models.User, id int64, p models.UploadPatch) (*gallery.AdminUpload, error) {
	f.touch("update")
	if user == nil {
		return nil, gallery.ErrUnauthorized
	}
	f.patches = append(f.patches, p)
	r, ok := f.rows[id]
	if !ok {
		return nil, gallery.ErrNotFound
	}
	if p.PublicText != nil {
		r.PublicText = *p.PublicText
	}
	if p.PrivateText.Set {
		r.PrivateText = p.PrivateText.Value
	}
	if p.FolderName != nil {
		r.FolderName = *p.FolderName
	}
	f.rows[id] = r
	v := gallery.AdminView(r)
	return &v, nil
}

func (f *fakeUploads) Delete(_ context.Context, user *models.User, id int64) error {
	f.touch("delete")
	if user == nil {
		return gallery.ErrUnauthorized
	}
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rows[id]; !ok {
		return gallery.ErrNotFound
	}
	delete(f.rows, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUploads) PingStorage(_ context.Context, user *models.User) (string, error) {
	f.touch("ping")
	if user == nil {
		return "", gallery.ErrUnauthorized
	}
	if f.pingErr != nil {
		return "", f.pingErr
	}
	return "fake storage is reachable", nil
}

type fakePinger struct {
	err   error
	delay time.Duration
}

func (p fakePinger) PingContext(context.Context) error {
	time.Sleep(p.delay)
	return p.err
}

func (p fakePinger) Ping(ctx context.Context) error { return p.PingContext(ctx) }
func (p fakePinger) Name() string                   { return "fake" }
