package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drive-content-hub/internal/logging"
	"drive-content-hub/internal/metrics"
	"drive-content-hub/internal/models"
	"drive-content-hub/internal/objectstore"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func pngBytes(size int) []byte {
	b := make([]byte, size)
	copy(b, pngHeader)
	return b
}

var admin = &models.User{ID: 1, Username: "admin"}

type uploadFixture struct {
	svc     *UploadService
	rows    *fakeUploads
	objects *fakeObjects
	metrics *metrics.Metrics
}

func newUploadFixture(t *testing.T, opts UploadOptions) *uploadFixture {
	t.Helper()
	f := &uploadFixture{
		rows:    newFakeUploads(),
		objects: &fakeObjects{},
		metrics: metrics.New("test"),
	}
	f.svc = NewUploadService(f.rows, f.objects, opts, f.metrics, logging.Nop())
	return f
}

func (f *uploadFixture) create(t *testing.T, public, private, folder string) *AdminUpload {
	t.Helper()
	b := pngBytes(64)
	u, err := f.svc.Create(context.Background(), admin, NewUpload{
		File:        bytes.NewReader(b),
		Filename:    "pic.png",
		Size:        int64(len(b)),
		PublicText:  public,
		PrivateText: private,
		FolderName:  folder,
	})
	require.NoError(t, err)
	return u
}

func strPtr(s string) *string { return &s }

func TestCreate_RoundTrip(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	u := f.create(t, "Sunset", "shot on film", "  Trips 2024 ")

	assert.Equal(t, "Sunset", u.PublicText)
	require.NotNil(t, u.PrivateText)
	assert.Equal(t, "shot on film", *u.PrivateText)
	assert.Equal(t, "Trips 2024", u.FolderName)
	assert.NotEmpty(t, u.DriveFileID)
	assert.NotEmpty(t, u.WebViewLink)
	require.NotNil(t, u.ThumbnailLink)
	assert.Equal(t, u.WebViewLink, *u.ThumbnailLink, "thumbnail falls back to the full url")

	require.Len(t, f.objects.puts, 1)
	assert.Equal(t, "Trips-2024", f.objects.puts[0].Folder)
	assert.Equal(t, "image/png", f.objects.puts[0].ContentType)
	assert.Equal(t, pngBytes(64), f.objects.bodies[0], "sniffed bytes must not be lost")

	got, err := f.svc.Get(context.Background(), u.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(*u, AdminView(*got)); diff != "" {
		t.Errorf("get after create mismatch (-want +got):\n%s", diff)
	}

	snap := f.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.UploadsTotal)
	assert.Equal(t, int64(64), snap.UploadBytesTotal)
}

func TestCreate_Defaults(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	u := f.create(t, "Caption", "   ", "")

	assert.Equal(t, models.DefaultFolder, u.FolderName)
	assert.Nil(t, u.PrivateText)
	assert.Equal(t, "General", f.objects.puts[0].Folder)
}

func TestCreate_NonSeekableBody(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	b := pngBytes(2048)
	_, err := f.svc.Create(context.Background(), admin, NewUpload{
		File:       io.MultiReader(bytes.NewReader(b)),
		Filename:   "big.png",
		Size:       -1,
		PublicText: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, b, f.objects.bodies[0])
}

func TestCreate_SeekableBodyReachesStore(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	f.objects.rereads = true
	b := pngBytes(4096)

	_, err := f.svc.Create(context.Background(), admin, NewUpload{
		File: bytes.NewReader(b), Filename: "a.png", Size: int64(len(b)), PublicText: "x",
	})
	require.NoError(t, err)
	require.Equal(t, []bool{true}, f.objects.seekable, "a seekable file must stay seekable")
	assert.Equal(t, b, f.objects.bodies[0])
	assert.Equal(t, int64(len(b)), f.metrics.Snapshot().UploadBytesTotal, "rewinding must not double count")

	_, err = f.svc.Create(context.Background(), admin, NewUpload{
		File: io.MultiReader(bytes.NewReader(b)), Filename: "b.png", Size: -1, PublicText: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, f.objects.seekable)
}

func TestCreate_SeekableBodyStillCapped(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{MaxUploadBytes: 1024})
	f.objects.rereads = true

	// The declared size lies, so only the reader can notice.
	_, err := f.svc.Create(context.Background(), admin, NewUpload{
		File: bytes.NewReader(pngBytes(4096)), Size: 100, PublicText: "x",
	})
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, 0, f.rows.count())
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		user      *models.User
		in        NewUpload
		wantErr   error
		wantMsg   string
		wantField string
	}{
		{
			name:    "no session",
			in:      NewUpload{File: bytes.NewReader(pngBytes(16)), Size: 16, PublicText: "x"},
			wantErr: ErrUnauthorized,
		},
		{
			name:      "no file",
			user:      admin,
			in:        NewUpload{PublicText: "x"},
			wantMsg:   MsgNoFile,
			wantField: "file",
		},
		{
			name:    "zero size",
			user:    admin,
			in:      NewUpload{File: bytes.NewReader(nil), Size: 0, PublicText: "x"},
			wantMsg: MsgNoFile,
		},
		{
			name:    "empty stream of unknown size",
			user:    admin,
			in:      NewUpload{File: strings.NewReader(""), Size: -1, PublicText: "x"},
			wantMsg: MsgNoFile,
		},
		{
			name:      "blank public text",
			user:      admin,
			in:        NewUpload{File: bytes.NewReader(pngBytes(16)), Size: 16, PublicText: "  "},
			wantMsg:   "Public text is required",
			wantField: "publicText",
		},
		{
			name:    "not an image",
			user:    admin,
			in:      NewUpload{File: strings.NewReader("%PDF-1.4 hello"), Size: 14, PublicText: "x"},
			wantMsg: MsgImagesOnly,
		},
		{
			name:    "declared size over limit",
			user:    admin,
			in:      NewUpload{File: bytes.NewReader(pngBytes(200)), Size: 200, PublicText: "x"},
			wantErr: ErrTooLarge,
		},
		{
			name:    "stream over limit",
			user:    admin,
			in:      NewUpload{File: io.MultiReader(bytes.NewReader(pngBytes(200))), Size: -1, PublicText: "x"},
			wantErr: ErrTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUploadFixture(t, UploadOptions{MaxUploadBytes: 100})
			_, err := f.svc.Create(context.Background(), tt.user, tt.in)
			require.Error(t, err)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				ve, ok := AsValidation(err)
				require.True(t, ok, "want ValidationError, got %v", err)
				assert.Equal(t, tt.wantMsg, ve.Message)
				if tt.wantField != "" {
					assert.Equal(t, tt.wantField, ve.Field)
				}
			}
			assert.Equal(t, 0, f.rows.count(), "no row may be created")
		})
	}
}

func TestCreate_ObjectStoreFailure(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	f.objects.putErr = errBoom

	_, err := f.svc.Create(context.Background(), admin, NewUpload{
		File: bytes.NewReader(pngBytes(32)), Size: 32, PublicText: "x",
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, "store object: boom", err.Error())
	assert.Equal(t, 0, f.rows.count())
	assert.Equal(t, int64(1), f.metrics.Snapshot().UploadErrorsTotal)
}

func TestObjectStoreErrorsNameBackendOnce(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	u := f.create(t, "x", "", "")
	ctx := context.Background()

	f.objects.putErr = fmt.Errorf("fake put: %w", errBoom)
	_, err := f.svc.Create(ctx, admin, NewUpload{
		File: bytes.NewReader(pngBytes(32)), Size: 32, PublicText: "x",
	})
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(err.Error(), "fake"), err.Error())

	f.objects.deleteErr = fmt.Errorf("fake delete: %w", errBoom)
	err = f.svc.Delete(ctx, admin, u.ID)
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(err.Error(), "fake"), err.Error())

	f.objects.pingErr = fmt.Errorf("fake ping: %w", errBoom)
	_, err = f.svc.PingStorage(ctx, admin)
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(err.Error(), "fake"), err.Error())
}

func TestCreate_InsertFailureRemovesObject(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	f.rows.createErr = errBoom

	_, err := f.svc.Create(context.Background(), admin, NewUpload{
		File: bytes.NewReader(pngBytes(32)), Size: 32, PublicText: "x",
	})
	require.ErrorIs(t, err, errBoom)

	require.Len(t, f.objects.puts, 1)
	require.Len(t, f.objects.deletes, 1)
	assert.True(t, strings.HasPrefix(f.objects.deletes[0], "hub/General/"))
}

func TestListPublic_HidesPrivateText(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	f.create(t, "first", "secret-1", "A")
	f.create(t, "second", "secret-2", "B")

	list, err := f.svc.ListPublic(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].PublicText, "newest first")
	assert.Equal(t, "first", list[1].PublicText)

	raw, err := json.Marshal(list)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.Contains(t, string(raw), `"privateText":null`)
}

func TestListAll(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	f.create(t, "a", "p-a", "Trips")
	f.create(t, "b", "", "Family")
	f.create(t, "c", "p-c", "Trips")

	_, err := f.svc.ListAll(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	all, err := f.svc.ListAll(context.Background(), admin, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].PublicText, all[1].PublicText, all[2].PublicText})
	require.NotNil(t, all[0].PrivateText)
	assert.Equal(t, "p-c", *all[0].PrivateText)

	trips, err := f.svc.ListAll(context.Background(), admin, "Trips")
	require.NoError(t, err)
	require.Len(t, trips, 2)
	for _, u := range trips {
		assert.Equal(t, "Trips", u.FolderName)
	}

	none, err := f.svc.ListAll(context.Background(), admin, "trips")
	require.NoError(t, err)
	assert.Empty(t, none, "folder filter is exact")

	folders, err := f.svc.Folders(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"Family", "Trips"}, folders)

	_, err = f.svc.Folders(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdate(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	orig := f.create(t, "old", "private", "Trips")
	ctx := context.Background()

	got, err := f.svc.Update(ctx, admin, orig.ID, models.UploadPatch{PublicText: strPtr("X")})
	require.NoError(t, err)
	want := *orig
	want.PublicText = "X"
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("only publicText may change (-want +got):\n%s", diff)
	}

	got, err = f.svc.Update(ctx, admin, orig.ID, models.UploadPatch{
		PrivateText: models.NullableString{Set: true},
		FolderName:  strPtr("  Family "),
	})
	require.NoError(t, err)
	assert.Nil(t, got.PrivateText)
	assert.Equal(t, "Family", got.FolderName)
	assert.Equal(t, orig.DriveFileID, got.DriveFileID)

	got, err = f.svc.Update(ctx, admin, orig.ID, models.UploadPatch{})
	require.NoError(t, err)
	assert.Equal(t, "X", got.PublicText)

	puts, deletes := f.objects.calls()
	assert.Equal(t, 1, puts)
	assert.Equal(t, 0, deletes)
}

func TestUpdate_Rejections(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	orig := f.create(t, "old", "", "Trips")
	ctx := context.Background()

	_, err := f.svc.Update(ctx, nil, orig.ID, models.UploadPatch{PublicText: strPtr("X")})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Update(ctx, admin, orig.ID, models.UploadPatch{PublicText: strPtr(" ")})
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "publicText", ve.Field)

	_, err = f.svc.Update(ctx, admin, orig.ID, models.UploadPatch{FolderName: strPtr("")})
	ve, ok = AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "folderName", ve.Field)

	_, err = f.svc.Update(ctx, admin, 999, models.UploadPatch{PublicText: strPtr("X")})
	assert.ErrorIs(t, err, ErrNotFound)

	still, err := f.svc.Get(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, "old", still.PublicText)
}

func TestDelete(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	u := f.create(t, "x", "", "")
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Delete(ctx, nil, u.ID), ErrUnauthorized)

	require.NoError(t, f.svc.Delete(ctx, admin, u.ID))
	assert.Equal(t, []string{u.DriveFileID}, f.objects.deletes)

	_, err := f.svc.Get(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), f.metrics.Snapshot().DeletesTotal)
}

func TestDelete_UnknownIDSkipsObjectStore(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})

	err := f.svc.Delete(context.Background(), admin, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	_, deletes := f.objects.calls()
	assert.Equal(t, 0, deletes)
}

func TestDelete_RemoteFailureKeepsRow(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	u := f.create(t, "x", "", "")
	f.objects.deleteErr = errBoom

	err := f.svc.Delete(context.Background(), admin, u.ID)
	require.ErrorIs(t, err, errBoom)

	_, err = f.svc.Get(context.Background(), u.ID)
	assert.NoError(t, err, "row must survive a failed remote delete")
	assert.Equal(t, int64(1), f.metrics.Snapshot().DeleteErrorsTotal)
}

func TestDelete_RemoteMissingCountsAsDeleted(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	u := f.create(t, "x", "", "")
	f.objects.deleteErr = objectstore.ErrObjectNotFound

	require.NoError(t, f.svc.Delete(context.Background(), admin, u.ID))
	assert.Equal(t, 0, f.rows.count())
}

func TestDelete_RowFailureAfterRemote(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})
	u := f.create(t, "x", "", "")
	f.rows.deleteErr = errBoom

	err := f.svc.Delete(context.Background(), admin, u.ID)
	require.ErrorIs(t, err, errBoom)

	// A retry succeeds once the database recovers, the object is already gone.
	f.rows.deleteErr = nil
	f.objects.deleteErr = objectstore.ErrObjectNotFound
	require.NoError(t, f.svc.Delete(context.Background(), admin, u.ID))
	assert.Equal(t, 0, f.rows.count())
}

func TestPingStorage(t *testing.T) {
	f := newUploadFixture(t, UploadOptions{})

	_, err := f.svc.PingStorage(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	msg, err := f.svc.PingStorage(context.Background(), admin)
	require.NoError(t, err)
	assert.Contains(t, msg, "fake")

	f.objects.pingErr = errBoom
	_, err = f.svc.PingStorage(context.Background(), admin)
	assert.ErrorIs(t, err, errBoom)
}
