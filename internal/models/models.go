// Package models holds the persisted entities shared by the store and
// service layers.
package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// DefaultFolder is used when an upload is created without a folder label.
const DefaultFolder = "General"

// User is the admin account. PasswordHash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// Upload is one image plus its captions and folder label.
type Upload struct {
	ID            int64
	PublicText    string
	PrivateText   *string
	FolderName    string
	DriveFileID   string
	WebViewLink   string
	ThumbnailLink *string
	CreatedAt     time.Time
}

// NewUploadRow is what the store needs to insert an upload. The id and
// creation time are assigned by the database.
type NewUploadRow struct {
	PublicText    string
	PrivateText   *string
	FolderName    string
	DriveFileID   string
	WebViewLink   string
	ThumbnailLink *string
}

// UploadPatch lists the only mutable fields of an upload. A nil pointer
// leaves the column unchanged.
type UploadPatch struct {
	PublicText  *string
	PrivateText NullableString
	FolderName  *string
}

// Empty reports whether the patch changes nothing.
func (p UploadPatch) Empty() bool {
	return p.PublicText == nil && !p.PrivateText.Set && p.FolderName == nil
}

// Session binds an opaque id to a user until ExpiresAt.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// NullableString distinguishes an absent JSON key (Set=false) from an
// explicit null (Set=true, Value=nil).
type NullableString struct {
	Set   bool
	Value *string
}

func (n *NullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}
