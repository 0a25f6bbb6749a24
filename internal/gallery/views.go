package gallery

import (
	"time"

	"drive-content-hub/internal/models"
)

// hiddenText has no values, so a PublicUpload can only ever encode
// privateText as null.
type hiddenText struct{}

// PublicUpload is what anonymous visitors see.
type PublicUpload struct {
	ID            int64       `json:"id"`
	PublicText    string      `json:"publicText"`
	PrivateText   *hiddenText `json:"privateText"`
	FolderName    string      `json:"folderName"`
	DriveFileID   string      `json:"driveFileId"`
	WebViewLink   string      `json:"webViewLink"`
	ThumbnailLink *string     `json:"thumbnailLink"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// AdminUpload is the full record returned to an authenticated admin.
type AdminUpload struct {
	ID            int64     `json:"id"`
	PublicText    string    `json:"publicText"`
	PrivateText   *string   `json:"privateText"`
	FolderName    string    `json:"folderName"`
	DriveFileID   string    `json:"driveFileId"`
	WebViewLink   string    `json:"webViewLink"`
	ThumbnailLink *string   `json:"thumbnailLink"`
	CreatedAt     time.Time `json:"createdAt"`
}

func PublicView(u models.Upload) PublicUpload {
	return PublicUpload{
		ID:            u.ID,
		PublicText:    u.PublicText,
		FolderName:    u.FolderName,
		DriveFileID:   u.DriveFileID,
		WebViewLink:   u.WebViewLink,
		ThumbnailLink: u.ThumbnailLink,
		CreatedAt:     u.CreatedAt,
	}
}

func AdminView(u models.Upload) AdminUpload {
	return AdminUpload{
		ID:            u.ID,
		PublicText:    u.PublicText,
		PrivateText:   u.PrivateText,
		FolderName:    u.FolderName,
		DriveFileID:   u.DriveFileID,
		WebViewLink:   u.WebViewLink,
		ThumbnailLink: u.ThumbnailLink,
		CreatedAt:     u.CreatedAt,
	}
}

func publicViews(in []models.Upload) []PublicUpload {
	out := make([]PublicUpload, 0, len(in))
	for _, u := range in {
		out = append(out, PublicView(u))
	}
	return out
}

func adminViews(in []models.Upload) []AdminUpload {
	out := make([]AdminUpload, 0, len(in))
	for _, u := range in {
		out = append(out, AdminView(u))
	}
	return out
}
