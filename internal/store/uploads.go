package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"drive-content-hub/internal/db"
	"drive-content-hub/internal/models"
)

const uploadColumns = `id, public_text, private_text, folder_name, drive_file_id, web_view_link, thumbnail_link, created_at`

type UploadRepository struct {
	db db.DBTX
}

func NewUploadRepository(conn db.DBTX) *UploadRepository {
	return &UploadRepository{db: conn}
}

func (r *UploadRepository) Create(ctx context.Context, in models.NewUploadRow) (*models.Upload, error) {
	query := `INSERT INTO uploads (public_text, private_text, folder_name, drive_file_id, web_view_link, thumbnail_link)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + uploadColumns

	row := r.db.QueryRowContext(ctx, query,
		in.PublicText, nullString(in.PrivateText), in.FolderName,
		in.DriveFileID, in.WebViewLink, nullString(in.ThumbnailLink))
	return scanUpload(row)
}

func (r *UploadRepository) Get(ctx context.Context, id int64) (*models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE id = $1`
	return scanUpload(r.db.QueryRowContext(ctx, query, id))
}

// List returns uploads newest first. An empty folder means every folder.
func (r *UploadRepository) List(ctx context.Context, folder string) ([]models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads`
	var args []any
	if folder != "" {
		query += ` WHERE folder_name = $1`
		args = append(args, folder)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	uploads := make([]models.Upload, 0)
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return uploads, nil
}

// Folders returns the distinct folder labels in use, sorted.
func (r *UploadRepository) Folders(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT folder_name FROM uploads ORDER BY folder_name`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	folders := make([]string, 0)
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return folders, nil
}

// Update applies the non-empty fields of p. Only caption and folder columns
// are ever written here.
func (r *UploadRepository) Update(ctx context.Context, id int64, p models.UploadPatch) (*models.Upload, error) {
	if p.Empty() {
		return r.Get(ctx, id)
	}

	args := []any{id}
	var sets []string
	if p.PublicText != nil {
		args = append(args, *p.PublicText)
		sets = append(sets, fmt.Sprintf("public_text = $%d", len(args)))
	}
	if p.PrivateText.Set {
		args = append(args, nullString(p.PrivateText.Value))
		sets = append(sets, fmt.Sprintf("private_text = $%d", len(args)))
	}
	if p.FolderName != nil {
		args = append(args, *p.FolderName)
		sets = append(sets, fmt.Sprintf("folder_name = $%d", len(args)))
	}

	query := `UPDATE uploads SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + uploadColumns
	return scanUpload(r.db.QueryRowContext(ctx, query, args...))
}

func (r *UploadRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*models.Upload, error) {
	var (
		u         models.Upload
		private   sql.NullString
		thumbnail sql.NullString
	)
	err := row.Scan(&u.ID, &u.PublicText, &private, &u.FolderName,
		&u.DriveFileID, &u.WebViewLink, &thumbnail, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.PrivateText = stringPtr(private)
	u.ThumbnailLink = stringPtr(thumbnail)
	return &u, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
