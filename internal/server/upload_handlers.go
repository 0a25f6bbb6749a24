package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"drive-content-hub/internal/gallery"
	"drive-content-hub/internal/models"
)

// multipartOverhead is the allowance for form fields and part headers on
// top of the file itself.
const multipartOverhead = 1 << 20

// multipartMemory is how much of a multipart body is buffered in memory
// before parts spill to temporary files.
const multipartMemory = 8 << 20

func (s *Server) handleListPublic(w http.ResponseWriter, r *http.Request) {
	out, err := s.uploads.ListPublic(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListAll(w http.ResponseWriter, r *http.Request) {
	out, err := s.uploads.ListAll(r.Context(), userFromContext(r.Context()), r.URL.Query().Get("folder"))
	if err != nil {
		s.writeServiceError(w, r, err, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	out, err := s.uploads.Folders(r.Context(), userFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetUpload answers with the admin view when the caller has a valid
// session and the public view otherwise.
func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := uploadID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Upload not found")
		return
	}
	row, err := s.uploads.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, msgInternal)
		return
	}
	if s.optionalUser(r) != nil {
		writeJSON(w, http.StatusOK, gallery.AdminView(*row))
		return
	}
	writeJSON(w, http.StatusOK, gallery.PublicView(*row))
}

func (s *Server) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeMessage(w, http.StatusBadRequest, gallery.MsgNoFile)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, gallery.MsgNoFile)
		return
	}
	defer file.Close()

	out, err := s.uploads.Create(r.Context(), userFromContext(r.Context()), gallery.NewUpload{
		File:        file,
		Filename:    header.Filename,
		Size:        header.Size,
		PublicText:  r.FormValue("publicText"),
		PrivateText: r.FormValue("privateText"),
		FolderName:  r.FormValue("folderName"),
	})
	if err != nil {
		s.writeServiceError(w, r, err, "Upload failed")
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := uploadID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Upload not found")
		return
	}

	patch, field, err := decodePatch(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "Validation failed", Field: field})
		return
	}

	out, err := s.uploads.Update(r.Context(), userFromContext(r.Context()), id, patch)
	if err != nil {
		s.writeServiceError(w, r, err, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := uploadID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Upload not found")
		return
	}
	if err := s.uploads.Delete(r.Context(), userFromContext(r.Context()), id); err != nil {
		s.writeServiceError(w, r, err, msgInternal)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pingResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleStoragePing(w http.ResponseWriter, r *http.Request) {
	msg, err := s.uploads.PingStorage(r.Context(), userFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, gallery.ErrUnauthorized) {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		s.log.Error(r.Context(), "storage ping failed", "rid", RequestIDFromContext(r.Context()), "err", err)
		writeJSON(w, http.StatusInternalServerError, pingResponse{Message: "Storage connection failed"})
		return
	}
	writeJSON(w, http.StatusOK, pingResponse{Success: true, Message: msg})
}

func uploadID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Keys a client may see on an upload but never change.
var immutableKeys = map[string]bool{
	"id":            true,
	"driveFileId":   true,
	"webViewLink":   true,
	"thumbnailLink": true,
	"createdAt":     true,
}

// decodePatch turns a partial JSON object into an UploadPatch. On failure it
// returns the offending key, which is empty when the body itself is bad.
func decodePatch(r *http.Request) (models.UploadPatch, string, error) {
	var p models.UploadPatch

	var raw map[string]json.RawMessage
	if err := decodeObject(r, &raw); err != nil {
		return p, "", err
	}
	if raw == nil {
		return p, "", errors.New("body must be a JSON object")
	}

	for key := range raw {
		if immutableKeys[key] {
			return p, key, errors.New("field is immutable")
		}
	}

	if v, ok := raw["publicText"]; ok {
		s, err := nonBlankString(v)
		if err != nil {
			return p, "publicText", err
		}
		p.PublicText = &s
	}
	if v, ok := raw["folderName"]; ok {
		s, err := nonBlankString(v)
		if err != nil {
			return p, "folderName", err
		}
		p.FolderName = &s
	}
	if v, ok := raw["privateText"]; ok {
		if err := json.Unmarshal(v, &p.PrivateText); err != nil {
			return p, "privateText", err
		}
	}
	return p, "", nil
}

func nonBlankString(v json.RawMessage) (string, error) {
	var s *string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", err
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		return "", errors.New("must be a non-empty string")
	}
	return *s, nil
}
