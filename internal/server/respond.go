package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"drive-content-hub/internal/gallery"
)

// errorBody is the shape of every error response.
type errorBody struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Message: msg})
}

// writeServiceError maps a gallery error to its status code. Anything the
// taxonomy does not know is logged and answered with internalMsg.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	if ve, ok := gallery.AsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: ve.Message, Field: ve.Field})
		return
	}
	switch {
	case errors.Is(err, gallery.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, gallery.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Upload not found")
	case errors.Is(err, gallery.ErrTooLarge):
		writeMessage(w, http.StatusRequestEntityTooLarge, "File too large")
	default:
		s.log.Error(r.Context(), "request failed",
			"rid", RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		writeMessage(w, http.StatusInternalServerError, internalMsg)
	}
}

const msgInternal = "Internal Server Error"
