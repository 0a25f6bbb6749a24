package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"drive-content-hub/internal/gallery"
)

const maxJSONBody = 1 << 20

type loginRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword *string `json:"currentPassword"`
	NewPassword     *string `json:"newPassword"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// decodeObject decodes a JSON object body into dst. Wrong field types,
// non-object bodies and trailing garbage are all errors.
func decodeObject(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON body")
	}
	return nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeObject(r, &req); err != nil || req.Username == nil || req.Password == nil {
		writeMessage(w, http.StatusBadRequest, "Invalid input")
		return
	}

	res, err := s.auth.Login(r.Context(), *req.Username, *req.Password)
	if err != nil {
		if errors.Is(err, gallery.ErrUnauthorized) {
			writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		s.writeServiceError(w, r, err, msgInternal)
		return
	}

	s.setSessionCookie(w, res.Token, res.ExpiresAt)
	writeJSON(w, http.StatusOK, res.User)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if tok := s.sessionToken(r); tok != "" {
		s.auth.Logout(r.Context(), tok)
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFromContext(r.Context()))
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeObject(r, &req); err != nil || req.CurrentPassword == nil || req.NewPassword == nil {
		writeMessage(w, http.StatusBadRequest, "Invalid input")
		return
	}

	msg, err := s.auth.ChangePassword(r.Context(), userFromContext(r.Context()), *req.CurrentPassword, *req.NewPassword)
	if err != nil {
		s.writeServiceError(w, r, err, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}
