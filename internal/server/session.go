package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"drive-content-hub/internal/gallery"
	"drive-content-hub/internal/models"
)

const userKey ctxKey = "user"

func userFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func (s *Server) sessionToken(r *http.Request) string {
	c, err := r.Cookie(s.cfg.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// requireSession rejects requests without a valid session before any
// handler runs and stores the user in the request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := s.auth.Authenticate(r.Context(), s.sessionToken(r))
		if err != nil {
			if errors.Is(err, gallery.ErrUnauthorized) {
				writeMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			s.writeServiceError(w, r, err, msgInternal)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// optionalUser returns the session user or nil. Lookup failures are treated
// as anonymous.
func (s *Server) optionalUser(r *http.Request) *models.User {
	tok := s.sessionToken(r)
	if tok == "" {
		return nil
	}
	u, err := s.auth.Authenticate(r.Context(), tok)
	if err != nil {
		if !errors.Is(err, gallery.ErrUnauthorized) {
			s.log.Warn(r.Context(), "session lookup failed", "rid", RequestIDFromContext(r.Context()), "err", err)
		}
		return nil
	}
	return u
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.CookieSecure,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.CookieSecure,
	})
}
