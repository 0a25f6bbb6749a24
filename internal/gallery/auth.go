// Package gallery implements the gallery's business rules: who may see which
// fields of an upload, how uploads move between the database and the object
// store, and how admin sessions are established and checked.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"drive-content-hub/internal/auth"
	"drive-content-hub/internal/logging"
	"drive-content-hub/internal/metrics"
	"drive-content-hub/internal/models"
	"drive-content-hub/internal/store"
)

type AuthOptions struct {
	SessionTTL time.Duration
	BcryptCost int
}

type AuthService struct {
	users    UserStore
	sessions SessionStore
	tokens   *auth.TokenCodec
	opts     AuthOptions
	metrics  *metrics.Metrics
	log      logging.Logger
	now      func() time.Time
}

func NewAuthService(users UserStore, sessions SessionStore, tokens *auth.TokenCodec,
	opts AuthOptions, m *metrics.Metrics, log logging.Logger) *AuthService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		opts:     opts,
		metrics:  m,
		log:      log.With("service", "auth"),
		now:      time.Now,
	}
}

// LoginResult carries what the HTTP layer needs to set the session cookie.
type LoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// Login checks the credentials and opens a new session.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.RecordLoginAttempt(false)
			s.log.Info(ctx, "login rejected", "username", username, "reason", "unknown_user")
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		s.metrics.RecordLoginAttempt(false)
		s.log.Info(ctx, "login rejected", "username", username, "reason", "bad_password")
		return nil, ErrUnauthorized
	}

	sid, err := auth.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	expires := s.now().Add(s.opts.SessionTTL)
	if _, err := s.sessions.Create(ctx, sid, u.ID, expires); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	tok, err := s.tokens.Sign(sid, u.ID, expires)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	s.metrics.RecordLoginAttempt(true)
	s.refreshActive(ctx)
	s.log.Info(ctx, "login", "user_id", u.ID)
	return &LoginResult{User: u, Token: tok, ExpiresAt: expires}, nil
}

// Logout ends the session carried by token. Missing, garbled or expired
// tokens are fine.
func (s *AuthService) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	sid, _, err := s.tokens.Parse(token)
	if err != nil {
		return
	}
	if err := s.sessions.Delete(ctx, sid); err != nil {
		s.log.Warn(ctx, "logout: session delete failed", "err", err)
		return
	}
	s.refreshActive(ctx)
}

// Authenticate resolves a session token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	sid, uid, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.UserID != uid || sess.Expired(s.now()) {
		return nil, ErrUnauthorized
	}

	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// ChangePassword replaces the password of user after checking the current
// one. The new password is stored as given.
func (s *AuthService) ChangePassword(ctx context.Context, user *models.User, current, next string) (string, error) {
	if user == nil {
		return "", ErrUnauthorized
	}
	fresh, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnauthorized
		}
		return "", fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(fresh.PasswordHash, current) {
		return "", invalid("currentPassword", MsgIncorrectPassword)
	}
	if err := auth.ValidatePassword(next); err != nil {
		return "", invalid("newPassword", "Password must be at most 72 bytes")
	}

	hash, err := auth.HashPassword(next, s.opts.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}
	s.log.Info(ctx, "password changed", "user_id", user.ID)
	return MsgPasswordUpdated, nil
}

// EnsureAdmin creates the admin account unless a user with that name exists.
// An existing account is left untouched.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) (*models.User, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, false, invalid("username", "username and password are required")
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("load user: %w", err)
	}

	hash, err := auth.HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}
	u, err = s.users.Create(ctx, username, hash)
	if errors.Is(err, store.ErrConflict) {
		// Lost a race with another seeder.
		u, err = s.users.GetByUsername(ctx, username)
		if err != nil {
			return nil, false, fmt.Errorf("load user: %w", err)
		}
		return u, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	s.log.Info(ctx, "admin user created", "username", username, "user_id", u.ID)
	return u, true, nil
}

// SweepExpiredSessions deletes expired sessions and refreshes the active
// session gauge.
func (s *AuthService) SweepExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	s.metrics.RecordSessionsSwept(n)
	s.refreshActive(ctx)
	return n, nil
}

// RunSessionSweeper sweeps once immediately and then every interval until
// ctx is cancelled.
func (s *AuthService) RunSessionSweeper(ctx context.Context, interval time.Duration) {
	s.log.Info(ctx, "session sweeper starting", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info(context.Background(), "session sweeper stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *AuthService) sweepOnce(ctx context.Context) {
	start := time.Now()
	n, err := s.SweepExpiredSessions(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error(ctx, "session sweep failed", "err", err)
		}
		return
	}
	s.log.Debug(ctx, "session sweep complete", "deleted", n, "duration_ms", time.Since(start).Milliseconds())
}

func (s *AuthService) refreshActive(ctx context.Context) {
	n, err := s.sessions.CountActive(ctx, s.now())
	if err != nil {
		s.log.Warn(ctx, "count active sessions failed", "err", err)
		return
	}
	s.metrics.SetActiveSessions(n)
}
