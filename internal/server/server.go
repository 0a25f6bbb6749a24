package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"drive-content-hub/internal/gallery"
	"drive-content-hub/internal/logging"
	"drive-content-hub/internal/metrics"
	"drive-content-hub/internal/models"
)

type Config struct {
	Addr           string // e.g. ":5000"
	AllowedOrigins []string
	CookieName     string
	CookieSecure   bool
	// MaxUploadBytes caps the file part of an upload. 0 means no limit.
	MaxUploadBytes int64
	Version        string
}

// AuthService is the part of gallery.AuthService the handlers call.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*gallery.LoginResult, error)
	Logout(ctx context.Context, token string)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	ChangePassword(ctx context.Context, user *models.User, current, next string) (string, error)
}

// UploadService is the part of gallery.UploadService the handlers call.
type UploadService interface {
	ListPublic(ctx context.Context) ([]gallery.PublicUpload, error)
	ListAll(ctx context.Context, user *models.User, folder string) ([]gallery.AdminUpload, error)
	Folders(ctx context.Context, user *models.User) ([]string, error)
	Get(ctx context.Context, id int64) (*models.Upload, error)
	Create(ctx context.Context, user *models.User, in gallery.NewUpload) (*gallery.AdminUpload, error)
	Update(ctx context.Context, user *models.User, id int64, p models.UploadPatch) (*gallery.AdminUpload, error)
	Delete(ctx context.Context, user *models.User, id int64) error
	PingStorage(ctx context.Context, user *models.User) (string, error)
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StorageProbe is satisfied by every objectstore.Store.
type StorageProbe interface {
	Ping(ctx context.Context) error
	Name() string
}

type Deps struct {
	Auth    AuthService
	Uploads UploadService
	DB      Pinger
	Storage StorageProbe
	// Files serves locally stored objects under /files when non-nil.
	Files   http.Handler
	Metrics *metrics.Metrics
	Log     logging.Logger
}

type Server struct {
	cfg        Config
	auth       AuthService
	uploads    UploadService
	db         Pinger
	storage    StorageProbe
	metrics    *metrics.Metrics
	log        logging.Logger
	handler    http.Handler
	httpServer *http.Server
}

func New(cfg Config, deps Deps) *Server {
	if cfg.CookieName == "" {
		cfg.CookieName = "gallery_session"
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(cfg.Version)
	}
	if deps.Log == nil {
		deps.Log = logging.Nop()
	}

	s := &Server{
		cfg:     cfg,
		auth:    deps.Auth,
		uploads: deps.Uploads,
		db:      deps.DB,
		storage: deps.Storage,
		metrics: deps.Metrics,
		log:     deps.Log.With("service", "http"),
	}
	s.handler = s.routes(deps.Files)
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if sl, ok := deps.Log.(interface{ Slog() *slog.Logger }); ok {
		// net/http reports accept and handshake errors through ErrorLog.
		s.httpServer.ErrorLog = slog.NewLogLogger(sl.Slog().With("service", "http").Handler(), slog.LevelError)
	}
	return s
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes(files http.Handler) http.Handler {
	r := chi.NewRouter()

	// Outermost first.
	r.Use(s.recoverMiddleware)
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(compressionMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)
	r.Get("/metrics", s.metrics.Handler())
	if files != nil {
		r.Mount("/files", http.StripPrefix("/files", files))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/uploads/public", s.handleListPublic)
		r.Get("/uploads/{id}", s.handleGetUpload)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Get("/user", s.handleMe)
			r.Post("/change-password", s.handleChangePassword)
			r.Get("/uploads/all", s.handleListAll)
			r.Get("/uploads/folders", s.handleFolders)
			r.Post("/uploads", s.handleCreateUpload)
			r.Put("/uploads/{id}", s.handleUpdateUpload)
			r.Delete("/uploads/{id}", s.handleDeleteUpload)
			r.Get("/storage/ping", s.handleStoragePing)
		})
	})

	return r
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.log.Info(context.Background(), "listening", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
