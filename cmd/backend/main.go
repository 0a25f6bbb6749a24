// Command backend serves the gallery API.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drive-content-hub/internal/auth"
	"drive-content-hub/internal/config"
	"drive-content-hub/internal/db"
	"drive-content-hub/internal/gallery"
	"drive-content-hub/internal/logging"
	"drive-content-hub/internal/metrics"
	"drive-content-hub/internal/objectstore"
	"drive-content-hub/internal/server"
	"drive-content-hub/internal/store"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownGrace = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "backend: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logging.New(logOut, logging.Options{Format: cfg.LogFormat(), Level: cfg.Log.Level}).
		With("service", "backend")

	conn, err := db.OpenDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = conn.Close() }()

	names, err := db.MigrationNames()
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	log.Info(ctx, "running migrations", "files", names)
	if err := db.RunMigrations(conn); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	objects, err := objectstore.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	log.Info(ctx, "object store ready", "backend", objects.Name())

	m := metrics.New(version)
	authSvc := gallery.NewAuthService(
		store.NewUserRepository(conn),
		store.NewSessionRepository(conn),
		auth.NewTokenCodec(cfg.Session.Secret),
		gallery.AuthOptions{SessionTTL: cfg.Session.TTL, BcryptCost: cfg.Session.BcryptCost},
		m, log,
	)
	uploadSvc := gallery.NewUploadService(
		store.NewUploadRepository(conn),
		objects,
		gallery.UploadOptions{MaxUploadBytes: cfg.MaxUploadBytes},
		m, log,
	)

	if cfg.Seed.Enabled {
		if _, created, err := authSvc.EnsureAdmin(ctx, cfg.Seed.Username, cfg.Seed.Password); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		} else if created {
			log.Info(ctx, "admin user created", "username", cfg.Seed.Username)
		}
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go authSvc.RunSessionSweeper(sweepCtx, cfg.Session.SweepInterval)

	srv := server.New(serverConfig(cfg), server.Deps{
		Auth:    authSvc,
		Uploads: uploadSvc,
		DB:      conn,
		Storage: objects,
		Files:   filesHandler(objects),
		Metrics: m,
		Log:     log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting", "addr", cfg.Addr, "version", version, "env", cfg.Env)
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info(context.Background(), "shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		Addr:           cfg.Addr,
		AllowedOrigins: cfg.AllowedOrigins,
		CookieName:     cfg.Session.CookieName,
		CookieSecure:   cfg.Session.CookieSecure,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Version:        version,
	}
}

// filesHandler exposes stores that serve their own objects, which today is
// only the local disk backend.
func filesHandler(s objectstore.Store) http.Handler {
	if fs, ok := s.(interface{ Handler() http.Handler }); ok {
		return fs.Handler()
	}
	return nil
}
