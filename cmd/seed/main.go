// Command seed creates the gallery admin account.
//
//	seed -username admin            # prompts for the password
//	echo s3cret | seed -username admin -reset
//
// The password is read from the terminal without echo, or from the first
// line of stdin when stdin is not a terminal. GALLERY_ADMIN_PASS is used when
// set and no prompt is possible.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"drive-content-hub/internal/auth"
	"drive-content-hub/internal/db"
	"drive-content-hub/internal/gallery"
	"drive-content-hub/internal/logging"
	"drive-content-hub/internal/metrics"
	"drive-content-hub/internal/models"
	"drive-content-hub/internal/store"
)

type options struct {
	databaseURL string
	username    string
	bcryptCost  int
	reset       bool
}

func main() {
	_ = godotenv.Load()

	opts, err := parseFlags(os.Args[1:], os.Getenv)
	if err != nil {
		os.Exit(2)
	}

	password, err := readPassword(os.Stdin, os.Stderr, os.Getenv("GALLERY_ADMIN_PASS"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), opts, password, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, getenv func(string) string) (options, error) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)

	def := getenv("GALLERY_ADMIN_USER")
	if def == "" {
		def = "admin"
	}

	var o options
	fs.StringVar(&o.databaseURL, "database-url", getenv("DATABASE_URL"), "PostgreSQL connection string")
	fs.StringVar(&o.username, "username", def, "admin username")
	fs.IntVar(&o.bcryptCost, "cost", auth.DefaultCost, "bcrypt cost")
	fs.BoolVar(&o.reset, "reset", false, "overwrite the password if the user already exists")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

// readPassword prompts on a terminal, otherwise reads one line from in.
// fallback is used when in is empty.
func readPassword(in *os.File, prompt io.Writer, fallback string) (string, error) {
	if term.IsTerminal(int(in.Fd())) {
		fmt.Fprint(prompt, "Admin password: ")
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return checkPassword(string(b))
	}

	line, err := firstLine(in)
	if err != nil {
		return "", err
	}
	if line == "" {
		line = fallback
	}
	return checkPassword(line)
}

func firstLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func checkPassword(pw string) (string, error) {
	if pw == "" {
		return "", errors.New("password is empty")
	}
	if err := auth.ValidatePassword(pw); err != nil {
		return "", err
	}
	return pw, nil
}

func run(ctx context.Context, o options, password string, out io.Writer) error {
	conn, err := db.OpenDB(o.databaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := db.RunMigrations(conn); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	users := store.NewUserRepository(conn)
	// The token codec is never used for seeding.
	svc := gallery.NewAuthService(users, store.NewSessionRepository(conn), auth.NewTokenCodec(""),
		gallery.AuthOptions{BcryptCost: o.bcryptCost}, metrics.New(""), logging.Nop())

	return seed(ctx, svc, users, o, password, out)
}

type admins interface {
	EnsureAdmin(ctx context.Context, username, password string) (*models.User, bool, error)
}

type passwordSetter interface {
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

func seed(ctx context.Context, svc admins, users passwordSetter, o options, password string, out io.Writer) error {
	u, created, err := svc.EnsureAdmin(ctx, o.username, password)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(out, "created admin user %q (id %d)\n", u.Username, u.ID)
		return nil
	}
	if !o.reset {
		fmt.Fprintf(out, "user %q already exists, password unchanged (use -reset to overwrite)\n", u.Username)
		return nil
	}

	hash, err := auth.HashPassword(password, o.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	fmt.Fprintf(out, "password reset for %q\n", u.Username)
	return nil
}
