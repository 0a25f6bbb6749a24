// Package config loads runtime settings for the gallery backend.
//
// Values are layered, lowest precedence first: built-in defaults, an optional
// YAML file named by GALLERY_CONFIG_FILE, a .env file (GALLERY_ENV_FILE,
// default ".env") and finally the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends understood by objectstore.Open.
const (
	BackendMinio = "minio"
	BackendS3    = "s3"
	BackendLocal = "local"
)

type Config struct {
	Addr           string   `yaml:"addr"`
	Env            string   `yaml:"env"`
	DatabaseURL    string   `yaml:"database_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`

	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
	Seed    SeedConfig    `yaml:"seed"`
	Storage StorageConfig `yaml:"storage"`
}

type SessionConfig struct {
	Secret        string        `yaml:"secret"`
	TTL           time.Duration `yaml:"ttl"`
	CookieName    string        `yaml:"cookie_name"`
	CookieSecure  bool          `yaml:"cookie_secure"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// SeedConfig controls creation of the single admin account.
type SeedConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type StorageConfig struct {
	Backend      string      `yaml:"backend"`
	ObjectPrefix string      `yaml:"object_prefix"`
	Minio        MinioConfig `yaml:"minio"`
	S3           S3Config    `yaml:"s3"`
	Local        LocalConfig `yaml:"local"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	PublicURL string `yaml:"public_url"`
}

type S3Config struct {
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PublicURL string `yaml:"public_url"`
	PathStyle bool   `yaml:"path_style"`
}

type LocalConfig struct {
	Dir       string `yaml:"dir"`
	PublicURL string `yaml:"public_url"`
}

// Defaults returns a development configuration. Secrets are left empty on
// purpose so Validate refuses to start without them.
func Defaults() *Config {
	return &Config{
		Addr:           ":5000",
		Env:            "development",
		AllowedOrigins: []string{"http://localhost:5173"},
		MaxUploadBytes: 20 << 20,
		Session: SessionConfig{
			TTL:           12 * time.Hour,
			CookieName:    "gallery_session",
			SweepInterval: 15 * time.Minute,
			BcryptCost:    12,
		},
		Log: LogConfig{Format: "text", Level: "info"},
		Seed: SeedConfig{
			Enabled:  true,
			Username: "admin",
			Password: "0777",
		},
		Storage: StorageConfig{
			Backend:      BackendLocal,
			ObjectPrefix: "drive-content-hub",
			Local: LocalConfig{
				Dir:       "./data/uploads",
				PublicURL: "http://localhost:5000/files",
			},
			S3: S3Config{Region: "us-east-1"},
		},
	}
}

// Load builds the configuration from all layers and validates it.
func Load() (*Config, error) {
	envFile := os.Getenv("GALLERY_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Defaults()
	if path := os.Getenv("GALLERY_CONFIG_FILE"); path != "" {
		if err := cfg.overlayYAML(path); err != nil {
			return nil, err
		}
	}

	v := NewConfigValidator()
	cfg.overlayEnv(os.LookupEnv, v)
	cfg.Validate(v)
	if v.HasErrors() {
		return nil, errors.New(v.ErrorString())
	}
	return cfg, nil
}

func (c *Config) overlayYAML(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LogFormat returns the effective log format; production always logs JSON.
func (c *Config) LogFormat() string {
	if c.IsProduction() {
		return "json"
	}
	return c.Log.Format
}

type lookupFunc func(string) (string, bool)

// overlayEnv applies environment variables on top of c. Unparseable values
// are reported through v rather than silently ignored.
func (c *Config) overlayEnv(lookup lookupFunc, v *ConfigValidator) {
	str := func(key string, dst *string) {
		if val, ok := lookup(key); ok && val != "" {
			*dst = val
		}
	}
	boolean := func(key string, dst *bool) {
		if val, ok := lookup(key); ok && val != "" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				v.AddError(key, "must be a boolean")
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if val, ok := lookup(key); ok && val != "" {
			d, err := time.ParseDuration(val)
			if err != nil {
				v.AddError(key, "must be a valid duration (e.g. 12h, 15m)")
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int64) {
		if val, ok := lookup(key); ok && val != "" {
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				v.AddError(key, "must be a valid integer")
				return
			}
			*dst = n
		}
	}

	if port, ok := lookup("PORT"); ok && port != "" {
		c.Addr = ":" + port
	}
	str("GALLERY_ADDR", &c.Addr)
	str("GALLERY_ENV", &c.Env)
	str("DATABASE_URL", &c.DatabaseURL)
	if origins, ok := lookup("GALLERY_ALLOWED_ORIGINS"); ok && origins != "" {
		c.AllowedOrigins = splitList(origins)
	}
	integer("GALLERY_MAX_UPLOAD_BYTES", &c.MaxUploadBytes)

	str("GALLERY_SESSION_SECRET", &c.Session.Secret)
	duration("GALLERY_SESSION_TTL", &c.Session.TTL)
	str("GALLERY_COOKIE_NAME", &c.Session.CookieName)
	boolean("GALLERY_COOKIE_SECURE", &c.Session.CookieSecure)
	duration("GALLERY_SESSION_SWEEP_INTERVAL", &c.Session.SweepInterval)
	var cost = int64(c.Session.BcryptCost)
	integer("GALLERY_BCRYPT_COST", &cost)
	c.Session.BcryptCost = int(cost)

	str("GALLERY_LOG_FORMAT", &c.Log.Format)
	str("GALLERY_LOG_LEVEL", &c.Log.Level)

	boolean("GALLERY_SEED_ADMIN", &c.Seed.Enabled)
	str("GALLERY_ADMIN_USER", &c.Seed.Username)
	str("GALLERY_ADMIN_PASS", &c.Seed.Password)

	str("GALLERY_STORAGE_BACKEND", &c.Storage.Backend)
	str("GALLERY_OBJECT_PREFIX", &c.Storage.ObjectPrefix)

	str("GALLERY_MINIO_ENDPOINT", &c.Storage.Minio.Endpoint)
	str("GALLERY_MINIO_ACCESS_KEY", &c.Storage.Minio.AccessKey)
	str("GALLERY_MINIO_SECRET_KEY", &c.Storage.Minio.SecretKey)
	str("GALLERY_MINIO_BUCKET", &c.Storage.Minio.Bucket)
	str("GALLERY_MINIO_PUBLIC_URL", &c.Storage.Minio.PublicURL)

	str("GALLERY_S3_REGION", &c.Storage.S3.Region)
	str("GALLERY_S3_BUCKET", &c.Storage.S3.Bucket)
	str("GALLERY_S3_ENDPOINT", &c.Storage.S3.Endpoint)
	str("GALLERY_S3_ACCESS_KEY", &c.Storage.S3.AccessKey)
	str("GALLERY_S3_SECRET_KEY", &c.Storage.S3.SecretKey)
	str("GALLERY_S3_PUBLIC_URL", &c.Storage.S3.PublicURL)
	boolean("GALLERY_S3_PATH_STYLE", &c.Storage.S3.PathStyle)

	str("GALLERY_LOCAL_DIR", &c.Storage.Local.Dir)
	str("GALLERY_LOCAL_PUBLIC_URL", &c.Storage.Local.PublicURL)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if s := strings.TrimRight(strings.TrimSpace(p), "/"); s != "" {
			out = append(out, s)
		}
	}
	return out
}
