// validation.go - startup validation of the loaded configuration.
//
// Every problem is collected so the operator sees the full list at once
// instead of fixing one variable per restart.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator accumulates validation errors.
type ConfigValidator struct {
	errors []ConfigValidationError
}

func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		errors: make([]ConfigValidationError, 0),
	}
}

func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{
		Field:   field,
		Message: message,
	})
}

func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *ConfigValidator) Errors() []ConfigValidationError {
	return v.errors
}

// ErrorString returns a formatted string of all errors.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n", len(v.errors)))
	for i, err := range v.errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

func (v *ConfigValidator) ValidateRequired(key, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(key, "required setting is empty")
	}
}

// ValidateURL validates that a value is an http(s) URL.
func (v *ConfigValidator) ValidateURL(key, value string) {
	if value == "" {
		return
	}

	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.AddError(key, "URL must use http or https scheme")
	}
}

// ValidatePort validates "host:port" or ":port" listen addresses.
func (v *ConfigValidator) ValidatePort(key, value string) {
	if value == "" {
		v.AddError(key, "listen address is empty")
		return
	}

	portStr := value
	if i := strings.LastIndex(value, ":"); i >= 0 {
		portStr = value[i+1:]
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}

	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

func (v *ConfigValidator) ValidateMinLength(key, value string, minLen int) {
	if value == "" {
		return
	}

	if len(value) < minLen {
		v.AddError(key, fmt.Sprintf("must be at least %d characters", minLen))
	}
}

func (v *ConfigValidator) ValidateEnum(key, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}

	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// Validate checks c and records every problem in v.
func (c *Config) Validate(v *ConfigValidator) {
	v.ValidatePort("addr", c.Addr)
	v.ValidateEnum("env", c.Env, []string{"development", "staging", "production"})

	v.ValidateRequired("database_url", c.DatabaseURL)
	if c.DatabaseURL != "" &&
		!strings.HasPrefix(c.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		v.AddError("database_url", "must be a valid PostgreSQL connection string")
	}

	if c.MaxUploadBytes < 0 {
		v.AddError("max_upload_bytes", "must not be negative")
	}
	for _, o := range c.AllowedOrigins {
		if o != "*" {
			v.ValidateURL("allowed_origins", o)
		}
	}

	v.ValidateRequired("session.secret", c.Session.Secret)
	v.ValidateMinLength("session.secret", c.Session.Secret, 32)
	if c.Session.TTL <= 0 {
		v.AddError("session.ttl", "must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		v.AddError("session.sweep_interval", "must be positive")
	}
	v.ValidateRequired("session.cookie_name", c.Session.CookieName)
	if c.Session.BcryptCost < 4 || c.Session.BcryptCost > 31 {
		v.AddError("session.bcrypt_cost", "must be between 4 and 31")
	}
	if c.IsProduction() && !c.Session.CookieSecure {
		v.AddError("session.cookie_secure", "must be true in production")
	}

	v.ValidateEnum("log.format", c.Log.Format, []string{"json", "text"})
	v.ValidateEnum("log.level", c.Log.Level, []string{"debug", "info", "warn", "error"})

	if c.Seed.Enabled {
		v.ValidateRequired("seed.username", c.Seed.Username)
		v.ValidateRequired("seed.password", c.Seed.Password)
	}

	c.Storage.validate(v)
}

func (s StorageConfig) validate(v *ConfigValidator) {
	v.ValidateRequired("storage.object_prefix", s.ObjectPrefix)

	switch s.Backend {
	case BackendMinio:
		v.ValidateRequired("storage.minio.endpoint", s.Minio.Endpoint)
		v.ValidateRequired("storage.minio.access_key", s.Minio.AccessKey)
		v.ValidateRequired("storage.minio.secret_key", s.Minio.SecretKey)
		v.ValidateRequired("storage.minio.bucket", s.Minio.Bucket)
		v.ValidateURL("storage.minio.public_url", s.Minio.PublicURL)
	case BackendS3:
		v.ValidateRequired("storage.s3.region", s.S3.Region)
		v.ValidateRequired("storage.s3.bucket", s.S3.Bucket)
		v.ValidateURL("storage.s3.endpoint", s.S3.Endpoint)
		v.ValidateURL("storage.s3.public_url", s.S3.PublicURL)
		if (s.S3.AccessKey == "") != (s.S3.SecretKey == "") {
			v.AddError("storage.s3.access_key", "access and secret key must be set together")
		}
	case BackendLocal:
		v.ValidateRequired("storage.local.dir", s.Local.Dir)
		v.ValidateRequired("storage.local.public_url", s.Local.PublicURL)
		v.ValidateURL("storage.local.public_url", s.Local.PublicURL)
	default:
		v.AddError("storage.backend", fmt.Sprintf("must be one of: %s, %s, %s (got: %s)",
			BackendMinio, BackendS3, BackendLocal, s.Backend))
	}
}
