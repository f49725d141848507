// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Upload backends.
const (
	UploadCloudinary = "cloudinary"
	UploadS3         = "s3"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// JWTSecret verifies HS256 bearer tokens. Required.
	JWTSecret string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// LogFormat is "json" (default) or "text".
	LogFormat string

	// SentryDSN enables error reporting to Sentry when set.
	SentryDSN string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"].
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// MaxBodyBytes caps request bodies, photo uploads included. Defaults to 10 MiB.
	MaxBodyBytes int64

	// RunMigrations applies embedded migrations at startup. Defaults to true.
	RunMigrations bool

	// SessionIdleTimeout drops an account's trip cache after this long
	// without requests. Defaults to 30m; 0 keeps caches until logout.
	SessionIdleTimeout time.Duration

	// UploadBackend is "cloudinary" (default) or "s3".
	UploadBackend string

	// UploadFileRoot, when set, lets photo references name files under this
	// directory (file:// or absolute path). Empty disables file locators.
	UploadFileRoot string

	Cloudinary CloudinaryConfig
	S3         S3Config
}

// CloudinaryConfig configures unsigned uploads. CloudName or Endpoint and
// UploadPreset are required when the Cloudinary backend is selected.
type CloudinaryConfig struct {
	CloudName    string
	UploadPreset string
	Endpoint     string // overrides the upload URL derived from CloudName
}

// S3Config configures an S3-compatible bucket (AWS S3, MinIO, R2, ...).
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PublicURL string // base URL objects are served from
}

// Load reads configuration from environment variables and returns a Config.
// A .env file in the working directory is read first if present; it never
// overrides variables already set. Returns an error listing any required
// variables that are not set.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		SentryDSN:      os.Getenv("SENTRY_DSN"),
		CORSOrigins:    splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		UploadBackend:  strings.ToLower(getEnv("UPLOAD_BACKEND", UploadCloudinary)),
		UploadFileRoot: os.Getenv("UPLOAD_FILE_ROOT"),
		Cloudinary: CloudinaryConfig{
			CloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
			UploadPreset: os.Getenv("CLOUDINARY_UPLOAD_PRESET"),
			Endpoint:     os.Getenv("CLOUDINARY_ENDPOINT"),
		},
		S3: S3Config{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "auto"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			PublicURL: os.Getenv("S3_PUBLIC_URL"),
		},
	}

	var errs []error

	maxBody, err := strconv.ParseInt(getEnv("MAX_BODY_BYTES", "10485760"), 10, 64)
	if err != nil || maxBody <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be a positive integer"))
	}
	cfg.MaxBodyBytes = maxBody

	cfg.RunMigrations, err = strconv.ParseBool(getEnv("RUN_MIGRATIONS", "true"))
	if err != nil {
		errs = append(errs, errors.New("RUN_MIGRATIONS must be a boolean"))
	}

	cfg.SessionIdleTimeout, err = time.ParseDuration(getEnv("SESSION_IDLE_TIMEOUT", "30m"))
	if err != nil || cfg.SessionIdleTimeout < 0 {
		errs = append(errs, errors.New("SESSION_IDLE_TIMEOUT must be a non-negative duration"))
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	switch cfg.UploadBackend {
	case UploadCloudinary:
		if cfg.Cloudinary.UploadPreset == "" {
			missing = append(missing, "CLOUDINARY_UPLOAD_PRESET")
		}
		if cfg.Cloudinary.CloudName == "" && cfg.Cloudinary.Endpoint == "" {
			missing = append(missing, "CLOUDINARY_CLOUD_NAME")
		}
	case UploadS3:
		for key, v := range map[string]string{
			"S3_BUCKET":     cfg.S3.Bucket,
			"S3_ACCESS_KEY": cfg.S3.AccessKey,
			"S3_SECRET_KEY": cfg.S3.SecretKey,
		} {
			if v == "" {
				missing = append(missing, key)
			}
		}
	default:
		errs = append(errs, fmt.Errorf("UPLOAD_BACKEND must be %q or %q, got %q", UploadCloudinary, UploadS3, cfg.UploadBackend))
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		errs = append(errs, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", ")))
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
