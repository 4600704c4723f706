package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/trustdev-org/calendar-diary/internal/logging"
	"github.com/trustdev-org/calendar-diary/internal/models"
	"github.com/trustdev-org/calendar-diary/internal/remote"
)

// Local store backends.
const (
	LocalStoreFiles = "files"
	LocalStoreBolt  = "bolt"
)

// Remote store backends.
const (
	RemoteWebDAV = "webdav"
	RemoteS3     = "s3"
)

// Config holds all environment-based configuration for calendar-diary.
type Config struct {
	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`

	// Directory holding the local store. Defaults to ~/.calendar-diary.
	DataDir string `env:"DIARY_DATA_DIR"`

	// LocalStore selects the desktop JSON files or the bolt key-value
	// store.
	LocalStore string `env:"DIARY_LOCAL_STORE" envDefault:"files"`

	// Language of the session log (en or zh).
	Language string `env:"DIARY_LANGUAGE" envDefault:"en"`

	Remote string `env:"DIARY_REMOTE" envDefault:"webdav"`

	// WebDAV connection. Empty fields are filled from the settings saved
	// with "configure".
	WebDAVURL      string `env:"WEBDAV_URL"`
	WebDAVUsername string `env:"WEBDAV_USERNAME"`
	WebDAVPassword string `env:"WEBDAV_PASSWORD"`
	WebDAVRoot     string `env:"WEBDAV_ROOT"`

	// S3-compatible bucket, used when DIARY_REMOTE=s3.
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Prefix    string `env:"S3_PREFIX" envDefault:"CalendarDiary"`

	// Optional passphrase. When set, remote blobs are encrypted at rest.
	EncryptionPassphrase string `env:"DIARY_ENCRYPTION_PASSPHRASE"`

	RemoteTimeout time.Duration `env:"REMOTE_TIMEOUT" envDefault:"30s"`

	SessionListenAddr string `env:"SESSION_LISTEN_ADDR" envDefault:"127.0.0.1:8091"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.DataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}

		cfg.DataDir = dir
	}

	absDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolving data dir to absolute path: %w", err)
	}

	cfg.DataDir = absDir

	return cfg, nil
}

func (c *Config) validate() error {
	if c.LogLevel != "" {
		if _, ok := logging.ParseLevel(c.LogLevel); !ok {
			return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
		}
	}

	switch c.LocalStore {
	case LocalStoreFiles, LocalStoreBolt:
	default:
		return fmt.Errorf("DIARY_LOCAL_STORE must be %q or %q", LocalStoreFiles, LocalStoreBolt)
	}

	lang := strings.ToLower(c.Language)
	if !strings.HasPrefix(lang, "en") && !strings.HasPrefix(lang, "zh") {
		return fmt.Errorf("DIARY_LANGUAGE must be en or zh")
	}

	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT must be positive")
	}

	switch c.Remote {
	case RemoteWebDAV:
		if c.WebDAVURL != "" {
			if err := validateServerURL(c.WebDAVURL); err != nil {
				return fmt.Errorf("WEBDAV_URL: %w", err)
			}
		}

	case RemoteS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when DIARY_REMOTE is s3")
		}

		if c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when DIARY_REMOTE is s3")
		}

	default:
		return fmt.Errorf("DIARY_REMOTE must be %q or %q", RemoteWebDAV, RemoteS3)
	}

	return nil
}

func validateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}

	if u.Host == "" {
		return fmt.Errorf("missing host")
	}

	return nil
}

// ValidateRemoteSettings checks settings before they are saved.
func ValidateRemoteSettings(rs models.RemoteSettings) error {
	if rs.ServerURL == "" {
		return fmt.Errorf("server URL is required")
	}

	if err := validateServerURL(rs.ServerURL); err != nil {
		return fmt.Errorf("server URL: %w", err)
	}

	if rs.RootPath != "" && !strings.HasPrefix(rs.RootPath, "/") {
		return fmt.Errorf("root path must start with /")
	}

	return nil
}

// DefaultDataDir returns ~/.calendar-diary.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".calendar-diary"), nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ApplyRemoteSettings fills WebDAV fields the environment left empty
// from saved settings. The environment always wins.
func (c *Config) ApplyRemoteSettings(rs *models.RemoteSettings) {
	if rs == nil {
		return
	}

	if c.WebDAVURL == "" {
		c.WebDAVURL = rs.ServerURL
	}

	if c.WebDAVUsername == "" {
		c.WebDAVUsername = rs.Username
	}

	if c.WebDAVPassword == "" {
		c.WebDAVPassword = rs.Password
	}

	if c.WebDAVRoot == "" {
		c.WebDAVRoot = rs.RootPath
	}
}

// RemoteReady reports whether enough is configured to reach the remote.
func (c *Config) RemoteReady() error {
	if c.Remote == RemoteWebDAV && c.WebDAVURL == "" {
		return fmt.Errorf("no WebDAV server configured: set WEBDAV_URL or run \"calendar-diary configure\"")
	}

	return nil
}

// WebDAV returns the WebDAV adapter settings.
func (c *Config) WebDAV() remote.WebDAVConfig {
	root := c.WebDAVRoot
	if root == "" {
		root = remote.DefaultRootPath
	}

	return remote.WebDAVConfig{
		URL:      c.WebDAVURL,
		Username: c.WebDAVUsername,
		Password: c.WebDAVPassword,
		RootPath: root,
		Timeout:  c.RemoteTimeout,
	}
}

// S3 returns the S3 adapter settings.
func (c *Config) S3() remote.S3Config {
	return remote.S3Config{
		Endpoint:  c.S3Endpoint,
		Bucket:    c.S3Bucket,
		Region:    c.S3Region,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
		Prefix:    c.S3Prefix,
	}
}
