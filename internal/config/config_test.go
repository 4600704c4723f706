package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustdev-org/calendar-diary/internal/models"
	"github.com/trustdev-org/calendar-diary/internal/remote"
)

// clearConfigEnv unsets all config env vars so tests start clean.
func clearConfigEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"ENVIRONMENT",
		"LOG_LEVEL",
		"DIARY_DATA_DIR",
		"DIARY_LOCAL_STORE",
		"DIARY_LANGUAGE",
		"DIARY_REMOTE",
		"WEBDAV_URL",
		"WEBDAV_USERNAME",
		"WEBDAV_PASSWORD",
		"WEBDAV_ROOT",
		"S3_ENDPOINT",
		"S3_BUCKET",
		"S3_REGION",
		"S3_ACCESS_KEY",
		"S3_SECRET_KEY",
		"S3_PREFIX",
		"DIARY_ENCRYPTION_PASSPHRASE",
		"REMOTE_TIMEOUT",
		"SESSION_LISTEN_ADDR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// setS3Env sets the minimum env vars for the S3 remote.
func setS3Env(t *testing.T) {
	t.Helper()
	t.Setenv("DIARY_REMOTE", "s3")
	t.Setenv("S3_BUCKET", "diary")
	t.Setenv("S3_ACCESS_KEY", "AKIAEXAMPLE")
	t.Setenv("S3_SECRET_KEY", "secret")
}

// --- Load: defaults ---

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DIARY_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, LocalStoreFiles, cfg.LocalStore)
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, RemoteWebDAV, cfg.Remote)
	assert.Equal(t, 30*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, "127.0.0.1:8091", cfg.SessionListenAddr)
	assert.Equal(t, "CalendarDiary", cfg.S3Prefix)
	assert.Empty(t, cfg.EncryptionPassphrase)
}

func TestLoad_DefaultDataDir(t *testing.T) {
	clearConfigEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".calendar-diary"), cfg.DataDir)
}

func TestLoad_ResolvesRelativeDataDir(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DIARY_DATA_DIR", "relative/dir")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, "dir", filepath.Base(cfg.DataDir))
}

func TestLoad_WebDAVFromEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DIARY_DATA_DIR", t.TempDir())
	t.Setenv("WEBDAV_URL", "https://dav.example.com/remote.php/dav/files/alex")
	t.Setenv("WEBDAV_USERNAME", "alex")
	t.Setenv("WEBDAV_PASSWORD", "app-password")
	t.Setenv("REMOTE_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.RemoteReady())

	dav := cfg.WebDAV()
	assert.Equal(t, "https://dav.example.com/remote.php/dav/files/alex", dav.URL)
	assert.Equal(t, "alex", dav.Username)
	assert.Equal(t, remote.DefaultRootPath, dav.RootPath)
	assert.Equal(t, 5*time.Second, dav.Timeout)
}

func TestLoad_S3(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DIARY_DATA_DIR", t.TempDir())
	setS3Env(t)
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.RemoteReady())

	s3 := cfg.S3()
	assert.Equal(t, "diary", s3.Bucket)
	assert.Equal(t, "http://localhost:9000", s3.Endpoint)
	assert.Equal(t, "us-east-1", s3.Region)
	assert.Equal(t, "CalendarDiary", s3.Prefix)
}

// --- Load: validation ---

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"local store", map[string]string{"DIARY_LOCAL_STORE": "sqlite"}, "DIARY_LOCAL_STORE"},
		{"language", map[string]string{"DIARY_LANGUAGE": "fr"}, "DIARY_LANGUAGE"},
		{"remote", map[string]string{"DIARY_REMOTE": "ftp"}, "DIARY_REMOTE"},
		{"timeout", map[string]string{"REMOTE_TIMEOUT": "0s"}, "REMOTE_TIMEOUT"},
		{"webdav scheme", map[string]string{"WEBDAV_URL": "ftp://dav.example.com"}, "WEBDAV_URL"},
		{"webdav host", map[string]string{"WEBDAV_URL": "https://"}, "WEBDAV_URL"},
		{"s3 bucket", map[string]string{"DIARY_REMOTE": "s3"}, "S3_BUCKET"},
		{"s3 keys", map[string]string{"DIARY_REMOTE": "s3", "S3_BUCKET": "b"}, "S3_ACCESS_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv("DIARY_DATA_DIR", t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ChineseVariantsAccepted(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DIARY_DATA_DIR", t.TempDir())
	t.Setenv("DIARY_LANGUAGE", "zh-CN")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "zh-CN", cfg.Language)
}

func TestLoad_BadDuration(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("REMOTE_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

// --- Remote settings ---

func TestRemoteReady_NoWebDAVURL(t *testing.T) {
	cfg := &Config{Remote: RemoteWebDAV}
	err := cfg.RemoteReady()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configure")
}

func TestApplyRemoteSettings_FillsGaps(t *testing.T) {
	cfg := &Config{Remote: RemoteWebDAV, WebDAVUsername: "from-env"}
	cfg.ApplyRemoteSettings(&models.RemoteSettings{
		ServerURL: "https://saved.example.com",
		Username:  "saved-user",
		Password:  "saved-pass",
		RootPath:  "/Diary",
	})

	assert.Equal(t, "https://saved.example.com", cfg.WebDAVURL)
	assert.Equal(t, "from-env", cfg.WebDAVUsername)
	assert.Equal(t, "saved-pass", cfg.WebDAVPassword)
	assert.Equal(t, "/Diary", cfg.WebDAV().RootPath)
}

func TestApplyRemoteSettings_Nil(t *testing.T) {
	cfg := &Config{WebDAVURL: "https://x.example.com"}
	cfg.ApplyRemoteSettings(nil)
	assert.Equal(t, "https://x.example.com", cfg.WebDAVURL)
}

func TestValidateRemoteSettings(t *testing.T) {
	assert.NoError(t, ValidateRemoteSettings(models.RemoteSettings{ServerURL: "https://dav.example.com"}))
	assert.NoError(t, ValidateRemoteSettings(models.RemoteSettings{ServerURL: "http://nas.local:5005", RootPath: "/Diary"}))
	assert.Error(t, ValidateRemoteSettings(models.RemoteSettings{}))
	assert.Error(t, ValidateRemoteSettings(models.RemoteSettings{ServerURL: "dav.example.com"}))
	assert.Error(t, ValidateRemoteSettings(models.RemoteSettings{ServerURL: "https://dav.example.com", RootPath: "Diary"}))
}

func TestDefaultDataDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := DefaultDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".calendar-diary"), dir)
}

// --- IsProduction ---

func TestIsProduction_True(t *testing.T) {
	cfg := &Config{Environment: "production"}
	assert.True(t, cfg.IsProduction())
}

func TestIsProduction_False(t *testing.T) {
	cfg := &Config{Environment: "development"}
	assert.False(t, cfg.IsProduction())
}
