package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, dir string) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	return cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	cfg := load(t, t.TempDir())

	assert.Equal(t, "8080", cfg.App.HTTPPort)
	assert.Equal(t, 10*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, "http://localhost:8080", cfg.App.SiteURL)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "db", cfg.Session.Engine)
	assert.Equal(t, "sessionid", cfg.Session.CookieName)
	assert.Equal(t, 14*24*time.Hour, cfg.Session.MaxAge)
	assert.Equal(t, 72*time.Hour, cfg.Auth.PasswordResetTimeout)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "newspaper", cfg.Logger.ServiceName)
	assert.Empty(t, cfg.CORS.AllowedOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := "DB_DRIVER=postgres\nDB_NAME=news\nREDIS_ENABLED=true\nSESSION_ENGINE=redis\nCORS_ALLOWED_ORIGINS=https://a.example, https://b.example\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.env"), []byte(content), 0o600))
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("APP_ENV", "production")
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("SITE_URL", "https://news.example/")

	cfg := load(t, dir)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "news", cfg.DB.Name)
	assert.Equal(t, "9000", cfg.App.HTTPPort)
	assert.Equal(t, "https://news.example", cfg.App.SiteURL)
	assert.Equal(t, "redis", cfg.Session.Engine)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.True(t, cfg.Session.Secure)
	assert.False(t, cfg.App.Debug)
	assert.Equal(t, "host=localhost user=postgres password=postgres dbname=news port=5432 sslmode=disable", cfg.DB.DSN())
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Setenv("APP_ENV", "")

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.DB.Driver = "mysql" }},
		{"redis sessions without redis", func(c *Config) { c.Session.Engine = "redis" }},
		{"unknown session engine", func(c *Config) { c.Session.Engine = "file" }},
		{"rate limit without redis", func(c *Config) { c.RateLimit.Enabled = true }},
		{"empty secret", func(c *Config) { c.App.SecretKey = "" }},
		{"default secret in production", func(c *Config) { c.App.Env = "production" }},
		{"superuser without password", func(c *Config) { c.Superuser.Username = "admin" }},
		{"zero reset timeout", func(c *Config) { c.Auth.PasswordResetTimeout = 0 }},
		{"relative site url", func(c *Config) { c.App.SiteURL = "news.example" }},
		{"site url with path", func(c *Config) { c.App.SiteURL = "https://news.example/users/" }},
		{"site url with other scheme", func(c *Config) { c.App.SiteURL = "ftp://news.example" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := load(t, t.TempDir())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
