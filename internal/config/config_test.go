package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	cfg := Load()

	assert.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.ListenAddr)
	assert.NotEmpty(t, cfg.VisionBackend)
	assert.NotEmpty(t, cfg.ConfirmPolicy)
	assert.Positive(t, cfg.SessionCacheSize)
}

func TestLoadCustomValues(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("DB_PATH", "/custom/db.sqlite")
	t.Setenv("VISION_BACKEND", "Claude")
	t.Setenv("CLAUDE_API_KEY", "sk-test123")
	t.Setenv("CONFIRM_POLICY", "clarify")
	t.Setenv("SESSION_CACHE_SIZE", "16")
	t.Setenv("S3_USE_SSL", "off")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "/custom/db.sqlite", cfg.DBPath)
	assert.Equal(t, "claude", cfg.VisionBackend)
	assert.Equal(t, "sk-test123", cfg.ClaudeAPIKey)
	assert.Equal(t, "clarify", cfg.ConfirmPolicy)
	assert.Equal(t, 16, cfg.SessionCacheSize)
	assert.False(t, cfg.S3.UseSSL)
	assert.True(t, cfg.ArchiveEnabled())
}

func TestLoadMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("SESSION_CACHE_SIZE", "lots")
	t.Setenv("S3_USE_SSL", "maybe")

	cfg := Load()
	assert.Equal(t, 256, cfg.SessionCacheSize)
	assert.True(t, cfg.S3.UseSSL)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			VisionBackend:    "gemini",
			GeminiAPIKey:     "key",
			ConfirmPolicy:    "strict",
			SessionCacheSize: 8,
			PhotoBackend:     "local",
			PhotoPath:        "/tmp/photos",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"gemini without key", func(c *Config) { c.GeminiAPIKey = "" }, "GEMINI_API_KEY"},
		{"claude without key", func(c *Config) { c.VisionBackend = "claude" }, "CLAUDE_API_KEY"},
		{"ollama without host", func(c *Config) { c.VisionBackend = "ollama" }, "OLLAMA_HOST"},
		{"ollama with host", func(c *Config) { c.VisionBackend = "ollama"; c.OllamaHost = "http://x" }, ""},
		{"unknown backend", func(c *Config) { c.VisionBackend = "gpt" }, "VISION_BACKEND"},
		{"unknown policy", func(c *Config) { c.ConfirmPolicy = "lenient" }, "CONFIRM_POLICY"},
		{"zero cache", func(c *Config) { c.SessionCacheSize = 0 }, "SESSION_CACHE_SIZE"},
		{"photo backend ignored without archive", func(c *Config) { c.PhotoBackend = "ftp" }, ""},
		{"unknown photo backend", func(c *Config) { c.DBPath = "x.db"; c.PhotoBackend = "ftp" }, "PHOTO_BACKEND"},
		{"s3 without endpoint", func(c *Config) { c.DBPath = "x.db"; c.PhotoBackend = "s3"; c.S3.Bucket = "b" }, "S3_ENDPOINT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
