package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ListenAddr       string
	VisionBackend    string
	GeminiAPIKey     string
	GeminiModel      string
	ClaudeAPIKey     string
	ClaudeModel      string
	OllamaHost       string
	OllamaModel      string
	RolesFile        string
	ConfirmPolicy    string
	SessionCacheSize int
	DBPath           string
	PhotoBackend     string
	PhotoPath        string
	S3               S3Config
	LogLevel         string
	LogFile          string
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() *Config {
	return &Config{
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		VisionBackend:    strings.ToLower(getEnv("VISION_BACKEND", "gemini")),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-pro"),
		ClaudeAPIKey:     getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:      getEnv("CLAUDE_MODEL", "claude-opus-4-6"),
		OllamaHost:       getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:      getEnv("OLLAMA_MODEL", "llava"),
		RolesFile:        getEnv("ROLES_FILE", ""),
		ConfirmPolicy:    strings.ToLower(getEnv("CONFIRM_POLICY", "strict")),
		SessionCacheSize: getEnvInt("SESSION_CACHE_SIZE", 256),
		DBPath:           getEnv("DB_PATH", ""),
		PhotoBackend:     strings.ToLower(getEnv("PHOTO_BACKEND", "local")),
		PhotoPath:        getEnv("PHOTO_LOCAL_PATH", "./data/photos"),
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			Region:    getEnv("S3_REGION", "us-east-1"),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", "plantdoc"),
			UseSSL:    getEnvBool("S3_USE_SSL", true),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

// Validate reports the first setting that would stop the selected backends
// from starting.
func (c *Config) Validate() error {
	switch c.VisionBackend {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when VISION_BACKEND=gemini")
		}
	case "claude":
		if c.ClaudeAPIKey == "" {
			return fmt.Errorf("CLAUDE_API_KEY is required when VISION_BACKEND=claude")
		}
	case "ollama":
		if c.OllamaHost == "" {
			return fmt.Errorf("OLLAMA_HOST cannot be empty when VISION_BACKEND=ollama")
		}
	default:
		return fmt.Errorf("unknown VISION_BACKEND %q", c.VisionBackend)
	}

	switch c.ConfirmPolicy {
	case "strict", "clarify":
	default:
		return fmt.Errorf("unknown CONFIRM_POLICY %q", c.ConfirmPolicy)
	}

	if c.SessionCacheSize <= 0 {
		return fmt.Errorf("SESSION_CACHE_SIZE must be > 0")
	}

	if c.ArchiveEnabled() {
		switch c.PhotoBackend {
		case "local":
			if c.PhotoPath == "" {
				return fmt.Errorf("PHOTO_LOCAL_PATH cannot be empty")
			}
		case "s3":
			if c.S3.Endpoint == "" || c.S3.Bucket == "" {
				return fmt.Errorf("S3_ENDPOINT and S3_BUCKET are required when PHOTO_BACKEND=s3")
			}
		default:
			return fmt.Errorf("unknown PHOTO_BACKEND %q", c.PhotoBackend)
		}
	}
	return nil
}

// ArchiveEnabled reports whether completed reports are recorded.
func (c *Config) ArchiveEnabled() bool {
	return c.DBPath != ""
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultVal
	}
}

func getEnvInt(key string, defaultVal int) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return defaultVal
	}
	return n
}
