package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgallion1/docview/internal/view"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Image resolution
	ImageWorkers   int
	ImageQueueSize int
	PollInterval   time.Duration

	// Sessions
	SessionTTL      time.Duration
	MaxSessions     int
	DefaultViewMode view.Mode
	DocumentRoot    string

	// Upload limits
	MaxUploadBytes int64

	// Rendering
	MonospaceFont string
	CodeTokens    bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCVIEW_API_KEY"),

		ImageWorkers:   envInt("IMAGE_WORKERS", 4),
		ImageQueueSize: envInt("IMAGE_QUEUE_SIZE", 256),
		PollInterval:   envDuration("POLL_INTERVAL", 100*time.Millisecond),

		SessionTTL:      envDuration("SESSION_TTL", 1*time.Hour),
		MaxSessions:     envInt("MAX_SESSIONS", 100),
		DefaultViewMode: view.Mode(envOr("DEFAULT_VIEW_MODE", string(view.ModeRendered))),
		DocumentRoot:    envOr("DOCUMENT_ROOT", "."),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 10485760), // 10MB

		MonospaceFont: envOr("MONOSPACE_FONT", "Cascadia Mono"),
		CodeTokens:    envBool("CODE_TOKENS", true),
	}

	if cfg.ImageWorkers <= 0 {
		cfg.ImageWorkers = 4
	}
	if cfg.ImageQueueSize <= 0 {
		cfg.ImageQueueSize = 256
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1 * time.Hour
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10485760
	}
	if m, err := view.ParseMode(string(cfg.DefaultViewMode)); err == nil {
		cfg.DefaultViewMode = m
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCVIEW_API_KEY is required")
	}
	if _, err := view.ParseMode(string(c.DefaultViewMode)); err != nil {
		return fmt.Errorf("DEFAULT_VIEW_MODE: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
