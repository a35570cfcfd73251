// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

// Config holds the full server configuration. The persistence gateway is
// selected from what is configured: Supabase when SUPABASE_URL is set,
// otherwise a local SQLite database at SQLITE_PATH.
type Config struct {
	Port int `env:"PORT,default=8080"`

	SupabaseURL string `env:"SUPABASE_URL"`
	SupabaseKey string `env:"SUPABASE_KEY"`
	SQLitePath  string `env:"SQLITE_PATH"`

	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY,required=true"`
	VAPIDSubject    string `env:"VAPID_SUBJECT,default=mailto:admin@onrender.com"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=*"`

	HistoryLimit int           `env:"HISTORY_LIMIT,default=100"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT,default=10s"`
	PushTimeout  time.Duration `env:"PUSH_TIMEOUT,default=10s"`

	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=512"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST,default=5"`
	RateLimitRefill time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}

	if cfg.SupabaseURL == "" && cfg.SQLitePath == "" {
		return Config{}, errors.New("either SUPABASE_URL and SUPABASE_KEY or SQLITE_PATH must be set")
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseKey == "" {
		return Config{}, errors.New("SUPABASE_KEY must be set when SUPABASE_URL is set")
	}

	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 10 * time.Second
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 10 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 512
	}

	return cfg, nil
}

// Origins returns the allowed origins as a trimmed list.
func (c Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
