package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration. Every field is environment-supplied
// with a default suitable for local use.
type Config struct {
	Port      string `env:"PORT" envDefault:"3000"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	DBPath    string `env:"DB_PATH" envDefault:"pokedex-db.json"`
	StaticDir string `env:"STATIC_DIR"`

	// AdminSecret gates /admin endpoints. Always set.
	AdminSecret string `env:"ADMIN_SECRET" envDefault:"local-admin-secret"`

	// WebhookSecret gates /capture. Empty disables the check.
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	EnforceIDRange    bool          `env:"ENFORCE_ID_RANGE" envDefault:"false"`
	ViewerIdleTimeout time.Duration `env:"VIEWER_IDLE_TIMEOUT" envDefault:"60s"`
}

// Load reads .env files (".env" when no paths are given) into the process
// environment and parses the result into a Config. A missing .env file is
// not an error; system env and defaults are used instead.
func Load(paths ...string) (Config, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.ViewerIdleTimeout <= 0 {
		return Config{}, fmt.Errorf("VIEWER_IDLE_TIMEOUT must be positive, got %s", cfg.ViewerIdleTimeout)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
