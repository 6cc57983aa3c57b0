package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`
	AppleClientID  string `env:"APPLE_CLIENT_ID"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	DatabaseDSN string `env:"DATABASE_DSN,notEmpty"`

	// SignInTimeout bounds every remote sign-in call.
	SignInTimeout      time.Duration `env:"SIGNIN_TIMEOUT" envDefault:"30s"`
	ProviderSessionTTL time.Duration `env:"PROVIDER_SESSION_TTL" envDefault:"720h"`

	EmailSignInRate  float64 `env:"EMAIL_SIGNIN_RATE" envDefault:"1"`
	EmailSignInBurst int     `env:"EMAIL_SIGNIN_BURST" envDefault:"5"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	if cfg.SignInTimeout <= 0 {
		return Config{}, errors.New("config: SIGNIN_TIMEOUT must be positive")
	}

	return cfg, nil
}
