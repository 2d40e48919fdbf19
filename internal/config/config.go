package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	TransportCoder   = "coder"
	TransportGorilla = "gorilla"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// Endpoint of the game server websocket.
	Endpoint  string `env:"WEBSOCKET_URL,required"`
	Transport string `env:"TRANSPORT" envDefault:"coder"`

	ReconnectDelay     time.Duration `env:"RECONNECT_DELAY" envDefault:"3s"`
	ResultDisplayDelay time.Duration `env:"RESULT_DISPLAY_DELAY" envDefault:"3s"`
	DialTimeout        time.Duration `env:"DIAL_TIMEOUT" envDefault:"10s"`
	WriteTimeout       time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`

	// HTTPAddr serves the rendering API; empty disables it.
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8081"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"false"`

	DatabaseURL  string `env:"DATABASE_URL"`
	HistoryLimit int    `env:"HISTORY_LIMIT" envDefault:"50"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Parse reads cfg from the given variables only.
func Parse(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Transport {
	case TransportCoder, TransportGorilla:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Transport)
	}
	if c.ReconnectDelay <= 0 || c.ResultDisplayDelay <= 0 {
		return fmt.Errorf("%w: delays must be positive", ErrInvalidConfig)
	}
	if c.DialTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("%w: history limit must be positive", ErrInvalidConfig)
	}
	return nil
}
