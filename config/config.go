/*
config.go - Process configuration

PURPOSE:
  Loads server settings from .env files and the environment. Command-line
  flags (cmd/server) are applied on top of the loaded value.

ORDER:
  1. .env, then .env.local (only the files that exist; godotenv never
     overrides variables already set in the environment)
  2. process environment, parsed with caarlos0/env
  3. flags

VARIABLES:
  PORT                  HTTP port (4000)
  DB_PATH               SQLite file, ":memory:" for a throwaway database
  LOG_LEVEL             debug | info | warn | error
  LOG_FORMAT            console | json
  CORS_ALLOWED_ORIGINS  comma separated
  SHUTDOWN_TIMEOUT      graceful shutdown budget
  STRICT_TRANSITIONS    only Pending requests move, only Validators move them
  TIMEZONE              IANA zone in which "today" is evaluated, or Local
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFiles are read by Load when present.
var DefaultEnvFiles = []string{".env", ".env.local"}

type Config struct {
	Port              int           `env:"PORT" envDefault:"4000"`
	DBPath            string        `env:"DB_PATH" envDefault:"vacations.db"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"LOG_FORMAT" envDefault:"console"`
	AllowedOrigins    []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	StrictTransitions bool          `env:"STRICT_TRANSITIONS" envDefault:"false"`
	Timezone          string        `env:"TIMEZONE" envDefault:"Local"`
}

// Load reads the env files that exist, then parses the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = DefaultEnvFiles
	}
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
