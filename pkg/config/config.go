// Package config loads tap-go's process-wide configuration once at startup,
// following the clearnode reference program's LoadConfig shape: an optional
// .env file, then typed environment variables, collapsed into one immutable
// value loaded once at process init.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/tap-rsvp/tap-go/pkg/tlog"
)

// Mode selects runtime behavior that must differ between production and
// test processes (e.g. which endpoints are enabled).
type Mode string

const (
	ModeProduction Mode = "production"
	ModeTest       Mode = "test"
)

const (
	configDirPathEnv = "TAP_CONFIG_DIR_PATH"
	defaultConfigDir = "."
)

// DatabaseConfig describes how to reach the per-agent store. Driver is
// either "sqlite" (the default, embeddable store) or "postgres".
type DatabaseConfig struct {
	URL      string `env:"TAP_DATABASE_URL" env-default:""`
	Name     string `env:"TAP_DATABASE_NAME" env-default:""`
	Schema   string `env:"TAP_DATABASE_SCHEMA" env-default:""`
	Driver   string `env:"TAP_DATABASE_DRIVER" env-default:"sqlite"`
	Username string `env:"TAP_DATABASE_USERNAME" env-default:""`
	Password string `env:"TAP_DATABASE_PASSWORD" env-default:""`
	Host     string `env:"TAP_DATABASE_HOST" env-default:"localhost"`
	Port     string `env:"TAP_DATABASE_PORT" env-default:"5432"`
}

// Config is tap-go's immutable process configuration.
type Config struct {
	Mode          Mode
	StorageRoot   string
	DB            DatabaseConfig
	HTTPTimeout   int // outbound delivery timeout, seconds (default 30)
	DIDCacheTTL   int // seconds, positive-resolution DID document cache TTL
}

// Load builds a Config from environment variables (and an optional .env
// file), the same way clearnode's LoadConfig does.
func Load(logger tlog.Logger) (*Config, error) {
	logger = logger.NewSystem("config")

	dir := os.Getenv(configDirPathEnv)
	if dir == "" {
		dir = defaultConfigDir
	}
	envPath := filepath.Join(dir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		logger.Debug(".env file not found, continuing with process environment", "path", envPath)
	}

	mode := Mode(os.Getenv("TAP_MODE"))
	if mode == "" {
		mode = ModeProduction
	}
	if mode != ModeProduction && mode != ModeTest {
		return nil, fmt.Errorf("invalid TAP_MODE value %q", mode)
	}

	var db DatabaseConfig
	if err := cleanenv.ReadEnv(&db); err != nil {
		return nil, fmt.Errorf("reading database config: %w", err)
	}

	root, err := StorageRoot(mode)
	if err != nil {
		return nil, err
	}

	return &Config{
		Mode:        mode,
		StorageRoot: root,
		DB:          db,
		HTTPTimeout: 30,
		DIDCacheTTL: 300,
	}, nil
}

// StorageRoot resolves the per-agent storage root directory using this
// priority: TAP_HOME, TAP_ROOT, TAP_TEST_DIR, ~/.tap.
// In ModeTest the ~/.tap fallback is refused: if none of the three env vars
// is set, StorageRoot returns an error, so tests never write outside a
// directory they chose.
func StorageRoot(mode Mode) (string, error) {
	for _, env := range []string{"TAP_HOME", "TAP_ROOT", "TAP_TEST_DIR"} {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}

	if mode == ModeTest {
		return "", fmt.Errorf("TAP_TEST_DIR must be set when TAP_MODE=test")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".tap"), nil
}
