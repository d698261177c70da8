// Package config loads client settings from an optional .env file and SG_* variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreFile     = "file"
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds every tunable of the client.
type Config struct {
	APIBase        string        // SG_API_BASE
	RequestTimeout time.Duration // SG_TIMEOUT, hard bound of one exchange
	Countdown      int           // SG_COUNTDOWN, initial countdown value in ticks
	TickInterval   time.Duration // SG_TICK
	SessionTTL     time.Duration // SG_SESSION_TTL, used when the token carries no exp

	Store     string // SG_STORE
	StorePath string // SG_STORE_PATH: directory (file) or db file (bolt)
	StoreDSN  string // SG_STORE_DSN (postgres)
	StoreKey  string // SG_STORE_KEY: passphrase sealing the file store
	Namespace string // SG_NAMESPACE: row partition for the postgres store

	LogLevel string // SG_LOG_LEVEL
	LogDev   bool   // SG_LOG_DEV
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIBase:        "http://localhost:3030",
		RequestTimeout: 30 * time.Second,
		Countdown:      10,
		TickInterval:   time.Second,
		SessionTTL:     15 * time.Minute,
		Store:          StoreFile,
		Namespace:      "default",
		LogLevel:       "warn",
	}
}

// Load reads envFile (missing file is fine) and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	c := Default()
	var err error
	str(&c.APIBase, "SG_API_BASE")
	str(&c.Store, "SG_STORE")
	str(&c.StorePath, "SG_STORE_PATH")
	str(&c.StoreDSN, "SG_STORE_DSN")
	str(&c.StoreKey, "SG_STORE_KEY")
	str(&c.Namespace, "SG_NAMESPACE")
	str(&c.LogLevel, "SG_LOG_LEVEL")
	if err = dur(&c.RequestTimeout, "SG_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if err = dur(&c.TickInterval, "SG_TICK"); err != nil {
		return Config{}, err
	}
	if err = dur(&c.SessionTTL, "SG_SESSION_TTL"); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("SG_COUNTDOWN"); v != "" {
		if c.Countdown, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("SG_COUNTDOWN: %w", err)
		}
	}
	if v := os.Getenv("SG_LOG_DEV"); v != "" {
		if c.LogDev, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("SG_LOG_DEV: %w", err)
		}
	}
	return c, c.Validate()
}

// Validate checks ranges and backend-specific requirements.
func (c Config) Validate() error {
	switch {
	case c.APIBase == "":
		return errors.New("config: empty api base")
	case c.RequestTimeout <= 0:
		return errors.New("config: timeout must be positive")
	case c.Countdown <= 0:
		return errors.New("config: countdown must be positive")
	case c.TickInterval <= 0:
		return errors.New("config: tick must be positive")
	}
	switch c.Store {
	case StoreFile, StoreBolt, StoreMemory:
	case StorePostgres:
		if c.StoreDSN == "" {
			return errors.New("config: postgres store needs SG_STORE_DSN")
		}
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	return nil
}

func str(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func dur(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
