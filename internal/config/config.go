// Package config loads process configuration: built-in defaults, then an
// optional YAML file, then CHANPLAN_* environment overrides. Credentials
// that can change at runtime (TMDB key, sink endpoint, LLM endpoint) are
// seeded into settings on startup and managed there afterwards.
package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"chanplan/internal/models"
)

type Config struct {
	ListenAddr    string `yaml:"listenAddr"`
	DBPath        string `yaml:"dbPath"`
	MigrationsDir string `yaml:"migrationsDir"`
	Timezone      string `yaml:"timezone"`
	LogLevel      string `yaml:"logLevel"`
	LogConsole    bool   `yaml:"logConsole"`
	CORSOrigin    string `yaml:"corsOrigin"`
	EncryptionKey string `yaml:"encryptionKey"`
	AdminAPIKey   string `yaml:"adminApiKey"`
	RedisAddr     string `yaml:"redisAddr"`

	TMDB    TMDB    `yaml:"tmdb"`
	Sink    Sink    `yaml:"sink"`
	Suggest Suggest `yaml:"suggest"`
}

type TMDB struct {
	APIKey   string `yaml:"apiKey"`
	Language string `yaml:"language"`
}

type Sink struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type Suggest struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:    ":7975",
		DBPath:        "./data/chanplan.db",
		MigrationsDir: "./migrations",
		Timezone:      "Local",
		LogLevel:      "info",
	}
}

// Load builds the configuration with precedence env > file > defaults,
// then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, models.ConfigError("reading config: %v", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, models.ConfigError("parsing %s: %v", path, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ListenAddr = envOr("CHANPLAN_LISTEN_ADDR", c.ListenAddr)
	c.DBPath = envOr("CHANPLAN_DB_PATH", c.DBPath)
	c.MigrationsDir = envOr("CHANPLAN_MIGRATIONS_DIR", c.MigrationsDir)
	c.Timezone = envOr("CHANPLAN_TIMEZONE", c.Timezone)
	c.LogLevel = envOr("CHANPLAN_LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("CHANPLAN_LOG_CONSOLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.LogConsole = b
		}
	}
	c.CORSOrigin = envOr("CHANPLAN_CORS_ORIGIN", c.CORSOrigin)
	c.EncryptionKey = envOr("CHANPLAN_ENCRYPTION_KEY", c.EncryptionKey)
	c.AdminAPIKey = envOr("CHANPLAN_ADMIN_KEY", c.AdminAPIKey)
	c.RedisAddr = envOr("CHANPLAN_REDIS_ADDR", c.RedisAddr)

	c.TMDB.APIKey = envOr("CHANPLAN_TMDB_API_KEY", c.TMDB.APIKey)
	c.TMDB.Language = envOr("CHANPLAN_TMDB_LANGUAGE", c.TMDB.Language)
	c.Sink.URL = envOr("CHANPLAN_SINK_URL", c.Sink.URL)
	c.Sink.Token = envOr("CHANPLAN_SINK_TOKEN", c.Sink.Token)
	c.Suggest.BaseURL = envOr("CHANPLAN_SUGGEST_BASE_URL", c.Suggest.BaseURL)
	c.Suggest.APIKey = envOr("CHANPLAN_SUGGEST_API_KEY", c.Suggest.APIKey)
	c.Suggest.Model = envOr("CHANPLAN_SUGGEST_MODEL", c.Suggest.Model)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return models.ConfigError("listenAddr is required")
	}
	if c.DBPath == "" {
		return models.ConfigError("dbPath is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return models.ConfigError("timezone %q: %v", c.Timezone, err)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return models.ConfigError("logLevel %q: %v", c.LogLevel, err)
	}
	if c.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
		if err != nil {
			return models.ConfigError("encryptionKey is not valid base64: %v", err)
		}
		if len(key) != 32 {
			return models.ConfigError("encryptionKey must be 32 bytes (AES-256), got %d", len(key))
		}
	}
	return nil
}

// Location resolves the configured timezone. Schedule boundaries and the
// nightly sync run in this zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
