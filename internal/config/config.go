package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Auth      AuthConfig
	Matching  MatchingConfig
	Defaults  Defaults
}

type AppConfig struct {
	Environment string // "production" or "development"
	LogLevel    string
	Timezone    *time.Location // day-bucket reference timezone, fixed at process start
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
	QueryTimeout time.Duration
}

type EmbeddingConfig struct {
	URL string // face embedding sidecar, defaults to http://localhost:8000
	Dim int    // defaults to 128
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type MatchingConfig struct {
	Threshold        float64
	DisplayThreshold float64
}

// Defaults holds values loaded from the embedded defaults.yaml, the single
// source for tunables that are not deployment-specific.
type Defaults struct {
	Matching struct {
		Threshold        float64 `yaml:"threshold"`
		DisplayThreshold float64 `yaml:"display_threshold"`
	} `yaml:"matching"`
	Embedding struct {
		Dim int `yaml:"dim"`
	} `yaml:"embedding"`
	Auth struct {
		TokenTTLDays int `yaml:"token_ttl_days"`
	} `yaml:"auth"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// loadTimezone resolves the day-bucket timezone. The zone is resolved once
// at process start so that every day-bucket computed afterwards uses the
// same reference, even if the host timezone changes.
func loadTimezone() *time.Location {
	name := os.Getenv("ROLLCALL_TZ")
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func Load() *Config {
	var defaults Defaults
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// Embedded file, should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		App: AppConfig{
			Environment: envOr("APP_ENV", "development"),
			LogLevel:    envOr("LOG_LEVEL", "info"),
			Timezone:    loadTimezone(),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			QueryTimeout: time.Duration(envInt("DATABASE_QUERY_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Embedding: EmbeddingConfig{
			URL: envOr("EMBEDDING_URL", "http://localhost:8000"),
			Dim: envInt("EMBEDDING_DIM", defaults.Embedding.Dim),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET_KEY"),
			TokenTTL:  time.Duration(defaults.Auth.TokenTTLDays) * 24 * time.Hour,
		},
		Matching: MatchingConfig{
			Threshold:        envFloat("MATCH_THRESHOLD", defaults.Matching.Threshold),
			DisplayThreshold: defaults.Matching.DisplayThreshold,
		},
		Defaults: defaults,
	}
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
