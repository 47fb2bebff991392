// Package config provides configuration parsing and management for the predictor.
//
// It handles both command-line flags and environment variables, with flags taking
// precedence over environment variables. A .env file in the working directory
// (or the file named by ENV_FILE) is loaded first and only fills variables
// that are not already set.
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. .env file
//  4. Default values
//
// Artifact locations come either from the individual -model/-scaler/-columns
// flags or from a YAML manifest (-manifest). Individual flags override the
// manifest entry they name.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/HatiCode/bikecast/pkg/artifacts"
	"github.com/HatiCode/bikecast/pkg/tls"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all predictor configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string
	TLS       tls.Config

	Manifest  string
	Artifacts artifacts.Spec
	TopN      int

	Cache         string
	CacheSize     int
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HistoryDSN     string
	RequestTimeout time.Duration
}

// ParseFlags loads the .env file, parses os.Args and validates the result.
// It exits the process on invalid configuration.
func ParseFlags() *Config {
	if err := LoadEnvFile(getEnv("ENV_FILE", ".env")); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// LoadEnvFile loads variables from path without overriding the environment.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Parse registers the predictor flags on fs, parses args and validates the
// result. Environment variables supply the flag defaults.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	fs.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	fs.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Serve HTTPS")
	fs.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	fs.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	fs.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA file; when set, clients must present a certificate")

	fs.StringVar(&cfg.Manifest, "manifest", getEnv("MANIFEST", ""), "YAML artifact manifest")
	fs.StringVar(&cfg.Artifacts.ModelKind, "model-kind", getEnv("MODEL_KIND", ""), "Model kind: xgboost, linear or byom (default xgboost)")
	fs.StringVar(&cfg.Artifacts.ModelPath, "model", getEnv("MODEL_PATH", ""), "Model artifact path")
	fs.StringVar(&cfg.Artifacts.ScalerPath, "scaler", getEnv("SCALER_PATH", ""), "Scaler artifact path (identity when empty)")
	fs.StringVar(&cfg.Artifacts.ColumnsPath, "columns", getEnv("COLUMNS_PATH", ""), "Training columns artifact path")
	fs.StringVar(&cfg.Artifacts.ImportancesPath, "importances", getEnv("IMPORTANCES_PATH", ""), "Feature importances artifact path")
	fs.StringVar(&cfg.Artifacts.BYOMURL, "byom-url", getEnv("BYOM_URL", ""), "Remote model URL (required when model-kind=byom)")
	fs.DurationVar(&cfg.Artifacts.BYOMTimeout, "byom-timeout", getEnvDuration("BYOM_TIMEOUT", 0), "Remote model call timeout")
	fs.BoolVar(&cfg.Artifacts.BYOMTLS.Enabled, "byom-tls-enabled", getEnvBool("BYOM_TLS_ENABLED", false), "Use TLS for the remote model")
	fs.StringVar(&cfg.Artifacts.BYOMTLS.CertFile, "byom-tls-cert-file", getEnv("BYOM_TLS_CERT_FILE", ""), "Client certificate for the remote model")
	fs.StringVar(&cfg.Artifacts.BYOMTLS.KeyFile, "byom-tls-key-file", getEnv("BYOM_TLS_KEY_FILE", ""), "Client key for the remote model")
	fs.StringVar(&cfg.Artifacts.BYOMTLS.CAFile, "byom-tls-ca-file", getEnv("BYOM_TLS_CA_FILE", ""), "CA for verifying the remote model")
	fs.IntVar(&cfg.TopN, "top-n", getEnvInt("TOP_N", 10), "Number of features in the importance ranking")

	fs.StringVar(&cfg.Cache, "cache", getEnv("CACHE", CacheMemory), "Prediction cache: none, memory or redis")
	fs.IntVar(&cfg.CacheSize, "cache-size", getEnvInt("CACHE_SIZE", 1024), "Memory cache entry limit")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", getEnvDuration("CACHE_TTL", time.Hour), "Prediction cache TTL")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")

	fs.StringVar(&cfg.HistoryDSN, "history-dsn", getEnv("HISTORY_DSN", ""), "PostgreSQL DSN for prediction history (disabled when empty)")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", getEnvDuration("REQUEST_TIMEOUT", 5*time.Second), "Per-request prediction timeout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for missing or inconsistent settings.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address cannot be empty")
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (must be text or json)", c.LogFormat)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (must be debug, info, warn or error)", c.LogLevel)
	}

	if c.Manifest == "" && c.Artifacts.ColumnsPath == "" {
		return errors.New("either -manifest or -columns is required")
	}

	switch c.Artifacts.ModelKind {
	case "", "xgboost", "linear":
		if c.Manifest == "" && c.Artifacts.ModelPath == "" {
			return errors.New("either -manifest or -model is required")
		}
	case "byom":
		if c.Manifest == "" && c.Artifacts.BYOMURL == "" {
			return errors.New("-byom-url is required when model-kind=byom")
		}
	default:
		return fmt.Errorf("invalid model kind %q (must be xgboost, linear or byom)", c.Artifacts.ModelKind)
	}

	if c.TopN < 0 {
		return fmt.Errorf("top-n must be >= 0, got %d", c.TopN)
	}

	switch c.Cache {
	case CacheNone:
	case CacheMemory:
		if c.CacheSize <= 0 {
			return fmt.Errorf("cache-size must be > 0, got %d", c.CacheSize)
		}
	case CacheRedis:
		if c.RedisAddr == "" {
			return errors.New("redis-addr is required when cache=redis")
		}
		if c.RedisDB < 0 {
			return errors.New("redis-db must be >= 0")
		}
	default:
		return fmt.Errorf("invalid cache %q (must be none, memory or redis)", c.Cache)
	}

	if c.CacheTTL < 0 {
		return errors.New("cache-ttl cannot be negative")
	}

	if c.RequestTimeout <= 0 {
		return errors.New("request-timeout must be > 0")
	}

	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}

	return nil
}

// ArtifactSpec resolves the artifact locations: the manifest, if any, with
// individual flags applied on top.
func (c *Config) ArtifactSpec() (artifacts.Spec, error) {
	if c.Manifest == "" {
		return c.Artifacts, nil
	}

	spec, err := artifacts.LoadManifest(c.Manifest)
	if err != nil {
		return artifacts.Spec{}, err
	}
	return spec.Merge(c.Artifacts), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
