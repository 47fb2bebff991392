package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HatiCode/bikecast/pkg/artifacts"
)

func artifactsFor(columns, model string) artifacts.Spec {
	return artifacts.Spec{ColumnsPath: columns, ModelPath: model}
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("predictor", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestGetEnv(t *testing.T) {
	t.Setenv("BIKECAST_TEST_VAR", "from-env")

	if got := getEnv("BIKECAST_TEST_VAR", "default"); got != "from-env" {
		t.Errorf("getEnv() = %q, want %q", got, "from-env")
	}
	if got := getEnv("BIKECAST_UNSET_VAR", "default"); got != "default" {
		t.Errorf("getEnv() = %q, want %q", got, "default")
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     int
	}{
		{"valid integer", "42", 42},
		{"invalid integer", "not-a-number", 10},
		{"not set", "", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BIKECAST_TEST_INT", tt.envValue)
			if got := getEnvInt("BIKECAST_TEST_INT", 10); got != tt.want {
				t.Errorf("getEnvInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("BIKECAST_TEST_DUR", "90s")
	if got := getEnvDuration("BIKECAST_TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}

	t.Setenv("BIKECAST_TEST_DUR", "soon")
	if got := getEnvDuration("BIKECAST_TEST_DUR", time.Second); got != time.Second {
		t.Errorf("getEnvDuration() = %v, want fallback 1s", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	for value, want := range map[string]bool{"true": true, "1": true, "false": false, "yes": false} {
		t.Setenv("BIKECAST_TEST_BOOL", value)
		if got := getEnvBool("BIKECAST_TEST_BOOL", false); got != want {
			t.Errorf("getEnvBool(%q) = %v, want %v", value, got, want)
		}
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(newFlagSet(), []string{"-columns", "cols.json", "-model", "model.json"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Cache != CacheMemory || cfg.CacheSize != 1024 || cfg.CacheTTL != time.Hour {
		t.Errorf("cache defaults = %s/%d/%s", cfg.Cache, cfg.CacheSize, cfg.CacheTTL)
	}
	if cfg.TopN != 10 {
		t.Errorf("TopN = %d, want 10", cfg.TopN)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %s", cfg.RequestTimeout)
	}
}

func TestParse_EnvAndFlagPrecedence(t *testing.T) {
	t.Setenv("COLUMNS_PATH", "env-cols.json")
	t.Setenv("MODEL_PATH", "env-model.json")
	t.Setenv("CACHE", "none")

	cfg, err := Parse(newFlagSet(), []string{"-model", "flag-model.json"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Artifacts.ColumnsPath != "env-cols.json" {
		t.Errorf("ColumnsPath = %q, want env value", cfg.Artifacts.ColumnsPath)
	}
	if cfg.Artifacts.ModelPath != "flag-model.json" {
		t.Errorf("ModelPath = %q, want flag value", cfg.Artifacts.ModelPath)
	}
	if cfg.Cache != CacheNone {
		t.Errorf("Cache = %q, want none", cfg.Cache)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Listen:         ":8080",
			LogFormat:      "text",
			LogLevel:       "info",
			Artifacts:      artifactsFor("cols.json", "model.json"),
			Cache:          CacheMemory,
			CacheSize:      10,
			RequestTimeout: time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"manifest only", func(c *Config) { c.Artifacts = artifactsFor("", ""); c.Manifest = "m.yaml" }, ""},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "invalid log format"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"no columns", func(c *Config) { c.Artifacts.ColumnsPath = "" }, "-columns is required"},
		{"no model", func(c *Config) { c.Artifacts.ModelPath = "" }, "-model is required"},
		{"byom without url", func(c *Config) { c.Artifacts.ModelKind = "byom" }, "-byom-url is required"},
		{"unknown model kind", func(c *Config) { c.Artifacts.ModelKind = "pickle" }, "invalid model kind"},
		{"negative top-n", func(c *Config) { c.TopN = -1 }, "top-n"},
		{"unknown cache", func(c *Config) { c.Cache = "memcached" }, "invalid cache"},
		{"zero cache size", func(c *Config) { c.CacheSize = 0 }, "cache-size"},
		{"redis without addr", func(c *Config) { c.Cache = CacheRedis }, "redis-addr"},
		{"negative ttl", func(c *Config) { c.CacheTTL = -time.Second }, "cache-ttl"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request-timeout"},
		{"tls without cert", func(c *Config) { c.TLS.Enabled = true }, "tls"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestArtifactSpec_ManifestWithOverride(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.yaml")
	content := "model_kind: linear\nmodel: linear.json\ncolumns: columns.txt\n"
	if err := os.WriteFile(manifest, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{Manifest: manifest, Artifacts: artifactsFor("", "/abs/other.json")}
	spec, err := cfg.ArtifactSpec()
	if err != nil {
		t.Fatalf("ArtifactSpec() error = %v", err)
	}

	if spec.ModelKind != "linear" {
		t.Errorf("ModelKind = %q", spec.ModelKind)
	}
	if spec.ColumnsPath != filepath.Join(dir, "columns.txt") {
		t.Errorf("ColumnsPath = %q", spec.ColumnsPath)
	}
	if spec.ModelPath != "/abs/other.json" {
		t.Errorf("ModelPath = %q, want flag override", spec.ModelPath)
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("BIKECAST_DOTENV_VAR=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BIKECAST_DOTENV_VAR", "")
	os.Unsetenv("BIKECAST_DOTENV_VAR")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if got := os.Getenv("BIKECAST_DOTENV_VAR"); got != "from-file" {
		t.Errorf("BIKECAST_DOTENV_VAR = %q, want from-file", got)
	}
}
