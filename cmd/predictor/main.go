// Command predictor serves hourly bike-rental demand predictions.
//
// The predictor loads the trained artifacts once at startup and then, for each
// request:
//  1. Derives calendar features (month, weekend flag) from the date
//  2. One-hot encodes the categorical inputs against the training column list
//  3. Scales the vector and runs the regression model
//  4. Squares and rounds the model output into a bike count
//
// It serves an HTTP interface on port 8080 (configurable) providing:
//   - GET  / - Prediction form with gauge and feature importance
//   - POST /api/v1/predict - JSON prediction API
//   - GET  /api/v1/importance - Top-N feature importances
//   - GET  /healthz - Health check endpoint
//   - GET  /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	predictor \
//	  -columns=artifacts/columns.json \
//	  -scaler=artifacts/scaler.json \
//	  -model=artifacts/model.json \
//	  -cache=redis -redis-addr=localhost:6379
//
// or, with a manifest naming every artifact:
//
//	predictor -manifest=artifacts/manifest.yaml
//
// Environment variables:
//
//	LISTEN          - HTTP listen address (default: :8080)
//	MANIFEST        - Artifact manifest (YAML)
//	MODEL_KIND      - Model kind: xgboost, linear, byom (default: xgboost)
//	MODEL_PATH      - Model artifact path
//	SCALER_PATH     - Scaler artifact path (empty: no scaling)
//	COLUMNS_PATH    - Training column list path
//	BYOM_URL        - Remote model server URL (byom only)
//	CACHE           - Prediction cache: none, memory, redis (default: memory)
//	REDIS_ADDR      - Redis address (cache=redis)
//	HISTORY_DSN     - PostgreSQL DSN for prediction history (optional)
//	LOG_LEVEL       - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT      - Logging format: text, json (default: text)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HatiCode/bikecast/cmd/predictor/config"
	"github.com/HatiCode/bikecast/cmd/predictor/logger"
	"github.com/HatiCode/bikecast/cmd/predictor/metrics"
	"github.com/HatiCode/bikecast/cmd/predictor/router"
	"github.com/HatiCode/bikecast/pkg/artifacts"
	"github.com/HatiCode/bikecast/pkg/history"
	"github.com/HatiCode/bikecast/pkg/httpx"
	"github.com/HatiCode/bikecast/pkg/storage"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	logger.Info("starting bikecast predictor",
		"version", version,
		"listen", cfg.Listen,
		"cache", cfg.Cache,
	)

	spec, err := cfg.ArtifactSpec()
	if err != nil {
		logger.Error("failed to read artifact manifest", "error", err)
		os.Exit(1)
	}

	bundle, err := artifacts.Load(spec)
	if err != nil {
		logger.Error("failed to load artifacts", "error", err)
		os.Exit(1)
	}
	logger.Info("artifacts loaded",
		"model", bundle.Model.Name(),
		"scaler", bundle.Scaler.Kind(),
		"columns", bundle.Schema.Width(),
	)

	cache, err := newCache(cfg)
	if err != nil {
		logger.Error("failed to create prediction cache", "error", err)
		os.Exit(1)
	}
	if closer, ok := cache.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Error("failed to close cache", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := history.Recorder(history.NopRecorder{})
	if cfg.HistoryDSN != "" {
		pg, err := history.NewPostgresRecorder(ctx, cfg.HistoryDSN)
		if err != nil {
			logger.Error("failed to connect history database", "error", err)
			os.Exit(1)
		}
		recorder = pg
		logger.Info("prediction history enabled")
	}
	defer recorder.Close()

	p := NewPredictor(bundle, cache, recorder, cfg.TopN, logger, metrics.New(nil, bundle.Model.Name()))

	mux := router.SetupRoutes(p, cfg.RequestTimeout, logger)
	handler := httpx.Chain(mux,
		httpx.RecoveryMiddleware(logger),
		httpx.LoggingMiddleware(logger),
	)
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)

	if cfg.TLS.Enabled {
		tlsConfig, err := cfg.TLS.ServerConfig()
		if err != nil {
			logger.Error("failed to load TLS configuration", "error", err)
			os.Exit(1)
		}
		httpServer.SetTLSConfig(tlsConfig)
		logger.Info("TLS enabled", "client_auth", cfg.TLS.CAFile != "")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// newCache builds the prediction cache selected by cfg.Cache. It returns a nil
// Store when caching is disabled.
func newCache(cfg *config.Config) (storage.Store, error) {
	switch cfg.Cache {
	case config.CacheNone:
		return nil, nil
	case config.CacheMemory:
		return storage.NewMemoryStore(cfg.CacheSize, cfg.CacheTTL)
	case config.CacheRedis:
		return storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache)
	}
}
