// Package router configures HTTP routes for the predictor.
//
// Routes configured:
//   - GET  /                    - Prediction form
//   - POST /                    - Form submission, renders the prediction gauge
//   - POST /api/v1/predict      - JSON prediction API
//   - GET  /api/v1/importance   - Top-N feature importance ranking
//   - GET  /healthz             - Health check endpoint
//   - GET  /metrics             - Prometheus metrics endpoint
//
// Bad input (malformed date, hour out of range, failed validation) answers
// 400. Artifact inconsistencies and model failures answer 500 without
// exposing the cause.
package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/bikecast/pkg/features"
	"github.com/HatiCode/bikecast/pkg/httpx"
	"github.com/HatiCode/bikecast/pkg/inference"
)

// Service is the prediction pipeline the routes serve.
type Service interface {
	Predict(ctx context.Context, r features.Record) (inference.Result, bool, error)
	Importance() []inference.Ranked
	Ping(ctx context.Context) error
}

// PredictResponse is the JSON API response.
type PredictResponse struct {
	Prediction int     `json:"prediction"`
	Raw        float64 `json:"raw"`
	Cached     bool    `json:"cached"`
}

// ImportanceResponse is the importance ranking response.
type ImportanceResponse struct {
	Features []inference.Ranked `json:"features"`
}

// SetupRoutes configures HTTP endpoints for the predictor.
func SetupRoutes(svc Service, requestTimeout time.Duration, logger *slog.Logger) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", handleForm(svc, logger))
	mux.HandleFunc("POST /{$}", handleFormSubmit(svc, requestTimeout, logger))

	mux.HandleFunc("POST /api/v1/predict", handlePredict(svc, requestTimeout, logger))
	mux.HandleFunc("GET /api/v1/importance", handleImportance(svc, logger))

	mux.Handle("GET /healthz", httpx.HealthHandlerWithCheck(svc.Ping))
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// handlePredict returns a handler for POST /api/v1/predict.
func handlePredict(svc Service, timeout time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PredictRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		record, err := req.Record()
		if err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, validationMessage(err))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		res, cached, err := svc.Predict(ctx, record)
		if err != nil {
			status, msg := classify(err)
			if status == http.StatusInternalServerError {
				logger.Error("prediction failed", "error", err)
			}
			httpx.WriteErrorMessage(w, status, msg)
			return
		}

		resp := PredictResponse{Prediction: res.Count, Raw: res.Raw, Cached: cached}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleImportance returns a handler for GET /api/v1/importance.
func handleImportance(svc Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ranking := svc.Importance()
		if ranking == nil {
			ranking = []inference.Ranked{}
		}
		if err := httpx.WriteJSON(w, http.StatusOK, ImportanceResponse{Features: ranking}); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// classify maps a pipeline error to a status code and a client-safe message.
func classify(err error) (int, string) {
	var malformed *features.MalformedDateError
	var outOfRange *features.OutOfRangeError
	if errors.As(err, &malformed) || errors.As(err, &outOfRange) {
		return http.StatusBadRequest, err.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "prediction timed out"
	}
	return http.StatusInternalServerError, "prediction failed"
}
