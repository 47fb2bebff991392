package models

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// BYOMModel delegates predictions to an external HTTP service. It lets a
// model that only exists in its training runtime (a pickled regressor, for
// instance) be served behind a small sidecar.
//
// Contract:
//
//	POST <endpoint>
//	{"columns": ["Temperature", ...], "rows": [[...], ...]}
//
//	200 OK
//	{"values": [..]}   // one value per row
//
// Calls go through a circuit breaker so an unavailable model server fails
// requests fast instead of tying up handlers until the client timeout.
type BYOMModel struct {
	endpoint string
	columns  []string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

type byomRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

type byomResponse struct {
	Values []float64 `json:"values"`
}

// NewBYOMModel creates a model backed by the service at endpoint. columns
// fix the expected row width; client may be nil.
func NewBYOMModel(endpoint string, columns []string, client *http.Client) *BYOMModel {
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		}
	}

	cols := make([]string, len(columns))
	copy(cols, columns)

	return &BYOMModel{
		endpoint: endpoint,
		columns:  cols,
		client:   client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "byom",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				var ce *callerError
				return err == nil || errors.As(err, &ce)
			},
		}),
	}
}

// Name returns the model identifier.
func (m *BYOMModel) Name() string { return "byom" }

// Width returns the number of training columns sent with every request.
func (m *BYOMModel) Width() int { return len(m.columns) }

// Predict calls the external service.
func (m *BYOMModel) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	if err := checkRows("byom", m.Width(), rows); err != nil {
		return nil, err
	}

	res, err := m.breaker.Execute(func() (interface{}, error) {
		out, err := m.call(ctx, rows)
		if err != nil && ctx.Err() != nil {
			return nil, &callerError{err: err}
		}
		return out, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("byom: model service unavailable: %w", err)
		}
		var ce *callerError
		if errors.As(err, &ce) {
			return nil, ce.err
		}
		return nil, err
	}
	return res.([]float64), nil
}

// callerError marks a failed call whose context ended first. The breaker
// counts it as a success so caller cancellations never trip it.
type callerError struct{ err error }

func (e *callerError) Error() string { return e.err.Error() }
func (e *callerError) Unwrap() error { return e.err }

func (m *BYOMModel) call(ctx context.Context, rows [][]float64) ([]float64, error) {
	body, err := json.Marshal(byomRequest{Columns: m.columns, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("byom: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("byom: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("byom: http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("byom: http %d: %s", resp.StatusCode, string(msg))
	}

	var out byomResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("byom: decode response: %w", err)
	}

	if len(out.Values) != len(rows) {
		return nil, fmt.Errorf("byom: expected %d predictions, got %d", len(rows), len(out.Values))
	}
	return out.Values, nil
}
