package models

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestBYOMModel_Name(t *testing.T) {
	model := NewBYOMModel("http://localhost:8082/predict", []string{"a", "b"}, nil)
	if model.Name() != "byom" {
		t.Errorf("expected name 'byom', got %q", model.Name())
	}
	if model.Width() != 2 {
		t.Errorf("expected width 2, got %d", model.Width())
	}
}

func TestBYOMModel_Predict_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}

		var req byomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if strings.Join(req.Columns, ",") != "a,b" {
			t.Errorf("expected columns [a b], got %v", req.Columns)
		}
		if len(req.Rows) != 2 {
			t.Errorf("expected 2 rows, got %d", len(req.Rows))
		}

		values := make([]float64, len(req.Rows))
		for i, row := range req.Rows {
			values[i] = row[0] + row[1]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(byomResponse{Values: values})
	}))
	defer server.Close()

	model := NewBYOMModel(server.URL, []string{"a", "b"}, nil)

	got, err := model.Predict(context.Background(), [][]float64{{1, 2}, {10, 20}})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 values, got %d", len(got))
	}
	if got[0] != 3 || got[1] != 30 {
		t.Errorf("unexpected values %v", got)
	}
}

func TestBYOMModel_Predict_EmptyRows(t *testing.T) {
	model := NewBYOMModel("http://localhost:8082/predict", []string{"a"}, nil)

	_, err := model.Predict(context.Background(), nil)
	if err == nil {
		t.Error("expected error for empty rows, got nil")
	}
}

func TestBYOMModel_Predict_RowWidth(t *testing.T) {
	model := NewBYOMModel("http://localhost:8082/predict", []string{"a"}, nil)

	_, err := model.Predict(context.Background(), [][]float64{{1, 2}})
	if err == nil {
		t.Error("expected error for wide row, got nil")
	}
}

func TestBYOMModel_Predict_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model exploded"))
	}))
	defer server.Close()

	model := NewBYOMModel(server.URL, []string{"a"}, nil)

	_, err := model.Predict(context.Background(), [][]float64{{1}})
	if err == nil {
		t.Fatal("expected error for HTTP 500, got nil")
	}
	if !strings.Contains(err.Error(), "model exploded") {
		t.Errorf("expected body in error, got %v", err)
	}
}

func TestBYOMModel_Predict_WrongCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(byomResponse{Values: []float64{1, 2, 3}})
	}))
	defer server.Close()

	model := NewBYOMModel(server.URL, []string{"a"}, nil)

	_, err := model.Predict(context.Background(), [][]float64{{1}})
	if err == nil {
		t.Error("expected error for wrong number of predictions, got nil")
	}
}

func TestBYOMModel_Predict_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	model := NewBYOMModel(server.URL, []string{"a"}, nil)

	_, err := model.Predict(context.Background(), [][]float64{{1}})
	if err == nil {
		t.Error("expected error for invalid JSON, got nil")
	}
}

func TestBYOMModel_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	model := NewBYOMModel(server.URL, []string{"a"}, nil)

	for i := 0; i < 8; i++ {
		if _, err := model.Predict(context.Background(), [][]float64{{1}}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	if got := calls.Load(); got != 5 {
		t.Errorf("expected breaker to stop calls after 5 failures, server saw %d", got)
	}

	_, err := model.Predict(context.Background(), [][]float64{{1}})
	if err == nil || !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("expected unavailable error, got %v", err)
	}
}

func TestBYOMModel_CallerCancellationDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(byomResponse{Values: []float64{7}})
	}))
	defer server.Close()

	model := NewBYOMModel(server.URL, []string{"a"}, nil)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 8; i++ {
		_, err := model.Predict(canceled, [][]float64{{1}})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("call %d: expected context.Canceled, got %v", i, err)
		}
	}

	expired, stop := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer stop()
	for i := 0; i < 8; i++ {
		_, err := model.Predict(expired, [][]float64{{1}})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("call %d: expected context.DeadlineExceeded, got %v", i, err)
		}
	}

	got, err := model.Predict(context.Background(), [][]float64{{1}})
	if err != nil {
		t.Fatalf("breaker tripped on caller cancellations: %v", err)
	}
	if got[0] != 7 {
		t.Errorf("expected 7, got %v", got)
	}
}
