// Package storage provides prediction cache implementations.
//
// The feature encoding is deterministic, so two identical input records always
// produce the same prediction. Stores key entries by features.Record.Key and
// let the predictor skip encoding and inference for repeated inputs.
package storage

import (
	"context"
	"errors"
	"time"
)

// Entry is a cached prediction.
type Entry struct {
	Count     int       `json:"count"`
	Raw       float64   `json:"raw"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrEmptyKey is returned when an operation is given an empty cache key.
var ErrEmptyKey = errors.New("cache key cannot be empty")

type Store interface {
	Put(ctx context.Context, key string, entry Entry) error
	Get(ctx context.Context, key string) (Entry, bool, error)
}
