// Package history records served predictions for later audit and model
// evaluation.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HatiCode/bikecast/pkg/features"
)

// Entry is one served prediction.
type Entry struct {
	At         time.Time
	Record     features.Record
	Prediction int
	Raw        float64
	Model      string
	Cached     bool
}

// Recorder persists served predictions.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Close()
}

// NopRecorder discards every entry. It is used when no history database is
// configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) error { return nil }
func (NopRecorder) Close()                              {}

const createTable = `
CREATE TABLE IF NOT EXISTS predictions (
	id               BIGSERIAL PRIMARY KEY,
	ts               TIMESTAMPTZ      NOT NULL,
	date             DATE             NOT NULL,
	hour             SMALLINT         NOT NULL,
	temperature      DOUBLE PRECISION NOT NULL,
	humidity         DOUBLE PRECISION NOT NULL,
	wind_speed       DOUBLE PRECISION NOT NULL,
	visibility       DOUBLE PRECISION NOT NULL,
	solar_radiation  DOUBLE PRECISION NOT NULL,
	rainfall         DOUBLE PRECISION NOT NULL,
	snowfall         DOUBLE PRECISION NOT NULL,
	season           TEXT             NOT NULL,
	holiday          TEXT             NOT NULL,
	functioning_day  TEXT             NOT NULL,
	prediction       INTEGER          NOT NULL,
	raw              DOUBLE PRECISION NOT NULL,
	model            TEXT             NOT NULL,
	cached           BOOLEAN          NOT NULL
)`

const insertEntry = `
INSERT INTO predictions (
	ts, date, hour, temperature, humidity, wind_speed, visibility,
	solar_radiation, rainfall, snowfall, season, holiday, functioning_day,
	prediction, raw, model, cached
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

// PostgresRecorder writes entries to the predictions table through a pgx
// connection pool. It is safe for concurrent use.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder connects to dsn, verifies the connection and creates
// the predictions table if it does not exist.
func NewPostgresRecorder(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	if dsn == "" {
		return nil, errors.New("history dsn cannot be empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history pool init: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history ping: %w", err)
	}

	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history create table: %w", err)
	}

	return &PostgresRecorder{pool: pool}, nil
}

// Record inserts e. A zero At is replaced by the current time.
func (p *PostgresRecorder) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	date, err := time.Parse(features.DateLayout, e.Record.Date)
	if err != nil {
		return &features.MalformedDateError{Value: e.Record.Date, Err: err}
	}

	r := e.Record
	_, err = p.pool.Exec(ctx, insertEntry,
		e.At, date, r.Hour, r.Temperature, r.Humidity, r.WindSpeed, r.Visibility,
		r.SolarRadiation, r.Rainfall, r.Snowfall, r.Season, r.Holiday, r.FunctioningDay,
		e.Prediction, e.Raw, e.Model, e.Cached,
	)
	if err != nil {
		return fmt.Errorf("history insert: %w", err)
	}
	return nil
}

// count returns the number of recorded predictions.
func (p *PostgresRecorder) count(ctx context.Context) (int64, error) {
	var n int64
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM predictions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history count: %w", err)
	}
	return n, nil
}

// Close releases the pool.
func (p *PostgresRecorder) Close() { p.pool.Close() }
