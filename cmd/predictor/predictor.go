// Package main implements the prediction pipeline orchestration.
//
// This file contains the Predictor type which runs one request through:
//
//	cache lookup → encode → scale → model → inverse transform → cache store → history
//
// Artifacts, the resolved encoder layout and the importance ranking are built
// once in NewPredictor and never mutated, so a single Predictor serves all
// requests concurrently. The cache and the history recorder are optional and
// their failures are logged without failing the request.
package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/HatiCode/bikecast/cmd/predictor/metrics"
	"github.com/HatiCode/bikecast/pkg/artifacts"
	"github.com/HatiCode/bikecast/pkg/features"
	"github.com/HatiCode/bikecast/pkg/history"
	"github.com/HatiCode/bikecast/pkg/inference"
	"github.com/HatiCode/bikecast/pkg/storage"
)

// Predictor serves bike-count predictions for raw input records.
type Predictor struct {
	encoder *features.Encoder
	columns []string
	prefix  string
	adapter *inference.Adapter
	ranking []inference.Ranked
	cache   storage.Store
	history history.Recorder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewPredictor wires a loaded artifact bundle into a Predictor. cache may be
// nil to disable caching; recorder may be nil to disable history.
//
// A width disagreement between the schema and the scaler or model is logged
// and counted here; every request then fails with a SchemaMismatchError.
func NewPredictor(
	bundle *artifacts.Bundle,
	cache storage.Store,
	recorder history.Recorder,
	topN int,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Predictor {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = history.NopRecorder{}
	}

	p := &Predictor{
		encoder: features.NewEncoder(bundle.Schema, features.DefaultDimensions),
		columns: bundle.Schema.Columns(),
		prefix:  cachePrefix(bundle.Fingerprint),
		adapter: inference.NewAdapter(bundle.Scaler, bundle.Model),
		ranking: inference.TopN(bundle.Schema.Columns(), bundle.Importances, topN),
		cache:   cache,
		history: recorder,
		logger:  logger,
		metrics: m,
	}

	if err := p.adapter.Check(bundle.Schema.Width()); err != nil {
		logger.Error("artifacts disagree on feature width", "error", err)
		p.recordError("inference", "schema_mismatch")
	}

	for _, l := range p.encoder.Layouts() {
		logger.Debug("resolved dimension layout",
			"dimension", l.Dimension.Name,
			"baseline", l.Baseline,
			"columns", len(l.Columns()),
		)
	}

	return p
}

// Importance returns the precomputed top-N feature ranking.
func (p *Predictor) Importance() []inference.Ranked {
	return p.ranking
}

// Predict returns the predicted bike count for r and whether it was served
// from the cache.
func (p *Predictor) Predict(ctx context.Context, r features.Record) (inference.Result, bool, error) {
	key := p.prefix + r.Key()

	if res, ok := p.lookup(ctx, key); ok {
		p.record(ctx, r, res, true)
		return res, true, nil
	}

	start := time.Now()
	vec, err := p.encode(ctx, r)
	if p.metrics != nil {
		p.metrics.RecordEncode(time.Since(start).Seconds())
	}
	if err != nil {
		p.recordError("features", encodeReason(err))
		return inference.Result{}, false, err
	}

	start = time.Now()
	res, err := p.adapter.Predict(ctx, vec)
	if p.metrics != nil {
		p.metrics.RecordPredict(time.Since(start).Seconds())
	}
	if err != nil {
		var mismatch *inference.SchemaMismatchError
		if errors.As(err, &mismatch) {
			p.logger.Error("schema mismatch", "error", err)
			p.recordError("inference", "schema_mismatch")
		} else {
			p.logger.Error("model prediction failed", "model", p.adapter.Model().Name(), "error", err)
			p.recordError("model", "predict_failed")
		}
		return inference.Result{}, false, err
	}

	p.store(ctx, key, res)
	p.record(ctx, r, res, false)

	p.logger.Debug("prediction served",
		"date", r.Date,
		"hour", r.Hour,
		"prediction", res.Count,
		"raw", res.Raw,
	)

	return res, false, nil
}

// Ping checks the cache backend when it supports health checks.
func (p *Predictor) Ping(ctx context.Context) error {
	if pinger, ok := p.cache.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// encode expands r and projects it onto the schema. Indicators for levels
// the artifacts never saw are logged at debug level.
func (p *Predictor) encode(ctx context.Context, r features.Record) (features.Vector, error) {
	names, values, err := p.encoder.Expand(r)
	if err != nil {
		return nil, err
	}
	if dropped := features.Dropped(names, p.columns); len(dropped) > 0 {
		p.logger.DebugContext(ctx, "unseen levels dropped", "columns", dropped)
	}
	return features.Vector(features.Project(names, values, p.columns)), nil
}

func (p *Predictor) lookup(ctx context.Context, key string) (inference.Result, bool) {
	if p.cache == nil {
		return inference.Result{}, false
	}

	entry, found, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn("cache lookup failed", "error", err)
		p.recordError("cache", "get_failed")
		return inference.Result{}, false
	}
	if !found {
		return inference.Result{}, false
	}
	return inference.Result{Count: entry.Count, Raw: entry.Raw}, true
}

func (p *Predictor) store(ctx context.Context, key string, res inference.Result) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Put(ctx, key, storage.Entry{Count: res.Count, Raw: res.Raw}); err != nil {
		p.logger.Warn("cache store failed", "error", err)
		p.recordError("cache", "put_failed")
	}
}

func (p *Predictor) record(ctx context.Context, r features.Record, res inference.Result, cached bool) {
	if p.metrics != nil {
		p.metrics.RecordPrediction(res.Count, cached)
	}

	err := p.history.Record(ctx, history.Entry{
		Record:     r,
		Prediction: res.Count,
		Raw:        res.Raw,
		Model:      p.adapter.Model().Name(),
		Cached:     cached,
	})
	if err != nil {
		p.logger.Warn("history record failed", "error", err)
		p.recordError("history", "record_failed")
	}
}

func (p *Predictor) recordError(component, reason string) {
	if p.metrics != nil {
		p.metrics.RecordError(component, reason)
	}
}

// cachePrefix scopes cache keys to one artifact set, so a shared cache never
// serves a prediction made by other artifacts.
func cachePrefix(fingerprint string) string {
	if fingerprint == "" {
		return ""
	}
	return fingerprint + ":"
}

func encodeReason(err error) string {
	var malformed *features.MalformedDateError
	var outOfRange *features.OutOfRangeError
	switch {
	case errors.As(err, &malformed):
		return "malformed_date"
	case errors.As(err, &outOfRange):
		return "out_of_range"
	default:
		return "encode_failed"
	}
}
