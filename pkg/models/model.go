// Package models provides the regression models bikecast can serve.
//
// Available models:
//   - TreeEnsemble: gradient-boosted trees loaded from an XGBoost JSON dump
//   - LinearModel: intercept plus coefficients, evaluated with gonum
//   - BYOMModel: delegates prediction to an external HTTP service
//
// Models are loaded once at startup and are read-only afterwards, so a
// single instance is shared by all requests.
package models

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Model predicts one value per input row.
type Model interface {
	// Name returns a short identifier such as "xgboost".
	Name() string

	// Width is the number of features each row must have. Zero means the
	// model cannot tell.
	Width() int

	// Predict returns one prediction per row, in row order.
	Predict(ctx context.Context, rows [][]float64) ([]float64, error)
}

// ImportanceProvider is implemented by models that can score their features.
// Scores are aligned with the model's input columns and sum to 1 when any
// score is non-zero.
type ImportanceProvider interface {
	FeatureImportances() []float64
}

// Parse decodes a serialised model of the given kind. columns are the
// training columns, used to resolve named splits and to fix the width.
func Parse(kind string, data []byte, columns []string) (Model, error) {
	switch kind {
	case "xgboost":
		return ParseXGBoostDump(data, columns)
	case "linear":
		return ParseLinear(data, columns)
	default:
		return nil, fmt.Errorf("unsupported model kind %q", kind)
	}
}

func checkRows(name string, width int, rows [][]float64) error {
	if len(rows) == 0 {
		return fmt.Errorf("%s: no rows to predict", name)
	}
	if width == 0 {
		return nil
	}
	for i, r := range rows {
		if len(r) != width {
			return fmt.Errorf("%s: row %d has %d features, model expects %d", name, i, len(r), width)
		}
	}
	return nil
}

func normalize(v []float64) []float64 {
	total := floats.Sum(v)
	if total == 0 {
		return v
	}
	floats.Scale(1/total, v)
	return v
}
