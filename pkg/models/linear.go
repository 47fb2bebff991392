package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LinearModel computes intercept + x·coef.
type LinearModel struct {
	intercept float64
	coef      *mat.VecDense
}

type linearFile struct {
	Intercept float64            `json:"intercept"`
	Coef      []float64          `json:"coef"`
	Weights   map[string]float64 `json:"weights"`
}

// NewLinearModel returns a linear model over len(coef) features.
func NewLinearModel(intercept float64, coef []float64) (*LinearModel, error) {
	if len(coef) == 0 {
		return nil, errors.New("linear: no coefficients")
	}
	c := make([]float64, len(coef))
	copy(c, coef)
	return &LinearModel{intercept: intercept, coef: mat.NewVecDense(len(c), c)}, nil
}

// ParseLinear decodes {"intercept": b, "coef": [...]} with coefficients in
// column order, or {"intercept": b, "weights": {"column": w}} keyed by
// column name, in which case columns absent from weights get 0.
func ParseLinear(data []byte, columns []string) (*LinearModel, error) {
	var f linearFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("linear: decode: %w", err)
	}

	if f.Weights != nil {
		coef := make([]float64, len(columns))
		for i, c := range columns {
			coef[i] = f.Weights[c]
		}
		return NewLinearModel(f.Intercept, coef)
	}

	if len(columns) > 0 && len(f.Coef) != len(columns) {
		return nil, fmt.Errorf("linear: %d coefficients for %d columns", len(f.Coef), len(columns))
	}
	return NewLinearModel(f.Intercept, f.Coef)
}

func (m *LinearModel) Name() string { return "linear" }
func (m *LinearModel) Width() int   { return m.coef.Len() }

// Predict implements Model.
func (m *LinearModel) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	if err := checkRows("linear", m.Width(), rows); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := m.Width()
	flat := make([]float64, 0, len(rows)*w)
	for _, r := range rows {
		flat = append(flat, r...)
	}
	x := mat.NewDense(len(rows), w, flat)

	var y mat.VecDense
	y.MulVec(x, m.coef)

	out := make([]float64, len(rows))
	for i := range out {
		out[i] = y.AtVec(i) + m.intercept
	}
	return out, nil
}

// FeatureImportances returns |coef| normalised to sum to 1.
func (m *LinearModel) FeatureImportances() []float64 {
	out := make([]float64, m.Width())
	for i := range out {
		out[i] = math.Abs(m.coef.AtVec(i))
	}
	return normalize(out)
}
