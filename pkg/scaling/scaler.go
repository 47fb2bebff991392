// Package scaling implements the fitted feature-scaling transforms applied
// to encoded vectors before inference.
//
// Scalers are loaded from JSON exports of scikit-learn's StandardScaler and
// MinMaxScaler and are read-only after loading.
package scaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Scaler transforms a feature vector with parameters fit at training time.
type Scaler interface {
	// Transform returns a scaled copy of x. It fails if len(x) != Width().
	Transform(x []float64) ([]float64, error)

	// Width is the number of features the scaler was fit on.
	Width() int

	// Kind returns the scaler identifier, e.g. "standard".
	Kind() string
}

// WidthError reports a vector whose length disagrees with the scaler.
type WidthError struct {
	Want int
	Got  int
}

func (e *WidthError) Error() string {
	return fmt.Sprintf("scaling: expected %d features, got %d", e.Want, e.Got)
}

// StandardScaler computes (x - mean) / scale.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler returns a StandardScaler. Zero scales are treated as 1,
// matching scikit-learn's handling of constant features.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 {
		return nil, errors.New("scaling: standard scaler has no features")
	}
	if len(mean) != len(scale) {
		return nil, fmt.Errorf("scaling: mean has %d entries, scale has %d", len(mean), len(scale))
	}
	return &StandardScaler{mean: clone(mean), scale: safeScale(scale)}, nil
}

func (s *StandardScaler) Kind() string { return "standard" }
func (s *StandardScaler) Width() int   { return len(s.mean) }

func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.mean) {
		return nil, &WidthError{Want: len(s.mean), Got: len(x)}
	}
	out := make([]float64, len(x))
	floats.SubTo(out, x, s.mean)
	floats.Div(out, s.scale)
	return out, nil
}

// MinMaxScaler computes x*scale + min, scikit-learn's MinMaxScaler
// transform with its fitted scale_ and min_ attributes.
type MinMaxScaler struct {
	min   []float64
	scale []float64
}

// NewMinMaxScaler returns a MinMaxScaler.
func NewMinMaxScaler(min, scale []float64) (*MinMaxScaler, error) {
	if len(min) == 0 {
		return nil, errors.New("scaling: min-max scaler has no features")
	}
	if len(min) != len(scale) {
		return nil, fmt.Errorf("scaling: min has %d entries, scale has %d", len(min), len(scale))
	}
	return &MinMaxScaler{min: clone(min), scale: clone(scale)}, nil
}

func (s *MinMaxScaler) Kind() string { return "minmax" }
func (s *MinMaxScaler) Width() int   { return len(s.min) }

func (s *MinMaxScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.min) {
		return nil, &WidthError{Want: len(s.min), Got: len(x)}
	}
	out := make([]float64, len(x))
	floats.MulTo(out, x, s.scale)
	floats.Add(out, s.min)
	return out, nil
}

// Identity passes vectors through unchanged. Used when the model was trained
// on unscaled features.
type Identity struct {
	width int
}

// NewIdentity returns an identity scaler of the given width.
func NewIdentity(width int) *Identity { return &Identity{width: width} }

func (s *Identity) Kind() string { return "identity" }
func (s *Identity) Width() int   { return s.width }

func (s *Identity) Transform(x []float64) ([]float64, error) {
	if len(x) != s.width {
		return nil, &WidthError{Want: s.width, Got: len(x)}
	}
	return clone(x), nil
}

type scalerFile struct {
	Kind  string    `json:"kind"`
	Mean  []float64 `json:"mean"`
	Min   []float64 `json:"min"`
	Scale []float64 `json:"scale"`
	Width int       `json:"width"`
}

// Parse decodes a scaler export:
//
//	{"kind":"standard","mean":[...],"scale":[...]}
//	{"kind":"minmax","min":[...],"scale":[...]}
//	{"kind":"identity","width":47}
func Parse(data []byte) (Scaler, error) {
	var f scalerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("scaling: decode: %w", err)
	}

	switch f.Kind {
	case "standard", "":
		return NewStandardScaler(f.Mean, f.Scale)
	case "minmax":
		return NewMinMaxScaler(f.Min, f.Scale)
	case "identity":
		if f.Width <= 0 {
			return nil, errors.New("scaling: identity scaler needs a positive width")
		}
		return NewIdentity(f.Width), nil
	default:
		return nil, fmt.Errorf("scaling: unknown kind %q", f.Kind)
	}
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func safeScale(scale []float64) []float64 {
	out := clone(scale)
	for i, s := range out {
		if s == 0 || math.IsNaN(s) {
			out[i] = 1
		}
	}
	return out
}
