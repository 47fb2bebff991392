// Package inference turns encoded feature vectors into bike-count
// predictions.
//
// The model was trained on the square root of the hourly rental count, so
// the adapter squares the raw model output and rounds half to even to get
// back to a count.
package inference

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/HatiCode/bikecast/pkg/features"
	"github.com/HatiCode/bikecast/pkg/models"
	"github.com/HatiCode/bikecast/pkg/scaling"
)

// Result is a single prediction.
type Result struct {
	// Count is the predicted number of rented bikes.
	Count int `json:"prediction"`

	// Raw is the untransformed model output (square-root scale).
	Raw float64 `json:"raw"`
}

// SchemaMismatchError reports that the encoded vector width disagrees with
// what the scaler or the model was fit on. It means the loaded artifacts and
// the encoder are out of sync and cannot be recovered from at request time.
type SchemaMismatchError struct {
	Component string
	Want      int
	Got       int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: %s expects %d features, vector has %d", e.Component, e.Want, e.Got)
}

// Adapter applies scaler → model → inverse target transform.
// It is stateless and safe for concurrent use.
type Adapter struct {
	scaler scaling.Scaler
	model  models.Model
}

// NewAdapter returns an Adapter over a fitted scaler and model.
func NewAdapter(scaler scaling.Scaler, model models.Model) *Adapter {
	return &Adapter{scaler: scaler, model: model}
}

// Model returns the wrapped model.
func (a *Adapter) Model() models.Model { return a.model }

// Check verifies that vectors of the given width are accepted by both the
// scaler and the model.
func (a *Adapter) Check(width int) error {
	if w := a.scaler.Width(); w != width {
		return &SchemaMismatchError{Component: "scaler", Want: w, Got: width}
	}
	if w := a.model.Width(); w != 0 && w != width {
		return &SchemaMismatchError{Component: "model", Want: w, Got: width}
	}
	return nil
}

// Predict scales v, runs the model and converts its output to a count.
func (a *Adapter) Predict(ctx context.Context, v features.Vector) (Result, error) {
	if err := a.Check(len(v)); err != nil {
		return Result{}, err
	}

	scaled, err := a.scaler.Transform(v)
	if err != nil {
		var widthErr *scaling.WidthError
		if errors.As(err, &widthErr) {
			return Result{}, &SchemaMismatchError{Component: "scaler", Want: widthErr.Want, Got: widthErr.Got}
		}
		return Result{}, fmt.Errorf("scale: %w", err)
	}

	out, err := a.model.Predict(ctx, [][]float64{scaled})
	if err != nil {
		return Result{}, fmt.Errorf("predict: %w", err)
	}
	if len(out) != 1 {
		return Result{}, fmt.Errorf("predict: model returned %d values for one row", len(out))
	}

	return Result{Count: ToCount(out[0]), Raw: out[0]}, nil
}

// ToCount inverts the square-root target transform: it squares raw and
// rounds half to even. Non-finite outputs map to 0.
func ToCount(raw float64) int {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0
	}
	c := math.RoundToEven(raw * raw)
	if c > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(c)
}
