package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HatiCode/bikecast/pkg/features"
	"github.com/HatiCode/bikecast/pkg/models"
	"github.com/HatiCode/bikecast/pkg/scaling"
)

type fixedModel struct {
	width  int
	values []float64
	err    error
	rows   [][]float64
}

func (m *fixedModel) Name() string { return "fixed" }
func (m *fixedModel) Width() int   { return m.width }

func (m *fixedModel) Predict(_ context.Context, rows [][]float64) ([]float64, error) {
	m.rows = rows
	return m.values, m.err
}

func TestAdapter_Predict(t *testing.T) {
	scaler, err := scaling.NewStandardScaler([]float64{1, 1}, []float64{2, 2})
	require.NoError(t, err)
	model := &fixedModel{width: 2, values: []float64{30.5}}

	res, err := NewAdapter(scaler, model).Predict(context.Background(), features.Vector{3, 5})
	require.NoError(t, err)

	assert.Equal(t, [][]float64{{1, 2}}, model.rows, "model should see scaled input")
	assert.Equal(t, 930, res.Count) // 30.5² = 930.25
	assert.Equal(t, 30.5, res.Raw)
}

func TestAdapter_SchemaMismatch(t *testing.T) {
	scaler := scaling.NewIdentity(3)

	tests := []struct {
		name      string
		model     models.Model
		vec       features.Vector
		component string
	}{
		{"scaler narrower", &fixedModel{width: 3, values: []float64{1}}, features.Vector{1, 2}, "scaler"},
		{"model narrower", &fixedModel{width: 2, values: []float64{1}}, features.Vector{1, 2, 3}, "model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAdapter(scaler, tt.model).Predict(context.Background(), tt.vec)

			var mismatch *SchemaMismatchError
			require.True(t, errors.As(err, &mismatch), "got %v", err)
			assert.Equal(t, tt.component, mismatch.Component)
		})
	}
}

func TestAdapter_UnknownModelWidth(t *testing.T) {
	model := &fixedModel{width: 0, values: []float64{2}}
	res, err := NewAdapter(scaling.NewIdentity(2), model).Predict(context.Background(), features.Vector{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count)
}

func TestAdapter_ModelFailure(t *testing.T) {
	model := &fixedModel{width: 1, err: fmt.Errorf("boom")}
	_, err := NewAdapter(scaling.NewIdentity(1), model).Predict(context.Background(), features.Vector{1})
	require.Error(t, err)

	var mismatch *SchemaMismatchError
	assert.False(t, errors.As(err, &mismatch))
	assert.Contains(t, err.Error(), "boom")
}

func TestAdapter_ModelReturnsWrongCount(t *testing.T) {
	model := &fixedModel{width: 1, values: []float64{1, 2}}
	_, err := NewAdapter(scaling.NewIdentity(1), model).Predict(context.Background(), features.Vector{1})
	assert.Error(t, err)
}

func TestToCount(t *testing.T) {
	tests := []struct {
		raw  float64
		want int
	}{
		{0, 0},
		{3, 9},
		{-3, 9},
		{math.Sqrt(2.5), 2}, // half to even
		{math.Sqrt(3.5), 4},
		{30.5, 930},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.raw), func(t *testing.T) {
			assert.Equal(t, tt.want, ToCount(tt.raw))
		})
	}
}

// TestAdapter_EndToEnd runs the worked example: a Monday in January at noon
// through a real encoder, scaler and tree model.
func TestAdapter_EndToEnd(t *testing.T) {
	cols := []string{"Temperature", "Humidity", "Hour_12", "Seasons_Winter", "month_2", "weekdays_weekend_1"}
	schema := features.MustSchema(cols)

	r := features.Record{
		Date: "2024-01-15", Hour: 12, Temperature: 20.0, Humidity: 50, WindSpeed: 2.0,
		Visibility: 1000, SolarRadiation: 1.0, Season: "Winter", Holiday: "No Holiday", FunctioningDay: "Yes",
	}
	vec, err := features.Encode(r, schema)
	require.NoError(t, err)
	require.Equal(t, features.Vector{20, 50, 1, 1, 0, 0}, vec)

	dump := `{"base_score": 10, "trees": [
	  {"nodeid":0,"split":"Hour_12","split_condition":0.5,"yes":1,"no":2,
	   "children":[{"nodeid":1,"leaf":0},{"nodeid":2,"leaf":5}]},
	  {"nodeid":0,"split":"weekdays_weekend_1","split_condition":0.5,"yes":1,"no":2,
	   "children":[{"nodeid":1,"leaf":1.5},{"nodeid":2,"leaf":-3}]}]}`
	model, err := models.ParseXGBoostDump([]byte(dump), cols)
	require.NoError(t, err)

	res, err := NewAdapter(scaling.NewIdentity(len(cols)), model).Predict(context.Background(), vec)
	require.NoError(t, err)
	assert.InDelta(t, 16.5, res.Raw, 1e-9)
	assert.Equal(t, 272, res.Count) // 16.5² = 272.25
	assert.GreaterOrEqual(t, res.Count, 0)
}
