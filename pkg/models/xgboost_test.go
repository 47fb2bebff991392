package models

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDump = `{
  "base_score": 0.5,
  "trees": [
    {"nodeid": 0, "depth": 0, "split": "a", "split_condition": 1.5, "yes": 1, "no": 2, "missing": 1, "gain": 10,
     "children": [{"nodeid": 1, "leaf": 0.1}, {"nodeid": 2, "leaf": 0.3}]},
    {"nodeid": 0, "depth": 0, "split": "f1", "split_condition": 0, "yes": 1, "no": 2, "missing": 2, "gain": 30,
     "children": [{"nodeid": 1, "leaf": -0.05}, {"nodeid": 2, "leaf": 0.2}]}
  ]
}`

func TestParseXGBoostDump_Predict(t *testing.T) {
	m, err := ParseXGBoostDump([]byte(testDump), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "xgboost", m.Name())
	assert.Equal(t, 2, m.Width())
	assert.Equal(t, 2, m.treeCount())

	got, err := m.Predict(context.Background(), [][]float64{
		{1, -1},
		{2, 1},
		{math.NaN(), math.NaN()},
		{1.5, 0},
	})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.55, 1.0, 0.8, 1.0}, got, 1e-9)
}

func TestParseXGBoostDump_RawArray(t *testing.T) {
	dump := `[{"nodeid": 0, "split": "f0", "split_condition": 3, "yes": 1, "no": 2,
	           "children": [{"nodeid": 1, "leaf": 1}, {"nodeid": 2, "leaf": 2}]}]`

	m, err := ParseXGBoostDump([]byte(dump), []string{"x"})
	require.NoError(t, err)

	got, err := m.Predict(context.Background(), [][]float64{{0}, {5}, {math.NaN()}})
	require.NoError(t, err)
	// Missing defaults to the "yes" branch when the dump omits it.
	assert.InDeltaSlice(t, []float64{1.5, 2.5, 1.5}, got, 1e-9)
}

func TestTreeEnsemble_FeatureImportances(t *testing.T) {
	m, err := ParseXGBoostDump([]byte(testDump), []string{"a", "b", "unused"})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.75, 0}, m.FeatureImportances(), 1e-9)

	noGain := `[{"nodeid":0,"split":"f0","split_condition":1,"yes":1,"no":2,"children":[
	  {"nodeid":1,"split":"f1","split_condition":1,"yes":3,"no":4,"children":[{"nodeid":3,"leaf":0},{"nodeid":4,"leaf":0}]},
	  {"nodeid":2,"split":"f1","split_condition":2,"yes":5,"no":6,"children":[{"nodeid":5,"leaf":0},{"nodeid":6,"leaf":0}]}]}]`
	m, err = ParseXGBoostDump([]byte(noGain), []string{"a", "b"})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.0 / 3, 2.0 / 3}, m.FeatureImportances(), 1e-9)
}

func TestParseXGBoostDump_Errors(t *testing.T) {
	tests := []struct {
		name    string
		dump    string
		columns []string
	}{
		{"invalid json", `{"trees": [`, []string{"a"}},
		{"no trees", `{"base_score": 0.5, "trees": []}`, []string{"a"}},
		{"no columns", testDump, nil},
		{"unknown feature", `[{"nodeid":0,"split":"zzz","split_condition":1,"yes":1,"no":2,"children":[{"nodeid":1,"leaf":0},{"nodeid":2,"leaf":0}]}]`, []string{"a"}},
		{"index out of range", `[{"nodeid":0,"split":"f7","split_condition":1,"yes":1,"no":2,"children":[{"nodeid":1,"leaf":0},{"nodeid":2,"leaf":0}]}]`, []string{"a"}},
		{"missing nodeid", `[{"leaf": 1}]`, []string{"a"}},
		{"no root", `[{"nodeid": 3, "leaf": 1}]`, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseXGBoostDump([]byte(tt.dump), tt.columns)
			assert.Error(t, err)
		})
	}
}

func TestTreeEnsemble_DanglingChild(t *testing.T) {
	dump := `[{"nodeid":0,"split":"f0","split_condition":1,"yes":1,"no":9,"children":[{"nodeid":1,"leaf":0}]}]`
	m, err := ParseXGBoostDump([]byte(dump), []string{"a"})
	require.NoError(t, err)

	_, err = m.Predict(context.Background(), [][]float64{{5}})
	assert.ErrorContains(t, err, "dangling node 9")
}

func TestTreeEnsemble_Predict_RowWidth(t *testing.T) {
	m, err := ParseXGBoostDump([]byte(testDump), []string{"a", "b"})
	require.NoError(t, err)

	_, err = m.Predict(context.Background(), [][]float64{{1, 2, 3}})
	assert.Error(t, err)

	_, err = m.Predict(context.Background(), nil)
	assert.Error(t, err)
}

func TestParse_Kinds(t *testing.T) {
	m, err := Parse("xgboost", []byte(testDump), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "xgboost", m.Name())

	m, err = Parse("linear", []byte(`{"intercept": 1, "coef": [1, 2]}`), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "linear", m.Name())

	_, err = Parse("pickle", nil, nil)
	assert.Error(t, err)
}
