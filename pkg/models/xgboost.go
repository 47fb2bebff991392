package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// maxTreeDepth guards tree walks against cyclic dumps.
const maxTreeDepth = 256

// TreeEnsemble evaluates a gradient-boosted regression ensemble exported
// with XGBoost's Booster.dump_model(..., dump_format="json").
//
// The prediction for a row is base_score plus the sum of the leaf values
// reached in every tree. A split sends the row to "yes" when
// x[feature] < split_condition, to "missing" when x[feature] is NaN, and to
// "no" otherwise.
type TreeEnsemble struct {
	baseScore float64
	trees     []tree
	width     int
	gain      []float64
	splits    []float64
}

type tree map[int]treeNode

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	yes       int
	no        int
	missing   int
}

// ParseXGBoostDump decodes an ensemble. Two layouts are accepted:
//
//	[{tree}, {tree}, ...]                       // raw dump, base_score 0.5
//	{"base_score": 0.5, "trees": [{tree}, ...]} // dump with metadata
//
// Splits may reference features as "f<index>" or by column name.
func ParseXGBoostDump(data []byte, columns []string) (*TreeEnsemble, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("xgboost: dump is not valid JSON")
	}
	if len(columns) == 0 {
		return nil, errors.New("xgboost: no training columns")
	}

	doc := gjson.ParseBytes(data)
	trees := doc
	baseScore := 0.5
	if doc.IsObject() {
		trees = doc.Get("trees")
		if bs := doc.Get("base_score"); bs.Exists() {
			baseScore = bs.Float()
		}
	}
	if !trees.IsArray() || len(trees.Array()) == 0 {
		return nil, errors.New("xgboost: dump has no trees")
	}

	colIndex := make(map[string]int, len(columns))
	for i, c := range columns {
		colIndex[c] = i
	}

	m := &TreeEnsemble{
		baseScore: baseScore,
		width:     len(columns),
		gain:      make([]float64, len(columns)),
		splits:    make([]float64, len(columns)),
	}

	for i, t := range trees.Array() {
		nodes := make(tree)
		if err := m.collect(t, nodes, colIndex, 0); err != nil {
			return nil, fmt.Errorf("xgboost: tree %d: %w", i, err)
		}
		if _, ok := nodes[0]; !ok {
			return nil, fmt.Errorf("xgboost: tree %d has no root node", i)
		}
		m.trees = append(m.trees, nodes)
	}

	return m, nil
}

func (m *TreeEnsemble) collect(n gjson.Result, nodes tree, colIndex map[string]int, depth int) error {
	if depth > maxTreeDepth {
		return errors.New("tree too deep")
	}

	id := n.Get("nodeid")
	if !id.Exists() {
		return errors.New("node without nodeid")
	}

	if leaf := n.Get("leaf"); leaf.Exists() {
		nodes[int(id.Int())] = treeNode{leaf: true, value: leaf.Float()}
		return nil
	}

	feature, err := resolveFeature(n.Get("split").String(), colIndex, m.width)
	if err != nil {
		return err
	}

	node := treeNode{
		feature:   feature,
		threshold: n.Get("split_condition").Float(),
		yes:       int(n.Get("yes").Int()),
		no:        int(n.Get("no").Int()),
		missing:   int(n.Get("missing").Int()),
	}
	if !n.Get("missing").Exists() {
		node.missing = node.yes
	}
	nodes[int(id.Int())] = node

	m.splits[feature]++
	m.gain[feature] += n.Get("gain").Float()

	var childErr error
	n.Get("children").ForEach(func(_, child gjson.Result) bool {
		childErr = m.collect(child, nodes, colIndex, depth+1)
		return childErr == nil
	})
	return childErr
}

func resolveFeature(split string, colIndex map[string]int, width int) (int, error) {
	if split == "" {
		return 0, errors.New("split node without feature")
	}
	if i, ok := colIndex[split]; ok {
		return i, nil
	}
	if rest, ok := strings.CutPrefix(split, "f"); ok {
		if i, err := strconv.Atoi(rest); err == nil && i >= 0 && i < width {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown split feature %q", split)
}

func (m *TreeEnsemble) Name() string { return "xgboost" }
func (m *TreeEnsemble) Width() int   { return m.width }

func (m *TreeEnsemble) treeCount() int { return len(m.trees) }

// Predict implements Model.
func (m *TreeEnsemble) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	if err := checkRows("xgboost", m.width, rows); err != nil {
		return nil, err
	}

	out := make([]float64, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sum := m.baseScore
		for ti, t := range m.trees {
			v, err := t.eval(row)
			if err != nil {
				return nil, fmt.Errorf("xgboost: tree %d: %w", ti, err)
			}
			sum += v
		}
		out[i] = sum
	}
	return out, nil
}

func (t tree) eval(row []float64) (float64, error) {
	id := 0
	for step := 0; step <= maxTreeDepth; step++ {
		n, ok := t[id]
		if !ok {
			return 0, fmt.Errorf("dangling node %d", id)
		}
		if n.leaf {
			return n.value, nil
		}
		x := row[n.feature]
		switch {
		case math.IsNaN(x):
			id = n.missing
		case x < n.threshold:
			id = n.yes
		default:
			id = n.no
		}
	}
	return 0, errors.New("walk exceeded maximum depth")
}

// FeatureImportances returns the average split gain per feature, normalised
// to sum to 1. Dumps without gain fall back to split counts.
func (m *TreeEnsemble) FeatureImportances() []float64 {
	out := make([]float64, m.width)
	var haveGain bool
	for _, g := range m.gain {
		if g != 0 {
			haveGain = true
			break
		}
	}
	for i := range out {
		switch {
		case m.splits[i] == 0:
		case haveGain:
			out[i] = m.gain[i] / m.splits[i]
		default:
			out[i] = m.splits[i]
		}
	}
	return normalize(out)
}
