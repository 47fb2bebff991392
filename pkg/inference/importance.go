package inference

import "sort"

// DefaultTopN is how many features the importance chart shows.
const DefaultTopN = 10

// Ranked is a column with its importance score.
type Ranked struct {
	Column string  `json:"column"`
	Score  float64 `json:"score"`
}

// TopN returns the n highest-scoring columns, highest first. Ties keep
// column order. scores[i] belongs to columns[i]; extra entries on either side
// are ignored. n <= 0 returns every scored column.
func TopN(columns []string, scores []float64, n int) []Ranked {
	size := min(len(columns), len(scores))

	ranked := make([]Ranked, size)
	for i := 0; i < size; i++ {
		ranked[i] = Ranked{Column: columns[i], Score: scores[i]}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
