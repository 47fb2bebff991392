package features

// Project aligns a set of named values onto the target column order.
//
// values[i] belongs to from[i]. Every column of to that is missing from from
// is 0; every column of from that is missing from to is dropped. When a name
// repeats in from, the first occurrence wins. The result always has len(to)
// entries.
func Project(from []string, values []float64, to []string) []float64 {
	pos := make(map[string]int, len(from))
	for i, c := range from {
		if i >= len(values) {
			break
		}
		if _, seen := pos[c]; !seen {
			pos[c] = i
		}
	}

	out := make([]float64, len(to))
	for i, c := range to {
		if j, ok := pos[c]; ok {
			out[i] = values[j]
		}
	}
	return out
}

// Dropped returns the columns of from that Project would discard, in from
// order.
func Dropped(from []string, to []string) []string {
	keep := make(map[string]struct{}, len(to))
	for _, c := range to {
		keep[c] = struct{}{}
	}

	var out []string
	for _, c := range from {
		if _, ok := keep[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}
