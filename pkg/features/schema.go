package features

import (
	"errors"
	"fmt"
)

// Schema is the ordered list of column names fixed at training time.
// It is immutable after construction and safe for concurrent reads.
type Schema struct {
	columns []string
	index   map[string]int
}

// NewSchema validates and copies columns. Column names must be non-empty
// and unique.
func NewSchema(columns []string) (Schema, error) {
	if len(columns) == 0 {
		return Schema{}, errors.New("schema: no columns")
	}

	cols := make([]string, len(columns))
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if c == "" {
			return Schema{}, fmt.Errorf("schema: column %d has an empty name", i)
		}
		if prev, dup := index[c]; dup {
			return Schema{}, fmt.Errorf("schema: column %q repeated at %d and %d", c, prev, i)
		}
		cols[i] = c
		index[c] = i
	}

	return Schema{columns: cols, index: index}, nil
}

// MustSchema is like NewSchema but panics on error. Intended for tests and
// static tables.
func MustSchema(columns []string) Schema {
	s, err := NewSchema(columns)
	if err != nil {
		panic(err)
	}
	return s
}

// Width returns the number of columns.
func (s Schema) Width() int { return len(s.columns) }

// Columns returns a copy of the column names in schema order.
func (s Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Index returns the position of column c.
func (s Schema) Index(c string) (int, bool) {
	i, ok := s.index[c]
	return i, ok
}

// Has reports whether c is a schema column.
func (s Schema) Has(c string) bool {
	_, ok := s.index[c]
	return ok
}
