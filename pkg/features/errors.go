package features

import "fmt"

// MalformedDateError is returned when Record.Date is not a calendar date in
// DateLayout.
type MalformedDateError struct {
	Value string
	Err   error
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("malformed date %q: expected YYYY-MM-DD", e.Value)
}

func (e *MalformedDateError) Unwrap() error { return e.Err }

// OutOfRangeError is returned when an integer field falls outside its
// accepted closed interval.
type OutOfRangeError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}
