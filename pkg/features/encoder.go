package features

import (
	"strconv"
	"time"
)

// Hour bounds accepted by the encoder.
const (
	MinHour = 0
	MaxHour = 23
)

// Encoder maps Records onto a fixed Schema. It holds no mutable state and
// is safe for concurrent use.
type Encoder struct {
	schema  Schema
	columns []string
	numeric []NumericColumn
	layouts []Layout
}

// NewEncoder resolves dims against schema and returns an encoder for it.
func NewEncoder(schema Schema, dims []Dimension) *Encoder {
	return &Encoder{
		schema:  schema,
		columns: schema.Columns(),
		numeric: NumericColumns,
		layouts: ResolveLayout(schema, dims),
	}
}

// Encode encodes r against schema with DefaultDimensions.
func Encode(r Record, schema Schema) (Vector, error) {
	return NewEncoder(schema, DefaultDimensions).Encode(r)
}

// Schema returns the schema the encoder projects onto.
func (e *Encoder) Schema() Schema { return e.schema }

// Layouts returns the resolved categorical layouts.
func (e *Encoder) Layouts() []Layout {
	out := make([]Layout, len(e.layouts))
	copy(out, e.layouts)
	return out
}

// Encode returns the feature vector of r in schema order.
func (e *Encoder) Encode(r Record) (Vector, error) {
	names, values, err := e.Expand(r)
	if err != nil {
		return nil, err
	}
	return Vector(Project(names, values, e.columns)), nil
}

// Expand returns the record's working columns before projection: the
// numeric columns followed by one indicator per non-baseline observed level.
// Indicators for levels the schema never saw are included here and removed
// by the projection.
func (e *Encoder) Expand(r Record) ([]string, []float64, error) {
	obs, err := observe(r)
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(e.numeric)+len(e.layouts))
	values := make([]float64, 0, cap(names))

	for _, n := range e.numeric {
		names = append(names, n.Name)
		values = append(values, n.Value(r))
	}

	for _, l := range e.layouts {
		lvl := obs.level(l.Dimension.Field)
		if l.Dimension.DropFirst && lvl == l.Baseline {
			continue
		}
		names = append(names, l.Dimension.Column(lvl))
		values = append(values, 1)
	}

	return names, values, nil
}

// observation carries the categorical levels of a record, with the calendar
// fields already derived.
type observation struct {
	record   Record
	calendar Calendar
}

func observe(r Record) (observation, error) {
	if r.Hour < MinHour || r.Hour > MaxHour {
		return observation{}, &OutOfRangeError{Field: "hour", Value: r.Hour, Min: MinHour, Max: MaxHour}
	}

	cal, err := DeriveCalendar(r)
	if err != nil {
		return observation{}, err
	}
	return observation{record: r, calendar: cal}, nil
}

// IsWeekend reports whether the weekday is Saturday or Sunday.
func IsWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func (o observation) level(f Field) string {
	switch f {
	case FieldHour:
		return strconv.Itoa(o.record.Hour)
	case FieldSeason:
		return o.record.Season
	case FieldHoliday:
		return o.record.Holiday
	case FieldFunctioningDay:
		return o.record.FunctioningDay
	case FieldMonth:
		return strconv.Itoa(o.calendar.Month)
	case FieldWeekend:
		if o.calendar.Weekend {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// Calendar is the calendar information derived from a record's date.
type Calendar struct {
	Month       int
	WeekdayName string
	Weekend     bool
}

// DeriveCalendar parses r.Date and returns its derived calendar fields.
func DeriveCalendar(r Record) (Calendar, error) {
	d, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return Calendar{}, &MalformedDateError{Value: r.Date, Err: err}
	}
	return Calendar{
		Month:       int(d.Month()),
		WeekdayName: d.Weekday().String(),
		Weekend:     IsWeekend(d.Weekday()),
	}, nil
}
