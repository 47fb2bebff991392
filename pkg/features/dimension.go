package features

import (
	"strconv"
	"strings"
)

// Field identifies which part of an observation a categorical dimension
// reads its level from.
type Field int

const (
	FieldHour Field = iota
	FieldSeason
	FieldHoliday
	FieldFunctioningDay
	FieldMonth
	FieldWeekend
)

// Dimension declares one one-hot encoded axis.
//
// Levels is the canonical candidate set in the order used at training time.
// With DropFirst the first level is the baseline and gets no indicator
// column. ResolveLayout reorders Levels from the schema before encoding, so
// the declared order only matters for levels the schema does not mention.
type Dimension struct {
	Name      string
	Field     Field
	Levels    []string
	DropFirst bool
}

// Column returns the indicator column name for level.
func (d Dimension) Column(level string) string {
	return d.Name + "_" + level
}

// NumericColumn is a continuous input copied verbatim into the vector.
type NumericColumn struct {
	Name  string
	Value func(Record) float64
}

// NumericColumns are the continuous columns in training order.
var NumericColumns = []NumericColumn{
	{Name: "Temperature", Value: func(r Record) float64 { return r.Temperature }},
	{Name: "Humidity", Value: func(r Record) float64 { return r.Humidity }},
	{Name: "Wind_speed", Value: func(r Record) float64 { return r.WindSpeed }},
	{Name: "Visibility", Value: func(r Record) float64 { return r.Visibility }},
	{Name: "Solar_Radiation", Value: func(r Record) float64 { return r.SolarRadiation }},
	{Name: "Rainfall", Value: func(r Record) float64 { return r.Rainfall }},
	{Name: "Snowfall", Value: func(r Record) float64 { return r.Snowfall }},
}

// Season, holiday and functioning-day levels as offered by the input form.
var (
	Seasons         = []string{"Autumn", "Spring", "Summer", "Winter"}
	HolidayLevels   = []string{"Holiday", "No Holiday"}
	FunctioningDays = []string{"No", "Yes"}
)

// DefaultDimensions is the categorical table used at training time. Level
// lists are sorted the way the training frame sorted its categories.
var DefaultDimensions = []Dimension{
	{Name: "Hour", Field: FieldHour, Levels: intLevels(0, 23), DropFirst: true},
	{Name: "Seasons", Field: FieldSeason, Levels: Seasons, DropFirst: true},
	{Name: "Holiday", Field: FieldHoliday, Levels: HolidayLevels, DropFirst: true},
	{Name: "Functioning_Day", Field: FieldFunctioningDay, Levels: FunctioningDays, DropFirst: true},
	{Name: "month", Field: FieldMonth, Levels: intLevels(1, 12), DropFirst: true},
	{Name: "weekdays_weekend", Field: FieldWeekend, Levels: []string{"0", "1"}, DropFirst: true},
}

func intLevels(from, to int) []string {
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

// Layout is a Dimension resolved against a Schema.
type Layout struct {
	Dimension Dimension

	// Baseline is the dropped level, empty when nothing is dropped.
	Baseline string

	// Levels are the levels that own an indicator column, in schema order
	// first, followed by declared levels the schema does not carry.
	Levels []string
}

// Columns returns the indicator column names of the layout.
func (l Layout) Columns() []string {
	out := make([]string, len(l.Levels))
	for i, lvl := range l.Levels {
		out[i] = l.Dimension.Column(lvl)
	}
	return out
}

// ResolveLayout derives the effective level order of every dimension from
// the schema.
//
// The schema's "<name>_<level>" columns are the non-baseline levels seen at
// training time. For a drop-first dimension the baseline is the first
// declared level the schema has no column for; when the schema carries no
// column for the dimension at all, the first declared level is used.
func ResolveLayout(schema Schema, dims []Dimension) []Layout {
	layouts := make([]Layout, 0, len(dims))
	for _, d := range dims {
		layouts = append(layouts, resolveDimension(schema, d))
	}
	return layouts
}

func resolveDimension(schema Schema, d Dimension) Layout {
	prefix := d.Name + "_"

	var present []string
	for _, c := range schema.columns {
		if lvl, ok := strings.CutPrefix(c, prefix); ok && lvl != "" {
			present = append(present, lvl)
		}
	}

	l := Layout{Dimension: d}
	if d.DropFirst {
		for _, lvl := range d.Levels {
			if !schema.Has(d.Column(lvl)) {
				l.Baseline = lvl
				break
			}
		}
	}

	l.Levels = append(l.Levels, present...)
	for _, lvl := range d.Levels {
		if !schema.Has(d.Column(lvl)) && lvl != l.Baseline {
			l.Levels = append(l.Levels, lvl)
		}
	}
	return l
}
