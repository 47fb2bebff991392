// Package features turns a raw bike-demand observation into the numeric
// feature vector the trained regression model expects.
//
// The encoder reproduces the column layout used at training time:
//
//	Record → calendar derivation → drop-first one-hot → projection onto Schema
//
// The Schema loaded from the columns artifact is authoritative. A single
// record only ever observes one level per categorical dimension, so the
// encoder never tries to rebuild the training column set on its own; it
// emits the columns it can and projects them onto the schema, filling
// missing columns with zero and discarding columns the schema does not know.
package features

import (
	"strconv"
	"strings"
)

// DateLayout is the accepted format of Record.Date.
const DateLayout = "2006-01-02"

// Record is one raw observation as collected from the form, API or CLI.
type Record struct {
	Date           string  `json:"date"`
	Hour           int     `json:"hour"`
	Temperature    float64 `json:"temperature"`
	Humidity       float64 `json:"humidity"`
	WindSpeed      float64 `json:"wind_speed"`
	Visibility     float64 `json:"visibility"`
	SolarRadiation float64 `json:"solar_radiation"`
	Rainfall       float64 `json:"rainfall"`
	Snowfall       float64 `json:"snowfall"`
	Season         string  `json:"season"`
	Holiday        string  `json:"holiday"`
	FunctioningDay string  `json:"functioning_day"`
}

// Key returns a canonical string for the record. Two records with the same
// key always encode to the same vector. String fields are quoted, so a
// separator inside a categorical value cannot make two records collide.
func (r Record) Key() string {
	parts := []string{
		strconv.Quote(r.Date),
		strconv.Itoa(r.Hour),
		formatFloat(r.Temperature),
		formatFloat(r.Humidity),
		formatFloat(r.WindSpeed),
		formatFloat(r.Visibility),
		formatFloat(r.SolarRadiation),
		formatFloat(r.Rainfall),
		formatFloat(r.Snowfall),
		strconv.Quote(r.Season),
		strconv.Quote(r.Holiday),
		strconv.Quote(r.FunctioningDay),
	}
	return strings.Join(parts, "|")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Vector is an encoded feature vector aligned to a Schema.
type Vector []float64
