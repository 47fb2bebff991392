package router

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HatiCode/bikecast/pkg/features"
	"github.com/HatiCode/bikecast/pkg/inference"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Gauge scale of the result page.
const (
	GaugeMax       = 3000
	GaugeThreshold = 2500
)

var gaugeBands = [][2]int{{0, 1000}, {1000, 2000}}

// Form widget defaults.
var defaultForm = formValues{
	Hour:           "12",
	Temperature:    "20",
	Humidity:       "50",
	WindSpeed:      "2",
	Visibility:     "1000",
	SolarRadiation: "1",
	Rainfall:       "0",
	Snowfall:       "0",
	Season:         "Spring",
	Holiday:        "No Holiday",
	FunctioningDay: "Yes",
}

// formValues holds the raw form fields so a page can be re-rendered with
// what the user typed.
type formValues struct {
	Date           string
	Hour           string
	Temperature    string
	Humidity       string
	WindSpeed      string
	Visibility     string
	SolarRadiation string
	Rainfall       string
	Snowfall       string
	Season         string
	Holiday        string
	FunctioningDay string
}

type pageView struct {
	Form            formValues
	Hours           []int
	Seasons         []string
	Holidays        []string
	FunctioningDays []string
	Error           string
	Result          *resultView
	Importance      []barView
}

type resultView struct {
	Count  int
	Cached bool
	Gauge  gaugeView
}

type gaugeView struct {
	Max       int
	Value     float64 // percent of the axis, clamped to 100
	Threshold float64
	Bands     []bandView
	Ticks     []tickView
}

type bandView struct {
	Start float64
	Width float64
	Class string
}

type tickView struct {
	Pos   float64
	Label int
}

type barView struct {
	Column string
	Score  string
	Width  float64
}

func newPage(form formValues, ranking []inference.Ranked) pageView {
	hours := make([]int, features.MaxHour-features.MinHour+1)
	for i := range hours {
		hours[i] = features.MinHour + i
	}

	return pageView{
		Form:            form,
		Hours:           hours,
		Seasons:         features.Seasons,
		Holidays:        features.HolidayLevels,
		FunctioningDays: features.FunctioningDays,
		Importance:      bars(ranking),
	}
}

// handleForm returns a handler for GET /.
func handleForm(svc Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := defaultForm
		form.Date = time.Now().Format(features.DateLayout)
		render(w, http.StatusOK, newPage(form, svc.Importance()), logger)
	}
}

// handleFormSubmit returns a handler for POST /.
func handleFormSubmit(svc Service, timeout time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
		if err := r.ParseForm(); err != nil {
			page := newPage(defaultForm, svc.Importance())
			page.Error = "could not read form"
			render(w, http.StatusBadRequest, page, logger)
			return
		}

		form := readForm(r)
		page := newPage(form, svc.Importance())

		req, err := form.request()
		if err != nil {
			page.Error = err.Error()
			render(w, http.StatusBadRequest, page, logger)
			return
		}
		record, err := req.Record()
		if err != nil {
			page.Error = validationMessage(err)
			render(w, http.StatusBadRequest, page, logger)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		res, cached, err := svc.Predict(ctx, record)
		if err != nil {
			status, msg := classify(err)
			if status == http.StatusInternalServerError {
				logger.Error("prediction failed", "error", err)
			}
			page.Error = msg
			render(w, status, page, logger)
			return
		}

		page.Result = &resultView{Count: res.Count, Cached: cached, Gauge: gauge(res.Count)}
		render(w, http.StatusOK, page, logger)
	}
}

func render(w http.ResponseWriter, status int, page pageView, logger *slog.Logger) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTemplate.Execute(w, page); err != nil {
		logger.Error("failed to render page", "error", err)
	}
}

func readForm(r *http.Request) formValues {
	get := func(k string) string { return strings.TrimSpace(r.PostFormValue(k)) }
	return formValues{
		Date:           get("date"),
		Hour:           get("hour"),
		Temperature:    get("temperature"),
		Humidity:       get("humidity"),
		WindSpeed:      get("wind_speed"),
		Visibility:     get("visibility"),
		SolarRadiation: get("solar_radiation"),
		Rainfall:       get("rainfall"),
		Snowfall:       get("snowfall"),
		Season:         get("season"),
		Holiday:        get("holiday"),
		FunctioningDay: get("functioning_day"),
	}
}

// request converts the form into a PredictRequest. Empty fields stay nil so
// validation reports them as required.
func (f formValues) request() (PredictRequest, error) {
	req := PredictRequest{
		Date:           f.Date,
		Season:         f.Season,
		Holiday:        f.Holiday,
		FunctioningDay: f.FunctioningDay,
	}

	if f.Hour != "" {
		h, err := strconv.Atoi(f.Hour)
		if err != nil {
			return req, fmt.Errorf("hour: %q is not a whole number", f.Hour)
		}
		req.Hour = &h
	}

	numbers := []struct {
		name string
		raw  string
		dst  **float64
	}{
		{"temperature", f.Temperature, &req.Temperature},
		{"humidity", f.Humidity, &req.Humidity},
		{"wind_speed", f.WindSpeed, &req.WindSpeed},
		{"visibility", f.Visibility, &req.Visibility},
		{"solar_radiation", f.SolarRadiation, &req.SolarRadiation},
		{"rainfall", f.Rainfall, &req.Rainfall},
		{"snowfall", f.Snowfall, &req.Snowfall},
	}
	for _, n := range numbers {
		if n.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(n.raw, 64)
		if err != nil {
			return req, fmt.Errorf("%s: %q is not a number", n.name, n.raw)
		}
		*n.dst = &v
	}

	return req, nil
}

func percent(v int) float64 {
	p := float64(v) / GaugeMax * 100
	return min(max(p, 0), 100)
}

func gauge(count int) gaugeView {
	g := gaugeView{
		Max:       GaugeMax,
		Value:     percent(count),
		Threshold: percent(GaugeThreshold),
	}
	for i, b := range gaugeBands {
		g.Bands = append(g.Bands, bandView{
			Start: percent(b[0]),
			Width: percent(b[1]) - percent(b[0]),
			Class: fmt.Sprintf("band-%d", i),
		})
	}
	for v := 0; v <= GaugeMax; v += 500 {
		g.Ticks = append(g.Ticks, tickView{Pos: percent(v), Label: v})
	}
	return g
}

func bars(ranking []inference.Ranked) []barView {
	if len(ranking) == 0 {
		return nil
	}
	top := ranking[0].Score
	out := make([]barView, len(ranking))
	for i, r := range ranking {
		width := 0.0
		if top > 0 {
			width = r.Score / top * 100
		}
		out[i] = barView{Column: r.Column, Score: strconv.FormatFloat(r.Score, 'f', 4, 64), Width: width}
	}
	return out
}
