package router

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/HatiCode/bikecast/pkg/features"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// PredictRequest is the JSON API request body. Numeric ranges follow the
// prediction form's widgets. Hour, date and categorical levels are checked
// by the encoder, so unseen categories still predict.
type PredictRequest struct {
	Date           string   `json:"date" validate:"required"`
	Hour           *int     `json:"hour" validate:"required"`
	Temperature    *float64 `json:"temperature" validate:"required,gte=-20,lte=40"`
	Humidity       *float64 `json:"humidity" validate:"required,gte=0,lte=100"`
	WindSpeed      *float64 `json:"wind_speed" validate:"required,gte=0,lte=20"`
	Visibility     *float64 `json:"visibility" validate:"required,gte=0,lte=2000"`
	SolarRadiation *float64 `json:"solar_radiation" validate:"required,gte=0,lte=5"`
	Rainfall       *float64 `json:"rainfall" validate:"required,gte=0,lte=100"`
	Snowfall       *float64 `json:"snowfall" validate:"required,gte=0,lte=100"`
	Season         string   `json:"season" validate:"required"`
	Holiday        string   `json:"holiday" validate:"required"`
	FunctioningDay string   `json:"functioning_day" validate:"required"`
}

// Record validates the request and converts it to a features.Record.
func (p PredictRequest) Record() (features.Record, error) {
	if err := validate.Struct(p); err != nil {
		return features.Record{}, err
	}

	return features.Record{
		Date:           p.Date,
		Hour:           *p.Hour,
		Temperature:    *p.Temperature,
		Humidity:       *p.Humidity,
		WindSpeed:      *p.WindSpeed,
		Visibility:     *p.Visibility,
		SolarRadiation: *p.SolarRadiation,
		Rainfall:       *p.Rainfall,
		Snowfall:       *p.Snowfall,
		Season:         p.Season,
		Holiday:        p.Holiday,
		FunctioningDay: p.FunctioningDay,
	}, nil
}

// validationMessage flattens validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param()))
		case "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}
