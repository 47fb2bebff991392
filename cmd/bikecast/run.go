package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/HatiCode/bikecast/pkg/artifacts"
	"github.com/HatiCode/bikecast/pkg/features"
	"github.com/HatiCode/bikecast/pkg/inference"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var errNoArtifacts = errors.New("either -manifest or -columns is required")

// output is the JSON printed on success.
type output struct {
	Prediction int                `json:"prediction"`
	Raw        float64            `json:"raw"`
	Model      string             `json:"model"`
	Importance []inference.Ranked `json:"importance,omitempty"`
}

type options struct {
	manifest   string
	spec       artifacts.Spec
	record     features.Record
	topN       int
	timeout    time.Duration
	showVer    bool
	importance bool
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("bikecast", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	today := time.Now().Format(features.DateLayout)

	fs.StringVar(&o.manifest, "manifest", "", "Artifact manifest (YAML)")
	fs.StringVar(&o.spec.ModelKind, "model-kind", "", "Model kind: xgboost, linear, byom")
	fs.StringVar(&o.spec.ModelPath, "model", "", "Model artifact path")
	fs.StringVar(&o.spec.ScalerPath, "scaler", "", "Scaler artifact path")
	fs.StringVar(&o.spec.ColumnsPath, "columns", "", "Training column list path")
	fs.StringVar(&o.spec.ImportancesPath, "importances", "", "Feature importance artifact path")
	fs.StringVar(&o.spec.BYOMURL, "byom-url", "", "Remote model server URL (model-kind=byom)")
	fs.DurationVar(&o.timeout, "timeout", 5*time.Second, "Prediction timeout")
	fs.BoolVar(&o.importance, "importance", false, "Include the top-N feature importance ranking")
	fs.IntVar(&o.topN, "top-n", inference.DefaultTopN, "Number of ranked features with -importance")
	fs.BoolVar(&o.showVer, "version", false, "Print version and exit")

	fs.StringVar(&o.record.Date, "date", today, "Date (YYYY-MM-DD)")
	fs.IntVar(&o.record.Hour, "hour", 12, "Hour of day (0-23)")
	fs.Float64Var(&o.record.Temperature, "temperature", 20, "Temperature (°C)")
	fs.Float64Var(&o.record.Humidity, "humidity", 50, "Humidity (%)")
	fs.Float64Var(&o.record.WindSpeed, "wind-speed", 2, "Wind speed (m/s)")
	fs.Float64Var(&o.record.Visibility, "visibility", 1000, "Visibility (10m)")
	fs.Float64Var(&o.record.SolarRadiation, "solar-radiation", 1, "Solar radiation (MJ/m2)")
	fs.Float64Var(&o.record.Rainfall, "rainfall", 0, "Rainfall (mm)")
	fs.Float64Var(&o.record.Snowfall, "snowfall", 0, "Snowfall (cm)")
	fs.StringVar(&o.record.Season, "season", "Spring", "Season: Spring, Summer, Autumn, Winter")
	fs.StringVar(&o.record.Holiday, "holiday", "No Holiday", "Holiday: Holiday, No Holiday")
	fs.StringVar(&o.record.FunctioningDay, "functioning-day", "Yes", "Functioning day: Yes, No")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0, got %s", o.timeout)
	}
	return &o, nil
}

func (o *options) artifactSpec() (artifacts.Spec, error) {
	if o.manifest == "" {
		if o.spec.ColumnsPath == "" {
			return artifacts.Spec{}, errNoArtifacts
		}
		return o.spec, nil
	}
	base, err := artifacts.LoadManifest(o.manifest)
	if err != nil {
		return artifacts.Spec{}, err
	}
	return base.Merge(o.spec), nil
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if o.showVer {
		fmt.Fprintf(stdout, "bikecast %s\n", version)
		return exitOK
	}

	spec, err := o.artifactSpec()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, errNoArtifacts) {
			return exitUsage
		}
		return exitFailure
	}

	bundle, err := artifacts.Load(spec)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	vec, err := features.NewEncoder(bundle.Schema, features.DefaultDimensions).Encode(o.record)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	res, err := inference.NewAdapter(bundle.Scaler, bundle.Model).Predict(ctx, vec)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	out := output{Prediction: res.Count, Raw: res.Raw, Model: bundle.Model.Name()}
	if o.importance {
		out.Importance = inference.TopN(bundle.Schema.Columns(), bundle.Importances, o.topN)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}
