// Command bikecast predicts the hourly rented-bike count for one observation
// from the command line.
//
// It loads the same artifacts as the predictor service, encodes the record
// given by flags and prints the prediction as JSON:
//
//	bikecast -manifest=artifacts/manifest.yaml \
//	  -date=2024-01-15 -hour=12 -temperature=20 -humidity=50 \
//	  -season=Winter -holiday="No Holiday" -functioning-day=Yes
//
// Exit codes:
//
//	0 - prediction printed
//	1 - artifacts could not be loaded or the model failed
//	2 - invalid flags or an invalid record
package main

import (
	"os"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
