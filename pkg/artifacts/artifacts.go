// Package artifacts loads the fitted preprocessing and model artifacts the
// predictor serves: the training column schema, the feature scaler, the
// regression model and, optionally, precomputed feature importances.
//
// Artifacts are plain JSON (or text for the column list) so they can be
// produced by any training pipeline. Locations come either from individual
// settings or from a YAML manifest:
//
//	model_kind: xgboost
//	model: model.json
//	scaler: scaler.json
//	columns: columns.json
//	importances: importances.json
//
// Relative paths in a manifest resolve against the manifest's directory.
package artifacts

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HatiCode/bikecast/pkg/features"
	"github.com/HatiCode/bikecast/pkg/httpx"
	"github.com/HatiCode/bikecast/pkg/models"
	"github.com/HatiCode/bikecast/pkg/scaling"
	"github.com/HatiCode/bikecast/pkg/tls"
)

// Artifact names used in ArtifactLoadError.
const (
	ArtifactManifest    = "manifest"
	ArtifactColumns     = "columns"
	ArtifactScaler      = "scaler"
	ArtifactModel       = "model"
	ArtifactImportances = "importances"
)

// DefaultBYOMTimeout bounds each call to a remote model.
const DefaultBYOMTimeout = 5 * time.Second

// ArtifactLoadError reports a missing or corrupt artifact. It is fatal at
// startup.
type ArtifactLoadError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *ArtifactLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load %s: %v", e.Artifact, e.Err)
	}
	return fmt.Sprintf("load %s from %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error { return e.Err }

// Spec locates the artifacts to load.
type Spec struct {
	ModelKind       string        `yaml:"model_kind"`
	ModelPath       string        `yaml:"model"`
	ScalerPath      string        `yaml:"scaler"`
	ColumnsPath     string        `yaml:"columns"`
	ImportancesPath string        `yaml:"importances"`
	BYOMURL         string        `yaml:"byom_url"`
	BYOMTimeout     time.Duration `yaml:"byom_timeout"`
	BYOMTLS         tls.Config    `yaml:"byom_tls"`
}

// Merge returns s with every non-zero field of over applied on top.
func (s Spec) Merge(over Spec) Spec {
	if over.ModelKind != "" {
		s.ModelKind = over.ModelKind
	}
	if over.ModelPath != "" {
		s.ModelPath = over.ModelPath
	}
	if over.ScalerPath != "" {
		s.ScalerPath = over.ScalerPath
	}
	if over.ColumnsPath != "" {
		s.ColumnsPath = over.ColumnsPath
	}
	if over.ImportancesPath != "" {
		s.ImportancesPath = over.ImportancesPath
	}
	if over.BYOMURL != "" {
		s.BYOMURL = over.BYOMURL
	}
	if over.BYOMTimeout != 0 {
		s.BYOMTimeout = over.BYOMTimeout
	}
	if over.BYOMTLS.Enabled {
		s.BYOMTLS = over.BYOMTLS
	}
	return s
}

// LoadManifest reads a YAML manifest. Relative artifact paths are made
// relative to the manifest's directory.
func LoadManifest(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, &ArtifactLoadError{Artifact: ArtifactManifest, Path: path, Err: err}
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return Spec{}, &ArtifactLoadError{Artifact: ArtifactManifest, Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	for _, p := range []*string{
		&spec.ModelPath, &spec.ScalerPath, &spec.ColumnsPath, &spec.ImportancesPath,
		&spec.BYOMTLS.CertFile, &spec.BYOMTLS.KeyFile, &spec.BYOMTLS.CAFile,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}

	return spec, nil
}

// Bundle is the loaded, read-only set of artifacts.
type Bundle struct {
	Schema features.Schema
	Scaler scaling.Scaler
	Model  models.Model

	// Importances is aligned with Schema columns. Nil when neither an
	// importance artifact nor a scoring model is available.
	Importances []float64

	// Fingerprint identifies the loaded columns, scaler and model. It
	// changes whenever any of them does.
	Fingerprint string
}

// Load reads every artifact named by spec. An empty ScalerPath loads an
// identity scaler. An empty ModelKind defaults to xgboost.
func Load(spec Spec) (*Bundle, error) {
	if spec.ColumnsPath == "" {
		return nil, &ArtifactLoadError{Artifact: ArtifactColumns, Err: fmt.Errorf("no path configured")}
	}
	columns, err := LoadColumns(spec.ColumnsPath)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: ArtifactColumns, Path: spec.ColumnsPath, Err: err}
	}
	schema, err := features.NewSchema(columns)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: ArtifactColumns, Path: spec.ColumnsPath, Err: err}
	}

	h := sha256.New()
	for _, c := range columns {
		fmt.Fprintf(h, "%q\n", c)
	}

	scaler, err := loadScaler(h, spec.ScalerPath, schema.Width())
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: ArtifactScaler, Path: spec.ScalerPath, Err: err}
	}

	model, err := loadModel(h, spec, columns)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: ArtifactModel, Path: spec.ModelPath, Err: err}
	}

	b := &Bundle{
		Schema:      schema,
		Scaler:      scaler,
		Model:       model,
		Fingerprint: hex.EncodeToString(h.Sum(nil))[:16],
	}

	if spec.ImportancesPath != "" {
		imp, err := LoadImportances(spec.ImportancesPath, columns)
		if err != nil {
			return nil, &ArtifactLoadError{Artifact: ArtifactImportances, Path: spec.ImportancesPath, Err: err}
		}
		b.Importances = imp
	} else if p, ok := model.(models.ImportanceProvider); ok {
		b.Importances = p.FeatureImportances()
	}

	return b, nil
}

// loadScaler and loadModel write what they load to h.
func loadScaler(h io.Writer, path string, width int) (scaling.Scaler, error) {
	if path == "" {
		fmt.Fprintf(h, "scaler:identity:%d\n", width)
		return scaling.NewIdentity(width), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(h, "scaler:%d\n", len(data))
	h.Write(data)
	return scaling.Parse(data)
}

func loadModel(h io.Writer, spec Spec, columns []string) (models.Model, error) {
	kind := spec.ModelKind
	if kind == "" {
		kind = "xgboost"
	}
	fmt.Fprintf(h, "model:%s\n", kind)

	if kind == "byom" {
		if spec.BYOMURL == "" {
			return nil, fmt.Errorf("byom model needs a url")
		}
		timeout := spec.BYOMTimeout
		if timeout <= 0 {
			timeout = DefaultBYOMTimeout
		}
		client, err := httpx.NewClient(spec.BYOMTLS, timeout)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(h, "%s\n", spec.BYOMURL)
		return models.NewBYOMModel(spec.BYOMURL, columns, client), nil
	}

	if spec.ModelPath == "" {
		return nil, fmt.Errorf("no path configured")
	}
	data, err := os.ReadFile(spec.ModelPath)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return models.Parse(kind, data, columns)
}

// LoadColumns reads the training column list. Files ending in .json hold a
// JSON array of strings; anything else holds one column per line, with blank
// lines and lines starting with # ignored.
func LoadColumns(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseColumns(data, strings.EqualFold(filepath.Ext(path), ".json"))
}

// ParseColumns decodes a column list, as JSON when asJSON is set and as one
// name per line otherwise.
func ParseColumns(data []byte, asJSON bool) ([]string, error) {
	if asJSON {
		var cols []string
		if err := json.Unmarshal(data, &cols); err != nil {
			return nil, fmt.Errorf("decode columns: %w", err)
		}
		return cols, nil
	}

	var cols []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols = append(cols, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return cols, nil
}

// LoadImportances reads feature importances aligned with columns.
func LoadImportances(path string, columns []string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseImportances(data, columns)
}

// ParseImportances accepts either a JSON array aligned with columns or an
// object mapping column names to scores. Columns absent from the object score
// zero; names that are not training columns are rejected.
func ParseImportances(data []byte, columns []string) ([]float64, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var scores []float64
		if err := json.Unmarshal(trimmed, &scores); err != nil {
			return nil, fmt.Errorf("decode importances: %w", err)
		}
		if len(scores) != len(columns) {
			return nil, fmt.Errorf("importances has %d scores for %d columns", len(scores), len(columns))
		}
		return scores, nil
	}

	var byName map[string]float64
	if err := json.Unmarshal(trimmed, &byName); err != nil {
		return nil, fmt.Errorf("decode importances: %w", err)
	}

	schema, err := features.NewSchema(columns)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(columns))
	for name, v := range byName {
		i, ok := schema.Index(name)
		if !ok {
			return nil, fmt.Errorf("importances names unknown column %q", name)
		}
		scores[i] = v
	}
	return scores, nil
}
