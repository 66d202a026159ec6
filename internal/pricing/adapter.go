// Package pricing loads the price-prediction artifact and exposes it as a
// single Predict operation with an explicit unavailable state.
package pricing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spherical-ai/ev-assistant/internal/dataset"
	"github.com/spherical-ai/ev-assistant/internal/observability"
)

// KindLinearRegression is the only supported artifact kind.
const KindLinearRegression = "linear_regression"

// ErrModelUnavailable is returned by Predict when the artifact did not load.
var ErrModelUnavailable = errors.New("price model unavailable")

// PredictionError reports a feature row the model cannot score.
type PredictionError struct {
	Column string
	Reason string
}

func (e *PredictionError) Error() string {
	if e.Column == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Column, e.Reason)
}

// Status is the load state of the adapter.
type Status int

const (
	// StatusUnavailable means the artifact could not be loaded.
	StatusUnavailable Status = iota
	// StatusReady means Predict can be called.
	StatusReady
)

func (s Status) String() string {
	if s == StatusReady {
		return "ready"
	}
	return "unavailable"
}

// Artifact is the serialized linear model. JSON documents are accepted too.
type Artifact struct {
	Kind        string                        `yaml:"kind" json:"kind"`
	Name        string                        `yaml:"name,omitempty" json:"name,omitempty"`
	Target      string                        `yaml:"target" json:"target"`
	Intercept   float64                       `yaml:"intercept" json:"intercept"`
	Numeric     map[string]float64            `yaml:"numeric" json:"numeric"`
	Categorical map[string]map[string]float64 `yaml:"categorical" json:"categorical"`
}

// Validate checks the artifact is usable.
func (a *Artifact) Validate() error {
	if a.Kind != KindLinearRegression {
		return fmt.Errorf("unsupported model kind %q", a.Kind)
	}
	if len(a.Numeric) == 0 && len(a.Categorical) == 0 {
		return errors.New("model has no coefficients")
	}
	if !finite(a.Intercept) {
		return errors.New("intercept is not finite")
	}
	for col, c := range a.Numeric {
		if !finite(c) {
			return fmt.Errorf("coefficient for %s is not finite", col)
		}
	}
	for col, levels := range a.Categorical {
		for level, c := range levels {
			if !finite(c) {
				return fmt.Errorf("coefficient for %s=%s is not finite", col, level)
			}
		}
	}
	return nil
}

// Features returns the column names the model reads, sorted.
func (a *Artifact) Features() []string {
	names := make([]string, 0, len(a.Numeric)+len(a.Categorical))
	for col := range a.Numeric {
		names = append(names, col)
	}
	for col := range a.Categorical {
		names = append(names, col)
	}
	sort.Strings(names)
	return names
}

// Adapter wraps a loaded artifact. The zero value is unavailable.
type Adapter struct {
	artifact    *Artifact
	fingerprint string
	reason      string
}

// Load reads the artifact at path. It never fails: on any error the
// returned adapter is unavailable and records the reason.
func Load(path string, logger *observability.Logger) *Adapter {
	if logger == nil {
		logger = observability.NopLogger()
	}
	logger = logger.WithComponent("pricing")

	artifact, err := readArtifact(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Price model unavailable")
		return &Adapter{reason: err.Error()}
	}

	logger.Info().
		Str("path", path).
		Str("target", artifact.Target).
		Int("features", len(artifact.Features())).
		Msg("Price model loaded")
	return newReady(artifact)
}

// NewAdapter wraps an in-memory artifact.
func NewAdapter(a *Artifact) (*Adapter, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return newReady(a), nil
}

func newReady(a *Artifact) *Adapter {
	return &Adapter{artifact: a, fingerprint: fingerprintArtifact(a)}
}

// fingerprintArtifact hashes the canonical YAML form, so the same model
// loaded from YAML or JSON yields the same value.
func fingerprintArtifact(a *Artifact) string {
	data, err := yaml.Marshal(a)
	if err != nil {
		data = []byte(fmt.Sprintf("%+v", *a))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Unavailable returns an adapter in the unavailable state.
func Unavailable(reason string) *Adapter {
	return &Adapter{reason: reason}
}

func readArtifact(path string) (*Artifact, error) {
	if path == "" {
		return nil, errors.New("no model path configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return &a, nil
}

// Status returns the load state.
func (a *Adapter) Status() Status {
	if a == nil || a.artifact == nil {
		return StatusUnavailable
	}
	return StatusReady
}

// Available reports whether Predict can succeed.
func (a *Adapter) Available() bool {
	return a.Status() == StatusReady
}

// Reason explains why the adapter is unavailable.
func (a *Adapter) Reason() string {
	if a == nil {
		return "no model"
	}
	return a.reason
}

// Fingerprint identifies the loaded coefficients. It is empty when the
// adapter is unavailable.
func (a *Adapter) Fingerprint() string {
	if !a.Available() {
		return ""
	}
	return a.fingerprint
}

// Artifact returns the loaded artifact, or nil.
func (a *Adapter) Artifact() *Artifact {
	if a == nil {
		return nil
	}
	return a.artifact
}

// Predict scores a feature row.
func (a *Adapter) Predict(row *FeatureRow) (float64, error) {
	if !a.Available() {
		return 0, ErrModelUnavailable
	}
	m := a.artifact

	y := m.Intercept
	for _, col := range sortedKeys(m.Numeric) {
		f, ok := row.Get(col)
		if !ok {
			return 0, &PredictionError{Column: col, Reason: "missing feature"}
		}
		if !f.Value.Valid {
			return 0, &PredictionError{Column: col, Reason: "missing value"}
		}
		x := f.Value.Num
		if f.Kind != dataset.KindNumeric {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(f.Value.Str), 64)
			if err != nil {
				return 0, &PredictionError{Column: col, Reason: fmt.Sprintf("non-numeric value %q", f.Value.Str)}
			}
			x = parsed
		}
		y += m.Numeric[col] * x
	}

	for _, col := range sortedKeys(m.Categorical) {
		f, ok := row.Get(col)
		if !ok {
			return 0, &PredictionError{Column: col, Reason: "missing feature"}
		}
		if !f.Value.Valid {
			return 0, &PredictionError{Column: col, Reason: "missing value"}
		}
		y += m.Categorical[col][f.Value.Str]
	}

	if !finite(y) {
		return 0, &PredictionError{Reason: "prediction is not a finite number"}
	}
	return y, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
