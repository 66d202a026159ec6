package pricing

import "github.com/spherical-ai/ev-assistant/internal/dataset"

// Feature is one named input of a prediction.
type Feature struct {
	Name  string
	Kind  dataset.Kind
	Value dataset.Value
}

// FeatureRow is a single synthesized record used as model input. It keeps
// insertion order and is discarded after the prediction.
type FeatureRow struct {
	features []Feature
	index    map[string]int
}

// NewFeatureRow returns an empty row.
func NewFeatureRow() *FeatureRow {
	return &FeatureRow{index: make(map[string]int)}
}

// Set adds or replaces a feature.
func (r *FeatureRow) Set(name string, kind dataset.Kind, v dataset.Value) {
	if i, ok := r.index[name]; ok {
		r.features[i] = Feature{Name: name, Kind: kind, Value: v}
		return
	}
	r.index[name] = len(r.features)
	r.features = append(r.features, Feature{Name: name, Kind: kind, Value: v})
}

// Get returns a feature by name.
func (r *FeatureRow) Get(name string) (Feature, bool) {
	i, ok := r.index[name]
	if !ok {
		return Feature{}, false
	}
	return r.features[i], true
}

// Features returns the features in insertion order.
func (r *FeatureRow) Features() []Feature {
	out := make([]Feature, len(r.features))
	copy(out, r.features)
	return out
}

// Len returns the number of features.
func (r *FeatureRow) Len() int {
	return len(r.features)
}
