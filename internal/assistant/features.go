package assistant

import (
	"github.com/spherical-ai/ev-assistant/internal/dataset"
	"github.com/spherical-ai/ev-assistant/internal/pricing"
)

// buildBaseline fills every feature column with its median (numeric) or
// mode (categorical). The price column and identifier columns are skipped.
func buildBaseline(t *dataset.Table, priceCol string, identifiers []string) []pricing.Feature {
	skip := map[string]bool{priceCol: true}
	for _, c := range identifiers {
		skip[dataset.NormalizeColumn(c)] = true
	}

	var features []pricing.Feature
	for _, col := range t.Columns() {
		if skip[col] {
			continue
		}
		kind, _ := t.Kind(col)

		var v dataset.Value
		if kind == dataset.KindNumeric {
			if m, ok := t.Median(col); ok {
				v = dataset.NumberValue(m)
			}
		} else if m, ok := t.Mode(col); ok {
			v = m
		}
		features = append(features, pricing.Feature{Name: col, Kind: kind, Value: v})
	}
	return features
}

// featureRow returns a fresh row from the baseline with battery and range
// substituted.
func (e *Engine) featureRow(battery, rangeKm float64) *pricing.FeatureRow {
	row := pricing.NewFeatureRow()
	for _, f := range e.baseline {
		switch f.Name {
		case dataset.ColBattery:
			row.Set(f.Name, dataset.KindNumeric, dataset.NumberValue(battery))
		case dataset.ColRange:
			row.Set(f.Name, dataset.KindNumeric, dataset.NumberValue(rangeKm))
		default:
			row.Set(f.Name, f.Kind, f.Value)
		}
	}
	return row
}
