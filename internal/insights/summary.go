// Package insights computes the dashboard and analytics figures over the
// vehicle table.
package insights

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spherical-ai/ev-assistant/internal/dataset"
)

// BrandCount is the number of models offered by a brand.
type BrandCount struct {
	Brand string `json:"brand"`
	Count int    `json:"count"`
}

// BrandRange is the average range of a brand's models.
type BrandRange struct {
	Brand      string  `json:"brand"`
	AvgRangeKm float64 `json:"avgRangeKm"`
}

// Bucket is one histogram bin, [Low, High). The last bin includes High.
type Bucket struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Point is one vehicle in the battery vs range scatter.
type Point struct {
	Brand      string  `json:"brand"`
	Model      string  `json:"model"`
	BatteryKWh float64 `json:"batteryKwh"`
	RangeKm    float64 `json:"rangeKm"`
}

// Summary holds every dashboard figure.
type Summary struct {
	TotalModels      int          `json:"totalModels"`
	AvgBatteryKWh    float64      `json:"avgBatteryKwh"`
	AvgRangeKm       float64      `json:"avgRangeKm"`
	ModelAvailable   bool         `json:"modelAvailable"`
	TopBrands        []BrandCount `json:"topBrands"`
	BrandAvgRange    []BrandRange `json:"brandAvgRange"`
	BatteryHistogram []Bucket     `json:"batteryHistogram"`
	Points           []Point      `json:"points,omitempty"`
}

// Options tunes Compute.
type Options struct {
	Bins          int
	TopBrands     int
	IncludePoints bool
}

// DefaultOptions returns the dashboard defaults.
func DefaultOptions() Options {
	return Options{Bins: 10, TopBrands: 10}
}

// Compute derives the summary from the table. Missing cells are skipped.
func Compute(t *dataset.Table, opts Options) Summary {
	if opts.Bins <= 0 {
		opts.Bins = 10
	}

	s := Summary{TotalModels: t.Len()}
	s.AvgBatteryKWh = mean(t, dataset.ColBattery)
	s.AvgRangeKm = mean(t, dataset.ColRange)
	s.TopBrands = brandCounts(t, opts.TopBrands)
	s.BrandAvgRange = brandAvgRange(t)
	s.BatteryHistogram = histogram(t, dataset.ColBattery, opts.Bins)
	if opts.IncludePoints {
		s.Points = points(t)
	}
	return s
}

// BatteryLabel renders the average battery as shown on the dashboard.
func (s Summary) BatteryLabel() string {
	return fmt.Sprintf("%.1f kWh", s.AvgBatteryKWh)
}

// RangeLabel renders the average range as shown on the dashboard.
func (s Summary) RangeLabel() string {
	return fmt.Sprintf("%.0f km", s.AvgRangeKm)
}

func mean(t *dataset.Table, col string) float64 {
	sum, n := 0.0, 0
	for i := 0; i < t.Len(); i++ {
		if v, ok := t.Float(i, col); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func brand(t *dataset.Table, i int) (string, bool) {
	b := t.String(i, dataset.ColBrand)
	return b, strings.TrimSpace(b) != ""
}

func brandCounts(t *dataset.Table, limit int) []BrandCount {
	counts := make(map[string]int)
	for i := 0; i < t.Len(); i++ {
		if b, ok := brand(t, i); ok {
			counts[b]++
		}
	}

	out := make([]BrandCount, 0, len(counts))
	for b, n := range counts {
		out = append(out, BrandCount{Brand: b, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Brand < out[j].Brand
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func brandAvgRange(t *dataset.Table) []BrandRange {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i := 0; i < t.Len(); i++ {
		b, ok := brand(t, i)
		if !ok {
			continue
		}
		if r, ok := t.Float(i, dataset.ColRange); ok {
			sums[b] += r
			counts[b]++
		}
	}

	out := make([]BrandRange, 0, len(counts))
	for b, n := range counts {
		out = append(out, BrandRange{Brand: b, AvgRangeKm: sums[b] / float64(n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Brand < out[j].Brand })
	return out
}

func histogram(t *dataset.Table, col string, bins int) []Bucket {
	var vals []float64
	for i := 0; i < t.Len(); i++ {
		if v, ok := t.Float(i, col); ok {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil
	}

	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return []Bucket{{Low: lo, High: hi, Count: len(vals)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bucket, bins)
	for b := range out {
		out[b] = Bucket{Low: lo + float64(b)*width, High: lo + float64(b+1)*width}
	}
	out[bins-1].High = hi

	for _, v := range vals {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out
}

func points(t *dataset.Table) []Point {
	var out []Point
	for i := 0; i < t.Len(); i++ {
		b, ok := brand(t, i)
		if !ok {
			continue
		}
		battery, okB := t.Float(i, dataset.ColBattery)
		rng, okR := t.Float(i, dataset.ColRange)
		if !okB || !okR {
			continue
		}
		out = append(out, Point{Brand: b, Model: t.String(i, dataset.ColModel), BatteryKWh: battery, RangeKm: rng})
	}
	return out
}
