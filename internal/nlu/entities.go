package nlu

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/spherical-ai/ev-assistant/internal/dataset"
)

// Budget unit multipliers, in rupees.
const (
	Lakh    = 100_000
	Crore   = 10_000_000
	Million = 1_000_000
)

// Numeric patterns start at a word boundary so digits glued to letters
// ("model3 range") never match, and "200kwh" cannot satisfy the range pattern.
var (
	batteryPattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(kwh|kw|battery)`)
	rangePattern   = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(km|range)`)
	budgetPattern  = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(lakhs|lakh|million|crore|cr)`)
)

// Entities holds the structured fields extracted from a message. Absent
// numeric fields are nil and absent names are empty.
type Entities struct {
	Battery *float64 `json:"battery,omitempty"`
	Range   *float64 `json:"range,omitempty"`
	Budget  *float64 `json:"budget,omitempty"`
	Brand   string   `json:"brand,omitempty"`
	Model   string   `json:"model,omitempty"`
}

// HasVehicle reports whether both brand and model were resolved.
func (e Entities) HasVehicle() bool {
	return e.Brand != "" && e.Model != ""
}

// Extractor pulls entities out of free text. It holds no per-call state.
//
// Battery, range and budget figures are read as decimals, a deliberate
// widening of the whole-number form "<integer> kwh": "62.5 kwh" yields 62.5
// and "12.5 lakh" yields 1,250,000 rather than being dropped.
type Extractor struct {
	Cutoff float64
}

// NewExtractor creates an extractor with the given fuzzy cutoff.
func NewExtractor(cutoff float64) *Extractor {
	return &Extractor{Cutoff: cutoff}
}

// Extract parses text against the given table. The catalog is rebuilt on
// every call; use ExtractWithCatalog to reuse one.
func (x *Extractor) Extract(text string, table *dataset.Table) Entities {
	return x.ExtractWithCatalog(text, NewCatalogMatcher(table, x.Cutoff))
}

// ExtractWithCatalog parses text using a prebuilt catalog matcher.
func (x *Extractor) ExtractWithCatalog(text string, catalog *CatalogMatcher) Entities {
	var e Entities

	if v, _, ok := firstMatch(batteryPattern, text); ok {
		e.Battery = &v
	}
	if v, _, ok := firstMatch(rangePattern, text); ok {
		e.Range = &v
	}
	if v, ok := ParseBudget(text); ok {
		e.Budget = &v
	}

	if catalog != nil {
		if m, ok := catalog.Best(text); ok {
			e.Brand = m.Entry.Brand
			e.Model = m.Entry.Model
		}
	}

	return e
}

// ParseBudget converts a phrase such as "15 lakh" into rupees.
func ParseBudget(text string) (float64, bool) {
	v, unit, ok := firstMatch(budgetPattern, text)
	if !ok {
		return 0, false
	}
	return math.Round(v * budgetMultiplier(unit)), true
}

func budgetMultiplier(unit string) float64 {
	switch strings.ToLower(unit) {
	case "lakh", "lakhs":
		return Lakh
	case "cr", "crore":
		return Crore
	default:
		return Million
	}
}

func firstMatch(re *regexp.Regexp, text string) (float64, string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", false
	}
	return v, m[2], true
}
