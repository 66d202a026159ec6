package nlu

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/spherical-ai/ev-assistant/internal/dataset"
)

// DefaultCutoff is the minimum similarity for a catalog match.
const DefaultCutoff = 0.25

// CatalogEntry is one "<brand> <model>" candidate.
type CatalogEntry struct {
	Row   int
	Brand string
	Model string
	key   []string
}

// Match is the result of a catalog lookup.
type Match struct {
	Entry CatalogEntry
	Score float64
}

// CatalogMatcher resolves free text to a brand and model by approximate
// string similarity. Candidates keep table order.
type CatalogMatcher struct {
	entries []CatalogEntry
	cutoff  float64
}

// NewCatalogMatcher builds the candidate list from the table. Rows missing a
// brand or model are skipped.
func NewCatalogMatcher(table *dataset.Table, cutoff float64) *CatalogMatcher {
	if cutoff <= 0 || cutoff > 1 {
		cutoff = DefaultCutoff
	}
	m := &CatalogMatcher{cutoff: cutoff}
	if table == nil {
		return m
	}

	for i := 0; i < table.Len(); i++ {
		brand := table.String(i, dataset.ColBrand)
		model := table.String(i, dataset.ColModel)
		if strings.TrimSpace(brand) == "" || strings.TrimSpace(model) == "" {
			continue
		}
		m.entries = append(m.entries, CatalogEntry{
			Row:   i,
			Brand: brand,
			Model: model,
			key:   chars(strings.ToLower(brand + " " + model)),
		})
	}
	return m
}

// Len returns the number of candidates.
func (m *CatalogMatcher) Len() int {
	return len(m.entries)
}

// Best returns the highest-scoring candidate at or above the cutoff. Ties
// resolve to the earliest candidate.
func (m *CatalogMatcher) Best(text string) (Match, bool) {
	if len(m.entries) == 0 {
		return Match{}, false
	}

	seq := difflib.NewMatcher(nil, chars(strings.ToLower(text)))

	var best Match
	found := false
	for _, e := range m.entries {
		seq.SetSeq1(e.key)
		if seq.RealQuickRatio() < m.cutoff || seq.QuickRatio() < m.cutoff {
			continue
		}
		score := seq.Ratio()
		if score < m.cutoff {
			continue
		}
		if !found || score > best.Score {
			best = Match{Entry: e, Score: score}
			found = true
		}
	}
	return best, found
}

func chars(s string) []string {
	return strings.Split(s, "")
}
