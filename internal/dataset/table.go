// Package dataset loads the EV specification table and exposes it as an
// immutable in-memory view.
package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Common errors
var (
	// ErrDataUnavailable is returned when the dataset cannot be read or is unusable.
	ErrDataUnavailable = errors.New("dataset unavailable")
	// ErrUnknownColumn is returned when a column is not part of the table.
	ErrUnknownColumn = errors.New("unknown column")
)

// Canonical column names.
const (
	ColBrand        = "brand"
	ColModel        = "model"
	ColBattery      = "battery_capacity_kwh"
	ColRange        = "range_km"
	ColPrice        = "price_inr"
	ColBodyStyle    = "body_style"
	ColChargingType = "charging_type"
)

// RequiredColumns must be present in every loaded table.
var RequiredColumns = []string{ColBrand, ColModel, ColBattery, ColRange, ColPrice}

// categoricalColumns are never inferred as numeric.
var categoricalColumns = map[string]bool{
	ColBrand:        true,
	ColModel:        true,
	ColBodyStyle:    true,
	ColChargingType: true,
}

// missingTokens are cell values treated as absent.
var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
	"#n/a": true,
}

// Kind describes how a column's cells are interpreted.
type Kind int

const (
	// KindCategorical columns hold free text.
	KindCategorical Kind = iota
	// KindNumeric columns hold floats.
	KindNumeric
)

func (k Kind) String() string {
	if k == KindNumeric {
		return "numeric"
	}
	return "categorical"
}

// Value is a single cell. Valid is false for missing cells.
type Value struct {
	Num   float64
	Str   string
	Valid bool
}

// NumberValue returns a valid numeric cell.
func NumberValue(v float64) Value {
	return Value{Num: v, Str: FormatNumber(v), Valid: true}
}

// TextValue returns a valid categorical cell.
func TextValue(s string) Value {
	return Value{Str: s, Valid: true}
}

// String renders the cell, or "" when missing.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return v.Str
}

// FormatNumber renders a float without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type column struct {
	name   string
	kind   Kind
	values []Value
}

// Table is an immutable, column-oriented view of the dataset.
type Table struct {
	columns     []*column
	index       map[string]int
	rows        int
	fingerprint string
}

// Record is one row of the table.
type Record struct {
	Columns []string
	Values  []Value
}

// Get returns the value for a column.
func (r Record) Get(name string) (Value, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return Value{}, false
}

// NewTable builds a table from a header and raw string rows. Column names
// are normalized and column kinds inferred. Errors wrap ErrDataUnavailable.
func NewTable(header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrDataUnavailable)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrDataUnavailable)
	}

	t := &Table{
		columns: make([]*column, len(header)),
		index:   make(map[string]int, len(header)),
		rows:    len(rows),
	}

	for i, h := range header {
		name := NormalizeColumn(h)
		if name == "" {
			return nil, fmt.Errorf("%w: column %d has an empty name", ErrDataUnavailable, i+1)
		}
		if _, dup := t.index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrDataUnavailable, name)
		}
		t.index[name] = i
		t.columns[i] = &column{name: name, values: make([]Value, len(rows))}
	}

	for r, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("%w: row %d has %d fields, want %d", ErrDataUnavailable, r+1, len(row), len(header))
		}
	}

	for i, col := range t.columns {
		col.kind = inferKind(col.name, rows, i)
		for r, row := range rows {
			col.values[r] = parseCell(row[i], col.kind)
		}
	}

	for _, req := range RequiredColumns {
		if !t.HasColumn(req) {
			return nil, fmt.Errorf("%w: missing required column %q", ErrDataUnavailable, req)
		}
	}
	for _, num := range []string{ColBattery, ColRange, ColPrice} {
		if t.columns[t.index[num]].kind != KindNumeric {
			return nil, fmt.Errorf("%w: column %q is not numeric", ErrDataUnavailable, num)
		}
	}

	t.fingerprint = t.computeFingerprint()
	return t, nil
}

func isMissing(raw string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(raw))]
}

func inferKind(name string, rows [][]string, idx int) Kind {
	if categoricalColumns[name] {
		return KindCategorical
	}
	for _, row := range rows {
		raw := row[idx]
		if isMissing(raw) {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err != nil {
			return KindCategorical
		}
	}
	return KindNumeric
}

func parseCell(raw string, kind Kind) Value {
	if isMissing(raw) {
		return Value{}
	}
	if kind == KindNumeric {
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(f) {
			return Value{}
		}
		return NumberValue(f)
	}
	return TextValue(raw)
}

// Columns returns the normalized column names in source order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Kind returns the kind of a column.
func (t *Table) Kind(name string) (Kind, error) {
	c, err := t.column(name)
	if err != nil {
		return KindCategorical, err
	}
	return c.kind, nil
}

// Column returns a copy of all values in a column.
func (t *Table) Column(name string) ([]Value, error) {
	c, err := t.column(name)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(c.values))
	copy(out, c.values)
	return out, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.rows
}

// Row returns the i-th record.
func (t *Table) Row(i int) Record {
	rec := Record{Columns: t.Columns(), Values: make([]Value, len(t.columns))}
	for j, c := range t.columns {
		rec.Values[j] = c.values[i]
	}
	return rec
}

// Value returns a single cell. Unknown columns yield a missing value.
func (t *Table) Value(i int, name string) Value {
	c, err := t.column(name)
	if err != nil || i < 0 || i >= t.rows {
		return Value{}
	}
	return c.values[i]
}

// Float returns a numeric cell and whether it is present.
func (t *Table) Float(i int, name string) (float64, bool) {
	v := t.Value(i, name)
	if !v.Valid {
		return 0, false
	}
	c, _ := t.column(name)
	if c.kind != KindNumeric {
		return 0, false
	}
	return v.Num, true
}

// String returns a cell rendered as text, or "" when missing.
func (t *Table) String(i int, name string) string {
	return t.Value(i, name).String()
}

// Median returns the median of the valid cells of a numeric column.
func (t *Table) Median(name string) (float64, bool) {
	c, err := t.column(name)
	if err != nil || c.kind != KindNumeric {
		return 0, false
	}
	nums := make([]float64, 0, len(c.values))
	for _, v := range c.values {
		if v.Valid {
			nums = append(nums, v.Num)
		}
	}
	if len(nums) == 0 {
		return 0, false
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 1 {
		return nums[mid], true
	}
	return (nums[mid-1] + nums[mid]) / 2, true
}

// Mode returns the most frequent valid value of a column. Ties resolve to
// the smallest value.
func (t *Table) Mode(name string) (Value, bool) {
	c, err := t.column(name)
	if err != nil {
		return Value{}, false
	}

	counts := make(map[string]int)
	first := make(map[string]Value)
	for _, v := range c.values {
		if !v.Valid {
			continue
		}
		counts[v.Str]++
		if _, ok := first[v.Str]; !ok {
			first[v.Str] = v
		}
	}
	if len(counts) == 0 {
		return Value{}, false
	}

	var best Value
	bestCount := 0
	for key, n := range counts {
		v := first[key]
		if n > bestCount || (n == bestCount && less(c.kind, v, best)) {
			best, bestCount = v, n
		}
	}
	return best, true
}

func less(kind Kind, a, b Value) bool {
	if kind == KindNumeric {
		return a.Num < b.Num
	}
	return a.Str < b.Str
}

// Fingerprint identifies the table contents. Equal tables share a fingerprint.
func (t *Table) Fingerprint() string {
	return t.fingerprint
}

func (t *Table) computeFingerprint() string {
	h := sha256.New()
	for _, c := range t.columns {
		h.Write([]byte(c.name))
		h.Write([]byte{0})
		for _, v := range c.values {
			if v.Valid {
				h.Write([]byte(v.Str))
			} else {
				h.Write([]byte{1})
			}
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (t *Table) column(name string) (*column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	return t.columns[i], nil
}
