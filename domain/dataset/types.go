package dataset

import (
	"fmt"
	"math"
	"sort"
)

// Key columns every dataset carries next to its numeric measures.
const (
	ColumnCountry = "country"
	ColumnISO3    = "iso3"
	ColumnYear    = "year"
)

// KeyColumns lists the non-measure columns in canonical order.
var KeyColumns = []string{ColumnCountry, ColumnISO3, ColumnYear}

// Missing is the in-memory marker for an absent measure cell.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether a measure cell is absent.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Table is the aggregated WHO TB dataset, one row per (country, year).
// It is column oriented and never mutated once built; accessors hand out
// copies so callers cannot alter shared state.
type Table struct {
	countries []string
	iso3      []string
	years     []int
	measures  map[string][]float64
	order     []string
	source    string
}

// Builder accumulates rows while a source is being read.
type Builder struct {
	table *Table
}

// NewBuilder prepares a table with the given measure columns, in order.
func NewBuilder(measures []string) (*Builder, error) {
	t := &Table{measures: make(map[string][]float64, len(measures))}
	for _, name := range measures {
		if isKeyColumn(name) {
			return nil, fmt.Errorf("measure %q collides with a key column", name)
		}
		if _, dup := t.measures[name]; dup {
			return nil, fmt.Errorf("duplicate measure column %q", name)
		}
		t.measures[name] = nil
		t.order = append(t.order, name)
	}
	return &Builder{table: t}, nil
}

// Add appends one row. values are aligned with the builder's measures;
// use Missing() for absent cells.
func (b *Builder) Add(country, iso3 string, year int, values []float64) error {
	if len(values) != len(b.table.order) {
		return fmt.Errorf("row %s/%d has %d values, want %d", iso3, year, len(values), len(b.table.order))
	}
	t := b.table
	t.countries = append(t.countries, country)
	t.iso3 = append(t.iso3, iso3)
	t.years = append(t.years, year)
	for i, name := range t.order {
		t.measures[name] = append(t.measures[name], values[i])
	}
	return nil
}

// Build seals the table. The builder must not be used afterwards.
func (b *Builder) Build(source string) *Table {
	t := b.table
	t.source = source
	b.table = nil
	return t
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.years) }

// Source describes where the table was loaded from.
func (t *Table) Source() string { return t.source }

// MeasureNames returns the numeric columns in load order.
func (t *Table) MeasureNames() []string {
	return append([]string(nil), t.order...)
}

// Columns returns key columns followed by measure columns.
func (t *Table) Columns() []string {
	cols := append([]string(nil), KeyColumns...)
	return append(cols, t.order...)
}

// HasMeasure reports whether name is a numeric column.
func (t *Table) HasMeasure(name string) bool {
	_, ok := t.measures[name]
	return ok
}

// Country is the country name at row i.
func (t *Table) Country(i int) string { return t.countries[i] }

// ISO3 is the ISO 3166-1 alpha-3 code at row i.
func (t *Table) ISO3(i int) string { return t.iso3[i] }

// Year is the year at row i.
func (t *Table) Year(i int) int { return t.years[i] }

// Value returns the measure cell at row i and whether it is present.
func (t *Table) Value(measure string, i int) (float64, bool) {
	col, ok := t.measures[measure]
	if !ok || i < 0 || i >= len(col) {
		return 0, false
	}
	v := col[i]
	return v, !IsMissing(v)
}

// Measure returns a copy of a numeric column, NaN marking missing cells.
func (t *Table) Measure(name string) ([]float64, error) {
	col, ok := t.measures[name]
	if !ok {
		return nil, fmt.Errorf("unknown measure column %q", name)
	}
	return append([]float64(nil), col...), nil
}

// NonMissing returns the present values of a measure in row order.
func (t *Table) NonMissing(name string) ([]float64, error) {
	col, ok := t.measures[name]
	if !ok {
		return nil, fmt.Errorf("unknown measure column %q", name)
	}
	out := make([]float64, 0, len(col))
	for _, v := range col {
		if !IsMissing(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Text returns a copy of a string key column (country or iso3).
func (t *Table) Text(field string) ([]string, error) {
	switch field {
	case ColumnCountry:
		return append([]string(nil), t.countries...), nil
	case ColumnISO3:
		return append([]string(nil), t.iso3...), nil
	}
	return nil, fmt.Errorf("%q is not a text column", field)
}

// Ints returns a copy of an integer key column (year).
func (t *Table) Ints(field string) ([]int, error) {
	if field != ColumnYear {
		return nil, fmt.Errorf("%q is not an integer column", field)
	}
	return append([]int(nil), t.years...), nil
}

// Years returns the distinct years in ascending order.
func (t *Table) Years() []int {
	seen := make(map[int]struct{})
	var out []int
	for _, y := range t.years {
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// Subset returns a new table holding the given rows, in the given order.
func (t *Table) Subset(rows []int) *Table {
	sub := &Table{
		countries: make([]string, 0, len(rows)),
		iso3:      make([]string, 0, len(rows)),
		years:     make([]int, 0, len(rows)),
		measures:  make(map[string][]float64, len(t.order)),
		order:     append([]string(nil), t.order...),
		source:    t.source,
	}
	for _, name := range t.order {
		sub.measures[name] = make([]float64, 0, len(rows))
	}
	for _, i := range rows {
		sub.countries = append(sub.countries, t.countries[i])
		sub.iso3 = append(sub.iso3, t.iso3[i])
		sub.years = append(sub.years, t.years[i])
		for _, name := range t.order {
			sub.measures[name] = append(sub.measures[name], t.measures[name][i])
		}
	}
	return sub
}

func isKeyColumn(name string) bool {
	for _, k := range KeyColumns {
		if k == name {
			return true
		}
	}
	return false
}
