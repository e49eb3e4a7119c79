package profiling

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"tbdash/domain/dataset"
)

// DisplayQuantile is the upper colour bound used for the map scale.
const DisplayQuantile = 0.99

// Percentile returns the q-quantile (0..1) of values using linear
// interpolation between closest ranks: position q*(n-1) in the sorted
// sample. A single value is its own quantile. The input is not modified.
func Percentile(values []float64, q float64) (float64, error) {
	if len(values) == 0 {
		return math.NaN(), stats.ErrEmptyInput
	}
	if q < 0 || q > 1 || math.IsNaN(q) {
		return math.NaN(), stats.ErrBounds
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo], nil
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, nil
}

// Summary describes the distribution of one feature across the table.
type Summary struct {
	Feature   string  `json:"feature"`
	Present   int     `json:"present"`
	Missing   int     `json:"missing"`
	Years     []int   `json:"years"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Mean      float64 `json:"mean"`
	Median    float64 `json:"median"`
	StdDev    float64 `json:"std_dev"`
	Skewness  float64 `json:"skewness"`
	P99       float64 `json:"p99"`
	Outliers  int     `json:"outliers"`
	HasValues bool    `json:"has_values"`
}

// FeatureProfiler summarizes feature columns of a loaded table
type FeatureProfiler struct {
	table *dataset.Table
}

// NewFeatureProfiler creates a profiler over table
func NewFeatureProfiler(table *dataset.Table) *FeatureProfiler {
	return &FeatureProfiler{table: table}
}

// Summarize computes the summary for one measure column. Columns with no
// present values yield a zero summary with HasValues false.
func (fp *FeatureProfiler) Summarize(feature string) (Summary, error) {
	summary := Summary{Feature: feature}

	column, err := fp.table.Measure(feature)
	if err != nil {
		return summary, err
	}

	yearSet := make(map[int]struct{})
	data := make([]float64, 0, len(column))
	for i, v := range column {
		if dataset.IsMissing(v) {
			summary.Missing++
			continue
		}
		data = append(data, v)
		yearSet[fp.table.Year(i)] = struct{}{}
	}
	summary.Present = len(data)
	if len(data) == 0 {
		return summary, nil
	}
	summary.HasValues = true

	for y := range yearSet {
		summary.Years = append(summary.Years, y)
	}
	sort.Ints(summary.Years)

	if summary.Mean, err = stats.Mean(data); err != nil {
		return summary, fmt.Errorf("mean of %s: %w", feature, err)
	}
	if summary.StdDev, err = stats.StandardDeviation(data); err != nil {
		return summary, fmt.Errorf("std dev of %s: %w", feature, err)
	}
	if summary.Min, err = stats.Min(data); err != nil {
		return summary, fmt.Errorf("min of %s: %w", feature, err)
	}
	if summary.Max, err = stats.Max(data); err != nil {
		return summary, fmt.Errorf("max of %s: %w", feature, err)
	}
	if summary.Median, err = stats.Median(data); err != nil {
		return summary, fmt.Errorf("median of %s: %w", feature, err)
	}
	if summary.P99, err = Percentile(data, DisplayQuantile); err != nil {
		return summary, fmt.Errorf("p99 of %s: %w", feature, err)
	}

	if len(data) >= 3 && summary.StdDev > 0 {
		summary.Skewness = stat.Skew(data, nil)
	}

	q25, _ := Percentile(data, 0.25)
	q75, _ := Percentile(data, 0.75)
	summary.Outliers = detectOutliers(data, q25, q75)

	return summary, nil
}

// SummarizeAll profiles every listed feature in order
func (fp *FeatureProfiler) SummarizeAll(features []string) ([]Summary, error) {
	out := make([]Summary, 0, len(features))
	for _, f := range features {
		s, err := fp.Summarize(f)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// detectOutliers identifies outliers using IQR method
func detectOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lowerBound := q25 - 1.5*iqr
	upperBound := q75 + 1.5*iqr

	outlierCount := 0
	for _, x := range data {
		if x < lowerBound || x > upperBound {
			outlierCount++
		}
	}

	return outlierCount
}
