package app

import (
	"fmt"

	"tbdash/domain/dataset"
	"tbdash/domain/feature"
	"tbdash/domain/mapview"
	"tbdash/internal/errors"
	"tbdash/internal/profiling"
)

// TitleFormat is the map title; %s is the feature label.
const TitleFormat = "Global TB Map for %s"

// BuildMapView turns a selected feature into a rendering request. It is a
// pure function of its inputs and never mutates the table.
//
// Rows are kept for every year in which at least one row has a value for
// the feature, including rows of those years whose own value is missing.
// When no year qualifies the no-data view is returned instead.
func BuildMapView(table *dataset.Table, catalog *feature.Catalog, featureID string) (mapview.View, error) {
	f, err := catalog.Lookup(featureID)
	if err != nil {
		return mapview.View{}, err
	}
	column, err := table.Measure(f.ID)
	if err != nil {
		return mapview.View{}, errors.Wrapf(errors.ConfigInvalid(err.Error()), "feature %s", f.ID)
	}

	validYears := make(map[int]bool)
	for i, v := range column {
		if !dataset.IsMissing(v) {
			validYears[table.Year(i)] = true
		}
	}

	rows := make([]int, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		if validYears[table.Year(i)] {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return mapview.NoDataView(f.ID), nil
	}

	filtered := table.Subset(rows)
	present, err := filtered.NonMissing(f.ID)
	if err != nil {
		return mapview.View{}, errors.Wrap(err, "collect feature values")
	}
	upper, err := profiling.Percentile(present, profiling.DisplayQuantile)
	if err != nil {
		return mapview.View{}, errors.Wrapf(err, "display range for %s", f.ID)
	}

	return mapview.View{
		Feature: f.ID,
		Request: &mapview.Request{
			Table:          filtered,
			Feature:        f.ID,
			LocationField:  dataset.ColumnISO3,
			ColorField:     f.ID,
			HoverField:     dataset.ColumnCountry,
			AnimationField: dataset.ColumnYear,
			Title:          fmt.Sprintf(TitleFormat, f.Label),
			ColorRange:     mapview.Range{Min: 0, Max: upper},
			ColorbarTitle:  f.Label,
		},
	}, nil
}
