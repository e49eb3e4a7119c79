package feature

import (
	"fmt"
	"strings"

	"tbdash/domain/dataset"
	"tbdash/internal/errors"
)

// Feature is one selectable TB statistic: a dataset column and its label.
type Feature struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Option is a dropdown entry
type Option struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Selected bool   `json:"selected,omitempty"`
}

// Catalog is the fixed, ordered list of selectable features.
type Catalog struct {
	features []Feature
	index    map[string]int
}

// DefaultFeatureID is the feature shown before the user picks one.
const DefaultFeatureID = "c_newinc"

// NewCatalog builds a catalog, rejecting empty or duplicate identifiers.
func NewCatalog(features ...Feature) (*Catalog, error) {
	if len(features) == 0 {
		return nil, errors.ConfigInvalid("feature catalog is empty")
	}
	c := &Catalog{index: make(map[string]int, len(features))}
	for _, f := range features {
		id := strings.TrimSpace(f.ID)
		if id == "" {
			return nil, errors.ConfigInvalid("feature catalog entry has an empty identifier")
		}
		if _, dup := c.index[id]; dup {
			return nil, errors.ConfigInvalid(fmt.Sprintf("feature %q is listed twice", id))
		}
		label := f.Label
		if strings.TrimSpace(label) == "" {
			label = id
		}
		c.index[id] = len(c.features)
		c.features = append(c.features, Feature{ID: id, Label: label})
	}
	return c, nil
}

// DefaultCatalog returns the WHO feature set shown on the dashboard.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		Feature{"c_newinc", "New Cases Reported"},
		Feature{"c_per_100k", "Cases per 100k Population"},
		Feature{"new_ep", "New Extrapulmonary Cases"},
		Feature{"ret_rel", "Relapse Cases"},
		Feature{"newrel_hivpos", "New HIV+ TB Cases"},
		Feature{"c_new_female", "New Female Cases"},
		Feature{"c_new_male", "New Male Cases"},
		Feature{"c_new_un", "New Cases Unknown Sex"},
		Feature{"c_new_female_0_24", "New Female Cases (0–24)"},
		Feature{"c_new_female_25_44", "New Female Cases (25–44)"},
		Feature{"c_new_female_45_64", "New Female Cases (45–64)"},
		Feature{"c_new_female_65", "New Female Cases (65+)"},
		Feature{"c_new_male_0_24", "New Male Cases (0–24)"},
		Feature{"c_new_male_25_44", "New Male Cases (25–44)"},
		Feature{"c_new_male_45_64", "New Male Cases (45–64)"},
		Feature{"c_new_male_65", "New Male Cases (65+)"},
		Feature{"c_new_unknown_0_24", "New Cases Unknown Sex (0–24)"},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Features returns the entries in display order.
func (c *Catalog) Features() []Feature {
	return append([]Feature(nil), c.features...)
}

// IDs returns the identifiers in display order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.features))
	for i, f := range c.features {
		ids[i] = f.ID
	}
	return ids
}

// Len is the number of entries.
func (c *Catalog) Len() int { return len(c.features) }

// Contains reports whether id is selectable.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Lookup returns the entry for id or an UNKNOWN_FEATURE error.
func (c *Catalog) Lookup(id string) (Feature, error) {
	i, ok := c.index[id]
	if !ok {
		return Feature{}, errors.UnknownFeature(id)
	}
	return c.features[i], nil
}

// Label returns the human readable label for id.
func (c *Catalog) Label(id string) (string, error) {
	f, err := c.Lookup(id)
	if err != nil {
		return "", err
	}
	return f.Label, nil
}

// Options renders the dropdown entries with selected marked.
func (c *Catalog) Options(selected string) []Option {
	opts := make([]Option, len(c.features))
	for i, f := range c.features {
		opts[i] = Option{Label: f.Label, Value: f.ID, Selected: f.ID == selected}
	}
	return opts
}

// Validate checks that every catalog identifier is a numeric column of
// the table. A failure is a configuration defect and must stop startup.
func (c *Catalog) Validate(table *dataset.Table) error {
	var missing []string
	for _, f := range c.features {
		if !table.HasMeasure(f.ID) {
			missing = append(missing, f.ID)
		}
	}
	if len(missing) > 0 {
		return errors.ConfigInvalid(fmt.Sprintf("feature catalog references columns absent from %s: %s",
			table.Source(), strings.Join(missing, ", ")))
	}
	return nil
}
