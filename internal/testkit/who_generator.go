package testkit

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"tbdash/domain/dataset"
	"tbdash/domain/feature"
)

// Country is one row key of the generated dataset
type Country struct {
	Name       string
	ISO3       string
	Population float64
}

// WHOGeneratorConfig configures the synthetic WHO TB dataset
type WHOGeneratorConfig struct {
	Countries   []Country `json:"countries"`
	StartYear   int       `json:"start_year"`
	EndYear     int       `json:"end_year"`
	Features    []string  `json:"features"`
	MissingRate float64   `json:"missing_rate"`
	// EmptyYears are years in which every feature is missing for every
	// country, which exercises the valid-year filter.
	EmptyYears []int `json:"empty_years"`
	Seed       int64 `json:"seed"`
}

// DefaultWHOConfig returns sensible defaults for dataset generation
func DefaultWHOConfig() WHOGeneratorConfig {
	return WHOGeneratorConfig{
		Countries: []Country{
			{"Afghanistan", "AFG", 38e6},
			{"Angola", "AGO", 33e6},
			{"Brazil", "BRA", 212e6},
			{"India", "IND", 1380e6},
			{"Indonesia", "IDN", 273e6},
			{"Kenya", "KEN", 53e6},
			{"Nigeria", "NGA", 206e6},
			{"Pakistan", "PAK", 220e6},
			{"Philippines", "PHL", 109e6},
			{"South Africa", "ZAF", 59e6},
			{"Ukraine", "UKR", 44e6},
			{"Viet Nam", "VNM", 97e6},
		},
		StartYear:   2010,
		EndYear:     2020,
		Features:    feature.DefaultCatalog().IDs(),
		MissingRate: 0.05,
		Seed:        42,
	}
}

type whoRecord struct {
	country Country
	year    int
	values  []float64
}

// WHODataGenerator produces deterministic aggregated WHO TB rows
type WHODataGenerator struct {
	config  WHOGeneratorConfig
	rng     *rand.Rand
	records []whoRecord
}

// NewWHODataGenerator creates a generator; the same seed yields the same rows
func NewWHODataGenerator(config WHOGeneratorConfig) *WHODataGenerator {
	g := &WHODataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
	g.generate()
	return g
}

// Header is the column order of written files
func (g *WHODataGenerator) Header() []string {
	return append(append([]string(nil), dataset.KeyColumns...), g.config.Features...)
}

// Len is the number of generated rows
func (g *WHODataGenerator) Len() int { return len(g.records) }

func (g *WHODataGenerator) generate() {
	empty := make(map[int]bool, len(g.config.EmptyYears))
	for _, y := range g.config.EmptyYears {
		empty[y] = true
	}

	for _, c := range g.config.Countries {
		// Incidence per 100k and each feature's share of notifications are
		// fixed per country and drift slowly over the years.
		rate := 20 + g.rng.Float64()*400
		shares := make([]float64, len(g.config.Features))
		for i := range shares {
			shares[i] = 0.01 + g.rng.Float64()*0.49
		}

		for year := g.config.StartYear; year <= g.config.EndYear; year++ {
			rate *= 0.95 + g.rng.Float64()*0.08
			newinc := math.Round(c.Population * rate / 1e5)

			values := make([]float64, len(g.config.Features))
			for i, f := range g.config.Features {
				switch {
				case empty[year] || g.rng.Float64() < g.config.MissingRate:
					values[i] = dataset.Missing()
				case f == "c_newinc":
					values[i] = newinc
				case f == "c_per_100k":
					values[i] = math.Round(rate*10) / 10
				default:
					values[i] = math.Round(newinc * shares[i])
				}
			}
			g.records = append(g.records, whoRecord{country: c, year: year, values: values})
		}
	}
}

// Table returns the generated rows as a dataset table
func (g *WHODataGenerator) Table() (*dataset.Table, error) {
	b, err := dataset.NewBuilder(g.config.Features)
	if err != nil {
		return nil, err
	}
	for _, r := range g.records {
		if err := b.Add(r.country.Name, r.country.ISO3, r.year, r.values); err != nil {
			return nil, err
		}
	}
	return b.Build(fmt.Sprintf("synthetic:seed=%d", g.config.Seed)), nil
}

func (g *WHODataGenerator) cells(r whoRecord) []string {
	row := []string{r.country.Name, r.country.ISO3, strconv.Itoa(r.year)}
	for _, v := range r.values {
		if dataset.IsMissing(v) {
			row = append(row, "")
			continue
		}
		row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return row
}

// WriteCSV writes the dataset as a CSV file with a header row
func (g *WHODataGenerator) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(g.Header()); err != nil {
		return err
	}
	for _, r := range g.records {
		if err := w.Write(g.cells(r)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// WriteXLSX writes the dataset to the first sheet of a workbook
func (g *WHODataGenerator) WriteXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := g.Header()
	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return err
	}

	for n, r := range g.records {
		row := []interface{}{r.country.Name, r.country.ISO3, r.year}
		for _, v := range r.values {
			if dataset.IsMissing(v) {
				row = append(row, "")
			} else {
				row = append(row, v)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
