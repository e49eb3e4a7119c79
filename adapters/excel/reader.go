package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"tbdash/domain/dataset"
	"tbdash/internal"
	"tbdash/internal/errors"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	config   ReaderConfig
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(config ReaderConfig) *DataReader {
	ext := strings.ToLower(filepath.Ext(config.FilePath))
	fileType := "csv"
	if ext == ".xlsx" || ext == ".xlsm" {
		fileType = "xlsx"
	}
	if config.MissingTokens == nil {
		config.MissingTokens = DefaultReaderConfig().MissingTokens
	}
	return &DataReader{
		config:   config,
		fileType: fileType,
		logger:   internal.DefaultLogger.With("DataReader"),
	}
}

// Describe names the source for logs and error messages
func (r *DataReader) Describe() string {
	return r.config.FilePath
}

// Load reads the file and types it into a dataset table
func (r *DataReader) Load(ctx context.Context) (*dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	return r.BuildTable(data)
}

// ReadData reads data from Excel or CSV files into raw string rows
func (r *DataReader) ReadData() (*ExcelData, error) {
	r.logger.Info("Starting to read %s file: %s", r.fileType, r.config.FilePath)

	if _, err := os.Stat(r.config.FilePath); err != nil {
		return nil, errors.Wrapf(errors.DatasetInvalid(err.Error()), "%s file not readable", strings.ToUpper(r.fileType))
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, errors.DatasetInvalid(fmt.Sprintf("unsupported file type: %s", r.fileType))
	}
}

// readExcelData reads the configured worksheet, or the first one
func (r *DataReader) readExcelData() (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.config.FilePath)
	if err != nil {
		return nil, errors.Wrap(errors.DatasetInvalid(err.Error()), "failed to open Excel file")
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(errors.DatasetInvalid(err.Error()), "failed to read sheet %q", sheet)
	}
	r.logger.Debug("sheet %s read in %.2fms (%d rows)", sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	return r.processRows(rows)
}

// readCSVData reads CSV data into raw rows
func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.config.FilePath)
	if err != nil {
		return nil, errors.Wrap(errors.DatasetInvalid(err.Error()), "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.DatasetInvalid(err.Error()), "failed to read CSV file")
	}
	r.logger.Debug("CSV file read in %.2fms (%d rows)", float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	return r.processRows(rows)
}

// processRows converts raw string rows into ExcelData format
func (r *DataReader) processRows(rows [][]string) (*ExcelData, error) {
	if len(rows) == 0 {
		return nil, errors.DatasetInvalid("file has no header row")
	}

	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	seen := make(map[string]bool, len(headerRow))
	for i, header := range headerRow {
		h := strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
		if h != "" && seen[h] {
			return nil, errors.DatasetInvalid(fmt.Sprintf("duplicate column %q", h))
		}
		seen[h] = true
		headers[i] = h
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rowData := make(RawRowData, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	r.logger.Info("%s file processed (%d columns, %d rows)", strings.ToUpper(r.fileType), len(headers), len(dataRows))

	return &ExcelData{
		Headers: headers,
		Rows:    dataRows,
	}, nil
}

// BuildTable types raw rows into a dataset table. Key columns must be
// present and every year must be an integer. Other columns become
// measures when all their non-missing cells are numeric; text columns
// are skipped unless listed as required, which is an error.
func (r *DataReader) BuildTable(data *ExcelData) (*dataset.Table, error) {
	have := make(map[string]bool, len(data.Headers))
	for _, h := range data.Headers {
		have[h] = true
	}
	var missingCols []string
	for _, key := range dataset.KeyColumns {
		if !have[key] {
			missingCols = append(missingCols, key)
		}
	}
	for _, req := range r.config.Required {
		if !have[req] {
			missingCols = append(missingCols, req)
		}
	}
	if len(missingCols) > 0 {
		return nil, errors.DatasetInvalid(fmt.Sprintf("%s is missing required columns: %s",
			r.Describe(), strings.Join(missingCols, ", ")))
	}

	required := make(map[string]bool, len(r.config.Required))
	for _, req := range r.config.Required {
		required[req] = true
	}

	var measures []string
	columns := make(map[string][]float64)
	for _, h := range data.Headers {
		if h == "" || h == dataset.ColumnCountry || h == dataset.ColumnISO3 || h == dataset.ColumnYear {
			continue
		}
		values, err := r.parseMeasure(data, h)
		if err != nil {
			if required[h] {
				return nil, errors.Wrapf(errors.DatasetInvalid(err.Error()), "column %s", h)
			}
			r.logger.Debug("skipping non-numeric column %s: %v", h, err)
			continue
		}
		measures = append(measures, h)
		columns[h] = values
	}

	builder, err := dataset.NewBuilder(measures)
	if err != nil {
		return nil, errors.Wrap(errors.DatasetInvalid(err.Error()), "build table")
	}
	rowValues := make([]float64, len(measures))
	for i, row := range data.Rows {
		year, err := parseYear(row[dataset.ColumnYear])
		if err != nil {
			return nil, errors.DatasetInvalid(fmt.Sprintf("data row %d: %v", i+1, err))
		}
		for j, m := range measures {
			rowValues[j] = columns[m][i]
		}
		if err := builder.Add(row[dataset.ColumnCountry], row[dataset.ColumnISO3], year, rowValues); err != nil {
			return nil, errors.Wrap(errors.DatasetInvalid(err.Error()), "build table")
		}
	}

	table := builder.Build(r.Describe())
	r.logger.Info("loaded %d rows, %d measures, %d years from %s", table.Len(), len(measures), len(table.Years()), r.Describe())
	return table, nil
}

func (r *DataReader) parseMeasure(data *ExcelData, column string) ([]float64, error) {
	values := make([]float64, len(data.Rows))
	for i, row := range data.Rows {
		cell := row[column]
		if r.isMissing(cell) {
			values[i] = dataset.Missing()
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
		if err != nil || math.IsInf(v, 0) {
			return nil, fmt.Errorf("data row %d: %q is not a number", i+1, cell)
		}
		values[i] = v
	}
	return values, nil
}

func (r *DataReader) isMissing(cell string) bool {
	for _, token := range r.config.MissingTokens {
		if cell == token {
			return true
		}
	}
	return false
}

func parseYear(cell string) (int, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, fmt.Errorf("year is empty")
	}
	if y, err := strconv.Atoi(cell); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("year %q is not an integer", cell)
	}
	return int(f), nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
