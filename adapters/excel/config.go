package excel

// ReaderConfig holds configuration for the file data source
type ReaderConfig struct {
	FilePath string `json:"file_path"`
	// Sheet selects the XLSX worksheet; empty means the first sheet.
	Sheet string `json:"sheet"`
	// Required lists measure columns that must exist and be numeric.
	Required []string `json:"required"`
	// MissingTokens are cell values read as a missing measure.
	MissingTokens []string `json:"missing_tokens"`
}

// DefaultMissingTokens are the NA markers understood by common CSV
// exporters, pandas defaults included.
var DefaultMissingTokens = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// DefaultReaderConfig returns sensible defaults for WHO aggregate files
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		MissingTokens: append([]string(nil), DefaultMissingTokens...),
	}
}
