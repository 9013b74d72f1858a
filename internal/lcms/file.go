// Package lcms parses the LCMS metadata file and reconciles per-sample-header
// run metadata from its three sources: values parsed from mzXML files, rows of
// the LCMS metadata file, and load-invocation defaults.
package lcms

import (
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// The LCMS metadata file header set. Validity is an exact set-equality check,
// case-insensitive and order-independent.
const (
	headerSampleName         = "tracebase sample name"
	headerSampleDataHeader   = "sample data header"
	headerMzXMLFilename      = "mzxml filename"
	headerPeakAnnotationFile = "peak annotation filename"
	headerInstrument         = "instrument"
	headerOperator           = "operator"
	headerDate               = "date"
	headerMSMode             = "ms mode"
	headerLCMethod           = "lc method"
	headerLCRunLength        = "lc run length"
	headerLCDescription      = "lc description"
)

var requiredHeaders = []string{
	headerSampleName,
	headerSampleDataHeader,
	headerMzXMLFilename,
	headerPeakAnnotationFile,
	headerInstrument,
	headerOperator,
	headerDate,
	headerMSMode,
	headerLCMethod,
	headerLCRunLength,
	headerLCDescription,
}

var (
	// ErrEmptyMetadataFile is returned for an LCMS metadata file with no
	// header row at all.
	ErrEmptyMetadataFile = errors.New("LCMS metadata file is empty")
)

type (
	// Row is one LCMS metadata file row keyed by sample data header. All
	// values are kept as trimmed strings; empty string means the cell was
	// blank. Interpretation (dates, numbers) happens during reconciliation so
	// that a bad cell is buffered per header instead of failing the file.
	Row struct {
		SampleName         string
		SampleDataHeader   string
		MzXMLFilename      string
		PeakAnnotationFile string
		Instrument         string
		Operator           string
		Date               string
		MSMode             string
		LCMethod           string
		LCRunLength        string
		LCDescription      string
	}

	// MetadataFile is one parsed LCMS metadata file.
	MetadataFile struct {
		// Path is the file path as given, recorded for provenance.
		Path string

		// Checksum is the lowercase hex BLAKE2b-256 digest of the raw file
		// bytes, for archive file provenance. Empty when the file was built
		// from an already-tabulated source.
		Checksum string

		// Rows maps sample data header to its metadata row.
		Rows map[string]Row
	}

	// HeaderSetError reports a header row that is not exactly the required
	// set. Both directions are listed so the operator can fix the file in one
	// pass.
	HeaderSetError struct {
		Missing    []string
		Unexpected []string
	}

	// DuplicateHeaderError reports a sample data header appearing on more
	// than one row. Headers are the row key; duplicates cannot be reconciled.
	DuplicateHeaderError struct {
		SampleDataHeader string
	}
)

func (e *HeaderSetError) Error() string {
	var parts []string

	if len(e.Missing) > 0 {
		parts = append(parts, "missing headers: "+strings.Join(e.Missing, ", "))
	}

	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected headers: "+strings.Join(e.Unexpected, ", "))
	}

	return "invalid LCMS metadata file headers; " + strings.Join(parts, "; ")
}

func (e *DuplicateHeaderError) Error() string {
	return fmt.Sprintf("sample data header %q appears on more than one LCMS metadata row", e.SampleDataHeader)
}

// ParseCSV reads an LCMS metadata file in CSV form.
func ParseCSV(r io.Reader, path string) (*MetadataFile, error) {
	return parseDelimited(r, path, ',')
}

// ParseTSV reads an LCMS metadata file in tab-separated form.
func ParseTSV(r io.Reader, path string) (*MetadataFile, error) {
	return parseDelimited(r, path, '\t')
}

func parseDelimited(r io.Reader, path string, comma rune) (*MetadataFile, error) {
	hash, err := blake2b.New256(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize checksum: %w", err)
	}

	reader := csv.NewReader(io.TeeReader(r, hash))
	reader.Comma = comma
	reader.FieldsPerRecord = -1 // ragged rows are reported per cell below

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read LCMS metadata file %s: %w", path, err)
	}

	file, err := ParseTable(records, path)
	if err != nil {
		return nil, err
	}

	file.Checksum = hex.EncodeToString(hash.Sum(nil))

	return file, nil
}

// ParseTable builds a MetadataFile from an already-tabulated file (CSV records
// or an xlsx sheet). The first row must be the header row.
func ParseTable(records [][]string, path string) (*MetadataFile, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyMetadataFile, path)
	}

	index, err := headerIndex(records[0])
	if err != nil {
		return nil, err
	}

	file := &MetadataFile{
		Path: path,
		Rows: make(map[string]Row, len(records)-1),
	}

	for _, record := range records[1:] {
		if blankRecord(record) {
			continue
		}

		row := Row{
			SampleName:         cell(record, index[headerSampleName]),
			SampleDataHeader:   cell(record, index[headerSampleDataHeader]),
			MzXMLFilename:      cell(record, index[headerMzXMLFilename]),
			PeakAnnotationFile: cell(record, index[headerPeakAnnotationFile]),
			Instrument:         cell(record, index[headerInstrument]),
			Operator:           cell(record, index[headerOperator]),
			Date:               cell(record, index[headerDate]),
			MSMode:             cell(record, index[headerMSMode]),
			LCMethod:           cell(record, index[headerLCMethod]),
			LCRunLength:        cell(record, index[headerLCRunLength]),
			LCDescription:      cell(record, index[headerLCDescription]),
		}

		if row.SampleDataHeader == "" {
			continue
		}

		if _, dupe := file.Rows[row.SampleDataHeader]; dupe {
			return nil, &DuplicateHeaderError{SampleDataHeader: row.SampleDataHeader}
		}

		file.Rows[row.SampleDataHeader] = row
	}

	return file, nil
}

// HeaderByMzXML returns the sample data header whose row names the given
// mzXML basename (extension-insensitive). The second return is false when no
// row references it; ambiguous references (the same basename on two rows)
// return an error because the association cannot be disambiguated.
func (f *MetadataFile) HeaderByMzXML(basename string) (string, bool, error) {
	var matches []string

	for header, row := range f.Rows {
		if row.MzXMLFilename == "" {
			continue
		}

		if strings.EqualFold(trimMzXMLExt(row.MzXMLFilename), basename) {
			matches = append(matches, header)
		}
	}

	switch len(matches) {
	case 0:
		return "", false, nil
	case 1:
		return matches[0], true, nil
	default:
		sort.Strings(matches)

		return "", false, fmt.Errorf(
			"mzXML file %q is linked to multiple sample data headers (%s); dropping the association",
			basename, strings.Join(matches, ", "),
		)
	}
}

// Headers returns the sample data headers present in the file, sorted.
func (f *MetadataFile) Headers() []string {
	headers := make([]string, 0, len(f.Rows))
	for h := range f.Rows {
		headers = append(headers, h)
	}

	sort.Strings(headers)

	return headers
}

// headerIndex validates the header row against the required set and maps each
// required header to its column position.
func headerIndex(headerRow []string) (map[string]int, error) {
	index := make(map[string]int, len(headerRow))

	var unexpected []string

	for i, raw := range headerRow {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}

		if !isRequiredHeader(name) {
			unexpected = append(unexpected, name)
			continue
		}

		index[name] = i
	}

	var missing []string

	for _, required := range requiredHeaders {
		if _, ok := index[required]; !ok {
			missing = append(missing, required)
		}
	}

	if len(missing) > 0 || len(unexpected) > 0 {
		sort.Strings(missing)
		sort.Strings(unexpected)

		return nil, &HeaderSetError{Missing: missing, Unexpected: unexpected}
	}

	return index, nil
}

func isRequiredHeader(name string) bool {
	for _, required := range requiredHeaders {
		if required == name {
			return true
		}
	}

	return false
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}

	return strings.TrimSpace(record[i])
}

func blankRecord(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}

	return true
}

func trimMzXMLExt(name string) string {
	if strings.EqualFold(strings.TrimPrefix(ext(name), "."), "mzxml") {
		return name[:len(name)-len(ext(name))]
	}

	return name
}

func ext(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}

	return ""
}
