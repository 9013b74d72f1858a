package peakload

import (
	"bytes"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/blake2b"
)

// Sheet names the two export formats use. Accucor workbooks may carry extra
// sheets (Normalized, PoolAfterDF) that the loader ignores. The isocorr
// corrected sheet really is named "absolte" in the exporting tool.
const (
	sheetAccucorOriginal  = "Original"
	sheetAccucorCorrected = "Corrected"
	sheetIsocorrCorrected = "absolte"
)

// ErrUnknownWorkbook is returned for an xlsx file carrying neither an
// Accucor Corrected sheet nor an isocorr absolte sheet.
var ErrUnknownWorkbook = errors.New("workbook has neither a Corrected nor an absolte sheet")

type (
	// Table is one raw sheet: a header row plus data rows, all cells as
	// trimmed strings.
	Table struct {
		Headers []string
		Rows    [][]string
	}

	// AnnotationFile is one parsed peak annotation input. Original is nil for
	// corrected-only inputs (CSV exports and isocorr workbooks). Checksum is
	// the hex BLAKE2b-256 digest of the raw input bytes, for archive file
	// provenance.
	AnnotationFile struct {
		Path      string
		Name      string
		Format    Format
		Checksum  string
		Original  *Table
		Corrected *Table
	}

	// FormatError reports an input whose column shape contradicts the format
	// it was read as, with the fix the operator most likely needs.
	FormatError struct {
		Path       string
		Got        Format
		Reason     string
		Suggestion string
	}
)

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%s does not look like %s data: %s", e.Path, e.Got, e.Reason)
	if e.Suggestion != "" {
		msg += " (" + e.Suggestion + ")"
	}

	return msg
}

// ReadFile reads a peak annotation file from disk. Workbooks (.xlsx) detect
// their format from their sheet names; CSV files are corrected-only and are
// read as Accucor unless isocorr is true. A declared format that contradicts
// the workbook's sheets is an error rather than a silent override.
func ReadFile(path string, isocorr bool) (*AnnotationFile, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readWorkbook(path, isocorr)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open peak annotation file: %w", err)
	}
	defer f.Close()

	return ReadCSV(f, path, isocorr)
}

// ReadCSV reads a corrected-only CSV export.
func ReadCSV(r io.Reader, path string, isocorr bool) (*AnnotationFile, error) {
	hash, err := blake2b.New256(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize checksum: %w", err)
	}

	reader := csv.NewReader(io.TeeReader(r, hash))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read peak annotation file %s: %w", path, err)
	}

	corrected, err := tableFromRecords(records, path)
	if err != nil {
		return nil, err
	}

	format := FormatAccucor
	if isocorr {
		format = FormatIsocorr
	}

	file := &AnnotationFile{
		Path:      path,
		Name:      filepath.Base(path),
		Format:    format,
		Checksum:  hex.EncodeToString(hash.Sum(nil)),
		Corrected: corrected,
	}

	if err := file.checkShape(); err != nil {
		return nil, err
	}

	return file, nil
}

func readWorkbook(path string, isocorr bool) (*AnnotationFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook %s: %w", path, err)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer wb.Close()

	sum := blake2b.Sum256(raw)

	file := &AnnotationFile{
		Path:     path,
		Name:     filepath.Base(path),
		Checksum: hex.EncodeToString(sum[:]),
	}

	switch {
	case hasSheet(wb, sheetIsocorrCorrected):
		file.Format = FormatIsocorr

		file.Corrected, err = sheetTable(wb, sheetIsocorrCorrected, path)
		if err != nil {
			return nil, err
		}
	case hasSheet(wb, sheetAccucorCorrected):
		if isocorr {
			return nil, &FormatError{
				Path:   path,
				Got:    FormatIsocorr,
				Reason: "the workbook has an Accucor Corrected sheet, not an absolte sheet",
			}
		}

		file.Format = FormatAccucor

		file.Corrected, err = sheetTable(wb, sheetAccucorCorrected, path)
		if err != nil {
			return nil, err
		}

		if hasSheet(wb, sheetAccucorOriginal) {
			file.Original, err = sheetTable(wb, sheetAccucorOriginal, path)
			if err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkbook, path)
	}

	if err := file.checkShape(); err != nil {
		return nil, err
	}

	return file, nil
}

// checkShape verifies the corrected table's columns match the declared
// format, producing the actionable flag suggestion when they do not.
func (f *AnnotationFile) checkShape() error {
	switch f.Format {
	case FormatIsocorr:
		if f.Corrected.ColumnIndex(colIsotopeLabel) < 0 {
			return &FormatError{
				Path:   f.Path,
				Got:    FormatIsocorr,
				Reason: "no isotopeLabel column found",
			}
		}
	case FormatAccucor:
		if f.Corrected.ColumnIndex(colIsotopeLabel) >= 0 {
			return &FormatError{
				Path:       f.Path,
				Got:        FormatAccucor,
				Reason:     "found an isotopeLabel column, which only isocorr exports have",
				Suggestion: "re-run with --isocorr-format",
			}
		}
	}

	return nil
}

func hasSheet(wb *excelize.File, name string) bool {
	for _, sheet := range wb.GetSheetList() {
		if strings.EqualFold(sheet, name) {
			return true
		}
	}

	return false
}

func sheetTable(wb *excelize.File, name string, path string) (*Table, error) {
	// GetRows needs the exact sheet name; resolve the fold-equal one.
	actual := name

	for _, sheet := range wb.GetSheetList() {
		if strings.EqualFold(sheet, name) {
			actual = sheet
			break
		}
	}

	rows, err := wb.GetRows(actual)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s of %s: %w", actual, path, err)
	}

	return tableFromRecords(rows, path)
}

func tableFromRecords(records [][]string, path string) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("peak annotation file %s is empty", path)
	}

	table := &Table{Headers: trimmedRow(records[0])}

	for _, record := range records[1:] {
		row := trimmedRow(record)
		if blankRow(row) {
			continue
		}

		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// ColumnIndex returns the position of the named column, case-insensitive, or
// -1 when absent.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Headers {
		if strings.EqualFold(h, name) {
			return i
		}
	}

	return -1
}

// Cell returns the trimmed cell at (row, col), tolerating ragged rows.
func (t *Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}

	return row[col]
}

func trimmedRow(record []string) []string {
	row := make([]string, len(record))
	for i, c := range record {
		row[i] = strings.TrimSpace(c)
	}

	return row
}

func blankRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}

	return true
}
