package lcms

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tracekit-io/tracekit/internal/loadreport"
	"github.com/tracekit-io/tracekit/internal/mzxml"
)

// Last-resort placeholders. These exist only to let the validation pass keep
// gathering further problems after a missing-default error has already been
// buffered; they never substitute silently for a missing required value.
const (
	PlaceholderResearcher = "anonymous"
	PlaceholderInstrument = "unknown"
	PlaceholderLCProtocol = "unknown"
	PlaceholderPolarity   = mzxml.PolarityPositive
)

// PlaceholderDate marks a reconciled record whose run date could not be
// determined from any source.
var PlaceholderDate = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// dateLayouts are the run-date formats accepted in LCMS metadata cells and on
// the command line.
var dateLayouts = []string{"2006-01-02", "1/2/2006", "2006-01-02 15:04:05"}

type (
	// Defaults holds the load-invocation fallback values, one tier above the
	// last-resort placeholders. Zero values mean "not supplied".
	Defaults struct {
		Researcher  string
		Date        time.Time
		Instrument  string
		LCProtocol  string
		LCRunLength int // minutes
		Polarity    string
		MzMin       *float64
		MzMax       *float64
	}

	// Record is one fully reconciled sample metadata record, keyed by sample
	// data header. After reconciliation every required field is non-empty;
	// fields filled by placeholders are listed in Placeholders and always have
	// a corresponding buffered error.
	Record struct {
		SampleDataHeader   string
		SampleName         string
		Researcher         string
		Instrument         string
		Date               time.Time
		LCProtocol         string
		LCRunLength        int
		LCDescription      string
		Polarity           string
		MzMin              *float64
		MzMax              *float64
		MzXML              *mzxml.File
		PeakAnnotationFile string
		Placeholders       []string
	}

	// Conflict is one cross-source mismatch between an mzXML-parsed value and
	// an explicitly supplied one.
	Conflict struct {
		Field       string
		MzXMLValue  string
		SourceValue string
	}

	// Reconciler merges the three metadata sources into one Record per sample
	// data header. Precedence, highest first: mzXML-parsed value, LCMS
	// metadata file value, invocation default, placeholder. Nulls are skipped,
	// never allowed to overwrite a lower-precedence non-null.
	Reconciler struct {
		Metadata *MetadataFile // optional
		MzXML    []*mzxml.File // optional
		Defaults Defaults
		Mode     loadreport.Mode
	}

	// Result is the reconciliation outcome: records for every requested
	// header, cross-source conflicts keyed by mzXML path, and the buffered
	// report.
	Result struct {
		Records   map[string]*Record
		Conflicts map[string][]Conflict
		Report    loadreport.Report
	}
)

// missingDefaultFields returns the required default fields that are unset.
func (d Defaults) missingDefaultFields() []string {
	var missing []string

	if d.Researcher == "" {
		missing = append(missing, "researcher")
	}

	if d.Date.IsZero() {
		missing = append(missing, "date")
	}

	if d.Instrument == "" {
		missing = append(missing, "instrument")
	}

	if d.LCProtocol == "" {
		missing = append(missing, "lc protocol")
	}

	if d.Polarity == "" {
		missing = append(missing, "polarity")
	}

	return missing
}

// Reconcile produces one Record per sample data header of the current peak
// annotation file. All checks run even when earlier ones fail, to maximize
// error yield per run; fatality is judged by the caller at the phase
// checkpoint via Result.Report.
func (r *Reconciler) Reconcile(sampleHeaders []string, annotationFileName string) *Result {
	result := &Result{
		Records:   make(map[string]*Record, len(sampleHeaders)),
		Conflicts: make(map[string][]Conflict),
	}

	mzxmlByHeader := r.associateMzXML(result)

	for _, header := range sampleHeaders {
		record := r.reconcileHeader(header, mzxmlByHeader[header], result)
		result.Records[header] = record
	}

	r.checkUnmatchedMetadataRows(sampleHeaders, annotationFileName, result)

	return result
}

// associateMzXML links parsed mzXML files to sample data headers. Without an
// LCMS metadata file the basename (minus extension) is assumed to equal the
// header; with one, an explicit reverse lookup is performed instead, and an
// ambiguous basename drops the association with a buffered error.
func (r *Reconciler) associateMzXML(result *Result) map[string]*mzxml.File {
	byHeader := make(map[string]*mzxml.File, len(r.MzXML))

	for _, file := range r.MzXML {
		if r.Metadata == nil {
			byHeader[file.Name] = file
			continue
		}

		header, found, err := r.Metadata.HeaderByMzXML(file.Name)
		if err != nil {
			result.Report.Add(loadreport.KindAmbiguousEntity, r.Mode, err)
			continue
		}

		if found {
			byHeader[header] = file
		}
	}

	return byHeader
}

// reconcileHeader builds one record via the two-pass discipline: pass 1
// resolves each field by precedence and collects what is still missing; pass 2
// buffers one missing-default error per field and then fills placeholders so
// later validation keeps running.
func (r *Reconciler) reconcileHeader(header string, mz *mzxml.File, result *Result) *Record {
	record := &Record{SampleDataHeader: header, MzXML: mz}

	row, hasRow := r.lookupRow(header)
	if hasRow {
		record.SampleName = row.SampleName
		record.LCDescription = row.LCDescription
		record.PeakAnnotationFile = row.PeakAnnotationFile
	} else if r.Metadata != nil {
		r.reportRowlessHeader(header, result)
	}

	// Pass 1: resolve by precedence.
	record.Researcher = firstNonEmpty(row.Operator, r.Defaults.Researcher)
	record.Instrument = firstNonEmpty(row.Instrument, r.Defaults.Instrument)
	record.LCProtocol = firstNonEmpty(row.LCMethod, r.Defaults.LCProtocol)
	record.Date = r.resolveDate(row, result)
	record.LCRunLength = r.resolveRunLength(row, result)
	record.Polarity = r.resolvePolarity(row, mz, result)
	record.MzMin, record.MzMax = r.resolveMzRange(mz, result)

	// Pass 2: placeholders, each backed by an already-buffered error.
	r.fillPlaceholders(record, result)

	return record
}

func (r *Reconciler) lookupRow(header string) (Row, bool) {
	if r.Metadata == nil {
		return Row{}, false
	}

	row, ok := r.Metadata.Rows[header]

	return row, ok
}

// reportRowlessHeader handles a corrected-sheet header with no LCMS metadata
// row. With a complete default set this is an informational note; any missing
// default makes it fatal (classified per mode).
func (r *Reconciler) reportRowlessHeader(header string, result *Result) {
	missing := r.Defaults.missingDefaultFields()
	if len(missing) == 0 {
		result.Report.Warn(loadreport.KindMissingDefault, fmt.Errorf(
			"sample data header %q is not in the LCMS metadata file; using supplied defaults", header,
		))

		return
	}

	result.Report.Add(loadreport.KindMissingDefault, r.Mode, fmt.Errorf(
		"sample data header %q is not in the LCMS metadata file and no default was supplied for: %s",
		header, strings.Join(missing, ", "),
	))
}

func (r *Reconciler) resolveDate(row Row, result *Result) time.Time {
	if row.Date != "" {
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, row.Date); err == nil {
				return parsed
			}
		}

		result.Report.Add(loadreport.KindFileStructure, r.Mode, fmt.Errorf(
			"cannot parse date %q on LCMS metadata row for %q", row.Date, row.SampleDataHeader,
		))
	}

	return r.Defaults.Date
}

func (r *Reconciler) resolveRunLength(row Row, result *Result) int {
	if row.LCRunLength != "" {
		if minutes, err := strconv.Atoi(row.LCRunLength); err == nil {
			return minutes
		}

		result.Report.Add(loadreport.KindFileStructure, r.Mode, fmt.Errorf(
			"cannot parse lc run length %q on LCMS metadata row for %q", row.LCRunLength, row.SampleDataHeader,
		))
	}

	return r.Defaults.LCRunLength
}

// resolvePolarity applies precedence and detects the polarity cross-source
// conflict: both the mzXML value and the file's explicit ms mode must be
// non-null to conflict; otherwise the higher-precedence value is adopted
// quietly.
func (r *Reconciler) resolvePolarity(row Row, mz *mzxml.File, result *Result) string {
	fileValue := ""

	if row.MSMode != "" {
		normalized, err := normalizeMSMode(row.MSMode)
		if err != nil {
			result.Report.Add(loadreport.KindFileStructure, r.Mode, fmt.Errorf(
				"%w on LCMS metadata row for %q", err, row.SampleDataHeader,
			))
		} else {
			fileValue = normalized
		}
	}

	if mz != nil && mz.Polarity != "" {
		if fileValue != "" && fileValue != mz.Polarity {
			r.addConflict(result, mz, Conflict{
				Field:       "polarity",
				MzXMLValue:  mz.Polarity,
				SourceValue: fileValue,
			})
		}

		return mz.Polarity
	}

	if fileValue != "" {
		return fileValue
	}

	return r.Defaults.Polarity
}

// resolveMzRange adopts the mzXML scan range when available, falling back to
// explicit invocation defaults. A non-null default that disagrees with the
// mzXML value is a cross-source conflict, recorded per mzXML file.
func (r *Reconciler) resolveMzRange(mz *mzxml.File, result *Result) (*float64, *float64) {
	if mz == nil {
		return r.Defaults.MzMin, r.Defaults.MzMax
	}

	mzMin, mzMax := mz.MzMin, mz.MzMax

	if r.Defaults.MzMin != nil && *r.Defaults.MzMin != mzMin {
		r.addConflict(result, mz, Conflict{
			Field:       "mz_min",
			MzXMLValue:  formatFloat(mzMin),
			SourceValue: formatFloat(*r.Defaults.MzMin),
		})
	}

	if r.Defaults.MzMax != nil && *r.Defaults.MzMax != mzMax {
		r.addConflict(result, mz, Conflict{
			Field:       "mz_max",
			MzXMLValue:  formatFloat(mzMax),
			SourceValue: formatFloat(*r.Defaults.MzMax),
		})
	}

	return &mzMin, &mzMax
}

// addConflict records a conflict keyed by mzXML path (the same file can be
// referenced by several headers, so conflicts are per file, not per sample)
// and buffers the corresponding error.
func (r *Reconciler) addConflict(result *Result, mz *mzxml.File, c Conflict) {
	result.Conflicts[mz.Path] = append(result.Conflicts[mz.Path], c)
	result.Report.Add(loadreport.KindCrossSourceMismatch, r.Mode, fmt.Errorf(
		"%s mismatch for %s: mzXML says %s, supplied metadata says %s",
		c.Field, mz.Path, c.MzXMLValue, c.SourceValue,
	))
}

// fillPlaceholders injects last-resort values for still-missing required
// fields, buffering one missing-default error per field first.
func (r *Reconciler) fillPlaceholders(record *Record, result *Result) {
	fill := func(field string, apply func()) {
		result.Report.Add(loadreport.KindMissingDefault, r.Mode, fmt.Errorf(
			"no %s could be determined for sample data header %q from any source", field, record.SampleDataHeader,
		))
		record.Placeholders = append(record.Placeholders, field)
		apply()
	}

	if record.Researcher == "" {
		fill("researcher", func() { record.Researcher = PlaceholderResearcher })
	}

	if record.Instrument == "" {
		fill("instrument", func() { record.Instrument = PlaceholderInstrument })
	}

	if record.LCProtocol == "" {
		fill("lc protocol", func() { record.LCProtocol = PlaceholderLCProtocol })
	}

	if record.Date.IsZero() {
		fill("date", func() { record.Date = PlaceholderDate })
	}

	if record.Polarity == "" {
		fill("polarity", func() { record.Polarity = PlaceholderPolarity })
	}
}

// checkUnmatchedMetadataRows reports LCMS metadata rows whose sample data
// header is absent from the corrected sheet of this annotation file. Rows
// whose peak annotation filename names a different file are ignored: in a
// multi-file study the metadata file legitimately lists other files' headers.
func (r *Reconciler) checkUnmatchedMetadataRows(sampleHeaders []string, annotationFileName string, result *Result) {
	if r.Metadata == nil {
		return
	}

	present := make(map[string]bool, len(sampleHeaders))
	for _, h := range sampleHeaders {
		present[h] = true
	}

	var unmatched []string

	for header, row := range r.Metadata.Rows {
		if present[header] {
			continue
		}

		if row.PeakAnnotationFile != "" && row.PeakAnnotationFile != annotationFileName {
			continue
		}

		unmatched = append(unmatched, header)
	}

	sort.Strings(unmatched)

	for _, header := range unmatched {
		result.Report.Add(loadreport.KindUnknownEntity, r.Mode, fmt.Errorf(
			"LCMS metadata row for sample data header %q matches no column in the corrected sheet of %s",
			header, annotationFileName,
		))
	}
}

// normalizeMSMode maps an ms mode cell onto the canonical polarity values.
func normalizeMSMode(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive", "pos":
		return mzxml.PolarityPositive, nil
	case "negative", "neg":
		return mzxml.PolarityNegative, nil
	default:
		return "", fmt.Errorf("unrecognized ms mode %q", raw)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
