package peakload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tracekit-io/tracekit/internal/isotope"
	"github.com/tracekit-io/tracekit/internal/lcms"
	"github.com/tracekit-io/tracekit/internal/loadreport"
	"github.com/tracekit-io/tracekit/internal/mzxml"
)

type (
	// LoaderOptions configures one load run.
	LoaderOptions struct {
		Mode loadreport.Mode

		// Tracer lists the isotope observations of the study's tracer
		// compounds, e.g. C13 and N15. Labels are parsed and reconciled
		// against it.
		Tracer []isotope.Observation

		// SkipSamples lists sample data headers to ignore entirely (blanks,
		// QC injections).
		SkipSamples []string

		// SampleNamePrefix is prepended to sample names before database
		// lookup, for studies whose database samples carry a study prefix.
		SampleNamePrefix string

		// NewResearcher confirms that the run's researcher is intentionally
		// new. Without it an unknown researcher is an error; with it a known
		// one is.
		NewResearcher bool

		// UnexpectedIsotopesFatal escalates observed isotopes outside the
		// tracer set to errors in every mode. By default they warn during
		// loads (contamination can be legitimate biology) and error only in
		// validate mode.
		UnexpectedIsotopesFatal bool

		// Defaults are the load-invocation fallback metadata values.
		Defaults lcms.Defaults
	}

	// EntityCounts tallies what one load did to one entity kind.
	EntityCounts struct {
		Created  int
		Existing int
	}

	// LoadResult is the outcome of one load run: per-entity counts, the
	// buffered report, and whether the transaction was kept.
	LoadResult struct {
		File           string
		Format         Format
		Mode           loadreport.Mode
		RolledBack     bool
		AlreadyLoaded  bool
		SkippedSamples []string
		LCMethods      EntityCounts
		Sequences      EntityCounts
		MSRunSamples   EntityCounts
		PeakGroups     EntityCounts
		PeakData       EntityCounts
		Report         *loadreport.Report
	}

	// Loader runs the two-phase load of one peak annotation file: a
	// validation phase that buffers every problem it can find, a fatality
	// checkpoint, then a single-transaction load phase.
	Loader struct {
		store  Store
		logger *slog.Logger
		opts   LoaderOptions
	}

	// candidate is a peak group candidate with its corrected-sheet rows.
	candidate struct {
		name      string
		formula   string
		compounds []CompoundRef
		rows      []annotationRow
	}

	// duplicateTracker collects exact-duplicate peak groups during the load
	// phase so they can be judged collectively at the end: a file whose every
	// peak group already exists was simply loaded before.
	duplicateTracker struct {
		entries []string
	}
)

// NewLoader creates a Loader.
func NewLoader(store Store, logger *slog.Logger, opts LoaderOptions) *Loader {
	return &Loader{store: store, logger: logger, opts: opts}
}

// Load runs one peak annotation file through validation and load. metadata
// and mzFiles are optional. The returned error is nil for a clean run
// (including clean dry runs, which roll back by design); a run with buffered
// errors returns the aggregate *loadreport.FatalError and rolls back.
func (l *Loader) Load(ctx context.Context, file *AnnotationFile, metadata *lcms.MetadataFile, mzFiles []*mzxml.File) (*LoadResult, error) {
	result := &LoadResult{
		File:   file.Name,
		Format: file.Format,
		Mode:   l.opts.Mode,
		Report: &loadreport.Report{},
	}

	l.logger.Info("starting peak annotation load",
		"file", file.Name,
		"format", string(file.Format),
	)

	cols, err := resolveColumns(file)
	if err != nil {
		return nil, err
	}

	headers := l.sampleHeaders(file, cols, result)

	recon := (&lcms.Reconciler{
		Metadata: metadata,
		MzXML:    mzFiles,
		Defaults: l.opts.Defaults,
		Mode:     l.opts.Mode,
	}).Reconcile(headers, file.Name)
	result.Report.Merge(&recon.Report)

	groups := parseRows(file, cols, l.opts.Tracer, l.opts.Mode, l.opts.UnexpectedIsotopesFatal, result.Report)

	candidates, err := l.resolveCandidates(ctx, groups, result.Report)
	if err != nil {
		return nil, err
	}

	if err := l.validateResearchers(ctx, recon.Records, result.Report); err != nil {
		return nil, err
	}

	// Validation checkpoint: nothing below runs against a file that already
	// failed, and nothing above stopped at the first problem.
	if result.Report.Fatal() {
		result.RolledBack = true

		return result, result.Report.Err()
	}

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin load transaction: %w", err)
	}
	defer tx.Rollback()

	err = l.loadAll(ctx, tx, file, metadata, mzFiles, cols, headers, recon.Records, candidates, result)

	switch {
	case err == nil:
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit load: %w", err)
		}

		l.logResult(result)

		return result, nil
	case errors.Is(err, ErrDryRun):
		result.RolledBack = true

		l.logResult(result)

		return result, nil
	default:
		result.RolledBack = true

		if loadreport.IsFatal(err) {
			return result, err
		}

		return nil, err
	}
}

// loadAll is the load phase proper, run inside one transaction. Domain
// problems buffer onto the report; only infrastructure failures return
// directly. A structurally successful run under dry-run or validate mode
// returns ErrDryRun so the caller rolls back.
func (l *Loader) loadAll(ctx context.Context, tx LoadTx, file *AnnotationFile, metadata *lcms.MetadataFile, mzFiles []*mzxml.File, cols sheetColumns, headers []string, records map[string]*lcms.Record, candidates []candidate, result *LoadResult) error {
	// Archive provenance first: peak groups reference the archive file row.
	fileID, err := l.recordProvenance(ctx, tx, file, metadata, mzFiles)
	if err != nil {
		return err
	}

	dup := &duplicateTracker{}
	loadedSamples := 0

	for _, header := range headers {
		record := records[header]
		if record == nil {
			continue
		}

		msRunSampleID, ok, err := l.loadRunScaffolding(ctx, tx, record, result)
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		loadedSamples++

		for _, cand := range candidates {
			if err := l.loadPeakGroup(ctx, tx, msRunSampleID, header, record, cand, file, cols, fileID, dup, result); err != nil {
				return err
			}
		}
	}

	dup.finalize(file.Name, loadedSamples*len(candidates), l.opts.Mode, result)

	if result.Report.Fatal() {
		return result.Report.Err()
	}

	if l.opts.Mode != loadreport.ModeLoad {
		return ErrDryRun
	}

	return nil
}

// recordProvenance archives every consumed input file: the annotation file,
// the LCMS metadata file, and each mzXML file. Returns the annotation file's
// archive row id, which loaded peak groups reference.
func (l *Loader) recordProvenance(ctx context.Context, tx LoadTx, file *AnnotationFile, metadata *lcms.MetadataFile, mzFiles []*mzxml.File) (string, error) {
	fileID, err := tx.RecordArchiveFile(ctx, ArchiveFileRecord{
		ID:       uuid.NewString(),
		Filename: file.Name,
		Checksum: file.Checksum,
		FileType: FileTypePeakAnnotation,
	})
	if err != nil {
		return "", fmt.Errorf("failed to record archive file: %w", err)
	}

	if metadata != nil && metadata.Checksum != "" {
		if _, err := tx.RecordArchiveFile(ctx, ArchiveFileRecord{
			ID:       uuid.NewString(),
			Filename: filepath.Base(metadata.Path),
			Checksum: metadata.Checksum,
			FileType: FileTypeLCMSMetadata,
		}); err != nil {
			return "", fmt.Errorf("failed to record LCMS metadata archive file: %w", err)
		}
	}

	for _, mz := range mzFiles {
		if _, err := tx.RecordArchiveFile(ctx, ArchiveFileRecord{
			ID:       uuid.NewString(),
			Filename: filepath.Base(mz.Path),
			Checksum: mz.Checksum,
			FileType: FileTypeMzXML,
		}); err != nil {
			return "", fmt.Errorf("failed to record mzXML archive file: %w", err)
		}
	}

	return fileID, nil
}

// sampleHeaders extracts and validates the corrected sheet's sample columns:
// blanks and duplicates are buffered and excluded, skip-listed headers are
// removed, and an original sheet with a different sample set prunes the load
// to the intersection.
func (l *Loader) sampleHeaders(file *AnnotationFile, cols sheetColumns, result *LoadResult) []string {
	skip := make(map[string]bool, len(l.opts.SkipSamples))
	for _, s := range l.opts.SkipSamples {
		skip[s] = true
	}

	seen := make(map[string]bool)

	var headers []string

	for i, header := range file.Corrected.Headers[cols.firstSample:] {
		switch {
		case header == "":
			result.Report.Add(loadreport.KindFileStructure, l.opts.Mode, fmt.Errorf(
				"blank sample column header at position %d of the corrected sheet", cols.firstSample+i+1,
			))
		case seen[header]:
			result.Report.Add(loadreport.KindFileStructure, l.opts.Mode, fmt.Errorf(
				"sample column header %q appears more than once in the corrected sheet", header,
			))
		case skip[header]:
			result.SkippedSamples = append(result.SkippedSamples, header)
			seen[header] = true
		default:
			seen[header] = true

			headers = append(headers, header)
		}
	}

	if file.Original != nil {
		headers = l.pruneToOriginal(file, headers, result)
	}

	return headers
}

// pruneToOriginal compares the corrected sample set against the original
// sheet's. Either direction of mismatch is buffered; corrected headers with
// no original counterpart are pruned so the load works on the intersection.
func (l *Loader) pruneToOriginal(file *AnnotationFile, headers []string, result *LoadResult) []string {
	_, originalHeaders, err := sampleColumns(file.Original)
	if err != nil {
		result.Report.Add(loadreport.KindFileStructure, l.opts.Mode, fmt.Errorf(
			"original sheet of %s: %w", file.Name, err,
		))

		return headers
	}

	inOriginal := make(map[string]bool, len(originalHeaders))
	for _, h := range originalHeaders {
		if h != "" {
			inOriginal[h] = true
		}
	}

	inCorrected := make(map[string]bool, len(headers))

	var kept []string

	for _, h := range headers {
		inCorrected[h] = true

		if !inOriginal[h] {
			result.Report.Add(loadreport.KindCardinalityMismatch, l.opts.Mode, fmt.Errorf(
				"sample column %q of the corrected sheet has no original sheet counterpart", h,
			))

			continue
		}

		kept = append(kept, h)
	}

	for _, h := range sortedUnique(originalHeaders) {
		if h != "" && !inCorrected[h] && !contains(result.SkippedSamples, h) {
			result.Report.Add(loadreport.KindCardinalityMismatch, l.opts.Mode, fmt.Errorf(
				"sample column %q of the original sheet has no corrected sheet counterpart", h,
			))
		}
	}

	return kept
}

// resolveCandidates cross-references every compound name against the store.
// "/"-delimited names resolve each part independently (synonyms included); a
// candidate with any unresolved part is purged from the load set after its
// error is buffered, so later phases do not pile on about it.
func (l *Loader) resolveCandidates(ctx context.Context, groups []compoundRows, report *loadreport.Report) ([]candidate, error) {
	var candidates []candidate

	for _, group := range groups {
		cand := candidate{name: group.name, rows: group.rows}

		for _, row := range group.rows {
			if row.formula != "" {
				cand.formula = row.formula
				break
			}
		}

		resolved := true

		for _, part := range strings.Split(group.name, "/") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			compound, err := l.store.FindCompound(ctx, part)
			if errors.Is(err, ErrNotFound) {
				report.Add(loadreport.KindUnknownEntity, l.opts.Mode, fmt.Errorf(
					"compound %q (of peak group %q) matches no compound name or synonym", part, group.name,
				))

				resolved = false

				continue
			}

			if err != nil {
				return nil, fmt.Errorf("failed to look up compound %q: %w", part, err)
			}

			cand.compounds = append(cand.compounds, *compound)
		}

		if resolved {
			candidates = append(candidates, cand)
		}
	}

	return candidates, nil
}

// validateResearchers checks every reconciled researcher against the set
// already in the store. An unknown researcher needs explicit confirmation via
// NewResearcher; conversely, confirming a researcher who already exists is
// reported so typos do not mint near-duplicate identities.
func (l *Loader) validateResearchers(ctx context.Context, records map[string]*lcms.Record, report *loadreport.Report) error {
	var researchers []string

	for _, record := range records {
		if record.Researcher != "" && record.Researcher != lcms.PlaceholderResearcher {
			researchers = append(researchers, record.Researcher)
		}
	}

	researchers = sortedUnique(researchers)
	if len(researchers) == 0 {
		return nil
	}

	existing, err := l.store.KnownResearchers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list known researchers: %w", err)
	}

	known := make(map[string]bool, len(existing))
	for _, name := range existing {
		known[name] = true
	}

	for _, name := range researchers {
		switch {
		case !known[name] && !l.opts.NewResearcher:
			report.Add(loadreport.KindNewResearcher, l.opts.Mode, fmt.Errorf(
				"researcher %q does not exist; supply --new-researcher to confirm (existing: %s)",
				name, strings.Join(existing, ", "),
			))
		case known[name] && l.opts.NewResearcher:
			report.Add(loadreport.KindNewResearcher, l.opts.Mode, fmt.Errorf(
				"researcher %q already exists but --new-researcher was supplied", name,
			))
		}
	}

	return nil
}

// loadRunScaffolding resolves the database sample and creates (or finds) the
// LC method, MS run sequence, and MS run sample for one sample data header.
// Returns ok=false with a buffered error when the sample is not in the
// database.
func (l *Loader) loadRunScaffolding(ctx context.Context, tx LoadTx, record *lcms.Record, result *LoadResult) (int64, bool, error) {
	name := l.opts.SampleNamePrefix + firstNonEmpty(record.SampleName, record.SampleDataHeader)

	sample, err := tx.FindSample(ctx, name)
	if errors.Is(err, ErrNotFound) {
		result.Report.Add(loadreport.KindUnknownEntity, l.opts.Mode, fmt.Errorf(
			"sample %q (for data header %q) is not in the database", name, record.SampleDataHeader,
		))

		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("failed to look up sample %q: %w", name, err)
	}

	lcMethodID, created, err := tx.GetOrCreateLCMethod(ctx, record.LCProtocol, record.LCRunLength, record.LCDescription)
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve LC method %q: %w", record.LCProtocol, err)
	}

	result.LCMethods.count(created)

	sequenceID, created, err := tx.GetOrCreateSequence(ctx, SequenceKey{
		Researcher: record.Researcher,
		Date:       record.Date,
		Instrument: record.Instrument,
		LCMethodID: lcMethodID,
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve MS run sequence: %w", err)
	}

	result.Sequences.count(created)

	msRunSampleID, created, err := tx.GetOrCreateMSRunSample(ctx, sequenceID, sample.ID, record.Polarity, record.MzMin, record.MzMax)
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve MS run sample: %w", err)
	}

	result.MSRunSamples.count(created)

	return msRunSampleID, true, nil
}

// loadPeakGroup writes one (sample, compound) peak group with its labels and
// peak data, or classifies why it cannot: an existing identical group is an
// exact duplicate (judged collectively later); an existing group differing
// only in its annotation file means the same compound was measured for the
// same sample in two files, so which file represents the MS run is ambiguous;
// any other difference is a plain conflict.
func (l *Loader) loadPeakGroup(ctx context.Context, tx LoadTx, msRunSampleID int64, header string, record *lcms.Record, cand candidate, file *AnnotationFile, cols sheetColumns, fileID string, dup *duplicateTracker, result *LoadResult) error {
	if !l.hasParentRow(cand) {
		result.Report.Add(loadreport.KindFileStructure, l.opts.Mode, fmt.Errorf(
			"compound %q has no parent isotopologue row in %s", cand.name, file.Name,
		))

		return nil
	}

	groupRecord := PeakGroupRecord{
		MSRunSampleID:      msRunSampleID,
		Name:               cand.name,
		Formula:            cand.formula,
		AnnotationFileID:   fileID,
		AnnotationFileName: file.Name,
		CompoundIDs:        compoundIDs(cand.compounds),
	}

	existing, err := tx.FindPeakGroup(ctx, msRunSampleID, cand.name)

	switch {
	case errors.Is(err, ErrNotFound):
		// fall through to the insert below
	case err != nil:
		return fmt.Errorf("failed to look up peak group %q: %w", cand.name, err)
	default:
		diffs := existing.ConflictingFields(groupRecord)

		identity := MSRunIdentity{
			SampleName:  firstNonEmpty(record.SampleName, header),
			Researcher:  record.Researcher,
			Date:        record.Date,
			LCProtocol:  record.LCProtocol,
			LCRunLength: record.LCRunLength,
			Instrument:  record.Instrument,
			Polarity:    record.Polarity,
			MzMin:       record.MzMin,
			MzMax:       record.MzMax,
		}

		switch {
		case len(diffs) == 0:
			dup.add(fmt.Sprintf("peak group %q for sample data header %q", cand.name, header))
			result.PeakGroups.Existing++
		case len(diffs) == 1 && diffs[0] == "peak annotation file":
			result.Report.Add(loadreport.KindAmbiguousMSRun, l.opts.Mode, fmt.Errorf(
				"peak group %q under MS run %s was already annotated by %s; loading it again from %s leaves the MS run ambiguous",
				cand.name, identity, existing.AnnotationFileName, file.Name,
			))
		default:
			result.Report.Add(loadreport.KindConflictingData, l.opts.Mode, fmt.Errorf(
				"peak group %q under MS run %s already exists with different %s",
				cand.name, identity, strings.Join(diffs, ", "),
			))
		}

		return nil
	}

	groupID, err := tx.InsertPeakGroup(ctx, groupRecord, l.labelElements(cand))
	if err != nil {
		return fmt.Errorf("failed to insert peak group %q: %w", cand.name, err)
	}

	result.PeakGroups.Created++

	dataRecords := l.buildPeakData(groupID, header, cand, file, cols, result)
	for _, dataRecord := range dataRecords {
		if _, err := tx.InsertPeakData(ctx, dataRecord); err != nil {
			return fmt.Errorf("failed to insert peak data for %q: %w", cand.name, err)
		}

		result.PeakData.Created++
	}

	return nil
}

// labelElements returns the tracer-labeled elements a peak group's label rows
// cover: the formula's elements intersected with the tracer's, or, for a
// formula-less sheet, the elements actually observed.
func (l *Loader) labelElements(cand candidate) []string {
	var elements []string

	if cand.formula != "" && len(l.opts.Tracer) > 0 {
		for _, obs := range isotope.ElementsInFormula(cand.formula, l.opts.Tracer) {
			elements = append(elements, obs.Element)
		}

		return elements
	}

	for _, row := range cand.rows {
		for _, obs := range row.observations {
			elements = append(elements, obs.Element)
		}
	}

	return sortedUnique(elements)
}

// buildPeakData produces the peak data rows of one peak group for one sample
// column.
//
// Accucor data is enumerated by labeled count, from zero to the compound's
// atom count of the labeled element (or the highest observed count when the
// sheet carries no formula): counts with no corrected row get a zero
// corrected abundance, and raw abundance / medMz / medRt stay nil unless an
// original sheet row sources them. Isocorr data maps one row per corrected
// sheet row, raw fields always nil.
func (l *Loader) buildPeakData(groupID int64, header string, cand candidate, file *AnnotationFile, cols sheetColumns, result *LoadResult) []PeakDataRecord {
	sampleCol := file.Corrected.ColumnIndex(header)

	if file.Format == FormatIsocorr {
		var records []PeakDataRecord

		for _, row := range cand.rows {
			records = append(records, PeakDataRecord{
				PeakGroupID:        groupID,
				CorrectedAbundance: l.parseAbundance(file, row, sampleCol, result),
				Labels:             row.observations,
			})
		}

		return records
	}

	element := cols.labelElement
	// All accucor rows share the label column's element and mass number, and
	// the parent row's existence is already guaranteed.
	mass := cand.rows[0].observations[0].MassNumber

	maxCount := 0
	if cand.formula != "" {
		maxCount = isotope.AtomCount(cand.formula, element)
	}

	byCount := make(map[int]annotationRow, len(cand.rows))

	for _, row := range cand.rows {
		byCount[row.labeledCount()] = row

		if row.labeledCount() > maxCount {
			maxCount = row.labeledCount()
		}
	}

	original := l.originalRowsByCount(cand.name, file)

	var records []PeakDataRecord

	for count := 0; count <= maxCount; count++ {
		dataRecord := PeakDataRecord{
			PeakGroupID: groupID,
			Labels: []isotope.Observation{{
				Element:    element,
				MassNumber: mass,
				Count:      count,
				Parent:     count == 0,
			}},
		}

		if row, ok := byCount[count]; ok {
			dataRecord.CorrectedAbundance = l.parseAbundance(file, row, sampleCol, result)
		}

		if originalRow, ok := original[count]; ok {
			dataRecord.RawAbundance = parseFloatCell(file.Original.Cell(originalRow, file.Original.ColumnIndex(header)))
			dataRecord.MedMz = parseFloatCell(file.Original.Cell(originalRow, file.Original.ColumnIndex(colMedMz)))
			dataRecord.MedRt = parseFloatCell(file.Original.Cell(originalRow, file.Original.ColumnIndex(colMedRt)))
		}

		records = append(records, dataRecord)
	}

	return records
}

// originalRowsByCount indexes the original sheet's rows for one compound by
// their labeled count. A PARENT label still indexes as count zero when no
// tracer is configured; other unparseable label cells are skipped, since the
// corrected sheet is the source of record and the original only enriches it.
func (l *Loader) originalRowsByCount(compound string, file *AnnotationFile) map[int][]string {
	byCount := make(map[int][]string)

	if file.Original == nil {
		return byCount
	}

	compoundCol := file.Original.ColumnIndex(colCompound)
	labelCol := file.Original.ColumnIndex(colLabel)

	if compoundCol < 0 || labelCol < 0 {
		return byCount
	}

	for _, row := range file.Original.Rows {
		if !strings.EqualFold(file.Original.Cell(row, compoundCol), compound) {
			continue
		}

		observations, err := isotope.ParseLabel(file.Original.Cell(row, labelCol), l.opts.Tracer)
		if err != nil {
			if errors.Is(err, isotope.ErrNoTracerLabeledElements) {
				byCount[0] = row
			}

			continue
		}

		count := 0
		for _, obs := range observations {
			count += obs.Count
		}

		byCount[count] = row
	}

	return byCount
}

func (l *Loader) parseAbundance(file *AnnotationFile, row annotationRow, sampleCol int, result *LoadResult) float64 {
	raw := file.Corrected.Cell(row.cells, sampleCol)
	if raw == "" {
		return 0
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		result.Report.Add(loadreport.KindFileStructure, l.opts.Mode, fmt.Errorf(
			"line %d of %s has a non-numeric abundance %q", row.line, file.Name, raw,
		))

		return 0
	}

	return value
}

func (l *Loader) hasParentRow(cand candidate) bool {
	for _, row := range cand.rows {
		if row.isParent() {
			return true
		}
	}

	return false
}

func (l *Loader) logResult(result *LoadResult) {
	l.logger.Info("peak annotation load finished",
		"file", result.File,
		"rolled_back", result.RolledBack,
		"already_loaded", result.AlreadyLoaded,
		"peak_groups_created", result.PeakGroups.Created,
		"peak_data_created", result.PeakData.Created,
		"warnings", len(result.Report.Warnings()),
	)
}

// add records one exact duplicate.
func (d *duplicateTracker) add(description string) {
	d.entries = append(d.entries, description)
}

// finalize judges the collected duplicates: every expected peak group being a
// duplicate means the file was already loaded, which is tolerated with a
// warning; a partial overlap buffers one duplicate error per group.
func (d *duplicateTracker) finalize(fileName string, expected int, mode loadreport.Mode, result *LoadResult) {
	if len(d.entries) == 0 {
		return
	}

	if expected > 0 && len(d.entries) == expected {
		result.AlreadyLoaded = true
		result.Report.Warn(loadreport.KindDuplicateData, fmt.Errorf(
			"%s appears to have been loaded before: all %d peak groups already exist unchanged", fileName, expected,
		))

		return
	}

	for _, entry := range d.entries {
		result.Report.Add(loadreport.KindDuplicateData, mode, fmt.Errorf("%s already exists unchanged", entry))
	}
}

func (c *EntityCounts) count(created bool) {
	if created {
		c.Created++
	} else {
		c.Existing++
	}
}

func compoundIDs(compounds []CompoundRef) []int64 {
	ids := make([]int64, 0, len(compounds))
	for _, c := range compounds {
		ids = append(ids, c.ID)
	}

	return ids
}

// parseFloatCell parses an optional numeric cell: empty or unparseable cells
// yield nil rather than zero, preserving the measured/absent distinction.
func parseFloatCell(raw string) *float64 {
	if raw == "" {
		return nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}

	return &value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}

	return false
}
