package peakload

import (
	"fmt"
	"strconv"

	"github.com/tracekit-io/tracekit/internal/isotope"
	"github.com/tracekit-io/tracekit/internal/loadreport"
)

type (
	// annotationRow is one corrected-sheet data row after label parsing: which
	// compound, which isotopologue, and the raw cells for per-sample values.
	annotationRow struct {
		line         int // 1-based sheet line, for messages
		compound     string
		formula      string
		observations []isotope.Observation
		unexpected   []isotope.Observation
		labelKey     string
		cells        []string
	}

	// compoundRows groups a compound's corrected rows in sheet order.
	compoundRows struct {
		name string
		rows []annotationRow
	}

	// sheetColumns caches the resolved column positions of one corrected
	// sheet.
	sheetColumns struct {
		compound     int
		formula      int // -1 when the sheet has none
		label        int // element count column (accucor) or isotopeLabel (isocorr)
		firstSample  int
		labelElement string // accucor only
	}
)

// resolveColumns locates the corrected sheet's fixed columns per format.
func resolveColumns(file *AnnotationFile) (sheetColumns, error) {
	cols := sheetColumns{
		compound: file.Corrected.ColumnIndex(colCompound),
		formula:  file.Corrected.ColumnIndex(colFormula),
	}

	if cols.compound < 0 {
		return cols, ErrNoCompoundHeader
	}

	first, _, err := sampleColumns(file.Corrected)
	if err != nil {
		return cols, err
	}

	cols.firstSample = first

	switch file.Format {
	case FormatIsocorr:
		cols.label = file.Corrected.ColumnIndex(colIsotopeLabel)
	case FormatAccucor:
		cols.label, cols.labelElement, err = elementLabelColumn(file.Corrected)
		if err != nil {
			return cols, err
		}
	}

	return cols, nil
}

// parseRows turns the corrected sheet into per-compound row groups. Rows with
// unparseable labels are excluded with a buffered file-structure error;
// repeated compound+isotopologue combinations are excluded with a buffered
// duplicate-data error. Both keep the rest of the sheet loading.
func parseRows(file *AnnotationFile, cols sheetColumns, tracer []isotope.Observation, mode loadreport.Mode, unexpectedFatal bool, report *loadreport.Report) []compoundRows {
	var groups []compoundRows

	groupIndex := make(map[string]int)
	seen := make(map[string]int)

	for i, cells := range file.Corrected.Rows {
		row := annotationRow{
			line:     i + 2, // +1 for the header row, +1 for 1-based lines
			compound: file.Corrected.Cell(cells, cols.compound),
			cells:    cells,
		}

		if row.compound == "" {
			report.Add(loadreport.KindFileStructure, mode, fmt.Errorf(
				"line %d of %s has no compound name", row.line, file.Name,
			))

			continue
		}

		if cols.formula >= 0 {
			row.formula = file.Corrected.Cell(cells, cols.formula)
		}

		if !parseRowLabel(file, cols, &row, tracer, mode, unexpectedFatal, report) {
			continue
		}

		key := row.compound + "\x00" + row.labelKey
		if prev, dupe := seen[key]; dupe {
			report.Add(loadreport.KindDuplicateData, mode, fmt.Errorf(
				"line %d of %s repeats compound %q isotopologue %q from line %d",
				row.line, file.Name, row.compound, row.labelKey, prev,
			))

			continue
		}

		seen[key] = row.line

		gi, ok := groupIndex[row.compound]
		if !ok {
			groupIndex[row.compound] = len(groups)
			groups = append(groups, compoundRows{name: row.compound})
			gi = len(groups) - 1
		}

		groups[gi].rows = append(groups[gi].rows, row)
	}

	return groups
}

// parseRowLabel fills the row's observations from its label cell. Returns
// false when the row must be excluded.
func parseRowLabel(file *AnnotationFile, cols sheetColumns, row *annotationRow, tracer []isotope.Observation, mode loadreport.Mode, unexpectedFatal bool, report *loadreport.Report) bool {
	switch file.Format {
	case FormatIsocorr:
		label := file.Corrected.Cell(row.cells, cols.label)

		parsed, err := isotope.ParseLabel(label, tracer)
		if err != nil {
			report.Add(loadreport.KindFileStructure, mode, fmt.Errorf(
				"line %d of %s: %w", row.line, file.Name, err,
			))

			return false
		}

		reconciled := isotope.Reconcile(parsed, tracer)
		row.observations = reconciled.Observations
		row.unexpected = reconciled.Unexpected
		row.labelKey = label

		for _, obs := range row.unexpected {
			err := fmt.Errorf(
				"line %d of %s observes %s%d, which is not a tracer-labeled element",
				row.line, file.Name, obs.Element, obs.MassNumber,
			)

			if unexpectedFatal {
				report.Buffer(loadreport.KindUnexpectedIsotopes, loadreport.SeverityError, err)
			} else {
				report.Add(loadreport.KindUnexpectedIsotopes, mode, err)
			}
		}

		return true
	case FormatAccucor:
		raw := file.Corrected.Cell(row.cells, cols.label)

		count, err := strconv.Atoi(raw)
		if err != nil || count < 0 {
			report.Add(loadreport.KindFileStructure, mode, fmt.Errorf(
				"line %d of %s has a non-numeric %s_Label value %q",
				row.line, file.Name, cols.labelElement, raw,
			))

			return false
		}

		mass, err := isotope.DefaultMassNumber(cols.labelElement)
		if err != nil {
			report.Add(loadreport.KindFileStructure, mode, fmt.Errorf(
				"column %s_Label of %s: %w", cols.labelElement, file.Name, err,
			))

			return false
		}

		row.observations = []isotope.Observation{{
			Element:    cols.labelElement,
			MassNumber: mass,
			Count:      count,
			Parent:     count == 0,
		}}
		row.labelKey = fmt.Sprintf("%s:%d", cols.labelElement, count)

		return true
	default:
		return false
	}
}

// labeledCount returns the accucor labeled count of a parsed row.
func (r annotationRow) labeledCount() int {
	if len(r.observations) == 0 {
		return 0
	}

	return r.observations[0].Count
}

// isParent reports whether the row is the unlabeled parent isotopologue:
// every observation carries a zero count.
func (r annotationRow) isParent() bool {
	if len(r.observations) == 0 {
		return false
	}

	for _, obs := range r.observations {
		if obs.Count != 0 {
			return false
		}
	}

	return true
}
