package peakload

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Well-known corrected/original sheet columns. Everything to the right of the
// right-most recognized non-sample column is treated as a sample column.
const (
	colCompound     = "compound"
	colCompoundID   = "compoundId"
	colFormula      = "formula"
	colLabel        = "label"
	colIsotopeLabel = "isotopeLabel"
	colMetaGroupID  = "metaGroupId"
	colGroupID      = "groupId"
	colGoodPeaks    = "goodPeakCount"
	colMedMz        = "medMz"
	colMedRt        = "medRt"
	colMaxQuality   = "maxQuality"
	colAdductName   = "adductName"
	colExpectedRt   = "expectedRtDiff"
	colPPMDiff      = "ppmDiff"
	colParent       = "parent"
)

var nonSampleColumns = map[string]bool{
	strings.ToLower(colCompound):     true,
	strings.ToLower(colCompoundID):   true,
	strings.ToLower(colFormula):      true,
	strings.ToLower(colLabel):        true,
	strings.ToLower(colIsotopeLabel): true,
	strings.ToLower(colMetaGroupID):  true,
	strings.ToLower(colGroupID):      true,
	strings.ToLower(colGoodPeaks):    true,
	strings.ToLower(colMedMz):        true,
	strings.ToLower(colMedRt):        true,
	strings.ToLower(colMaxQuality):   true,
	strings.ToLower(colAdductName):   true,
	strings.ToLower(colExpectedRt):   true,
	strings.ToLower(colPPMDiff):      true,
	strings.ToLower(colParent):       true,
}

// elementLabelPattern matches the Accucor corrected sheet's single labeled
// count column, e.g. C_Label or N_Label.
var elementLabelPattern = regexp.MustCompile(`^([A-Z][a-z]?)_Label$`)

// isNonSampleColumn reports whether the header names sheet bookkeeping rather
// than a sample.
func isNonSampleColumn(header string) bool {
	if nonSampleColumns[strings.ToLower(header)] {
		return true
	}

	return elementLabelPattern.MatchString(header)
}

// sampleColumns infers the sample columns of a sheet: everything after the
// right-most recognized non-sample column. Returns ErrSampleIndexNotFound
// when no recognized column exists at all, which means the sheet cannot be
// interpreted.
func sampleColumns(t *Table) (first int, headers []string, err error) {
	last := -1

	for i, h := range t.Headers {
		if isNonSampleColumn(h) {
			last = i
		}
	}

	if last < 0 {
		return 0, nil, ErrSampleIndexNotFound
	}

	first = last + 1

	return first, t.Headers[first:], nil
}

// elementLabelColumn finds the Accucor corrected sheet's <Element>_Label
// column. Exactly one must exist: none means the file is not Accucor data,
// and several means a multi-label export that must be loaded as isocorr.
func elementLabelColumn(t *Table) (col int, element string, err error) {
	type match struct {
		col     int
		element string
	}

	var matches []match

	for i, h := range t.Headers {
		if m := elementLabelPattern.FindStringSubmatch(h); m != nil {
			matches = append(matches, match{col: i, element: m[1]})
		}
	}

	switch len(matches) {
	case 0:
		return 0, "", &FormatError{
			Got:        FormatAccucor,
			Reason:     "no <Element>_Label column found in the corrected sheet",
			Suggestion: "re-run with --isocorr-format if this is isocorr data",
		}
	case 1:
		return matches[0].col, matches[0].element, nil
	default:
		var names []string
		for _, m := range matches {
			names = append(names, m.element+"_Label")
		}

		return 0, "", &FormatError{
			Got:    FormatAccucor,
			Reason: fmt.Sprintf("multiple labeled count columns (%s); Accucor data has exactly one", strings.Join(names, ", ")),
		}
	}
}

// sortedUnique returns the distinct values of names, sorted.
func sortedUnique(names []string) []string {
	seen := make(map[string]bool, len(names))

	var out []string

	for _, n := range names {
		if !seen[n] {
			seen[n] = true

			out = append(out, n)
		}
	}

	sort.Strings(out)

	return out
}
