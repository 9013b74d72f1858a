// Package loadreport provides the error accumulator shared by every phase of a
// peak annotation load.
//
// Validation problems are buffered, not raised: each check appends to a Report
// and subsequent checks keep running, so one load attempt yields every problem
// the file has rather than the first one. Fatality is a derived property
// evaluated at checkpoints (end of validation, end of load), never a side
// effect of buffering. Repeated problems of one kind are collapsed into a
// single summary before they are surfaced.
package loadreport

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// Kind classifies a buffered problem. Kinds drive both per-mode severity
	// classification and end-of-run summarization.
	Kind string

	// Mode selects how strictly a load run treats recoverable problems.
	Mode int

	// Severity is the resolved seriousness of one buffered entry.
	Severity int

	// Entry is one buffered problem: what happened, how bad it is, and which
	// taxonomy kind it belongs to.
	Entry struct {
		Kind     Kind
		Severity Severity
		Err      error
	}

	// Report is an ordered accumulator of load problems. The zero value is
	// ready to use. Reports are plain values threaded through (or returned by)
	// load steps; nothing mutates global state.
	Report struct {
		entries []Entry
	}

	// Summary groups all buffered entries of one kind.
	Summary struct {
		Kind    Kind
		Count   int
		Entries []Entry
	}
)

// Problem kinds, mirroring the load error taxonomy.
const (
	KindMissingDefault      Kind = "missing_required_default"
	KindFileStructure       Kind = "invalid_file_structure"
	KindUnknownEntity       Kind = "unknown_entity"
	KindAmbiguousEntity     Kind = "ambiguous_entity"
	KindDuplicateData       Kind = "duplicate_data"
	KindConflictingData     Kind = "conflicting_data"
	KindCrossSourceMismatch Kind = "cross_source_mismatch"
	KindCardinalityMismatch Kind = "cardinality_mismatch"
	KindAmbiguousMSRun      Kind = "ambiguous_msrun"
	KindUnexpectedIsotopes  Kind = "unexpected_isotopes"
	KindNewResearcher       Kind = "new_researcher"
)

const (
	// ModeLoad persists data and aborts on any fatal entry.
	ModeLoad Mode = iota

	// ModeDryRun runs the full validate+load sequence and then forces a
	// rollback, reporting what would have happened.
	ModeDryRun

	// ModeValidate downgrades an enumerated subset of kinds to warnings so an
	// interactive validation surface can show actionable, non-blocking
	// feedback. The transaction still rolls back.
	ModeValidate
)

// String names the mode the way command-line flags spell it.
func (m Mode) String() string {
	switch m {
	case ModeDryRun:
		return "dry-run"
	case ModeValidate:
		return "validate"
	case ModeLoad:
		return "load"
	default:
		return "load"
	}
}

const (
	// SeverityWarning entries are reported but never make a run fatal.
	SeverityWarning Severity = iota

	// SeverityError entries make the run fatal at the next checkpoint.
	SeverityError
)

// validateModeWarnings enumerates kinds an end user cannot fix from the
// validation surface (e.g. confirming a brand-new researcher). In ModeValidate
// these buffer as warnings instead of errors.
var validateModeWarnings = map[Kind]bool{
	KindNewResearcher:  true,
	KindMissingDefault: true,
}

// loadModeWarnings enumerates kinds tolerated during a normal load.
// Unexpected isotopes can be legitimate biological contamination, so they only
// become errors in validate mode.
var loadModeWarnings = map[Kind]bool{
	KindUnexpectedIsotopes: true,
}

// Classify resolves the severity of a problem kind under a mode. This is the
// single decision point for "is this fatal here"; callers buffer with the
// returned severity rather than encoding mode checks at each call site.
func Classify(kind Kind, mode Mode) Severity {
	switch mode {
	case ModeValidate:
		if validateModeWarnings[kind] {
			return SeverityWarning
		}

		return SeverityError
	case ModeLoad, ModeDryRun:
		if loadModeWarnings[kind] {
			return SeverityWarning
		}

		return SeverityError
	default:
		return SeverityError
	}
}

// Buffer appends an entry with an explicit severity.
func (r *Report) Buffer(kind Kind, severity Severity, err error) {
	if err == nil {
		return
	}

	r.entries = append(r.entries, Entry{Kind: kind, Severity: severity, Err: err})
}

// Add appends an entry with the severity Classify resolves for the mode.
func (r *Report) Add(kind Kind, mode Mode, err error) {
	r.Buffer(kind, Classify(kind, mode), err)
}

// Warn appends a warning entry regardless of mode.
func (r *Report) Warn(kind Kind, err error) {
	r.Buffer(kind, SeverityWarning, err)
}

// Merge appends every entry of other onto r, preserving order.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}

	r.entries = append(r.entries, other.entries...)
}

// Entries returns all buffered entries in insertion order.
func (r *Report) Entries() []Entry {
	return r.entries
}

// Errors returns the buffered entries with SeverityError.
func (r *Report) Errors() []Entry {
	return r.filter(SeverityError)
}

// Warnings returns the buffered entries with SeverityWarning.
func (r *Report) Warnings() []Entry {
	return r.filter(SeverityWarning)
}

func (r *Report) filter(severity Severity) []Entry {
	var out []Entry

	for _, e := range r.entries {
		if e.Severity == severity {
			out = append(out, e)
		}
	}

	return out
}

// Fatal reports whether any buffered entry is an error. Callers evaluate this
// at phase checkpoints, not after every buffered entry.
func (r *Report) Fatal() bool {
	for _, e := range r.entries {
		if e.Severity == SeverityError {
			return true
		}
	}

	return false
}

// Has reports whether any entry of the given kind was buffered.
func (r *Report) Has(kind Kind) bool {
	for _, e := range r.entries {
		if e.Kind == kind {
			return true
		}
	}

	return false
}

// CountKind returns the number of buffered entries of the given kind.
func (r *Report) CountKind(kind Kind) int {
	n := 0

	for _, e := range r.entries {
		if e.Kind == kind {
			n++
		}
	}

	return n
}

// Summarize collapses the buffered entries into one Summary per kind, ordered
// by first occurrence. Many near-identical entries (e.g. one conflicting value
// per row) surface as a single grouped summary instead of a wall of messages.
func (r *Report) Summarize() []Summary {
	index := make(map[Kind]int)

	var summaries []Summary

	for _, e := range r.entries {
		i, seen := index[e.Kind]
		if !seen {
			index[e.Kind] = len(summaries)
			summaries = append(summaries, Summary{Kind: e.Kind})
			i = len(summaries) - 1
		}

		summaries[i].Count++
		summaries[i].Entries = append(summaries[i].Entries, e)
	}

	return summaries
}

// Err returns nil when the report has no error entries, otherwise a single
// *FatalError aggregating the summaries. Warnings never contribute.
func (r *Report) Err() error {
	if !r.Fatal() {
		return nil
	}

	return &FatalError{Summaries: r.Summarize()}
}

// FatalError is the aggregate error surfaced when a load run buffered at least
// one error entry. Its message lists one line per kind with counts, followed
// by the individual messages.
type FatalError struct {
	Summaries []Summary
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	var b strings.Builder

	errKinds := 0

	for _, s := range e.Summaries {
		if hasErrors(s) {
			errKinds++
		}
	}

	fmt.Fprintf(&b, "load failed with %d problem kind(s):", errKinds)

	for _, s := range e.Summaries {
		if !hasErrors(s) {
			continue
		}

		fmt.Fprintf(&b, "\n  [%s] %d occurrence(s):", s.Kind, s.Count)

		for _, entry := range s.Entries {
			fmt.Fprintf(&b, "\n    - %v", entry.Err)
		}
	}

	return b.String()
}

// Unwrap exposes the underlying buffered errors to errors.Is / errors.As.
func (e *FatalError) Unwrap() []error {
	var errs []error

	for _, s := range e.Summaries {
		for _, entry := range s.Entries {
			errs = append(errs, entry.Err)
		}
	}

	return errs
}

func hasErrors(s Summary) bool {
	for _, entry := range s.Entries {
		if entry.Severity == SeverityError {
			return true
		}
	}

	return false
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError

	return errors.As(err, &fe)
}
