package isotope

import (
	"regexp"
	"strconv"
	"strings"
)

// Label grammar, two alternatives:
//
//	"<ELEM><MASS>... PARENT"            e.g. "C12 PARENT"
//	"<ELEM><MASS>...-label-<c>[-<c>]*"  e.g. "C13N15-label-2-1"
//
// The prefix repeats (element, mass number) pairs; counts after "-label-"
// correspond to the prefix pairs in order.
var (
	parentLabelPattern = regexp.MustCompile(`^((?:[A-Z][a-z]?\d+)+) PARENT$`)
	countLabelPattern  = regexp.MustCompile(`^((?:[A-Z][a-z]?\d+)+)-label((?:-\d+)+)$`)
	isotopePairPattern = regexp.MustCompile(`([A-Z][a-z]?)(\d+)`)
)

// ParseLabel converts an isotope label string into structured observations.
//
// The PARENT form requires tracer to be supplied and returns the full tracer
// labeled-element set with every count forced to zero: parent rows are not
// assumed to correspond 1:1 with the single element written before "PARENT".
//
// The counted form requires the parsed element, mass number, and count groups
// to agree in number; each matched group becomes one non-parent Observation.
// When tracer is non-empty, a prefix that matches the same tracer entry more
// than once fails with *DupeError.
//
// A string matching neither form fails with *ParseError; an empty observation
// list is never returned silently.
func ParseLabel(label string, tracer []Observation) ([]Observation, error) {
	trimmed := strings.TrimSpace(label)

	if m := parentLabelPattern.FindStringSubmatch(trimmed); m != nil {
		return parseParent(trimmed, tracer)
	}

	m := countLabelPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return nil, &ParseError{Label: label, Reason: "does not match PARENT or -label-<counts> form"}
	}

	observations, err := parseCounted(trimmed, m[1], m[2])
	if err != nil {
		return nil, err
	}

	if err := checkTracerDupes(trimmed, observations, tracer); err != nil {
		return nil, err
	}

	return observations, nil
}

// parseParent expands a PARENT label to the tracer set with zeroed counts.
func parseParent(label string, tracer []Observation) ([]Observation, error) {
	if len(tracer) == 0 {
		return nil, ErrNoTracerLabeledElements
	}

	parents := make([]Observation, len(tracer))

	for i, t := range tracer {
		parents[i] = Observation{
			Element:    t.Element,
			MassNumber: t.MassNumber,
			Count:      0,
			Parent:     true,
		}
	}

	return parents, nil
}

// parseCounted parses the "<prefix>-label-<counts>" form into observations.
func parseCounted(label, prefix, countsPart string) ([]Observation, error) {
	pairs := isotopePairPattern.FindAllStringSubmatch(prefix, -1)

	// Leading "-" leaves one empty element after Split.
	countFields := strings.Split(strings.TrimPrefix(countsPart, "-"), "-")

	if len(pairs) != len(countFields) {
		return nil, &ParseError{
			Label: label,
			Reason: "element/mass pairs and counts disagree: " +
				strconv.Itoa(len(pairs)) + " pair(s), " + strconv.Itoa(len(countFields)) + " count(s)",
		}
	}

	observations := make([]Observation, len(pairs))

	for i, pair := range pairs {
		element := pair[1]
		if !IsLabeledElement(element) {
			return nil, &ParseError{Label: label, Reason: "unsupported labeled element " + element}
		}

		mass, err := strconv.Atoi(pair[2])
		if err != nil {
			return nil, &ParseError{Label: label, Reason: "invalid mass number " + pair[2]}
		}

		count, err := strconv.Atoi(countFields[i])
		if err != nil {
			return nil, &ParseError{Label: label, Reason: "invalid count " + countFields[i]}
		}

		observations[i] = Observation{Element: element, MassNumber: mass, Count: count}
	}

	return observations, nil
}

// checkTracerDupes fails when one tracer entry is matched by more than one
// parsed observation, which indicates a malformed label rather than a
// contaminant.
func checkTracerDupes(label string, observations, tracer []Observation) error {
	if len(tracer) == 0 {
		return nil
	}

	for _, t := range tracer {
		matches := 0

		for _, obs := range observations {
			if obs.Element == t.Element && obs.MassNumber == t.MassNumber {
				matches++
			}
		}

		if matches > 1 {
			return &DupeError{Label: label, Element: t.Element, MassNumber: t.MassNumber}
		}
	}

	return nil
}

// ReconcileResult is the outcome of completing one row's observation list
// against the tracer labeled-element set.
type ReconcileResult struct {
	// Observations is the completed list: every tracer element is present,
	// zero-padded where the label did not mention it.
	Observations []Observation

	// Unexpected holds observed isotopes whose element is absent from the
	// tracer set. Biological contamination can legitimately cause these, so
	// the caller decides whether they warn or fail.
	Unexpected []Observation
}

// Reconcile produces the complete observation list for one corrected-data row.
//
// Zero-count entries are padded for any tracer labeled element the parsed
// label did not mention, so downstream aggregate calculations always see a
// full set per labeled element. An empty parsed list is returned as-is: a row
// with no detected label is not padded.
func Reconcile(parsed, tracer []Observation) ReconcileResult {
	if len(parsed) == 0 {
		return ReconcileResult{}
	}

	result := ReconcileResult{Observations: append([]Observation(nil), parsed...)}

	for _, obs := range parsed {
		if !tracerContains(tracer, obs.Element) {
			result.Unexpected = append(result.Unexpected, obs)
		}
	}

	for _, t := range tracer {
		if !observed(result.Observations, t.Element, t.MassNumber) {
			result.Observations = append(result.Observations, Observation{
				Element:    t.Element,
				MassNumber: t.MassNumber,
				Count:      0,
				Parent:     parsed[0].Parent,
			})
		}
	}

	return result
}

func tracerContains(tracer []Observation, element string) bool {
	for _, t := range tracer {
		if t.Element == element {
			return true
		}
	}

	return false
}

func observed(obs []Observation, element string, mass int) bool {
	for _, o := range obs {
		if o.Element == element && o.MassNumber == mass {
			return true
		}
	}

	return false
}
