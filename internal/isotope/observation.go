// Package isotope parses El-Maven style isotope label strings into structured
// isotopologue observations and reconciles per-row observations against a
// tracer labeled-element set.
//
// Everything in this package is a pure function: no side effects, determinism,
// and repeat calls are safe. Problems surface as typed errors the loader
// buffers; nothing here decides fatality.
package isotope

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type (
	// Observation is one measured isotopologue peak annotation: which element,
	// which heavy-isotope mass number, and how many substituted atoms. Parent
	// marks the natural-abundance baseline row (zero substitutions).
	//
	// Observations are transient: the parser produces them per corrected-data
	// row and the loader maps them onto peak data label records.
	Observation struct {
		Element    string
		MassNumber int
		Count      int
		Parent     bool
	}

	// ParseError reports a label string that does not match the supported
	// grammar, or one whose element, mass number, and count groups disagree.
	ParseError struct {
		Label  string
		Reason string
	}

	// DupeError reports a label whose prefix matched the same tracer entry
	// more than once (e.g. "C13N15C13-label-2-1-1" against a C13 tracer).
	DupeError struct {
		Label      string
		Element    string
		MassNumber int
	}
)

// ErrNoTracerLabeledElements is returned when a PARENT label is parsed without
// a tracer labeled-element set to expand it against.
var ErrNoTracerLabeledElements = errors.New("cannot parse PARENT label: no tracer labeled elements supplied")

// LabeledElements is the fixed set of element codes that can carry a tracer
// label in supported annotation formats.
var LabeledElements = []string{"C", "N", "H", "O", "S"}

// defaultMassNumbers maps each labeled element to the mass number of its
// conventional heavy isotope, used by the legacy single-element format where
// the file encodes only a count column.
var defaultMassNumbers = map[string]int{
	"C": 13,
	"N": 15,
	"H": 2,
	"O": 17,
	"S": 34,
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse isotope label %q: %s", e.Label, e.Reason)
}

func (e *DupeError) Error() string {
	return fmt.Sprintf(
		"isotope label %q matches tracer element %s%d more than once",
		e.Label, e.Element, e.MassNumber,
	)
}

// IsLabeledElement reports whether code belongs to the supported labeled
// element set.
func IsLabeledElement(code string) bool {
	for _, el := range LabeledElements {
		if el == code {
			return true
		}
	}

	return false
}

// DefaultMassNumber returns the conventional heavy-isotope mass number for a
// labeled element, or an error for elements outside the supported set.
func DefaultMassNumber(element string) (int, error) {
	mass, ok := defaultMassNumbers[element]
	if !ok {
		return 0, fmt.Errorf("no default mass number for element %q", element)
	}

	return mass, nil
}

// formulaAtomPattern matches one element group in a molecular formula, e.g.
// "C6" or "H" (implicit count 1) in "C6H12O6".
var formulaAtomPattern = regexp.MustCompile(`([A-Z][a-z]?)(\d*)`)

// AtomCount returns the number of atoms of element in a molecular formula.
// Repeated element groups accumulate ("CH3COOH" counts 2 carbons).
func AtomCount(formula, element string) int {
	total := 0

	for _, m := range formulaAtomPattern.FindAllStringSubmatch(formula, -1) {
		if m[1] != element {
			continue
		}

		if m[2] == "" {
			total++
			continue
		}

		if n, err := strconv.Atoi(m[2]); err == nil {
			total += n
		}
	}

	return total
}

// ElementsInFormula filters the tracer labeled-element observations down to
// those whose element actually occurs in the molecular formula. Peak group
// label records are created from this filtered set.
func ElementsInFormula(formula string, tracer []Observation) []Observation {
	var present []Observation

	for _, obs := range tracer {
		if AtomCount(formula, obs.Element) > 0 {
			present = append(present, obs)
		}
	}

	return present
}

// SortObservations orders observations by element then mass number, in place.
// Output ordering is deterministic for stable error messages and tests.
func SortObservations(obs []Observation) {
	sort.Slice(obs, func(i, j int) bool {
		if obs[i].Element != obs[j].Element {
			return obs[i].Element < obs[j].Element
		}

		return obs[i].MassNumber < obs[j].MassNumber
	})
}

// FormatLabel serializes observations back into the textual label form, e.g.
// [{C 13 2} {N 15 1}] -> "C13N15-label-2-1". Parent sets serialize to the
// "<prefix> PARENT" form using the first element only, matching how exports
// write parent rows.
func FormatLabel(obs []Observation) string {
	if len(obs) == 0 {
		return ""
	}

	if obs[0].Parent {
		return fmt.Sprintf("%s%d PARENT", obs[0].Element, obs[0].MassNumber)
	}

	var prefix, counts strings.Builder

	for _, o := range obs {
		fmt.Fprintf(&prefix, "%s%d", o.Element, o.MassNumber)
		fmt.Fprintf(&counts, "-%d", o.Count)
	}

	return prefix.String() + "-label" + counts.String()
}
