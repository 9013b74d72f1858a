package main

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tracekit-io/tracekit/internal/isotope"
)

var parseLabelTracer []string

var parseLabelCmd = &cobra.Command{
	Use:   "parse-label [label]",
	Short: "Parse an isotope label string and print the observations",
	Long: `Parses one isotopeLabel cell value the way the loader does and prints
the resulting observations, reconciled against the supplied tracer.

Examples:
  tracekit parse-label "C13-label-2" --tracer C13
  tracekit parse-label "C12 PARENT" --tracer C13
  tracekit parse-label "C13N15-label-2-1" --tracer C13 --tracer N15`,
	Args: cobra.ExactArgs(1),
	RunE: runParseLabel,
}

func init() {
	parseLabelCmd.Flags().StringArrayVar(&parseLabelTracer, "tracer", nil,
		"tracer isotope, e.g. C13 or 15N (repeatable)")
}

func runParseLabel(cmd *cobra.Command, args []string) error {
	tracer, err := parseTracer(parseLabelTracer)
	if err != nil {
		return err
	}

	observations, err := isotope.ParseLabel(args[0], tracer)
	if err != nil {
		return err
	}

	result := isotope.Reconcile(observations, tracer)

	fmt.Printf("label: %s\n", isotope.FormatLabel(result.Observations))

	for _, obs := range result.Observations {
		fmt.Printf("  element=%s mass=%d count=%d parent=%t\n",
			obs.Element, obs.MassNumber, obs.Count, obs.Parent)
	}

	for _, obs := range result.Unexpected {
		fmt.Printf("  unexpected isotope: element=%s mass=%d count=%d\n",
			obs.Element, obs.MassNumber, obs.Count)
	}

	return nil
}

// Tracer flags accept either element-first ("C13") or mass-first ("13C")
// spellings, or a bare element ("C") which takes the most common tracer mass.
var (
	elementFirstPattern = regexp.MustCompile(`^([A-Z][a-z]?)(\d*)$`)
	massFirstPattern    = regexp.MustCompile(`^(\d+)([A-Z][a-z]?)$`)
)

func parseTracer(entries []string) ([]isotope.Observation, error) {
	tracer := make([]isotope.Observation, 0, len(entries))

	for _, entry := range entries {
		obs, err := parseTracerEntry(entry)
		if err != nil {
			return nil, err
		}

		tracer = append(tracer, obs)
	}

	return tracer, nil
}

func parseTracerEntry(entry string) (isotope.Observation, error) {
	element, massText := "", ""

	switch {
	case elementFirstPattern.MatchString(entry):
		m := elementFirstPattern.FindStringSubmatch(entry)
		element, massText = m[1], m[2]
	case massFirstPattern.MatchString(entry):
		m := massFirstPattern.FindStringSubmatch(entry)
		massText, element = m[1], m[2]
	default:
		return isotope.Observation{}, fmt.Errorf(
			"cannot parse tracer %q: expected element and mass number, e.g. C13 or 15N", entry)
	}

	if massText == "" {
		mass, err := isotope.DefaultMassNumber(element)
		if err != nil {
			return isotope.Observation{}, fmt.Errorf("cannot parse tracer %q: %w", entry, err)
		}

		return isotope.Observation{Element: element, MassNumber: mass}, nil
	}

	mass, err := strconv.Atoi(massText)
	if err != nil {
		return isotope.Observation{}, fmt.Errorf("cannot parse tracer %q: %w", entry, err)
	}

	// An explicit mass still needs a known labeled element.
	if _, err := isotope.DefaultMassNumber(element); err != nil {
		return isotope.Observation{}, fmt.Errorf("cannot parse tracer %q: %w", entry, err)
	}

	return isotope.Observation{Element: element, MassNumber: mass}, nil
}
