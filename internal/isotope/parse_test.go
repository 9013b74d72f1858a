package isotope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var carbonNitrogenTracer = []Observation{
	{Element: "C", MassNumber: 13},
	{Element: "N", MassNumber: 15},
}

func TestParseLabel_ParentReturnsFullTracerSetZeroed(t *testing.T) {
	observations, err := ParseLabel("C12 PARENT", carbonNitrogenTracer)
	require.NoError(t, err)

	// The parent row expands to the full tracer set, not just the element
	// written before PARENT, with every count forced to zero.
	require.Len(t, observations, 2)

	for i, obs := range observations {
		assert.Equal(t, carbonNitrogenTracer[i].Element, obs.Element)
		assert.Equal(t, carbonNitrogenTracer[i].MassNumber, obs.MassNumber)
		assert.Zero(t, obs.Count)
		assert.True(t, obs.Parent)
	}
}

func TestParseLabel_ParentRequiresTracerSet(t *testing.T) {
	_, err := ParseLabel("C12 PARENT", nil)
	assert.ErrorIs(t, err, ErrNoTracerLabeledElements)
}

func TestParseLabel_CountedForms(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  []Observation
	}{
		{
			name:  "single element",
			label: "C13-label-3",
			want:  []Observation{{Element: "C", MassNumber: 13, Count: 3}},
		},
		{
			name:  "two elements",
			label: "C13N15-label-2-1",
			want: []Observation{
				{Element: "C", MassNumber: 13, Count: 2},
				{Element: "N", MassNumber: 15, Count: 1},
			},
		},
		{
			name:  "deuterium",
			label: "H2-label-4",
			want:  []Observation{{Element: "H", MassNumber: 2, Count: 4}},
		},
		{
			name:  "zero count is a detected label",
			label: "N15-label-0",
			want:  []Observation{{Element: "N", MassNumber: 15, Count: 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observations, err := ParseLabel(tt.label, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, observations)
		})
	}
}

func TestParseLabel_RoundTrip(t *testing.T) {
	labels := []string{
		"C13-label-3",
		"C13N15-label-2-1",
		"H2O17-label-1-1",
		"C13N15S34-label-6-2-1",
	}

	for _, label := range labels {
		t.Run(label, func(t *testing.T) {
			observations, err := ParseLabel(label, nil)
			require.NoError(t, err)

			reparsed, err := ParseLabel(FormatLabel(observations), nil)
			require.NoError(t, err)
			assert.Equal(t, observations, reparsed)
		})
	}
}

func TestParseLabel_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		label string
	}{
		{"empty string", ""},
		{"counts without element prefix", "label-5"},
		{"dash counts without element prefix", "-label-5"},
		{"prefix without counts", "C13-label"},
		{"count group mismatch", "C13N15-label-2"},
		{"garbage", "totally not a label"},
		{"lowercase element", "c13-label-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observations, err := ParseLabel(tt.label, carbonNitrogenTracer)
			require.Error(t, err)
			assert.Nil(t, observations, "malformed labels must never yield observations silently")

			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestParseLabel_UnsupportedElement(t *testing.T) {
	_, err := ParseLabel("Xe129-label-1", nil)

	var parseErr *ParseError

	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Error(), "Xe")
}

func TestParseLabel_DuplicateTracerMatch(t *testing.T) {
	_, err := ParseLabel("C13N15C13-label-2-1-1", []Observation{{Element: "C", MassNumber: 13}})

	var dupeErr *DupeError

	require.ErrorAs(t, err, &dupeErr)
	assert.Equal(t, "C", dupeErr.Element)
	assert.Equal(t, 13, dupeErr.MassNumber)
}

func TestReconcile_PadsMissingTracerElements(t *testing.T) {
	parsed := []Observation{{Element: "C", MassNumber: 13, Count: 2}}

	result := Reconcile(parsed, carbonNitrogenTracer)

	require.Len(t, result.Observations, 2)
	assert.Equal(t, Observation{Element: "C", MassNumber: 13, Count: 2}, result.Observations[0])
	assert.Equal(t, Observation{Element: "N", MassNumber: 15, Count: 0}, result.Observations[1])
	assert.Empty(t, result.Unexpected)
}

func TestReconcile_EmptyRowIsNotPadded(t *testing.T) {
	result := Reconcile(nil, carbonNitrogenTracer)

	assert.Empty(t, result.Observations)
	assert.Empty(t, result.Unexpected)
}

func TestReconcile_FlagsUnexpectedIsotopes(t *testing.T) {
	parsed := []Observation{
		{Element: "C", MassNumber: 13, Count: 1},
		{Element: "S", MassNumber: 34, Count: 1},
	}

	result := Reconcile(parsed, carbonNitrogenTracer)

	require.Len(t, result.Unexpected, 1)
	assert.Equal(t, "S", result.Unexpected[0].Element)

	// The unexpected isotope stays in the completed list; policy for it is the
	// caller's call.
	assert.Len(t, result.Observations, 3)
}

func TestAtomCount(t *testing.T) {
	tests := []struct {
		formula string
		element string
		want    int
	}{
		{"C6H12O6", "C", 6},
		{"C6H12O6", "H", 12},
		{"C6H12O6", "N", 0},
		{"CH3COOH", "C", 2},
		{"CH3COOH", "O", 2},
		{"C41H66N7O17P3S", "S", 1},
		{"C41H66N7O17P3S", "N", 7},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AtomCount(tt.formula, tt.element), "%s in %s", tt.element, tt.formula)
	}
}

func TestElementsInFormula(t *testing.T) {
	tracer := []Observation{
		{Element: "C", MassNumber: 13},
		{Element: "N", MassNumber: 15},
	}

	present := ElementsInFormula("C6H12O6", tracer)
	require.Len(t, present, 1)
	assert.Equal(t, "C", present[0].Element)
}

func TestDefaultMassNumber(t *testing.T) {
	mass, err := DefaultMassNumber("C")
	require.NoError(t, err)
	assert.Equal(t, 13, mass)

	_, err = DefaultMassNumber("P")
	assert.Error(t, err)
}
