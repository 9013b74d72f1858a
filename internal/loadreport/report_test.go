package loadreport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_ZeroValueNotFatal(t *testing.T) {
	var r Report

	assert.False(t, r.Fatal())
	assert.NoError(t, r.Err())
	assert.Empty(t, r.Entries())
}

func TestReport_BufferingDoesNotStopAccumulation(t *testing.T) {
	var r Report

	r.Add(KindUnknownEntity, ModeLoad, errors.New("unknown compound: glucoze"))
	r.Add(KindConflictingData, ModeLoad, errors.New("formula mismatch for citrate"))
	r.Warn(KindUnexpectedIsotopes, errors.New("observed S34 not in tracer set"))

	assert.Len(t, r.Entries(), 3)
	assert.Len(t, r.Errors(), 2)
	assert.Len(t, r.Warnings(), 1)
	assert.True(t, r.Fatal())
}

func TestReport_NilErrorIgnored(t *testing.T) {
	var r Report

	r.Add(KindUnknownEntity, ModeLoad, nil)

	assert.Empty(t, r.Entries())
	assert.False(t, r.Fatal())
}

func TestClassify_ValidateModeDowngrades(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		mode Mode
		want Severity
	}{
		{"new researcher is fatal during load", KindNewResearcher, ModeLoad, SeverityError},
		{"new researcher is a warning in validate mode", KindNewResearcher, ModeValidate, SeverityWarning},
		{"missing default is a warning in validate mode", KindMissingDefault, ModeValidate, SeverityWarning},
		{"unexpected isotopes warn during load", KindUnexpectedIsotopes, ModeLoad, SeverityWarning},
		{"unexpected isotopes warn during dry run", KindUnexpectedIsotopes, ModeDryRun, SeverityWarning},
		{"unexpected isotopes are errors in validate mode", KindUnexpectedIsotopes, ModeValidate, SeverityError},
		{"conflicting data is always fatal", KindConflictingData, ModeValidate, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.kind, tt.mode))
		})
	}
}

func TestReport_SummarizeGroupsByKind(t *testing.T) {
	var r Report

	r.Add(KindConflictingData, ModeLoad, errors.New("row 2: polarity differs"))
	r.Add(KindUnknownEntity, ModeLoad, errors.New("unknown sample: xz1"))
	r.Add(KindConflictingData, ModeLoad, errors.New("row 9: mz_min differs"))

	summaries := r.Summarize()
	require.Len(t, summaries, 2)

	// Ordered by first occurrence.
	assert.Equal(t, KindConflictingData, summaries[0].Kind)
	assert.Equal(t, 2, summaries[0].Count)
	assert.Equal(t, KindUnknownEntity, summaries[1].Kind)
	assert.Equal(t, 1, summaries[1].Count)
}

func TestReport_ErrAggregatesAndUnwraps(t *testing.T) {
	var r Report

	sentinel := errors.New("unknown compound: foo")
	r.Add(KindUnknownEntity, ModeLoad, sentinel)
	r.Add(KindUnknownEntity, ModeLoad, errors.New("unknown compound: bar"))

	err := r.Err()
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "unknown compound: foo")
	assert.Contains(t, err.Error(), "1 problem kind(s)")
}

func TestReport_WarningsAloneAreNotFatal(t *testing.T) {
	var r Report

	r.Warn(KindUnexpectedIsotopes, errors.New("extra label"))
	r.Warn(KindMissingDefault, errors.New("no default polarity"))

	assert.False(t, r.Fatal())
	assert.NoError(t, r.Err())
}

func TestReport_Merge(t *testing.T) {
	var a, b Report

	a.Add(KindFileStructure, ModeLoad, errors.New("missing corrected sheet"))
	b.Add(KindCardinalityMismatch, ModeLoad, errors.New("original has 3 extra sample columns"))
	b.Warn(KindUnexpectedIsotopes, errors.New("extra"))

	a.Merge(&b)
	a.Merge(nil)

	assert.Len(t, a.Entries(), 3)
	assert.Equal(t, KindFileStructure, a.Entries()[0].Kind)
	assert.Equal(t, KindCardinalityMismatch, a.Entries()[1].Kind)
}

func TestReport_HasAndCountKind(t *testing.T) {
	var r Report

	r.Add(KindDuplicateData, ModeLoad, errors.New("dup group citrate"))
	r.Add(KindDuplicateData, ModeLoad, errors.New("dup group serine"))

	assert.True(t, r.Has(KindDuplicateData))
	assert.False(t, r.Has(KindAmbiguousMSRun))
	assert.Equal(t, 2, r.CountKind(KindDuplicateData))
}
