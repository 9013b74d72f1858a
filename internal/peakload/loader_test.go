package peakload_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracekit-io/tracekit/internal/isotope"
	"github.com/tracekit-io/tracekit/internal/lcms"
	"github.com/tracekit-io/tracekit/internal/loadreport"
	"github.com/tracekit-io/tracekit/internal/mzxml"
	"github.com/tracekit-io/tracekit/internal/peakload"
	"github.com/tracekit-io/tracekit/internal/storage"
)

const glycineCSV = `Compound,C_Label,BAT-xz971
glycine,0,1000
glycine,1,500
glycine,2,250
`

const serineIsocorrCSV = `compound,formula,isotopeLabel,BAT-xz971
serine,C3H7NO3,C12 PARENT,4000
serine,C3H7NO3,C13-label-1,800
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededStore() *storage.MemoryStore {
	store := storage.NewMemoryStore()
	store.SeedCompound("glycine", "C2H5NO2", "gly")
	store.SeedCompound("serine", "C3H7NO3")
	store.SeedSample("BAT-xz971")
	store.SeedSample("Br-xz982")
	store.SeedResearcher("George Costanza")

	return store
}

func completeDefaults() lcms.Defaults {
	return lcms.Defaults{
		Researcher:  "George Costanza",
		Date:        time.Date(2021, 4, 29, 0, 0, 0, 0, time.UTC),
		Instrument:  "QE",
		LCProtocol:  "polar-HILIC",
		LCRunLength: 25,
		Polarity:    "positive",
	}
}

func carbonTracer() []isotope.Observation {
	return []isotope.Observation{{Element: "C", MassNumber: 13}}
}

func defaultOptions() peakload.LoaderOptions {
	return peakload.LoaderOptions{
		Mode:     loadreport.ModeLoad,
		Tracer:   carbonTracer(),
		Defaults: completeDefaults(),
	}
}

func loadCSV(t *testing.T, store *storage.MemoryStore, csv, name string, isocorr bool, opts peakload.LoaderOptions) (*peakload.LoadResult, error) {
	t.Helper()

	file, err := peakload.ReadCSV(strings.NewReader(csv), name, isocorr)
	require.NoError(t, err)

	loader := peakload.NewLoader(store, discardLogger(), opts)

	return loader.Load(context.Background(), file, nil, nil)
}

func TestLoad_CorrectedOnlyCSV(t *testing.T) {
	// A corrected-only CSV with glycine counts 0-2 yields one peak group and
	// exactly three peak data rows whose raw fields stay nil: no original
	// sheet sourced them.
	store := seededStore()

	result, err := loadCSV(t, store, glycineCSV, "accucor1.csv", false, defaultOptions())
	require.NoError(t, err)

	assert.False(t, result.RolledBack)
	assert.Equal(t, 1, result.PeakGroups.Created)
	assert.Equal(t, 3, result.PeakData.Created)

	groups := store.PeakGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, "glycine", groups[0].Name)
	assert.Equal(t, "accucor1.csv", groups[0].AnnotationFileName)
	require.Len(t, groups[0].CompoundIDs, 1)

	data := store.PeakData()
	require.Len(t, data, 3)

	wantAbundance := []float64{1000, 500, 250}

	for i, d := range data {
		assert.Nil(t, d.RawAbundance, "raw abundance must stay nil without an original sheet")
		assert.Nil(t, d.MedMz)
		assert.Nil(t, d.MedRt)
		assert.InDelta(t, wantAbundance[i], d.CorrectedAbundance, 1e-9)

		require.Len(t, d.Labels, 1)
		assert.Equal(t, "C", d.Labels[0].Element)
		assert.Equal(t, 13, d.Labels[0].MassNumber)
		assert.Equal(t, i, d.Labels[0].Count)
	}

	assert.Equal(t, []string{"C"}, store.PeakGroupLabels("glycine"))
}

func TestLoad_ReloadingSameFileIsTolerated(t *testing.T) {
	store := seededStore()

	_, err := loadCSV(t, store, glycineCSV, "accucor1.csv", false, defaultOptions())
	require.NoError(t, err)

	result, err := loadCSV(t, store, glycineCSV, "accucor1.csv", false, defaultOptions())
	require.NoError(t, err, "a full reload is not an error")

	assert.True(t, result.AlreadyLoaded)
	assert.Equal(t, 0, result.PeakGroups.Created)
	assert.Equal(t, 1, result.PeakGroups.Existing)
	assert.True(t, result.Report.Has(loadreport.KindDuplicateData))
	assert.False(t, result.Report.Fatal())

	assert.Len(t, store.PeakGroups(), 1, "nothing new was written")
}

func TestLoad_GrownFileReloadFails(t *testing.T) {
	store := seededStore()

	_, err := loadCSV(t, store, glycineCSV, "accucor1.csv", false, defaultOptions())
	require.NoError(t, err)

	// The same file with two serine rows appended: glycine is now a partial
	// duplicate, which is an error rather than the tolerated full reload.
	grown := glycineCSV + "serine,0,4000\nserine,1,800\n"

	result, err := loadCSV(t, store, grown, "accucor1.csv", false, defaultOptions())
	require.Error(t, err)
	require.True(t, loadreport.IsFatal(err))

	assert.False(t, result.AlreadyLoaded)
	assert.True(t, result.RolledBack)
	assert.True(t, result.Report.Has(loadreport.KindDuplicateData))
	assert.Contains(t, result.Report.Errors()[0].Err.Error(), "already exists unchanged")

	assert.Len(t, store.PeakGroups(), 1, "the serine rows were rolled back")
}

func TestLoad_SameCompoundFromDifferentFileIsAmbiguous(t *testing.T) {
	store := seededStore()

	_, err := loadCSV(t, store, glycineCSV, "accucor1.csv", false, defaultOptions())
	require.NoError(t, err)

	result, err := loadCSV(t, store, glycineCSV, "accucor2.csv", false, defaultOptions())
	require.Error(t, err)
	require.True(t, loadreport.IsFatal(err))

	assert.True(t, result.Report.Has(loadreport.KindAmbiguousMSRun))
	assert.True(t, result.RolledBack)
	assert.Len(t, store.PeakGroups(), 1)
}

func TestLoad_ConflictingFormulaIsGenericConflict(t *testing.T) {
	store := seededStore()

	opts := defaultOptions()

	_, err := loadCSV(t, store, serineIsocorrCSV, "isocorr1.csv", true, opts)
	require.NoError(t, err)

	changed := strings.ReplaceAll(serineIsocorrCSV, "C3H7NO3", "C3H8NO3")

	result, err := loadCSV(t, store, changed, "isocorr2.csv", true, opts)
	require.Error(t, err)

	// Formula and annotation file both differ, so this is not the
	// ambiguous-MSRun case.
	assert.True(t, result.Report.Has(loadreport.KindConflictingData))
	assert.False(t, result.Report.Has(loadreport.KindAmbiguousMSRun))
}

func TestLoad_IsocorrPeakData(t *testing.T) {
	store := seededStore()

	result, err := loadCSV(t, store, serineIsocorrCSV, "isocorr1.csv", true, defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, result.PeakGroups.Created)
	assert.Equal(t, 2, result.PeakData.Created)

	data := store.PeakData()
	require.Len(t, data, 2)
	assert.InDelta(t, 4000.0, data[0].CorrectedAbundance, 1e-9)
	assert.True(t, data[0].Labels[0].Parent)
	assert.InDelta(t, 800.0, data[1].CorrectedAbundance, 1e-9)
	assert.Equal(t, 1, data[1].Labels[0].Count)
}

func TestLoad_UnknownCompoundPurgesCandidate(t *testing.T) {
	csv := glycineCSV + "unobtainium,0,10\nunobtainium,1,5\n"

	store := seededStore()

	result, err := loadCSV(t, store, csv, "accucor1.csv", false, defaultOptions())
	require.Error(t, err)

	assert.Equal(t, 1, result.Report.CountKind(loadreport.KindUnknownEntity),
		"one error for the unknown compound, no downstream pile-on")
	assert.True(t, result.RolledBack)
	assert.Empty(t, store.PeakGroups())
}

func TestLoad_CompoundSynonymResolves(t *testing.T) {
	csv := strings.ReplaceAll(glycineCSV, "glycine", "GLY")

	store := seededStore()

	_, err := loadCSV(t, store, csv, "accucor1.csv", false, defaultOptions())
	require.NoError(t, err, "synonym lookup is case-insensitive")

	groups := store.PeakGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, "GLY", groups[0].Name, "the peak group keeps the file's spelling")
}

func TestLoad_ResearcherValidation(t *testing.T) {
	t.Run("unknown researcher fails a load", func(t *testing.T) {
		opts := defaultOptions()
		opts.Defaults.Researcher = "Newcomer"

		result, err := loadCSV(t, seededStore(), glycineCSV, "accucor1.csv", false, opts)
		require.Error(t, err)
		assert.True(t, result.Report.Has(loadreport.KindNewResearcher))
	})

	t.Run("confirmed new researcher loads", func(t *testing.T) {
		opts := defaultOptions()
		opts.Defaults.Researcher = "Newcomer"
		opts.NewResearcher = true

		_, err := loadCSV(t, seededStore(), glycineCSV, "accucor1.csv", false, opts)
		require.NoError(t, err)
	})

	t.Run("confirming an existing researcher fails", func(t *testing.T) {
		opts := defaultOptions()
		opts.NewResearcher = true

		result, err := loadCSV(t, seededStore(), glycineCSV, "accucor1.csv", false, opts)
		require.Error(t, err)
		assert.Contains(t, result.Report.Errors()[0].Err.Error(), "already exists")
	})

	t.Run("validate mode downgrades to a warning", func(t *testing.T) {
		opts := defaultOptions()
		opts.Mode = loadreport.ModeValidate
		opts.Defaults.Researcher = "Newcomer"

		result, err := loadCSV(t, seededStore(), glycineCSV, "accucor1.csv", false, opts)
		require.NoError(t, err)
		assert.True(t, result.RolledBack)
		assert.NotEmpty(t, result.Report.Warnings())
	})
}

func TestLoad_SkipSamples(t *testing.T) {
	csv := `Compound,C_Label,BAT-xz971,Br-xz982
glycine,0,1000,900
glycine,1,500,450
`

	store := seededStore()

	opts := defaultOptions()
	opts.SkipSamples = []string{"Br-xz982"}

	result, err := loadCSV(t, store, csv, "accucor1.csv", false, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"Br-xz982"}, result.SkippedSamples)
	assert.Equal(t, 1, result.MSRunSamples.Created)
	assert.Len(t, store.PeakGroups(), 1)
}

func TestLoad_SampleNamePrefix(t *testing.T) {
	store := seededStore()
	store.SeedSample("study1_BAT-xz971")

	csv := glycineCSV

	opts := defaultOptions()
	opts.SampleNamePrefix = "study1_"

	_, err := loadCSV(t, store, csv, "accucor1.csv", false, opts)
	require.NoError(t, err)
}

func TestLoad_SampleNotInDatabase(t *testing.T) {
	csv := strings.ReplaceAll(glycineCSV, "BAT-xz971", "Missing-sample")

	store := seededStore()

	result, err := loadCSV(t, store, csv, "accucor1.csv", false, defaultOptions())
	require.Error(t, err)

	assert.True(t, result.Report.Has(loadreport.KindUnknownEntity))
	assert.True(t, result.RolledBack)
	assert.Empty(t, store.PeakGroups())
}

func TestLoad_DryRunRollsBack(t *testing.T) {
	store := seededStore()

	opts := defaultOptions()
	opts.Mode = loadreport.ModeDryRun

	result, err := loadCSV(t, store, glycineCSV, "accucor1.csv", false, opts)
	require.NoError(t, err)

	assert.True(t, result.RolledBack)
	assert.Equal(t, 1, result.PeakGroups.Created, "the dry run reports what would have happened")
	assert.Empty(t, store.PeakGroups(), "nothing was committed")
}

func TestLoad_UnexpectedIsotopeWarnsButLoads(t *testing.T) {
	csv := `compound,formula,isotopeLabel,BAT-xz971
serine,C3H7NO3,C12 PARENT,4000
serine,C3H7NO3,C13S34-label-1-1,800
`

	store := seededStore()

	result, err := loadCSV(t, store, csv, "isocorr1.csv", true, defaultOptions())
	require.NoError(t, err, "contamination warns, it does not fail a load")

	assert.True(t, result.Report.Has(loadreport.KindUnexpectedIsotopes))
	assert.False(t, result.RolledBack)
	assert.Len(t, store.PeakGroups(), 1)
}

func TestLoad_DifferentMzWindowsLoadSeparately(t *testing.T) {
	store := seededStore()

	window := func(lo, hi float64) peakload.LoaderOptions {
		opts := defaultOptions()
		opts.Defaults.MzMin = &lo
		opts.Defaults.MzMax = &hi

		return opts
	}

	_, err := loadCSV(t, store, glycineCSV, "accucor1.csv", false, window(70, 1000))
	require.NoError(t, err)

	// A different scan window is a distinct MS run sample, so the same
	// sample and compound load again instead of colliding.
	result, err := loadCSV(t, store, glycineCSV, "accucor2.csv", false, window(100, 1500))
	require.NoError(t, err)
	assert.False(t, result.RolledBack)
	assert.Equal(t, 1, result.MSRunSamples.Created)
	assert.Len(t, store.PeakGroups(), 2)
}

func TestLoad_StrictUnexpectedIsotopesFails(t *testing.T) {
	csv := `compound,formula,isotopeLabel,BAT-xz971
serine,C3H7NO3,C12 PARENT,4000
serine,C3H7NO3,C13S34-label-1-1,800
`

	store := seededStore()
	opts := defaultOptions()
	opts.UnexpectedIsotopesFatal = true

	result, err := loadCSV(t, store, csv, "isocorr1.csv", true, opts)
	require.Error(t, err)
	assert.True(t, loadreport.IsFatal(err))
	assert.True(t, result.RolledBack)
	assert.Empty(t, store.PeakGroups())
}

func TestLoad_AllInputFilesArchived(t *testing.T) {
	metadataCSV := "tracebase sample name,sample data header,mzxml filename,peak annotation filename," +
		"instrument,operator,date,ms mode,lc method,lc run length,lc description\n" +
		"BAT-xz971,BAT-xz971,BAT-xz971.mzXML,accucor1.csv,QE,George Costanza,2021-04-29,positive,polar-HILIC,25,\n"

	metadata, err := lcms.ParseCSV(strings.NewReader(metadataCSV), "lcms.csv")
	require.NoError(t, err)

	mzXML := `<mzXML><msRun>
		<parentFile fileName="/raw/BAT-xz971.raw"/>
		<scan num="1" polarity="+" lowMz="70" highMz="1000"></scan>
	</msRun></mzXML>`

	mz, err := mzxml.Parse(strings.NewReader(mzXML), "BAT-xz971.mzXML")
	require.NoError(t, err)

	store := seededStore()

	file, err := peakload.ReadCSV(strings.NewReader(glycineCSV), "accucor1.csv", false)
	require.NoError(t, err)

	loader := peakload.NewLoader(store, discardLogger(), defaultOptions())

	result, err := loader.Load(context.Background(), file, metadata, []*mzxml.File{mz})
	require.NoError(t, err)
	assert.False(t, result.RolledBack)

	archives := store.ArchiveFiles()
	require.Len(t, archives, 3)

	byType := make(map[string]string, len(archives))
	for _, archive := range archives {
		byType[archive.FileType] = archive.Filename
	}

	assert.Equal(t, "accucor1.csv", byType[peakload.FileTypePeakAnnotation])
	assert.Equal(t, "lcms.csv", byType[peakload.FileTypeLCMSMetadata])
	assert.Equal(t, "BAT-xz971.mzXML", byType[peakload.FileTypeMzXML])
}

func TestLoad_ArchiveFileRecorded(t *testing.T) {
	store := seededStore()

	_, err := loadCSV(t, store, glycineCSV, "accucor1.csv", false, defaultOptions())
	require.NoError(t, err)

	archives := store.ArchiveFiles()
	require.Len(t, archives, 1)
	assert.Equal(t, "accucor1.csv", archives[0].Filename)
	assert.Equal(t, peakload.FileTypePeakAnnotation, archives[0].FileType)
	assert.NotEmpty(t, archives[0].Checksum)
}
