package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracekit-io/tracekit/internal/config"
	"github.com/tracekit-io/tracekit/internal/events"
	"github.com/tracekit-io/tracekit/internal/lcms"
	"github.com/tracekit-io/tracekit/internal/loadreport"
	"github.com/tracekit-io/tracekit/internal/mzxml"
	"github.com/tracekit-io/tracekit/internal/peakload"
	"github.com/tracekit-io/tracekit/internal/storage"
)

// dateLayouts are the run-date formats accepted on the command line.
var dateLayouts = []string{"2006-01-02", "1/2/2006"}

var loadFlags struct {
	isocorr       bool
	dryRun        bool
	validate      bool
	lcmsFile      string
	mzxmlPaths    []string
	skipSamples   string
	samplePrefix  string
	newResearcher bool
	strictLabels  bool
	tracer        []string
	researcher    string
	date          string
	instrument    string
	lcProtocol    string
	lcRunLength   int
	polarity      string
	mzMin         float64
	mzMax         float64
}

var loadCmd = &cobra.Command{
	Use:   "load [peak annotation file]",
	Short: "Load a peak annotation file into the database",
	Long: `Loads an Accucor or Isocorr peak annotation file (xlsx, csv, or tsv).

The load runs in two phases: a validation phase that buffers every problem it
can find, then a single-transaction load phase. Any fatal problem rolls the
whole file back; a file is loaded completely or not at all.

Examples:
  tracekit load accucor1.xlsx --researcher "..." --date 2021-04-29 \
    --instrument QE --lc-protocol polar-HILIC-25-min --polarity negative
  tracekit load isocorr1.csv --isocorr-format --lcms-file lcms.csv \
    --mzxml BAT-xz971.mzXML --mzxml Br-xz982.mzXML
  tracekit load accucor1.xlsx --dry-run --tracer C13`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	flags := loadCmd.Flags()

	flags.BoolVar(&loadFlags.isocorr, "isocorr-format", false,
		"the file is an Isocorr export (isotopeLabel column) rather than Accucor")
	flags.BoolVar(&loadFlags.dryRun, "dry-run", false,
		"run the full load and then roll back, reporting what would have happened")
	flags.BoolVar(&loadFlags.validate, "validate", false,
		"validation-surface mode: roll back and downgrade user-unfixable problems to warnings")
	flags.StringVar(&loadFlags.lcmsFile, "lcms-file", "",
		"LCMS sample metadata file (csv or tsv)")
	flags.StringArrayVar(&loadFlags.mzxmlPaths, "mzxml", nil,
		"mzXML file for a sample in this run (repeatable)")
	flags.StringVar(&loadFlags.skipSamples, "skip-samples", "",
		"comma-separated sample data headers to skip (blanks, QC injections)")
	flags.StringVar(&loadFlags.samplePrefix, "sample-name-prefix", "",
		"prefix prepended to sample names before database lookup")
	flags.BoolVar(&loadFlags.newResearcher, "new-researcher", false,
		"confirm that the researcher is intentionally new to the database")
	flags.BoolVar(&loadFlags.strictLabels, "error-on-unexpected-isotopes", false,
		"treat observed isotopes outside the tracer set as errors instead of warnings")
	flags.StringArrayVar(&loadFlags.tracer, "tracer", nil,
		"tracer isotope, e.g. C13 or 15N (repeatable)")

	flags.StringVar(&loadFlags.researcher, "researcher", "", "default researcher name")
	flags.StringVar(&loadFlags.date, "date", "", "default run date (YYYY-MM-DD)")
	flags.StringVar(&loadFlags.instrument, "instrument", "", "default instrument name")
	flags.StringVar(&loadFlags.lcProtocol, "lc-protocol", "", "default liquid chromatography protocol name")
	flags.IntVar(&loadFlags.lcRunLength, "lc-run-length", 0, "default LC run length in minutes")
	flags.StringVar(&loadFlags.polarity, "polarity", "", "default polarity (positive or negative)")
	flags.Float64Var(&loadFlags.mzMin, "mz-min", 0, "default scan range lower bound")
	flags.Float64Var(&loadFlags.mzMax, "mz-max", 0, "default scan range upper bound")

	loadCmd.MarkFlagsMutuallyExclusive("dry-run", "validate")
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fileCfg := loadFileConfigFromEnv()

	opts, err := buildLoaderOptions(cmd, fileCfg)
	if err != nil {
		return err
	}

	file, err := peakload.ReadFile(args[0], loadFlags.isocorr)
	if err != nil {
		return err
	}

	metadata, err := readMetadataFile(loadFlags.lcmsFile)
	if err != nil {
		return err
	}

	mzFiles, err := readMzXMLFiles(loadFlags.mzxmlPaths)
	if err != nil {
		return err
	}

	storageCfg := storage.LoadConfig()
	if err := storageCfg.Validate(); err != nil {
		return fmt.Errorf("database configuration: %w", err)
	}

	db, err := storage.Connect(ctx, storageCfg)
	if err != nil {
		return err
	}

	defer func() {
		_ = db.Close()
	}()

	store := storage.NewPostgresStore(db, logger)
	loader := peakload.NewLoader(store, logger, opts)

	result, loadErr := loader.Load(ctx, file, metadata, mzFiles)
	if result != nil {
		printLoadResult(result)

		// Dry runs and failed loads change nothing downstream consumers care
		// about.
		if !result.RolledBack {
			publishLoadEvent(cmd, file, result)
		}
	}

	return loadErr
}

// buildLoaderOptions merges command line flags over .tracekit.yaml study
// defaults into one LoaderOptions.
func buildLoaderOptions(cmd *cobra.Command, fileCfg *FileConfig) (peakload.LoaderOptions, error) {
	opts := peakload.LoaderOptions{
		Mode:                    loadreport.ModeLoad,
		SkipSamples:             config.ParseCommaSeparatedList(loadFlags.skipSamples),
		SampleNamePrefix:        loadFlags.samplePrefix,
		NewResearcher:           loadFlags.newResearcher,
		UnexpectedIsotopesFatal: loadFlags.strictLabels,
	}

	if loadFlags.dryRun {
		opts.Mode = loadreport.ModeDryRun
	}

	if loadFlags.validate {
		opts.Mode = loadreport.ModeValidate
	}

	tracerEntries := loadFlags.tracer
	if len(tracerEntries) == 0 {
		tracerEntries = fileCfg.Tracer
	}

	tracer, err := parseTracer(tracerEntries)
	if err != nil {
		return opts, err
	}

	opts.Tracer = tracer

	defaults, err := buildDefaults(cmd, fileCfg)
	if err != nil {
		return opts, err
	}

	opts.Defaults = defaults

	return opts, nil
}

func buildDefaults(cmd *cobra.Command, fileCfg *FileConfig) (lcms.Defaults, error) {
	defaults := lcms.Defaults{
		Researcher: firstNonEmpty(loadFlags.researcher, fileCfg.Researcher),
		Instrument: firstNonEmpty(loadFlags.instrument, fileCfg.Instrument),
		LCProtocol: firstNonEmpty(loadFlags.lcProtocol, fileCfg.LCProtocol),
		Polarity:   firstNonEmpty(loadFlags.polarity, fileCfg.Polarity),
	}

	defaults.LCRunLength = loadFlags.lcRunLength
	if defaults.LCRunLength == 0 {
		defaults.LCRunLength = fileCfg.LCRunLength
	}

	switch defaults.Polarity {
	case "", mzxml.PolarityPositive, mzxml.PolarityNegative:
	default:
		return defaults, fmt.Errorf("invalid polarity %q: expected positive or negative", defaults.Polarity)
	}

	if loadFlags.date != "" {
		date, err := parseDate(loadFlags.date)
		if err != nil {
			return defaults, err
		}

		defaults.Date = date
	}

	if cmd.Flags().Changed("mz-min") {
		mzMin := loadFlags.mzMin
		defaults.MzMin = &mzMin
	}

	if cmd.Flags().Changed("mz-max") {
		mzMax := loadFlags.mzMax
		defaults.MzMax = &mzMax
	}

	return defaults, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse date %q: expected YYYY-MM-DD", raw)
}

func readMetadataFile(path string) (*lcms.MetadataFile, error) {
	if path == "" {
		return nil, nil //nolint:nilnil // absent metadata file is a valid state
	}

	f, err := os.Open(path) //nolint:gosec // path comes from operator input
	if err != nil {
		return nil, fmt.Errorf("failed to open LCMS metadata file: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return lcms.ParseTSV(f, path)
	}

	return lcms.ParseCSV(f, path)
}

func readMzXMLFiles(paths []string) ([]*mzxml.File, error) {
	files := make([]*mzxml.File, 0, len(paths))

	for _, path := range paths {
		file, err := mzxml.ParseFile(path)
		if err != nil {
			return nil, err
		}

		files = append(files, file)
	}

	return files, nil
}

// printLoadResult writes the human-readable run summary to stdout. Structured
// details go to the JSON log; this is the operator-facing recap.
func printLoadResult(result *peakload.LoadResult) {
	status := "committed"

	switch {
	case result.AlreadyLoaded:
		status = "already loaded"
	case result.RolledBack:
		status = "rolled back"
	}

	fmt.Printf("%s (%s, %s mode): %s\n", result.File, result.Format, result.Mode, status)
	fmt.Printf("  lc methods:    %d created, %d existing\n", result.LCMethods.Created, result.LCMethods.Existing)
	fmt.Printf("  sequences:     %d created, %d existing\n", result.Sequences.Created, result.Sequences.Existing)
	fmt.Printf("  msrun samples: %d created, %d existing\n", result.MSRunSamples.Created, result.MSRunSamples.Existing)
	fmt.Printf("  peak groups:   %d created, %d existing\n", result.PeakGroups.Created, result.PeakGroups.Existing)
	fmt.Printf("  peak data:     %d created\n", result.PeakData.Created)

	if len(result.SkippedSamples) > 0 {
		fmt.Printf("  skipped samples: %v\n", result.SkippedSamples)
	}

	for _, summary := range result.Report.Summarize() {
		fmt.Printf("  %s (%d):\n", summary.Kind, summary.Count)

		for _, entry := range summary.Entries {
			fmt.Printf("    - %v\n", entry.Err)
		}
	}
}

// publishLoadEvent emits the load-completed Kafka event. Publishing is best
// effort: a broker problem is logged, never allowed to fail a finished load.
func publishLoadEvent(cmd *cobra.Command, file *peakload.AnnotationFile, result *peakload.LoadResult) {
	publisher, err := events.NewPublisher(events.LoadPublisherConfig(), logger)
	if err != nil {
		logger.Warn("Failed to configure load event publisher", "error", err)

		return
	}

	defer func() {
		_ = publisher.Close()
	}()

	event := events.LoadCompleted{
		File:          result.File,
		Checksum:      file.Checksum,
		Format:        string(result.Format),
		Mode:          result.Mode.String(),
		Committed:     !result.RolledBack,
		AlreadyLoaded: result.AlreadyLoaded,
		PeakGroups:    result.PeakGroups.Created,
		PeakData:      result.PeakData.Created,
		ErrorCount:    len(result.Report.Errors()),
		WarningCount:  len(result.Report.Warnings()),
	}

	if err := publisher.PublishLoadCompleted(cmd.Context(), event); err != nil {
		logger.Warn("Failed to publish load event", "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
