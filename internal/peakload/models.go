// Package peakload loads Accucor/Isocorr peak annotation files: it validates
// sample headers, cross-references compounds, reconciles LCMS run metadata,
// and builds MS run, peak group, and peak data records idempotently against a
// relational store, aggregating problems across the whole file instead of
// stopping at the first one.
//
// This package owns the domain models and the Store interface it needs for
// persistence; concrete implementations (PostgreSQL, in-memory) live in
// internal/storage.
package peakload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tracekit-io/tracekit/internal/isotope"
)

// Format identifies the peak annotation export sub-format.
type Format string

const (
	// FormatAccucor is the legacy single-labeled-element export: an Original
	// and a Corrected sheet, the label encoded in one <Element>_Label column.
	FormatAccucor Format = "accucor"

	// FormatIsocorr is the multi-isotope export: labels encoded as structured
	// strings in an isotopeLabel column.
	FormatIsocorr Format = "isocorr"
)

// Static sentinel errors for load failures that abort a run outright, because
// continuing would be meaningless.
var (
	// ErrSampleIndexNotFound is returned when no known non-sample column
	// exists, so the first sample column cannot be inferred.
	ErrSampleIndexNotFound = errors.New("cannot identify the first sample column: no known non-sample column found")

	// ErrNoCompoundHeader is returned when the corrected sheet has no
	// compound column at all.
	ErrNoCompoundHeader = errors.New("no compound column found in the corrected sheet")

	// ErrNotFound is the store's uniform "no such record" result for
	// find-by-natural-key lookups.
	ErrNotFound = errors.New("record not found")

	// ErrDryRun is the sentinel raised after a structurally successful
	// dry-run load, specifically to force the surrounding transaction to roll
	// back while still reporting what would have happened.
	ErrDryRun = errors.New("dry run: rolling back")
)

type (
	// CompoundRef is a resolved compound the loader cross-referenced by exact
	// name or synonym.
	CompoundRef struct {
		ID      int64
		Name    string
		Formula string
	}

	// SampleRef is a resolved database sample.
	SampleRef struct {
		ID   int64
		Name string
	}

	// PeakGroupCandidate is one unique compound name of the annotation file,
	// exactly as written there (possibly a "/"-delimited multi-compound name
	// such as "citrate/isocitrate"). Candidates that fail compound lookup are
	// purged from the load set so downstream errors about them are not also
	// reported.
	PeakGroupCandidate struct {
		Name      string
		Formula   string
		Compounds []CompoundRef
	}

	// MSRunIdentity is the derived natural key of one physical instrument
	// run of one sample. Two peak groups for the same compound name under the
	// same identity are either a duplicate (same annotation file) or an
	// ambiguous-MSRun conflict (different files).
	MSRunIdentity struct {
		SampleName  string
		Researcher  string
		Date        time.Time
		LCProtocol  string
		LCRunLength int
		Instrument  string
		Polarity    string
		MzMin       *float64
		MzMax       *float64
	}

	// SequenceKey is the batch-level run configuration shared by all samples
	// of one load: who ran the instrument, when, with which LC method.
	SequenceKey struct {
		Researcher string
		Date       time.Time
		Instrument string
		LCMethodID int64
	}

	// PeakGroupRecord is the insertable form of one validated peak group.
	PeakGroupRecord struct {
		MSRunSampleID      int64
		Name               string
		Formula            string
		AnnotationFileID   string
		AnnotationFileName string
		CompoundIDs        []int64
	}

	// StoredPeakGroup is what a find-by-natural-key peak group lookup
	// returns, for the explicit compare-then-write discipline.
	StoredPeakGroup struct {
		ID                 int64
		Formula            string
		AnnotationFileID   string
		AnnotationFileName string
	}

	// PeakDataRecord is one isotopologue abundance measurement. Raw fields
	// are nil when no original sheet row sources them.
	PeakDataRecord struct {
		PeakGroupID        int64
		RawAbundance       *float64
		CorrectedAbundance float64
		MedMz              *float64
		MedRt              *float64
		Labels             []isotope.Observation
	}

	// ArchiveFileRecord preserves provenance of one consumed input file.
	ArchiveFileRecord struct {
		ID       string // uuid
		Filename string
		Checksum string
		FileType string // "peak_annotation", "lcms_metadata", "mzxml"
	}
)

// Archive file types.
const (
	FileTypePeakAnnotation = "peak_annotation"
	FileTypeLCMSMetadata   = "lcms_metadata"
	FileTypeMzXML          = "mzxml"
)

// Store is the persistence interface the loader needs. Implementations follow
// an explicit find-by-natural-key, compare fields, branch on
// found/not-found/conflicting discipline; they never interpret low-level
// constraint violations on the loader's behalf.
type Store interface {
	// KnownResearchers returns the distinct researcher names already present
	// in the store, for researcher validation.
	KnownResearchers(ctx context.Context) ([]string, error)

	// FindCompound resolves a compound by exact name or synonym,
	// case-insensitive. Returns ErrNotFound when nothing matches.
	FindCompound(ctx context.Context, name string) (*CompoundRef, error)

	// Begin opens the single transaction one annotation file load runs in.
	Begin(ctx context.Context) (LoadTx, error)
}

// LoadTx is one load's transactional unit of work. Every mutation of a load
// happens through it; Rollback after Commit is a no-op so defer-rollback is
// always safe.
type LoadTx interface {
	// FindSample resolves a database sample by name. Returns ErrNotFound when
	// the sample does not exist.
	FindSample(ctx context.Context, name string) (*SampleRef, error)

	// GetOrCreateLCMethod resolves or creates an LC method by (name, run
	// length) natural key.
	GetOrCreateLCMethod(ctx context.Context, name string, runLength int, description string) (id int64, created bool, err error)

	// GetOrCreateSequence resolves or creates an MS run sequence by its full
	// natural key.
	GetOrCreateSequence(ctx context.Context, key SequenceKey) (id int64, created bool, err error)

	// GetOrCreateMSRunSample resolves or creates one MS run sample row.
	GetOrCreateMSRunSample(ctx context.Context, sequenceID, sampleID int64, polarity string, mzMin, mzMax *float64) (id int64, created bool, err error)

	// FindPeakGroup looks up a peak group by its (msrun sample, name) natural
	// key. Returns ErrNotFound when absent.
	FindPeakGroup(ctx context.Context, msRunSampleID int64, name string) (*StoredPeakGroup, error)

	// InsertPeakGroup inserts one peak group with its compound links and one
	// peak group label per element.
	InsertPeakGroup(ctx context.Context, record PeakGroupRecord, labelElements []string) (id int64, err error)

	// InsertPeakData inserts one peak data row with its labels.
	InsertPeakData(ctx context.Context, record PeakDataRecord) (id int64, err error)

	// RecordArchiveFile records provenance of a consumed input file.
	// Recording is idempotent by checksum: a file already archived returns
	// the existing record's ID instead of creating a second row.
	RecordArchiveFile(ctx context.Context, record ArchiveFileRecord) (id string, err error)

	// Commit commits the load; Rollback discards it.
	Commit() error
	Rollback() error
}

// ConflictingFields lists which fields differ between an existing peak group
// and the one about to be written. Annotation-file-only differences are the
// ambiguous-MSRun case; anything else is a generic conflict.
func (g *StoredPeakGroup) ConflictingFields(record PeakGroupRecord) []string {
	var fields []string

	if g.Formula != record.Formula {
		fields = append(fields, "formula")
	}

	if g.AnnotationFileName != record.AnnotationFileName {
		fields = append(fields, "peak annotation file")
	}

	return fields
}

// String renders the identity compactly for error messages.
func (id MSRunIdentity) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s/%s/%s/%s", id.SampleName, id.Researcher, id.Date.Format("2006-01-02"), id.Instrument)

	if id.MzMin != nil && id.MzMax != nil {
		fmt.Fprintf(&b, " [%g-%g]", *id.MzMin, *id.MzMax)
	}

	return b.String()
}
