package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/tracekit-io/tracekit/internal/peakload"
)

// pqUniqueViolation is the PostgreSQL error code for unique constraint
// violations. The loader compares before writing, so hitting one means a
// concurrent writer won the race; it is reported with the constraint name
// rather than interpreted.
const pqUniqueViolation = "23505"

type (
	// PostgresStore implements peakload.Store on PostgreSQL with explicit
	// SQL: find by natural key, compare in Go, branch. Constraint violations
	// are a backstop, not a control-flow mechanism.
	PostgresStore struct {
		db     *sql.DB
		logger *slog.Logger
	}

	// postgresTx is one load transaction.
	postgresTx struct {
		tx        *sql.Tx
		committed bool
	}
)

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// KnownResearchers returns the distinct researchers of all recorded MS run
// sequences.
func (s *PostgresStore) KnownResearchers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT researcher FROM msrun_sequences ORDER BY researcher`)
	if err != nil {
		return nil, fmt.Errorf("failed to query researchers: %w", err)
	}
	defer rows.Close()

	var researchers []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan researcher: %w", err)
		}

		researchers = append(researchers, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate researchers: %w", err)
	}

	return researchers, nil
}

// FindCompound resolves a compound by primary name or synonym,
// case-insensitive.
func (s *PostgresStore) FindCompound(ctx context.Context, name string) (*peakload.CompoundRef, error) {
	const query = `
		SELECT c.id, c.name, c.formula
		FROM compounds c
		WHERE LOWER(c.name) = LOWER($1)
		UNION
		SELECT c.id, c.name, c.formula
		FROM compounds c
		JOIN compound_synonyms s ON s.compound_id = c.id
		WHERE LOWER(s.name) = LOWER($1)
		LIMIT 1`

	var compound peakload.CompoundRef

	err := s.db.QueryRowContext(ctx, query, name).Scan(&compound.ID, &compound.Name, &compound.Formula)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, peakload.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to look up compound %q: %w", name, err)
	}

	return &compound, nil
}

// Begin opens one load transaction.
func (s *PostgresStore) Begin(ctx context.Context) (peakload.LoadTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	s.logger.Debug("load transaction started")

	return &postgresTx{tx: tx}, nil
}

func (t *postgresTx) FindSample(ctx context.Context, name string) (*peakload.SampleRef, error) {
	var sample peakload.SampleRef

	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name FROM samples WHERE name = $1`, name,
	).Scan(&sample.ID, &sample.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, peakload.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to look up sample %q: %w", name, err)
	}

	return &sample, nil
}

func (t *postgresTx) GetOrCreateLCMethod(ctx context.Context, name string, runLength int, description string) (int64, bool, error) {
	var id int64

	err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM lc_methods WHERE name = $1 AND run_length_minutes = $2`,
		name, runLength,
	).Scan(&id)
	if err == nil {
		return id, false, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to look up LC method: %w", err)
	}

	err = t.tx.QueryRowContext(ctx,
		`INSERT INTO lc_methods (name, run_length_minutes, description)
		 VALUES ($1, $2, $3) RETURNING id`,
		name, runLength, description,
	).Scan(&id)
	if err != nil {
		return 0, false, reclassify(err, "insert LC method")
	}

	return id, true, nil
}

func (t *postgresTx) GetOrCreateSequence(ctx context.Context, key peakload.SequenceKey) (int64, bool, error) {
	runDate := key.Date.Format("2006-01-02")

	var id int64

	err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM msrun_sequences
		 WHERE researcher = $1 AND run_date = $2 AND instrument = $3 AND lc_method_id = $4`,
		key.Researcher, runDate, key.Instrument, key.LCMethodID,
	).Scan(&id)
	if err == nil {
		return id, false, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to look up MS run sequence: %w", err)
	}

	err = t.tx.QueryRowContext(ctx,
		`INSERT INTO msrun_sequences (researcher, run_date, instrument, lc_method_id)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		key.Researcher, runDate, key.Instrument, key.LCMethodID,
	).Scan(&id)
	if err != nil {
		return 0, false, reclassify(err, "insert MS run sequence")
	}

	return id, true, nil
}

func (t *postgresTx) GetOrCreateMSRunSample(ctx context.Context, sequenceID, sampleID int64, polarity string, mzMin, mzMax *float64) (int64, bool, error) {
	var id int64

	// The mz range is part of the MS run sample identity: the same sample can
	// be scanned twice with the same polarity but different windows, and each
	// scan is its own MS run sample.
	err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM msrun_samples
		 WHERE sequence_id = $1 AND sample_id = $2 AND polarity = $3
		   AND mz_min IS NOT DISTINCT FROM $4 AND mz_max IS NOT DISTINCT FROM $5`,
		sequenceID, sampleID, polarity, nullFloat(mzMin), nullFloat(mzMax),
	).Scan(&id)
	if err == nil {
		return id, false, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to look up MS run sample: %w", err)
	}

	err = t.tx.QueryRowContext(ctx,
		`INSERT INTO msrun_samples (sequence_id, sample_id, polarity, mz_min, mz_max)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		sequenceID, sampleID, polarity, nullFloat(mzMin), nullFloat(mzMax),
	).Scan(&id)
	if err != nil {
		return 0, false, reclassify(err, "insert MS run sample")
	}

	return id, true, nil
}

func (t *postgresTx) FindPeakGroup(ctx context.Context, msRunSampleID int64, name string) (*peakload.StoredPeakGroup, error) {
	var (
		group  peakload.StoredPeakGroup
		fileID sql.NullString
	)

	err := t.tx.QueryRowContext(ctx,
		`SELECT id, formula, archive_file_id, archive_file_name
		 FROM peak_groups WHERE msrun_sample_id = $1 AND name = $2`,
		msRunSampleID, name,
	).Scan(&group.ID, &group.Formula, &fileID, &group.AnnotationFileName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, peakload.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to look up peak group %q: %w", name, err)
	}

	group.AnnotationFileID = fileID.String

	return &group, nil
}

func (t *postgresTx) InsertPeakGroup(ctx context.Context, record peakload.PeakGroupRecord, labelElements []string) (int64, error) {
	var id int64

	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO peak_groups (msrun_sample_id, name, formula, archive_file_id, archive_file_name)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		record.MSRunSampleID, record.Name, record.Formula, record.AnnotationFileID, record.AnnotationFileName,
	).Scan(&id)
	if err != nil {
		return 0, reclassify(err, "insert peak group")
	}

	for _, compoundID := range record.CompoundIDs {
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO peak_group_compounds (peak_group_id, compound_id) VALUES ($1, $2)`,
			id, compoundID,
		)
		if err != nil {
			return 0, reclassify(err, "insert peak group compound link")
		}
	}

	for _, element := range labelElements {
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO peak_group_labels (peak_group_id, element) VALUES ($1, $2)`,
			id, element,
		)
		if err != nil {
			return 0, reclassify(err, "insert peak group label")
		}
	}

	return id, nil
}

func (t *postgresTx) InsertPeakData(ctx context.Context, record peakload.PeakDataRecord) (int64, error) {
	var id int64

	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO peak_data (peak_group_id, raw_abundance, corrected_abundance, med_mz, med_rt)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		record.PeakGroupID, nullFloat(record.RawAbundance), record.CorrectedAbundance,
		nullFloat(record.MedMz), nullFloat(record.MedRt),
	).Scan(&id)
	if err != nil {
		return 0, reclassify(err, "insert peak data")
	}

	for _, label := range record.Labels {
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO peak_data_labels (peak_data_id, element, mass_number, count)
			 VALUES ($1, $2, $3, $4)`,
			id, label.Element, label.MassNumber, label.Count,
		)
		if err != nil {
			return 0, reclassify(err, "insert peak data label")
		}
	}

	return id, nil
}

// RecordArchiveFile inserts the archive file row, or returns the existing
// row's ID when the same content (by checksum) was archived before.
func (t *postgresTx) RecordArchiveFile(ctx context.Context, record peakload.ArchiveFileRecord) (string, error) {
	var id string

	// The no-op DO UPDATE makes RETURNING yield the surviving row either way.
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO archive_files (id, filename, checksum, file_type)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (checksum) DO UPDATE SET filename = archive_files.filename
		 RETURNING id`,
		record.ID, record.Filename, record.Checksum, record.FileType,
	).Scan(&id)
	if err != nil {
		return "", reclassify(err, "record archive file")
	}

	return id, nil
}

func (t *postgresTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	t.committed = true

	return nil
}

func (t *postgresTx) Rollback() error {
	if t.committed {
		return nil
	}

	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}

	return nil
}

// reclassify annotates a write failure: unique violations carry their
// constraint name so callers see which natural key raced.
func reclassify(err error, op string) error {
	var pqErr *pq.Error

	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return fmt.Errorf("%s: unique constraint %s violated: %w", op, pqErr.Constraint, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}

	return sql.NullFloat64{Float64: *f, Valid: true}
}
