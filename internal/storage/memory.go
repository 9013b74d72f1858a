package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tracekit-io/tracekit/internal/peakload"
)

type (
	// MemoryStore is a thread-safe in-memory peakload.Store. Unit tests and
	// database-free validation runs use it; reference entities (compounds,
	// synonyms, samples, researchers) are seeded directly.
	MemoryStore struct {
		mu          sync.RWMutex
		compounds   []memCompound
		samples     map[string]int64
		researchers map[string]bool
		nextID      int64
		state       memState
	}

	memCompound struct {
		id       int64
		name     string
		formula  string
		synonyms []string
	}

	// memState holds the mutable load-phase data. A transaction works on a
	// deep copy and swaps it back in on Commit, so Rollback is free.
	memState struct {
		lcMethods    []memLCMethod
		sequences    []memSequence
		msRunSamples []memMSRunSample
		peakGroups   []memPeakGroup
		peakData     []memPeakData
		archives     map[string]peakload.ArchiveFileRecord // by checksum
	}

	memLCMethod struct {
		id        int64
		name      string
		runLength int
	}

	memSequence struct {
		id         int64
		researcher string
		date       time.Time
		instrument string
		lcMethodID int64
	}

	memMSRunSample struct {
		id         int64
		sequenceID int64
		sampleID   int64
		polarity   string
		mzMin      *float64
		mzMax      *float64
	}

	memPeakGroup struct {
		id     int64
		record peakload.PeakGroupRecord
		labels []string
	}

	memPeakData struct {
		id     int64
		record peakload.PeakDataRecord
	}

	// memoryTx stages mutations on a state copy.
	memoryTx struct {
		store     *MemoryStore
		state     memState
		nextID    int64
		committed bool
	}
)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		samples:     make(map[string]int64),
		researchers: make(map[string]bool),
		state:       memState{archives: make(map[string]peakload.ArchiveFileRecord)},
	}
}

// SeedCompound registers a compound with optional synonyms.
func (s *MemoryStore) SeedCompound(name, formula string, synonyms ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.compounds = append(s.compounds, memCompound{
		id:       s.nextID,
		name:     name,
		formula:  formula,
		synonyms: synonyms,
	})
}

// SeedSample registers a database sample.
func (s *MemoryStore) SeedSample(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.samples[name] = s.nextID
}

// SeedResearcher registers a known researcher, as if a previous load had
// recorded a sequence for them.
func (s *MemoryStore) SeedResearcher(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.researchers[name] = true
}

// PeakGroups returns the committed peak groups, for test assertions.
func (s *MemoryStore) PeakGroups() []peakload.PeakGroupRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]peakload.PeakGroupRecord, 0, len(s.state.peakGroups))
	for _, g := range s.state.peakGroups {
		records = append(records, g.record)
	}

	return records
}

// PeakData returns the committed peak data rows, for test assertions.
func (s *MemoryStore) PeakData() []peakload.PeakDataRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]peakload.PeakDataRecord, 0, len(s.state.peakData))
	for _, d := range s.state.peakData {
		records = append(records, d.record)
	}

	return records
}

// PeakGroupLabels returns the committed label elements of one peak group name,
// for test assertions.
func (s *MemoryStore) PeakGroupLabels(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.state.peakGroups {
		if g.record.Name == name {
			return append([]string(nil), g.labels...)
		}
	}

	return nil
}

// ArchiveFiles returns the committed archive file records.
func (s *MemoryStore) ArchiveFiles() []peakload.ArchiveFileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]peakload.ArchiveFileRecord, 0, len(s.state.archives))
	for _, r := range s.state.archives {
		records = append(records, r)
	}

	return records
}

// KnownResearchers implements peakload.Store.
func (s *MemoryStore) KnownResearchers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.researchers))
	for name := range s.researchers {
		names = append(names, name)
	}

	for _, seq := range s.state.sequences {
		if !contains(names, seq.researcher) {
			names = append(names, seq.researcher)
		}
	}

	return names, nil
}

// FindCompound implements peakload.Store: exact name or synonym match,
// case-insensitive.
func (s *MemoryStore) FindCompound(_ context.Context, name string) (*peakload.CompoundRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.compounds {
		if strings.EqualFold(c.name, name) {
			return &peakload.CompoundRef{ID: c.id, Name: c.name, Formula: c.formula}, nil
		}

		for _, synonym := range c.synonyms {
			if strings.EqualFold(synonym, name) {
				return &peakload.CompoundRef{ID: c.id, Name: c.name, Formula: c.formula}, nil
			}
		}
	}

	return nil, peakload.ErrNotFound
}

// Begin implements peakload.Store: the transaction stages changes on a copy
// of the current state.
func (s *MemoryStore) Begin(_ context.Context) (peakload.LoadTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &memoryTx{
		store:  s,
		state:  s.state.clone(),
		nextID: s.nextID,
	}, nil
}

func (st memState) clone() memState {
	cloned := memState{
		lcMethods:    append([]memLCMethod(nil), st.lcMethods...),
		sequences:    append([]memSequence(nil), st.sequences...),
		msRunSamples: append([]memMSRunSample(nil), st.msRunSamples...),
		peakGroups:   append([]memPeakGroup(nil), st.peakGroups...),
		peakData:     append([]memPeakData(nil), st.peakData...),
		archives:     make(map[string]peakload.ArchiveFileRecord, len(st.archives)),
	}

	for k, v := range st.archives {
		cloned.archives[k] = v
	}

	return cloned
}

func (t *memoryTx) id() int64 {
	t.nextID++

	return t.nextID
}

func (t *memoryTx) FindSample(_ context.Context, name string) (*peakload.SampleRef, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	id, ok := t.store.samples[name]
	if !ok {
		return nil, peakload.ErrNotFound
	}

	return &peakload.SampleRef{ID: id, Name: name}, nil
}

func (t *memoryTx) GetOrCreateLCMethod(_ context.Context, name string, runLength int, _ string) (int64, bool, error) {
	for _, m := range t.state.lcMethods {
		if m.name == name && m.runLength == runLength {
			return m.id, false, nil
		}
	}

	id := t.id()
	t.state.lcMethods = append(t.state.lcMethods, memLCMethod{id: id, name: name, runLength: runLength})

	return id, true, nil
}

func (t *memoryTx) GetOrCreateSequence(_ context.Context, key peakload.SequenceKey) (int64, bool, error) {
	for _, seq := range t.state.sequences {
		if seq.researcher == key.Researcher &&
			seq.date.Equal(key.Date) &&
			seq.instrument == key.Instrument &&
			seq.lcMethodID == key.LCMethodID {
			return seq.id, false, nil
		}
	}

	id := t.id()
	t.state.sequences = append(t.state.sequences, memSequence{
		id:         id,
		researcher: key.Researcher,
		date:       key.Date,
		instrument: key.Instrument,
		lcMethodID: key.LCMethodID,
	})

	return id, true, nil
}

func (t *memoryTx) GetOrCreateMSRunSample(_ context.Context, sequenceID, sampleID int64, polarity string, mzMin, mzMax *float64) (int64, bool, error) {
	for _, run := range t.state.msRunSamples {
		if run.sequenceID == sequenceID && run.sampleID == sampleID && run.polarity == polarity &&
			floatPtrEqual(run.mzMin, mzMin) && floatPtrEqual(run.mzMax, mzMax) {
			return run.id, false, nil
		}
	}

	id := t.id()
	t.state.msRunSamples = append(t.state.msRunSamples, memMSRunSample{
		id:         id,
		sequenceID: sequenceID,
		sampleID:   sampleID,
		polarity:   polarity,
		mzMin:      mzMin,
		mzMax:      mzMax,
	})

	return id, true, nil
}

func (t *memoryTx) FindPeakGroup(_ context.Context, msRunSampleID int64, name string) (*peakload.StoredPeakGroup, error) {
	for _, g := range t.state.peakGroups {
		if g.record.MSRunSampleID == msRunSampleID && g.record.Name == name {
			return &peakload.StoredPeakGroup{
				ID:                 g.id,
				Formula:            g.record.Formula,
				AnnotationFileID:   g.record.AnnotationFileID,
				AnnotationFileName: g.record.AnnotationFileName,
			}, nil
		}
	}

	return nil, peakload.ErrNotFound
}

func (t *memoryTx) InsertPeakGroup(_ context.Context, record peakload.PeakGroupRecord, labelElements []string) (int64, error) {
	id := t.id()
	t.state.peakGroups = append(t.state.peakGroups, memPeakGroup{
		id:     id,
		record: record,
		labels: append([]string(nil), labelElements...),
	})

	return id, nil
}

func (t *memoryTx) InsertPeakData(_ context.Context, record peakload.PeakDataRecord) (int64, error) {
	id := t.id()
	t.state.peakData = append(t.state.peakData, memPeakData{id: id, record: record})

	return id, nil
}

func (t *memoryTx) RecordArchiveFile(_ context.Context, record peakload.ArchiveFileRecord) (string, error) {
	if existing, ok := t.state.archives[record.Checksum]; ok {
		return existing.ID, nil
	}

	t.state.archives[record.Checksum] = record

	return record.ID, nil
}

func (t *memoryTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	t.store.state = t.state
	t.store.nextID = t.nextID
	t.committed = true

	return nil
}

func (t *memoryTx) Rollback() error {
	// Nothing staged reaches the store unless Commit ran.
	return nil
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}

	return false
}
