// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/kozaktomas/frontdesk/internal/facematch"
)

// MockRecordStore is an in-memory database.RecordStore.
type MockRecordStore struct {
	mu         sync.RWMutex
	records    map[string]*database.Record
	candidates map[string]database.Candidate
	visitors   []database.Visitor

	// Error injection
	LookupError     error
	LogVisitorError error
}

// NewMockRecordStore creates a new mock record store.
func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{
		records:    make(map[string]*database.Record),
		candidates: make(map[string]database.Candidate),
	}
}

// AddCandidate adds an interview keyed by its normalized code.
func (m *MockRecordStore) AddCandidate(c database.Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.InterviewCode = database.NormalizeInterviewCode(c.InterviewCode)
	m.candidates[c.InterviewCode] = c
}

// FindCandidate returns a copy of the interview or database.ErrNotFound.
func (m *MockRecordStore) FindCandidate(ctx context.Context, interviewCode string) (*database.Candidate, error) {
	if m.LookupError != nil {
		return nil, m.LookupError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.candidates[database.NormalizeInterviewCode(interviewCode)]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &c, nil
}

// AddRecord adds a record keyed by its normalized identity id.
func (m *MockRecordStore) AddRecord(rec database.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.IdentityID = facematch.NormalizeIdentityID(rec.IdentityID)
	if rec.Fields == nil {
		rec.Fields = map[string]string{"ID": rec.IdentityID, "Name": rec.Name, "Email": rec.Email}
		rec.Columns = []string{"ID", "Name", "Email"}
	}
	m.records[rec.IdentityID] = &rec
}

// Lookup returns a copy of the record or database.ErrNotFound.
func (m *MockRecordStore) Lookup(ctx context.Context, identityID string) (*database.Record, error) {
	if m.LookupError != nil {
		return nil, m.LookupError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[facematch.NormalizeIdentityID(identityID)]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// FindByName returns the first record whose name matches, in id order.
func (m *MockRecordStore) FindByName(ctx context.Context, name string) (*database.Record, error) {
	if m.LookupError != nil {
		return nil, m.LookupError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if rec := m.records[id]; facematch.NamesMatch(name, rec.Name) {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

// LogVisitor records the visitor.
func (m *MockRecordStore) LogVisitor(ctx context.Context, v database.Visitor) error {
	if m.LogVisitorError != nil {
		return m.LogVisitorError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visitors = append(m.visitors, v)
	return nil
}

// Visitors returns the logged visitors.
func (m *MockRecordStore) Visitors() []database.Visitor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.Visitor(nil), m.visitors...)
}

// Close does nothing.
func (m *MockRecordStore) Close() error { return nil }

// MockEmbeddingStore is an in-memory database.EmbeddingStore.
type MockEmbeddingStore struct {
	mu   sync.RWMutex
	snap *database.Snapshot

	// Error injection
	AppendError error
	// AppendCalls counts Append invocations, including failed ones.
	AppendCalls int
}

// NewMockEmbeddingStore creates an empty store of the given dimension.
func NewMockEmbeddingStore(dim int) *MockEmbeddingStore {
	return &MockEmbeddingStore{snap: database.EmptySnapshot(dim)}
}

// Seed appends vectors without error injection.
func (m *MockEmbeddingStore) Seed(identityID string, vectors ...[]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vectors {
		unit, err := database.Normalize(v)
		if err != nil {
			return err
		}
		next, err := m.snap.WithAppended(identityID, unit)
		if err != nil {
			return err
		}
		m.snap = next
	}
	return nil
}

// Snapshot returns the current store view.
func (m *MockEmbeddingStore) Snapshot() *database.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Centroids returns identity centroids in iteration order.
func (m *MockEmbeddingStore) Centroids() []database.IdentityCentroid {
	return m.Snapshot().Centroids()
}

// Has reports whether identityID is enrolled.
func (m *MockEmbeddingStore) Has(identityID string) bool { return m.Snapshot().Has(identityID) }

// Identities lists enrolled identities.
func (m *MockEmbeddingStore) Identities() []database.IdentitySummary {
	return m.Snapshot().Summaries()
}

// Append normalizes and appends vector unless AppendError is set.
func (m *MockEmbeddingStore) Append(ctx context.Context, identityID string, vector []float32) error {
	m.mu.Lock()
	m.AppendCalls++
	injected := m.AppendError
	m.mu.Unlock()
	if injected != nil {
		return injected
	}
	return m.Seed(identityID, vector)
}
