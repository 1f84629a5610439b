package database

import (
	"fmt"
	"slices"
)

// Snapshot is an immutable view of an embedding store. Stores swap whole
// snapshots so concurrent readers never observe a partially applied append.
type Snapshot struct {
	dim       int
	order     []string
	records   map[string][][]float32
	centroids []IdentityCentroid
}

// NewSnapshot validates records and precomputes centroids.
// Identities present in records but missing from order are appended in sorted order.
// A dim of 0 is inferred from the first vector.
func NewSnapshot(dim int, order []string, records map[string][][]float32) (*Snapshot, error) {
	seen := make(map[string]bool, len(records))
	ordered := make([]string, 0, len(records))
	for _, id := range order {
		if _, ok := records[id]; !ok || seen[id] {
			continue
		}
		seen[id] = true
		ordered = append(ordered, id)
	}
	var rest []string
	for id := range records {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	slices.Sort(rest)
	ordered = append(ordered, rest...)

	s := &Snapshot{
		dim:       dim,
		order:     ordered,
		records:   make(map[string][][]float32, len(records)),
		centroids: make([]IdentityCentroid, 0, len(ordered)),
	}

	for _, id := range ordered {
		vectors := records[id]
		if len(vectors) == 0 {
			return nil, fmt.Errorf("identity %q has no vectors", id)
		}
		for i, v := range vectors {
			if s.dim == 0 {
				s.dim = len(v)
			}
			if len(v) != s.dim {
				return nil, fmt.Errorf("identity %q vector %d: %w", id, i, &DimensionError{Expected: s.dim, Actual: len(v)})
			}
			if !IsUnit(v) {
				return nil, fmt.Errorf("identity %q vector %d: norm %.6f is not 1", id, i, Norm(v))
			}
		}
		c, err := Centroid(vectors)
		if err != nil {
			return nil, fmt.Errorf("identity %q centroid: %w", id, err)
		}
		s.records[id] = vectors
		s.centroids = append(s.centroids, IdentityCentroid{IdentityID: id, Vector: c, Samples: len(vectors)})
	}

	return s, nil
}

// EmptySnapshot returns a snapshot with no identities.
func EmptySnapshot(dim int) *Snapshot {
	return &Snapshot{dim: dim, records: map[string][][]float32{}}
}

// WithAppended returns a new snapshot with vector appended to identityID.
// vector must already be unit length. The receiver is not modified.
func (s *Snapshot) WithAppended(identityID string, vector []float32) (*Snapshot, error) {
	if identityID == "" {
		return nil, fmt.Errorf("empty identity id")
	}
	if !IsUnit(vector) {
		return nil, fmt.Errorf("%w: vector is not unit length (norm %.6f)", ErrDegenerateVector, Norm(vector))
	}
	if s.dim != 0 && len(vector) != s.dim {
		return nil, &DimensionError{Expected: s.dim, Actual: len(vector)}
	}

	records := make(map[string][][]float32, len(s.records)+1)
	for id, vs := range s.records {
		records[id] = vs
	}
	existing := s.records[identityID]
	appended := make([][]float32, len(existing), len(existing)+1)
	copy(appended, existing)
	records[identityID] = append(appended, slices.Clone(vector))

	order := s.order
	if len(existing) == 0 {
		order = append(slices.Clone(s.order), identityID)
	}
	return NewSnapshot(s.dim, order, records)
}

// Dim returns the vector dimension, or 0 for an empty store without a configured dimension.
func (s *Snapshot) Dim() int { return s.dim }

// Len returns the number of identities.
func (s *Snapshot) Len() int { return len(s.order) }

// Identities returns identity ids in store iteration order.
func (s *Snapshot) Identities() []string { return slices.Clone(s.order) }

// Has reports whether identityID has at least one enrolled vector.
func (s *Snapshot) Has(identityID string) bool {
	_, ok := s.records[identityID]
	return ok
}

// Record returns the enrolled vectors of one identity.
func (s *Snapshot) Record(identityID string) (EmbeddingRecord, bool) {
	vs, ok := s.records[identityID]
	if !ok {
		return EmbeddingRecord{}, false
	}
	return EmbeddingRecord{IdentityID: identityID, Vectors: vs}, true
}

// Centroids returns all identity centroids in store iteration order.
// The returned slice must not be modified.
func (s *Snapshot) Centroids() []IdentityCentroid { return s.centroids }

// Centroid returns the centroid of one identity.
func (s *Snapshot) Centroid(identityID string) ([]float32, bool) {
	for _, c := range s.centroids {
		if c.IdentityID == identityID {
			return c.Vector, true
		}
	}
	return nil, false
}

// Summaries lists identities with their sample counts in iteration order.
func (s *Snapshot) Summaries() []IdentitySummary {
	out := make([]IdentitySummary, 0, len(s.centroids))
	for _, c := range s.centroids {
		out = append(out, IdentitySummary{IdentityID: c.IdentityID, Samples: c.Samples})
	}
	return out
}

func (s *Snapshot) rawOrder() []string                { return s.order }
func (s *Snapshot) rawRecords() map[string][][]float32 { return s.records }
