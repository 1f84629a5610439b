package database

import (
	"context"
)

// CentroidSource provides the identity centroids a matcher iterates over.
type CentroidSource interface {
	// Centroids returns centroids in stable store iteration order.
	Centroids() []IdentityCentroid
}

// EmbeddingStore is the persisted mapping identity -> enrolled unit vectors.
type EmbeddingStore interface {
	CentroidSource

	// Has reports whether an identity has at least one enrolled vector.
	Has(identityID string) bool
	// Identities lists enrolled identities with their sample counts.
	Identities() []IdentitySummary
	// Append normalizes vector and appends it to identityID, persisting before it becomes visible.
	// On failure the store is unchanged.
	Append(ctx context.Context, identityID string, vector []float32) error
	// Snapshot returns the current immutable view of the store.
	Snapshot() *Snapshot
}

// RecordReader resolves person records.
type RecordReader interface {
	// Lookup returns the record for a normalized identity id, or ErrNotFound.
	Lookup(ctx context.Context, identityID string) (*Record, error)
}

// RecordFinder resolves a person by display name. Used to find the host of a visitor.
type RecordFinder interface {
	FindByName(ctx context.Context, name string) (*Record, error)
}

// CandidateFinder resolves scheduled interviews.
type CandidateFinder interface {
	// FindCandidate returns the interview for a code, or ErrNotFound. Codes compare after NormalizeInterviewCode.
	FindCandidate(ctx context.Context, interviewCode string) (*Candidate, error)
}

// VisitorWriter appends to the visitor log.
type VisitorWriter interface {
	LogVisitor(ctx context.Context, v Visitor) error
}

// RecordStore is a record backend that may also hold the visitor log.
type RecordStore interface {
	RecordReader
	VisitorWriter
	Close() error
}
