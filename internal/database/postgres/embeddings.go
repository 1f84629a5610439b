package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingStore is a database.EmbeddingStore backed by the face_embeddings table.
// The table is read once on open; afterwards reads are served from memory and
// every Append is committed before it becomes visible.
type EmbeddingStore struct {
	pool  *Pool
	snap  *database.Snapshot
	index *database.CentroidIndex
	log   *slog.Logger
	mu    sync.RWMutex
}

// NewEmbeddingStore loads all enrolled embeddings from the database.
// idx may be nil.
func NewEmbeddingStore(ctx context.Context, pool *Pool, dim int, idx *database.CentroidIndex, logger *slog.Logger) (*EmbeddingStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &EmbeddingStore{pool: pool, index: idx, log: logger}

	snap, err := s.load(ctx, dim)
	if err != nil {
		return nil, err
	}
	s.snap = snap
	if idx != nil {
		idx.Rebuild(snap.Centroids())
	}
	logger.Info("embedding store loaded", "backend", "postgres", "identities", snap.Len(), "dim", snap.Dim())
	return s, nil
}

func (s *EmbeddingStore) load(ctx context.Context, dim int) (*database.Snapshot, error) {
	// Identities are ordered by their first enrollment.
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT identity_id, embedding
		FROM (
			SELECT identity_id, seq, embedding,
				MIN(created_at) OVER (PARTITION BY identity_id) AS first_at
			FROM face_embeddings
		) e
		ORDER BY first_at, identity_id, seq
	`)
	if err != nil {
		return nil, &database.StorageError{Op: "load", Path: "postgres", Err: err}
	}
	defer rows.Close()

	var order []string
	records := make(map[string][][]float32)
	for rows.Next() {
		var (
			id  string
			vec pgvector.Vector
		)
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, &database.StorageError{Op: "decode", Path: "postgres", Err: err}
		}
		if _, ok := records[id]; !ok {
			order = append(order, id)
		}
		records[id] = append(records[id], vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, &database.StorageError{Op: "load", Path: "postgres", Err: err}
	}

	snap, err := database.NewSnapshot(dim, order, records)
	if err != nil {
		return nil, &database.StorageError{Op: "validate", Path: "postgres", Err: err}
	}
	return snap, nil
}

// Snapshot returns the current immutable view of the store.
func (s *EmbeddingStore) Snapshot() *database.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Centroids returns identity centroids in store iteration order.
func (s *EmbeddingStore) Centroids() []database.IdentityCentroid { return s.Snapshot().Centroids() }

// Has reports whether identityID has enrolled vectors.
func (s *EmbeddingStore) Has(identityID string) bool { return s.Snapshot().Has(identityID) }

// Identities lists enrolled identities.
func (s *EmbeddingStore) Identities() []database.IdentitySummary { return s.Snapshot().Summaries() }

// Append normalizes vector and inserts it as the next sample of identityID.
func (s *EmbeddingStore) Append(ctx context.Context, identityID string, vector []float32) error {
	unit, err := database.Normalize(vector)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.snap.WithAppended(identityID, unit)
	if err != nil {
		return err
	}

	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return &database.StorageError{Op: "persist", Path: "postgres", Err: err}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO face_embeddings (identity_id, seq, embedding)
		VALUES ($1, COALESCE((SELECT MAX(seq) + 1 FROM face_embeddings WHERE identity_id = $1), 0), $2)
	`, identityID, pgvector.NewVector(unit))
	if err != nil {
		tx.Rollback()
		return &database.StorageError{Op: "persist", Path: "postgres", Err: fmt.Errorf("insert embedding: %w", err)}
	}
	if err := tx.Commit(); err != nil {
		return &database.StorageError{Op: "persist", Path: "postgres", Err: fmt.Errorf("commit: %w", err)}
	}

	s.snap = next
	if s.index != nil {
		s.index.Rebuild(next.Centroids())
	}
	rec, _ := next.Record(identityID)
	s.log.Info("embedding appended", "backend", "postgres", "identity", identityID, "samples", len(rec.Vectors))
	return nil
}
