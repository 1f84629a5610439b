package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/google/renameio"
	"github.com/vmihailenco/msgpack/v5"
)

// OpenMode selects how a missing embedding file is treated.
type OpenMode int

const (
	// OpenModeMatch requires the embedding file to exist.
	OpenModeMatch OpenMode = iota
	// OpenModeEnroll treats a missing embedding file as an empty store.
	OpenModeEnroll
)

func (m OpenMode) String() string {
	if m == OpenModeEnroll {
		return "enroll"
	}
	return "match"
}

// storeDocument is the on-disk msgpack layout of the embedding file.
type storeDocument struct {
	Version int                    `msgpack:"version"`
	Dim     int                    `msgpack:"dim"`
	Order   []string               `msgpack:"order"`
	Records map[string][][]float32 `msgpack:"records"`
}

// FileStore is an EmbeddingStore persisted to a single msgpack file.
type FileStore struct {
	path  string
	snap  *Snapshot
	index *CentroidIndex
	log   *slog.Logger
	mu    sync.RWMutex

	writeFile func(filename string, data []byte, perm os.FileMode) error
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithLogger sets the logger used for store events.
func WithLogger(l *slog.Logger) FileStoreOption {
	return func(s *FileStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithIndex keeps idx rebuilt from the store centroids after every load and append.
func WithIndex(idx *CentroidIndex) FileStoreOption {
	return func(s *FileStore) { s.index = idx }
}

// OpenFileStore loads the embedding file at path.
// dim is the expected vector dimension; 0 accepts whatever the file holds.
func OpenFileStore(path string, mode OpenMode, dim int, opts ...FileStoreOption) (*FileStore, error) {
	s := &FileStore{
		path:      path,
		log:       slog.Default(),
		writeFile: renameio.WriteFile,
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := LoadSnapshot(path, mode, dim)
	if err != nil {
		return nil, err
	}
	s.snap = snap
	if s.index != nil {
		s.index.Rebuild(snap.Centroids())
	}
	s.log.Info("embedding store loaded", "path", path, "mode", mode.String(), "identities", snap.Len(), "dim", snap.Dim())
	return s, nil
}

// LoadSnapshot reads and validates the embedding file at path.
func LoadSnapshot(path string, mode OpenMode, dim int) (*Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && mode == OpenModeEnroll {
			return EmptySnapshot(dim), nil
		}
		return nil, &StorageError{Op: "load", Path: path, Err: err}
	}

	var doc storeDocument
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, &StorageError{Op: "decode", Path: path, Err: err}
	}
	if doc.Version != StoreFormatVersion {
		return nil, &StorageError{Op: "validate", Path: path, Err: fmt.Errorf("unsupported format version %d", doc.Version)}
	}
	if dim != 0 && doc.Dim != 0 && doc.Dim != dim {
		return nil, &StorageError{Op: "validate", Path: path, Err: &DimensionError{Expected: dim, Actual: doc.Dim}}
	}
	if dim == 0 {
		dim = doc.Dim
	}

	snap, err := NewSnapshot(dim, doc.Order, doc.Records)
	if err != nil {
		return nil, &StorageError{Op: "validate", Path: path, Err: err}
	}
	return snap, nil
}

// EncodeSnapshot serializes snap in the embedding file format.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	doc := storeDocument{
		Version: StoreFormatVersion,
		Dim:     snap.Dim(),
		Order:   snap.rawOrder(),
		Records: snap.rawRecords(),
	}
	return msgpack.Marshal(&doc)
}

// Path returns the embedding file path.
func (s *FileStore) Path() string { return s.path }

// Snapshot returns the current immutable view of the store.
func (s *FileStore) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Centroids returns identity centroids in store iteration order.
func (s *FileStore) Centroids() []IdentityCentroid { return s.Snapshot().Centroids() }

// Has reports whether identityID has enrolled vectors.
func (s *FileStore) Has(identityID string) bool { return s.Snapshot().Has(identityID) }

// Identities lists enrolled identities.
func (s *FileStore) Identities() []IdentitySummary { return s.Snapshot().Summaries() }

// Append normalizes vector, appends it to identityID and persists the whole file atomically.
// The in-memory store only changes after the file has been written.
func (s *FileStore) Append(ctx context.Context, identityID string, vector []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unit, err := Normalize(vector)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.snap.WithAppended(identityID, unit)
	if err != nil {
		return err
	}
	data, err := EncodeSnapshot(next)
	if err != nil {
		return &StorageError{Op: "encode", Path: s.path, Err: err}
	}
	if err := s.writeFile(s.path, data, 0o600); err != nil {
		return &StorageError{Op: "persist", Path: s.path, Err: err}
	}

	s.snap = next
	if s.index != nil {
		s.index.Rebuild(next.Centroids())
	}
	rec, _ := next.Record(identityID)
	s.log.Info("embedding appended", "identity", identityID, "samples", len(rec.Vectors))
	return nil
}

// Reload re-reads the embedding file, replacing the in-memory store.
func (s *FileStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := LoadSnapshot(s.path, OpenModeEnroll, s.snap.Dim())
	if err != nil {
		return err
	}
	s.snap = snap
	if s.index != nil {
		s.index.Rebuild(snap.Centroids())
	}
	return nil
}
