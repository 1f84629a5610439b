package database

// HNSW parameters for the centroid index
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// so that self-exclusion still leaves k results.
	HNSWSearchMultiplier = 2
)

// Embedding file format
const (
	// StoreFormatVersion is written into every embedding file.
	StoreFormatVersion = 1
)
