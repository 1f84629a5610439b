package database

import (
	"slices"
	"sync"

	"github.com/coder/hnsw"
)

// Neighbor is one result of a centroid index search.
type Neighbor struct {
	IdentityID string  `json:"identity_id"`
	Similarity float64 `json:"similarity"`
}

// CentroidIndex is an approximate nearest neighbor index over identity centroids.
// It is rebuilt wholesale from a snapshot and is never persisted.
// The authoritative match decision does not use it; see facematch.Matcher.
type CentroidIndex struct {
	graph     *hnsw.Graph[string]
	centroids map[string][]float32
	mu        sync.RWMutex
}

// NewCentroidIndex creates a new empty index.
func NewCentroidIndex() *CentroidIndex {
	return &CentroidIndex{centroids: make(map[string][]float32)}
}

// Rebuild replaces the index content with the given centroids.
func (c *CentroidIndex) Rebuild(centroids []IdentityCentroid) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.centroids = make(map[string][]float32, len(centroids))
	if len(centroids) == 0 {
		c.graph = nil
		return
	}

	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance

	for _, ct := range centroids {
		if len(ct.Vector) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(ct.IdentityID, ct.Vector))
		c.centroids[ct.IdentityID] = ct.Vector
	}
	c.graph = g
}

// Len returns the number of indexed identities.
func (c *CentroidIndex) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.centroids)
}

// Nearest returns up to k identities closest to vector, most similar first.
func (c *CentroidIndex) Nearest(vector []float32, k int) []Neighbor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.search(vector, k, "")
}

// Similar returns up to k identities closest to the centroid of identityID,
// excluding identityID itself. Returns ErrNotFound for an unknown identity.
func (c *CentroidIndex) Similar(identityID string, k int) ([]Neighbor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	vec, ok := c.centroids[identityID]
	if !ok {
		return nil, ErrNotFound
	}
	return c.search(vec, k, identityID), nil
}

func (c *CentroidIndex) search(vector []float32, k int, exclude string) []Neighbor {
	if c.graph == nil || c.graph.Len() == 0 || k <= 0 {
		return nil
	}

	want := k
	if exclude != "" {
		want++
	}
	nodes := c.graph.Search(vector, want*HNSWSearchMultiplier)

	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		if n.Key == exclude {
			continue
		}
		// Score with the stored vector so results agree with the exact matcher.
		out = append(out, Neighbor{IdentityID: n.Key, Similarity: CosineSimilarity(vector, n.Value)})
	}
	slices.SortStableFunc(out, func(a, b Neighbor) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return 0
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
