package database

import (
	"fmt"
	"math"
)

// NormEpsilon is the tolerance used when checking that stored vectors are unit length.
const NormEpsilon = 1e-4

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v.
// Returns ErrDegenerateVector for empty, zero or non-finite vectors.
func Normalize(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrDegenerateVector)
	}
	norm := Norm(v)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, fmt.Errorf("%w: norm %v", ErrDegenerateVector, norm)
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// IsUnit reports whether v has L2 norm 1 within NormEpsilon.
func IsUnit(v []float32) bool {
	return math.Abs(Norm(v)-1) <= NormEpsilon
}

// Dot returns the dot product of a and b, which for unit vectors is their cosine similarity.
// Vectors of different length yield -1.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	// Clamp to [-1, 1] to handle floating point errors
	return max(-1, min(1, dot))
}

// CosineSimilarity computes the cosine similarity between two arbitrary vectors.
// Returns -1 for invalid input (length mismatch or zero vectors).
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return -1
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	return max(-1, min(1, similarity))
}

// Centroid averages a slice of embeddings and L2-normalizes the result.
// All embeddings must share the dimension of the first one.
func Centroid(embeddings [][]float32) ([]float32, error) {
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings", ErrDegenerateVector)
	}

	dim := len(embeddings[0])
	sum := make([]float64, dim)
	for _, emb := range embeddings {
		if len(emb) != dim {
			return nil, &DimensionError{Expected: dim, Actual: len(emb)}
		}
		for i, v := range emb {
			sum[i] += float64(v)
		}
	}

	n := float64(len(embeddings))
	centroid := make([]float32, dim)
	for i := range sum {
		centroid[i] = float32(sum[i] / n)
	}
	return Normalize(centroid)
}
