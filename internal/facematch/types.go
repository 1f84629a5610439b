// Package facematch scores live face embeddings against enrolled identities.
package facematch

// Unknown is the identity of a match below the acceptance threshold.
const Unknown = ""

// MatchResult is the outcome of matching one face.
type MatchResult struct {
	IdentityID string     `json:"identity_id"` // Unknown when below threshold
	Score      float64    `json:"score"`       // best cosine similarity in [-1, 1]
	BBox       [4]float64 `json:"bbox"`
	// Nearest is the best scoring identity even when the score is below threshold.
	Nearest string `json:"nearest,omitempty"`
}

// Known reports whether the match identified an enrolled identity.
func (r MatchResult) Known() bool {
	return r.IdentityID != Unknown
}
