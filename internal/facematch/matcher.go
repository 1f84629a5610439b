package facematch

import (
	"github.com/kozaktomas/frontdesk/internal/constants"
	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/kozaktomas/frontdesk/internal/detector"
)

// Matcher performs exact cosine matching of a query embedding against every identity centroid.
type Matcher struct {
	Threshold float64
}

// NewMatcher creates a matcher. A threshold outside (0, 1] falls back to the default.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = constants.DefaultMatchThreshold
	}
	return &Matcher{Threshold: threshold}
}

// Match normalizes query and compares it with every centroid in source iteration order.
// The highest similarity wins; ties keep the earlier identity.
// A degenerate query yields Unknown with score 0 and database.ErrDegenerateVector.
// An empty source yields Unknown with score -1.
func (m *Matcher) Match(query []float32, src database.CentroidSource) (MatchResult, error) {
	q, err := database.Normalize(query)
	if err != nil {
		return MatchResult{IdentityID: Unknown, Score: 0}, err
	}

	best := MatchResult{IdentityID: Unknown, Score: -1}
	for _, c := range src.Centroids() {
		score := database.Dot(q, c.Vector)
		if score > best.Score || best.Nearest == "" {
			best.Score = score
			best.Nearest = c.IdentityID
		}
	}

	if best.Nearest != "" && best.Score >= m.Threshold {
		best.IdentityID = best.Nearest
	}
	return best, nil
}

// MatchDetections matches every face of a frame and returns the top result.
// Faces with degenerate embeddings are skipped. ok is false when no face could be matched.
func (m *Matcher) MatchDetections(dets []detector.FaceDetection, src database.CentroidSource) (result MatchResult, ok bool) {
	for _, d := range dets {
		r, err := m.Match(d.Embedding, src)
		if err != nil {
			continue
		}
		r.BBox = d.BBox
		if !ok || r.Score > result.Score {
			result, ok = r, true
		}
	}
	return result, ok
}
