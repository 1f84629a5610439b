// Package recognition turns a stream of per-frame face matches into decisions:
// the bounded one-shot identity decision and the continuous greeting loop.
package recognition

import "github.com/kozaktomas/frontdesk/internal/facematch"

// StabilityVoter accepts an identity once it has been the top match of enough
// consecutive frames. A frame whose top identity differs restarts counting at 1.
// Frames without a face are not observed and do not break a streak.
type StabilityVoter struct {
	minStable     int
	unknownStable int

	last  string
	count int
}

// NewStabilityVoter creates a voter. minStable applies to known identities,
// unknownStable to "not recognized"; values below 1 are treated as 1.
func NewStabilityVoter(minStable, unknownStable int) *StabilityVoter {
	return &StabilityVoter{
		minStable:     max(1, minStable),
		unknownStable: max(1, unknownStable),
	}
}

// Observe records the top match of one frame and reports whether it is now accepted.
func (v *StabilityVoter) Observe(m facematch.MatchResult) bool {
	if m.IdentityID == v.last && v.count > 0 {
		v.count++
	} else {
		v.last = m.IdentityID
		v.count = 1
	}

	if m.Known() {
		return v.count >= v.minStable
	}
	return v.count >= v.unknownStable
}

// Count returns the consecutive frame count of the current candidate.
func (v *StabilityVoter) Count() int { return v.count }

// Candidate returns the identity currently being counted (facematch.Unknown for unknown faces).
func (v *StabilityVoter) Candidate() string { return v.last }

// Reset clears the streak.
func (v *StabilityVoter) Reset() {
	v.last = ""
	v.count = 0
}
