package recognition

import (
	"time"

	"github.com/kozaktomas/frontdesk/internal/constants"
	"github.com/kozaktomas/frontdesk/internal/config"
)

// OutcomeKind classifies how a one-shot decision ended.
type OutcomeKind string

const (
	OutcomeSuccess              OutcomeKind = "success"
	OutcomeUnknown              OutcomeKind = "unknown"
	OutcomeTimedOut             OutcomeKind = "timed_out"
	OutcomeDeviceError          OutcomeKind = "device_error"
	OutcomeAlreadyAuthenticated OutcomeKind = "already_authenticated"
	OutcomeCancelled            OutcomeKind = "cancelled"
)

// Outcome is the terminal result of a one-shot decision.
type Outcome struct {
	Kind       OutcomeKind `json:"status"`
	IdentityID string      `json:"identity_id,omitempty"`
	Name       string      `json:"name,omitempty"`
	Score      float64     `json:"score"`
	// RecordMissing is set on success when the identity has no record.
	RecordMissing bool          `json:"record_missing,omitempty"`
	Frames        int           `json:"frames"`
	Elapsed       time.Duration `json:"elapsed_ns"`
	Err           error         `json:"-"`
	Error         string        `json:"error,omitempty"`
}

// Granted reports whether the outcome authenticates IdentityID.
func (o Outcome) Granted() bool {
	return o.Kind == OutcomeSuccess && o.IdentityID != "" && !o.RecordMissing
}

func (o Outcome) withErr(err error) Outcome {
	o.Err = err
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

// DecisionMode selects the initial or retry decision parameters.
type DecisionMode string

const (
	ModeInitial DecisionMode = "initial"
	ModeRetry   DecisionMode = "retry"
)

// DecisionConfig parameterizes a one-shot decision.
type DecisionConfig struct {
	Timeout             time.Duration
	MinStableFrames     int
	UnknownStableFrames int
	// ShortCircuitIfAuthenticated returns AlreadyAuthenticated without touching the device
	// when the session is already authenticated. Evaluated by the caller that owns the session.
	ShortCircuitIfAuthenticated bool
}

// DecisionConfigFor returns the decision parameters of mode.
// The retry decision needs fewer stable frames and short-circuits an authenticated session.
func DecisionConfigFor(mode DecisionMode, cfg config.FaceConfig) DecisionConfig {
	dc := DecisionConfig{
		Timeout:             cfg.DecisionTimeout,
		MinStableFrames:     cfg.MinStableFrames,
		UnknownStableFrames: cfg.UnknownStableFrames,
	}
	if mode == ModeRetry {
		dc.MinStableFrames = cfg.RetryMinStableFrames
		dc.ShortCircuitIfAuthenticated = true
	}
	if dc.Timeout <= 0 {
		dc.Timeout = constants.DecisionTimeout
	}
	return dc
}
