// Package session holds the authentication state of the current reception-desk conversation.
package session

import (
	"errors"
	"time"
)

var (
	// ErrDecisionInProgress is returned when a one-shot decision is already running.
	ErrDecisionInProgress = errors.New("face decision already in progress")

	// ErrNotAuthenticated is returned by gated operations without a granted identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrStaleDecision is returned when a decision result arrives after the session was reset.
	ErrStaleDecision = errors.New("session changed during decision")
)

// Source records how an identity was authenticated.
type Source string

const (
	SourceNone Source = "none"
	SourceFace Source = "face"
	SourceOTP  Source = "otp"
)

// Role is the visitor's self-declared role.
type Role string

const (
	RoleNone      Role = "none"
	RoleEmployee  Role = "employee"
	RoleCandidate Role = "candidate"
	RoleVisitor   Role = "visitor"
)

// ParseRole parses a role name; unknown names yield RoleNone and false.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleNone, RoleEmployee, RoleCandidate, RoleVisitor:
		return r, true
	}
	return RoleNone, false
}

// ResetReason says why the session was reset.
type ResetReason string

const (
	ReasonWake    ResetReason = "wake"
	ReasonGoodbye ResetReason = "goodbye"
)

// State is the coarse session state.
type State string

const (
	StateIdle          State = "IDLE"
	StateRoleSelected  State = "ROLE_SELECTED"
	StateAuthenticated State = "AUTHENTICATED"
)

// AccessGrant is the access state of one identity.
type AccessGrant struct {
	Granted   bool      `json:"granted"`
	Source    Source    `json:"source"`
	GrantedAt time.Time `json:"granted_at,omitempty"`
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	ID                   string      `json:"id"`
	Generation           uint64      `json:"generation"`
	State                State       `json:"state"`
	CurrentIdentityID    string      `json:"current_identity_id,omitempty"`
	RecognitionCompleted bool        `json:"recognition_completed"`
	SelectedRole         Role        `json:"selected_role"`
	Grant                AccessGrant `json:"grant"`
	DecisionRunning      bool        `json:"decision_running"`
}
