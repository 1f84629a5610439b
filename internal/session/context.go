package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionContext is the single owner of identity, role and access grants.
// All fields are guarded by one lock so identity and grant are never observed inconsistent.
type SessionContext struct {
	log *slog.Logger

	mu                   sync.RWMutex
	id                   string
	generation           uint64
	currentIdentityID    string
	recognitionCompleted bool
	selectedRole         Role
	grants               map[string]AccessGrant
	decisionRunning      bool
}

// New creates an idle session.
func New(logger *slog.Logger) *SessionContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionContext{
		log:          logger,
		id:           uuid.NewString(),
		selectedRole: RoleNone,
		grants:       make(map[string]AccessGrant),
	}
}

// Reset starts a new conversation: identity, role, completion flag and all grants are cleared.
// A running decision is not interrupted, but its result will be rejected as stale.
func (s *SessionContext) Reset(reason ResetReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.log.Info("session reset", "session", s.id, "reason", reason, "generation", s.generation)
}

// Clear ends the conversation on goodbye. It is Reset(ReasonGoodbye).
func (s *SessionContext) Clear() {
	s.Reset(ReasonGoodbye)
}

func (s *SessionContext) resetLocked() {
	s.generation++
	s.id = uuid.NewString()
	s.currentIdentityID = ""
	s.recognitionCompleted = false
	s.selectedRole = RoleNone
	s.grants = make(map[string]AccessGrant)
}

// SelectRole records the declared role.
func (s *SessionContext) SelectRole(role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedRole = role
}

// SetAuthenticated grants access to identityID and makes it the current identity.
func (s *SessionContext) SetAuthenticated(identityID string, source Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setAuthenticatedLocked(identityID, source)
}

// SetAuthenticatedAt is SetAuthenticated for a result computed during generation gen.
// It fails with ErrStaleDecision if the session was reset since.
func (s *SessionContext) SetAuthenticatedAt(gen uint64, identityID string, source Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return ErrStaleDecision
	}
	s.setAuthenticatedLocked(identityID, source)
	return nil
}

func (s *SessionContext) setAuthenticatedLocked(identityID string, source Source) {
	s.currentIdentityID = identityID
	s.recognitionCompleted = true
	s.grants[identityID] = AccessGrant{Granted: true, Source: source, GrantedAt: time.Now()}
	s.log.Info("session authenticated", "session", s.id, "identity", identityID, "source", source)
}

// BeginDecision marks a one-shot decision as running and returns the current generation.
func (s *SessionContext) BeginDecision() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decisionRunning {
		return 0, ErrDecisionInProgress
	}
	s.decisionRunning = true
	return s.generation, nil
}

// EndDecision clears the running flag.
func (s *SessionContext) EndDecision() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisionRunning = false
}

// Generation returns the reset counter.
func (s *SessionContext) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// IsGranted reports whether identityID has been granted access.
func (s *SessionContext) IsGranted(identityID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[identityID].Granted
}

// Grant returns the grant of identityID.
func (s *SessionContext) Grant(identityID string) AccessGrant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.grants[identityID]; ok {
		return g
	}
	return AccessGrant{Source: SourceNone}
}

// Current returns the current identity and whether it is granted, read together.
func (s *SessionContext) Current() (identityID string, granted bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentIdentityID, s.currentIdentityID != "" && s.grants[s.currentIdentityID].Granted
}

// Authenticated reports whether the current identity holds a grant.
func (s *SessionContext) Authenticated() bool {
	_, ok := s.Current()
	return ok
}

// State returns the coarse session state.
func (s *SessionContext) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *SessionContext) stateLocked() State {
	switch {
	case s.currentIdentityID != "" && s.grants[s.currentIdentityID].Granted:
		return StateAuthenticated
	case s.selectedRole != RoleNone:
		return StateRoleSelected
	default:
		return StateIdle
	}
}

// Snapshot returns a consistent copy of the session.
func (s *SessionContext) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		ID:                   s.id,
		Generation:           s.generation,
		State:                s.stateLocked(),
		CurrentIdentityID:    s.currentIdentityID,
		RecognitionCompleted: s.recognitionCompleted,
		SelectedRole:         s.selectedRole,
		Grant:                AccessGrant{Source: SourceNone},
		DecisionRunning:      s.decisionRunning,
	}
	if g, ok := s.grants[s.currentIdentityID]; ok {
		snap.Grant = g
	}
	return snap
}
