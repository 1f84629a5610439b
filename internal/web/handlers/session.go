package handlers

import (
	"net/http"
)

// SessionHandler handles the conversation lifecycle.
type SessionHandler struct {
	engine Engine
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(e Engine) *SessionHandler {
	return &SessionHandler{engine: e}
}

// Get returns the current session state.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.SessionSnapshot())
}

// Wake starts a new conversation.
func (h *SessionHandler) Wake(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Wake())
}

// Goodbye ends the conversation.
func (h *SessionHandler) Goodbye(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Goodbye())
}

type roleRequest struct {
	Role string `json:"role"`
}

// SelectRole records the visitor's declared role.
func (h *SessionHandler) SelectRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := h.engine.SelectRole(req.Role)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}
