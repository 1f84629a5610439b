package handlers

import (
	"context"
	"net/http"

	"github.com/kozaktomas/frontdesk/internal/constants"
	"github.com/kozaktomas/frontdesk/internal/recognition"
)

// DecisionHandler runs one-shot face decisions.
type DecisionHandler struct {
	engine Engine
}

// NewDecisionHandler creates a new decision handler.
func NewDecisionHandler(e Engine) *DecisionHandler {
	return &DecisionHandler{engine: e}
}

type decisionRequest struct {
	Mode recognition.DecisionMode `json:"mode"`
}

// Decide runs a decision and returns its outcome. Every terminal outcome is 200;
// errors are reserved for requests that never ran.
func (h *DecisionHandler) Decide(w http.ResponseWriter, r *http.Request) {
	req := decisionRequest{Mode: recognition.ModeInitial}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = recognition.ModeInitial
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.DecisionRequestTimeout)
	defer cancel()

	out, err := h.engine.Decide(ctx, req.Mode)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// Stop cancels a running decision.
func (h *DecisionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"stopped": h.engine.StopDecision()})
}
