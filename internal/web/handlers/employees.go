package handlers

import (
	"net/http"

	"github.com/kozaktomas/frontdesk/internal/engine"
)

// EmployeesHandler serves access-gated employee information, the visitor log and candidate arrivals.
type EmployeesHandler struct {
	engine Engine
}

// NewEmployeesHandler creates a new employees handler.
func NewEmployeesHandler(e Engine) *EmployeesHandler {
	return &EmployeesHandler{engine: e}
}

// Me returns the non-confidential record of the authenticated identity.
func (h *EmployeesHandler) Me(w http.ResponseWriter, r *http.Request) {
	info, err := h.engine.EmployeeInfo(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// LogVisitor records a visitor and notifies the host. A visit that was logged but
// whose host could not be notified is reported with 202 and the error.
func (h *EmployeesHandler) LogVisitor(w http.ResponseWriter, r *http.Request) {
	var req engine.VisitorCheckIn
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := h.engine.LogVisitor(r.Context(), req)
	if err != nil {
		if receipt.Visitor.Name == "" {
			respondEngineError(w, r, err)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]any{
			"receipt": receipt,
			"error":   err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusCreated, receipt)
}

// CandidateCheckIn confirms an interview and notifies the interviewer. A confirmed
// interview whose interviewer could not be notified is reported with 202 and the error.
func (h *EmployeesHandler) CandidateCheckIn(w http.ResponseWriter, r *http.Request) {
	var req engine.CandidateCheckIn
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := h.engine.CandidateCheckIn(r.Context(), req)
	if err != nil {
		if receipt.Candidate.InterviewCode == "" {
			respondEngineError(w, r, err)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]any{
			"receipt": receipt,
			"error":   err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusCreated, receipt)
}
