package handlers

import (
	"context"
	"net/http"

	"github.com/kozaktomas/frontdesk/internal/constants"
)

// EnrollHandler handles face enrollment.
type EnrollHandler struct {
	engine Engine
}

// NewEnrollHandler creates a new enrollment handler.
func NewEnrollHandler(e Engine) *EnrollHandler {
	return &EnrollHandler{engine: e}
}

type enrollRequest struct {
	IdentityID string `json:"identity_id"`
}

type enrollCompleteRequest struct {
	IdentityID string `json:"identity_id"`
	Code       string `json:"code"`
}

// Request sends an enrollment code to the identity's address.
func (h *EnrollHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.engine.RequestEnrollment(r.Context(), req.IdentityID)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Complete verifies the code and captures the face.
func (h *EnrollHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req enrollCompleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.EnrollRequestTimeout)
	defer cancel()

	res, err := h.engine.CompleteEnrollment(ctx, req.IdentityID, req.Code)
	if err != nil {
		if isVerdictError(err) {
			respondJSON(w, http.StatusOK, res)
			return
		}
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}
