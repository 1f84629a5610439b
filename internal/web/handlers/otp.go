package handlers

import (
	"errors"
	"net/http"

	"github.com/kozaktomas/frontdesk/internal/otp"
)

// OTPHandler handles employee login codes.
type OTPHandler struct {
	engine Engine
}

// NewOTPHandler creates a new OTP handler.
func NewOTPHandler(e Engine) *OTPHandler {
	return &OTPHandler{engine: e}
}

type otpRequest struct {
	IdentityID string `json:"identity_id"`
	Name       string `json:"name"`
}

type otpVerifyRequest struct {
	IdentityID string `json:"identity_id"`
	Code       string `json:"code"`
}

// Request sends a login code after checking the name against the record.
func (h *OTPHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.engine.RequestLoginOTP(r.Context(), req.IdentityID, req.Name)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Verify checks a login code. Verdicts are always returned with 200 so the client
// can read the remaining attempts.
func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.engine.VerifyLoginOTP(r.Context(), req.IdentityID, req.Code)
	if err != nil && !isVerdictError(err) {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func isVerdictError(err error) bool {
	return errors.Is(err, otp.ErrCodeMismatch) ||
		errors.Is(err, otp.ErrAttemptsExhausted) ||
		errors.Is(err, otp.ErrNoSession)
}
