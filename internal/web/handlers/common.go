package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kozaktomas/frontdesk/internal/camera"
	"github.com/kozaktomas/frontdesk/internal/constants"
	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/kozaktomas/frontdesk/internal/engine"
	"github.com/kozaktomas/frontdesk/internal/enroll"
	"github.com/kozaktomas/frontdesk/internal/mailer"
	"github.com/kozaktomas/frontdesk/internal/otp"
	"github.com/kozaktomas/frontdesk/internal/recognition"
	"github.com/kozaktomas/frontdesk/internal/session"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// Engine is the part of engine.Engine the HTTP layer uses.
type Engine interface {
	SessionSnapshot() session.Snapshot
	Wake() session.Snapshot
	Goodbye() session.Snapshot
	SelectRole(role string) (session.Snapshot, error)

	Decide(ctx context.Context, mode recognition.DecisionMode) (recognition.Outcome, error)
	StopDecision() bool

	RequestLoginOTP(ctx context.Context, identityID, name string) (otp.Pending, error)
	VerifyLoginOTP(ctx context.Context, identityID, code string) (otp.Verdict, error)

	RequestEnrollment(ctx context.Context, identityID string) (otp.Pending, error)
	CompleteEnrollment(ctx context.Context, identityID, code string) (enroll.Result, error)

	EmployeeInfo(ctx context.Context) (engine.EmployeeInfo, error)
	LogVisitor(ctx context.Context, in engine.VisitorCheckIn) (engine.VisitorReceipt, error)
	CandidateCheckIn(ctx context.Context, in engine.CandidateCheckIn) (engine.CandidateReceipt, error)

	Identities() []database.IdentitySummary
	Similar(identityID string, limit int) ([]database.Neighbor, error)

	StartGreeting(ctx context.Context) error
	StopGreeting()
	GreetingRunning() bool
	GreetingEvents() []engine.GreetingEvent
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	return true
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, engine.ErrNameMismatch):
		return http.StatusForbidden
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrDecisionInProgress),
		errors.Is(err, enroll.ErrDuplicateIdentity),
		errors.Is(err, engine.ErrAlreadyAuthenticated):
		return http.StatusConflict
	case errors.Is(err, otp.ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, enroll.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, camera.ErrDeviceUnavailable),
		errors.Is(err, engine.ErrNotConfigured),
		errors.Is(err, engine.ErrWorkerStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, mailer.ErrDelivery):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondEngineError logs and sends err with its mapped status.
func respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", sanitizeForLog(r.URL.Path), "error", err)
	}
	respondError(w, status, err.Error())
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
