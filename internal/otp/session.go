package otp

import (
	"strings"
	"sync"
	"time"
)

// Purpose separates login codes from enrollment codes.
type Purpose string

const (
	PurposeLogin  Purpose = "login"
	PurposeEnroll Purpose = "enroll"
)

// Session is one pending code, keyed by delivery address.
type Session struct {
	Address    string
	IdentityID string
	Purpose    Purpose
	CreatedAt  time.Time
	Verified   bool
	Attempts   int

	code string
	mu   sync.Mutex
}

// Status is the verification verdict.
type Status string

const (
	StatusVerified        Status = "VERIFIED"
	StatusMismatch        Status = "MISMATCH"
	StatusExpiredAttempts Status = "EXPIRED_ATTEMPTS"
	StatusNoSession       Status = "NO_SESSION"
)

// Verdict is the result of one verification.
type Verdict struct {
	Status            Status `json:"status"`
	AttemptsRemaining int    `json:"attempts_remaining"`
	IdentityID        string `json:"identity_id,omitempty"`
}

// Err maps the verdict to its sentinel error; nil when verified.
func (v Verdict) Err() error {
	switch v.Status {
	case StatusVerified:
		return nil
	case StatusMismatch:
		return ErrCodeMismatch
	case StatusExpiredAttempts:
		return ErrAttemptsExhausted
	default:
		return ErrNoSession
	}
}

// Pending describes an issued code without revealing it.
type Pending struct {
	IdentityID string    `json:"identity_id"`
	SentTo     string    `json:"sent_to"`
	Purpose    Purpose   `json:"purpose"`
	CreatedAt  time.Time `json:"created_at"`
}

// MaskAddress hides most of the local part of an e-mail address ("jana@example.com" -> "j***@example.com").
func MaskAddress(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}

// normalizeCode drops whitespace from a spoken or typed code.
func normalizeCode(code string) string {
	return strings.Join(strings.Fields(code), "")
}
