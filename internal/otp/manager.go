// Package otp issues, delivers and verifies one-time numeric codes.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/frontdesk/internal/constants"
	"github.com/kozaktomas/frontdesk/internal/mailer"
	potp "github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"golang.org/x/time/rate"
)

// maxLimiters bounds the per-address limiter map before idle limiters are pruned.
const maxLimiters = 1024

// CodeGenerator returns a fresh numeric code.
type CodeGenerator func() (string, error)

// HOTPGenerator derives each code from a fresh random secret with HOTP (RFC 4226).
func HOTPGenerator() CodeGenerator {
	return func() (string, error) {
		var buf [28]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		secret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf[:20])
		counter := binary.BigEndian.Uint64(buf[20:])
		return hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
			Digits:    potp.DigitsSix,
			Algorithm: potp.AlgorithmSHA1,
		})
	}
}

// Request describes a code to issue.
type Request struct {
	IdentityID string
	Address    string
	Name       string
	Purpose    Purpose
}

// Options configures a Manager.
type Options struct {
	MaxAttempts       int
	RequestsPerMinute int
	Generator         CodeGenerator
	Logger            *slog.Logger
}

// Manager keeps pending codes in memory. Each address has at most one pending code;
// a new request replaces it.
type Manager struct {
	mailer      mailer.Mailer
	maxAttempts int
	perMinute   int
	generate    CodeGenerator
	log         *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	limiters map[string]*rate.Limiter
}

// NewManager creates a code manager delivering through m.
func NewManager(m mailer.Mailer, opts Options) *Manager {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = constants.MaxOTPAttempts
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = constants.OTPRequestsPerMinute
	}
	if opts.Generator == nil {
		opts.Generator = HOTPGenerator()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		mailer:      m,
		maxAttempts: opts.MaxAttempts,
		perMinute:   opts.RequestsPerMinute,
		generate:    opts.Generator,
		log:         opts.Logger,
		sessions:    make(map[string]*Session),
		limiters:    make(map[string]*rate.Limiter),
	}
}

// MaxAttempts returns the verification attempts allowed per code.
func (m *Manager) MaxAttempts() int { return m.maxAttempts }

// Request issues a code for req.Address, replacing any pending one, and delivers it.
// If delivery fails the new session is discarded and a *mailer.DeliveryError is returned.
func (m *Manager) Request(ctx context.Context, req Request) (Pending, error) {
	addr := normalizeAddress(req.Address)
	if addr == "" {
		return Pending{}, errors.New("empty delivery address")
	}
	if req.Purpose == "" {
		req.Purpose = PurposeLogin
	}
	if !m.allow(addr) {
		m.log.Warn("otp request throttled", "identity", req.IdentityID, "to", MaskAddress(addr))
		return Pending{}, ErrThrottled
	}

	code, err := m.generate()
	if err != nil {
		return Pending{}, fmt.Errorf("generate code: %w", err)
	}

	s := &Session{
		Address:    addr,
		IdentityID: req.IdentityID,
		Purpose:    req.Purpose,
		CreatedAt:  time.Now(),
		code:       code,
	}
	m.mu.Lock()
	m.sessions[addr] = s
	m.mu.Unlock()

	subject, body := renderMessage(req.Purpose, req.Name, code)
	if err := m.mailer.Send(ctx, []string{addr}, subject, body); err != nil {
		m.remove(addr, s)
		m.log.Warn("otp delivery failed", "identity", req.IdentityID, "to", MaskAddress(addr), "error", err)
		var de *mailer.DeliveryError
		if !errors.As(err, &de) {
			err = &mailer.DeliveryError{To: []string{addr}, Err: err}
		}
		return Pending{}, err
	}

	m.log.Info("otp issued", "identity", req.IdentityID, "purpose", req.Purpose, "to", MaskAddress(addr))
	return Pending{
		IdentityID: req.IdentityID,
		SentTo:     MaskAddress(addr),
		Purpose:    req.Purpose,
		CreatedAt:  s.CreatedAt,
	}, nil
}

// Verify checks code against the pending session of address.
// The attempt limit is checked before the code; exhaustion and success purge the session.
// A session issued for another purpose is reported as NO_SESSION.
func (m *Manager) Verify(address string, purpose Purpose, code string) (Verdict, error) {
	addr := normalizeAddress(address)

	m.mu.Lock()
	s := m.sessions[addr]
	m.mu.Unlock()
	if s == nil || s.Purpose != purpose {
		v := Verdict{Status: StatusNoSession}
		return v, v.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The session may have been replaced or purged while this call waited.
	if !m.isCurrent(addr, s) {
		v := Verdict{Status: StatusNoSession}
		return v, v.Err()
	}

	if s.Attempts >= m.maxAttempts {
		m.remove(addr, s)
		m.log.Info("otp attempts exhausted", "identity", s.IdentityID, "purpose", s.Purpose)
		v := Verdict{Status: StatusExpiredAttempts, IdentityID: s.IdentityID}
		return v, v.Err()
	}

	if subtle.ConstantTimeCompare([]byte(normalizeCode(code)), []byte(s.code)) == 1 {
		s.Verified = true
		m.remove(addr, s)
		m.log.Info("otp verified", "identity", s.IdentityID, "purpose", s.Purpose)
		return Verdict{Status: StatusVerified, IdentityID: s.IdentityID}, nil
	}

	s.Attempts++
	v := Verdict{Status: StatusMismatch, AttemptsRemaining: m.maxAttempts - s.Attempts, IdentityID: s.IdentityID}
	m.log.Info("otp mismatch", "identity", s.IdentityID, "purpose", s.Purpose, "remaining", v.AttemptsRemaining)
	return v, v.Err()
}

// Pending reports whether address has a pending code of the given purpose.
func (m *Manager) Pending(address string, purpose Purpose) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[normalizeAddress(address)]
	return s != nil && s.Purpose == purpose
}

// Cancel discards any pending code of address.
func (m *Manager) Cancel(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, normalizeAddress(address))
}

// Reset discards all pending codes.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*Session)
}

func (m *Manager) isCurrent(addr string, s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[addr] == s
}

// remove deletes the session of addr only if it is still s.
func (m *Manager) remove(addr string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[addr] == s {
		delete(m.sessions, addr)
	}
}

// allow applies the per-address request limit.
func (m *Manager) allow(addr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.limiters[addr]
	if !ok {
		if len(m.limiters) >= maxLimiters {
			m.pruneLimiters()
		}
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.perMinute)), m.perMinute)
		m.limiters[addr] = l
	}
	return l.Allow()
}

// pruneLimiters drops limiters that have fully refilled. Caller holds m.mu.
func (m *Manager) pruneLimiters() {
	for addr, l := range m.limiters {
		if l.Tokens() >= float64(l.Burst()) {
			delete(m.limiters, addr)
		}
	}
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func renderMessage(purpose Purpose, name, code string) (subject, body string) {
	if purpose == PurposeEnroll {
		return "Face Registration OTP", "Your OTP for face registration is: " + code
	}
	if name == "" {
		name = "there"
	}
	return "Your One-Time Password (OTP)", fmt.Sprintf("Hello %s, your OTP is: %s", name, code)
}
