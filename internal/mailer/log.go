package mailer

import (
	"context"
	"log/slog"
	"sync"
)

// Message is a message captured by LogMailer.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// LogMailer logs messages instead of sending them. Used in development and tests.
type LogMailer struct {
	log *slog.Logger

	mu   sync.Mutex
	sent []Message

	// Error injection
	SendError error
}

// NewLogMailer creates a logging mailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{log: logger}
}

// Send records the message.
func (m *LogMailer) Send(ctx context.Context, to []string, subject, body string) error {
	m.mu.Lock()
	injected := m.SendError
	m.mu.Unlock()
	if injected != nil {
		return &DeliveryError{To: to, Err: injected}
	}

	m.mu.Lock()
	m.sent = append(m.sent, Message{To: append([]string(nil), to...), Subject: subject, Body: body})
	m.mu.Unlock()

	// The body carries codes; only the envelope is logged.
	m.log.Info("mail not sent (log mailer)", "to", to, "subject", subject)
	return nil
}

// SetSendError sets or clears the injected send error.
func (m *LogMailer) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendError = err
}

// Sent returns all recorded messages.
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// Last returns the most recent message.
func (m *LogMailer) Last() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return Message{}, false
	}
	return m.sent[len(m.sent)-1], true
}
