// Package mailer delivers one-time codes and notifications by e-mail.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDelivery marks every failed delivery.
var ErrDelivery = errors.New("delivery failed")

// DeliveryError describes a failed delivery.
type DeliveryError struct {
	To  []string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", strings.Join(e.To, ", "), e.Err)
}

func (e *DeliveryError) Unwrap() []error { return []error{ErrDelivery, e.Err} }

// Mailer sends plain text messages.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}
