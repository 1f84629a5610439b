package otp

import "errors"

var (
	// ErrNoSession is returned when no pending code exists for the address and purpose.
	ErrNoSession = errors.New("no pending one-time code")

	// ErrAttemptsExhausted is returned when the attempt limit was reached. The session is purged.
	ErrAttemptsExhausted = errors.New("one-time code attempts exhausted")

	// ErrCodeMismatch is returned for a wrong code while attempts remain.
	ErrCodeMismatch = errors.New("one-time code mismatch")

	// ErrThrottled is returned when an address requests codes too quickly.
	ErrThrottled = errors.New("too many one-time code requests")
)
