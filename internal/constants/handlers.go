package constants

import "time"

// HTTP handler constants
const (
	// MaxRequestBodyBytes limits JSON request bodies
	MaxRequestBodyBytes = 1 << 20

	// DecisionRequestTimeout bounds a decision request end to end. It must exceed DecisionTimeout
	// so the capture loop, not the router, decides the outcome.
	DecisionRequestTimeout = 30 * time.Second

	// EnrollRequestTimeout bounds an enrollment completion request.
	EnrollRequestTimeout = 60 * time.Second

	// WorkerQueueSize is the number of pending tasks the engine worker accepts.
	WorkerQueueSize = 16
)
