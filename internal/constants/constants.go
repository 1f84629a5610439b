// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// DefaultMatchThreshold is the minimum cosine similarity between a live
	// embedding and an identity centroid to accept the identity.
	DefaultMatchThreshold = 0.65

	// DefaultSimilarLimit is the default number of neighbors in the similar identities report
	DefaultSimilarLimit = 5
)

// Decision constants
const (
	// MinStableFrames is the consecutive frame count required to accept a known identity
	// on the initial decision.
	MinStableFrames = 3

	// RetryMinStableFrames is the consecutive frame count for a retry decision.
	RetryMinStableFrames = 2

	// UnknownStableFrames is the frame count required to accept "not recognized".
	// 1 accepts the first unknown frame.
	UnknownStableFrames = 1

	// DecisionTimeout bounds the wall clock of a single decision.
	DecisionTimeout = 8 * time.Second

	// FrameInterval paces retries after a failed frame read.
	FrameInterval = 50 * time.Millisecond
)

// OTP constants
const (
	// MaxOTPAttempts is the number of verification attempts per issued code.
	MaxOTPAttempts = 3

	// OTPDigits is the length of the numeric code.
	OTPDigits = 6

	// OTPRequestsPerMinute is the per-address request burst.
	OTPRequestsPerMinute = 3
)

// Enrollment constants
const (
	// EnrollCaptureAttempts is the number of capture windows per enrollment.
	EnrollCaptureAttempts = 3

	// EnrollCaptureWindow is the length of one capture window.
	EnrollCaptureWindow = 2 * time.Second
)

// Greeting loop constants
const (
	// GreetingCooldown suppresses repeated greetings of the same identity.
	GreetingCooldown = 20 * time.Second

	// UnknownPromptInterval is the minimum interval between prompts to unknown faces.
	UnknownPromptInterval = 10 * time.Second

	// UnknownPromptDelay delays the first unknown prompt after the loop starts.
	UnknownPromptDelay = 15 * time.Second

	// GreetingBurstFrames is the number of frames read per device lease in the greeting loop.
	GreetingBurstFrames = 10
)

// Processing constants
const (
	// WorkerPoolSize is the number of engine worker goroutines
	WorkerPoolSize = 4

	// MaxImageSize is the maximum dimension (width or height) of a frame sent to the detector
	MaxImageSize = 1280

	// FaceEmbeddingDim is the embedding dimension of buffalo_l/ResNet100 models.
	FaceEmbeddingDim = 512
)
