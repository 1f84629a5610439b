// Package camera owns the capture device: opening it, reading frames and
// serializing access between the components that need it.
package camera

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDeviceUnavailable is returned when the capture device cannot be opened or acquired.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// Frame is one captured image.
type Frame struct {
	Data       []byte // encoded JPEG or PNG
	CapturedAt time.Time
	Seq        int
}

// Device is an opened capture device. ReadFrame returns io.EOF when the source is exhausted.
type Device interface {
	ReadFrame(ctx context.Context) (Frame, error)
	Release() error
}

// Opener opens the capture device with the given index.
type Opener interface {
	Open(ctx context.Context, index int) (Device, error)
}

// UnavailableError wraps the cause of a failed device open.
type UnavailableError struct {
	Index int
	Err   error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("capture device %d unavailable: %v", e.Index, e.Err)
}

func (e *UnavailableError) Unwrap() []error { return []error{ErrDeviceUnavailable, e.Err} }
