// Package mock provides a scripted capture device for testing.
package mock

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/frontdesk/internal/camera"
)

// MockOpener opens MockDevices that replay a fixed frame script.
type MockOpener struct {
	// Frames are returned in order; a nil entry makes ReadFrame fail once.
	Frames [][]byte
	// Loop restarts the script instead of returning io.EOF.
	Loop bool
	// Block makes ReadFrame wait for ctx to be done after the script is exhausted.
	Block bool
	// FrameDelay is slept before every frame.
	FrameDelay time.Duration

	// Error injection
	OpenError error

	opens    atomic.Int32
	releases atomic.Int32
	mu       sync.Mutex
	active   int
	maxOpen  int
}

// Open returns a new device over the frame script.
func (o *MockOpener) Open(ctx context.Context, index int) (camera.Device, error) {
	if o.OpenError != nil {
		return nil, o.OpenError
	}
	o.opens.Add(1)
	o.mu.Lock()
	o.active++
	o.maxOpen = max(o.maxOpen, o.active)
	o.mu.Unlock()
	return &MockDevice{opener: o}, nil
}

// Opens returns the number of successful opens.
func (o *MockOpener) Opens() int { return int(o.opens.Load()) }

// Releases returns the number of device releases.
func (o *MockOpener) Releases() int { return int(o.releases.Load()) }

// MaxConcurrent returns the largest number of devices open at the same time.
func (o *MockOpener) MaxConcurrent() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maxOpen
}

// Active returns the number of currently open devices.
func (o *MockOpener) Active() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// MockDevice replays the opener's frame script.
type MockDevice struct {
	opener   *MockOpener
	next     int
	released bool
}

// ReadFrame returns the next scripted frame.
func (d *MockDevice) ReadFrame(ctx context.Context) (camera.Frame, error) {
	if d.released {
		return camera.Frame{}, errors.New("device released")
	}
	if d.opener.FrameDelay > 0 {
		select {
		case <-ctx.Done():
			return camera.Frame{}, ctx.Err()
		case <-time.After(d.opener.FrameDelay):
		}
	}
	if d.next >= len(d.opener.Frames) {
		switch {
		case d.opener.Loop && len(d.opener.Frames) > 0:
			d.next = 0
		case d.opener.Block:
			<-ctx.Done()
			return camera.Frame{}, ctx.Err()
		default:
			return camera.Frame{}, io.EOF
		}
	}
	data := d.opener.Frames[d.next]
	d.next++
	if data == nil {
		return camera.Frame{}, errors.New("frame read failed")
	}
	return camera.Frame{Data: data, CapturedAt: time.Now(), Seq: d.next}, nil
}

// Release closes the device.
func (d *MockDevice) Release() error {
	if d.released {
		return nil
	}
	d.released = true
	d.opener.releases.Add(1)
	d.opener.mu.Lock()
	d.opener.active--
	d.opener.mu.Unlock()
	return nil
}
