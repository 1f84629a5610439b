package camera

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Arbiter grants exclusive ownership of the capture device.
// At most one Lease is outstanding at any time.
type Arbiter struct {
	opener Opener
	index  int
	slot   chan struct{}
	log    *slog.Logger

	mu    sync.Mutex
	owner string
}

// NewArbiter creates an arbiter for device index of opener.
func NewArbiter(opener Opener, index int, logger *slog.Logger) *Arbiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Arbiter{
		opener: opener,
		index:  index,
		slot:   make(chan struct{}, 1),
		log:    logger,
	}
}

// Acquire blocks until the device is free or ctx is done, then opens it.
// The returned lease must be released; Release is idempotent.
func (a *Arbiter) Acquire(ctx context.Context, owner string) (*Lease, error) {
	select {
	case a.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, &UnavailableError{Index: a.index, Err: ctx.Err()}
	}
	return a.open(ctx, owner)
}

// TryAcquire acquires the device only if it is free right now.
// ok is false when another owner holds it.
func (a *Arbiter) TryAcquire(ctx context.Context, owner string) (lease *Lease, ok bool, err error) {
	select {
	case a.slot <- struct{}{}:
	default:
		return nil, false, nil
	}
	lease, err = a.open(ctx, owner)
	if err != nil {
		return nil, false, err
	}
	return lease, true, nil
}

// open is called with the slot held and frees it on failure.
func (a *Arbiter) open(ctx context.Context, owner string) (*Lease, error) {
	dev, err := a.opener.Open(ctx, a.index)
	if err != nil {
		<-a.slot
		a.log.Warn("capture device open failed", "owner", owner, "index", a.index, "error", err)
		return nil, &UnavailableError{Index: a.index, Err: err}
	}

	a.mu.Lock()
	a.owner = owner
	a.mu.Unlock()

	a.log.Debug("capture device acquired", "owner", owner, "index", a.index)
	return &Lease{Device: dev, arbiter: a, owner: owner, acquiredAt: time.Now()}, nil
}

// Owner returns the current lease holder, or "" when the device is free.
func (a *Arbiter) Owner() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner
}

func (a *Arbiter) release(l *Lease) error {
	err := l.Device.Release()
	a.mu.Lock()
	a.owner = ""
	a.mu.Unlock()
	<-a.slot
	a.log.Debug("capture device released", "owner", l.owner, "held", time.Since(l.acquiredAt))
	return err
}

// Lease is exclusive ownership of an opened device.
type Lease struct {
	Device

	arbiter    *Arbiter
	owner      string
	acquiredAt time.Time
	once       sync.Once
	err        error
}

// Release closes the device and frees the arbiter slot. Subsequent calls return the first result.
func (l *Lease) Release() error {
	l.once.Do(func() { l.err = l.arbiter.release(l) })
	return l.err
}
