package camera_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kozaktomas/frontdesk/internal/camera"
	"github.com/kozaktomas/frontdesk/internal/camera/mock"
)

func TestArbiterExclusive(t *testing.T) {
	opener := &mock.MockOpener{Frames: [][]byte{{1}}}
	arb := camera.NewArbiter(opener, 0, nil)

	var (
		wg      sync.WaitGroup
		holders atomic.Int32
		maxSeen atomic.Int32
	)
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lease, err := arb.Acquire(context.Background(), "worker")
			if err != nil {
				t.Errorf("Acquire %d: %v", i, err)
				return
			}
			n := holders.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			holders.Add(-1)
			if err := lease.Release(); err != nil {
				t.Errorf("Release %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if maxSeen.Load() != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen.Load())
	}
	if opener.MaxConcurrent() != 1 {
		t.Errorf("max concurrent devices = %d, want 1", opener.MaxConcurrent())
	}
	if opener.Opens() != 8 || opener.Releases() != 8 {
		t.Errorf("opens/releases = %d/%d, want 8/8", opener.Opens(), opener.Releases())
	}
}

func TestLeaseReleaseIdempotent(t *testing.T) {
	opener := &mock.MockOpener{}
	arb := camera.NewArbiter(opener, 0, nil)

	lease, err := arb.Acquire(context.Background(), "decision")
	if err != nil {
		t.Fatal(err)
	}
	if arb.Owner() != "decision" {
		t.Errorf("Owner() = %q, want decision", arb.Owner())
	}
	for range 3 {
		if err := lease.Release(); err != nil {
			t.Fatal(err)
		}
	}
	if opener.Releases() != 1 {
		t.Errorf("device released %d times, want 1", opener.Releases())
	}
	if arb.Owner() != "" {
		t.Errorf("Owner() = %q after release", arb.Owner())
	}

	// The slot must be free again.
	lease2, ok, err := arb.TryAcquire(context.Background(), "greeting")
	if err != nil || !ok {
		t.Fatalf("TryAcquire after release = %v, %v", ok, err)
	}
	lease2.Release()
}

func TestArbiterAcquireTimesOutWhileHeld(t *testing.T) {
	arb := camera.NewArbiter(&mock.MockOpener{}, 0, nil)
	held, err := arb.Acquire(context.Background(), "greeting")
	if err != nil {
		t.Fatal(err)
	}
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = arb.Acquire(ctx, "decision")
	if !errors.Is(err, camera.ErrDeviceUnavailable) {
		t.Errorf("error = %v, want ErrDeviceUnavailable", err)
	}

	if _, ok, err := arb.TryAcquire(context.Background(), "enroll"); ok || err != nil {
		t.Errorf("TryAcquire while held = %v, %v, want false, nil", ok, err)
	}
}

func TestArbiterOpenFailureFreesSlot(t *testing.T) {
	opener := &mock.MockOpener{OpenError: errors.New("no such device")}
	arb := camera.NewArbiter(opener, 2, nil)

	_, err := arb.Acquire(context.Background(), "decision")
	var ue *camera.UnavailableError
	if !errors.As(err, &ue) || ue.Index != 2 {
		t.Fatalf("error = %v, want UnavailableError for index 2", err)
	}

	opener.OpenError = nil
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	lease, err := arb.Acquire(ctx, "decision")
	if err != nil {
		t.Fatalf("slot not freed after failed open: %v", err)
	}
	lease.Release()
}
