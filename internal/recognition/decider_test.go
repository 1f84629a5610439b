package recognition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/frontdesk/internal/camera"
	cammock "github.com/kozaktomas/frontdesk/internal/camera/mock"
	"github.com/kozaktomas/frontdesk/internal/config"
	"github.com/kozaktomas/frontdesk/internal/database"
	dbmock "github.com/kozaktomas/frontdesk/internal/database/mock"
	detmock "github.com/kozaktomas/frontdesk/internal/detector/mock"
	"github.com/kozaktomas/frontdesk/internal/facematch"
)

var (
	frameA       = []byte("frame-a")
	frameB       = []byte("frame-b")
	frameUnknown = []byte("frame-unknown")
	frameEmpty   = []byte("frame-empty")
	frameZero    = []byte("frame-zero")
	frameGhost   = []byte("frame-ghost")
)

type fixture struct {
	opener  *cammock.MockOpener
	records *dbmock.MockRecordStore
	decider *Decider
}

func newFixture(t *testing.T, frames ...[]byte) *fixture {
	t.Helper()

	store := dbmock.NewMockEmbeddingStore(3)
	if err := store.Seed("E001", []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := store.Seed("E002", []float32{0, 1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := store.Seed("E404", []float32{0, 0, 1}); err != nil {
		t.Fatal(err)
	}

	records := dbmock.NewMockRecordStore()
	records.AddRecord(database.Record{IdentityID: "E001", Name: "Jana Nováková", Email: "jana@example.com"})
	records.AddRecord(database.Record{IdentityID: "E002", Name: "Petr Svoboda", Email: "petr@example.com"})

	det := detmock.NewMockDetector().
		On(frameA, detmock.Face(1, 0.05, 0)).
		On(frameB, detmock.Face(0, 1, 0.05)).
		On(frameUnknown, detmock.Face(1, 1, 1)).
		On(frameZero, detmock.Face(0, 0, 0)).
		On(frameGhost, detmock.Face(0, 0.05, 1))

	opener := &cammock.MockOpener{Frames: frames}
	arb := camera.NewArbiter(opener, 0, nil)
	d := NewDecider(arb, det, facematch.NewMatcher(0.65), store, records, nil)
	d.FrameInterval = time.Millisecond

	return &fixture{opener: opener, records: records, decider: d}
}

func (f *fixture) assertReleased(t *testing.T) {
	t.Helper()
	if f.opener.Active() != 0 || f.opener.Releases() != f.opener.Opens() {
		t.Errorf("device not released: opens=%d releases=%d active=%d", f.opener.Opens(), f.opener.Releases(), f.opener.Active())
	}
}

func initialConfig() DecisionConfig {
	return DecisionConfig{Timeout: time.Second, MinStableFrames: 3, UnknownStableFrames: 1}
}

func TestDecideSuccess(t *testing.T) {
	f := newFixture(t, frameA, frameEmpty, frameA, frameA)

	out := f.decider.Decide(context.Background(), initialConfig())

	if out.Kind != OutcomeSuccess || out.IdentityID != "E001" || out.Name != "Jana Nováková" {
		t.Fatalf("outcome = %+v, want success E001", out)
	}
	if !out.Granted() {
		t.Error("success with record should be granted")
	}
	if out.Frames != 4 {
		t.Errorf("Frames = %d, want 4", out.Frames)
	}
	f.assertReleased(t)
}

func TestDecideFlickerNeedsConsecutiveFrames(t *testing.T) {
	f := newFixture(t, frameA, frameA, frameB, frameA, frameA, frameA)

	out := f.decider.Decide(context.Background(), initialConfig())
	if out.Kind != OutcomeSuccess || out.IdentityID != "E001" || out.Frames != 6 {
		t.Errorf("outcome = %+v, want E001 after 6 frames", out)
	}
}

func TestDecideRetryNeedsTwoFrames(t *testing.T) {
	f := newFixture(t, frameB, frameB)

	cfg := initialConfig()
	cfg.MinStableFrames = 2
	out := f.decider.Decide(context.Background(), cfg)
	if out.Kind != OutcomeSuccess || out.IdentityID != "E002" {
		t.Errorf("outcome = %+v, want E002", out)
	}
}

func TestDecideUnknownIsImmediate(t *testing.T) {
	f := newFixture(t, frameA, frameUnknown, frameA, frameA, frameA)

	out := f.decider.Decide(context.Background(), initialConfig())
	if out.Kind != OutcomeUnknown {
		t.Fatalf("outcome = %+v, want unknown", out)
	}
	if out.Granted() {
		t.Error("unknown must not be granted")
	}
	if out.Frames != 2 {
		t.Errorf("Frames = %d, want 2", out.Frames)
	}
	f.assertReleased(t)
}

func TestDecideSkipsDegenerateEmbeddings(t *testing.T) {
	f := newFixture(t, frameZero, frameA, frameZero, frameA, frameA)

	out := f.decider.Decide(context.Background(), initialConfig())
	if out.Kind != OutcomeSuccess || out.IdentityID != "E001" {
		t.Errorf("outcome = %+v, want E001", out)
	}
}

func TestDecideRecordMissing(t *testing.T) {
	f := newFixture(t, frameGhost, frameGhost, frameGhost)

	out := f.decider.Decide(context.Background(), initialConfig())
	if out.Kind != OutcomeSuccess || out.IdentityID != "E404" || !out.RecordMissing {
		t.Fatalf("outcome = %+v, want success with missing record", out)
	}
	if out.Granted() {
		t.Error("identity without record must not be granted")
	}
}

func TestDecideTimedOut(t *testing.T) {
	f := newFixture(t, frameEmpty, frameEmpty)
	f.opener.Block = true

	cfg := initialConfig()
	cfg.Timeout = 50 * time.Millisecond
	start := time.Now()
	out := f.decider.Decide(context.Background(), cfg)

	if out.Kind != OutcomeTimedOut {
		t.Fatalf("outcome = %+v, want timed_out", out)
	}
	if time.Since(start) > time.Second {
		t.Errorf("decision took %v", time.Since(start))
	}
	f.assertReleased(t)
}

func TestDecideCancelled(t *testing.T) {
	f := newFixture(t)
	f.opener.Block = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	cfg := initialConfig()
	cfg.Timeout = 5 * time.Second
	out := f.decider.Decide(ctx, cfg)

	if out.Kind != OutcomeCancelled {
		t.Fatalf("outcome = %+v, want cancelled", out)
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", out.Err)
	}
	f.assertReleased(t)
}

func TestDecideDeviceErrors(t *testing.T) {
	t.Run("open fails", func(t *testing.T) {
		f := newFixture(t)
		f.opener.OpenError = errors.New("camera unplugged")

		out := f.decider.Decide(context.Background(), initialConfig())
		if out.Kind != OutcomeDeviceError || !errors.Is(out.Err, camera.ErrDeviceUnavailable) {
			t.Errorf("outcome = %+v, want device_error", out)
		}
	})

	t.Run("stream ends", func(t *testing.T) {
		f := newFixture(t, frameEmpty, frameA)

		out := f.decider.Decide(context.Background(), initialConfig())
		if out.Kind != OutcomeDeviceError {
			t.Errorf("outcome = %+v, want device_error", out)
		}
		f.assertReleased(t)
	})

	t.Run("read errors are skipped", func(t *testing.T) {
		f := newFixture(t, nil, frameA, nil, frameA, frameA)

		out := f.decider.Decide(context.Background(), initialConfig())
		if out.Kind != OutcomeSuccess {
			t.Errorf("outcome = %+v, want success", out)
		}
	})
}

func TestDecisionConfigFor(t *testing.T) {
	cfg := DecisionConfigFor(ModeRetry, faceConfig())
	if cfg.MinStableFrames != 2 || !cfg.ShortCircuitIfAuthenticated {
		t.Errorf("retry config = %+v", cfg)
	}
	cfg = DecisionConfigFor(ModeInitial, faceConfig())
	if cfg.MinStableFrames != 3 || cfg.ShortCircuitIfAuthenticated || cfg.Timeout != 8*time.Second {
		t.Errorf("initial config = %+v", cfg)
	}
}

func faceConfig() config.FaceConfig {
	return config.FaceConfig{
		Threshold:            0.65,
		MinStableFrames:      3,
		RetryMinStableFrames: 2,
		UnknownStableFrames:  1,
		DecisionTimeout:      8 * time.Second,
	}
}

func TestDecidePacesDetectorErrors(t *testing.T) {
	frameBroken := []byte("frame-broken")
	det := detmock.NewMockDetector().FailOn(frameBroken, errors.New("detector down"))
	opener := &cammock.MockOpener{Frames: [][]byte{frameBroken}, Loop: true}
	store := dbmock.NewMockEmbeddingStore(3)
	d := NewDecider(camera.NewArbiter(opener, 0, nil), det, facematch.NewMatcher(0.65), store, nil, nil)
	d.FrameInterval = 20 * time.Millisecond

	out := d.Decide(context.Background(), DecisionConfig{Timeout: 100 * time.Millisecond, MinStableFrames: 3, UnknownStableFrames: 1})
	if out.Kind != OutcomeTimedOut {
		t.Fatalf("outcome = %+v, want timed_out", out)
	}
	// About one call per frame interval within the timeout.
	if calls := det.Calls(); calls > 10 {
		t.Errorf("detector called %d times, want pacing by the frame interval", calls)
	}
	if opener.Active() != 0 {
		t.Error("device not released")
	}
}
