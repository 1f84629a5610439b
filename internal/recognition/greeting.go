package recognition

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/frontdesk/internal/camera"
	"github.com/kozaktomas/frontdesk/internal/constants"
	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/kozaktomas/frontdesk/internal/detector"
	"github.com/kozaktomas/frontdesk/internal/facematch"
)

// ErrAlreadyRunning is returned when starting a greeting loop that is already running.
var ErrAlreadyRunning = errors.New("greeting loop already running")

// Greeting is emitted when a known identity is stably recognized.
type Greeting struct {
	IdentityID string
	Name       string
	Score      float64
}

// GreetingHandler receives greeting loop events. Calls are made from the loop goroutine.
type GreetingHandler interface {
	Greet(ctx context.Context, g Greeting)
	PromptUnknown(ctx context.Context)
}

// GreetingConfig tunes the greeting loop.
type GreetingConfig struct {
	Cooldown        time.Duration // per identity
	UnknownInterval time.Duration // between unknown prompts
	UnknownDelay    time.Duration // before the first unknown prompt
	MinStableFrames int
	BurstFrames     int           // frames read per device lease
	Idle            time.Duration // pause between bursts, leaving the device to others
}

// DefaultGreetingConfig returns the standard greeting loop settings.
func DefaultGreetingConfig() GreetingConfig {
	return GreetingConfig{
		Cooldown:        constants.GreetingCooldown,
		UnknownInterval: constants.UnknownPromptInterval,
		UnknownDelay:    constants.UnknownPromptDelay,
		MinStableFrames: constants.MinStableFrames,
		BurstFrames:     constants.GreetingBurstFrames,
		Idle:            200 * time.Millisecond,
	}
}

// GreetingLoop continuously watches the camera and greets recognized people.
// It holds the device only for short bursts so one-shot decisions can interleave.
type GreetingLoop struct {
	arbiter  *camera.Arbiter
	detector detector.Detector
	matcher  *facematch.Matcher
	store    database.CentroidSource
	records  database.RecordReader
	handler  GreetingHandler
	cfg      GreetingConfig
	log      *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time

	lastGreeted map[string]time.Time
	lastPrompt  time.Time
	voter       *StabilityVoter
}

// NewGreetingLoop creates a stopped greeting loop.
func NewGreetingLoop(
	arbiter *camera.Arbiter,
	det detector.Detector,
	matcher *facematch.Matcher,
	store database.CentroidSource,
	records database.RecordReader,
	handler GreetingHandler,
	cfg GreetingConfig,
	logger *slog.Logger,
) *GreetingLoop {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BurstFrames <= 0 {
		cfg.BurstFrames = constants.GreetingBurstFrames
	}
	return &GreetingLoop{
		arbiter:  arbiter,
		detector: det,
		matcher:  matcher,
		store:    store,
		records:  records,
		handler:  handler,
		cfg:      cfg,
		log:      logger,
	}
}

// Start launches the loop in its own goroutine. It runs until Stop or ctx is done.
func (g *GreetingLoop) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})
	g.started = time.Now()
	g.lastGreeted = make(map[string]time.Time)
	g.lastPrompt = time.Time{}
	g.voter = NewStabilityVoter(g.cfg.MinStableFrames, g.cfg.MinStableFrames)

	go g.run(ctx, g.done)
	g.log.Info("greeting loop started")
	return nil
}

// Stop cancels the loop and waits until it has released the device.
func (g *GreetingLoop) Stop() {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.cancel, g.done = nil, nil
	g.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	g.log.Info("greeting loop stopped")
}

// Running reports whether the loop is active.
func (g *GreetingLoop) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancel != nil
}

func (g *GreetingLoop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for ctx.Err() == nil {
		if err := g.burst(ctx); err != nil && ctx.Err() == nil {
			g.log.Debug("greeting burst failed", "error", err)
		}
		if !sleepCtx(ctx, g.cfg.Idle) {
			return
		}
	}
}

// burst acquires the device, processes up to BurstFrames frames and releases it.
func (g *GreetingLoop) burst(ctx context.Context) error {
	lease, err := g.arbiter.Acquire(ctx, "greeting")
	if err != nil {
		return err
	}
	defer lease.Release()

	for range g.cfg.BurstFrames {
		frame, err := lease.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		dets, err := g.detector.DetectFaces(ctx, frame.Data)
		if err != nil {
			continue
		}
		m, ok := g.matcher.MatchDetections(dets, g.store)
		if !ok {
			continue
		}
		if g.voter.Observe(m) {
			g.voter.Reset()
			g.accept(ctx, m, time.Now())
		}
	}
	return nil
}

func (g *GreetingLoop) accept(ctx context.Context, m facematch.MatchResult, now time.Time) {
	if !m.Known() {
		if now.Sub(g.started) < g.cfg.UnknownDelay {
			return
		}
		if !g.lastPrompt.IsZero() && now.Sub(g.lastPrompt) < g.cfg.UnknownInterval {
			return
		}
		g.lastPrompt = now
		g.handler.PromptUnknown(ctx)
		return
	}

	if last, ok := g.lastGreeted[m.IdentityID]; ok && now.Sub(last) < g.cfg.Cooldown {
		return
	}
	g.lastGreeted[m.IdentityID] = now

	greeting := Greeting{IdentityID: m.IdentityID, Score: m.Score}
	if g.records != nil {
		if rec, err := g.records.Lookup(ctx, m.IdentityID); err == nil {
			greeting.Name = rec.Name
		}
	}
	g.log.Info("greeting", "identity", greeting.IdentityID, "score", greeting.Score)
	g.handler.Greet(ctx, greeting)
}
