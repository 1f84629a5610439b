package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kozaktomas/frontdesk/internal/camera"
	"github.com/kozaktomas/frontdesk/internal/constants"
	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/kozaktomas/frontdesk/internal/detector"
	"github.com/kozaktomas/frontdesk/internal/facematch"
)

// Decider runs bounded one-shot identity decisions over the capture device.
type Decider struct {
	arbiter  *camera.Arbiter
	detector detector.Detector
	matcher  *facematch.Matcher
	store    database.CentroidSource
	records  database.RecordReader
	log      *slog.Logger

	// FrameInterval paces retries after a failed frame read.
	FrameInterval time.Duration
}

// NewDecider creates a decider. records may be nil, in which case every
// recognized identity is reported with RecordMissing.
func NewDecider(
	arbiter *camera.Arbiter,
	det detector.Detector,
	matcher *facematch.Matcher,
	store database.CentroidSource,
	records database.RecordReader,
	logger *slog.Logger,
) *Decider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decider{
		arbiter:       arbiter,
		detector:      det,
		matcher:       matcher,
		store:         store,
		records:       records,
		log:           logger,
		FrameInterval: constants.FrameInterval,
	}
}

// Decide captures frames until an identity is stable, the timeout elapses or ctx is cancelled.
// The device is held for the whole decision and released on every exit path.
// A deadline yields TimedOut; cancellation of ctx yields Cancelled.
func (d *Decider) Decide(ctx context.Context, cfg DecisionConfig) Outcome {
	start := time.Now()
	out := d.decide(ctx, cfg)
	out.Elapsed = time.Since(start)

	d.log.Info("face decision finished",
		"status", out.Kind,
		"identity", out.IdentityID,
		"score", out.Score,
		"frames", out.Frames,
		"elapsed", out.Elapsed,
	)
	return out
}

func (d *Decider) decide(parent context.Context, cfg DecisionConfig) Outcome {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DecisionTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	// classify maps a done context to the terminal outcome.
	classify := func(frames int) Outcome {
		if parent.Err() != nil {
			return Outcome{Kind: OutcomeCancelled, Frames: frames}.withErr(parent.Err())
		}
		return Outcome{Kind: OutcomeTimedOut, Frames: frames}
	}

	lease, err := d.arbiter.Acquire(ctx, "decision")
	if err != nil {
		if parent.Err() != nil {
			return classify(0)
		}
		return Outcome{Kind: OutcomeDeviceError}.withErr(err)
	}
	defer lease.Release()

	voter := NewStabilityVoter(cfg.MinStableFrames, cfg.UnknownStableFrames)
	var frames, readErrors, detectErrors int

	for {
		if ctx.Err() != nil {
			return classify(frames)
		}

		frame, err := lease.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return classify(frames)
			}
			if errors.Is(err, io.EOF) {
				return Outcome{Kind: OutcomeDeviceError, Frames: frames}.withErr(fmt.Errorf("capture ended: %w", err))
			}
			readErrors++
			d.log.Debug("frame read failed", "error", err, "count", readErrors)
			if !sleepCtx(ctx, d.FrameInterval) {
				return classify(frames)
			}
			continue
		}

		dets, err := d.detector.DetectFaces(ctx, frame.Data)
		if err != nil {
			if ctx.Err() != nil {
				return classify(frames)
			}
			detectErrors++
			d.log.Debug("face detection failed", "error", err, "count", detectErrors)
			if !sleepCtx(ctx, d.FrameInterval) {
				return classify(frames)
			}
			continue
		}
		frames++

		m, ok := d.matcher.MatchDetections(dets, d.store)
		if !ok {
			continue
		}
		if !voter.Observe(m) {
			continue
		}

		if !m.Known() {
			return Outcome{Kind: OutcomeUnknown, Score: m.Score, Frames: frames}
		}
		return d.success(parent, m, frames)
	}
}

// success resolves the record of an accepted identity.
func (d *Decider) success(ctx context.Context, m facematch.MatchResult, frames int) Outcome {
	out := Outcome{Kind: OutcomeSuccess, IdentityID: m.IdentityID, Score: m.Score, Frames: frames}
	if d.records == nil {
		out.RecordMissing = true
		return out
	}

	rec, err := d.records.Lookup(ctx, m.IdentityID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		out.RecordMissing = true
	case err != nil:
		d.log.Warn("record lookup failed", "identity", m.IdentityID, "error", err)
		out.RecordMissing = true
		out = out.withErr(err)
	default:
		out.Name = rec.Name
	}
	return out
}

// sleepCtx sleeps for d or until ctx is done. Returns false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
