// Package enroll registers new identities: an OTP-confirmed face capture appended to the embedding store.
package enroll

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
	"github.com/kozaktomas/frontdesk/internal/otp"
	"github.com/kozaktomas/frontdesk/internal/session"
)

// Options configures a Workflow.
type Options struct {
	CaptureAttempts int
	CaptureWindow   time.Duration

	// Threshold above which a collision with another identity is logged.
	Threshold float64

	// Index, when set, is used to report the nearest other identity.
	Index  *database.CentroidIndex
	Logger *slog.Logger
}

// Result describes a completed enrollment.
type Result struct {
	IdentityID string      `json:"identity_id"`
	Verdict    otp.Verdict `json:"verdict"`
	AssetPath  string      `json:"asset_path,omitempty"`
	Samples    int         `json:"samples"`

	// NearestOther is the most similar other enrolled identity before this sample was added.
	NearestOther *database.Neighbor `json:"nearest_other,omitempty"`
}

// Workflow runs the request/complete enrollment sequence.
type Workflow struct {
	assets   *AssetStore
	store    database.EmbeddingStore
	records  database.RecordReader
	otp      *otp.Manager
	arbiter  *camera.Arbiter
	detector detector.Detector
	session  *session.SessionContext
	opts     Options
	log      *slog.Logger

	// FrameInterval paces retries after a failed frame read.
	FrameInterval time.Duration
}

// NewWorkflow creates an enrollment workflow. sess receives the face grant on success.
func NewWorkflow(
	assets *AssetStore,
	store database.EmbeddingStore,
	records database.RecordReader,
	otpManager *otp.Manager,
	arbiter *camera.Arbiter,
	det detector.Detector,
	sess *session.SessionContext,
	opts Options,
) *Workflow {
	if opts.CaptureAttempts <= 0 {
		opts.CaptureAttempts = constants.EnrollCaptureAttempts
	}
	if opts.CaptureWindow <= 0 {
		opts.CaptureWindow = constants.EnrollCaptureWindow
	}
	if opts.Threshold <= 0 {
		opts.Threshold = constants.DefaultMatchThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Workflow{
		assets:        assets,
		store:         store,
		records:       records,
		otp:           otpManager,
		arbiter:       arbiter,
		detector:      det,
		session:       sess,
		opts:          opts,
		log:           opts.Logger,
		FrameInterval: constants.FrameInterval,
	}
}

// Request checks the identity can be enrolled and sends an enrollment code to its record address.
func (w *Workflow) Request(ctx context.Context, identityID string) (otp.Pending, error) {
	id := facematch.NormalizeIdentityID(identityID)
	if p, ok := w.assets.Exists(id); ok {
		return otp.Pending{}, &DuplicateIdentityError{IdentityID: id, Path: p}
	}

	rec, err := w.records.Lookup(ctx, id)
	if err != nil {
		return otp.Pending{}, fmt.Errorf("lookup %s: %w", id, err)
	}
	if rec.Email == "" {
		return otp.Pending{}, fmt.Errorf("lookup %s: %w", id, ErrNoAddress)
	}

	return w.otp.Request(ctx, otp.Request{
		IdentityID: id,
		Address:    rec.Email,
		Name:       rec.Name,
		Purpose:    otp.PurposeEnroll,
	})
}

// Complete verifies code, captures a face and enrolls it under identityID.
// On an OTP failure the verdict is returned with its error and nothing is captured.
func (w *Workflow) Complete(ctx context.Context, identityID, code string) (Result, error) {
	id := facematch.NormalizeIdentityID(identityID)
	res := Result{IdentityID: id}

	if p, ok := w.assets.Exists(id); ok {
		return res, &DuplicateIdentityError{IdentityID: id, Path: p}
	}

	rec, err := w.records.Lookup(ctx, id)
	if err != nil {
		return res, fmt.Errorf("lookup %s: %w", id, err)
	}

	verdict, err := w.otp.Verify(rec.Email, otp.PurposeEnroll, code)
	res.Verdict = verdict
	if err != nil {
		return res, err
	}

	frame, vec, err := w.capture(ctx)
	if err != nil {
		w.log.Warn("enrollment capture failed", "identity", id, "error", err)
		return res, err
	}

	res.NearestOther = w.nearestOther(id, vec)

	// The asset is the duplicate guard, so it is claimed before the embedding becomes visible.
	path, err := w.assets.Save(id, frame)
	if err != nil {
		w.log.Error("reference asset write failed", "identity", id, "path", path, "error", err)
		var swe *StorageWriteError
		if !errors.Is(err, ErrDuplicateIdentity) && !errors.As(err, &swe) {
			err = &StorageWriteError{Path: path, Err: err}
		}
		return res, err
	}

	if err := w.store.Append(ctx, id, vec); err != nil {
		if rmErr := w.assets.Remove(path); rmErr != nil {
			w.log.Error("removing reference asset after failed append", "path", path, "error", rmErr)
		}
		return res, fmt.Errorf("append embedding: %w", err)
	}
	res.AssetPath = path
	if snap := w.store.Snapshot(); snap != nil {
		if r, ok := snap.Record(id); ok {
			res.Samples = len(r.Vectors)
		}
	}

	if w.session != nil {
		w.session.SetAuthenticated(id, session.SourceFace)
	}
	w.log.Info("identity enrolled", "identity", id, "asset", path, "samples", res.Samples)
	return res, nil
}

// capture holds the device and samples frames until a face is found or the budget ends.
// It returns the frame and the normalized embedding of its largest face.
func (w *Workflow) capture(ctx context.Context) ([]byte, []float32, error) {
	lease, err := w.arbiter.Acquire(ctx, "enrollment")
	if err != nil {
		return nil, nil, err
	}
	defer lease.Release()

	for attempt := 1; attempt <= w.opts.CaptureAttempts; attempt++ {
		frame, vec, err := w.captureWindow(ctx, lease)
		if err != nil {
			return nil, nil, err
		}
		if vec != nil {
			return frame, vec, nil
		}
		w.log.Debug("no face in capture window", "attempt", attempt)
	}
	return nil, nil, ErrNoFaceDetected
}

// captureWindow reads frames for one capture window. A nil vector means no face was found.
func (w *Workflow) captureWindow(parent context.Context, dev camera.Device) ([]byte, []float32, error) {
	ctx, cancel := context.WithTimeout(parent, w.opts.CaptureWindow)
	defer cancel()

	for ctx.Err() == nil {
		frame, err := dev.ReadFrame(ctx)
		if err != nil {
			if parent.Err() != nil {
				return nil, nil, parent.Err()
			}
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, io.EOF) {
				return nil, nil, &camera.UnavailableError{Err: err}
			}
			sleepCtx(ctx, w.FrameInterval)
			continue
		}

		dets, err := w.detector.DetectFaces(ctx, frame.Data)
		if err != nil {
			if parent.Err() != nil {
				return nil, nil, parent.Err()
			}
			w.log.Debug("face detection failed", "error", err)
			sleepCtx(ctx, w.FrameInterval)
			continue
		}
		i := detector.Largest(dets)
		if i < 0 {
			continue
		}
		vec, err := database.Normalize(dets[i].Embedding)
		if err != nil {
			continue
		}
		return frame.Data, vec, nil
	}
	return nil, nil, nil
}

func (w *Workflow) nearestOther(id string, vec []float32) *database.Neighbor {
	if w.opts.Index == nil {
		return nil
	}
	for _, n := range w.opts.Index.Nearest(vec, 2) {
		if n.IdentityID == id {
			continue
		}
		if n.Similarity >= w.opts.Threshold {
			w.log.Warn("enrolled face resembles another identity",
				"identity", id, "other", n.IdentityID, "similarity", n.Similarity)
		}
		return &n
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
