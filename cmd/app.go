package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/frontdesk/internal/camera"
	"github.com/kozaktomas/frontdesk/internal/config"
	"github.com/kozaktomas/frontdesk/internal/constants"
	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/kozaktomas/frontdesk/internal/database/csvstore"
	"github.com/kozaktomas/frontdesk/internal/database/mariadb"
	"github.com/kozaktomas/frontdesk/internal/database/postgres"
	"github.com/kozaktomas/frontdesk/internal/detector"
	"github.com/kozaktomas/frontdesk/internal/engine"
	"github.com/kozaktomas/frontdesk/internal/enroll"
	"github.com/kozaktomas/frontdesk/internal/facematch"
	"github.com/kozaktomas/frontdesk/internal/mailer"
	"github.com/kozaktomas/frontdesk/internal/otp"
	"github.com/kozaktomas/frontdesk/internal/recognition"
	"github.com/kozaktomas/frontdesk/internal/session"
)

// app holds the wired components of one process.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	engine   *engine.Engine
	store    database.EmbeddingStore
	index    *database.CentroidIndex
	assets   *enroll.AssetStore
	detector detector.Detector

	closers []func() error
}

// buildApp connects the configured backends and assembles the engine.
// mode decides whether a missing embedding file is an error.
func buildApp(ctx context.Context, cfg *config.Config, mode database.OpenMode) (*app, error) {
	a := &app{cfg: cfg, log: slog.Default()}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	a.index = database.NewCentroidIndex()

	var pool *postgres.Pool
	openPool := func() (*postgres.Pool, error) {
		if pool != nil {
			return pool, nil
		}
		if cfg.Database.URL == "" {
			return nil, errors.New("DATABASE_URL environment variable is required")
		}
		a.log.Info("connecting to PostgreSQL")
		p, err := postgres.Open(ctx, &cfg.Database, cfg.Embedding.Dim)
		if err != nil {
			return nil, err
		}
		pool = p
		a.closers = append(a.closers, p.Close)
		return p, nil
	}

	switch cfg.Face.EmbeddingsBackend {
	case "file", "":
		fs, err := database.OpenFileStore(cfg.Face.EmbeddingsPath, mode, cfg.Embedding.Dim,
			database.WithIndex(a.index), database.WithLogger(a.log))
		if err != nil {
			return nil, fmt.Errorf("opening embedding store: %w", err)
		}
		a.store = fs
	case "postgres":
		p, err := openPool()
		if err != nil {
			return nil, err
		}
		ps, err := postgres.NewEmbeddingStore(ctx, p, cfg.Embedding.Dim, a.index, a.log)
		if err != nil {
			return nil, fmt.Errorf("opening embedding store: %w", err)
		}
		a.store = ps
	default:
		return nil, fmt.Errorf("unknown embeddings backend %q", cfg.Face.EmbeddingsBackend)
	}

	var (
		records    database.RecordReader
		visitors   database.VisitorWriter
		candidates database.CandidateFinder
	)
	switch cfg.Records.Backend {
	case "csv", "":
		s := csvstore.New(cfg.Records.EmployeeCSV, cfg.Records.VisitorLog, csvstore.WithCandidates(cfg.Records.CandidateCSV))
		records, visitors = s, s
		if cfg.Records.CandidateCSV != "" {
			candidates = s
		}
		a.log.Info("using CSV records", "employees", cfg.Records.EmployeeCSV, "visitors", cfg.Records.VisitorLog)
	case "postgres":
		p, err := openPool()
		if err != nil {
			return nil, err
		}
		repo := postgres.NewRecordRepository(p)
		records, visitors = repo, repo
	case "mariadb":
		if cfg.HRDatabase.URL == "" {
			return nil, errors.New("HR_DATABASE_URL environment variable is required")
		}
		hr, err := mariadb.NewPool(&cfg.HRDatabase)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, hr.Close)
		records = mariadb.NewRecordRepository(hr)
		// The HR database is read-only; visits go to the CSV log.
		visitors = csvstore.New("", cfg.Records.VisitorLog)
	default:
		return nil, fmt.Errorf("unknown records backend %q", cfg.Records.Backend)
	}
	if candidates == nil && cfg.Records.CandidateCSV != "" {
		// Interview lists are kept as CSV whatever the record backend.
		candidates = csvstore.New("", "", csvstore.WithCandidates(cfg.Records.CandidateCSV))
	}

	var opener camera.Opener
	if cfg.Camera.ReplayDir != "" {
		a.log.Info("replaying camera frames", "dir", cfg.Camera.ReplayDir)
		opener = &camera.DirOpener{Dir: cfg.Camera.ReplayDir, Interval: constants.FrameInterval, Loop: true}
	} else {
		opener = camera.NewHTTPOpener(cfg.Camera.URLs)
	}
	arbiter := camera.NewArbiter(opener, cfg.Camera.Index, a.log)

	a.detector = detector.NewClient(cfg.Embedding.URL, constants.MaxImageSize)
	matcher := facematch.NewMatcher(cfg.Face.Threshold)

	var m mailer.Mailer
	if cfg.SMTP.Enabled() {
		m = mailer.NewSMTPMailer(cfg.SMTP)
	} else {
		a.log.Warn("SMTP not configured, codes are only logged")
		m = mailer.NewLogMailer(a.log)
	}

	codes := otp.NewManager(m, otp.Options{
		MaxAttempts:       cfg.OTP.MaxAttempts,
		RequestsPerMinute: cfg.OTP.RequestsPerMinute,
		Logger:            a.log,
	})
	sess := session.New(a.log)
	a.assets = enroll.NewAssetStore(cfg.Face.PhotosDir)

	workflow := enroll.NewWorkflow(a.assets, a.store, records, codes, arbiter, a.detector, sess, enroll.Options{
		CaptureAttempts: cfg.Enroll.CaptureAttempts,
		CaptureWindow:   cfg.Enroll.CaptureWindow,
		Threshold:       cfg.Face.Threshold,
		Index:           a.index,
		Logger:          a.log,
	})

	greeter := engine.NewGreeter(a.log)
	gcfg := recognition.DefaultGreetingConfig()
	gcfg.Cooldown = cfg.Greeting.Cooldown
	gcfg.MinStableFrames = cfg.Face.MinStableFrames

	a.engine = engine.New(engine.Deps{
		Session:    sess,
		Decider:    recognition.NewDecider(arbiter, a.detector, matcher, a.store, records, a.log),
		Greeting:   recognition.NewGreetingLoop(arbiter, a.detector, matcher, a.store, records, greeter, gcfg, a.log),
		Greeter:    greeter,
		OTP:        codes,
		Enroll:     workflow,
		Store:      a.store,
		Index:      a.index,
		Records:    records,
		Visitors:   visitors,
		Candidates: candidates,
		Mailer:     m,
		Worker:     engine.NewWorker(constants.WorkerPoolSize, constants.WorkerQueueSize, a.log),
		Logger:     a.log,
	}, cfg)

	ok = true
	return a, nil
}

// Close stops the engine and releases backend connections.
func (a *app) Close() {
	if a.engine != nil {
		a.engine.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("closing backend", "error", err)
		}
	}
	a.closers = nil
}
