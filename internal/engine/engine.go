// Package engine ties identity resolution, OTP login, enrollment and the session together
// behind the operations the reception desk exposes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/frontdesk/internal/config"
	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/kozaktomas/frontdesk/internal/enroll"
	"github.com/kozaktomas/frontdesk/internal/facematch"
	"github.com/kozaktomas/frontdesk/internal/mailer"
	"github.com/kozaktomas/frontdesk/internal/otp"
	"github.com/kozaktomas/frontdesk/internal/recognition"
	"github.com/kozaktomas/frontdesk/internal/session"
)

var (
	// ErrNameMismatch is returned when the spoken name does not match the record.
	ErrNameMismatch = errors.New("name does not match record")

	// ErrAlreadyAuthenticated is returned when requesting a login code for a granted identity.
	ErrAlreadyAuthenticated = errors.New("identity already authenticated")

	// ErrNotConfigured is returned by operations whose backend is not wired.
	ErrNotConfigured = errors.New("not configured")

	// ErrInvalidRequest is returned for malformed input.
	ErrInvalidRequest = errors.New("invalid request")
)

// Deps are the components an Engine orchestrates. Greeting, Greeter, Visitors, Candidates,
// Index and Enroll are optional.
type Deps struct {
	Session    *session.SessionContext
	Decider    *recognition.Decider
	Greeting   *recognition.GreetingLoop
	Greeter    *Greeter
	OTP        *otp.Manager
	Enroll     *enroll.Workflow
	Store      database.EmbeddingStore
	Index      *database.CentroidIndex
	Records    database.RecordReader
	Visitors   database.VisitorWriter
	Candidates database.CandidateFinder
	Mailer     mailer.Mailer
	Worker     *Worker
	Logger     *slog.Logger
}

// Engine is the reception desk's identity and session authority.
type Engine struct {
	deps   Deps
	face   config.FaceConfig
	policy config.PolicyConfig
	log    *slog.Logger

	mu             sync.Mutex
	cancelDecision context.CancelFunc
}

// New creates an engine. cfg supplies decision parameters and the confidential field policy.
func New(deps Deps, cfg *config.Config) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Session == nil {
		deps.Session = session.New(deps.Logger)
	}
	if deps.Worker == nil {
		deps.Worker = NewWorker(1, 0, deps.Logger)
	}
	return &Engine{
		deps:   deps,
		face:   cfg.Face,
		policy: cfg.Policy,
		log:    deps.Logger,
	}
}

// Session returns the session context.
func (e *Engine) Session() *session.SessionContext { return e.deps.Session }

// SessionSnapshot returns the current session state.
func (e *Engine) SessionSnapshot() session.Snapshot { return e.deps.Session.Snapshot() }

// Wake starts a new conversation.
func (e *Engine) Wake() session.Snapshot {
	e.deps.Session.Reset(session.ReasonWake)
	return e.deps.Session.Snapshot()
}

// Goodbye ends the conversation: a running decision is stopped, pending codes are dropped
// and all grants are cleared.
func (e *Engine) Goodbye() session.Snapshot {
	e.StopDecision()
	if e.deps.OTP != nil {
		e.deps.OTP.Reset()
	}
	e.deps.Session.Clear()
	return e.deps.Session.Snapshot()
}

// SelectRole records the declared role.
func (e *Engine) SelectRole(role string) (session.Snapshot, error) {
	r, ok := session.ParseRole(strings.ToLower(strings.TrimSpace(role)))
	if !ok {
		return session.Snapshot{}, fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, role)
	}
	e.deps.Session.SelectRole(r)
	return e.deps.Session.Snapshot(), nil
}

// Decide runs a one-shot face decision on the worker and applies a granted result to the session.
// Only one decision runs at a time; a second call fails with session.ErrDecisionInProgress.
// If ctx ends first the caller gets ctx.Err() while the decision still finishes and releases the device.
func (e *Engine) Decide(ctx context.Context, mode recognition.DecisionMode) (recognition.Outcome, error) {
	if mode != recognition.ModeInitial && mode != recognition.ModeRetry {
		return recognition.Outcome{}, fmt.Errorf("%w: unknown decision mode %q", ErrInvalidRequest, mode)
	}
	cfg := recognition.DecisionConfigFor(mode, e.face)

	// An initial trigger after a face or OTP success never reacquires the device.
	// A retry re-checks unless the session holds a grant.
	if snap := e.deps.Session.Snapshot(); mode == recognition.ModeInitial && snap.RecognitionCompleted {
		return recognition.Outcome{Kind: recognition.OutcomeAlreadyAuthenticated, IdentityID: snap.CurrentIdentityID}, nil
	}
	if cfg.ShortCircuitIfAuthenticated {
		if id, ok := e.deps.Session.Current(); ok {
			return recognition.Outcome{Kind: recognition.OutcomeAlreadyAuthenticated, IdentityID: id}, nil
		}
	}

	gen, err := e.deps.Session.BeginDecision()
	if err != nil {
		return recognition.Outcome{}, err
	}

	dctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancelDecision = cancel
	e.mu.Unlock()

	ch, err := e.deps.Worker.Submit(ctx, "decision", func(tctx context.Context) (any, error) {
		defer e.finishDecision()
		return e.runDecision(mergeCancel(tctx, dctx), gen, cfg), nil
	})
	if err != nil {
		e.finishDecision()
		return recognition.Outcome{}, err
	}

	select {
	case res := <-ch:
		out, _ := res.Value.(recognition.Outcome)
		return out, res.Err
	case <-ctx.Done():
		return recognition.Outcome{}, ctx.Err()
	}
}

func (e *Engine) runDecision(ctx context.Context, gen uint64, cfg recognition.DecisionConfig) recognition.Outcome {
	out := e.deps.Decider.Decide(ctx, cfg)
	if !out.Granted() {
		return out
	}
	if err := e.deps.Session.SetAuthenticatedAt(gen, out.IdentityID, session.SourceFace); err != nil {
		e.log.Info("discarding decision from previous session", "identity", out.IdentityID)
		return recognition.Outcome{Kind: recognition.OutcomeCancelled, Frames: out.Frames, Elapsed: out.Elapsed, Err: err, Error: err.Error()}
	}
	return out
}

func (e *Engine) finishDecision() {
	e.mu.Lock()
	if e.cancelDecision != nil {
		e.cancelDecision()
		e.cancelDecision = nil
	}
	e.mu.Unlock()
	e.deps.Session.EndDecision()
}

// StopDecision cancels a running decision. It reports whether one was running.
func (e *Engine) StopDecision() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelDecision == nil {
		return false
	}
	e.cancelDecision()
	return true
}

// mergeCancel returns a context that is done when either a or b is done. Values come from a.
func mergeCancel(a, b context.Context) context.Context {
	ctx, cancel := context.WithCancelCause(a)
	stop := context.AfterFunc(b, func() { cancel(context.Cause(b)) })
	context.AfterFunc(ctx, func() { stop() })
	return ctx
}

// RequestLoginOTP sends a login code to the identity's address after checking the spoken name.
func (e *Engine) RequestLoginOTP(ctx context.Context, identityID, name string) (otp.Pending, error) {
	id := facematch.NormalizeIdentityID(identityID)
	if id == "" {
		return otp.Pending{}, fmt.Errorf("%w: identity id is required", ErrInvalidRequest)
	}
	if e.deps.Session.IsGranted(id) {
		return otp.Pending{}, ErrAlreadyAuthenticated
	}

	rec, err := e.deps.Records.Lookup(ctx, id)
	if err != nil {
		return otp.Pending{}, err
	}
	if !facematch.NamesMatch(name, rec.Name) {
		e.log.Info("otp name mismatch", "identity", id)
		return otp.Pending{}, ErrNameMismatch
	}
	if rec.Email == "" {
		return otp.Pending{}, fmt.Errorf("%w: record %s has no email", ErrNotConfigured, id)
	}
	return e.deps.OTP.Request(ctx, otp.Request{
		IdentityID: id,
		Address:    rec.Email,
		Name:       rec.Name,
		Purpose:    otp.PurposeLogin,
	})
}

// VerifyLoginOTP checks a login code and grants access on success.
func (e *Engine) VerifyLoginOTP(ctx context.Context, identityID, code string) (otp.Verdict, error) {
	id := facematch.NormalizeIdentityID(identityID)
	rec, err := e.deps.Records.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			v := otp.Verdict{Status: otp.StatusNoSession}
			return v, v.Err()
		}
		return otp.Verdict{}, err
	}

	v, err := e.deps.OTP.Verify(rec.Email, otp.PurposeLogin, code)
	if err != nil {
		return v, err
	}
	if v.IdentityID != id {
		// The address belongs to another identity's pending code.
		v = otp.Verdict{Status: otp.StatusNoSession}
		return v, v.Err()
	}
	e.deps.Session.SetAuthenticated(id, session.SourceOTP)
	return v, nil
}

// RequestEnrollment starts enrollment of identityID.
func (e *Engine) RequestEnrollment(ctx context.Context, identityID string) (otp.Pending, error) {
	if e.deps.Enroll == nil {
		return otp.Pending{}, fmt.Errorf("enrollment: %w", ErrNotConfigured)
	}
	return e.deps.Enroll.Request(ctx, identityID)
}

// CompleteEnrollment verifies the code and captures the face on the worker.
func (e *Engine) CompleteEnrollment(ctx context.Context, identityID, code string) (enroll.Result, error) {
	if e.deps.Enroll == nil {
		return enroll.Result{}, fmt.Errorf("enrollment: %w", ErrNotConfigured)
	}
	ch, err := e.deps.Worker.Submit(ctx, "enrollment", func(tctx context.Context) (any, error) {
		return e.deps.Enroll.Complete(tctx, identityID, code)
	})
	if err != nil {
		return enroll.Result{}, err
	}
	select {
	case res := <-ch:
		r, _ := res.Value.(enroll.Result)
		return r, res.Err
	case <-ctx.Done():
		return enroll.Result{}, ctx.Err()
	}
}

// EmployeeInfo is the non-confidential part of the current identity's record.
type EmployeeInfo struct {
	IdentityID string            `json:"identity_id"`
	Name       string            `json:"name"`
	Source     session.Source    `json:"source"`
	Fields     map[string]string `json:"fields"`
	Columns    []string          `json:"columns"`
}

// EmployeeInfo returns the current identity's record without confidential fields.
// It fails with session.ErrNotAuthenticated unless the current identity holds a grant.
func (e *Engine) EmployeeInfo(ctx context.Context) (EmployeeInfo, error) {
	id, granted := e.deps.Session.Current()
	if !granted {
		return EmployeeInfo{}, session.ErrNotAuthenticated
	}
	rec, err := e.deps.Records.Lookup(ctx, id)
	if err != nil {
		return EmployeeInfo{}, err
	}

	info := EmployeeInfo{
		IdentityID: id,
		Name:       rec.Name,
		Source:     e.deps.Session.Grant(id).Source,
		Fields:     make(map[string]string),
	}
	for _, col := range rec.Columns {
		if e.policy.IsConfidential(col) || database.IsIdentityColumn(col) {
			continue
		}
		info.Fields[col] = rec.Fields[col]
		info.Columns = append(info.Columns, col)
	}
	return info, nil
}

// VisitorCheckIn is a visitor log request.
type VisitorCheckIn struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Purpose         string `json:"purpose"`
	MeetingEmployee string `json:"meeting_employee"`
}

// VisitorReceipt reports a logged visit.
type VisitorReceipt struct {
	Visitor  database.Visitor `json:"visitor"`
	Notified bool             `json:"notified"`
	HostID   string           `json:"host_id,omitempty"`
}

// LogVisitor appends the visitor to the log and e-mails the host employee.
// The host is looked up by id, then by name. A missing host or a failed notification
// is returned as an error after the visit has been logged.
func (e *Engine) LogVisitor(ctx context.Context, in VisitorCheckIn) (VisitorReceipt, error) {
	if e.deps.Visitors == nil {
		return VisitorReceipt{}, fmt.Errorf("visitor log: %w", ErrNotConfigured)
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.MeetingEmployee) == "" {
		return VisitorReceipt{}, fmt.Errorf("%w: name and meeting_employee are required", ErrInvalidRequest)
	}

	v := database.Visitor{
		Name:            strings.TrimSpace(in.Name),
		Phone:           strings.TrimSpace(in.Phone),
		Purpose:         strings.TrimSpace(in.Purpose),
		MeetingEmployee: strings.TrimSpace(in.MeetingEmployee),
		CheckedInAt:     time.Now(),
	}
	if err := e.deps.Visitors.LogVisitor(ctx, v); err != nil {
		return VisitorReceipt{}, fmt.Errorf("log visitor: %w", err)
	}
	receipt := VisitorReceipt{Visitor: v}
	e.log.Info("visitor logged", "visitor", v.Name, "host", v.MeetingEmployee)

	host, err := e.findHost(ctx, v.MeetingEmployee)
	if err != nil {
		return receipt, fmt.Errorf("find host %q: %w", v.MeetingEmployee, err)
	}
	receipt.HostID = host.IdentityID
	if host.Email == "" || e.deps.Mailer == nil {
		return receipt, fmt.Errorf("notify host %s: %w", host.IdentityID, ErrNotConfigured)
	}

	subject := fmt.Sprintf("Visitor %s is waiting for you at reception", v.Name)
	body := fmt.Sprintf("Hi %s,\n\nA visitor has arrived to meet you.\n\nName: %s\nPhone: %s\nPurpose: %s\nArrived at: %s\n\nPlease proceed to reception.",
		host.Name, v.Name, v.Phone, v.Purpose, v.CheckedInAt.Format("2006-01-02 15:04:05"))
	if err := e.deps.Mailer.Send(ctx, []string{host.Email}, subject, body); err != nil {
		return receipt, fmt.Errorf("notify host %s: %w", host.IdentityID, err)
	}
	receipt.Notified = true
	return receipt, nil
}

// CandidateCheckIn is an interview candidate's arrival.
type CandidateCheckIn struct {
	Name          string `json:"name"`
	InterviewCode string `json:"interview_code"`
}

// CandidateReceipt reports a confirmed interview.
type CandidateReceipt struct {
	Candidate     database.Candidate `json:"candidate"`
	InterviewerID string             `json:"interviewer_id,omitempty"`
	Notified      bool               `json:"notified"`
}

// CandidateCheckIn confirms a candidate's interview by code and name and e-mails the interviewer.
// An unknown code is database.ErrNotFound and a name that does not match the interview is
// ErrNameMismatch; neither notifies anyone. A missing interviewer or a failed notification
// is returned as an error with the confirmed interview in the receipt.
func (e *Engine) CandidateCheckIn(ctx context.Context, in CandidateCheckIn) (CandidateReceipt, error) {
	if e.deps.Candidates == nil {
		return CandidateReceipt{}, fmt.Errorf("candidate list: %w", ErrNotConfigured)
	}
	if strings.TrimSpace(in.Name) == "" || database.NormalizeInterviewCode(in.InterviewCode) == "" {
		return CandidateReceipt{}, fmt.Errorf("%w: name and interview_code are required", ErrInvalidRequest)
	}

	c, err := e.deps.Candidates.FindCandidate(ctx, in.InterviewCode)
	if err != nil {
		return CandidateReceipt{}, fmt.Errorf("find interview: %w", err)
	}
	if !facematch.NamesMatch(in.Name, c.Name) {
		e.log.Info("candidate name mismatch", "code", c.InterviewCode)
		return CandidateReceipt{}, ErrNameMismatch
	}
	receipt := CandidateReceipt{Candidate: *c}
	e.log.Info("candidate arrived", "candidate", c.Name, "interviewer", c.Interviewer)

	host, err := e.findHost(ctx, c.Interviewer)
	if err != nil {
		return receipt, fmt.Errorf("find interviewer %q: %w", c.Interviewer, err)
	}
	receipt.InterviewerID = host.IdentityID
	if host.Email == "" || e.deps.Mailer == nil {
		return receipt, fmt.Errorf("notify interviewer %s: %w", host.IdentityID, ErrNotConfigured)
	}

	subject := fmt.Sprintf("Candidate %s has arrived for interview", c.Name)
	body := fmt.Sprintf("Hi %s,\n\nCandidate %s has arrived for the %s interview.\n\nInterview Time: %s\nInterview Code: %s\n\nPlease let me know if you're ready to meet them.",
		c.Interviewer, c.Name, c.Role, c.Time, c.InterviewCode)
	if err := e.deps.Mailer.Send(ctx, []string{host.Email}, subject, body); err != nil {
		return receipt, fmt.Errorf("notify interviewer %s: %w", host.IdentityID, err)
	}
	receipt.Notified = true
	return receipt, nil
}

func (e *Engine) findHost(ctx context.Context, who string) (*database.Record, error) {
	rec, err := e.deps.Records.Lookup(ctx, who)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	finder, ok := e.deps.Records.(database.RecordFinder)
	if !ok {
		return nil, err
	}
	return finder.FindByName(ctx, who)
}

// Identities lists enrolled identities in store order.
func (e *Engine) Identities() []database.IdentitySummary {
	return e.deps.Store.Identities()
}

// Similar returns up to limit identities whose centroids are closest to identityID's.
func (e *Engine) Similar(identityID string, limit int) ([]database.Neighbor, error) {
	if e.deps.Index == nil {
		return nil, fmt.Errorf("similarity index: %w", ErrNotConfigured)
	}
	return e.deps.Index.Similar(facematch.NormalizeIdentityID(identityID), limit)
}

// StartGreeting starts the background greeting loop.
func (e *Engine) StartGreeting(ctx context.Context) error {
	if e.deps.Greeting == nil {
		return fmt.Errorf("greeting loop: %w", ErrNotConfigured)
	}
	return e.deps.Greeting.Start(ctx)
}

// StopGreeting stops the greeting loop and waits for it to release the device.
func (e *Engine) StopGreeting() {
	if e.deps.Greeting != nil {
		e.deps.Greeting.Stop()
	}
}

// GreetingRunning reports whether the greeting loop is running.
func (e *Engine) GreetingRunning() bool {
	return e.deps.Greeting != nil && e.deps.Greeting.Running()
}

// GreetingEvents returns recent greeting loop events.
func (e *Engine) GreetingEvents() []GreetingEvent {
	if e.deps.Greeter == nil {
		return nil
	}
	return e.deps.Greeter.Events()
}

// Close stops background work.
func (e *Engine) Close() {
	e.StopGreeting()
	e.StopDecision()
	e.deps.Worker.Close()
}
