package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/kozaktomas/frontdesk/internal/engine"
	"github.com/kozaktomas/frontdesk/internal/enroll"
	"github.com/kozaktomas/frontdesk/internal/otp"
	"github.com/kozaktomas/frontdesk/internal/recognition"
	"github.com/kozaktomas/frontdesk/internal/session"
)

// fakeEngine returns canned values and records the arguments it was called with.
type fakeEngine struct {
	snapshot session.Snapshot
	roleErr  error

	outcome    recognition.Outcome
	decideErr  error
	decideMode recognition.DecisionMode
	stopped    bool

	pending    otp.Pending
	pendingErr error
	verdict    otp.Verdict
	verdictErr error
	gotName    string
	gotCode    string

	enrollResult enroll.Result
	enrollErr    error

	info    engine.EmployeeInfo
	infoErr error

	receipt    engine.VisitorReceipt
	receiptErr error

	candidate    engine.CandidateReceipt
	candidateErr error
	gotCheckIn   engine.CandidateCheckIn

	identities []database.IdentitySummary
	similar    []database.Neighbor
	similarErr error
	gotLimit   int

	greetingErr error
	greeting    bool
}

func (f *fakeEngine) SessionSnapshot() session.Snapshot { return f.snapshot }
func (f *fakeEngine) Wake() session.Snapshot            { return f.snapshot }
func (f *fakeEngine) Goodbye() session.Snapshot         { return f.snapshot }

func (f *fakeEngine) SelectRole(role string) (session.Snapshot, error) {
	if f.roleErr != nil {
		return session.Snapshot{}, f.roleErr
	}
	f.snapshot.SelectedRole = session.Role(role)
	return f.snapshot, nil
}

func (f *fakeEngine) Decide(ctx context.Context, mode recognition.DecisionMode) (recognition.Outcome, error) {
	f.decideMode = mode
	return f.outcome, f.decideErr
}

func (f *fakeEngine) StopDecision() bool { return f.stopped }

func (f *fakeEngine) RequestLoginOTP(ctx context.Context, identityID, name string) (otp.Pending, error) {
	f.gotName = name
	return f.pending, f.pendingErr
}

func (f *fakeEngine) VerifyLoginOTP(ctx context.Context, identityID, code string) (otp.Verdict, error) {
	f.gotCode = code
	return f.verdict, f.verdictErr
}

func (f *fakeEngine) RequestEnrollment(ctx context.Context, identityID string) (otp.Pending, error) {
	return f.pending, f.pendingErr
}

func (f *fakeEngine) CompleteEnrollment(ctx context.Context, identityID, code string) (enroll.Result, error) {
	f.gotCode = code
	return f.enrollResult, f.enrollErr
}

func (f *fakeEngine) EmployeeInfo(ctx context.Context) (engine.EmployeeInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeEngine) LogVisitor(ctx context.Context, in engine.VisitorCheckIn) (engine.VisitorReceipt, error) {
	return f.receipt, f.receiptErr
}

func (f *fakeEngine) CandidateCheckIn(ctx context.Context, in engine.CandidateCheckIn) (engine.CandidateReceipt, error) {
	f.gotCheckIn = in
	return f.candidate, f.candidateErr
}

func (f *fakeEngine) Identities() []database.IdentitySummary { return f.identities }

func (f *fakeEngine) Similar(identityID string, limit int) ([]database.Neighbor, error) {
	f.gotLimit = limit
	return f.similar, f.similarErr
}

func (f *fakeEngine) StartGreeting(ctx context.Context) error {
	if f.greetingErr == nil {
		f.greeting = true
	}
	return f.greetingErr
}

func (f *fakeEngine) StopGreeting()                          { f.greeting = false }
func (f *fakeEngine) GreetingRunning() bool                  { return f.greeting }
func (f *fakeEngine) GreetingEvents() []engine.GreetingEvent { return nil }

// jsonRequest creates a request with a JSON body.
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", rec.Body.String(), err)
	}
}
