package engine

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
	"github.com/kozaktomas/frontdesk/internal/mailer"
	"github.com/kozaktomas/frontdesk/internal/otp"
	"github.com/kozaktomas/frontdesk/internal/recognition"
	"github.com/kozaktomas/frontdesk/internal/session"
)

const testCode = "123456"

var frameJana = []byte("frame-jana")

type fixture struct {
	opener  *cammock.MockOpener
	records *dbmock.MockRecordStore
	mail    *mailer.LogMailer
	engine  *Engine
}

func testConfig() *config.Config {
	return &config.Config{
		Face: config.FaceConfig{
			Threshold:            0.65,
			MinStableFrames:      3,
			RetryMinStableFrames: 2,
			UnknownStableFrames:  1,
			DecisionTimeout:      time.Second,
		},
		Policy: config.PolicyConfig{ConfidentialFields: []string{"salary", "bank_account"}},
	}
}

func newFixture(t *testing.T, opener *cammock.MockOpener) *fixture {
	t.Helper()

	store := dbmock.NewMockEmbeddingStore(3)
	if err := store.Seed("E001", []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := store.Seed("E002", []float32{0, 1, 0}); err != nil {
		t.Fatal(err)
	}
	idx := database.NewCentroidIndex()
	idx.Rebuild(store.Centroids())

	records := dbmock.NewMockRecordStore()
	records.AddRecord(database.Record{
		IdentityID: "E001",
		Name:       "Jana Nováková",
		Email:      "jana@example.com",
		Fields: map[string]string{
			"ID": "E001", "Name": "Jana Nováková", "Email": "jana@example.com",
			"Department": "Finance", "Salary": "100", "Bank_Account": "CZ00",
		},
		Columns: []string{"ID", "Name", "Email", "Department", "Salary", "Bank_Account"},
	})
	records.AddRecord(database.Record{IdentityID: "E002", Name: "Petr Svoboda", Email: "petr@example.com"})
	records.AddCandidate(database.Candidate{
		Name: "Eva Malá", InterviewCode: "AB123", Interviewer: "Petr Svoboda", Role: "Backend Engineer", Time: "10:30",
	})
	records.AddCandidate(database.Candidate{
		Name: "Karel Dvořák", InterviewCode: "XY999", Interviewer: "Nobody", Role: "Accountant", Time: "14:00",
	})

	det := detmock.NewMockDetector().On(frameJana, detmock.Face(1, 0.05, 0))
	arb := camera.NewArbiter(opener, 0, nil)
	dec := recognition.NewDecider(arb, det, facematch.NewMatcher(0.65), store, records, nil)
	dec.FrameInterval = time.Millisecond

	mail := mailer.NewLogMailer(nil)
	mgr := otp.NewManager(mail, otp.Options{
		Generator:         func() (string, error) { return testCode, nil },
		RequestsPerMinute: 100,
	})

	worker := NewWorker(2, 4, nil)
	e := New(Deps{
		Session:    session.New(nil),
		Decider:    dec,
		OTP:        mgr,
		Store:      store,
		Index:      idx,
		Records:    records,
		Visitors:   records,
		Candidates: records,
		Mailer:     mail,
		Worker:     worker,
	}, testConfig())
	t.Cleanup(e.Close)

	return &fixture{opener: opener, records: records, mail: mail, engine: e}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDecideGrantsFace(t *testing.T) {
	f := newFixture(t, &cammock.MockOpener{Frames: [][]byte{frameJana}, Loop: true})

	out, err := f.engine.Decide(context.Background(), recognition.ModeInitial)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if out.Kind != recognition.OutcomeSuccess || out.IdentityID != "E001" {
		t.Fatalf("outcome = %+v", out)
	}

	snap := f.engine.SessionSnapshot()
	if snap.State != session.StateAuthenticated || snap.Grant.Source != session.SourceFace {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.DecisionRunning {
		t.Error("decision flag not cleared")
	}
	if f.opener.Active() != 0 {
		t.Error("device not released")
	}
}

func TestDecideRetryShortCircuits(t *testing.T) {
	f := newFixture(t, &cammock.MockOpener{Frames: [][]byte{frameJana}, Loop: true})
	f.engine.Session().SetAuthenticated("E001", session.SourceOTP)

	out, err := f.engine.Decide(context.Background(), recognition.ModeRetry)
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != recognition.OutcomeAlreadyAuthenticated || out.IdentityID != "E001" {
		t.Errorf("outcome = %+v", out)
	}
	if f.opener.Opens() != 0 {
		t.Error("device opened for an authenticated session")
	}
}

func TestDecideInitialShortCircuitsAfterSuccess(t *testing.T) {
	f := newFixture(t, &cammock.MockOpener{Frames: [][]byte{frameJana}, Loop: true})
	ctx := context.Background()

	if out, err := f.engine.Decide(ctx, recognition.ModeInitial); err != nil || out.Kind != recognition.OutcomeSuccess {
		t.Fatalf("first decision = %+v, %v", out, err)
	}
	opens := f.opener.Opens()

	out, err := f.engine.Decide(ctx, recognition.ModeInitial)
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != recognition.OutcomeAlreadyAuthenticated || out.IdentityID != "E001" {
		t.Errorf("second decision = %+v", out)
	}
	if got := f.opener.Opens(); got != opens {
		t.Errorf("device opened %d times, want %d", got, opens)
	}
}

func TestDecideInitialShortCircuitsAfterOTPLogin(t *testing.T) {
	f := newFixture(t, &cammock.MockOpener{Frames: [][]byte{frameJana}, Loop: true})
	ctx := context.Background()

	if _, err := f.engine.RequestLoginOTP(ctx, "E001", "Jana Nováková"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.VerifyLoginOTP(ctx, "E001", testCode); err != nil {
		t.Fatal(err)
	}
	snap := f.engine.SessionSnapshot()
	if snap.State != session.StateAuthenticated || !snap.RecognitionCompleted {
		t.Fatalf("after OTP login snapshot = %+v", snap)
	}

	out, err := f.engine.Decide(ctx, recognition.ModeInitial)
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != recognition.OutcomeAlreadyAuthenticated || out.IdentityID != "E001" {
		t.Errorf("outcome = %+v", out)
	}
	if f.opener.Opens() != 0 {
		t.Error("device opened after OTP login")
	}

	f.engine.Wake()
	if f.engine.SessionSnapshot().RecognitionCompleted {
		t.Error("wake should allow a new decision")
	}
}

func TestDecideInvalidMode(t *testing.T) {
	f := newFixture(t, &cammock.MockOpener{})
	if _, err := f.engine.Decide(context.Background(), "later"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestDecideSingleFlightAndGoodbye(t *testing.T) {
	f := newFixture(t, &cammock.MockOpener{Block: true})

	type result struct {
		out recognition.Outcome
		err error
	}
	first := make(chan result, 1)
	go func() {
		out, err := f.engine.Decide(context.Background(), recognition.ModeInitial)
		first <- result{out, err}
	}()
	waitFor(t, "device open", func() bool { return f.opener.Active() == 1 })

	if _, err := f.engine.Decide(context.Background(), recognition.ModeInitial); !errors.Is(err, session.ErrDecisionInProgress) {
		t.Fatalf("second Decide err = %v, want ErrDecisionInProgress", err)
	}

	f.engine.Goodbye()

	select {
	case r := <-first:
		if r.err != nil || r.out.Kind != recognition.OutcomeCancelled {
			t.Errorf("first decision = %+v, %v; want cancelled", r.out, r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("decision did not stop after goodbye")
	}
	waitFor(t, "device release", func() bool { return f.opener.Active() == 0 })
	waitFor(t, "decision flag", func() bool { return !f.engine.SessionSnapshot().DecisionRunning })
}

func TestDecideCallerAbandons(t *testing.T) {
	f := newFixture(t, &cammock.MockOpener{Block: true})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.engine.Decide(ctx, recognition.ModeInitial)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}

	// The decision keeps running until its own timeout, then releases the device.
	waitFor(t, "decision end", func() bool { return !f.engine.SessionSnapshot().DecisionRunning })
	if f.opener.Active() != 0 {
		t.Error("device not released")
	}
}

func TestLoginOTP(t *testing.T) {
	f := newFixture(t, &cammock.MockOpener{})
	ctx := context.Background()

	if _, err := f.engine.RequestLoginOTP(ctx, "E001", "Petr Svoboda"); !errors.Is(err, ErrNameMismatch) {
		t.Fatalf("name mismatch err = %v", err)
	}
	if _, err := f.engine.RequestLoginOTP(ctx, "E999", "Nobody"); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("unknown identity err = %v", err)
	}

	p, err := f.engine.RequestLoginOTP(ctx, "e001", "jana novakova")
	if err != nil {
		t.Fatalf("RequestLoginOTP: %v", err)
	}
	if p.SentTo != "j***@example.com" {
		t.Errorf("sent to %s", p.SentTo)
	}

	v, err := f.engine.VerifyLoginOTP(ctx, "E001", "000000")
	if !errors.Is(err, otp.ErrCodeMismatch) || v.AttemptsRemaining != 2 {
		t.Fatalf("wrong code: %+v, %v", v, err)
	}
	if f.engine.Session().IsGranted("E001") {
		t.Fatal("granted after mismatch")
	}

	v, err = f.engine.VerifyLoginOTP(ctx, "E001", testCode)
	if err != nil || v.Status != otp.StatusVerified {
		t.Fatalf("verify: %+v, %v", v, err)
	}
	if g := f.engine.Session().Grant("E001"); !g.Granted || g.Source != session.SourceOTP {
		t.Errorf("grant = %+v", g)
	}

	if _, err := f.engine.RequestLoginOTP(ctx, "E001", "Jana Nováková"); !errors.Is(err, ErrAlreadyAuthenticated) {
		t.Errorf("second request err = %v, want ErrAlreadyAuthenticated", err)
	}
}

func TestGoodbyeDropsPendingCodes(t *testing.T) {
	f := newFixture(t, &cammock.MockOpener{})
	ctx := context.Background()
	if _, err := f.engine.RequestLoginOTP(ctx, "E001", "Jana Nováková"); err != nil {
		t.Fatal(err)
	}
	f.engine.Goodbye()
	if _, err := f.engine.VerifyLoginOTP(ctx, "E001", testCode); !errors.Is(err, otp.ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestEmployeeInfo(t *testing.T) {
	f := newFixture(t, &cammock.MockOpener{})
	ctx := context.Background()

	if _, err := f.engine.EmployeeInfo(ctx); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}

	f.engine.Session().SetAuthenticated("E001", session.SourceFace)
	info, err := f.engine.EmployeeInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.Fields["Department"] != "Finance" {
		t.Errorf("fields = %v", info.Fields)
	}
	for _, hidden := range []string{"Salary", "Bank_Account", "ID"} {
		if _, ok := info.Fields[hidden]; ok {
			t.Errorf("%s should be withheld", hidden)
		}
	}
	if info.Source != session.SourceFace {
		t.Errorf("source = %s", info.Source)
	}

	f.engine.Wake()
	if _, err := f.engine.EmployeeInfo(ctx); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Errorf("after wake err = %v, want ErrNotAuthenticated", err)
	}
}

func TestLogVisitor(t *testing.T) {
	tests := []struct {
		name         string
		host         string
		wantNotified bool
		wantErr      error
	}{
		{name: "host by name", host: "jana novakova", wantNotified: true},
		{name: "host by id", host: "E002", wantNotified: true},
		{name: "unknown host", host: "Nobody", wantErr: database.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &cammock.MockOpener{})
			receipt, err := f.engine.LogVisitor(context.Background(), VisitorCheckIn{
				Name:            "Karel Dvořák",
				Phone:           "+420 123",
				Purpose:         "Interview",
				MeetingEmployee: tt.host,
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatal(err)
			}
			if len(f.records.Visitors()) != 1 {
				t.Error("visit not logged")
			}
			if receipt.Notified != tt.wantNotified {
				t.Errorf("notified = %v, want %v", receipt.Notified, tt.wantNotified)
			}
			if tt.wantNotified {
				msg, _ := f.mail.Last()
				if msg.Subject != "Visitor Karel Dvořák is waiting for you at reception" {
					t.Errorf("subject = %q", msg.Subject)
				}
			}
		})
	}
}

func TestLogVisitorValidation(t *testing.T) {
	f := newFixture(t, &cammock.MockOpener{})
	_, err := f.engine.LogVisitor(context.Background(), VisitorCheckIn{Name: "Karel"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
	if len(f.records.Visitors()) != 0 {
		t.Error("invalid visit logged")
	}
}

func TestCandidateCheckIn(t *testing.T) {
	tests := []struct {
		name         string
		in           CandidateCheckIn
		sendErr      error
		wantErr      error
		wantRole     string
		wantNotified bool
	}{
		{
			name:         "confirmed",
			in:           CandidateCheckIn{Name: "eva mala", InterviewCode: "ab-123"},
			wantRole:     "Backend Engineer",
			wantNotified: true,
		},
		{name: "unknown code", in: CandidateCheckIn{Name: "Eva Malá", InterviewCode: "ZZ000"}, wantErr: database.ErrNotFound},
		{name: "wrong name", in: CandidateCheckIn{Name: "Jana Nováková", InterviewCode: "AB123"}, wantErr: ErrNameMismatch},
		{name: "missing code", in: CandidateCheckIn{Name: "Eva Malá", InterviewCode: " - "}, wantErr: ErrInvalidRequest},
		{name: "missing name", in: CandidateCheckIn{InterviewCode: "AB123"}, wantErr: ErrInvalidRequest},
		{
			name:     "unknown interviewer",
			in:       CandidateCheckIn{Name: "Karel Dvořák", InterviewCode: "XY999"},
			wantErr:  database.ErrNotFound,
			wantRole: "Accountant",
		},
		{
			name:     "mail fails",
			in:       CandidateCheckIn{Name: "Eva Malá", InterviewCode: "AB123"},
			sendErr:  errors.New("smtp down"),
			wantErr:  mailer.ErrDelivery,
			wantRole: "Backend Engineer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &cammock.MockOpener{})
			f.mail.SetSendError(tt.sendErr)

			receipt, err := f.engine.CandidateCheckIn(context.Background(), tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatal(err)
			}
			if receipt.Candidate.Role != tt.wantRole {
				t.Errorf("role = %q, want %q", receipt.Candidate.Role, tt.wantRole)
			}
			if receipt.Notified != tt.wantNotified {
				t.Errorf("notified = %v, want %v", receipt.Notified, tt.wantNotified)
			}
			if !tt.wantNotified {
				if n := len(f.mail.Sent()); n != 0 {
					t.Errorf("sent %d messages, want none", n)
				}
				return
			}
			if receipt.InterviewerID != "E002" {
				t.Errorf("interviewer = %q, want E002", receipt.InterviewerID)
			}
			msg, _ := f.mail.Last()
			if msg.Subject != "Candidate Eva Malá has arrived for interview" {
				t.Errorf("subject = %q", msg.Subject)
			}
			if len(msg.To) != 1 || msg.To[0] != "petr@example.com" {
				t.Errorf("to = %v", msg.To)
			}
		})
	}
}

func TestCandidateCheckInNotConfigured(t *testing.T) {
	e := New(Deps{Session: session.New(nil), Records: dbmock.NewMockRecordStore(), Worker: NewWorker(1, 1, nil)}, testConfig())
	defer e.Close()
	_, err := e.CandidateCheckIn(context.Background(), CandidateCheckIn{Name: "Eva", InterviewCode: "AB123"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSelectRole(t *testing.T) {
	f := newFixture(t, &cammock.MockOpener{})
	snap, err := f.engine.SelectRole(" Visitor ")
	if err != nil || snap.SelectedRole != session.RoleVisitor {
		t.Fatalf("SelectRole: %+v, %v", snap, err)
	}
	if _, err := f.engine.SelectRole("admin"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestSimilarAndIdentities(t *testing.T) {
	f := newFixture(t, &cammock.MockOpener{})
	if got := f.engine.Identities(); len(got) != 2 || got[0].IdentityID != "E001" {
		t.Errorf("identities = %+v", got)
	}
	n, err := f.engine.Similar("e001", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(n) != 1 || n[0].IdentityID != "E002" {
		t.Errorf("similar = %+v", n)
	}
	if _, err := f.engine.Similar("E404", 5); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEnrollmentNotConfigured(t *testing.T) {
	f := newFixture(t, &cammock.MockOpener{})
	if _, err := f.engine.RequestEnrollment(context.Background(), "E003"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
	if err := f.engine.StartGreeting(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
