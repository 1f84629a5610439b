// Package csvstore implements the record store and visitor log on plain CSV files.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/kozaktomas/frontdesk/internal/facematch"
)

var visitorHeader = []string{"Name", "Phone", "Purpose", "Meeting_Employee", "Checked_In_At"}

// Store reads employee records from one CSV file and appends visitors to another.
// The employee and candidate files are re-read on every lookup so edits apply without a restart.
type Store struct {
	employeesPath  string
	visitorsPath   string
	candidatesPath string
	mu             sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithCandidates sets the interview candidate list read by FindCandidate.
func WithCandidates(path string) Option {
	return func(s *Store) { s.candidatesPath = path }
}

// New creates a CSV store. visitorsPath may be empty to disable the visitor log.
func New(employeesPath, visitorsPath string, opts ...Option) *Store {
	s := &Store{employeesPath: employeesPath, visitorsPath: visitorsPath}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup scans the employee file for identityID. Ids compare after normalization.
func (s *Store) Lookup(ctx context.Context, identityID string) (*database.Record, error) {
	want := facematch.NormalizeIdentityID(identityID)
	rec, err := s.scan(ctx, func(rec *database.Record) bool {
		return facematch.NormalizeIdentityID(rec.IdentityID) == want
	})
	if err != nil {
		return nil, err
	}
	rec.IdentityID = want
	return rec, nil
}

// FindByName returns the first employee whose name matches after diacritics and case folding.
func (s *Store) FindByName(ctx context.Context, name string) (*database.Record, error) {
	rec, err := s.scan(ctx, func(rec *database.Record) bool {
		return facematch.NamesMatch(name, rec.Name)
	})
	if err != nil {
		return nil, err
	}
	rec.IdentityID = facematch.NormalizeIdentityID(rec.IdentityID)
	return rec, nil
}

func (s *Store) scan(ctx context.Context, match func(*database.Record) bool) (*database.Record, error) {
	var found *database.Record
	err := readRows(ctx, s.employeesPath, "employee", func(header, row []string) bool {
		rec := database.RecordFromRow(header, row)
		if match(&rec) {
			found = &rec
			return true
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// FindCandidate scans the candidate list for an interview code.
func (s *Store) FindCandidate(ctx context.Context, interviewCode string) (*database.Candidate, error) {
	if s.candidatesPath == "" {
		return nil, errors.New("candidate list is not configured")
	}
	want := database.NormalizeInterviewCode(interviewCode)
	if want == "" {
		return nil, database.ErrNotFound
	}
	var found *database.Candidate
	err := readRows(ctx, s.candidatesPath, "candidate", func(header, row []string) bool {
		c := database.CandidateFromRow(header, row)
		if database.NormalizeInterviewCode(c.InterviewCode) == want {
			c.InterviewCode = want
			found = &c
			return true
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// readRows calls visit for every data row of path until it returns true.
// It returns database.ErrNotFound when no row was accepted.
func readRows(ctx context.Context, path, what string, visit func(header, row []string) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s file: %w", what, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return database.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s header: %w", what, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return database.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read %s file: %w", what, err)
		}
		if visit(header, row) {
			return nil
		}
	}
}

// LogVisitor appends a row to the visitor file, writing the header when the file is new.
func (s *Store) LogVisitor(ctx context.Context, v database.Visitor) error {
	if s.visitorsPath == "" {
		return errors.New("visitor log is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, statErr := os.Stat(s.visitorsPath)
	isNew := errors.Is(statErr, fs.ErrNotExist)
	if isNew {
		if err := os.MkdirAll(filepath.Dir(s.visitorsPath), 0o755); err != nil {
			return fmt.Errorf("create visitor log directory: %w", err)
		}
	}

	f, err := os.OpenFile(s.visitorsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open visitor log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(visitorHeader); err != nil {
			return fmt.Errorf("write visitor header: %w", err)
		}
	}
	checkedIn := v.CheckedInAt
	if checkedIn.IsZero() {
		checkedIn = time.Now()
	}
	row := []string{v.Name, v.Phone, v.Purpose, v.MeetingEmployee, checkedIn.Format(time.RFC3339)}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write visitor: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush visitor log: %w", err)
	}
	return nil
}

// Close is a no-op; files are opened per call.
func (s *Store) Close() error { return nil }
