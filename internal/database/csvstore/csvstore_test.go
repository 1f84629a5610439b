package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/frontdesk/internal/database"
)

const employeesCSV = `ID,Name,Email,Department,Salary
E001,Jana Nováková,jana@example.com,Finance,100
 e002 ,Petr Svoboda,petr@example.com,IT,200
`

func writeEmployees(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "employees.csv")
	if err := os.WriteFile(path, []byte(employeesCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLookup(t *testing.T) {
	s := New(writeEmployees(t), "")
	ctx := context.Background()

	tests := []struct {
		query    string
		wantName string
		wantErr  error
	}{
		{"E001", "Jana Nováková", nil},
		{" e001", "Jana Nováková", nil},
		{"E002", "Petr Svoboda", nil},
		{"E999", "", database.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec, err := s.Lookup(ctx, tt.query)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Lookup(%q) error = %v, want %v", tt.query, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if rec.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", rec.Name, tt.wantName)
			}
			if rec.Fields["Department"] == "" {
				t.Errorf("Fields = %v, missing Department", rec.Fields)
			}
		})
	}
}

func TestLookupMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.csv"), "")
	_, err := s.Lookup(context.Background(), "E001")
	if err == nil || errors.Is(err, database.ErrNotFound) {
		t.Errorf("error = %v, want open error", err)
	}
}

func TestLogVisitor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "visitors.csv")
	s := New("", path)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	for _, name := range []string{"Alice", "Bob"} {
		if err := s.LogVisitor(ctx, database.Visitor{Name: name, Phone: "555", Purpose: "meeting", MeetingEmployee: "E001", CheckedInAt: at}); err != nil {
			t.Fatal(err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "Name" || rows[2][0] != "Bob" {
		t.Errorf("rows = %v", rows)
	}
	if rows[1][4] != "2026-03-01T09:30:00Z" {
		t.Errorf("timestamp = %q", rows[1][4])
	}
}

func TestFindByName(t *testing.T) {
	s := New(writeEmployees(t), "")
	ctx := context.Background()

	tests := []struct {
		name    string
		wantID  string
		wantErr error
	}{
		{"Jana Nováková", "E001", nil},
		{"jana novakova", "E001", nil},
		{"  PETR   svoboda ", "E002", nil},
		{"Nobody", "", database.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := s.FindByName(ctx, tt.name)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("FindByName(%q) error = %v, want %v", tt.name, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if rec.IdentityID != tt.wantID {
				t.Errorf("IdentityID = %q, want %q", rec.IdentityID, tt.wantID)
			}
		})
	}
}

const candidatesCSV = `Candidate Name,Interview Code,Interviewer,Interview Role,Interview Time
Eva Malá,AB-123,Petr Svoboda,Backend Engineer,2026-03-02 10:30
Karel Dvořák,XY999,Jana Nováková,Accountant,2026-03-02 14:00
`

func TestFindCandidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.csv")
	if err := os.WriteFile(path, []byte(candidatesCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	s := New(writeEmployees(t), "", WithCandidates(path))
	ctx := context.Background()

	tests := []struct {
		code     string
		wantName string
		wantErr  error
	}{
		{"AB-123", "Eva Malá", nil},
		{" ab123 ", "Eva Malá", nil},
		{"xy-999", "Karel Dvořák", nil},
		{"ZZ000", "", database.ErrNotFound},
		{"--", "", database.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			c, err := s.FindCandidate(ctx, tt.code)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("FindCandidate(%q) error = %v, want %v", tt.code, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if c.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", c.Name, tt.wantName)
			}
			if c.InterviewCode != database.NormalizeInterviewCode(tt.code) {
				t.Errorf("InterviewCode = %q, want normalized code", c.InterviewCode)
			}
			if c.Interviewer == "" || c.Role == "" || c.Time == "" {
				t.Errorf("candidate = %+v, missing interview details", c)
			}
		})
	}
}

func TestFindCandidateNotConfigured(t *testing.T) {
	s := New(writeEmployees(t), "")
	_, err := s.FindCandidate(context.Background(), "AB123")
	if err == nil || errors.Is(err, database.ErrNotFound) {
		t.Errorf("error = %v, want configuration error", err)
	}
}
