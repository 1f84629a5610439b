package database

import (
	"strings"
	"unicode"
)

// Column aliases recognised when mapping a generic row to a Record.
var (
	idColumns    = []string{"id", "employee_id", "employeeid", "identity_id", "emp_id"}
	nameColumns  = []string{"name", "full_name", "employee_name", "fullname"}
	emailColumns = []string{"email", "email_id", "mail", "email_address"}

	candidateNameColumns = []string{"candidate name", "candidate_name", "name"}
	codeColumns          = []string{"interview code", "interview_code", "code"}
	interviewerColumns   = []string{"interviewer", "interviewer name", "interviewer_name"}
	roleColumns          = []string{"interview role", "interview_role", "role"}
	timeColumns          = []string{"interview time", "interview_time", "time"}
)

// RecordFromRow maps a row with arbitrary columns to a Record.
// Identity, name and email columns are recognised case-insensitively by common aliases.
// Values are trimmed; the identity id is returned as found.
func RecordFromRow(columns, values []string) Record {
	rec := Record{
		Fields:  make(map[string]string, len(columns)),
		Columns: make([]string, 0, len(columns)),
	}
	for i, col := range columns {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		var v string
		if i < len(values) {
			v = strings.TrimSpace(values[i])
		}
		rec.Fields[col] = v
		rec.Columns = append(rec.Columns, col)

		key := strings.ToLower(col)
		switch {
		case rec.IdentityID == "" && contains(idColumns, key):
			rec.IdentityID = v
		case rec.Name == "" && contains(nameColumns, key):
			rec.Name = v
		case rec.Email == "" && contains(emailColumns, key):
			rec.Email = v
		}
	}
	return rec
}

// CandidateFromRow maps a candidate list row to a Candidate. Columns are recognised
// case-insensitively; the interview code is returned as found.
func CandidateFromRow(columns, values []string) Candidate {
	var c Candidate
	for i, col := range columns {
		if i >= len(values) {
			break
		}
		v := strings.TrimSpace(values[i])
		key := strings.ToLower(strings.TrimSpace(col))
		switch {
		case c.Name == "" && contains(candidateNameColumns, key):
			c.Name = v
		case c.InterviewCode == "" && contains(codeColumns, key):
			c.InterviewCode = v
		case c.Interviewer == "" && contains(interviewerColumns, key):
			c.Interviewer = v
		case c.Role == "" && contains(roleColumns, key):
			c.Role = v
		case c.Time == "" && contains(timeColumns, key):
			c.Time = v
		}
	}
	return c
}

// NormalizeInterviewCode keeps ASCII letters and digits and upper-cases them,
// so "ab-12 3" and "AB123" compare equal.
func NormalizeInterviewCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// IsIdentityColumn reports whether col names the identity id column.
func IsIdentityColumn(col string) bool {
	return contains(idColumns, strings.ToLower(strings.TrimSpace(col)))
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
