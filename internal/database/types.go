package database

import (
	"time"
)

// EmbeddingRecord is the enrolled face vectors of one identity, in enrollment order.
// Every vector is unit length; vectors are only ever appended.
type EmbeddingRecord struct {
	IdentityID string
	Vectors    [][]float32
}

// IdentityCentroid is the matching representative of one identity: the renormalized
// mean of all its enrolled vectors.
type IdentityCentroid struct {
	IdentityID string
	Vector     []float32
	Samples    int
}

// Record is a person record resolved from the record store.
type Record struct {
	IdentityID string
	Name       string
	Email      string
	// Fields holds every column of the record, including Name and Email,
	// in Columns order.
	Fields  map[string]string
	Columns []string
}

// Visitor is one entry of the visitor log.
type Visitor struct {
	Name            string
	Phone           string
	Purpose         string
	MeetingEmployee string
	CheckedInAt     time.Time
}

// Candidate is one scheduled interview from the candidate list.
type Candidate struct {
	Name          string `json:"name"`
	InterviewCode string `json:"interview_code"`
	Interviewer   string `json:"interviewer"`
	Role          string `json:"role"`
	Time          string `json:"time"`
}

// IdentitySummary describes one enrolled identity.
type IdentitySummary struct {
	IdentityID string `json:"identity_id"`
	Samples    int    `json:"samples"`
}
