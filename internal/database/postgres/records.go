package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/kozaktomas/frontdesk/internal/database"
)

// RecordRepository resolves employee records and writes the visitor log.
type RecordRepository struct {
	pool *Pool
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(pool *Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

// Lookup returns the employee record of identityID.
func (r *RecordRepository) Lookup(ctx context.Context, identityID string) (*database.Record, error) {
	return r.queryOne(ctx, identityID,
		`SELECT identity_id, name, email, fields FROM employees WHERE identity_id = $1`,
		identityID)
}

// FindByName returns the employee with the given name, compared case-insensitively.
func (r *RecordRepository) FindByName(ctx context.Context, name string) (*database.Record, error) {
	return r.queryOne(ctx, name,
		`SELECT identity_id, name, email, fields FROM employees
		 WHERE LOWER(TRIM(name)) = LOWER(TRIM($1))
		 ORDER BY identity_id LIMIT 1`,
		name)
}

func (r *RecordRepository) queryOne(ctx context.Context, key, query string, args ...any) (*database.Record, error) {
	var (
		rec    database.Record
		fields []byte
	)
	err := r.pool.db.QueryRowContext(ctx, query, args...).
		Scan(&rec.IdentityID, &rec.Name, &rec.Email, &fields)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup employee %s: %w", key, err)
	}

	extra := map[string]string{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &extra); err != nil {
			return nil, fmt.Errorf("decode fields of employee %s: %w", rec.IdentityID, err)
		}
	}

	rec.Fields = map[string]string{
		"ID":    rec.IdentityID,
		"Name":  rec.Name,
		"Email": rec.Email,
	}
	rec.Columns = []string{"ID", "Name", "Email"}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if _, dup := rec.Fields[k]; !dup {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		rec.Fields[k] = extra[k]
		rec.Columns = append(rec.Columns, k)
	}
	return &rec, nil
}

// Upsert creates or replaces an employee record.
func (r *RecordRepository) Upsert(ctx context.Context, rec *database.Record) error {
	extra := make(map[string]string, len(rec.Fields))
	for k, v := range rec.Fields {
		switch k {
		case "ID", "Name", "Email":
		default:
			extra[k] = v
		}
	}
	fields, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	_, err = r.pool.db.ExecContext(ctx, `
		INSERT INTO employees (identity_id, name, email, fields)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity_id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, fields = EXCLUDED.fields
	`, rec.IdentityID, rec.Name, rec.Email, fields)
	if err != nil {
		return fmt.Errorf("upsert employee %s: %w", rec.IdentityID, err)
	}
	return nil
}

// LogVisitor appends a visitor log entry.
func (r *RecordRepository) LogVisitor(ctx context.Context, v database.Visitor) error {
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO visitors (name, phone, purpose, meeting_employee, checked_in_at)
		VALUES ($1, $2, $3, $4, $5)
	`, v.Name, v.Phone, v.Purpose, v.MeetingEmployee, v.CheckedInAt)
	if err != nil {
		return fmt.Errorf("insert visitor: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (r *RecordRepository) Close() error {
	return r.pool.Close()
}
