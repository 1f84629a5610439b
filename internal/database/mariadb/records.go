package mariadb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/frontdesk/internal/database"
)

// employeeQuery reads one row of the HR employees table. All columns are
// returned so the record carries whatever the HR schema holds.
const employeeQuery = "SELECT * FROM employees WHERE employee_id = ? LIMIT 1"

// RecordRepository is a read-only database.RecordReader over the HR database.
type RecordRepository struct {
	pool *Pool
}

// NewRecordRepository creates a new HR record repository.
func NewRecordRepository(pool *Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

// Lookup returns the employee record of identityID.
func (r *RecordRepository) Lookup(ctx context.Context, identityID string) (*database.Record, error) {
	rows, err := r.pool.db.QueryContext(ctx, employeeQuery, identityID)
	if err != nil {
		return nil, fmt.Errorf("lookup employee %s: %w", identityID, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("lookup employee %s: %w", identityID, err)
		}
		return nil, database.ErrNotFound
	}

	raw := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan employee %s: %w", identityID, err)
	}

	values := make([]string, len(raw))
	for i, v := range raw {
		values[i] = v.String
	}
	rec := database.RecordFromRow(columns, values)
	if rec.IdentityID == "" {
		rec.IdentityID = identityID
	}
	return &rec, nil
}

// Close closes the underlying pool.
func (r *RecordRepository) Close() error {
	return r.pool.Close()
}
