package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Counter names used by the enrollment workflow.
const (
	CounterStudentID = "student_id"
	CounterInvoiceNo = "invoice_no"
)

// CounterRepository allocates monotonically increasing sequence values.
// Allocation is a single atomic upsert-returning statement so concurrent
// callers can never observe the same value.
type CounterRepository struct {
	db *sqlx.DB
}

// NewCounterRepository constructs the repository.
func NewCounterRepository(db *sqlx.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

const nextCounterQuery = `INSERT INTO counters (name, value) VALUES ($1, $2)
        ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
        RETURNING value`

// Next returns the next value for the named counter, seeding it at start
// when the counter does not exist yet.
func (r *CounterRepository) Next(ctx context.Context, name string, start int64) (int64, error) {
	var value int64
	if err := r.db.GetContext(ctx, &value, nextCounterQuery, name, start); err != nil {
		return 0, fmt.Errorf("next counter %s: %w", name, err)
	}
	return value, nil
}

// NextTx allocates the next value inside the caller's transaction so the
// increment commits or rolls back together with the dependent insert.
func (r *CounterRepository) NextTx(ctx context.Context, tx *sqlx.Tx, name string, start int64) (int64, error) {
	var value int64
	if err := tx.GetContext(ctx, &value, nextCounterQuery, name, start); err != nil {
		return 0, fmt.Errorf("next counter %s: %w", name, err)
	}
	return value, nil
}
