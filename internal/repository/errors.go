package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
// Callers decide whether to surface it (already enrolled) or recover
// (identity find-or-create race).
var ErrDuplicate = errors.New("duplicate key")

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}
