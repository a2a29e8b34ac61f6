package repository

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrUniqueViolation marks an insert rejected by a unique constraint.
var ErrUniqueViolation = errors.New("unique constraint violation")

const pqUniqueViolation = "23505"

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.ExtContext
}

// wrapWrite annotates err with op and tags unique violations with ErrUniqueViolation.
func wrapWrite(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%s: %w (%s): %w", op, ErrUniqueViolation, pqErr.Constraint, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// UniqueConstraint returns the violated constraint name, if err carries one.
func UniqueConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return pqErr.Constraint
	}
	return ""
}

// expandIn rewrites a query holding "IN (?)" placeholders into the bind
// style of db.
func expandIn(db *sqlx.DB, query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, fmt.Errorf("expand in clause: %w", err)
	}
	return db.Rebind(q), a, nil
}
