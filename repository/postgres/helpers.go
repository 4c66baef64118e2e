// Package postgres implements the repository ports against PostgreSQL via
// pgx. Queries are static with guard conditions for optional filters; limits
// are clamped to the same bounds the in-memory store applies.
package postgres

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}

// isUniqueViolation reports whether err is a primary key or unique index
// conflict (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
