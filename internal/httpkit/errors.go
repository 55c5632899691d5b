package httpkit

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the template store maps onto API errors.
const (
	pgUniqueViolation = "23505"
	pgUndefinedTable  = "42P01"
)

// PgCode returns the SQLSTATE carried by err, or "" when err did not come
// from the database server.
func PgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports a duplicate key, such as a second live template
// with the same name.
func IsUniqueViolation(err error) bool { return PgCode(err) == pgUniqueViolation }

// IsUndefinedTable reports a query against a schema that was never created.
func IsUndefinedTable(err error) bool { return PgCode(err) == pgUndefinedTable }
