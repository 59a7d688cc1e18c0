package database

import (
	"errors"

	"github.com/lib/pq"
)

const UniqueViolation pq.ErrorCode = "23505"

// IsUniqueViolation reports whether err is a postgres duplicate-key error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == UniqueViolation
}
