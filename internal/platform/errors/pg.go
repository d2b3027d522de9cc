package errors

// Postgres error mapping for the activity store: SQLSTATE to ErrorCode, the
// offending column as field, and which failures a transaction may retry

import (
	"context"
	stderrs "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the store distinguishes
const (
	sqlUniqueViolation     = "23505"
	sqlForeignKeyViolation = "23503"
	sqlNotNullViolation    = "23502"
	sqlCheckViolation      = "23514"
	sqlStringTooLong       = "22001"
	sqlBadTextValue        = "22P02"

	sqlSerialization = "40001"
	sqlDeadlock      = "40P01"
	sqlLockTimeout   = "55P03"
	sqlReadOnly      = "25006"
	sqlStartingUp    = "57P03"
)

// messages pgx reports without a PgError, mostly on commit
var retryText = []string{
	"commit unexpectedly resulted in rollback",
	"deadlock detected",
	"could not serialize access",
	"canceling statement due to lock timeout",
	"terminating connection due to administrator command",
}

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// dbCode classifies a PgError, anything else is a plain DB failure
func dbCode(err error) ErrorCode {
	pgErr, ok := pgError(err)
	if !ok {
		return ErrorCodeDB
	}
	switch pgErr.Code {
	case sqlUniqueViolation:
		return ErrorCodeDuplicateKey
	case sqlNotNullViolation, sqlCheckViolation:
		return ErrorCodeValidation
	// a missing referenced user or item is bad input
	case sqlForeignKeyViolation, sqlStringTooLong, sqlBadTextValue:
		return ErrorCodeInvalidArgument
	case sqlReadOnly, sqlStartingUp:
		return ErrorCodeUnavailable
	}
	return ErrorCodeDB
}

// FromPostgres wraps a store error with its mapped code, nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, dbCode(err), msg)
}

// FromPostgresWithField is FromPostgres plus the offending column as field when postgres names one
func FromPostgresWithField(err error, msg string) error {
	out := FromPostgres(err, msg)
	if pgErr, ok := pgError(err); ok {
		if col := strings.TrimSpace(pgErr.ColumnName); col != "" {
			return WithField(out, col)
		}
	}
	return out
}

// IsRetryable reports whether a transaction failed on contention and may be run again.
// Context cancellation never is.
func IsRetryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pgErr, ok := pgError(err); ok {
		switch pgErr.Code {
		case sqlSerialization, sqlDeadlock, sqlLockTimeout:
			return true
		}
		return false
	}
	s := strings.ToLower(Root(err).Error())
	for _, t := range retryText {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
