package data

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgCodeUniqueViolation       = "23505"
	pgCodeInsufficientPrivilege = "42501"
	pgCodeDuplicateTable        = "42P07"
	pgCodeForeignKeyViolation   = "23503"
)

// ErrorIsNoRows validate if supplied error is because of record missing in DB.
func ErrorIsNoRows(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// ErrorIsDuplicateKey reports whether err is a unique constraint violation.
func ErrorIsDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || pgErrorHasCode(err, pgCodeUniqueViolation)
}

// ErrorIsRowSecurityViolation reports whether a row level security policy refused the statement.
func ErrorIsRowSecurityViolation(err error) bool {
	return pgErrorHasCode(err, pgCodeInsufficientPrivilege)
}

// ErrorIsForeignKeyViolation reports whether a referenced row is missing.
func ErrorIsForeignKeyViolation(err error) bool {
	return errors.Is(err, gorm.ErrForeignKeyViolated) || pgErrorHasCode(err, pgCodeForeignKeyViolation)
}

// ErrorIsRelationExists reports whether a CREATE raced with another creator.
func ErrorIsRelationExists(err error) bool {
	return pgErrorHasCode(err, pgCodeDuplicateTable)
}

func pgErrorHasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
