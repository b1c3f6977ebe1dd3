// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"
	"unicode/utf8"

	"vibefeed/internal/models"

	"gorm.io/gorm"
)

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL unique violation SQLSTATE 23505; SQLite "UNIQUE constraint failed"
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}

// isForeignKeyError checks if a DB error is a foreign key violation.
func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL SQLSTATE 23503; SQLite "FOREIGN KEY constraint failed"
	return strings.Contains(msg, "foreign key") || strings.Contains(msg, "23503")
}

// likePattern builds a LIKE pattern matching q anywhere, escaping wildcards with a backslash.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

// nonASCIIGlob matches SQLite values holding at least one character outside printable ASCII.
const nonASCIIGlob = `'*[^ -~]*'`

// whereContainsFold narrows tx to rows where any of cols contains q, ignoring
// case. SQLite's LOWER folds ASCII only: there a non-ASCII q is not filtered,
// and rows with non-ASCII text are kept for the caller's own match.
func whereContainsFold(tx *gorm.DB, q string, cols ...string) *gorm.DB {
	sqlite := tx.Dialector.Name() == "sqlite"
	if sqlite && !isASCII(q) {
		return tx
	}

	pattern := likePattern(q)
	conds := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		cond := "LOWER(" + col + `) LIKE ? ESCAPE '\'`
		if sqlite {
			cond += " OR " + col + " GLOB " + nonASCIIGlob
		}
		conds = append(conds, cond)
		args = append(args, pattern)
	}
	return tx.Where(strings.Join(conds, " OR "), args...)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// notFoundOr maps gorm.ErrRecordNotFound to notFound and anything else to an internal error.
func notFoundOr(err error, notFound *models.AppError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewInternalError(err)
}
