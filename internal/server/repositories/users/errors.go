package users

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

// writeError turns a unique-key violation into the matching Duplicate error
// and anything else into a storage failure.
func writeError(err error) error {
	if target, ok := uniqueViolation(err); ok {
		if dup := duplicateFor(target); dup != nil {
			return dup
		}
	}
	return storageError(err)
}

// uniqueViolation reports whether err is a unique-constraint failure and
// returns the text naming the violated constraint or column.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName, pgErr.Code == pgUniqueViolation
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return err.Error(), code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT
	}

	msg := err.Error()
	return msg, strings.Contains(strings.ToLower(msg), "unique constraint failed")
}

func duplicateFor(target string) *common.ValidationError {
	switch {
	case strings.Contains(target, "username_key"):
		return common.Duplicate(common.RuleUsername, "username is already in use")
	case strings.Contains(target, "full_name_key"):
		return common.Duplicate(common.RuleFullName, "a user with this first name and surname already exists")
	case strings.Contains(target, "email_key"):
		return common.Duplicate(common.RuleEmailAddress, "email address is already in use")
	default:
		return nil
	}
}
