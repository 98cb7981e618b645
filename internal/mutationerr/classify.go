package mutationerr

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
)

// Classify maps err onto the taxonomy. Mutation errors are returned as is;
// driver errors become KindDatabase with the original message and the
// driver error kept as the cause.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var me *Error
	if errors.As(err, &me) {
		return me
	}
	return &Error{
		Kind:    KindDatabase,
		Code:    databaseCode(err),
		Message: err.Error(),
		Err:     err,
	}
}

func databaseCode(err error) string {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return CodeUniqueViolation
		case 1451, 1452:
			return CodeForeignKeyViolation
		case 1048, 1364:
			return CodeNotNullViolation
		case 1044, 1045, 1142, 1143:
			return CodeAccessDenied
		}
		return CodeDatabase
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return CodeUniqueViolation
		case "23503":
			return CodeForeignKeyViolation
		case "23502":
			return CodeNotNullViolation
		case "42501":
			return CodeAccessDenied
		}
		return CodeDatabase
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case 2067, 1555:
			return CodeUniqueViolation
		case 787:
			return CodeForeignKeyViolation
		case 1299:
			return CodeNotNullViolation
		}
		return sqliteMessageCode(liteErr.Error())
	}
	return CodeDatabase
}

// sqliteMessageCode covers connections without extended result codes, where
// every constraint failure reports the primary SQLITE_CONSTRAINT code.
func sqliteMessageCode(msg string) string {
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return CodeUniqueViolation
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return CodeForeignKeyViolation
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return CodeNotNullViolation
	}
	return CodeDatabase
}
