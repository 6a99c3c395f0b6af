package eabun

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/driver/pgdriver"

	entityassist "github.com/Entity-Assist/EntityAssist-sub001"
)

// =====================================
// Error Conversion
// =====================================

// MySQL server error numbers.
const (
	mysqlDuplicateEntry    = 1062
	mysqlRowIsReferenced   = 1451
	mysqlNoReferencedRow   = 1452
	mysqlLockWaitTimeout   = 1205
	mysqlCheckConstraint   = 3819
	mysqlColumnCannotBeNil = 1048
)

// ConvertError classifies a raw driver error. It understands lib/pq,
// pgdriver, go-sql-driver/mysql and go-sqlite3 errors and falls back to
// matching the message text.
func ConvertError(err error) error {
	if err == nil {
		return nil
	}

	var own entityassist.Error
	if errors.As(err, &own) {
		return err
	}

	var (
		pqErr     *pq.Error
		pgErr     pgdriver.Error
		mysqlErr  *mysql.MySQLError
		sqliteErr sqlite3.Error
	)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return wrap(entityassist.ErrorTypeNotFound, "record not found", err)
	case errors.Is(err, context.DeadlineExceeded):
		return wrap(entityassist.ErrorTypeTimeout, "operation timeout", err)
	case errors.As(err, &pqErr):
		return fromSQLState(string(pqErr.Code), err)
	case errors.As(err, &pgErr):
		return fromSQLState(pgErr.Field('C'), err)
	case errors.As(err, &mysqlErr):
		switch mysqlErr.Number {
		case mysqlDuplicateEntry:
			return wrap(entityassist.ErrorTypeDuplicate, "duplicate key violation", err)
		case mysqlRowIsReferenced, mysqlNoReferencedRow, mysqlCheckConstraint, mysqlColumnCannotBeNil:
			return wrap(entityassist.ErrorTypeConstraint, "constraint violation", err)
		case mysqlLockWaitTimeout:
			return wrap(entityassist.ErrorTypeTimeout, "lock wait timeout", err)
		}
	case errors.As(err, &sqliteErr):
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return wrap(entityassist.ErrorTypeDuplicate, "duplicate key violation", err)
		case sqliteErr.Code == sqlite3.ErrConstraint:
			return wrap(entityassist.ErrorTypeConstraint, "constraint violation", err)
		case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
			return wrap(entityassist.ErrorTypeTimeout, "database is locked", err)
		}
	}

	return fromMessage(err)
}

// fromSQLState classifies by the five character SQLSTATE PostgreSQL
// reports.
func fromSQLState(code string, err error) error {
	switch {
	case code == "23505":
		return wrap(entityassist.ErrorTypeDuplicate, "duplicate key violation", err)
	case strings.HasPrefix(code, "23"):
		return wrap(entityassist.ErrorTypeConstraint, "constraint violation", err)
	case code == "57014":
		return wrap(entityassist.ErrorTypeTimeout, "statement timeout", err)
	case strings.HasPrefix(code, "08"):
		return wrap(entityassist.ErrorTypeConnection, "connection error", err)
	case strings.HasPrefix(code, "40"):
		return wrap(entityassist.ErrorTypeTransaction, "transaction rolled back", err)
	default:
		return fromMessage(err)
	}
}

func fromMessage(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique"):
		return wrap(entityassist.ErrorTypeDuplicate, "duplicate key violation", err)
	case strings.Contains(msg, "foreign key") || strings.Contains(msg, "constraint"):
		return wrap(entityassist.ErrorTypeConstraint, "constraint violation", err)
	case strings.Contains(msg, "timeout"):
		return wrap(entityassist.ErrorTypeTimeout, "operation timeout", err)
	case strings.Contains(msg, "connection"):
		return wrap(entityassist.ErrorTypeConnection, "connection error", err)
	default:
		return wrap(entityassist.ErrorTypeDatabase, "database operation failed", err)
	}
}

func wrap(t entityassist.ErrorType, msg string, err error) error {
	return entityassist.NewErrorWithCause(t, msg, err)
}
