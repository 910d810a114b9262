package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"gigflow_backend/pkg/apperrors"
)

// SQLSTATE коды Postgres
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// коды MySQL
const (
	myDuplicateEntry  = 1062
	myLockWaitTimeout = 1205
	myDeadlock        = 1213
)

// Classify переводит ошибку хранилища в AppError.
// AppError из бизнес-логики возвращается как есть.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.ErrNotFound(err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.ErrAlreadyExists(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.DatabaseError(err, false)
	case errors.Is(err, driver.ErrBadConn):
		return apperrors.DatabaseError(err, true)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return apperrors.ErrAlreadyExists(err)
		case pgErr.Code == pgSerializationFailure, pgErr.Code == pgDeadlockDetected, pgErr.Code == pgLockNotAvailable:
			return apperrors.DatabaseError(err, true)
		case strings.HasPrefix(pgErr.Code, "08"):
			// connection exception
			return apperrors.DatabaseError(err, true)
		}
		return apperrors.DatabaseError(err, false)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case myDuplicateEntry:
			return apperrors.ErrAlreadyExists(err)
		case myDeadlock, myLockWaitTimeout:
			return apperrors.DatabaseError(err, true)
		}
		return apperrors.DatabaseError(err, false)
	}

	// у SQLite нет типизированных кодов в общем интерфейсе, смотрим на текст
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return apperrors.ErrAlreadyExists(err)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "SQLITE_BUSY"):
		return apperrors.DatabaseError(err, true)
	}

	return apperrors.DatabaseError(err, false)
}

// IsDuplicate - нарушение уникального индекса
func IsDuplicate(err error) bool {
	return apperrors.CodeOf(Classify(err)) == apperrors.CodeAlreadyExists
}
