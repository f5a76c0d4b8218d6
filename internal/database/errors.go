package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotConnected is returned when an operation needs a pool that was never
// opened or was already closed.
var ErrNotConnected = errors.New("not connected")

// ErrRowLimit is returned when a result grows past ExecOptions.MaxRows.
var ErrRowLimit = errors.New("row limit exceeded")

// EngineError carries the diagnostic fields reported by the engine for a
// failed statement.
type EngineError struct {
	Code     string
	Message  string
	Detail   string
	Hint     string
	Position int32
	Cause    error
}

func (e *EngineError) Error() string {
	return e.Message
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// AsEngineError extracts engine diagnostics from err. Deadline and
// cancellation errors that never reached the engine are reported as
// query_canceled so callers can treat both timeout paths alike.
func AsEngineError(err error) (*EngineError, bool) {
	if err == nil {
		return nil, false
	}

	var ee *EngineError
	if errors.As(err, &ee) {
		return ee, true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &EngineError{
			Code:     pgErr.Code,
			Message:  pgErr.Message,
			Detail:   pgErr.Detail,
			Hint:     pgErr.Hint,
			Position: pgErr.Position,
			Cause:    err,
		}, true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &EngineError{
			Code:    pgerrcode.QueryCanceled,
			Message: "Query read timeout",
			Cause:   err,
		}, true
	}

	return nil, false
}

// IsTimeout reports whether err is a statement timeout or an expired
// deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.QueryCanceled
}

// TimeoutError wraps a deadline error with the configured limit.
func TimeoutError(limitMillis int64, cause error) error {
	return &EngineError{
		Code:    pgerrcode.QueryCanceled,
		Message: fmt.Sprintf("Query read timeout after %dms", limitMillis),
		Cause:   cause,
	}
}
