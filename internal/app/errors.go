package app

import (
	"errors"
	"fmt"

	"github.com/joacominatel/sqlgate/internal/database"
)

// Messages returned to clients for admission failures.
const (
	MsgQueryRequired = "Query is required"
	MsgSelectOnly    = "Only SELECT queries are allowed"
	MsgInvalidJSON   = "Invalid JSON body"
)

// Category classifies a failed request.
type Category int

const (
	CategoryBadRequest Category = iota + 1
	CategoryForbidden
	CategoryQueryError
	CategoryInternal
)

// String returns the label clients see in the envelope's error field.
func (c Category) String() string {
	switch c {
	case CategoryBadRequest:
		return "Bad Request"
	case CategoryForbidden:
		return "Forbidden"
	case CategoryQueryError:
		return "Query Error"
	case CategoryInternal:
		return "Internal server error"
	default:
		return "Unknown"
	}
}

// Error is a categorized request failure. Detail and Position are set only
// for query errors the engine annotated.
type Error struct {
	Category Category
	Message  string
	Detail   string
	Position int32
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// AsError returns the categorized error in err's chain, or an internal error
// wrapping err.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return internalError(err)
}

// BadRequest returns a client input error.
func BadRequest(msg string) *Error {
	return &Error{Category: CategoryBadRequest, Message: msg}
}

func forbidden(cause error) *Error {
	return &Error{Category: CategoryForbidden, Message: MsgSelectOnly, Cause: cause}
}

func queryError(err error) *Error {
	if ee, ok := database.AsEngineError(err); ok {
		return &Error{
			Category: CategoryQueryError,
			Message:  ee.Message,
			Detail:   ee.Detail,
			Position: ee.Position,
			Cause:    err,
		}
	}
	return &Error{Category: CategoryQueryError, Message: err.Error(), Cause: err}
}

func internalError(err error) *Error {
	msg := err.Error()
	if ee, ok := database.AsEngineError(err); ok {
		msg = ee.Message
	}
	return &Error{Category: CategoryInternal, Message: msg, Cause: err}
}

// ErrConnection represents a database connection error.
type ErrConnection struct {
	Cause error
}

func (e *ErrConnection) Error() string {
	return fmt.Sprintf("connection error: %v", e.Cause)
}

func (e *ErrConnection) Unwrap() error {
	return e.Cause
}
