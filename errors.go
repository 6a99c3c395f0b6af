package entityassist

import (
	"errors"
	"fmt"

	"github.com/Entity-Assist/EntityAssist-sub001/idmap"
	"github.com/Entity-Assist/EntityAssist-sub001/stmt"
	"gorm.io/gorm"
)

// =====================================
// Error Handling
// =====================================

// ErrorType classifies an Error.
type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeDuplicate       ErrorType = "duplicate"
	ErrorTypeConnection      ErrorType = "connection"
	ErrorTypeTimeout         ErrorType = "timeout"
	ErrorTypeConstraint      ErrorType = "constraint"
	ErrorTypeTransaction     ErrorType = "transaction"
	ErrorTypeUnsupported     ErrorType = "unsupported"
	ErrorTypeInternal        ErrorType = "internal"
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	ErrorTypeDatabase        ErrorType = "database"
	ErrorTypeIllegalState    ErrorType = "illegal_state"
	ErrorTypeStatement       ErrorType = "statement"
	ErrorTypeMappingNotFound ErrorType = "mapping_not_found"
)

// Error is the error type returned by every operation of this package.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface
func (e Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e Error) Unwrap() error {
	return e.Cause
}

// Is matches any Error of the same type
func (e Error) Is(target error) bool {
	if t, ok := target.(Error); ok {
		return e.Type == t.Type
	}
	return false
}

// NewError creates a new Error
func NewError(errorType ErrorType, message string) Error {
	return Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error with a cause
func NewErrorWithCause(errorType ErrorType, message string, cause error) Error {
	return Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

var (
	// ErrBuilderExecuted is returned by a terminal operation on a builder
	// that already ran one.
	ErrBuilderExecuted = NewError(ErrorTypeIllegalState, "builder already executed")
	// ErrNoSession is returned when neither the entity nor the session
	// registry supplies a session.
	ErrNoSession = NewError(ErrorTypeConnection, "no session bound")
)

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Type == errorType
	}
	return false
}

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return IsErrorType(err, ErrorTypeNotFound)
}

// IsDuplicate checks if an error is a "duplicate" error
func IsDuplicate(err error) bool {
	return IsErrorType(err, ErrorTypeDuplicate)
}

// IsIllegalState checks if an error is an "illegal state" error
func IsIllegalState(err error) bool {
	return IsErrorType(err, ErrorTypeIllegalState)
}

// IsStatement checks if an error is a statement execution failure
func IsStatement(err error) bool {
	return IsErrorType(err, ErrorTypeStatement)
}

// IsMappingNotFound checks if an error is an id mapping miss
func IsMappingNotFound(err error) bool {
	return IsErrorType(err, ErrorTypeMappingNotFound)
}

// isLayerError reports errors raised by the id registry or the statement
// builder rather than by a driver.
func isLayerError(err error) bool {
	var unsupported *stmt.UnsupportedValueError
	var unknown *stmt.UnknownFieldError
	var conversion *idmap.ConversionError
	return errors.Is(err, idmap.ErrMappingNotFound) ||
		errors.As(err, &conversion) ||
		errors.As(err, &unsupported) ||
		errors.As(err, &unknown) ||
		errors.Is(err, stmt.ErrNoColumns) ||
		errors.Is(err, stmt.ErrNoIdentifier) ||
		errors.Is(err, stmt.ErrNoChanges)
}

// convertError is the fallback translator for errors that reach a session
// without a driver-specific translator installed.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var own Error
	if errors.As(err, &own) {
		return err
	}

	var unsupported *stmt.UnsupportedValueError
	var unknown *stmt.UnknownFieldError
	var conversion *idmap.ConversionError

	switch {
	case errors.Is(err, idmap.ErrMappingNotFound):
		return NewErrorWithCause(ErrorTypeMappingNotFound, "no id mapping", err)
	case errors.As(err, &conversion):
		return NewErrorWithCause(ErrorTypeStatement, "generated key cannot be coerced", err)
	case errors.As(err, &unsupported), errors.As(err, &unknown),
		errors.Is(err, stmt.ErrNoColumns), errors.Is(err, stmt.ErrNoIdentifier), errors.Is(err, stmt.ErrNoChanges):
		return NewErrorWithCause(ErrorTypeStatement, "cannot build statement", err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NewErrorWithCause(ErrorTypeNotFound, "record not found", err)
	case errors.Is(err, gorm.ErrInvalidTransaction):
		return NewErrorWithCause(ErrorTypeTransaction, "invalid transaction", err)
	case errors.Is(err, gorm.ErrPrimaryKeyRequired), errors.Is(err, gorm.ErrMissingWhereClause):
		return NewErrorWithCause(ErrorTypeInvalidArgument, "statement has no target rows", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return NewErrorWithCause(ErrorTypeDuplicate, "duplicate key violation", err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return NewErrorWithCause(ErrorTypeConstraint, "constraint violation", err)
	default:
		return NewErrorWithCause(ErrorTypeDatabase, "database operation failed", err)
	}
}
