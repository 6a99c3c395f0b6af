package idmap

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrMappingNotFound is matched by every *MappingNotFoundError.
	ErrMappingNotFound = errors.New("idmap: mapping not found")
	// ErrConflict is matched by every *ConflictError.
	ErrConflict = errors.New("idmap: conflicting mapping")
	// ErrSealed is returned by Register once the registry has served a lookup.
	ErrSealed = errors.New("idmap: registry is sealed")
)

// MappingNotFoundError reports a lookup for a pair nobody registered.
type MappingNotFoundError struct {
	DBType       reflect.Type
	DeclaredType reflect.Type
}

func (e *MappingNotFoundError) Error() string {
	return fmt.Sprintf("idmap: no converter from %s to %s", typeName(e.DBType), typeName(e.DeclaredType))
}

func (e *MappingNotFoundError) Is(target error) bool {
	return target == ErrMappingNotFound
}

// ConflictError reports a second converter for an already registered pair.
type ConflictError struct {
	DBType       reflect.Type
	DeclaredType reflect.Type
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("idmap: duplicate converter from %s to %s", typeName(e.DBType), typeName(e.DeclaredType))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ConversionError is returned by a converter whose input lies outside its domain,
// e.g. a malformed UUID string or a value that overflows the declared type.
type ConversionError struct {
	Value any
	To    reflect.Type
	Cause error
}

func (e *ConversionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("idmap: cannot convert %v (%T) to %s: %v", e.Value, e.Value, typeName(e.To), e.Cause)
	}
	return fmt.Sprintf("idmap: cannot convert %v (%T) to %s", e.Value, e.Value, typeName(e.To))
}

func (e *ConversionError) Unwrap() error {
	return e.Cause
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
