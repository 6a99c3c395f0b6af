package stmt

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNoColumns is returned when every field of an entity was skipped.
	ErrNoColumns = errors.New("stmt: no columns to write")
	// ErrNoIdentifier is returned by BuildUpdate for an entity without a
	// primary key value.
	ErrNoIdentifier = errors.New("stmt: entity has no identifier")
	// ErrNoChanges is returned by BuildUpdate for an empty change set.
	ErrNoChanges = errors.New("stmt: no changed fields")
)

// UnsupportedValueError is returned for a field whose runtime type has no
// literal form. Statements are never emitted with a silent NULL in its place.
type UnsupportedValueError struct {
	Field string
	Type  reflect.Type
}

func (e *UnsupportedValueError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("stmt: unsupported type %v", e.Type)
	}
	return fmt.Sprintf("stmt: field %s has unsupported type %v", e.Field, e.Type)
}

// UnknownFieldError is returned for a change-set key that names no mapped field.
type UnknownFieldError struct {
	Table string
	Name  string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("stmt: %s has no writable field %q", e.Table, e.Name)
}
