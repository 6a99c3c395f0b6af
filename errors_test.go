package entityassist

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"gorm.io/gorm"

	"github.com/Entity-Assist/EntityAssist-sub001/idmap"
	"github.com/Entity-Assist/EntityAssist-sub001/stmt"
)

func TestErrorError(t *testing.T) {
	err := NewError(ErrorTypeNotFound, "Person not found")

	expected := "not_found: Person not found"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestErrorWithCause(t *testing.T) {
	cause := errors.New("database connection failed")
	err := NewErrorWithCause(ErrorTypeConnection, "failed to connect", cause)

	if err.Cause != cause {
		t.Error("Expected cause to be set")
	}
	expectedMsg := "connection: failed to connect (caused by: database connection failed)"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to reach the cause")
	}
}

func TestErrorIs(t *testing.T) {
	err := NewError(ErrorTypeIllegalState, "something else")

	if !errors.Is(err, ErrBuilderExecuted) {
		t.Error("Expected errors of the same type to match")
	}
	if errors.Is(err, ErrNoSession) {
		t.Error("Expected errors of different types not to match")
	}
}

func TestIsErrorType(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", NewError(ErrorTypeDuplicate, "dup"))

	if !IsErrorType(wrapped, ErrorTypeDuplicate) {
		t.Error("Expected wrapped error to keep its type")
	}
	if !IsDuplicate(wrapped) {
		t.Error("Expected IsDuplicate to be true")
	}
	if IsNotFound(wrapped) {
		t.Error("Expected IsNotFound to be false")
	}
	if IsErrorType(errors.New("plain"), ErrorTypeDuplicate) {
		t.Error("Expected a plain error to have no type")
	}
	if !IsIllegalState(ErrBuilderExecuted) {
		t.Error("Expected ErrBuilderExecuted to be an illegal state")
	}
	if !IsStatement(NewError(ErrorTypeStatement, "x")) {
		t.Error("Expected IsStatement to be true")
	}
}

func TestConvertError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"mapping miss", &idmap.MappingNotFoundError{DBType: reflect.TypeOf(""), DeclaredType: reflect.TypeOf(0)}, ErrorTypeMappingNotFound},
		{"conversion", &idmap.ConversionError{Value: "x", To: reflect.TypeOf(int64(0))}, ErrorTypeStatement},
		{"no columns", stmt.ErrNoColumns, ErrorTypeStatement},
		{"unknown field", &stmt.UnknownFieldError{Table: "people", Name: "nope"}, ErrorTypeStatement},
		{"record not found", gorm.ErrRecordNotFound, ErrorTypeNotFound},
		{"missing where", gorm.ErrMissingWhereClause, ErrorTypeInvalidArgument},
		{"duplicate", gorm.ErrDuplicatedKey, ErrorTypeDuplicate},
		{"foreign key", gorm.ErrForeignKeyViolated, ErrorTypeConstraint},
		{"other", errors.New("disk full"), ErrorTypeDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := convertError(tt.err)
			if !IsErrorType(err, tt.want) {
				t.Errorf("Expected %s, got %v", tt.want, err)
			}
			if !errors.Is(err, tt.err) {
				t.Error("Expected the original error as cause")
			}
		})
	}

	if convertError(nil) != nil {
		t.Error("Expected nil for nil")
	}
	own := NewError(ErrorTypeTimeout, "slow")
	if got := convertError(own); got != error(own) {
		t.Errorf("Expected an Error to pass through, got %v", got)
	}
}

func TestSessionWrap(t *testing.T) {
	translated := NewError(ErrorTypeTimeout, "translated")
	s := &Session{translate: func(error) error { return translated }}

	if got := s.wrap(errors.New("driver")); got != error(translated) {
		t.Errorf("Expected driver errors to be translated, got %v", got)
	}
	if got := s.wrap(stmt.ErrNoChanges); !IsStatement(got) {
		t.Errorf("Expected statement builder errors to bypass the translator, got %v", got)
	}
	if s.wrap(nil) != nil {
		t.Error("Expected nil for nil")
	}
}
