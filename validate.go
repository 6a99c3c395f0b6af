package entityassist

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Violation is one failed constraint. Path is the dotted field path below
// the validated type.
type Violation struct {
	Path    string
	Message string
}

// Validator checks an entity against its declared constraints.
type Validator interface {
	Validate(entity any) []Violation
}

type structValidator struct {
	v *validator.Validate
}

// NewValidator returns a Validator that reads `validate` struct tags.
func NewValidator() Validator {
	return &structValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (sv *structValidator) Validate(entity any) []Violation {
	err := sv.v.Struct(entity)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []Violation{{Message: err.Error()}}
	}

	out := make([]Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		path := fe.StructNamespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		out = append(out, Violation{Path: path, Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "email":
		return "must be a well-formed email address"
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	default:
		return fmt.Sprintf("failed the '%s' constraint", fe.Tag())
	}
}

// formatViolations renders violations as "<TypeName>.<path> <message>".
func formatViolations(typeName string, violations []Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		if v.Path == "" {
			out = append(out, typeName+" "+v.Message)
			continue
		}
		out = append(out, typeName+"."+v.Path+" "+v.Message)
	}
	return out
}
