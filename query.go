package entityassist

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/uptrace/bun/dialect"
	"gorm.io/gorm/clause"
)

// =====================================
// Conditions
// =====================================

// Condition represents a query condition
type Condition interface {
	Field() string
	Operator() Operator
	Value() any
	String() string
}

// ConditionSource is anything that contributes conditions to a join, in
// practice another Builder.
type ConditionSource interface {
	Conditions() []Condition
}

// BasicCondition implements Condition
type BasicCondition struct {
	FieldName string
	Op        Operator
	Val       any
}

func (c BasicCondition) Field() string      { return c.FieldName }
func (c BasicCondition) Operator() Operator { return c.Op }
func (c BasicCondition) Value() any         { return c.Val }
func (c BasicCondition) String() string {
	switch c.Op {
	case OpIsNull, OpIsNotNull:
		return c.FieldName + " " + string(c.Op)
	}
	return c.FieldName + " " + string(c.Op) + " ?"
}

// CompositeCondition for AND/OR operations
type CompositeCondition struct {
	Conditions []Condition
	Logic      LogicOperator
}

func (c CompositeCondition) Field() string      { return "" }
func (c CompositeCondition) Operator() Operator { return "" }
func (c CompositeCondition) Value() any         { return nil }
func (c CompositeCondition) String() string {
	if len(c.Conditions) == 0 {
		return ""
	}

	var parts []string
	for _, cond := range c.Conditions {
		parts = append(parts, cond.String())
	}

	return "(" + strings.Join(parts, " "+string(c.Logic)+" ") + ")"
}

// WhereCondition creates a basic condition
func WhereCondition(field string, operator Operator, value any) Condition {
	return BasicCondition{
		FieldName: field,
		Op:        operator,
		Val:       value,
	}
}

// And groups conditions that must all hold
func And(conditions ...Condition) Condition {
	return CompositeCondition{Conditions: conditions, Logic: LogicAnd}
}

// Or groups conditions of which one must hold
func Or(conditions ...Condition) Condition {
	return CompositeCondition{Conditions: conditions, Logic: LogicOr}
}

// =====================================
// Translation to gorm clauses
// =====================================

// expression translates c into a gorm clause for dialect d whose columns
// are qualified with table. clause.CurrentTable resolves to the model table,
// or to the alias of the relation when used inside a join.
func expression(c Condition, table string, d dialect.Name) (clause.Expression, error) {
	switch cond := c.(type) {
	case BasicCondition:
		return basicExpression(cond, table, d)
	case CompositeCondition:
		exprs := make([]clause.Expression, 0, len(cond.Conditions))
		for _, sub := range cond.Conditions {
			e, err := expression(sub, table, d)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, e)
		}
		if len(exprs) == 1 {
			return exprs[0], nil
		}
		if cond.Logic == LogicOr {
			return clause.Or(exprs...), nil
		}
		return clause.And(exprs...), nil
	default:
		return nil, NewError(ErrorTypeUnsupported, fmt.Sprintf("unsupported condition %T", c))
	}
}

func basicExpression(c BasicCondition, table string, d dialect.Name) (clause.Expression, error) {
	col := clause.Column{Table: table, Name: c.FieldName}

	if d == dialect.SQLite {
		if expr, ok := sqliteTimeExpression(col, c); ok {
			return expr, nil
		}
	}

	switch c.Op {
	case OpEqual:
		return clause.Eq{Column: col, Value: c.Val}, nil
	case OpNotEqual:
		return clause.Neq{Column: col, Value: c.Val}, nil
	case OpGreaterThan:
		return clause.Gt{Column: col, Value: c.Val}, nil
	case OpGreaterThanOrEqual:
		return clause.Gte{Column: col, Value: c.Val}, nil
	case OpLessThan:
		return clause.Lt{Column: col, Value: c.Val}, nil
	case OpLessThanOrEqual:
		return clause.Lte{Column: col, Value: c.Val}, nil
	case OpLike:
		return clause.Like{Column: col, Value: c.Val}, nil
	case OpNotLike:
		return clause.Not(clause.Like{Column: col, Value: c.Val}), nil
	case OpIn:
		return clause.IN{Column: col, Values: toValues(c.Val)}, nil
	case OpNotIn:
		return clause.Not(clause.IN{Column: col, Values: toValues(c.Val)}), nil
	case OpIsNull:
		return clause.Eq{Column: col, Value: nil}, nil
	case OpIsNotNull:
		return clause.Neq{Column: col, Value: nil}, nil
	default:
		return nil, NewError(ErrorTypeUnsupported, fmt.Sprintf("unsupported operator %q", c.Op))
	}
}

// sqliteTimeExpression compares a time column by instant. SQLite keeps times
// as text, and literal statements and bound parameters write different
// layouts of the same instant; julianday reads both.
func sqliteTimeExpression(col clause.Column, c BasicCondition) (clause.Expression, bool) {
	if _, ok := c.Val.(time.Time); !ok {
		return nil, false
	}
	switch c.Op {
	case OpEqual, OpNotEqual, OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual:
		op := string(c.Op)
		if c.Op == OpNotEqual {
			op = "<>"
		}
		return clause.Expr{SQL: "julianday(?) " + op + " julianday(?)", Vars: []any{col, c.Val}}, true
	default:
		return nil, false
	}
}

// toValues spreads a slice argument of an IN filter.
func toValues(v any) []any {
	if vs, ok := v.([]any); ok {
		return vs
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
