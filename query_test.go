package entityassist

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/uptrace/bun/dialect"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

func TestBasicCondition(t *testing.T) {
	condition := WhereCondition("age", OpGreaterThan, 18)

	if condition.Field() != "age" {
		t.Errorf("Expected field 'age', got '%s'", condition.Field())
	}
	if condition.Operator() != OpGreaterThan {
		t.Errorf("Expected operator '>', got '%s'", condition.Operator())
	}
	if condition.Value() != 18 {
		t.Errorf("Expected value 18, got %v", condition.Value())
	}
}

func TestConditionString(t *testing.T) {
	tests := []struct {
		cond     Condition
		expected string
	}{
		{WhereCondition("deleted", OpEqual, true), "deleted = ?"},
		{WhereCondition("email", OpIsNull, nil), "email IS NULL"},
		{Or(WhereCondition("a", OpEqual, 1), WhereCondition("b", OpLessThan, 2)), "(a = ? OR b < ?)"},
		{And(WhereCondition("a", OpEqual, 1), WhereCondition("b", OpIn, []int{2})), "(a = ? AND b IN ?)"},
		{Or(), ""},
	}
	for _, tt := range tests {
		if got := tt.cond.String(); got != tt.expected {
			t.Errorf("Expected string '%s', got '%s'", tt.expected, got)
		}
	}
}

func TestToValues(t *testing.T) {
	if got := toValues([]string{"a", "b"}); !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Errorf("Expected spread slice, got %v", got)
	}
	if got := toValues([]any{1, "x"}); !reflect.DeepEqual(got, []any{1, "x"}) {
		t.Errorf("Expected []any as is, got %v", got)
	}
	if got := toValues([]byte("raw")); len(got) != 1 {
		t.Errorf("Expected []byte to stay one value, got %v", got)
	}
	if got := toValues(7); !reflect.DeepEqual(got, []any{7}) {
		t.Errorf("Expected scalar to be wrapped, got %v", got)
	}
}

func TestExpressionSQL(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{DryRun: true, Logger: logger.Discard})
	if err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		dialect  dialect.Name
		cond     Condition
		expected string
	}{
		{"equal", dialect.SQLite, WhereCondition("name", OpEqual, "Ann"), "`customers`.`name` = ?"},
		{"not like", dialect.SQLite, WhereCondition("name", OpNotLike, "A%"), "`customers`.`name` NOT LIKE ?"},
		{"in", dialect.SQLite, WhereCondition("age", OpIn, []int{1, 2}), "`customers`.`age` IN (?,?)"},
		{"not in", dialect.SQLite, WhereCondition("age", OpNotIn, []int{1, 2}), "`customers`.`age` NOT IN (?,?)"},
		{"is null", dialect.SQLite, WhereCondition("name", OpIsNull, nil), "`customers`.`name` IS NULL"},
		{"is not null", dialect.SQLite, WhereCondition("name", OpIsNotNull, nil), "`customers`.`name` IS NOT NULL"},
		{"or", dialect.SQLite, Or(WhereCondition("name", OpEqual, "Ann"), WhereCondition("age", OpGreaterThanOrEqual, 3)),
			"`customers`.`name` = ? OR `customers`.`age` >= ?"},
		{"sqlite time", dialect.SQLite, WhereCondition("effective_from_date", OpLessThanOrEqual, at),
			"julianday(`customers`.`effective_from_date`) <= julianday(?)"},
		{"sqlite time not equal", dialect.SQLite, WhereCondition("effective_to_date", OpNotEqual, at),
			"julianday(`customers`.`effective_to_date`) <> julianday(?)"},
		{"sqlite time is null", dialect.SQLite, WhereCondition("effective_to_date", OpIsNull, at),
			"`customers`.`effective_to_date` IS NULL"},
		{"other dialect time", dialect.MySQL, WhereCondition("effective_from_date", OpLessThanOrEqual, at),
			"`customers`.`effective_from_date` <= ?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := expression(tt.cond, clause.CurrentTable, tt.dialect)
			if err != nil {
				t.Fatal(err)
			}
			stmt := db.Model(&Customer{}).Where(expr).Find(&[]Customer{}).Statement
			if sql := stmt.SQL.String(); !strings.Contains(sql, tt.expected) {
				t.Errorf("Expected %q in %q", tt.expected, sql)
			}
		})
	}
}

func TestExpressionRejectsUnknownOperator(t *testing.T) {
	_, err := expression(WhereCondition("name", Operator("~"), "x"), clause.CurrentTable, dialect.SQLite)
	if !IsErrorType(err, ErrorTypeUnsupported) {
		t.Errorf("Expected unsupported, got %v", err)
	}
	_, err = expression(Or(WhereCondition("name", Operator("~"), "x")), clause.CurrentTable, dialect.SQLite)
	if !IsErrorType(err, ErrorTypeUnsupported) {
		t.Errorf("Expected unsupported from a nested condition, got %v", err)
	}
}
