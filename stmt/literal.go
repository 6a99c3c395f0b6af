package stmt

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnsetForeignKey marks a not yet linked relation in an integer column.
// Fields holding it are left out of statements. A nil pointer is the
// preferred way to say the same thing.
const UnsetForeignKey = math.MaxInt32

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05.000"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

// Quote renders s as a single-quoted SQL string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// literal renders v for column f. A false second result means the value is
// null or a sentinel and the column must be left out.
func (b *Builder) literal(f *Field, v reflect.Value) (string, bool, error) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return "", false, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() || !v.CanInterface() {
		return "", false, nil
	}
	if (v.Kind() == reflect.Map || v.Kind() == reflect.Slice) && v.IsNil() {
		return "", false, nil
	}

	switch x := v.Interface().(type) {
	case time.Time:
		if x.IsZero() {
			return "", false, nil
		}
		if f.DateOnly {
			return Quote(x.Format(dateLayout)), true, nil
		}
		return Quote(x.UTC().Format(dateTimeLayout)), true, nil
	case big.Int:
		return x.String(), true, nil
	case decimal.Decimal:
		return x.String(), true, nil
	case uuid.UUID:
		return Quote(x.String()), true, nil
	case []byte:
		if x == nil {
			return "", false, nil
		}
		return "0x" + strings.ToUpper(hex.EncodeToString(x)), true, nil
	}

	if isEnum(v.Type()) {
		return Quote(v.Interface().(fmt.Stringer).String()), true, nil
	}

	if valuer, ok := asValuer(v); ok {
		resolved, err := valuer.Value()
		if err != nil {
			return "", false, err
		}
		if resolved == nil {
			return "", false, nil
		}
		rv := reflect.ValueOf(resolved)
		if rv.Type() == v.Type() {
			return "", false, &UnsupportedValueError{Field: f.Name, Type: v.Type()}
		}
		return b.literal(f, rv)
	}

	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return "1", true, nil
		}
		return "0", true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := v.Int()
		if n == UnsetForeignKey {
			return "", false, nil
		}
		return strconv.FormatInt(n, 10), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := v.Uint()
		if n == UnsetForeignKey {
			return "", false, nil
		}
		return strconv.FormatUint(n, 10), true, nil
	case reflect.Float32, reflect.Float64:
		x := v.Float()
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", false, &UnsupportedValueError{Field: f.Name, Type: v.Type()}
		}
		return strconv.FormatFloat(x, 'f', -1, v.Type().Bits()), true, nil
	case reflect.String:
		return Quote(v.String()), true, nil
	case reflect.Struct:
		return b.referenceLiteral(f, v)
	}

	return "", false, &UnsupportedValueError{Field: f.Name, Type: v.Type()}
}

// referenceLiteral renders a nested entity as its identifier.
func (b *Builder) referenceLiteral(f *Field, v reflect.Value) (string, bool, error) {
	ref := b.describe(v.Type())
	if ref.ID == nil {
		return "", false, &UnsupportedValueError{Field: f.Name, Type: v.Type()}
	}
	id, err := v.FieldByIndexErr(ref.ID.Index)
	if err != nil || id.IsZero() {
		return "", false, nil
	}
	return b.literal(ref.ID, id)
}

func isEnum(t reflect.Type) bool {
	if t.PkgPath() == "" || t == durationType {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return t.Implements(stringerType)
	}
	return false
}

func asValuer(v reflect.Value) (driver.Valuer, bool) {
	if valuer, ok := v.Interface().(driver.Valuer); ok {
		return valuer, true
	}
	if v.CanAddr() {
		if valuer, ok := v.Addr().Interface().(driver.Valuer); ok {
			return valuer, true
		}
	}
	return nil, false
}
