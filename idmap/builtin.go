package idmap

import (
	"errors"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	Int32Type   = reflect.TypeOf(int32(0))
	Int64Type   = reflect.TypeOf(int64(0))
	BigIntType  = reflect.TypeOf((*big.Int)(nil))
	DecimalType = reflect.TypeOf(decimal.Decimal{})
	Float32Type = reflect.TypeOf(float32(0))
	Float64Type = reflect.TypeOf(float64(0))
	StringType  = reflect.TypeOf("")
	UUIDType    = reflect.TypeOf(uuid.UUID{})

	bytesType  = reflect.TypeOf([]byte(nil))
	intType    = reflect.TypeOf(int(0))
	uintType   = reflect.TypeOf(uint(0))
	uint32Type = reflect.TypeOf(uint32(0))
	uint64Type = reflect.TypeOf(uint64(0))
)

// BuiltinTypes are the identifier representations every registry built from
// the default providers can convert between, in both directions.
var BuiltinTypes = []reflect.Type{
	Int32Type, Int64Type, BigIntType, DecimalType, Float32Type, Float64Type, StringType, UUIDType,
}

var (
	errOverflow  = errors.New("value out of range")
	errNotNumber = errors.New("not a finite number")
	errNil       = errors.New("nil value")
)

// BuiltinProvider supplies every ordered pair of BuiltinTypes.
var BuiltinProvider = ProviderFunc(func() []Mapping {
	out := make([]Mapping, 0, len(BuiltinTypes)*len(BuiltinTypes))
	for _, from := range BuiltinTypes {
		for _, to := range BuiltinTypes {
			out = append(out, Mapping{DBType: from, DeclaredType: to, Converter: bridge(to)})
		}
	}
	return out
})

// DriverProvider covers what database/sql drivers actually return when a
// generated key is read back as interface{}: MySQL hands out []byte or
// uint64, some drivers plain int, and most int64 for declared types outside
// the builtin set.
var DriverProvider = ProviderFunc(func() []Mapping {
	var out []Mapping
	for _, from := range []reflect.Type{bytesType, intType, uint64Type} {
		for _, to := range BuiltinTypes {
			out = append(out, Mapping{DBType: from, DeclaredType: to, Converter: bridge(to)})
		}
	}
	for _, to := range []reflect.Type{intType, uintType, uint32Type, uint64Type} {
		out = append(out, Mapping{DBType: Int64Type, DeclaredType: to, Converter: bridge(to)})
	}
	return out
})

func init() {
	RegisterProvider(BuiltinProvider)
	RegisterProvider(DriverProvider)
}

// bridge converts any supported source into to. Numbers travel through an
// arbitrary-precision decimal so that no pair loses digits on the way;
// fractional parts are truncated toward zero when the target is integral.
func bridge(to reflect.Type) ConverterFunc {
	return func(src any) (any, error) {
		if src == nil {
			return nil, &ConversionError{Value: src, To: to, Cause: errNil}
		}
		if reflect.TypeOf(src) == to {
			return src, nil
		}

		switch v := src.(type) {
		case uuid.UUID:
			if to == StringType {
				return v.String(), nil
			}
		case string:
			if to == UUIDType {
				id, err := uuid.Parse(strings.TrimSpace(v))
				if err != nil {
					return nil, &ConversionError{Value: src, To: to, Cause: err}
				}
				return id, nil
			}
		case []byte:
			switch to {
			case StringType:
				return string(v), nil
			case UUIDType:
				var (
					id  uuid.UUID
					err error
				)
				if len(v) == 16 {
					id, err = uuid.FromBytes(v)
				} else {
					id, err = uuid.ParseBytes(v)
				}
				if err != nil {
					return nil, &ConversionError{Value: src, To: to, Cause: err}
				}
				return id, nil
			}
		}

		d, err := toDecimal(src)
		if err != nil {
			return nil, &ConversionError{Value: src, To: to, Cause: err}
		}
		out, err := fromDecimal(d, to)
		if err != nil {
			return nil, &ConversionError{Value: src, To: to, Cause: err}
		}
		return out, nil
	}
}

func toDecimal(src any) (decimal.Decimal, error) {
	switch v := src.(type) {
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0), nil
	case *big.Int:
		if v == nil {
			return decimal.Zero, errNil
		}
		return decimal.NewFromBigInt(v, 0), nil
	case decimal.Decimal:
		return v, nil
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return decimal.Zero, errNotNumber
		}
		return decimal.NewFromFloat32(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, errNotNumber
		}
		return decimal.NewFromFloat(v), nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case []byte:
		return decimal.NewFromString(strings.TrimSpace(string(v)))
	case uuid.UUID:
		return decimal.NewFromBigInt(new(big.Int).SetBytes(v[:]), 0), nil
	default:
		return decimal.Zero, errors.New("unsupported source type")
	}
}

func fromDecimal(d decimal.Decimal, to reflect.Type) (any, error) {
	switch to {
	case Int32Type:
		n, err := boundedInt(d, math.MinInt32, math.MaxInt32)
		return int32(n), err
	case Int64Type:
		return boundedInt(d, math.MinInt64, math.MaxInt64)
	case intType:
		n, err := boundedInt(d, math.MinInt, math.MaxInt)
		return int(n), err
	case uintType, uint32Type, uint64Type:
		bi := d.BigInt()
		if bi.Sign() < 0 || !bi.IsUint64() {
			return nil, errOverflow
		}
		n := bi.Uint64()
		switch to {
		case uint32Type:
			if n > math.MaxUint32 {
				return nil, errOverflow
			}
			return uint32(n), nil
		case uintType:
			if uint64(uint(n)) != n {
				return nil, errOverflow
			}
			return uint(n), nil
		}
		return n, nil
	case BigIntType:
		return d.BigInt(), nil
	case DecimalType:
		return d, nil
	case Float32Type:
		f, _ := d.Float64()
		if math.IsInf(float64(float32(f)), 0) {
			return nil, errOverflow
		}
		return float32(f), nil
	case Float64Type:
		f, _ := d.Float64()
		if math.IsInf(f, 0) {
			return nil, errOverflow
		}
		return f, nil
	case StringType:
		return d.String(), nil
	case UUIDType:
		return uuidFromBig(d.BigInt())
	default:
		return nil, errors.New("unsupported target type")
	}
}

func boundedInt(d decimal.Decimal, lo, hi int64) (int64, error) {
	bi := d.BigInt()
	if !bi.IsInt64() {
		return 0, errOverflow
	}
	n := bi.Int64()
	if n < lo || n > hi {
		return 0, errOverflow
	}
	return n, nil
}

func uuidFromBig(bi *big.Int) (uuid.UUID, error) {
	if bi.Sign() < 0 || bi.BitLen() > 128 {
		return uuid.Nil, errOverflow
	}
	var id uuid.UUID
	bi.FillBytes(id[:])
	return id, nil
}
