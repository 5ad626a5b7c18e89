package conditions

import (
	"encoding/json"
	"math"
	"math/big"
	"reflect"
)

// strictEqual requires both type and value to match. All Go numeric kinds count
// as the single "number" type, since decoded JSON yields float64 while
// in-process callers tend to pass ints.
func strictEqual(actual, expected any) bool {
	if order, ok := compareIntegers(actual, expected); ok {
		return order == 0
	}

	an, aIsNumber := toNumber(actual)
	bn, bIsNumber := toNumber(expected)

	if aIsNumber || bIsNumber {
		return aIsNumber && bIsNumber && an == bn
	}

	switch a := actual.(type) {
	case string:
		b, ok := expected.(string)

		return ok && a == b
	case bool:
		b, ok := expected.(bool)

		return ok && a == b
	case nil:
		return expected == nil
	}

	if actual == nil || expected == nil {
		return false
	}

	return reflect.DeepEqual(actual, expected)
}

// toNumber converts numeric values to float64. Strings are never numbers.
func toNumber(value any) (float64, bool) {
	var n float64

	switch v := value.(type) {
	case int:
		n = float64(v)
	case int8:
		n = float64(v)
	case int16:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case uint:
		n = float64(v)
	case uint8:
		n = float64(v)
	case uint16:
		n = float64(v)
	case uint32:
		n = float64(v)
	case uint64:
		n = float64(v)
	case float32:
		n = float64(v)
	case float64:
		n = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}

		n = f
	default:
		return 0, false
	}

	if math.IsNaN(n) {
		return 0, false
	}

	return n, true
}

// compareIntegers orders two integer values exactly, so values beyond the
// float64 mantissa stay distinct. ok is false unless both sides are integers.
func compareIntegers(actual, expected any) (order int, ok bool) {
	a, ok := toInteger(actual)
	if !ok {
		return 0, false
	}

	b, ok := toInteger(expected)
	if !ok {
		return 0, false
	}

	return a.Cmp(b), true
}

func toInteger(value any) (*big.Int, bool) {
	switch v := value.(type) {
	case int:
		return big.NewInt(int64(v)), true
	case int8:
		return big.NewInt(int64(v)), true
	case int16:
		return big.NewInt(int64(v)), true
	case int32:
		return big.NewInt(int64(v)), true
	case int64:
		return big.NewInt(v), true
	case uint:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint64:
		return new(big.Int).SetUint64(v), true
	case json.Number:
		return new(big.Int).SetString(string(v), 10)
	default:
		return nil, false
	}
}
