package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Int64 converts the integral values produced by stores and decoders
// (Go ints, whole floats from JSON, json.Number, decimal strings) to int64.
func Int64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float32:
		return Int64(float64(n))
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// PositiveKey reports whether v is a natural key eligible for surrogate
// substitution: an integral number, or decimal string, greater than zero.
func PositiveKey(v any) (int64, bool) {
	if _, isBool := v.(bool); isBool {
		return 0, false
	}
	n, ok := Int64(v)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

// SameID compares two real ids loosely, so 7, int64(7), 7.0 and "7" match.
func SameID(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	if x, ok := Int64(a); ok {
		if y, ok := Int64(b); ok {
			return x == y
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
