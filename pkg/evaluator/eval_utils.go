package evaluator

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cast"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// isTruthy reports the truthiness of a record value: non-zero numbers,
// true, and non-empty text that does not read as zero are true.
func isTruthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0 && !math.IsNaN(v)
	case int, int64, int32, float32, uint, uint64:
		return cast.ToFloat64(v) != 0
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f != 0
		}
		return v != ""
	case *types.Record:
		return v != nil && isTruthy(v.Value)
	default:
		return true
	}
}

// toNumber converts value to float64. Booleans and unparsable text fail.
func toNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case nil, bool:
		return 0, false
	case float64:
		return v, !math.IsNaN(v)
	case string:
		f, err := cast.ToFloat64E(strings.TrimSpace(v))
		if err != nil || strings.TrimSpace(v) == "" {
			return 0, false
		}
		return f, true
	case *types.Record:
		if v == nil {
			return 0, false
		}
		return toNumber(v.Value)
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, false
	}
	return f, true
}

// toBoolean converts value to bool following cast's rules for text, with
// numbers compared against zero.
func toBoolean(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := cast.ToBoolE(strings.TrimSpace(v))
		if err != nil {
			return false, false
		}
		return b, true
	}
	if f, ok := toNumber(value); ok {
		return f != 0, true
	}
	return false, false
}

// toString formats a value for labels, query text and hashing.
func toString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatNumber(v)
	case bool:
		return strconv.FormatBool(v)
	case *types.Node:
		return v.String()
	case *types.Record:
		if v == nil {
			return ""
		}
		return toString(v.Value)
	case fmt.Stringer:
		return v.String()
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return s
}

// formatNumber prints integral floats without a fractional part.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// typeRank orders values of different kinds: nil, booleans, numbers, text,
// everything else.
func typeRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case string:
		if _, ok := toNumber(v); ok {
			return 2
		}
		return 3
	}
	if _, ok := toNumber(v); ok {
		return 2
	}
	return 4
}

// compareValues is the default numeric-aware comparer.
func compareValues(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case 0:
		return 0
	case 1:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case 2:
		fa, _ := toNumber(a)
		fb, _ := toNumber(b)
		return cmp.Compare(fa, fb)
	}
	return strings.Compare(toString(a), toString(b))
}

// valueKey is the canonical form used to hash and compare record values.
func valueKey(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "0:"
	case bool:
		return "b:" + strconv.FormatBool(v)
	case float64:
		return "n:" + formatNumber(v)
	case string:
		return "s:" + v
	case *types.Node:
		return "e:" + v.String()
	case *types.Record:
		return "r:" + v.ID
	}
	if f, ok := toNumber(value); ok {
		return "n:" + formatNumber(f)
	}
	return fmt.Sprintf("o:%T:%v", value, value)
}

// valueHash hashes a record value.
func valueHash(value interface{}) uint64 {
	return xxhash.Sum64String(valueKey(value))
}

// recordKey is the identity of a record: its id, or its value when it has
// none.
func recordKey(r *types.Record) string {
	if r.ID != "" {
		return "id:" + r.ID
	}
	return valueKey(r.Value)
}

// labelOf returns the display name of a record.
func labelOf(r *types.Record) string {
	if r.Label != "" {
		return r.Label
	}
	if r.ID != "" {
		return r.ID
	}
	return toString(r.Value)
}
