package query

import (
	"fmt"
	"math/big"
	"net"
	"net/netip"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// normalizeValue converts a scanned column value into a shape that survives
// JSON marshaling for the tool protocol. Numbers, booleans, and strings pass
// through; values without a native JSON form (timestamps, decimals, big
// integers, UUIDs, IPs) become their canonical string representation.
// Arrays, maps, and nested tuples are normalized recursively.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Format(time.RFC3339Nano)
	case decimal.Decimal:
		return t.String()
	case *decimal.Decimal:
		if t == nil {
			return nil
		}
		return t.String()
	case big.Int:
		return t.String()
	case *big.Int:
		if t == nil {
			return nil
		}
		return t.String()
	case uuid.UUID:
		return t.String()
	case net.IP:
		return t.String()
	case netip.Addr:
		return t.String()
	case *netip.Addr:
		if t == nil {
			return nil
		}
		return t.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalizeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalizeValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = normalizeValue(iter.Value().Interface())
		}
		return out
	}
	return v
}
