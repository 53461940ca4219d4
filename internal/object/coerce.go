package object

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// toNumber coerces scalars to int64 or float64. Integer kinds stay integers, float kinds stay
// floats and numeric strings become whichever they parse as.
func toNumber(v any) (any, bool) {
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
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return float64(n), true
		}
		return int64(n), true
	case float32:
		return float64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, false
		}
		return n, true
	case json.Number:
		return parseNumber(string(n))
	case string:
		return parseNumber(n)
	case bool:
		if n {
			return int64(1), true
		}
		return int64(0), true
	}
	// named numeric types, such as generated numeric enums
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return toNumber(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return toNumber(rv.Float())
	}
	return nil, false
}

// stringValue returns v when its kind is string, including named string enums.
func stringValue(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func parseNumber(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

// toString coerces scalars to their string form.
func toString(v any) (string, bool) {
	if s, ok := stringValue(v); ok {
		return s, true
	}
	switch s := v.(type) {
	case fmt.Stringer:
		return s.String(), true
	case bool:
		return strconv.FormatBool(s), true
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case json.Number:
		return string(s), true
	}
	if n, ok := toNumber(v); ok {
		return fmt.Sprint(n), true
	}
	return "", false
}

// toBool accepts booleans and their 0/1 renderings.
func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.TrimSpace(strings.ToLower(b)) {
		case "1", "true":
			return true, true
		case "0", "false":
			return false, true
		}
		return false, false
	}
	n, ok := toNumber(v)
	if !ok {
		return false, false
	}
	switch n {
	case int64(0), float64(0):
		return false, true
	case int64(1), float64(1):
		return true, true
	}
	return false, false
}

// ToServerDate converts a time to the wire timestamp (Unix seconds).
func ToServerDate(t time.Time) int64 {
	return t.Round(time.Second).Unix()
}

// FromServerDate converts a wire timestamp to a UTC time.
func FromServerDate(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}

// toServerDateValue accepts time.Time and *time.Time.
func toServerDateValue(v any) (int64, bool) {
	switch t := v.(type) {
	case time.Time:
		return ToServerDate(t), true
	case *time.Time:
		if t == nil {
			return 0, false
		}
		return ToServerDate(*t), true
	}
	return 0, false
}

func fromServerDateValue(v any) (time.Time, bool) {
	n, ok := toNumber(v)
	if !ok {
		return time.Time{}, false
	}
	switch s := n.(type) {
	case int64:
		return FromServerDate(s), true
	case float64:
		return FromServerDate(int64(math.Round(s))), true
	}
	return time.Time{}, false
}
