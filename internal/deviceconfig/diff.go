package deviceconfig

import (
	"encoding/json"
	"net/url"
	"reflect"
	"sort"
	"strings"
)

// TrimStrings trims leading and trailing whitespace from every string value
// of the record, in place.
func TrimStrings(rec ConfigRecord) {
	for k, v := range rec {
		if s, ok := v.(string); ok {
			rec[k] = strings.TrimSpace(s)
		}
	}
}

// isBlank reports whether a working value counts as "not filled in".
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// ValuesEqual compares two record values with strict typing: a string "1"
// never equals the number 1. Numbers compare by value whatever their Go
// type, so int 500 equals a fetched float64 500.
func ValuesEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return reflect.DeepEqual(a, b)
	}
}

// asFloat converts the numeric types a record can hold.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Diff returns the fields of working that should be sent to the adapter:
// values that are non-empty, non-nil and different from original.
//
// A field reset to "" or nil is never included, so a setting cannot be
// cleared through a diff. ClearedFields reports those edits.
func Diff(original, working ConfigRecord) ConfigRecord {
	diff := make(ConfigRecord)
	for k, v := range working {
		if isBlank(v) {
			continue
		}
		if orig, ok := original[k]; ok && ValuesEqual(v, orig) {
			continue
		}
		diff[k] = v
	}
	return diff
}

// ClearedFields lists keys whose original value was non-blank but whose
// working value is blank. These edits are dropped by Diff.
func ClearedFields(original, working ConfigRecord) []string {
	var cleared []string
	for k, v := range working {
		if !isBlank(v) {
			continue
		}
		if orig, ok := original[k]; ok && !isBlank(orig) {
			cleared = append(cleared, k)
		}
	}
	sort.Strings(cleared)
	return cleared
}

// FormData encodes the record as form values, one value per key.
func (r ConfigRecord) FormData() url.Values {
	form := make(url.Values, len(r))
	for k, v := range r {
		form.Set(k, FormatValue(v))
	}
	return form
}
