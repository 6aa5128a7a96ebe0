package source

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is one raw row as returned by a portal.
type Record map[string]interface{}

// Value returns the first non-empty value among keys.
func (r Record) Value(keys ...string) interface{} {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

// String returns the first non-empty value among keys as trimmed text.
func (r Record) String(keys ...string) string {
	switch v := r.Value(keys...).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Nested returns a nested object field, or nil.
func (r Record) Nested(key string) Record {
	switch v := r[key].(type) {
	case map[string]interface{}:
		return Record(v)
	case Record:
		return v
	}
	return nil
}

// JSON re-encodes the record for raw storage.
func (r Record) JSON() []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return []byte("{}")
	}
	return b
}
