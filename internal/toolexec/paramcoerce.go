package toolexec

import (
	"encoding/json"
	"strconv"
	"strings"
)

// parseValueByType coerces a caller-supplied string into the JSON shape
// a parameter's declared type calls for. An array that is not valid JSON
// is split on commas; anything else that fails to parse falls back to
// the raw string rather than erroring — callers downstream
// (the remote tool) get to decide whether that's acceptable.
func parseValueByType(value, paramType string) any {
	switch strings.ToLower(paramType) {
	case "number":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		return value
	case "boolean", "bool":
		switch strings.ToLower(value) {
		case "true", "1", "yes", "y":
			return true
		case "false", "0", "no", "n":
			return false
		default:
			return value
		}
	case "array":
		var arr []any
		if err := json.Unmarshal([]byte(value), &arr); err == nil {
			return arr
		}
		parts := strings.Split(value, ",")
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out
	case "object":
		var obj map[string]any
		if err := json.Unmarshal([]byte(value), &obj); err == nil {
			return obj
		}
		return value
	default:
		return value
	}
}

// stringifyScalar renders a coerced value back to a plain string, used
// when a value must become a path or query-string component.
func stringifyScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
