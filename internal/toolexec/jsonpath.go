package toolexec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// extractJSONPath walks a dotted path, with optional `field[index]`
// bracket indexing at any segment, out of a decoded JSON value.
func extractJSONPath(value any, path string) (any, error) {
	current := value
	for _, part := range strings.Split(path, ".") {
		bracketStart := strings.IndexByte(part, '[')
		bracketEnd := strings.IndexByte(part, ']')

		if bracketStart >= 0 && bracketEnd > bracketStart {
			fieldName := part[:bracketStart]
			indexStr := part[bracketStart+1 : bracketEnd]

			if fieldName != "" {
				obj, ok := current.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("expected object at %q", fieldName)
				}
				next, ok := obj[fieldName]
				if !ok {
					return nil, fmt.Errorf("field %q not found in JSON", fieldName)
				}
				current = next
			}

			index, err := strconv.Atoi(indexStr)
			if err != nil {
				return nil, fmt.Errorf("invalid array index: %q", indexStr)
			}
			arr, ok := current.([]any)
			if !ok {
				return nil, fmt.Errorf("expected array at %q", part)
			}
			if index < 0 || index >= len(arr) {
				return nil, fmt.Errorf("index %d out of bounds for %q", index, part)
			}
			current = arr[index]
			continue
		}

		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object at %q", part)
		}
		next, ok := obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found in JSON", part)
		}
		current = next
	}
	return current, nil
}

// decodeJSONAny decodes raw bytes into the map[string]any/[]any/scalar
// representation extractJSONPath expects.
func decodeJSONAny(raw []byte) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode JSON response: %w", err)
	}
	return v, nil
}
