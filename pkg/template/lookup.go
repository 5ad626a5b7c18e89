package template

import "strings"

// Lookup resolves a dotted path by descending data one key at a time. The
// second result is false when a segment is missing, an intermediate value is
// not a map, or the final value is nil.
func Lookup(data map[string]any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}

	var current any = data

	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = value
		case map[string]string:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = value
		default:
			return nil, false
		}
	}

	if current == nil {
		return nil, false
	}

	return current, true
}
