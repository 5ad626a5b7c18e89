// Package template substitutes {{dotted.path}} placeholders in free text
// against a trigger context.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// placeholderRegex matches {{ path.to.field }} tokens. Braces are not allowed
// inside the path so adjacent tokens never merge.
var placeholderRegex = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Render replaces every placeholder whose path resolves in data with the
// stringified value. Unresolved placeholders are left exactly as written.
func Render(tmpl string, data map[string]any) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	return placeholderRegex.ReplaceAllStringFunc(tmpl, func(token string) string {
		path := placeholderRegex.FindStringSubmatch(token)[1]

		value, ok := Lookup(data, path)
		if !ok {
			return token
		}

		return Stringify(value)
	})
}

// RenderMap returns a copy of config where every string value, including those
// nested in maps and slices, has been rendered against data.
func RenderMap(config map[string]any, data map[string]any) map[string]any {
	if config == nil {
		return nil
	}

	rendered := make(map[string]any, len(config))
	for key, value := range config {
		rendered[key] = renderValue(value, data)
	}

	return rendered
}

func renderValue(value any, data map[string]any) any {
	switch v := value.(type) {
	case string:
		return Render(v, data)
	case map[string]any:
		return RenderMap(v, data)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = renderValue(item, data)
		}

		return items
	case []string:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = Render(item, data)
		}

		return items
	default:
		return value
	}
}

// Placeholders returns the distinct paths referenced by tmpl, in order of
// first appearance.
func Placeholders(tmpl string) []string {
	matches := placeholderRegex.FindAllStringSubmatch(tmpl, -1)
	seen := make(map[string]bool, len(matches))
	paths := make([]string, 0, len(matches))

	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			paths = append(paths, m[1])
		}
	}

	return paths
}

// Stringify converts a context value to text using a fixed, locale
// independent representation.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return ""
		}

		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(encoded)
	default:
		return fmt.Sprint(v)
	}
}
