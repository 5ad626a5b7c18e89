// Package actions holds the helpers shared by the built-in action types. Each
// action type lives in its own sub-package with a factory and an action.
package actions

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/rentflow/pkg/template"
	"github.com/go-playground/validator/v10"
)

// ErrUnresolvedPlaceholder indicates an addressing field still contains a
// placeholder after rendering, so the side effect has no valid target.
var ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeConfig copies the generic config map into the typed config out and
// validates it. Keys listed in aliases are renamed to their canonical key
// unless the canonical key is already present.
func DecodeConfig(config map[string]any, aliases map[string]string, out any) error {
	normalized := make(map[string]any, len(config))

	for key, value := range config {
		if canonical, ok := aliases[key]; ok {
			if _, exists := config[canonical]; !exists {
				normalized[canonical] = value
			}

			continue
		}

		normalized[key] = value
	}

	raw, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	err = json.Unmarshal(raw, out)
	if err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	err = validate.Struct(out)
	if err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// ValidateVar validates a single rendered value against validator tags.
func ValidateVar(field string, value any, tag string) error {
	err := validate.Var(value, tag)
	if err != nil {
		return fmt.Errorf("%s %q is invalid: %w", field, value, err)
	}

	return nil
}

// RenderAddress renders a field that addresses a recipient or record. Unlike
// message text, it must resolve completely.
func RenderAddress(field, tmpl string, data map[string]any) (string, error) {
	rendered := strings.TrimSpace(template.Render(tmpl, data))

	if paths := template.Placeholders(rendered); len(paths) > 0 {
		return "", fmt.Errorf("%w in %s: %s", ErrUnresolvedPlaceholder, field, strings.Join(paths, ", "))
	}

	if rendered == "" {
		return "", fmt.Errorf("%s rendered to an empty value", field)
	}

	return rendered, nil
}

// StringProperty describes a templated string property in a JSON schema.
func StringProperty(description string, examples ...string) map[string]any {
	property := map[string]any{
		"type":        "string",
		"description": description,
	}

	if len(examples) > 0 {
		property["examples"] = examples
	}

	return property
}

// EnumProperty describes a string property restricted to values.
func EnumProperty(description string, defaultValue string, values ...string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
		"default":     defaultValue,
		"enum":        values,
	}
}

// RequireAny builds a JSON schema clause satisfied when at least one of the
// given keys is present, used for fields that accept aliases.
func RequireAny(keys ...string) map[string]any {
	options := make([]any, len(keys))
	for i, key := range keys {
		options[i] = map[string]any{"required": []string{key}}
	}

	return map[string]any{"anyOf": options}
}

// ObjectSchema assembles an object schema with the given properties and
// alias-aware required clauses.
func ObjectSchema(properties map[string]any, required ...map[string]any) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		clauses := make([]any, len(required))
		for i, clause := range required {
			clauses[i] = clause
		}

		schema["allOf"] = clauses
	}

	return schema
}
