// Package config loads the file-based configuration of the engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidAllowList indicates a malformed record allow-list.
	ErrInvalidAllowList = errors.New("invalid record allow-list")

	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	tableName  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*\.)?[A-Za-z_][A-Za-z0-9_]*$`)
)

const defaultKeyColumn = "id"

// RecordTarget maps one entity type to its table and writable columns.
type RecordTarget struct {
	Table  string   `yaml:"table"`
	Key    string   `yaml:"key,omitempty"`
	Fields []string `yaml:"fields"`
}

// KeyColumn returns the column matched against the entity id.
func (t RecordTarget) KeyColumn() string {
	if t.Key == "" {
		return defaultKeyColumn
	}

	return t.Key
}

// Allows reports whether field may be written.
func (t RecordTarget) Allows(field string) bool {
	return slices.Contains(t.Fields, field)
}

// RecordAllowList lists, per entity type, what update_record may touch.
type RecordAllowList map[string]RecordTarget

type recordAllowListFile struct {
	Records map[string]RecordTarget `yaml:"records"`
}

// LoadRecordAllowList reads and validates the YAML allow-list at path.
func LoadRecordAllowList(path string) (RecordAllowList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read allow-list file %s: %w", path, err)
	}

	return ParseRecordAllowList(data)
}

// ParseRecordAllowList decodes and validates a YAML allow-list document.
func ParseRecordAllowList(data []byte) (RecordAllowList, error) {
	var file recordAllowListFile

	err := yaml.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML allow-list: %w", err)
	}

	allowList := RecordAllowList(file.Records)
	if allowList == nil {
		allowList = RecordAllowList{}
	}

	err = allowList.Validate()
	if err != nil {
		return nil, err
	}

	return allowList, nil
}

// Lookup returns the target of entityType when field is writable on it.
func (a RecordAllowList) Lookup(entityType, field string) (RecordTarget, bool) {
	target, ok := a[entityType]
	if !ok || !target.Allows(field) {
		return RecordTarget{}, false
	}

	return target, true
}

// EntityTypes returns the configured entity types, sorted.
func (a RecordAllowList) EntityTypes() []string {
	types := make([]string, 0, len(a))
	for entityType := range a {
		types = append(types, entityType)
	}

	sort.Strings(types)

	return types
}

// Validate checks that every table, key and field is a plain SQL identifier.
func (a RecordAllowList) Validate() error {
	for _, entityType := range a.EntityTypes() {
		target := a[entityType]

		if !tableName.MatchString(target.Table) {
			return fmt.Errorf("%w: entity %q has invalid table %q", ErrInvalidAllowList, entityType, target.Table)
		}

		if !identifier.MatchString(target.KeyColumn()) {
			return fmt.Errorf("%w: entity %q has invalid key column %q", ErrInvalidAllowList, entityType, target.Key)
		}

		if len(target.Fields) == 0 {
			return fmt.Errorf("%w: entity %q lists no fields", ErrInvalidAllowList, entityType)
		}

		for _, field := range target.Fields {
			if !identifier.MatchString(field) {
				return fmt.Errorf("%w: entity %q has invalid field %q", ErrInvalidAllowList, entityType, field)
			}
		}
	}

	return nil
}
