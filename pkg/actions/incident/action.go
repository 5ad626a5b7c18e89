// Package incident provides the create_incident action.
package incident

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/rentflow/pkg/actions"
	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/protocol"
	"github.com/dukex/rentflow/pkg/template"
)

// Config is the typed configuration of a create_incident step.
type Config struct {
	ScopeType   string `json:"scope_type"  validate:"required,oneof=building unit"`
	ScopeID     string `json:"scope_id"    validate:"required"`
	BuildingID  string `json:"building_id" validate:"-"`
	UnitID      string `json:"unit_id"     validate:"-"`
	Title       string `json:"title"       validate:"required"`
	Description string `json:"description"`
	Severity    string `json:"severity"    validate:"omitempty,oneof=low medium high critical"`
}

var aliases = map[string]string{
	"titulo":      "title",
	"descripcion": "description",
	"severidad":   "severity",
	"edificio_id": "building_id",
	"unidad_id":   "unit_id",
}

var errAmbiguousScope = errors.New("config validation failed: building_id and unit_id are mutually exclusive")

// Action opens an incident through the configured store.
type Action struct {
	config Config
	store  protocol.IncidentStore
}

// NewAction decodes config and binds the action to store. building_id and
// unit_id are shortcuts that set the scope type and id together.
func NewAction(config map[string]any, store protocol.IncidentStore) (*Action, error) {
	if store == nil {
		return nil, errors.New("incident store is not configured")
	}

	normalized, err := expandScope(config)
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = actions.DecodeConfig(normalized, aliases, &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Severity == "" {
		cfg.Severity = protocol.SeverityMedium
	}

	return &Action{config: cfg, store: store}, nil
}

func expandScope(config map[string]any) (map[string]any, error) {
	building, hasBuilding := lookupAny(config, "building_id", "edificio_id")
	unit, hasUnit := lookupAny(config, "unit_id", "unidad_id")

	if hasBuilding && hasUnit {
		return nil, errAmbiguousScope
	}

	if !hasBuilding && !hasUnit {
		return config, nil
	}

	normalized := make(map[string]any, len(config)+2)
	for key, value := range config {
		normalized[key] = value
	}

	if hasBuilding {
		normalized["scope_type"] = protocol.ScopeBuilding
		normalized["scope_id"] = building
	} else {
		normalized["scope_type"] = protocol.ScopeUnit
		normalized["scope_id"] = unit
	}

	return normalized, nil
}

func lookupAny(config map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if value, ok := config[key]; ok {
			return value, true
		}
	}

	return nil, false
}

func (a *Action) Execute(ctx context.Context, data map[string]any, logger *slog.Logger) (models.ActionOutcome, error) {
	scopeID, err := actions.RenderAddress("scope_id", a.config.ScopeID, data)
	if err != nil {
		return nil, err
	}

	incident := protocol.Incident{
		Scope:       protocol.IncidentScope{Type: a.config.ScopeType, ID: scopeID},
		Title:       template.Render(a.config.Title, data),
		Description: template.Render(a.config.Description, data),
		Severity:    a.config.Severity,
	}

	logger.DebugContext(ctx, "Creating incident",
		"scope_type", incident.Scope.Type,
		"scope_id", incident.Scope.ID,
		"severity", incident.Severity)

	id, err := a.store.CreateIncident(ctx, incident)
	if err != nil {
		return nil, fmt.Errorf("failed to create incident: %w", err)
	}

	return models.ActionOutcome{
		"incident_id": id,
		"scope_type":  incident.Scope.Type,
		"scope_id":    incident.Scope.ID,
		"severity":    incident.Severity,
	}, nil
}
