package incident

import (
	"github.com/dukex/rentflow/pkg/actions"
	"github.com/dukex/rentflow/pkg/protocol"
)

// ActionType is the tag used in workflow definitions.
const ActionType = "create_incident"

// ActionFactory creates create_incident actions bound to an incident store.
type ActionFactory struct {
	store protocol.IncidentStore
}

// NewActionFactory creates a new instance of ActionFactory.
func NewActionFactory(store protocol.IncidentStore) *ActionFactory {
	return &ActionFactory{store: store}
}

func (*ActionFactory) ID() string {
	return ActionType
}

func (*ActionFactory) Name() string {
	return "Create incident"
}

func (*ActionFactory) Description() string {
	return "Opens an incident scoped to a building or a unit."
}

func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(config, f.store)
}

func (*ActionFactory) Schema() map[string]any {
	return actions.ObjectSchema(
		map[string]any{
			"scope_type":  map[string]any{"type": "string", "enum": []string{protocol.ScopeBuilding, protocol.ScopeUnit}},
			"scope_id":    actions.StringProperty("Identifier of the building or unit", "{{unit.id}}"),
			"building_id": actions.StringProperty("Shortcut for scope_type=building"),
			"unit_id":     actions.StringProperty("Shortcut for scope_type=unit"),
			"title":       actions.StringProperty("Incident title", "Fuga en {{unit.code}}"),
			"titulo":      actions.StringProperty("Alias of title"),
			"description": actions.StringProperty("Incident description"),
			"descripcion": actions.StringProperty("Alias of description"),
			"severity":    actions.EnumProperty("Incident severity", protocol.SeverityMedium,
				protocol.SeverityLow, protocol.SeverityMedium, protocol.SeverityHigh, protocol.SeverityCritical),
		},
		actions.RequireAny("scope_id", "building_id", "unit_id"),
		actions.RequireAny("title", "titulo"),
	)
}
