package updaterecord

import (
	"github.com/dukex/rentflow/pkg/actions"
	"github.com/dukex/rentflow/pkg/protocol"
)

// ActionType is the tag used in workflow definitions.
const ActionType = "update_record"

// ActionFactory creates update_record actions bound to a record store.
type ActionFactory struct {
	store protocol.RecordStore
}

// NewActionFactory creates a new instance of ActionFactory.
func NewActionFactory(store protocol.RecordStore) *ActionFactory {
	return &ActionFactory{store: store}
}

func (*ActionFactory) ID() string {
	return ActionType
}

func (*ActionFactory) Name() string {
	return "Update record"
}

func (*ActionFactory) Description() string {
	return "Sets one field of one domain entity. Only allow-listed entity types and fields can be written."
}

func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(config, f.store)
}

func (*ActionFactory) Schema() map[string]any {
	return actions.ObjectSchema(
		map[string]any{
			"entity_type": actions.StringProperty("Entity type as named in the record allow-list", "lease"),
			"entidad":     actions.StringProperty("Alias of entity_type"),
			"entity_id":   actions.StringProperty("Identifier of the entity", "{{lease.id}}"),
			"id_entidad":  actions.StringProperty("Alias of entity_id"),
			"field":       actions.StringProperty("Field to set", "status"),
			"campo":       actions.StringProperty("Alias of field"),
			"value":       map[string]any{"description": "New value; string values support {{placeholders}}"},
			"valor":       map[string]any{"description": "Alias of value"},
		},
		actions.RequireAny("entity_type", "entidad"),
		actions.RequireAny("entity_id", "id_entidad"),
		actions.RequireAny("field", "campo"),
		actions.RequireAny("value", "valor"),
	)
}
