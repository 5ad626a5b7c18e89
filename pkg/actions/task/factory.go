package task

import (
	"github.com/dukex/rentflow/pkg/actions"
	"github.com/dukex/rentflow/pkg/protocol"
)

// ActionType is the tag used in workflow definitions.
const ActionType = "create_task"

// ActionFactory creates create_task actions bound to a task store.
type ActionFactory struct {
	store protocol.TaskStore
}

// NewActionFactory creates a new instance of ActionFactory.
func NewActionFactory(store protocol.TaskStore) *ActionFactory {
	return &ActionFactory{store: store}
}

func (*ActionFactory) ID() string {
	return ActionType
}

func (*ActionFactory) Name() string {
	return "Create task"
}

func (*ActionFactory) Description() string {
	return "Creates a follow-up task, optionally assigned and with a due date."
}

func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(config, f.store)
}

func (*ActionFactory) Schema() map[string]any {
	return actions.ObjectSchema(
		map[string]any{
			"title":       actions.StringProperty("Task title", "Call {{tenant.name}} about late rent"),
			"titulo":      actions.StringProperty("Alias of title"),
			"description": actions.StringProperty("Task description"),
			"descripcion": actions.StringProperty("Alias of description"),
			"assignee":    actions.StringProperty("User the task is assigned to", "{{building.manager_id}}"),
			"responsable": actions.StringProperty("Alias of assignee"),
			"due_date":    actions.StringProperty("Due date as RFC 3339 timestamp or YYYY-MM-DD", "2024-03-01"),
			"vencimiento": actions.StringProperty("Alias of due_date"),
			"due_in_days": map[string]any{
				"type":        "integer",
				"minimum":     0,
				"description": "Due date relative to the execution day; ignored when due_date is set",
			},
		},
		actions.RequireAny("title", "titulo"),
	)
}
