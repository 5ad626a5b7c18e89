package notification

import (
	"github.com/dukex/rentflow/pkg/actions"
	"github.com/dukex/rentflow/pkg/protocol"
)

// ActionType is the tag used in workflow definitions.
const ActionType = "send_notification"

// ActionFactory creates send_notification actions bound to a notification sink.
type ActionFactory struct {
	sink protocol.NotificationSink
}

// NewActionFactory creates a new instance of ActionFactory.
func NewActionFactory(sink protocol.NotificationSink) *ActionFactory {
	return &ActionFactory{sink: sink}
}

// ID returns the unique identifier for the action factory.
func (*ActionFactory) ID() string {
	return ActionType
}

// Name returns the name of the action factory.
func (*ActionFactory) Name() string {
	return "Send notification"
}

// Description returns a brief description of the action.
func (*ActionFactory) Description() string {
	return "Creates one in-app notification for a target user. Title and body support {{placeholders}}."
}

// Create creates a new Action instance with the provided configuration.
func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(config, f.sink)
}

// Schema returns the JSON schema for the action configuration.
func (*ActionFactory) Schema() map[string]any {
	return actions.ObjectSchema(
		map[string]any{
			"target": actions.StringProperty(
				"User that receives the notification",
				"{{tenant.user_id}}",
			),
			"title": actions.StringProperty(
				"Notification title",
				"Pago de {{tenant.name}}",
				"Rent due for unit {{unit.code}}",
			),
			"titulo":       actions.StringProperty("Alias of title"),
			"body":         actions.StringProperty("Notification body"),
			"mensaje":      actions.StringProperty("Alias of body"),
			"destinatario": actions.StringProperty("Alias of target"),
			"priority":     actions.EnumProperty(
				"Notification priority",
				protocol.PriorityNormal,
				protocol.PriorityLow, protocol.PriorityNormal, protocol.PriorityHigh, protocol.PriorityUrgent,
			),
		},
		actions.RequireAny("target", "destinatario"),
		actions.RequireAny("title", "titulo"),
	)
}
