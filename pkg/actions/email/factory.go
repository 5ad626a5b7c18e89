package email

import (
	"github.com/dukex/rentflow/pkg/actions"
	"github.com/dukex/rentflow/pkg/protocol"
)

// ActionType is the tag used in workflow definitions.
const ActionType = "send_email"

// ActionFactory creates send_email actions bound to a mailer.
type ActionFactory struct {
	mailer protocol.Mailer
}

// NewActionFactory creates a new instance of ActionFactory.
func NewActionFactory(mailer protocol.Mailer) *ActionFactory {
	return &ActionFactory{mailer: mailer}
}

func (*ActionFactory) ID() string {
	return ActionType
}

func (*ActionFactory) Name() string {
	return "Send email"
}

func (*ActionFactory) Description() string {
	return "Requests delivery of one email. Recipient, subject and body are templated."
}

func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(config, f.mailer)
}

func (*ActionFactory) Schema() map[string]any {
	return actions.ObjectSchema(
		map[string]any{
			"to":      actions.StringProperty("Recipient address", "{{tenant.email}}", "admin@example.com"),
			"para":    actions.StringProperty("Alias of to"),
			"subject": actions.StringProperty("Subject line", "Recordatorio de pago"),
			"asunto":  actions.StringProperty("Alias of subject"),
			"body":    actions.StringProperty("Plain text body"),
			"cuerpo":  actions.StringProperty("Alias of body"),
		},
		actions.RequireAny("to", "para"),
		actions.RequireAny("subject", "asunto"),
	)
}
