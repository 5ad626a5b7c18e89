// Package email provides the send_email action.
package email

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

// Config is the typed configuration of a send_email step.
type Config struct {
	To      string `json:"to"      validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body"`
}

var aliases = map[string]string{
	"para":   "to",
	"asunto": "subject",
	"cuerpo": "body",
}

// Action sends one email through the configured mailer.
type Action struct {
	config Config
	mailer protocol.Mailer
}

// NewAction decodes config and binds the action to mailer.
func NewAction(config map[string]any, mailer protocol.Mailer) (*Action, error) {
	if mailer == nil {
		return nil, errors.New("mailer is not configured")
	}

	var cfg Config

	err := actions.DecodeConfig(config, aliases, &cfg)
	if err != nil {
		return nil, err
	}

	return &Action{config: cfg, mailer: mailer}, nil
}

func (a *Action) Execute(ctx context.Context, data map[string]any, logger *slog.Logger) (models.ActionOutcome, error) {
	to, err := actions.RenderAddress("to", a.config.To, data)
	if err != nil {
		return nil, err
	}

	err = actions.ValidateVar("to", to, "required,email")
	if err != nil {
		return nil, err
	}

	mail := protocol.Mail{
		To:      to,
		Subject: template.Render(a.config.Subject, data),
		Body:    template.Render(a.config.Body, data),
	}

	logger.DebugContext(ctx, "Sending email", "to", mail.To, "subject", mail.Subject)

	err = a.mailer.SendMail(ctx, mail)
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	return models.ActionOutcome{
		"to":      mail.To,
		"subject": mail.Subject,
	}, nil
}
