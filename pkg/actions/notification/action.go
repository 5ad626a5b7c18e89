// Package notification provides the send_notification action.
package notification

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

// Config is the typed configuration of a send_notification step.
type Config struct {
	Target   string `json:"target"   validate:"required"`
	Title    string `json:"title"    validate:"required"`
	Body     string `json:"body"`
	Priority string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
}

var aliases = map[string]string{
	"titulo":       "title",
	"mensaje":      "body",
	"destinatario": "target",
	"prioridad":    "priority",
}

// Action creates a notification through the configured sink.
type Action struct {
	config Config
	sink   protocol.NotificationSink
}

// NewAction decodes config and binds the action to sink.
func NewAction(config map[string]any, sink protocol.NotificationSink) (*Action, error) {
	if sink == nil {
		return nil, errors.New("notification sink is not configured")
	}

	var cfg Config

	err := actions.DecodeConfig(config, aliases, &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Priority == "" {
		cfg.Priority = protocol.PriorityNormal
	}

	return &Action{config: cfg, sink: sink}, nil
}

// Execute renders the notification and hands it to the sink.
func (a *Action) Execute(ctx context.Context, data map[string]any, logger *slog.Logger) (models.ActionOutcome, error) {
	target, err := actions.RenderAddress("target", a.config.Target, data)
	if err != nil {
		return nil, err
	}

	notification := protocol.Notification{
		Target:   target,
		Title:    template.Render(a.config.Title, data),
		Body:     template.Render(a.config.Body, data),
		Priority: a.config.Priority,
	}

	logger.DebugContext(ctx, "Creating notification", "target", notification.Target, "priority", notification.Priority)

	id, err := a.sink.CreateNotification(ctx, notification)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	return models.ActionOutcome{
		"notification_id": id,
		"target":          notification.Target,
		"title":           notification.Title,
	}, nil
}
