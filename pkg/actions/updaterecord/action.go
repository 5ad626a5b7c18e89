// Package updaterecord provides the update_record action.
package updaterecord

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

// Config is the typed configuration of an update_record step.
type Config struct {
	EntityType string `json:"entity_type" validate:"required"`
	EntityID   string `json:"entity_id"   validate:"required"`
	Field      string `json:"field"       validate:"required"`
	Value      any    `json:"value"`
}

var aliases = map[string]string{
	"entidad":    "entity_type",
	"id_entidad": "entity_id",
	"campo":      "field",
	"valor":      "value",
}

var errMissingValue = errors.New("config validation failed: value is required")

// Action writes one field through the configured record store.
type Action struct {
	config Config
	store  protocol.RecordStore
}

// NewAction decodes config and binds the action to store. A null value is
// accepted and clears the field.
func NewAction(config map[string]any, store protocol.RecordStore) (*Action, error) {
	if store == nil {
		return nil, errors.New("record store is not configured")
	}

	_, hasValue := config["value"]
	_, hasAlias := config["valor"]

	if !hasValue && !hasAlias {
		return nil, errMissingValue
	}

	var cfg Config

	err := actions.DecodeConfig(config, aliases, &cfg)
	if err != nil {
		return nil, err
	}

	return &Action{config: cfg, store: store}, nil
}

func (a *Action) Execute(ctx context.Context, data map[string]any, logger *slog.Logger) (models.ActionOutcome, error) {
	update := protocol.RecordUpdate{Value: a.config.Value}

	var err error

	update.EntityType, err = actions.RenderAddress("entity_type", a.config.EntityType, data)
	if err != nil {
		return nil, err
	}

	update.EntityID, err = actions.RenderAddress("entity_id", a.config.EntityID, data)
	if err != nil {
		return nil, err
	}

	update.Field, err = actions.RenderAddress("field", a.config.Field, data)
	if err != nil {
		return nil, err
	}

	if text, ok := a.config.Value.(string); ok {
		update.Value = template.Render(text, data)
	}

	logger.DebugContext(ctx, "Updating record",
		"entity_type", update.EntityType,
		"entity_id", update.EntityID,
		"field", update.Field)

	err = a.store.UpdateField(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s %s: %w", update.EntityType, update.EntityID, err)
	}

	return models.ActionOutcome{
		"entity_type": update.EntityType,
		"entity_id":   update.EntityID,
		"field":       update.Field,
		"value":       update.Value,
	}, nil
}
