// Package protocol defines the interfaces and contracts between the engine,
// its pluggable actions, and the external collaborators actions write to.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/rentflow/pkg/models"
)

// Action is one configured side effect, ready to run against a trigger context.
type Action interface {
	// Execute renders its text fields against data, performs exactly one side
	// effect and returns a small structured outcome.
	Execute(ctx context.Context, data map[string]any, logger *slog.Logger) (models.ActionOutcome, error)
}

// ActionFactory creates actions of one type and describes their configuration.
type ActionFactory interface {
	// ID returns the action type tag used in workflow definitions.
	ID() string

	// Name returns the human-readable name for this action type.
	Name() string

	// Description returns a description of what this action does.
	Description() string

	// Schema returns the JSON schema for configuring this action.
	Schema() map[string]any

	// Create decodes and validates config into a typed action.
	Create(config map[string]any) (Action, error)
}
