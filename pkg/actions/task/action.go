// Package task provides the create_task action.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/rentflow/pkg/actions"
	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/protocol"
	"github.com/dukex/rentflow/pkg/template"
)

const dateLayout = "2006-01-02"

// Config is the typed configuration of a create_task step.
type Config struct {
	Title       string `json:"title"       validate:"required"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
	DueDate     string `json:"due_date"`
	DueInDays   *int   `json:"due_in_days" validate:"omitempty,min=0"`
}

var aliases = map[string]string{
	"titulo":      "title",
	"descripcion": "description",
	"responsable": "assignee",
	"vencimiento": "due_date",
}

// Action creates a task through the configured store.
type Action struct {
	config Config
	store  protocol.TaskStore
	now    func() time.Time
}

// NewAction decodes config and binds the action to store.
func NewAction(config map[string]any, store protocol.TaskStore) (*Action, error) {
	if store == nil {
		return nil, errors.New("task store is not configured")
	}

	var cfg Config

	err := actions.DecodeConfig(config, aliases, &cfg)
	if err != nil {
		return nil, err
	}

	return &Action{config: cfg, store: store, now: time.Now}, nil
}

func (a *Action) Execute(ctx context.Context, data map[string]any, logger *slog.Logger) (models.ActionOutcome, error) {
	due, err := a.dueDate(data)
	if err != nil {
		return nil, err
	}

	task := protocol.Task{
		Title:       template.Render(a.config.Title, data),
		Description: template.Render(a.config.Description, data),
		DueDate:     due,
	}

	if a.config.Assignee != "" {
		task.Assignee, err = actions.RenderAddress("assignee", a.config.Assignee, data)
		if err != nil {
			return nil, err
		}
	}

	logger.DebugContext(ctx, "Creating task", "title", task.Title, "assignee", task.Assignee)

	id, err := a.store.CreateTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	outcome := models.ActionOutcome{
		"task_id": id,
		"title":   task.Title,
	}

	if due != nil {
		outcome["due_date"] = due.Format(time.RFC3339)
	}

	return outcome, nil
}

func (a *Action) dueDate(data map[string]any) (*time.Time, error) {
	if a.config.DueDate != "" {
		rendered := strings.TrimSpace(template.Render(a.config.DueDate, data))

		due, err := parseDate(rendered)
		if err != nil {
			return nil, fmt.Errorf("invalid due_date %q: %w", rendered, err)
		}

		return &due, nil
	}

	if a.config.DueInDays != nil {
		now := a.now().UTC()
		due := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, *a.config.DueInDays)

		return &due, nil
	}

	return nil, nil
}

func parseDate(value string) (time.Time, error) {
	if due, err := time.Parse(time.RFC3339, value); err == nil {
		return due.UTC(), nil
	}

	return time.Parse(dateLayout, value)
}
