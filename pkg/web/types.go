package web

import (
	"time"

	"github.com/dukex/rentflow/pkg/models"
)

// WorkflowRequest is the body of POST /workflows and PUT /workflows/:id.
type WorkflowRequest struct {
	OwnerScope    string              `json:"owner_scope"              validate:"required"`
	Name          string              `json:"name"                     validate:"required,min=3"`
	Description   string              `json:"description"`
	TriggerKind   string              `json:"trigger_kind"             validate:"required,oneof=manual event scheduled webhook"`
	TriggerConfig map[string]any      `json:"trigger_config,omitempty"`
	Actions       []ActionStepRequest `json:"actions"                  validate:"dive"`
}

// ActionStepRequest describes one step of a WorkflowRequest.
type ActionStepRequest struct {
	Order      int            `json:"order"                validate:"min=0"`
	ActionType string         `json:"action_type"          validate:"required"`
	Config     map[string]any `json:"config"`
	Conditions *models.Rule   `json:"conditions,omitempty"`
}

// ToModel converts the request into a workflow definition.
func (r WorkflowRequest) ToModel() *models.Workflow {
	steps := make([]models.ActionStep, 0, len(r.Actions))
	for _, step := range r.Actions {
		steps = append(steps, models.ActionStep{
			Order:      step.Order,
			ActionType: step.ActionType,
			Config:     step.Config,
			Conditions: step.Conditions,
		})
	}

	return &models.Workflow{
		OwnerScope:    r.OwnerScope,
		Name:          r.Name,
		Description:   r.Description,
		TriggerKind:   models.TriggerKind(r.TriggerKind),
		TriggerConfig: r.TriggerConfig,
		Actions:       steps,
	}
}

// ListWorkflowsResponse is the body of GET /workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
	Pagination  Pagination         `json:"pagination"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ActionTypeResponse describes one registered action type.
type ActionTypeResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Checkers  map[string]string `json:"checkers"`
	Timestamp time.Time         `json:"timestamp"`
}
