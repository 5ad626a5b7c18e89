package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/rentflow/pkg/conditions"
	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/persistence"
	"github.com/dukex/rentflow/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// allowedTransitions lists, per target state, the states it may be reached from.
var allowedTransitions = map[models.LifecycleState][]models.LifecycleState{
	models.LifecycleStateActive:   {models.LifecycleStateDraft, models.LifecycleStateInactive},
	models.LifecycleStateInactive: {models.LifecycleStateActive},
}

type Workflow struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validate    *validator.Validate
	now         func() time.Time
}

// NewWorkflow creates a new workflow service. registry is consulted when a
// definition is activated.
func NewWorkflow(persistence persistence.Persistence, registry *registry.Registry) *Workflow {
	return &Workflow{
		persistence: persistence,
		registry:    registry,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		now:         time.Now,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	// Pagination
	Limit  int `validate:"min=0,max=100"`
	Offset int `validate:"min=0"`

	// Filtering
	OwnerScope  string
	State       models.LifecycleState `validate:"omitempty,oneof=draft active inactive"`
	TriggerKind models.TriggerKind    `validate:"omitempty,oneof=manual event scheduled webhook"`
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// List retrieves workflows with filtering and pagination, newest first.
func (w *Workflow) List(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	err := w.validateListWorkflowsRequest(&req)
	if err != nil {
		return nil, err
	}

	opts := persistence.ListWorkflowsOptions{
		OwnerScope:  req.OwnerScope,
		State:       req.State,
		TriggerKind: req.TriggerKind,
		Limit:       req.Limit,
		Offset:      req.Offset,
	}.Normalize()

	result, err := w.persistence.WorkflowRepository().List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

func (w *Workflow) validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	req.OwnerScope = strings.TrimSpace(req.OwnerScope)

	err := w.validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldErr := range validationErrors {
			switch fieldErr.Field() {
			case "State":
				return NewValidationError("List", "INVALID_STATE",
					fmt.Sprintf("invalid lifecycle state '%s'", req.State), ErrInvalidState)
			case "TriggerKind":
				return NewValidationError("List", "INVALID_TRIGGER_KIND",
					fmt.Sprintf("invalid trigger kind '%s'", req.TriggerKind), ErrInvalidTriggerKind)
			}
		}
	}

	return NewValidationError("List", "INVALID_REQUEST", err.Error(), ErrInvalidRequest)
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// Create stores workflow as a new draft with a fresh ID.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	now := w.now().UTC()
	workflow.ID = uuid.NewString()
	workflow.LifecycleState = models.LifecycleStateDraft
	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	workflow.ActivatedAt = nil

	err := w.validateDefinition("Create", workflow)
	if err != nil {
		return nil, err
	}

	err = w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// Update replaces the definition of a workflow that is not active. The
// lifecycle state and timestamps of the stored workflow are kept.
func (w *Workflow) Update(
	ctx context.Context,
	workflowID string,
	workflow *models.Workflow,
) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	existing, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if existing.IsActive() {
		return nil, &ServiceError{
			Op:      "Update",
			Code:    "WORKFLOW_ACTIVE",
			Message: "deactivate the workflow before editing it",
			Err:     ErrCannotModifyActive,
		}
	}

	workflow.ID = workflowID
	workflow.LifecycleState = existing.LifecycleState
	workflow.CreatedAt = existing.CreatedAt
	workflow.ActivatedAt = existing.ActivatedAt
	workflow.UpdatedAt = w.now().UTC()

	err = w.validateDefinition("Update", workflow)
	if err != nil {
		return nil, err
	}

	err = w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// Activate makes a draft or inactive workflow executable once its
// definition passes activation checks.
func (w *Workflow) Activate(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	err = checkTransition("Activate", workflow.LifecycleState, models.LifecycleStateActive)
	if err != nil {
		return nil, err
	}

	err = w.ValidateForActivation(workflow)
	if err != nil {
		return nil, err
	}

	now := w.now().UTC()
	workflow.LifecycleState = models.LifecycleStateActive
	workflow.ActivatedAt = &now
	workflow.UpdatedAt = now

	err = w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to activate workflow: %w", err)
	}

	return workflow, nil
}

// Deactivate switches an active workflow off.
func (w *Workflow) Deactivate(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	err = checkTransition("Deactivate", workflow.LifecycleState, models.LifecycleStateInactive)
	if err != nil {
		return nil, err
	}

	workflow.LifecycleState = models.LifecycleStateInactive
	workflow.UpdatedAt = w.now().UTC()

	err = w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate workflow: %w", err)
	}

	return workflow, nil
}

// Delete removes a workflow by its ID. Its executions are kept.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	_, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return err
	}

	err = w.persistence.WorkflowRepository().Delete(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// ValidateForActivation checks everything an execution will rely on: at
// least one step, unique orders, registered action types with valid
// configs, and well-formed condition trees.
func (w *Workflow) ValidateForActivation(workflow *models.Workflow) error {
	invalid := func(code string, err error) error {
		return &ServiceError{
			Op:      "Activate",
			Code:    code,
			Message: err.Error(),
			Err:     fmt.Errorf("%w: %w", ErrInvalidDefinition, err),
		}
	}

	err := w.validateDefinition("Activate", workflow)
	if err != nil {
		return err
	}

	if len(workflow.Actions) == 0 {
		return invalid("ACTIONS_REQUIRED", ErrActionsRequired)
	}

	if duplicates := workflow.DuplicateOrders(); len(duplicates) > 0 {
		return invalid("DUPLICATE_ORDER", fmt.Errorf("%w: %v", ErrDuplicateOrder, duplicates))
	}

	for _, step := range workflow.OrderedActions() {
		err := w.registry.ValidateConfig(step.ActionType, step.Config)
		if err != nil {
			code := "INVALID_ACTION_CONFIG"
			if registry.IsUnknownAction(err) {
				code = "UNKNOWN_ACTION_TYPE"
			}

			return invalid(code, fmt.Errorf("step %d: %w", step.Order, err))
		}

		err = conditions.Validate(step.Conditions)
		if err != nil {
			return invalid("INVALID_CONDITIONS", fmt.Errorf("step %d: %w", step.Order, err))
		}
	}

	return nil
}

func (w *Workflow) validateDefinition(op string, workflow *models.Workflow) error {
	err := w.validate.Struct(workflow)
	if err != nil {
		return NewValidationError(op, "INVALID_WORKFLOW", err.Error(), fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	return nil
}

func checkTransition(op string, from, to models.LifecycleState) error {
	for _, allowed := range allowedTransitions[to] {
		if allowed == from {
			return nil
		}
	}

	return &ServiceError{
		Op:      op,
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf("cannot move workflow from %s to %s", from, to),
		Err:     ErrInvalidTransition,
	}
}
