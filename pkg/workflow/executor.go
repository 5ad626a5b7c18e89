// Package workflow runs workflow definitions against trigger contexts and
// keeps the execution audit trail.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/rentflow/pkg/conditions"
	"github.com/dukex/rentflow/pkg/eventbus"
	"github.com/dukex/rentflow/pkg/events"
	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/otelhelper"
	"github.com/dukex/rentflow/pkg/persistence"
	"github.com/dukex/rentflow/pkg/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Executor struct {
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionRepository
	registry   *registry.Registry
	publisher  eventbus.EventPublisher
	tracer     trace.Tracer
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

type Option func(*Executor)

// WithEventPublisher publishes execution lifecycle events on publisher.
func WithEventPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Executor) {
		e.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// WithIDGenerator replaces the uuid generator used for execution and event ids.
func WithIDGenerator(newID func() string) Option {
	return func(e *Executor) {
		e.newID = newID
	}
}

func NewExecutor(
	workflows persistence.WorkflowRepository,
	executions persistence.ExecutionRepository,
	registry *registry.Registry,
	logger *slog.Logger,
	options ...Option,
) *Executor {
	executor := &Executor{
		workflows:  workflows,
		executions: executions,
		registry:   registry,
		tracer:     otelhelper.NoopTracer(),
		logger:     logger.With("module", "executor"),
		now:        time.Now,
		newID:      uuid.NewString,
	}

	for _, option := range options {
		option(executor)
	}

	return executor
}

// ExecuteWorkflow runs the active workflow workflowID against triggerContext.
// Action failures are reported through the summary status; the returned error
// is either a *PreconditionError or a storage failure.
func (e *Executor) ExecuteWorkflow(
	ctx context.Context,
	workflowID string,
	triggerContext map[string]any,
) (*models.ExecutionSummary, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	workflow, steps, err := e.prepare(ctx, workflowID)
	if err != nil {
		kind := otelhelper.ErrorKindStorage
		if IsPrecondition(err) {
			kind = otelhelper.ErrorKindPrecondition
		}

		otelhelper.SetError(span, err, kind)

		return nil, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
		attribute.String(otelhelper.TriggerKindKey, string(workflow.TriggerKind)),
	)

	execution := &models.Execution{
		ID:             e.newID(),
		WorkflowID:     workflow.ID,
		Status:         models.ExecutionStatusRunning,
		StartedAt:      e.now().UTC(),
		TriggerContext: copyContext(triggerContext),
		StepResults:    []models.StepResult{},
	}

	span.SetAttributes(attribute.String(otelhelper.ExecutionIDKey, execution.ID))

	logger := e.logger.With("workflow_id", workflow.ID, "execution_id", execution.ID)

	if err := e.executions.CreateExecution(ctx, execution); err != nil {
		otelhelper.SetError(span, err, otelhelper.ErrorKindStorage)

		return nil, fmt.Errorf("failed to record execution of workflow %s: %w", workflow.ID, err)
	}

	logger.InfoContext(ctx, "Execution started", "steps", len(steps))
	e.publish(ctx, logger, workflow.ID, &events.WorkflowExecutionStarted{
		BaseEvent:      e.baseEvent(events.WorkflowExecutionStartedEvent, workflow.ID),
		ExecutionID:    execution.ID,
		TriggerContext: execution.TriggerContext,
	})

	failed := e.runSteps(ctx, logger, execution, steps)

	finishedAt := e.now().UTC()
	execution.FinishedAt = &finishedAt

	if failed == nil {
		execution.Status = models.ExecutionStatusCompleted
	}

	if err := e.executions.FinishExecution(ctx, execution); err != nil {
		otelhelper.SetError(span, err, otelhelper.ErrorKindStorage)

		return nil, fmt.Errorf("failed to finish execution %s: %w", execution.ID, err)
	}

	duration := finishedAt.Sub(execution.StartedAt)

	if failed != nil {
		logger.WarnContext(ctx, "Execution failed",
			"order", failed.Order,
			"action_type", failed.ActionType,
			"error", execution.Error,
			"duration", duration,
		)
		e.publish(ctx, logger, workflow.ID, &events.WorkflowExecutionFailed{
			BaseEvent:   e.baseEvent(events.WorkflowExecutionFailedEvent, workflow.ID),
			ExecutionID: execution.ID,
			StepResults: execution.StepResults,
			FailedOrder: failed.Order,
			ActionType:  failed.ActionType,
			Error:       execution.Error,
			Duration:    duration,
		})
	} else {
		logger.InfoContext(ctx, "Execution completed", "step_results", len(execution.StepResults), "duration", duration)
		e.publish(ctx, logger, workflow.ID, &events.WorkflowExecutionCompleted{
			BaseEvent:   e.baseEvent(events.WorkflowExecutionCompletedEvent, workflow.ID),
			ExecutionID: execution.ID,
			StepResults: execution.StepResults,
			Duration:    duration,
		})
	}

	return execution.Summary(), nil
}

// GetExecution returns the stored execution record.
func (e *Executor) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	return e.executions.GetExecution(ctx, id)
}

// ListExecutions returns the executions of workflowID, newest first.
func (e *Executor) ListExecutions(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	return e.executions.ListExecutionsByWorkflow(ctx, workflowID)
}

func (e *Executor) prepare(ctx context.Context, workflowID string) (*models.Workflow, []models.ActionStep, error) {
	workflow, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return nil, nil, &PreconditionError{WorkflowID: workflowID, Err: err}
		}

		return nil, nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	if !workflow.IsActive() {
		return nil, nil, &PreconditionError{
			WorkflowID: workflowID,
			Err:        fmt.Errorf("%w: state is %s", ErrWorkflowNotActive, workflow.LifecycleState),
		}
	}

	steps := workflow.OrderedActions()

	for _, step := range steps {
		if !e.registry.IsRegistered(step.ActionType) {
			return nil, nil, &PreconditionError{
				WorkflowID: workflowID,
				Err:        &registry.ActionError{ActionType: step.ActionType, Err: registry.ErrUnknownAction},
			}
		}
	}

	return workflow, steps, nil
}

// runSteps dispatches steps in order and returns the step that failed, if any.
func (e *Executor) runSteps(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.Execution,
	steps []models.ActionStep,
) *models.ActionStep {
	for i := range steps {
		step := &steps[i]
		stepLogger := logger.With("order", step.Order, "action_type", step.ActionType)

		if !conditions.Evaluate(step.Conditions, execution.TriggerContext) {
			stepLogger.DebugContext(ctx, "Step skipped, conditions not met")

			continue
		}

		outcome, err := e.dispatch(ctx, execution.ID, step, execution.TriggerContext)
		if err != nil {
			execution.Status = models.ExecutionStatusFailed
			execution.Error = fmt.Sprintf("step %d: %v", step.Order, err)

			return step
		}

		result := models.StepResult{
			Order:      step.Order,
			ActionType: step.ActionType,
			Outcome:    outcome,
			Timestamp:  e.now().UTC(),
		}
		execution.StepResults = append(execution.StepResults, result)

		stepLogger.DebugContext(ctx, "Step completed")
		e.publish(ctx, logger, execution.WorkflowID, &events.StepCompleted{
			BaseEvent:   e.baseEvent(events.StepCompletedEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			Step:        result,
		})
	}

	return nil
}

func (e *Executor) dispatch(
	ctx context.Context,
	executionID string,
	step *models.ActionStep,
	data map[string]any,
) (models.ActionOutcome, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.step",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.ActionTypeKey, step.ActionType),
		attribute.Int(otelhelper.StepOrderKey, step.Order),
	)
	defer span.End()

	outcome, err := e.registry.Dispatch(ctx, step.ActionType, step.Config, data)
	if err != nil {
		otelhelper.SetError(span, err, otelhelper.ErrorKindAction,
			attribute.Int(otelhelper.StepOrderKey, step.Order))

		return nil, err
	}

	return outcome, nil
}

func (e *Executor) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	base := events.NewBaseEvent(e.newID(), eventType, workflowID)
	base.Timestamp = e.now().UTC()

	return base
}

func (e *Executor) publish(ctx context.Context, logger *slog.Logger, workflowID string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, workflowID, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// copyContext deep-copies the JSON-shaped parts of a trigger context so later
// changes by the caller do not reach the execution record.
func copyContext(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}

	copied := make(map[string]any, len(data))
	for key, value := range data {
		copied[key] = copyValue(value)
	}

	return copied
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return copyContext(v)
	case []any:
		copied := make([]any, len(v))
		for i, item := range v {
			copied[i] = copyValue(item)
		}

		return copied
	case []string:
		return append([]string(nil), v...)
	default:
		return v
	}
}
