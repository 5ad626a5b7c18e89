package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/rentflow/pkg/events"
	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/persistence"
)

// TriggerEventKey is the trigger_config entry naming the event an
// event-triggered workflow listens to.
const TriggerEventKey = "event"

// TriggerMatcher finds the workflows subscribed to an inbound trigger event.
type TriggerMatcher struct {
	workflows persistence.WorkflowRepository
	logger    *slog.Logger
}

func NewTriggerMatcher(workflows persistence.WorkflowRepository, logger *slog.Logger) *TriggerMatcher {
	return &TriggerMatcher{
		workflows: workflows,
		logger:    logger.With("module", "trigger_matcher"),
	}
}

// MatchWorkflows returns every active event-triggered workflow whose
// trigger_config.event equals the requested event, restricted to the request's
// owner scope when one is given.
func (tm *TriggerMatcher) MatchWorkflows(
	ctx context.Context,
	request *events.WorkflowTriggerRequested,
) ([]*models.Workflow, error) {
	if strings.TrimSpace(request.Event) == "" {
		return nil, nil
	}

	if request.WorkflowID != "" {
		return tm.matchOne(ctx, request)
	}

	opts := persistence.ListWorkflowsOptions{
		OwnerScope:  request.OwnerScope,
		State:       models.LifecycleStateActive,
		TriggerKind: models.TriggerKindEvent,
		Limit:       persistence.MaxListLimit,
	}

	var matches []*models.Workflow

	for {
		page, err := tm.workflows.List(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list event workflows: %w", err)
		}

		for _, workflow := range page.Workflows {
			if Subscribes(workflow, request.Event) {
				matches = append(matches, workflow)
			}
		}

		// The page count and total come from separate queries, so a
		// concurrent delete can report more pages than there are rows.
		if !page.HasNextPage || len(page.Workflows) == 0 {
			break
		}

		opts.Offset += len(page.Workflows)
	}

	tm.logger.DebugContext(ctx, "Matched trigger event",
		"event", request.Event,
		"owner_scope", request.OwnerScope,
		"matches_found", len(matches),
	)

	return matches, nil
}

func (tm *TriggerMatcher) matchOne(
	ctx context.Context,
	request *events.WorkflowTriggerRequested,
) ([]*models.Workflow, error) {
	workflow, err := tm.workflows.GetByID(ctx, request.WorkflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	if request.OwnerScope != "" && workflow.OwnerScope != request.OwnerScope {
		return nil, nil
	}

	if !workflow.IsActive() || !Subscribes(workflow, request.Event) {
		return nil, nil
	}

	return []*models.Workflow{workflow}, nil
}

// Subscribes reports whether workflow is event-triggered on eventName.
func Subscribes(workflow *models.Workflow, eventName string) bool {
	if workflow.TriggerKind != models.TriggerKindEvent {
		return false
	}

	configured, ok := workflow.TriggerConfig[TriggerEventKey].(string)
	if !ok {
		return false
	}

	return strings.EqualFold(strings.TrimSpace(configured), strings.TrimSpace(eventName))
}
