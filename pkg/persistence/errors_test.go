package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("workflow error unwraps and carries context", func(t *testing.T) {
		err := persistence.NewWorkflowError("GetByID", "wf-123", persistence.ErrWorkflowNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(err))
		assert.True(t, persistence.IsWorkflowNotFound(fmt.Errorf("outer: %w", err)))
		assert.False(t, persistence.IsExecutionNotFound(err))
		assert.Contains(t, err.Error(), "GetByID")
		assert.Contains(t, err.Error(), "wf-123")
	})

	t.Run("execution error unwraps and carries context", func(t *testing.T) {
		err := persistence.NewExecutionError("FinishExecution", "ex-9", persistence.ErrExecutionFinalized)

		assert.True(t, persistence.IsExecutionFinalized(err))
		assert.True(t, errors.Is(err, persistence.ErrExecutionFinalized))

		var target *persistence.ExecutionError
		assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &target))
		assert.Equal(t, "ex-9", target.ExecutionID)
	})
}

func TestListWorkflowsOptions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, persistence.DefaultListLimit, persistence.ListWorkflowsOptions{}.Normalize().Limit)
	assert.Equal(t, persistence.DefaultListLimit, persistence.ListWorkflowsOptions{Limit: 1000}.Normalize().Limit)
	assert.Equal(t, 5, persistence.ListWorkflowsOptions{Limit: 5}.Normalize().Limit)
	assert.Equal(t, 0, persistence.ListWorkflowsOptions{Offset: -3}.Normalize().Offset)

	workflow := &models.Workflow{
		OwnerScope:     "company-1",
		LifecycleState: models.LifecycleStateActive,
		TriggerKind:    models.TriggerKindEvent,
	}

	assert.True(t, persistence.ListWorkflowsOptions{}.Matches(workflow))
	assert.True(t, persistence.ListWorkflowsOptions{OwnerScope: "company-1", State: models.LifecycleStateActive}.Matches(workflow))
	assert.False(t, persistence.ListWorkflowsOptions{OwnerScope: "company-2"}.Matches(workflow))
	assert.False(t, persistence.ListWorkflowsOptions{State: models.LifecycleStateDraft}.Matches(workflow))
	assert.False(t, persistence.ListWorkflowsOptions{TriggerKind: models.TriggerKindWebhook}.Matches(workflow))
}
