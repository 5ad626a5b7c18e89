package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPersistence(t *testing.T) *Persistence {
	t.Helper()

	p, err := NewPersistence("file://" + t.TempDir())
	require.NoError(t, err)

	return p
}

func testWorkflow(name string) *models.Workflow {
	return &models.Workflow{
		OwnerScope:     "company-1",
		Name:           name,
		LifecycleState: models.LifecycleStateDraft,
		TriggerKind:    models.TriggerKindManual,
		Actions: []models.ActionStep{
			{
				Order:      1,
				ActionType: "send_notification",
				Config:     map[string]any{"target": "{{tenant.user_id}}", "title": "Pago de {{tenant.name}}"},
				Conditions: &models.Rule{Operator: "and", Children: []models.Rule{models.Leaf("amount", "greater_than", 100.0)}},
			},
		},
	}
}

func TestPersistence_HealthCheck(t *testing.T) {
	p := setupPersistence(t)

	assert.NoError(t, p.HealthCheck(context.Background()))
	assert.NoError(t, p.Close(context.Background()))
}

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := setupPersistence(t).WorkflowRepository()

	workflow := testWorkflow("Late rent")
	require.NoError(t, repo.Save(ctx, workflow))

	require.NotEmpty(t, workflow.ID)
	assert.False(t, workflow.CreatedAt.IsZero())

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)

	assert.Equal(t, workflow.Name, loaded.Name)
	assert.Equal(t, workflow.Actions[0].Config, loaded.Actions[0].Config)
	require.NotNil(t, loaded.Actions[0].Conditions)
	assert.Equal(t, "amount", loaded.Actions[0].Conditions.Children[0].Field)

	createdAt := loaded.CreatedAt
	loaded.Name = "Late rent v2"
	require.NoError(t, repo.Save(ctx, loaded))

	reloaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Late rent v2", reloaded.Name)
	assert.True(t, createdAt.Equal(reloaded.CreatedAt))
}

func TestWorkflowRepository_NotFoundAndInvalidIDs(t *testing.T) {
	ctx := context.Background()
	repo := setupPersistence(t).WorkflowRepository()

	_, err := repo.GetByID(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	assert.True(t, persistence.IsWorkflowNotFound(repo.Delete(ctx, "missing")))

	for _, id := range []string{"../etc/passwd", "a/b", "", ".hidden", "x..y"} {
		_, err := repo.GetByID(ctx, id)
		assert.ErrorIs(t, err, persistence.ErrInvalidID, id)
	}
}

func TestWorkflowRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := setupPersistence(t).WorkflowRepository()

	workflow := testWorkflow("Delete me")
	require.NoError(t, repo.Save(ctx, workflow))
	require.NoError(t, repo.Delete(ctx, workflow.ID))

	_, err := repo.GetByID(ctx, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := setupPersistence(t).WorkflowRepository()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 5 {
		workflow := testWorkflow(fmt.Sprintf("Workflow %d", i))
		workflow.ID = fmt.Sprintf("wf-%d", i)
		workflow.CreatedAt = base.Add(time.Duration(i) * time.Hour)

		if i%2 == 0 {
			workflow.LifecycleState = models.LifecycleStateActive
		}

		if i == 4 {
			workflow.OwnerScope = "company-2"
		}

		require.NoError(t, repo.Save(ctx, workflow))
	}

	result, err := repo.List(ctx, persistence.ListWorkflowsOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.TotalCount)
	assert.Equal(t, "wf-4", result.Workflows[0].ID, "newest first")

	result, err = repo.List(ctx, persistence.ListWorkflowsOptions{OwnerScope: "company-1", State: models.LifecycleStateActive})
	require.NoError(t, err)
	require.Len(t, result.Workflows, 2)
	assert.Equal(t, "wf-2", result.Workflows[0].ID)
	assert.Equal(t, "wf-0", result.Workflows[1].ID)

	result, err = repo.List(ctx, persistence.ListWorkflowsOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, result.Workflows, 2)
	assert.Equal(t, "wf-2", result.Workflows[0].ID)
	assert.True(t, result.HasNextPage)

	result, err = repo.List(ctx, persistence.ListWorkflowsOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, result.Workflows)
	assert.False(t, result.HasNextPage)
}

func runningExecution(id, workflowID string, startedAt time.Time) *models.Execution {
	return &models.Execution{
		ID:             id,
		WorkflowID:     workflowID,
		Status:         models.ExecutionStatusRunning,
		StartedAt:      startedAt,
		TriggerContext: map[string]any{"tenant": map[string]any{"name": "Ana García"}},
		StepResults:    []models.StepResult{},
	}
}

func TestExecutionRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := setupPersistence(t).ExecutionRepository()

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	execution := runningExecution("ex-1", "wf-1", started)

	require.NoError(t, repo.CreateExecution(ctx, execution))
	assert.ErrorIs(t, repo.CreateExecution(ctx, execution), persistence.ErrExecutionExists)

	finished := started.Add(time.Second)
	execution.Status = models.ExecutionStatusCompleted
	execution.FinishedAt = &finished
	execution.StepResults = []models.StepResult{
		{Order: 1, ActionType: "send_notification", Outcome: models.ActionOutcome{"notification_id": "n-1"}, Timestamp: finished},
	}

	require.NoError(t, repo.FinishExecution(ctx, execution))

	loaded, err := repo.GetExecution(ctx, "ex-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	require.Len(t, loaded.StepResults, 1)
	assert.Equal(t, "n-1", loaded.StepResults[0].Outcome["notification_id"])

	execution.Status = models.ExecutionStatusFailed
	execution.Error = "late overwrite"
	assert.True(t, persistence.IsExecutionFinalized(repo.FinishExecution(ctx, execution)))

	again, err := repo.GetExecution(ctx, "ex-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, again.Status)
	assert.Empty(t, again.Error)
}

func TestExecutionRepository_FinishRequiresTerminalStatusAndExistingRecord(t *testing.T) {
	ctx := context.Background()
	repo := setupPersistence(t).ExecutionRepository()

	missing := runningExecution("ghost", "wf-1", time.Now())
	missing.Status = models.ExecutionStatusFailed
	assert.True(t, persistence.IsExecutionNotFound(repo.FinishExecution(ctx, missing)))

	running := runningExecution("ex-2", "wf-1", time.Now())
	require.NoError(t, repo.CreateExecution(ctx, running))
	assert.Error(t, repo.FinishExecution(ctx, running))
}

func TestExecutionRepository_ReadsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := setupPersistence(t).ExecutionRepository()

	require.NoError(t, repo.CreateExecution(ctx, runningExecution("ex-3", "wf-1", time.Now())))

	first, err := repo.GetExecution(ctx, "ex-3")
	require.NoError(t, err)
	second, err := repo.GetExecution(ctx, "ex-3")
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestExecutionRepository_ListByWorkflow(t *testing.T) {
	ctx := context.Background()
	p := setupPersistence(t)
	repo := p.ExecutionRepository()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateExecution(ctx, runningExecution("ex-a", "wf-1", base)))
	require.NoError(t, repo.CreateExecution(ctx, runningExecution("ex-b", "wf-1", base.Add(time.Minute))))
	require.NoError(t, repo.CreateExecution(ctx, runningExecution("ex-c", "wf-2", base)))

	// stray temp files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(p.root, executionsDir, ".tmp-1"), []byte("{"), 0o600))

	executions, err := repo.ListExecutionsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.Equal(t, "ex-b", executions[0].ID)
	assert.Equal(t, "ex-a", executions[1].ID)

	none, err := repo.ListExecutionsByWorkflow(ctx, "wf-unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExecutionRepository_ConcurrentExecutions(t *testing.T) {
	ctx := context.Background()
	repo := setupPersistence(t).ExecutionRepository()

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			execution := runningExecution(fmt.Sprintf("ex-%02d", i), "wf-1", time.Now())
			assert.NoError(t, repo.CreateExecution(ctx, execution))

			now := time.Now()
			execution.Status = models.ExecutionStatusCompleted
			execution.FinishedAt = &now
			assert.NoError(t, repo.FinishExecution(ctx, execution))
		}(i)
	}

	wg.Wait()

	executions, err := repo.ListExecutionsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, executions, 20)
}
