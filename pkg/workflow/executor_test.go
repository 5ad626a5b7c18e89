package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/rentflow/pkg/actions/notification"
	"github.com/dukex/rentflow/pkg/actions/task"
	"github.com/dukex/rentflow/pkg/events"
	"github.com/dukex/rentflow/pkg/mocks"
	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/persistence"
	"github.com/dukex/rentflow/pkg/persistence/file"
	"github.com/dukex/rentflow/pkg/protocol"
	"github.com/dukex/rentflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// recordingFactory builds actions that record every call and fail when the
// step config carries "fail": true.
type recordingFactory struct {
	actionType string

	mu    sync.Mutex
	calls []map[string]any
}

func (f *recordingFactory) ID() string             { return f.actionType }
func (f *recordingFactory) Name() string           { return f.actionType }
func (f *recordingFactory) Description() string    { return "records calls" }
func (f *recordingFactory) Schema() map[string]any { return nil }
func (f *recordingFactory) Create(config map[string]any) (protocol.Action, error) {
	return &recordingAction{factory: f, config: config}, nil
}

func (f *recordingFactory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

type recordingAction struct {
	factory *recordingFactory
	config  map[string]any
}

func (a *recordingAction) Execute(_ context.Context, data map[string]any, _ *slog.Logger) (models.ActionOutcome, error) {
	a.factory.mu.Lock()
	a.factory.calls = append(a.factory.calls, data)
	a.factory.mu.Unlock()

	if fail, _ := a.config["fail"].(bool); fail {
		return nil, errors.New("collaborator unavailable")
	}

	return models.ActionOutcome{"step": a.config["name"]}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store    *file.Persistence
	registry *registry.Registry
	first    *recordingFactory
	second   *recordingFactory
	third    *recordingFactory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		registry: registry.NewRegistry(testLogger()),
		first:    &recordingFactory{actionType: "first"},
		second:   &recordingFactory{actionType: "second"},
		third:    &recordingFactory{actionType: "third"},
	}

	f.registry.RegisterAction(f.first)
	f.registry.RegisterAction(f.second)
	f.registry.RegisterAction(f.third)

	return f
}

func (f *fixture) executor(options ...Option) *Executor {
	return NewExecutor(
		f.store.WorkflowRepository(),
		f.store.ExecutionRepository(),
		f.registry,
		testLogger(),
		options...,
	)
}

func (f *fixture) save(t *testing.T, workflow *models.Workflow) {
	t.Helper()

	require.NoError(t, f.store.WorkflowRepository().Save(context.Background(), workflow))
}

func threeStepWorkflow(state models.LifecycleState) *models.Workflow {
	return &models.Workflow{
		ID:             "wf-three",
		OwnerScope:     "company-1",
		Name:           "Three steps",
		LifecycleState: state,
		TriggerKind:    models.TriggerKindManual,
		Actions: []models.ActionStep{
			{Order: 3, ActionType: "third", Config: map[string]any{"name": "c"}},
			{Order: 1, ActionType: "first", Config: map[string]any{"name": "a"}},
			{Order: 2, ActionType: "second", Config: map[string]any{"name": "b"}},
		},
	}
}

func TestExecutor_RunsStepsInOrder(t *testing.T) {
	f := newFixture(t)
	f.save(t, threeStepWorkflow(models.LifecycleStateActive))

	summary, err := f.executor().ExecuteWorkflow(context.Background(), "wf-three", map[string]any{"amount": 10})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, summary.Status)
	assert.Empty(t, summary.Error)
	require.Len(t, summary.StepResults, 3)

	for i, result := range summary.StepResults {
		assert.Equal(t, i+1, result.Order)
		assert.False(t, result.Timestamp.IsZero())
	}

	assert.Equal(t, "first", summary.StepResults[0].ActionType)
	assert.Equal(t, models.ActionOutcome{"step": "a"}, summary.StepResults[0].Outcome)
	assert.Equal(t, "third", summary.StepResults[2].ActionType)

	stored, err := f.store.ExecutionRepository().GetExecution(context.Background(), summary.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	assert.NotNil(t, stored.FinishedAt)
	assert.Len(t, stored.StepResults, 3)
}

func TestExecutor_FailureStopsExecution(t *testing.T) {
	f := newFixture(t)

	workflow := threeStepWorkflow(models.LifecycleStateActive)
	workflow.Actions[2].Config["fail"] = true
	f.save(t, workflow)

	summary, err := f.executor().ExecuteWorkflow(context.Background(), workflow.ID, nil)
	require.NoError(t, err, "handler failures are reported through the status")

	assert.Equal(t, models.ExecutionStatusFailed, summary.Status)
	require.Len(t, summary.StepResults, 1)
	assert.Equal(t, 1, summary.StepResults[0].Order)
	assert.Contains(t, summary.Error, "step 2")
	assert.Contains(t, summary.Error, "collaborator unavailable")

	assert.Equal(t, 1, f.first.Calls())
	assert.Equal(t, 1, f.second.Calls())
	assert.Equal(t, 0, f.third.Calls(), "steps after a failure never run")

	stored, err := f.executor().GetExecution(context.Background(), summary.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
	assert.Equal(t, summary.Error, stored.Error)
}

func TestExecutor_ConditionFalseSkipsStep(t *testing.T) {
	f := newFixture(t)

	workflow := threeStepWorkflow(models.LifecycleStateActive)
	rule := models.Leaf("amount", "greater_than", 100)
	workflow.Actions[2].Conditions = &rule
	f.save(t, workflow)

	summary, err := f.executor().ExecuteWorkflow(context.Background(), workflow.ID, map[string]any{"amount": 50})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, summary.Status)
	require.Len(t, summary.StepResults, 2)
	assert.Equal(t, 1, summary.StepResults[0].Order)
	assert.Equal(t, 3, summary.StepResults[1].Order)
	assert.Equal(t, 0, f.second.Calls())

	summary, err = f.executor().ExecuteWorkflow(context.Background(), workflow.ID, map[string]any{"amount": 150})
	require.NoError(t, err)
	assert.Len(t, summary.StepResults, 3)
	assert.Equal(t, 1, f.second.Calls())
}

func TestExecutor_EmptyConditionGroups(t *testing.T) {
	f := newFixture(t)

	workflow := threeStepWorkflow(models.LifecycleStateActive)
	and := models.And()
	or := models.Or()
	workflow.Actions[1].Conditions = &and
	workflow.Actions[2].Conditions = &or
	f.save(t, workflow)

	summary, err := f.executor().ExecuteWorkflow(context.Background(), workflow.ID, nil)
	require.NoError(t, err)

	require.Len(t, summary.StepResults, 2)
	assert.Equal(t, 1, summary.StepResults[0].Order)
	assert.Equal(t, 3, summary.StepResults[1].Order)
}

func TestExecutor_NoStepsCompletes(t *testing.T) {
	f := newFixture(t)

	workflow := threeStepWorkflow(models.LifecycleStateActive)
	workflow.Actions = nil
	f.save(t, workflow)

	summary, err := f.executor().ExecuteWorkflow(context.Background(), workflow.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, summary.Status)
	assert.NotNil(t, summary.StepResults)
	assert.Empty(t, summary.StepResults)
}

func TestExecutor_Preconditions(t *testing.T) {
	tests := []struct {
		name     string
		workflow *models.Workflow
		id       string
		target   error
	}{
		{
			name:     "draft",
			workflow: threeStepWorkflow(models.LifecycleStateDraft),
			id:       "wf-three",
			target:   ErrWorkflowNotActive,
		},
		{
			name:     "inactive",
			workflow: threeStepWorkflow(models.LifecycleStateInactive),
			id:       "wf-three",
			target:   ErrWorkflowNotActive,
		},
		{
			name: "unknown action type",
			workflow: func() *models.Workflow {
				w := threeStepWorkflow(models.LifecycleStateActive)
				w.Actions[0].ActionType = "send_fax"

				return w
			}(),
			id:     "wf-three",
			target: registry.ErrUnknownAction,
		},
		{
			name:   "missing workflow",
			id:     "wf-missing",
			target: persistence.ErrWorkflowNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workflows := &mocks.MockWorkflowRepository{}
			executions := &mocks.MockExecutionRepository{}

			if tt.workflow != nil {
				workflows.On("GetByID", mock.Anything, tt.id).Return(tt.workflow, nil)
			} else {
				workflows.On("GetByID", mock.Anything, tt.id).
					Return(nil, persistence.NewWorkflowError("get", tt.id, persistence.ErrWorkflowNotFound))
			}

			f := newFixture(t)
			executor := NewExecutor(workflows, executions, f.registry, testLogger())

			summary, err := executor.ExecuteWorkflow(context.Background(), tt.id, map[string]any{})
			require.Error(t, err)
			assert.Nil(t, summary)
			assert.True(t, IsPrecondition(err))
			assert.ErrorIs(t, err, tt.target)

			executions.AssertNotCalled(t, "CreateExecution", mock.Anything, mock.Anything)
			assert.Equal(t, 0, f.first.Calls()+f.second.Calls()+f.third.Calls())
		})
	}
}

func TestExecutor_StorageErrorsAreReturned(t *testing.T) {
	f := newFixture(t)
	workflow := threeStepWorkflow(models.LifecycleStateActive)

	t.Run("load", func(t *testing.T) {
		workflows := &mocks.MockWorkflowRepository{}
		workflows.On("GetByID", mock.Anything, workflow.ID).Return(nil, errors.New("disk gone"))

		executor := NewExecutor(workflows, &mocks.MockExecutionRepository{}, f.registry, testLogger())

		_, err := executor.ExecuteWorkflow(context.Background(), workflow.ID, nil)
		require.Error(t, err)
		assert.False(t, IsPrecondition(err))
	})

	t.Run("create", func(t *testing.T) {
		workflows := &mocks.MockWorkflowRepository{}
		workflows.On("GetByID", mock.Anything, workflow.ID).Return(workflow, nil)

		executions := &mocks.MockExecutionRepository{}
		executions.On("CreateExecution", mock.Anything, mock.Anything).Return(errors.New("ledger down"))

		executor := NewExecutor(workflows, executions, f.registry, testLogger())

		_, err := executor.ExecuteWorkflow(context.Background(), workflow.ID, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ledger down")
		assert.Equal(t, 0, f.first.Calls())
		executions.AssertNotCalled(t, "FinishExecution", mock.Anything, mock.Anything)
	})

	t.Run("finish", func(t *testing.T) {
		workflows := &mocks.MockWorkflowRepository{}
		workflows.On("GetByID", mock.Anything, workflow.ID).Return(workflow, nil)

		executions := &mocks.MockExecutionRepository{}
		executions.On("CreateExecution", mock.Anything, mock.Anything).Return(nil)
		executions.On("FinishExecution", mock.Anything, mock.Anything).
			Return(persistence.NewExecutionError("finish", "exec-1", persistence.ErrExecutionFinalized))

		executor := NewExecutor(workflows, executions, f.registry, testLogger())

		_, err := executor.ExecuteWorkflow(context.Background(), workflow.ID, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, persistence.ErrExecutionFinalized)
	})
}

func TestExecutor_TriggerContextIsCopied(t *testing.T) {
	f := newFixture(t)
	f.save(t, threeStepWorkflow(models.LifecycleStateActive))

	trigger := map[string]any{
		"tenant": map[string]any{"name": "Ana"},
		"tags":   []any{"vip"},
	}

	summary, err := f.executor().ExecuteWorkflow(context.Background(), "wf-three", trigger)
	require.NoError(t, err)

	trigger["tenant"].(map[string]any)["name"] = "Changed"
	trigger["tags"].([]any)[0] = "changed"

	stored, err := f.executor().GetExecution(context.Background(), summary.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", stored.TriggerContext["tenant"].(map[string]any)["name"])

	copied := copyContext(map[string]any{"tenant": map[string]any{"name": "Ana"}, "tags": []any{"vip"}})
	original := map[string]any{"tenant": map[string]any{"name": "Ana"}, "tags": []any{"vip"}}
	assert.Equal(t, original, copied)
	assert.Equal(t, map[string]any{}, copyContext(nil))
}

func TestExecutor_GetExecutionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.save(t, threeStepWorkflow(models.LifecycleStateActive))

	executor := f.executor()

	summary, err := executor.ExecuteWorkflow(context.Background(), "wf-three", map[string]any{"amount": 1})
	require.NoError(t, err)

	first, err := executor.GetExecution(context.Background(), summary.ExecutionID)
	require.NoError(t, err)

	second, err := executor.GetExecution(context.Background(), summary.ExecutionID)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)

	assert.JSONEq(t, string(firstJSON), string(secondJSON))

	_, err = executor.GetExecution(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}

func TestExecutor_ListExecutions(t *testing.T) {
	f := newFixture(t)
	f.save(t, threeStepWorkflow(models.LifecycleStateActive))

	tick := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	executor := f.executor(WithClock(func() time.Time {
		tick = tick.Add(time.Second)

		return tick
	}))

	var ids []string

	for range 3 {
		summary, err := executor.ExecuteWorkflow(context.Background(), "wf-three", nil)
		require.NoError(t, err)

		ids = append(ids, summary.ExecutionID)
	}

	listed, err := executor.ListExecutions(context.Background(), "wf-three")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, ids[2], listed[0].ID)
	assert.Equal(t, ids[0], listed[2].ID)
}

func TestExecutor_PaymentReminderScenario(t *testing.T) {
	newWorkflow := func() *models.Workflow {
		lateRule := models.And(
			models.Leaf("payment.days_late", "greater_than", 5),
			models.Leaf("tenant.name", "contains", "García"),
		)

		return &models.Workflow{
			ID:             "wf-late-rent",
			OwnerScope:     "company-1",
			Name:           "Late rent follow up",
			LifecycleState: models.LifecycleStateActive,
			TriggerKind:    models.TriggerKindEvent,
			TriggerConfig:  map[string]any{"event": "payment.overdue"},
			Actions: []models.ActionStep{
				{
					Order:      1,
					ActionType: notification.ActionType,
					Config: map[string]any{
						"target": "{{tenant.user_id}}",
						"titulo": "Pago de {{tenant.name}}",
						"body":   "Vence el {{payment.due}}",
					},
				},
				{
					Order:      2,
					ActionType: task.ActionType,
					Config: map[string]any{
						"title":       "Llamar a {{tenant.name}}",
						"due_in_days": 2,
					},
					Conditions: &lateRule,
				},
			},
		}
	}

	trigger := map[string]any{
		"tenant":  map[string]any{"name": "Ana García", "user_id": "user-42"},
		"payment": map[string]any{"days_late": 12, "due": "2024-05-01"},
	}

	t.Run("completed", func(t *testing.T) {
		f := newFixture(t)

		sink := &mocks.MockNotificationSink{}
		sink.On("CreateNotification", mock.Anything, protocol.Notification{
			Target:   "user-42",
			Title:    "Pago de Ana García",
			Body:     "Vence el 2024-05-01",
			Priority: protocol.PriorityNormal,
		}).Return("notif-1", nil).Once()

		tasks := &mocks.MockTaskStore{}
		tasks.On("CreateTask", mock.Anything, mock.MatchedBy(func(task protocol.Task) bool {
			return task.Title == "Llamar a Ana García" && task.DueDate != nil
		})).Return("task-1", nil).Once()

		f.registry.RegisterAction(notification.NewActionFactory(sink))
		f.registry.RegisterAction(task.NewActionFactory(tasks))
		f.save(t, newWorkflow())

		summary, err := f.executor().ExecuteWorkflow(context.Background(), "wf-late-rent", trigger)
		require.NoError(t, err)

		assert.Equal(t, models.ExecutionStatusCompleted, summary.Status)
		require.Len(t, summary.StepResults, 2)
		assert.Equal(t, "Pago de Ana García", summary.StepResults[0].Outcome["title"])
		assert.Equal(t, "notif-1", summary.StepResults[0].Outcome["notification_id"])
		assert.Equal(t, "task-1", summary.StepResults[1].Outcome["task_id"])

		sink.AssertExpectations(t)
		tasks.AssertExpectations(t)
	})

	t.Run("task store failure", func(t *testing.T) {
		f := newFixture(t)

		sink := &mocks.MockNotificationSink{}
		sink.On("CreateNotification", mock.Anything, mock.Anything).Return("notif-1", nil).Once()

		tasks := &mocks.MockTaskStore{}
		tasks.On("CreateTask", mock.Anything, mock.Anything).Return("", errors.New("tasks service down")).Once()

		f.registry.RegisterAction(notification.NewActionFactory(sink))
		f.registry.RegisterAction(task.NewActionFactory(tasks))
		f.save(t, newWorkflow())

		summary, err := f.executor().ExecuteWorkflow(context.Background(), "wf-late-rent", trigger)
		require.NoError(t, err)

		assert.Equal(t, models.ExecutionStatusFailed, summary.Status)
		require.Len(t, summary.StepResults, 1)
		assert.Equal(t, notification.ActionType, summary.StepResults[0].ActionType)
		assert.Contains(t, summary.Error, "tasks service down")
	})

	t.Run("notification failure", func(t *testing.T) {
		f := newFixture(t)

		sink := &mocks.MockNotificationSink{}
		sink.On("CreateNotification", mock.Anything, mock.Anything).Return("", errors.New("inbox unavailable")).Once()

		tasks := &mocks.MockTaskStore{}

		f.registry.RegisterAction(notification.NewActionFactory(sink))
		f.registry.RegisterAction(task.NewActionFactory(tasks))
		f.save(t, newWorkflow())

		summary, err := f.executor().ExecuteWorkflow(context.Background(), "wf-late-rent", trigger)
		require.NoError(t, err)

		assert.Equal(t, models.ExecutionStatusFailed, summary.Status)
		assert.NotEmpty(t, summary.Error)
		assert.Contains(t, summary.Error, "inbox unavailable")
		assert.Empty(t, summary.StepResults)

		sink.AssertExpectations(t)
		tasks.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
	})
}

func TestExecutor_PublishesLifecycleEvents(t *testing.T) {
	f := newFixture(t)

	workflow := threeStepWorkflow(models.LifecycleStateActive)
	workflow.Actions[2].Config["fail"] = true
	f.save(t, workflow)

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, workflow.ID, mock.Anything).Return(nil)

	sequence := 0
	executor := f.executor(
		WithEventPublisher(bus),
		WithIDGenerator(func() string {
			sequence++

			return fmt.Sprintf("id-%d", sequence)
		}),
	)

	summary, err := executor.ExecuteWorkflow(context.Background(), workflow.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "id-1", summary.ExecutionID)

	assert.Equal(t, []events.EventType{
		events.WorkflowExecutionStartedEvent,
		events.StepCompletedEvent,
		events.WorkflowExecutionFailedEvent,
	}, bus.PublishedTypes())

	failed, ok := bus.Published()[2].(*events.WorkflowExecutionFailed)
	require.True(t, ok)
	assert.Equal(t, "id-1", failed.ExecutionID)
	assert.Equal(t, 2, failed.FailedOrder)
	assert.Equal(t, "second", failed.ActionType)
	assert.Len(t, failed.StepResults, 1)
}

func TestExecutor_PublishFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture(t)
	f.save(t, threeStepWorkflow(models.LifecycleStateActive))

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	summary, err := f.executor(WithEventPublisher(bus)).ExecuteWorkflow(context.Background(), "wf-three", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, summary.Status)
	assert.Len(t, summary.StepResults, 3)
	bus.AssertNumberOfCalls(t, "Publish", 5)
}

func TestExecutor_ConcurrentExecutions(t *testing.T) {
	f := newFixture(t)
	f.save(t, threeStepWorkflow(models.LifecycleStateActive))

	executor := f.executor()

	var wg sync.WaitGroup

	results := make([]*models.ExecutionSummary, 8)

	for i := range results {
		wg.Add(1)

		go func() {
			defer wg.Done()

			summary, err := executor.ExecuteWorkflow(context.Background(), "wf-three", map[string]any{"n": i})
			assert.NoError(t, err)

			results[i] = summary
		}()
	}

	wg.Wait()

	seen := map[string]bool{}

	for _, summary := range results {
		require.NotNil(t, summary)
		assert.Equal(t, models.ExecutionStatusCompleted, summary.Status)
		assert.False(t, seen[summary.ExecutionID], "execution ids are unique")

		seen[summary.ExecutionID] = true
	}

	assert.Equal(t, 8, f.first.Calls())
}
