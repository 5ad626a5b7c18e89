package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/rentflow/pkg/actions/notification"
	"github.com/dukex/rentflow/pkg/channels/gochannel"
	"github.com/dukex/rentflow/pkg/eventbus"
	"github.com/dukex/rentflow/pkg/events"
	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/outbound/memory"
	"github.com/dukex/rentflow/pkg/persistence/file"
	"github.com/dukex/rentflow/pkg/registry"
	"github.com/dukex/rentflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMatcher struct{ mock.Mock }

func (m *mockMatcher) MatchWorkflows(ctx context.Context, request *events.WorkflowTriggerRequested) ([]*models.Workflow, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

type mockRunner struct{ mock.Mock }

func (m *mockRunner) ExecuteWorkflow(ctx context.Context, workflowID string, triggerContext map[string]any) (*models.ExecutionSummary, error) {
	args := m.Called(ctx, workflowID, triggerContext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionSummary), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorker_RunsSubscribedWorkflows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	logger := testLogger()

	reg := registry.NewRegistry(logger)
	reg.RegisterAction(notification.NewActionFactory(memory.New(nil)))

	now := time.Now().UTC()
	err = store.WorkflowRepository().Save(ctx, &models.Workflow{
		ID:             "wf-overdue",
		OwnerScope:     "company-1",
		Name:           "Overdue payment",
		LifecycleState: models.LifecycleStateActive,
		TriggerKind:    models.TriggerKindEvent,
		TriggerConfig:  map[string]any{workflow.TriggerEventKey: "payment.overdue"},
		Actions: []models.ActionStep{
			{
				Order:      1,
				ActionType: notification.ActionType,
				Config:     map[string]any{"target": "{{tenant.user_id}}", "title": "Pago de {{tenant.name}}"},
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(logger, pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	executor := workflow.NewExecutor(store.WorkflowRepository(), store.ExecutionRepository(), reg, logger)
	worker := NewWorker("worker-test", bus, workflow.NewTriggerMatcher(store.WorkflowRepository(), logger), executor, logger)

	require.NoError(t, worker.Start(ctx))

	err = bus.Publish(ctx, "payment.overdue", events.WorkflowTriggerRequested{
		BaseEvent: events.NewBaseEvent(bus.GenerateID(), events.WorkflowTriggerRequestedEvent, ""),
		Event:     "payment.overdue",
		TriggerContext: map[string]any{
			"tenant": map[string]any{"user_id": "u-ana", "name": "Ana García"},
		},
	})
	require.NoError(t, err)

	var executions []*models.Execution

	require.Eventually(t, func() bool {
		executions, err = store.ExecutionRepository().ListExecutionsByWorkflow(ctx, "wf-overdue")

		return err == nil && len(executions) == 1 && executions[0].Status.IsTerminal()
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, models.ExecutionStatusCompleted, executions[0].Status)
	assert.Len(t, executions[0].StepResults, 1)
}

func TestWorker_HandleTriggerRequested(t *testing.T) {
	ctx := context.Background()

	request := &events.WorkflowTriggerRequested{Event: "lease.signed"}
	matches := []*models.Workflow{{ID: "wf-1"}, {ID: "wf-2"}, {ID: "wf-3"}}

	matcher := &mockMatcher{}
	matcher.On("MatchWorkflows", ctx, request).Return(matches, nil)

	runner := &mockRunner{}
	runner.On("ExecuteWorkflow", ctx, "wf-1", map[string]any{}).
		Return(nil, &workflow.PreconditionError{WorkflowID: "wf-1", Err: workflow.ErrWorkflowNotActive})
	runner.On("ExecuteWorkflow", ctx, "wf-2", map[string]any{}).
		Return(nil, errors.New("db down"))
	runner.On("ExecuteWorkflow", ctx, "wf-3", map[string]any{}).
		Return(&models.ExecutionSummary{ExecutionID: "ex-3", Status: models.ExecutionStatusCompleted}, nil)

	worker := NewWorker("worker-test", nil, matcher, runner, testLogger())

	err := worker.handleTriggerRequested(ctx, request)
	require.NoError(t, err, "execution errors are logged, not redelivered")
	runner.AssertNumberOfCalls(t, "ExecuteWorkflow", 3)
}

func TestWorker_HandleTriggerRequested_MatchError(t *testing.T) {
	ctx := context.Background()
	request := &events.WorkflowTriggerRequested{Event: "lease.signed"}

	matcher := &mockMatcher{}
	matcher.On("MatchWorkflows", ctx, request).Return(nil, errors.New("db down"))

	runner := &mockRunner{}

	worker := NewWorker("worker-test", nil, matcher, runner, testLogger())

	err := worker.handleTriggerRequested(ctx, request)
	require.Error(t, err)
	runner.AssertNotCalled(t, "ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, worker.handleTriggerRequested(ctx, "not an event"))
}
