package task

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/rentflow/pkg/mocks"
	"github.com/dukex/rentflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func date(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

	return &d
}

func TestActionFactory(t *testing.T) {
	factory := NewActionFactory(&mocks.MockTaskStore{})

	assert.Equal(t, "create_task", factory.ID())
	assert.Contains(t, factory.Schema()["properties"], "due_in_days")

	action, err := factory.Create(map[string]any{"titulo": "Revisar contrato"})
	require.NoError(t, err)
	assert.IsType(t, &Action{}, action)

	_, err = factory.Create(map[string]any{"description": "no title"})
	assert.Error(t, err)
}

func TestNewAction_Validation(t *testing.T) {
	store := &mocks.MockTaskStore{}

	_, err := NewAction(map[string]any{"title": "x", "due_in_days": -1}, store)
	assert.Error(t, err)

	_, err = NewAction(map[string]any{"title": "x", "due_in_days": "three"}, store)
	assert.Error(t, err)

	_, err = NewAction(map[string]any{"title": "x"}, nil)
	assert.Error(t, err)
}

func TestAction_Execute(t *testing.T) {
	data := map[string]any{
		"tenant":   map[string]any{"name": "Ana García"},
		"building": map[string]any{"manager_id": "mgr-7"},
		"lease":    map[string]any{"end_date": "2024-06-30"},
	}

	tests := []struct {
		name     string
		config   map[string]any
		expected protocol.Task
	}{
		{
			name: "rendered fields with date only due date",
			config: map[string]any{
				"titulo":      "Llamar a {{tenant.name}}",
				"descripcion": "Contrato vence {{lease.end_date}}",
				"assignee":    "{{building.manager_id}}",
				"due_date":    "{{lease.end_date}}",
			},
			expected: protocol.Task{
				Title:       "Llamar a Ana García",
				Description: "Contrato vence 2024-06-30",
				Assignee:    "mgr-7",
				DueDate:     date(2024, time.June, 30),
			},
		},
		{
			name:   "rfc3339 due date is normalized to utc",
			config: map[string]any{"title": "x", "due_date": "2024-03-01T09:00:00-03:00"},
			expected: protocol.Task{
				Title: "x",
				DueDate: func() *time.Time {
					d := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

					return &d
				}(),
			},
		},
		{
			name:     "relative due date",
			config:   map[string]any{"title": "x", "due_in_days": 3},
			expected: protocol.Task{Title: "x", DueDate: date(2024, time.January, 13)},
		},
		{
			name:     "no due date",
			config:   map[string]any{"title": "x"},
			expected: protocol.Task{Title: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mocks.MockTaskStore{}
			store.On("CreateTask", mock.Anything, tt.expected).Return("task-1", nil).Once()

			action, err := NewAction(tt.config, store)
			require.NoError(t, err)

			action.now = func() time.Time { return time.Date(2024, time.January, 10, 18, 45, 0, 0, time.UTC) }

			outcome, err := action.Execute(context.Background(), data, testLogger())
			require.NoError(t, err)

			assert.Equal(t, "task-1", outcome["task_id"])
			assert.Equal(t, tt.expected.Title, outcome["title"])
			store.AssertExpectations(t)
		})
	}
}

func TestAction_Execute_Errors(t *testing.T) {
	t.Run("unparseable due date", func(t *testing.T) {
		store := &mocks.MockTaskStore{}

		action, err := NewAction(map[string]any{"title": "x", "due_date": "{{lease.end_date}}"}, store)
		require.NoError(t, err)

		_, err = action.Execute(context.Background(), map[string]any{}, testLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "due_date")
		store.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		store := &mocks.MockTaskStore{}
		store.On("CreateTask", mock.Anything, mock.Anything).Return("", errors.New("db down"))

		action, err := NewAction(map[string]any{"title": "x"}, store)
		require.NoError(t, err)

		_, err = action.Execute(context.Background(), nil, testLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})
}
