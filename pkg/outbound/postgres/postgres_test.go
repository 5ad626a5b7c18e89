package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dukex/rentflow/pkg/config"
	"github.com/dukex/rentflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func fixedClock(id string) clock {
	return clock{
		now:   func() time.Time { return fixedNow },
		newID: func() string { return id },
	}
}

func setupMock(t *testing.T) (sqlmock.Sqlmock, *TaskStore, *IncidentStore, *RecordStore) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	allowList := config.RecordAllowList{
		"lease": {Table: "leases", Fields: []string{"status", "notes"}},
		"unit":  {Table: "inventory.units", Key: "unit_code", Fields: []string{"occupancy"}},
	}

	tasks := NewTaskStore(db, logger)
	tasks.clock = fixedClock("task-1")

	incidents := NewIncidentStore(db, logger)
	incidents.clock = fixedClock("incident-1")

	return mock, tasks, incidents, NewRecordStore(db, logger, allowList)
}

func TestNewStores_RunsMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS " + MigrationsTable)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM " + MigrationsTable)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(2))

	stores, err := NewStores(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), db, config.RecordAllowList{})
	require.NoError(t, err)
	assert.NotNil(t, stores.Tasks)
	assert.NotNil(t, stores.Incidents)
	assert.NotNil(t, stores.Records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_CreateTask(t *testing.T) {
	mock, tasks, _, _ := setupMock(t)
	due := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).
		WithArgs("task-1", "Llamar a Ana", "", "staff-7", due, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := tasks.CreateTask(context.Background(), protocol.Task{
		Title:    "Llamar a Ana",
		Assignee: "staff-7",
		DueDate:  &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).
		WithArgs("task-1", "Revisar", "", "", nil, fixedNow).
		WillReturnError(errors.New("connection reset"))

	_, err = tasks.CreateTask(context.Background(), protocol.Task{Title: "Revisar"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert task")
}

func TestIncidentStore_CreateIncident(t *testing.T) {
	mock, _, incidents, _ := setupMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO incidents")).
		WithArgs("incident-1", "unit", "4B", "Fuga de agua", "", "high", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := incidents.CreateIncident(context.Background(), protocol.Incident{
		Scope:    protocol.IncidentScope{Type: protocol.ScopeUnit, ID: "4B"},
		Title:    "Fuga de agua",
		Severity: protocol.SeverityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, "incident-1", id)
}

func TestRecordStore_UpdateField(t *testing.T) {
	mock, _, _, records := setupMock(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "leases" SET "status" = $1 WHERE "id" = $2`)).
		WithArgs("late", "lease-9").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := records.UpdateField(ctx, protocol.RecordUpdate{
		EntityType: "lease", EntityID: "lease-9", Field: "status", Value: "late",
	})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "inventory"."units" SET "occupancy" = $1 WHERE "unit_code" = $2`)).
		WithArgs(`{"tenants":2}`, "4B").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = records.UpdateField(ctx, protocol.RecordUpdate{
		EntityType: "unit", EntityID: "4B", Field: "occupancy", Value: map[string]any{"tenants": 2},
	})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "leases" SET "notes" = $1`)).
		WithArgs(nil, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = records.UpdateField(ctx, protocol.RecordUpdate{
		EntityType: "lease", EntityID: "missing", Field: "notes",
	})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRecordStore_RejectsOutsideAllowList(t *testing.T) {
	_, _, _, records := setupMock(t)

	tests := []protocol.RecordUpdate{
		{EntityType: "lease", EntityID: "1", Field: "rent_amount", Value: 0},
		{EntityType: "tenant", EntityID: "1", Field: "status", Value: "x"},
		{EntityType: "lease", EntityID: "1", Field: `status" = 'x'; --`, Value: "x"},
	}

	for _, update := range tests {
		err := records.UpdateField(context.Background(), update)
		assert.ErrorIs(t, err, ErrRecordNotAllowed, "%s.%s", update.EntityType, update.Field)
	}
}
