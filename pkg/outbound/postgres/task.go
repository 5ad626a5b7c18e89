package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/rentflow/pkg/protocol"
)

// TaskStore implements protocol.TaskStore on the tasks table.
type TaskStore struct {
	db     *sql.DB
	logger *slog.Logger
	clock
}

func NewTaskStore(db *sql.DB, logger *slog.Logger) *TaskStore {
	return &TaskStore{db: db, logger: logger, clock: defaultClock()}
}

func (s *TaskStore) CreateTask(ctx context.Context, task protocol.Task) (string, error) {
	id := s.newID()

	query := `
		INSERT INTO tasks (id, title, description, assignee, due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		id,
		task.Title,
		task.Description,
		task.Assignee,
		nullableTime(task.DueDate),
		s.now().UTC(),
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to insert task", "error", err)

		return "", fmt.Errorf("failed to insert task: %w", err)
	}

	return id, nil
}
