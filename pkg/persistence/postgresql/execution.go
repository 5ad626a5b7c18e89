package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/persistence"
	"github.com/lib/pq"
)

const executionColumns = `
	id
  , workflow_id
  , status
  , started_at
  , finished_at
  , trigger_context
  , step_results
  , error`

// unique_violation
const uniqueViolation = "23505"

// ExecutionRepository stores execution records in workflow_executions.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

func (r *ExecutionRepository) CreateExecution(ctx context.Context, execution *models.Execution) error {
	triggerContext, stepResults, err := marshalExecution(execution)
	if err != nil {
		return persistence.NewExecutionError("CreateExecution", execution.ID, err)
	}

	query := `
		INSERT INTO workflow_executions (id, workflow_id, status, started_at, finished_at,
			trigger_context, step_results, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		string(execution.Status),
		execution.StartedAt,
		execution.FinishedAt,
		triggerContext,
		stepResults,
		execution.Error,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewExecutionError("CreateExecution", execution.ID, persistence.ErrExecutionExists)
		}

		return persistence.NewExecutionError("CreateExecution", execution.ID, err)
	}

	return nil
}

// FinishExecution only updates rows still in running; a second terminal write
// reports ErrExecutionFinalized.
func (r *ExecutionRepository) FinishExecution(ctx context.Context, execution *models.Execution) error {
	if !execution.Status.IsTerminal() {
		return persistence.NewExecutionError("FinishExecution", execution.ID,
			fmt.Errorf("status %q is not terminal", execution.Status))
	}

	_, stepResults, err := marshalExecution(execution)
	if err != nil {
		return persistence.NewExecutionError("FinishExecution", execution.ID, err)
	}

	query := `
		UPDATE workflow_executions
		SET status = $2, finished_at = $3, step_results = $4, error = $5
		WHERE id = $1 AND status = 'running'
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		string(execution.Status),
		execution.FinishedAt,
		stepResults,
		execution.Error,
	)
	if err != nil {
		return persistence.NewExecutionError("FinishExecution", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("FinishExecution", execution.ID, err)
	}

	if affected > 0 {
		return nil
	}

	var exists bool

	err = r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM workflow_executions WHERE id = $1)", execution.ID).Scan(&exists)
	if err != nil {
		return persistence.NewExecutionError("FinishExecution", execution.ID, err)
	}

	if !exists {
		return persistence.NewExecutionError("FinishExecution", execution.ID, persistence.ErrExecutionNotFound)
	}

	return persistence.NewExecutionError("FinishExecution", execution.ID, persistence.ErrExecutionFinalized)
}

func (r *ExecutionRepository) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT` + executionColumns + `
		FROM workflow_executions
		WHERE id = $1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetExecution", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetExecution", id, fmt.Errorf("failed to scan execution: %w", err))
	}

	return execution, nil
}

func (r *ExecutionRepository) ListExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	query := `SELECT` + executionColumns + `
		FROM workflow_executions
		WHERE workflow_id = $1
		ORDER BY started_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func marshalExecution(execution *models.Execution) ([]byte, []byte, error) {
	triggerContext := execution.TriggerContext
	if triggerContext == nil {
		triggerContext = map[string]any{}
	}

	stepResults := execution.StepResults
	if stepResults == nil {
		stepResults = []models.StepResult{}
	}

	contextJSON, err := json.Marshal(triggerContext)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal trigger context: %w", err)
	}

	resultsJSON, err := json.Marshal(stepResults)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal step results: %w", err)
	}

	return contextJSON, resultsJSON, nil
}

func scanExecution(row scanner) (*models.Execution, error) {
	var (
		execution      models.Execution
		status         string
		finishedAt     sql.NullTime
		triggerContext []byte
		stepResults    []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&status,
		&execution.StartedAt,
		&finishedAt,
		&triggerContext,
		&stepResults,
		&execution.Error,
	)
	if err != nil {
		return nil, err
	}

	execution.Status = models.ExecutionStatus(status)

	if finishedAt.Valid {
		execution.FinishedAt = &finishedAt.Time
	}

	err = json.Unmarshal(triggerContext, &execution.TriggerContext)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger context: %w", err)
	}

	err = json.Unmarshal(stepResults, &execution.StepResults)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal step results: %w", err)
	}

	return &execution, nil
}
