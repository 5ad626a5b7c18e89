package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/persistence"
	"github.com/google/uuid"
)

const workflowColumns = `
	id
  , owner_scope
  , name
  , description
  , lifecycle_state
  , trigger_kind
  , trigger_config
  , actions
  , created_at
  , updated_at
  , activated_at`

const workflowFilter = `
	WHERE ($1 = '' OR owner_scope = $1)
	  AND ($2 = '' OR lifecycle_state = $2)
	  AND ($3 = '' OR trigger_kind = $3)`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT` + workflowColumns + `
		FROM workflows
		WHERE id = $1`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, fmt.Errorf("failed to scan workflow: %w", err))
	}

	return workflow, nil
}

// List returns the filtered page of workflows, newest first.
func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	opts = opts.Normalize()
	filterArgs := []any{opts.OwnerScope, string(opts.State), string(opts.TriggerKind)}

	var total int64

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflows`+workflowFilter, filterArgs...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	query := `SELECT` + workflowColumns + `
		FROM workflows` + workflowFilter + `
		ORDER BY created_at DESC, id
		LIMIT $4 OFFSET $5`

	rows, err := r.db.QueryContext(ctx, query, append(filterArgs, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  total,
		HasNextPage: int64(opts.Offset+len(workflows)) < total,
	}, nil
}

// Save upserts the workflow, assigning an ID and timestamps when missing.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	triggerConfigJSON, err := marshalNullable(workflow.TriggerConfig)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("failed to marshal trigger config: %w", err))
	}

	actions := workflow.Actions
	if actions == nil {
		actions = []models.ActionStep{}
	}

	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("failed to marshal actions: %w", err))
	}

	query := `
		INSERT INTO workflows (id, owner_scope, name, description, lifecycle_state, trigger_kind,
			trigger_config, actions, created_at, updated_at, activated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			owner_scope = EXCLUDED.owner_scope,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			lifecycle_state = EXCLUDED.lifecycle_state,
			trigger_kind = EXCLUDED.trigger_kind,
			trigger_config = EXCLUDED.trigger_config,
			actions = EXCLUDED.actions,
			updated_at = EXCLUDED.updated_at,
			activated_at = EXCLUDED.activated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.OwnerScope,
		workflow.Name,
		workflow.Description,
		string(workflow.LifecycleState),
		string(workflow.TriggerKind),
		triggerConfigJSON,
		actionsJSON,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.ActivatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow      models.Workflow
		state, kind   string
		triggerConfig []byte
		actions       []byte
		activatedAt   sql.NullTime
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.OwnerScope,
		&workflow.Name,
		&workflow.Description,
		&state,
		&kind,
		&triggerConfig,
		&actions,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&activatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.LifecycleState = models.LifecycleState(state)
	workflow.TriggerKind = models.TriggerKind(kind)

	if activatedAt.Valid {
		workflow.ActivatedAt = &activatedAt.Time
	}

	if len(triggerConfig) > 0 {
		err = json.Unmarshal(triggerConfig, &workflow.TriggerConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
		}
	}

	err = json.Unmarshal(actions, &workflow.Actions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}

	return &workflow, nil
}

// marshalNullable keeps a nil map as SQL NULL.
func marshalNullable(value map[string]any) (any, error) {
	if value == nil {
		return nil, nil
	}

	return json.Marshal(value)
}
