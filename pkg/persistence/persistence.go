// Package persistence provides the storage abstraction for workflow
// definitions and their execution records.
package persistence

import (
	"context"

	"github.com/dukex/rentflow/pkg/models"
)

// Persistence bundles the repositories of one storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	// GetByID returns ErrWorkflowNotFound when no definition has the id.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	// Save inserts or replaces the definition, assigning ID and timestamps
	// when missing.
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository is the append-and-finish ledger of workflow executions.
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, execution *models.Execution) error
	// FinishExecution writes the terminal state of a running execution. It
	// returns ErrExecutionFinalized when the stored execution is already
	// terminal.
	FinishExecution(ctx context.Context, execution *models.Execution) error
	GetExecution(ctx context.Context, id string) (*models.Execution, error)
	// ListExecutionsByWorkflow returns executions newest first.
	ListExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListWorkflowsOptions filters and paginates workflow listings. Empty filters
// match everything.
type ListWorkflowsOptions struct {
	OwnerScope  string
	State       models.LifecycleState
	TriggerKind models.TriggerKind
	Limit       int
	Offset      int
}

// Normalize applies the default and maximum page size.
func (o ListWorkflowsOptions) Normalize() ListWorkflowsOptions {
	if o.Limit <= 0 || o.Limit > MaxListLimit {
		o.Limit = DefaultListLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	return o
}

// Matches reports whether workflow passes the filters.
func (o ListWorkflowsOptions) Matches(workflow *models.Workflow) bool {
	if o.OwnerScope != "" && workflow.OwnerScope != o.OwnerScope {
		return false
	}

	if o.State != "" && workflow.LifecycleState != o.State {
		return false
	}

	if o.TriggerKind != "" && workflow.TriggerKind != o.TriggerKind {
		return false
	}

	return true
}

// WorkflowListResult is one page of workflows.
type WorkflowListResult struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}
