package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/persistence"
)

const executionsDir = "executions"

// ExecutionRepository stores execution records as JSON files.
type ExecutionRepository struct {
	root string
	mu   sync.RWMutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) CreateExecution(_ context.Context, execution *models.Execution) error {
	path, err := recordPath(er.root, executionsDir, execution.ID)
	if err != nil {
		return persistence.NewExecutionError("CreateExecution", execution.ID, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return persistence.NewExecutionError("CreateExecution", execution.ID, persistence.ErrExecutionExists)
	}

	err = writeJSON(path, execution)
	if err != nil {
		return persistence.NewExecutionError("CreateExecution", execution.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) FinishExecution(_ context.Context, execution *models.Execution) error {
	path, err := recordPath(er.root, executionsDir, execution.ID)
	if err != nil {
		return persistence.NewExecutionError("FinishExecution", execution.ID, err)
	}

	if !execution.Status.IsTerminal() {
		return persistence.NewExecutionError("FinishExecution", execution.ID,
			fmt.Errorf("status %q is not terminal", execution.Status))
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	var stored models.Execution

	found, err := readJSON(path, &stored)
	if err != nil {
		return persistence.NewExecutionError("FinishExecution", execution.ID, err)
	}

	if !found {
		return persistence.NewExecutionError("FinishExecution", execution.ID, persistence.ErrExecutionNotFound)
	}

	if stored.Status.IsTerminal() {
		return persistence.NewExecutionError("FinishExecution", execution.ID, persistence.ErrExecutionFinalized)
	}

	stored.Status = execution.Status
	stored.FinishedAt = execution.FinishedAt
	stored.StepResults = execution.StepResults
	stored.Error = execution.Error

	err = writeJSON(path, &stored)
	if err != nil {
		return persistence.NewExecutionError("FinishExecution", execution.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) GetExecution(_ context.Context, id string) (*models.Execution, error) {
	path, err := recordPath(er.root, executionsDir, id)
	if err != nil {
		return nil, persistence.NewExecutionError("GetExecution", id, err)
	}

	er.mu.RLock()
	defer er.mu.RUnlock()

	var execution models.Execution

	found, err := readJSON(path, &execution)
	if err != nil {
		return nil, persistence.NewExecutionError("GetExecution", id, err)
	}

	if !found {
		return nil, persistence.NewExecutionError("GetExecution", id, persistence.ErrExecutionNotFound)
	}

	return &execution, nil
}

func (er *ExecutionRepository) ListExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	er.mu.RLock()
	files, err := fs.Glob(os.DirFS(filepath.Join(er.root, executionsDir)), "*.json")
	er.mu.RUnlock()

	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.Execution, 0)

	for _, file := range files {
		execution, err := er.GetExecution(ctx, strings.TrimSuffix(file, ".json"))
		if err != nil {
			if errors.Is(err, persistence.ErrExecutionNotFound) {
				continue
			}

			return nil, err
		}

		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	slices.SortFunc(executions, func(a, b *models.Execution) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}

		return strings.Compare(b.ID, a.ID)
	})

	return executions, nil
}
