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
	"time"

	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/persistence"
	"github.com/google/uuid"
)

const workflowsDir = "workflows"

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	root string
	mu   sync.RWMutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	path, err := recordPath(wr.root, workflowsDir, id)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	wr.mu.RLock()
	defer wr.mu.RUnlock()

	var workflow models.Workflow

	found, err := readJSON(path, &workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

// List returns the filtered page of workflows, newest first.
func (wr *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	opts = opts.Normalize()

	all, err := wr.all(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Workflow, 0, len(all))

	for _, workflow := range all {
		if opts.Matches(workflow) {
			filtered = append(filtered, workflow)
		}
	}

	slices.SortFunc(filtered, func(a, b *models.Workflow) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	result := &persistence.WorkflowListResult{
		Workflows:  make([]*models.Workflow, 0),
		TotalCount: int64(len(filtered)),
	}

	if opts.Offset >= len(filtered) {
		return result, nil
	}

	end := min(opts.Offset+opts.Limit, len(filtered))
	result.Workflows = filtered[opts.Offset:end]
	result.HasNextPage = end < len(filtered)

	return result, nil
}

func (wr *WorkflowRepository) all(ctx context.Context) ([]*models.Workflow, error) {
	wr.mu.RLock()
	files, err := fs.Glob(os.DirFS(filepath.Join(wr.root, workflowsDir)), "*.json")
	wr.mu.RUnlock()

	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(files))

	for _, file := range files {
		workflow, err := wr.GetByID(ctx, strings.TrimSuffix(file, ".json"))
		if err != nil {
			// deleted between glob and read
			if errors.Is(err, persistence.ErrWorkflowNotFound) {
				continue
			}

			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	path, err := recordPath(wr.root, workflowsDir, workflow.ID)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	wr.mu.Lock()
	defer wr.mu.Unlock()

	err = writeJSON(path, workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	path, err := recordPath(wr.root, workflowsDir, id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	err = os.Remove(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}
