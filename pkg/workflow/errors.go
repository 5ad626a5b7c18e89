package workflow

import (
	"errors"
	"fmt"
)

// ErrWorkflowNotActive indicates an invocation of a draft or inactive workflow.
var ErrWorkflowNotActive = errors.New("workflow is not active")

// PreconditionError reports why an invocation was refused before any
// execution record was written.
type PreconditionError struct {
	WorkflowID string
	Err        error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("workflow %s cannot run: %v", e.WorkflowID, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// IsPrecondition checks if err refused an invocation up front.
func IsPrecondition(err error) bool {
	var target *PreconditionError

	return errors.As(err, &target)
}
