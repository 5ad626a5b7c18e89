package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAction indicates no factory is registered for an action type.
	ErrUnknownAction = errors.New("action type not registered")

	// ErrInvalidConfig indicates an action config failed schema or typed validation.
	ErrInvalidConfig = errors.New("invalid action config")
)

// ActionError wraps a failure to build or run an action with its type.
type ActionError struct {
	ActionType string
	Err        error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s: %v", e.ActionType, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// IsUnknownAction checks if an error indicates an unregistered action type.
func IsUnknownAction(err error) bool {
	return errors.Is(err, ErrUnknownAction)
}
