package models

import "time"

// ExecutionStatus defines the possible states of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from the status.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// ActionOutcome is the structured result an action returns on success.
type ActionOutcome map[string]any

// StepResult records one step that was dispatched during an execution.
type StepResult struct {
	Order      int           `json:"order"`
	ActionType string        `json:"action_type"`
	Outcome    ActionOutcome `json:"outcome,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Execution is the audit record of one run of a workflow against a trigger context.
type Execution struct {
	ID             string          `json:"id"`
	WorkflowID     string          `json:"workflow_id"`
	Status         ExecutionStatus `json:"status"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	TriggerContext map[string]any  `json:"trigger_context"`
	StepResults    []StepResult    `json:"step_results"`
	Error          string          `json:"error,omitempty"`
}

// ExecutionSummary is what ExecuteWorkflow hands back to invokers.
type ExecutionSummary struct {
	ExecutionID string          `json:"execution_id"`
	Status      ExecutionStatus `json:"status"`
	StepResults []StepResult    `json:"step_results"`
	Error       string          `json:"error,omitempty"`
}

// Summary projects the execution into the invoker-facing summary.
func (e *Execution) Summary() *ExecutionSummary {
	return &ExecutionSummary{
		ExecutionID: e.ID,
		Status:      e.Status,
		StepResults: e.StepResults,
		Error:       e.Error,
	}
}
