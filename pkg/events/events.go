// Package events defines the messages exchanged over the event bus: execution
// lifecycle notifications, event-trigger invocations and mail requests.
package events

import (
	"time"

	"github.com/dukex/rentflow/pkg/models"
)

type EventType string

// Topics.
const (
	Topic     = "rentflow.events"
	MailTopic = "rentflow.mail"
)

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow execution lifecycle events.
	WorkflowExecutionStartedEvent   EventType = "workflow.execution.started"
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"
	StepCompletedEvent              EventType = "step.completed"

	// Inbound invocation of event-triggered workflows.
	WorkflowTriggerRequestedEvent EventType = "workflow.trigger.requested"

	// Outbound mail hand-off.
	MailRequestedEvent EventType = "mail.requested"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id,omitempty"`
}

// NewBaseEvent stamps an event of eventType with the current time.
func NewBaseEvent(id string, eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         id,
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

type WorkflowExecutionStarted struct {
	BaseEvent

	ExecutionID    string         `json:"execution_id"`
	TriggerContext map[string]any `json:"trigger_context,omitempty"`
}

func (WorkflowExecutionStarted) GetType() EventType {
	return WorkflowExecutionStartedEvent
}

type WorkflowExecutionCompleted struct {
	BaseEvent

	ExecutionID string              `json:"execution_id"`
	StepResults []models.StepResult `json:"step_results"`
	Duration    time.Duration       `json:"duration"`
}

func (WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	ExecutionID string              `json:"execution_id"`
	StepResults []models.StepResult `json:"step_results"`
	FailedOrder int                 `json:"failed_order"`
	ActionType  string              `json:"action_type"`
	Error       string              `json:"error"`
	Duration    time.Duration       `json:"duration"`
}

func (WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}

type StepCompleted struct {
	BaseEvent

	ExecutionID string            `json:"execution_id"`
	Step        models.StepResult `json:"step"`
}

func (StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

// WorkflowTriggerRequested asks the worker to run every event-triggered
// workflow subscribed to Event, or only WorkflowID when it is set.
type WorkflowTriggerRequested struct {
	BaseEvent

	Event          string         `json:"event"`
	OwnerScope     string         `json:"owner_scope,omitempty"`
	TriggerContext map[string]any `json:"trigger_context"`
}

func (WorkflowTriggerRequested) GetType() EventType {
	return WorkflowTriggerRequestedEvent
}

type MailRequested struct {
	BaseEvent

	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (MailRequested) GetType() EventType {
	return MailRequestedEvent
}

// New returns an empty event for eventType, ready to be decoded into.
func New(eventType EventType) (any, bool) {
	switch eventType {
	case WorkflowExecutionStartedEvent:
		return &WorkflowExecutionStarted{}, true
	case WorkflowExecutionCompletedEvent:
		return &WorkflowExecutionCompleted{}, true
	case WorkflowExecutionFailedEvent:
		return &WorkflowExecutionFailed{}, true
	case StepCompletedEvent:
		return &StepCompleted{}, true
	case WorkflowTriggerRequestedEvent:
		return &WorkflowTriggerRequested{}, true
	case MailRequestedEvent:
		return &MailRequested{}, true
	default:
		return nil, false
	}
}
