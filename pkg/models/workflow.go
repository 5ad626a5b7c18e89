// Package models defines the core domain models for rule-based workflow automation.
package models

import (
	"slices"
	"time"
)

// LifecycleState represents the lifecycle state of a workflow definition.
type LifecycleState string

const (
	LifecycleStateDraft    LifecycleState = "draft"    // Editable, not executable
	LifecycleStateActive   LifecycleState = "active"   // Executable
	LifecycleStateInactive LifecycleState = "inactive" // Switched off, not executable
)

// TriggerKind describes how invocations of a workflow are expected to originate.
// The engine records it but never schedules or listens on its own.
type TriggerKind string

const (
	TriggerKindManual    TriggerKind = "manual"
	TriggerKindEvent     TriggerKind = "event"
	TriggerKindScheduled TriggerKind = "scheduled"
	TriggerKindWebhook   TriggerKind = "webhook"
)

// Workflow is a declarative rule: an ordered list of action steps run when the
// workflow is invoked with a trigger context.
type Workflow struct {
	ID             string         `json:"id"`
	OwnerScope     string         `json:"owner_scope"              validate:"required"`
	Name           string         `json:"name"                     validate:"required,min=3"`
	Description    string         `json:"description"`
	LifecycleState LifecycleState `json:"lifecycle_state"          validate:"required,oneof=draft active inactive"`
	TriggerKind    TriggerKind    `json:"trigger_kind"             validate:"required,oneof=manual event scheduled webhook"`
	TriggerConfig  map[string]any `json:"trigger_config,omitempty"`
	Actions        []ActionStep   `json:"actions"                  validate:"dive"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ActivatedAt    *time.Time     `json:"activated_at,omitempty"`
}

// ActionStep is one ordered unit of work, gated by an optional condition tree.
type ActionStep struct {
	Order      int            `json:"order"                validate:"min=0"`
	ActionType string         `json:"action_type"          validate:"required"`
	Config     map[string]any `json:"config"`
	Conditions *Rule          `json:"conditions,omitempty"`
}

// IsActive reports whether the workflow may be executed.
func (w *Workflow) IsActive() bool {
	return w.LifecycleState == LifecycleStateActive
}

// OrderedActions returns a copy of the action steps sorted by ascending order.
// The workflow itself is left untouched.
func (w *Workflow) OrderedActions() []ActionStep {
	steps := slices.Clone(w.Actions)
	slices.SortStableFunc(steps, func(a, b ActionStep) int {
		return a.Order - b.Order
	})

	return steps
}

// DuplicateOrders returns every order value used by more than one step.
func (w *Workflow) DuplicateOrders() []int {
	seen := make(map[int]int, len(w.Actions))
	for _, step := range w.Actions {
		seen[step.Order]++
	}

	var duplicates []int

	for order, count := range seen {
		if count > 1 {
			duplicates = append(duplicates, order)
		}
	}

	slices.Sort(duplicates)

	return duplicates
}
