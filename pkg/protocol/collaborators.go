package protocol

import (
	"context"
	"time"
)

// Notification priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Incident severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Incident scope types.
const (
	ScopeBuilding = "building"
	ScopeUnit     = "unit"
)

// Notification is an in-app message for one user.
type Notification struct {
	Target   string `json:"target"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority string `json:"priority"`
}

// NotificationSink stores notifications in a user's inbox.
type NotificationSink interface {
	CreateNotification(ctx context.Context, notification Notification) (string, error)
}

// Task is a unit of follow-up work for a staff member.
type Task struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Assignee    string     `json:"assignee"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// TaskStore persists tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, task Task) (string, error)
}

// Mail is a rendered outbound email.
type Mail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Mailer hands mail to the outbound transport.
type Mailer interface {
	SendMail(ctx context.Context, mail Mail) error
}

// RecordUpdate sets one field of one entity.
type RecordUpdate struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Field      string `json:"field"`
	Value      any    `json:"value"`
}

// RecordStore applies field updates, restricted to an allow-list of entity
// types and fields.
type RecordStore interface {
	UpdateField(ctx context.Context, update RecordUpdate) error
}

// IncidentScope identifies the building or unit an incident belongs to.
type IncidentScope struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Incident is a maintenance or operations ticket.
type Incident struct {
	Scope       IncidentScope `json:"scope"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Severity    string        `json:"severity"`
}

// IncidentStore persists incidents.
type IncidentStore interface {
	CreateIncident(ctx context.Context, incident Incident) (string, error)
}
