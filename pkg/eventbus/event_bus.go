// Package eventbus carries workflow lifecycle events out of the executor and
// trigger requests into the worker.
package eventbus

import (
	"context"

	"github.com/dukex/rentflow/pkg/events"
)

// Event is anything the engine publishes: execution lifecycle events, trigger
// requests and mail hand-offs.
type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes events keyed for partitioning. The executor keys
// by workflow ID so one workflow's events stay ordered.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber dispatches inbound messages to handlers registered per
// event type. Messages of a type with no handler are acked and dropped, so
// register handlers before calling Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a decoded event pointer, e.g. *events.WorkflowTriggerRequested.
// Returning an error nacks the message.
type EventHandler func(ctx context.Context, event any) error

// EventBus is bound to a single topic; the runtime opens one for lifecycle
// events and one for mail.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
