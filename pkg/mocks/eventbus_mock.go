package mocks

import (
	"context"

	"github.com/dukex/rentflow/pkg/eventbus"
	"github.com/dukex/rentflow/pkg/events"
	"github.com/stretchr/testify/mock"
)

// MockEventBus stands in for the workflow event bus. Published events are
// kept on the recorded calls; Published and PublishedTypes read them back in
// order.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}

func (m *MockEventBus) GenerateID() string {
	args := m.Called()

	return args.String(0)
}

// Published returns the events passed to Publish, oldest first.
func (m *MockEventBus) Published() []eventbus.Event {
	var published []eventbus.Event

	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}

		if event, ok := call.Arguments.Get(2).(eventbus.Event); ok {
			published = append(published, event)
		}
	}

	return published
}

// PublishedTypes returns the type of every published event, oldest first.
func (m *MockEventBus) PublishedTypes() []events.EventType {
	published := m.Published()
	types := make([]events.EventType, 0, len(published))

	for _, event := range published {
		types = append(types, event.GetType())
	}

	return types
}
