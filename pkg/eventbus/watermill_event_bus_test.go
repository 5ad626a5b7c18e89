package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/dukex/rentflow/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) (*WatermillEventBus, *gochannel.GoChannel) {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 10}, watermill.NopLogger{})
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	bus := NewWatermillEventBus(logger, pubSub, pubSub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus, pubSub
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.WorkflowTriggerRequested, 1)

	require.NoError(t, bus.Handle(events.WorkflowTriggerRequestedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.WorkflowTriggerRequested)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	err := bus.Publish(ctx, "payment.late", events.WorkflowTriggerRequested{
		BaseEvent:      events.NewBaseEvent(bus.GenerateID(), events.WorkflowTriggerRequestedEvent, ""),
		Event:          "payment.late",
		TriggerContext: map[string]any{"amount": 150},
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "payment.late", event.Event)
		assert.InDelta(t, 150.0, event.TriggerContext["amount"], 0)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_SetsMetadata(t *testing.T) {
	bus, pubSub := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, events.Topic)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "wf-1", events.StepCompleted{ExecutionID: "ex-1"}))

	select {
	case msg := <-messages:
		assert.Equal(t, "wf-1", msg.Metadata.Get(events.EventMetadataKey))
		assert.Equal(t, string(events.StepCompletedEvent), msg.Metadata.Get(events.EventTypeMetadataKey))
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("message was not published")
	}
}

func TestWatermillEventBus_HandlerErrorNacks(t *testing.T) {
	bus, pubSub := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := make(chan struct{}, 4)

	var calls atomic.Int32

	require.NoError(t, bus.Handle(events.StepCompletedEvent, func(context.Context, any) error {
		attempts <- struct{}{}
		if calls.Add(1) == 1 {
			return errors.New("try again")
		}

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	msg := message.NewMessage(watermill.NewUUID(), []byte(`{"execution_id":"ex-1"}`))
	msg.Metadata.Set(events.EventTypeMetadataKey, string(events.StepCompletedEvent))
	require.NoError(t, pubSub.Publish(events.Topic, msg))

	for range 2 {
		select {
		case <-attempts:
		case <-time.After(5 * time.Second):
			t.Fatal("message was not redelivered after nack")
		}
	}
}
