package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/rentflow/pkg/channels/gochannel"
	"github.com/dukex/rentflow/pkg/channels/kafka"
	"github.com/dukex/rentflow/pkg/eventbus"
)

// EventBusConfig selects and configures the event bus transport.
type EventBusConfig struct {
	// Provider is "kafka" or "gochannel".
	Provider string
	// Brokers is a comma separated kafka broker list.
	Brokers string
	// ServiceName names the kafka consumer group.
	ServiceName string
}

// NewEventBus creates an event bus bound to topic.
func NewEventBus(cfg EventBusConfig, topic string, logger *slog.Logger) (eventbus.EventBus, error) {
	var (
		pub message.Publisher
		sub message.Subscriber
		err error
	)

	adapter := watermill.NewSlogLogger(logger)

	switch cfg.Provider {
	case "kafka":
		pub, sub, err = kafka.CreateChannel(adapter, cfg.ServiceName, kafka.ParseBrokers(cfg.Brokers))
	case "gochannel", "":
		pub, sub, err = gochannel.CreateChannel(adapter)
	default:
		return nil, fmt.Errorf("unsupported event bus provider %q", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s pub/sub: %w", cfg.Provider, err)
	}

	return eventbus.NewWatermillEventBusOnTopic(logger, pub, sub, topic), nil
}
