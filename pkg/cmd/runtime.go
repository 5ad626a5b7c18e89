package cmd

import (
	"context"
	"log/slog"

	"github.com/dukex/rentflow/pkg/eventbus"
	"github.com/dukex/rentflow/pkg/events"
	"github.com/dukex/rentflow/pkg/otelhelper"
	"github.com/dukex/rentflow/pkg/persistence"
	"github.com/dukex/rentflow/pkg/registry"
	"github.com/dukex/rentflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

// RuntimeConfig is the process configuration shared by the API and the worker.
type RuntimeConfig struct {
	ServiceName   string
	DatabaseURL   string
	PluginsPath   string
	OtelEnabled   bool
	EventBus      EventBusConfig
	Collaborators CollaboratorsConfig
}

// Runtime holds the engine and everything it is wired to.
type Runtime struct {
	Persistence   persistence.Persistence
	EventBus      eventbus.EventBus
	MailBus       eventbus.EventBus
	Collaborators *Collaborators
	Registry      *registry.Registry
	Executor      *workflow.Executor

	logger   *slog.Logger
	shutdown otelhelper.ShutdownFunc
}

// RuntimeFlags are the command line flags read by RuntimeConfigFromCommand.
func RuntimeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (postgres:// or file://)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (kafka, gochannel)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for notification inboxes (in memory when empty)",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "record-allowlist",
			Usage:   "YAML file listing the record fields update_record may write",
			Sources: cli.EnvVars("RECORD_ALLOWLIST"),
		},
		&cli.StringFlag{
			Name:    "plugins-path",
			Usage:   "Path to the directory containing action plugins",
			Value:   "./plugins",
			Sources: cli.EnvVars("PLUGINS_PATH"),
		},
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

// RuntimeConfigFromCommand reads the RuntimeFlags of command.
func RuntimeConfigFromCommand(command *cli.Command, serviceName string) RuntimeConfig {
	return RuntimeConfig{
		ServiceName: serviceName,
		DatabaseURL: command.String("database-url"),
		PluginsPath: command.String("plugins-path"),
		OtelEnabled: command.Bool("otel-enabled"),
		EventBus: EventBusConfig{
			Provider:    command.String("event-bus"),
			Brokers:     command.String("kafka-brokers"),
			ServiceName: serviceName,
		},
		Collaborators: CollaboratorsConfig{
			RedisURL:            command.String("redis-url"),
			RecordAllowListPath: command.String("record-allowlist"),
		},
	}
}

// NewRuntime opens storage and both buses, binds the collaborators and builds
// the executor. On error everything opened so far is closed.
func NewRuntime(ctx context.Context, logger *slog.Logger, cfg RuntimeConfig) (_ *Runtime, err error) {
	rt := &Runtime{logger: logger}

	defer func() {
		if err != nil {
			rt.Close(ctx)
		}
	}()

	rt.Persistence, err = NewPersistence(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	rt.EventBus, err = NewEventBus(cfg.EventBus, events.Topic, logger)
	if err != nil {
		return nil, err
	}

	rt.MailBus, err = NewEventBus(cfg.EventBus, events.MailTopic, logger)
	if err != nil {
		return nil, err
	}

	collaboratorsConfig := cfg.Collaborators
	collaboratorsConfig.MailPublisher = rt.MailBus

	rt.Collaborators, err = NewCollaborators(ctx, logger, rt.Persistence, collaboratorsConfig)
	if err != nil {
		return nil, err
	}

	rt.Registry, err = NewRegistry(ctx, logger, cfg.PluginsPath, rt.Collaborators)
	if err != nil {
		return nil, err
	}

	tracer, shutdown, err := NewTracer(ctx, cfg.OtelEnabled, cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	rt.shutdown = shutdown

	rt.Executor = workflow.NewExecutor(
		rt.Persistence.WorkflowRepository(),
		rt.Persistence.ExecutionRepository(),
		rt.Registry,
		logger,
		workflow.WithEventPublisher(rt.EventBus),
		workflow.WithTracer(tracer),
	)

	return rt, nil
}

// Close releases everything the runtime opened, logging failures.
func (rt *Runtime) Close(ctx context.Context) {
	if rt.shutdown != nil {
		if err := rt.shutdown(ctx); err != nil {
			rt.logger.ErrorContext(ctx, "Failed to shut down tracer", "error", err)
		}
	}

	if rt.Collaborators != nil {
		if err := rt.Collaborators.Close(); err != nil {
			rt.logger.ErrorContext(ctx, "Failed to close collaborators", "error", err)
		}
	}

	for _, bus := range []eventbus.EventBus{rt.MailBus, rt.EventBus} {
		if bus == nil {
			continue
		}

		if err := bus.Close(); err != nil {
			rt.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}

	if rt.Persistence != nil {
		if err := rt.Persistence.Close(ctx); err != nil {
			rt.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}
}
