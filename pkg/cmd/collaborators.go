package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/rentflow/pkg/config"
	"github.com/dukex/rentflow/pkg/eventbus"
	"github.com/dukex/rentflow/pkg/outbound/bus"
	"github.com/dukex/rentflow/pkg/outbound/memory"
	"github.com/dukex/rentflow/pkg/outbound/postgres"
	redisstore "github.com/dukex/rentflow/pkg/outbound/redis"
	"github.com/dukex/rentflow/pkg/persistence"
	"github.com/dukex/rentflow/pkg/persistence/postgresql"
	"github.com/dukex/rentflow/pkg/protocol"
)

// Collaborators are the external systems the built-in actions write to.
type Collaborators struct {
	Notifications protocol.NotificationSink
	Tasks         protocol.TaskStore
	Incidents     protocol.IncidentStore
	Records       protocol.RecordStore
	Mailer        protocol.Mailer

	closers []func() error
}

// Close releases connections opened for the collaborators.
func (c *Collaborators) Close() error {
	var firstErr error

	for _, closeFn := range c.closers {
		err := closeFn()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// CollaboratorsConfig points the collaborators at their backends.
type CollaboratorsConfig struct {
	// RedisURL enables the Redis notification inbox.
	RedisURL string
	// RecordAllowListPath is the YAML file listing updatable record fields.
	RecordAllowListPath string
	// MailPublisher hands mail to the delivery service when set.
	MailPublisher eventbus.EventPublisher
}

// NewCollaborators wires each collaborator to the best available backend.
// PostgreSQL persistence also hosts tasks, incidents and record updates;
// anything without a configured backend falls back to process memory.
func NewCollaborators(
	ctx context.Context,
	logger *slog.Logger,
	store persistence.Persistence,
	cfg CollaboratorsConfig,
) (*Collaborators, error) {
	var allowList config.RecordAllowList

	if cfg.RecordAllowListPath != "" {
		var err error

		allowList, err = config.LoadRecordAllowList(cfg.RecordAllowListPath)
		if err != nil {
			return nil, err
		}
	}

	fallback := memory.New(allowList)
	collaborators := &Collaborators{
		Notifications: fallback,
		Tasks:         fallback,
		Incidents:     fallback,
		Records:       fallback,
		Mailer:        fallback,
	}

	if pg, ok := store.(*postgresql.Persistence); ok {
		stores, err := postgres.NewStores(ctx, logger, pg.DB(), allowList)
		if err != nil {
			return nil, err
		}

		collaborators.Tasks = stores.Tasks
		collaborators.Incidents = stores.Incidents
		collaborators.Records = stores.Records
	} else {
		logger.WarnContext(ctx, "Tasks, incidents and record updates are kept in memory")
	}

	if cfg.RedisURL != "" {
		client, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		collaborators.Notifications = redisstore.NewNotificationSink(client, logger)
		collaborators.closers = append(collaborators.closers, client.Close)
	} else {
		logger.WarnContext(ctx, "Notifications are kept in memory")
	}

	if cfg.MailPublisher != nil {
		collaborators.Mailer = bus.NewMailer(cfg.MailPublisher, logger)
	}

	return collaborators, nil
}
