// Package postgres stores tasks, incidents and record updates produced by
// workflow actions in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/rentflow/pkg/config"
	"github.com/dukex/rentflow/pkg/persistence/sqlbase"
	"github.com/google/uuid"
)

// MigrationsTable tracks the collaborator schema apart from the engine schema.
const MigrationsTable = "outbound_schema_migrations"

// Stores bundles the PostgreSQL collaborators sharing one connection pool.
type Stores struct {
	Tasks     *TaskStore
	Incidents *IncidentStore
	Records   *RecordStore
}

// NewStores migrates the collaborator tables and returns the stores.
func NewStores(
	ctx context.Context,
	logger *slog.Logger,
	db *sql.DB,
	allowList config.RecordAllowList,
) (*Stores, error) {
	logger = logger.With("module", "outbound_postgres")

	err := sqlbase.NewMigrationManager(logger, db, migrations(), sqlbase.WithMigrationsTable(MigrationsTable)).
		RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate collaborator tables: %w", err)
	}

	return &Stores{
		Tasks:     NewTaskStore(db, logger),
		Incidents: NewIncidentStore(db, logger),
		Records:   NewRecordStore(db, logger, allowList),
	}, nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE tasks (
				id VARCHAR(255) PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				assignee VARCHAR(255) NOT NULL DEFAULT '',
				due_date TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_tasks_assignee ON tasks(assignee);
		`,
		2: `
			CREATE TABLE incidents (
				id VARCHAR(255) PRIMARY KEY,
				scope_type VARCHAR(20) NOT NULL CHECK (scope_type IN ('building', 'unit')),
				scope_id VARCHAR(255) NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				severity VARCHAR(20) NOT NULL,
				status VARCHAR(20) NOT NULL DEFAULT 'open',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_incidents_scope ON incidents(scope_type, scope_id);
		`,
	}
}

type clock struct {
	now   func() time.Time
	newID func() string
}

func defaultClock() clock {
	return clock{now: time.Now, newID: uuid.NewString}
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return t.UTC()
}
