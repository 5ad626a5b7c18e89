package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/rentflow/pkg/protocol"
)

// IncidentStore implements protocol.IncidentStore on the incidents table.
type IncidentStore struct {
	db     *sql.DB
	logger *slog.Logger
	clock
}

func NewIncidentStore(db *sql.DB, logger *slog.Logger) *IncidentStore {
	return &IncidentStore{db: db, logger: logger, clock: defaultClock()}
}

// CreateIncident opens a new incident.
func (s *IncidentStore) CreateIncident(ctx context.Context, incident protocol.Incident) (string, error) {
	id := s.newID()

	query := `
		INSERT INTO incidents (id, scope_type, scope_id, title, description, severity, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'open', $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		id,
		incident.Scope.Type,
		incident.Scope.ID,
		incident.Title,
		incident.Description,
		incident.Severity,
		s.now().UTC(),
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to insert incident", "error", err)

		return "", fmt.Errorf("failed to insert incident: %w", err)
	}

	return id, nil
}
