package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/rentflow/pkg/config"
	"github.com/dukex/rentflow/pkg/protocol"
	"github.com/lib/pq"
)

var (
	// ErrRecordNotAllowed indicates an entity type or field outside the allow-list.
	ErrRecordNotAllowed = errors.New("record update not allowed")

	// ErrRecordNotFound indicates no row matched the entity id.
	ErrRecordNotFound = errors.New("record not found")
)

// RecordStore implements protocol.RecordStore. Only the entity types and
// fields of its allow-list can be written.
type RecordStore struct {
	db        *sql.DB
	logger    *slog.Logger
	allowList config.RecordAllowList
}

func NewRecordStore(db *sql.DB, logger *slog.Logger, allowList config.RecordAllowList) *RecordStore {
	return &RecordStore{db: db, logger: logger, allowList: allowList}
}

func (s *RecordStore) UpdateField(ctx context.Context, update protocol.RecordUpdate) error {
	target, ok := s.allowList.Lookup(update.EntityType, update.Field)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrRecordNotAllowed, update.EntityType, update.Field)
	}

	value, err := columnValue(update.Value)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2",
		quoteTable(target.Table),
		pq.QuoteIdentifier(update.Field),
		pq.QuoteIdentifier(target.KeyColumn()),
	)

	result, err := s.db.ExecContext(ctx, query, value, update.EntityID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to update record",
			"entity_type", update.EntityType,
			"field", update.Field,
			"error", err,
		)

		return fmt.Errorf("failed to update %s %s: %w", update.EntityType, update.EntityID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: %s %s", ErrRecordNotFound, update.EntityType, update.EntityID)
	}

	return nil
}

func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, part := range parts {
		parts[i] = pq.QuoteIdentifier(part)
	}

	return strings.Join(parts, ".")
}

// columnValue passes scalars through and stores composite values as JSON text.
func columnValue(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, int, int32, int64, float32, float64:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode record value: %w", err)
		}

		return string(encoded), nil
	}
}
