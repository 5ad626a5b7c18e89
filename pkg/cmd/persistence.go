package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/rentflow/pkg/persistence"
	"github.com/dukex/rentflow/pkg/persistence/file"
	"github.com/dukex/rentflow/pkg/persistence/postgresql"
)

// PersistenceProvider returns the storage backend named by the URL scheme.
// URLs without a scheme are file paths.
func PersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return strings.ToLower(scheme)
}

// NewPersistence opens the storage backend selected by databaseURL:
// postgres:// or postgresql:// for PostgreSQL, file:// or a bare path for
// JSON files.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch provider := PersistenceProvider(databaseURL); provider {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "file":
		return file.NewPersistence(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported persistence provider %q", provider)
	}
}
