// Package registry maps action type tags to their factories and dispatches
// configured actions.
package registry

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger          *slog.Logger
	mu              sync.RWMutex
	actionFactories map[string]protocol.ActionFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log.With("module", "registry"),
		actionFactories: make(map[string]protocol.ActionFactory),
	}
}

// RegisterAction adds or replaces the factory for actionFactory.ID().
func (r *Registry) RegisterAction(actionFactory protocol.ActionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actionFactories[actionFactory.ID()] = actionFactory
}

// IsRegistered reports whether actionType has a factory.
func (r *Registry) IsRegistered(actionType string) bool {
	_, ok := r.Lookup(actionType)

	return ok
}

// Lookup returns the factory for actionType.
func (r *Registry) Lookup(actionType string) (protocol.ActionFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.actionFactories[actionType]

	return factory, ok
}

// ActionTypes returns the registered action type tags, sorted.
func (r *Registry) ActionTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.actionFactories))
	for actionType := range r.actionFactories {
		types = append(types, actionType)
	}

	slices.Sort(types)

	return types
}

// Factories returns the registered factories sorted by ID.
func (r *Registry) Factories() []protocol.ActionFactory {
	types := r.ActionTypes()

	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]protocol.ActionFactory, 0, len(types))
	for _, actionType := range types {
		factories = append(factories, r.actionFactories[actionType])
	}

	return factories
}

// HealthCheck reports whether any action type is available.
func (r *Registry) HealthCheck() (string, bool) {
	count := len(r.ActionTypes())
	if count == 0 {
		return "No action types registered", false
	}

	return fmt.Sprintf("%d action types registered", count), true
}

// ValidateConfig checks config against the factory schema and makes sure the
// action can be built from it.
func (r *Registry) ValidateConfig(actionType string, config map[string]any) error {
	factory, ok := r.Lookup(actionType)
	if !ok {
		return &ActionError{ActionType: actionType, Err: ErrUnknownAction}
	}

	if config == nil {
		config = map[string]any{}
	}

	if schema := factory.Schema(); schema != nil {
		result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
		if err != nil {
			return &ActionError{ActionType: actionType, Err: fmt.Errorf("%w: %w", ErrInvalidConfig, err)}
		}

		if !result.Valid() {
			messages := make([]string, 0, len(result.Errors()))
			for _, desc := range result.Errors() {
				messages = append(messages, desc.String())
			}

			return &ActionError{
				ActionType: actionType,
				Err:        fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(messages, "; ")),
			}
		}
	}

	_, err := factory.Create(config)
	if err != nil {
		return &ActionError{ActionType: actionType, Err: fmt.Errorf("%w: %w", ErrInvalidConfig, err)}
	}

	return nil
}

// Dispatch builds the action for actionType from config and runs it against data.
func (r *Registry) Dispatch(
	ctx context.Context,
	actionType string,
	config map[string]any,
	data map[string]any,
) (models.ActionOutcome, error) {
	factory, ok := r.Lookup(actionType)
	if !ok {
		return nil, &ActionError{ActionType: actionType, Err: ErrUnknownAction}
	}

	logger := r.logger.With("action_type", actionType)

	if config == nil {
		config = map[string]any{}
	}

	action, err := factory.Create(config)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create action", "error", err)

		return nil, &ActionError{ActionType: actionType, Err: err}
	}

	outcome, err := action.Execute(ctx, data, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Action failed", "error", err)

		return nil, &ActionError{ActionType: actionType, Err: err}
	}

	if outcome == nil {
		outcome = models.ActionOutcome{}
	}

	return outcome, nil
}

// LoadActionPlugins opens every *.so below pluginsPath/actions and returns the
// exported "Action" symbols, which must implement protocol.ActionFactory.
func (r *Registry) LoadActionPlugins(ctx context.Context, pluginsPath string) ([]protocol.ActionFactory, error) {
	return loadPlugin[protocol.ActionFactory](ctx, r.logger, pluginsPath, "Action")
}

func loadPlugin[T any](ctx context.Context, logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/" + strings.ToLower(symbolName) + "s"

	if _, err := os.Stat(rootPath); os.IsNotExist(err) {
		return []T{}, nil
	}

	pluginPathList, err := fs.Glob(os.DirFS(rootPath), "*/*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.InfoContext(ctx, "Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("plugin %s does not export %s: %w", p, symbolName, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("plugin %s: symbol %s has unexpected type %T", p, symbolName, v)
		}

		pluginList = append(pluginList, castV)

		l.InfoContext(ctx, "Loaded plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
