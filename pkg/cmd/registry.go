// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/rentflow/pkg/actions/email"
	"github.com/dukex/rentflow/pkg/actions/incident"
	"github.com/dukex/rentflow/pkg/actions/notification"
	"github.com/dukex/rentflow/pkg/actions/task"
	"github.com/dukex/rentflow/pkg/actions/updaterecord"
	"github.com/dukex/rentflow/pkg/registry"
)

func registerActionPlugins(ctx context.Context, reg *registry.Registry, pluginsPath string) error {
	if pluginsPath == "" {
		return nil
	}

	actionPlugins, err := reg.LoadActionPlugins(ctx, pluginsPath)
	if err != nil {
		return fmt.Errorf("failed to load action plugins: %w", err)
	}

	for _, plugin := range actionPlugins {
		reg.RegisterAction(plugin)
	}

	return nil
}

func registerNativeActions(reg *registry.Registry, c *Collaborators) {
	reg.RegisterAction(notification.NewActionFactory(c.Notifications))
	reg.RegisterAction(task.NewActionFactory(c.Tasks))
	reg.RegisterAction(email.NewActionFactory(c.Mailer))
	reg.RegisterAction(updaterecord.NewActionFactory(c.Records))
	reg.RegisterAction(incident.NewActionFactory(c.Incidents))
}

// NewRegistry registers the built-in actions bound to collaborators, then
// any plugins found under pluginsPath.
func NewRegistry(
	ctx context.Context,
	log *slog.Logger,
	pluginsPath string,
	collaborators *Collaborators,
) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	registerNativeActions(reg, collaborators)

	err := registerActionPlugins(ctx, reg, pluginsPath)
	if err != nil {
		return nil, err
	}

	return reg, nil
}
