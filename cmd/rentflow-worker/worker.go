// Package main provides the worker that runs event-triggered workflows.
package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/rentflow/pkg/eventbus"
	"github.com/dukex/rentflow/pkg/events"
	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/workflow"
)

// Matcher finds the workflows a trigger request should run.
type Matcher interface {
	MatchWorkflows(ctx context.Context, request *events.WorkflowTriggerRequested) ([]*models.Workflow, error)
}

// Runner executes one workflow against a trigger context.
type Runner interface {
	ExecuteWorkflow(ctx context.Context, workflowID string, triggerContext map[string]any) (*models.ExecutionSummary, error)
}

type Worker struct {
	id         string
	logger     *slog.Logger
	subscriber eventbus.EventSubscriber
	matcher    Matcher
	runner     Runner
}

func NewWorker(
	id string,
	subscriber eventbus.EventSubscriber,
	matcher Matcher,
	runner Runner,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:         id,
		logger:     logger.With("module", "rentflow-worker", "worker_id", id),
		subscriber: subscriber,
		matcher:    matcher,
		runner:     runner,
	}
}

// Start registers the trigger handler and begins consuming.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	err := w.subscriber.Handle(events.WorkflowTriggerRequestedEvent, w.handleTriggerRequested)
	if err != nil {
		return err
	}

	err = w.subscriber.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	return nil
}

// Run starts the worker and blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	err := w.Start(ctx)
	if err != nil {
		return err
	}

	<-ctx.Done()
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

// handleTriggerRequested runs every matching workflow once. Only a failed
// match is returned, so a redelivered message never repeats side effects.
func (w *Worker) handleTriggerRequested(ctx context.Context, event any) error {
	request, ok := event.(*events.WorkflowTriggerRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for WorkflowTriggerRequested")

		return nil
	}

	logger := w.logger.With("event", request.Event, "event_id", request.ID)

	matches, err := w.matcher.MatchWorkflows(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to match workflows for %s: %w", request.Event, err)
	}

	if len(matches) == 0 {
		logger.DebugContext(ctx, "No workflow subscribed to event")

		return nil
	}

	triggerContext := request.TriggerContext
	if triggerContext == nil {
		triggerContext = map[string]any{}
	}

	for _, match := range matches {
		wfLogger := logger.With("workflow_id", match.ID)

		summary, err := w.runner.ExecuteWorkflow(ctx, match.ID, triggerContext)
		if err != nil {
			if workflow.IsPrecondition(err) {
				wfLogger.WarnContext(ctx, "Workflow no longer runnable", "error", err)

				continue
			}

			wfLogger.ErrorContext(ctx, "Failed to execute workflow", "error", err)

			continue
		}

		wfLogger.InfoContext(ctx, "Workflow executed",
			"execution_id", summary.ExecutionID,
			"status", summary.Status,
			"steps", len(summary.StepResults),
		)
	}

	return nil
}
