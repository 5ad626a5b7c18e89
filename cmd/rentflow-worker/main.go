package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/rentflow/pkg/cmd"
	"github.com/dukex/rentflow/pkg/log"
	"github.com/dukex/rentflow/pkg/workflow"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "rentflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Run event-triggered workflows from the event bus",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
		}, cmd.RuntimeFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("rentflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Rentflow Worker")

			rt, err := cmd.NewRuntime(ctx, logger, cmd.RuntimeConfigFromCommand(command, "rentflow-worker"))
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			worker := NewWorker(
				workerID,
				rt.EventBus,
				workflow.NewTriggerMatcher(rt.Persistence.WorkflowRepository(), logger),
				rt.Executor,
				logger,
			)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return worker.Run(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("rentflow-worker").Error("Rentflow Worker stopped", "error", err)
		os.Exit(1)
	}
}
