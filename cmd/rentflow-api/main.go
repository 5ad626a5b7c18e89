package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/rentflow/pkg/cmd"
	"github.com/dukex/rentflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "rentflow-api",
		Usage:                 "Manage and invoke workflows over HTTP",
		EnableShellCompletion: true,
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		}, cmd.RuntimeFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing Rentflow API")

			rt, err := cmd.NewRuntime(ctx, logger, cmd.RuntimeConfigFromCommand(command, "rentflow-api"))
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			api := NewAPI(logger, rt.Persistence, rt.Registry, rt.Executor)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return api.Start(ctx, command.Int("port"))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("api").Error("Rentflow API stopped", "error", err)
		os.Exit(1)
	}
}
