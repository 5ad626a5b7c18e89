// Package main provides the Rentflow API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/dukex/rentflow/pkg/persistence"
	"github.com/dukex/rentflow/pkg/registry"
	"github.com/dukex/rentflow/pkg/services"
	"github.com/dukex/rentflow/pkg/web"
	"github.com/dukex/rentflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	executor    *workflow.Executor
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	executor *workflow.Executor,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		executor:    executor,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflow(a.persistence, a.registry)
	handlers := web.NewAPIHandlers(workflowService, a.executor, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			_, ok := workflowService.HealthCheck(c.Context())

			return ok
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Rentflow API")
	})

	web.RegisterRoutes(app, handlers)

	return app
}

// Start serves the API on port until ctx is cancelled.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	errCh := make(chan error, 1)

	go func() {
		errCh <- app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	a.logger.InfoContext(ctx, "Rentflow API listening", "port", port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		a.logger.InfoContext(ctx, "Shutting down Rentflow API")

		err := app.Shutdown()
		if err != nil {
			return err
		}

		err = <-errCh
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		return nil
	}
}
