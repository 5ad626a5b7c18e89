package web

import "github.com/gofiber/fiber/v3"

// RegisterRoutes mounts the workflow API on router.
func RegisterRoutes(router fiber.Router, h *APIHandlers) {
	router.Get("/health", h.HealthCheck)
	router.Get("/actions", h.GetActionTypes)

	workflows := router.Group("/workflows")
	workflows.Get("/", h.GetWorkflows)
	workflows.Post("/", h.CreateWorkflow)
	workflows.Get("/:id", h.GetWorkflow)
	workflows.Put("/:id", h.UpdateWorkflow)
	workflows.Delete("/:id", h.DeleteWorkflow)
	workflows.Post("/:id/activate", h.ActivateWorkflow)
	workflows.Post("/:id/deactivate", h.DeactivateWorkflow)
	workflows.Post("/:id/executions", h.ExecuteWorkflow)
	workflows.Get("/:id/executions", h.GetWorkflowExecutions)

	router.Get("/executions/:id", h.GetExecution)
	router.Post("/hooks/:id", h.Webhook)
}
