// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/rentflow/pkg/models"
	"github.com/dukex/rentflow/pkg/registry"
	"github.com/dukex/rentflow/pkg/services"
	"github.com/dukex/rentflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
	"github.com/xeipuuv/gojsonschema"
)

// TriggerSchemaKey is the trigger_config entry holding the JSON schema a
// webhook payload must satisfy.
const TriggerSchemaKey = "schema"

type APIHandlers struct {
	workflowService *services.Workflow
	executor        *workflow.Executor
	validator       *validator.Validate
	registry        *registry.Registry
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	executor *workflow.Executor,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		executor:        executor,
		validator:       validator,
		registry:        registry,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.List(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
		Pagination: Pagination{
			Limit:  req.Limit,
			Offset: req.Offset,
		},
	})
}

func parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{
		OwnerScope:  c.Query("owner_scope"),
		State:       models.LifecycleState(c.Query("state")),
		TriggerKind: models.TriggerKind(c.Query("trigger_kind")),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	return req, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	req, err := h.bindWorkflowRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), req.ToModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	req, err := h.bindWorkflowRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.Update(c.Context(), c.Params("id"), req.ToModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) bindWorkflowRequest(c fiber.Ctx) (*WorkflowRequest, error) {
	var req WorkflowRequest

	err := c.Bind().JSON(&req)
	if err != nil {
		return nil, errInvalidJSON
	}

	err = h.validator.Struct(req)
	if err != nil {
		return nil, err
	}

	return &req, nil
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.workflowService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	activated, err := h.workflowService.Activate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(activated)
}

func (h *APIHandlers) DeactivateWorkflow(c fiber.Ctx) error {
	deactivated, err := h.workflowService.Deactivate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(deactivated)
}

// ExecuteWorkflow runs a workflow with the request body as its trigger context.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	triggerContext, err := parseTriggerContext(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	return h.execute(c, c.Params("id"), triggerContext)
}

// Webhook runs a webhook-triggered workflow with the request body as its
// trigger context. Other workflows are not reachable through this route.
func (h *APIHandlers) Webhook(c fiber.Ctx) error {
	id := c.Params("id")

	definition, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if definition.TriggerKind != models.TriggerKindWebhook {
		return notFound(c, "workflow_not_found", "workflow not found")
	}

	triggerContext, err := parseTriggerContext(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	if schema, ok := definition.TriggerConfig[TriggerSchemaKey].(map[string]any); ok {
		violations, err := validatePayload(schema, triggerContext)
		if err != nil {
			return internalError(c, err)
		}

		if len(violations) > 0 {
			problem := problems.NewStatusProblem(400).
				WithInstance(c.Path()).
				WithType("invalid_payload").
				WithDetail(strings.Join(violations, "; "))

			return c.Status(fiber.StatusBadRequest).JSON(problem)
		}
	}

	return h.execute(c, id, triggerContext)
}

func (h *APIHandlers) execute(c fiber.Ctx, id string, triggerContext map[string]any) error {
	summary, err := h.executor.ExecuteWorkflow(c.Context(), id, triggerContext)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(summary)
}

func parseTriggerContext(body []byte) (map[string]any, error) {
	triggerContext := map[string]any{}
	if len(strings.TrimSpace(string(body))) == 0 {
		return triggerContext, nil
	}

	err := json.Unmarshal(body, &triggerContext)
	if err != nil || triggerContext == nil {
		return nil, errTriggerContextObject
	}

	return triggerContext, nil
}

func validatePayload(schema map[string]any, payload map[string]any) ([]string, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(payload))
	if err != nil {
		return nil, err
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}

	return violations, nil
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	id := c.Params("id")

	_, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	executions, err := h.executor.ListExecutions(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if executions == nil {
		executions = []*models.Execution{}
	}

	return c.JSON(fiber.Map{"executions": executions})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.executor.GetExecution(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

// GetActionTypes lists the registered action types with their config schemas.
func (h *APIHandlers) GetActionTypes(c fiber.Ctx) error {
	factories := h.registry.Factories()

	actionTypes := make([]ActionTypeResponse, 0, len(factories))
	for _, factory := range factories {
		actionTypes = append(actionTypes, ActionTypeResponse{
			ID:          factory.ID(),
			Name:        factory.Name(),
			Description: factory.Description(),
			Schema:      factory.Schema(),
		})
	}

	return c.JSON(fiber.Map{"actions": actionTypes})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	response := HealthResponse{
		Status:  "unhealthy",
		Message: "Rentflow API is unhealthy",
		Checkers: map[string]string{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		Timestamp: time.Now().UTC(),
	}

	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		response.Status = "healthy"
		response.Message = "Rentflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(response)
}
