package apiv1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Gabiro3/blimp2/pkg/gateway/services"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type WorkflowBackend interface {
	CreateWorkflow(ctx context.Context, userID string, w *types.Workflow) (*types.Workflow, error)
	ListWorkflows(ctx context.Context, userID string) ([]*types.Workflow, error)
	GetWorkflow(ctx context.Context, userID, id string) (*types.Workflow, error)
	DeleteWorkflow(ctx context.Context, userID, id string) error
	RunMultiApp(ctx context.Context, userID, workflowID string, params map[string]any) (*types.MultiAppResult, error)
	RunTeam(ctx context.Context, teamWorkflowID, adminID string, params map[string]any) (*types.TeamRunResult, error)
	ProcessPrompt(ctx context.Context, userID, prompt string, extra map[string]any) (*services.ProcessResult, error)
}

type WorkflowsGroup struct {
	g         *echo.Group
	workflows WorkflowBackend
}

func NewWorkflowsGroup(g *echo.Group, workflows WorkflowBackend) *WorkflowsGroup {
	wg := &WorkflowsGroup{g: g, workflows: workflows}
	wg.g.POST("", wg.Create)
	wg.g.GET("", wg.List)
	wg.g.POST("/process", wg.Process)
	wg.g.GET("/:workflow_id", wg.Get)
	wg.g.DELETE("/:workflow_id", wg.Delete)
	wg.g.POST("/:workflow_id/run", wg.Run)
	wg.g.POST("/:workflow_id/run-team", wg.RunTeam)
	return wg
}

type RunWorkflowRequest struct {
	Parameters map[string]any `json:"parameters,omitempty"`
}

type ProcessWorkflowRequest struct {
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context,omitempty"`
}

func (wg *WorkflowsGroup) Create(c echo.Context) error {
	var w types.Workflow
	if err := c.Bind(&w); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request")
	}
	w.ID = ""

	created, err := wg.workflows.CreateWorkflow(c.Request().Context(), currentUser(c), &w)
	if err != nil {
		return workflowError(c, err)
	}
	return c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

// Process matches a free-text request to a saved workflow or saves a new one.
func (wg *WorkflowsGroup) Process(c echo.Context) error {
	var req ProcessWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return ErrorResponse(c, http.StatusBadRequest, "prompt is required")
	}

	result, err := wg.workflows.ProcessPrompt(c.Request().Context(), currentUser(c), req.Prompt, req.Context)
	if err != nil {
		return workflowError(c, err)
	}
	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}
	return c.JSON(status, Response{Success: true, Data: result})
}

func (wg *WorkflowsGroup) List(c echo.Context) error {
	list, err := wg.workflows.ListWorkflows(c.Request().Context(), currentUser(c))
	if err != nil {
		return workflowError(c, err)
	}
	if list == nil {
		list = []*types.Workflow{}
	}
	return SuccessResponse(c, list)
}

func (wg *WorkflowsGroup) Get(c echo.Context) error {
	w, err := wg.workflows.GetWorkflow(c.Request().Context(), currentUser(c), c.Param("workflow_id"))
	if err != nil {
		return workflowError(c, err)
	}
	return SuccessResponse(c, w)
}

func (wg *WorkflowsGroup) Delete(c echo.Context) error {
	if err := wg.workflows.DeleteWorkflow(c.Request().Context(), currentUser(c), c.Param("workflow_id")); err != nil {
		return workflowError(c, err)
	}
	return SuccessResponse(c, nil)
}

func (wg *WorkflowsGroup) Run(c echo.Context) error {
	var req RunWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request")
	}

	result, err := wg.workflows.RunMultiApp(c.Request().Context(), currentUser(c), c.Param("workflow_id"), req.Parameters)
	if err != nil {
		return workflowError(c, err)
	}
	return SuccessResponse(c, result)
}

func (wg *WorkflowsGroup) RunTeam(c echo.Context) error {
	var req RunWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request")
	}

	result, err := wg.workflows.RunTeam(c.Request().Context(), c.Param("workflow_id"), currentUser(c), req.Parameters)
	if err != nil {
		return workflowError(c, err)
	}
	return SuccessResponse(c, result)
}

func workflowError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrWorkflowNotFound):
		return ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNotWorkflowOwner):
		return ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrNotTeamWorkflow):
		return ErrorResponse(c, http.StatusBadRequest, err.Error())
	}
	return ErrorFrom(c, err)
}
