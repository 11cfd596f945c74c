package apiv1

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Gabiro3/blimp2/pkg/gateway/services"
	"github.com/Gabiro3/blimp2/pkg/types"
)

const defaultHistoryLimit = 20

type ChatBackend interface {
	PlanQuery(ctx context.Context, userID, query, targetApp, timezone string) (*services.PlanResponse, error)
	ExecutePlan(ctx context.Context, userID string, req services.ExecuteRequest) (*types.ExecutionResult, error)
	History(ctx context.Context, userID string, limit int) ([]*types.Execution, error)
}

type ChatGroup struct {
	g    *echo.Group
	chat ChatBackend
}

func NewChatGroup(g *echo.Group, chat ChatBackend) *ChatGroup {
	cg := &ChatGroup{g: g, chat: chat}
	cg.g.POST("/plan", cg.Plan)
	cg.g.POST("/execute", cg.Execute)
	cg.g.GET("/history", cg.History)
	return cg
}

type PlanRequest struct {
	Query    string `json:"query"`
	App      string `json:"app"`
	Timezone string `json:"timezone,omitempty"`
}

func (cg *ChatGroup) Plan(c echo.Context) error {
	var req PlanRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request")
	}
	if req.App == "" {
		return ErrorResponse(c, http.StatusBadRequest, "app required")
	}

	resp, err := cg.chat.PlanQuery(c.Request().Context(), currentUser(c), req.Query, req.App, req.Timezone)
	if err != nil {
		return ErrorFrom(c, err)
	}
	return SuccessResponse(c, resp)
}

func (cg *ChatGroup) Execute(c echo.Context) error {
	var req services.ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request")
	}
	if req.QueryType == "" {
		return ErrorResponse(c, http.StatusBadRequest, "query_type required")
	}

	result, err := cg.chat.ExecutePlan(c.Request().Context(), currentUser(c), req)
	if err != nil {
		return ErrorFrom(c, err)
	}
	return SuccessResponse(c, result)
}

func (cg *ChatGroup) History(c echo.Context) error {
	limit := defaultHistoryLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return ErrorResponse(c, http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	history, err := cg.chat.History(c.Request().Context(), currentUser(c), limit)
	if err != nil {
		return ErrorFrom(c, err)
	}
	return SuccessResponse(c, history)
}
