package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Gabiro3/blimp2/pkg/common"
	"github.com/Gabiro3/blimp2/pkg/executor"
	"github.com/Gabiro3/blimp2/pkg/planner"
	"github.com/Gabiro3/blimp2/pkg/repository"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type AppDirectory interface {
	ConnectedApps(ctx context.Context, userID string) ([]string, error)
}

type QueryPlanner interface {
	Plan(ctx context.Context, req planner.PlanRequest) (*types.QueryPlan, error)
}

type PlanExecutor interface {
	Execute(ctx context.Context, req executor.ExecuteRequest) (*types.ExecutionResult, error)
}

// PlanResponse mirrors QueryPlan with the boundary's success flag.
type PlanResponse struct {
	Success       bool                 `json:"success"`
	App           string               `json:"app,omitempty"`
	QueryType     types.QueryType      `json:"query_type,omitempty"`
	DataFetchPlan *types.DataFetchPlan `json:"data_fetch_plan,omitempty"`
	Actions       []types.ActionStep   `json:"actions,omitempty"`
	Reasoning     string               `json:"reasoning,omitempty"`
}

// ExecuteRequest is the plan a client sends back for execution.
type ExecuteRequest struct {
	Query         string               `json:"query"`
	QueryType     types.QueryType      `json:"query_type"`
	DataFetchPlan *types.DataFetchPlan `json:"data_fetch_plan,omitempty"`
	Actions       []types.ActionStep   `json:"actions,omitempty"`
	Reasoning     string               `json:"reasoning,omitempty"`
}

// ChatService is the core boundary for single-app chat requests
type ChatService struct {
	apps       AppDirectory
	planner    QueryPlanner
	executor   PlanExecutor
	executions repository.ExecutionRepository
	now        func() time.Time
}

func NewChatService(apps AppDirectory, p QueryPlanner, e PlanExecutor, executions repository.ExecutionRepository) *ChatService {
	return &ChatService{apps: apps, planner: p, executor: e, executions: executions, now: time.Now}
}

// PlanQuery gates on the target app being connected, then asks the planner.
// A disconnected app fails before any LLM call.
func (s *ChatService) PlanQuery(ctx context.Context, userID, query, targetApp, timezone string) (*PlanResponse, error) {
	app := types.NormalizeAppName(targetApp)
	if strings.TrimSpace(query) == "" {
		return nil, &types.InvalidParameterError{App: app, Function: "chat", Reason: "query is empty"}
	}

	connected, err := s.apps.ConnectedApps(ctx, userID)
	if err != nil {
		return nil, &types.UpstreamFailureError{Service: "credentials", Operation: "connected_apps", Err: err}
	}
	if !contains(connected, app) {
		log.Info().Str("user_id", userID).Str("app", app).Msg("query for disconnected app rejected")
		return nil, &types.NotConnectedError{App: app}
	}

	plan, err := s.planner.Plan(ctx, planner.PlanRequest{
		Query:         query,
		TargetApp:     app,
		ConnectedApps: connected,
		Timezone:      timezone,
	})
	if err != nil {
		return nil, err
	}

	return &PlanResponse{
		Success:       true,
		App:           app,
		QueryType:     plan.QueryType,
		DataFetchPlan: plan.DataFetchPlan,
		Actions:       plan.Actions,
		Reasoning:     plan.Reasoning,
	}, nil
}

// ExecutePlan runs a plan and records the run. The stored record holds the
// status and answer only.
func (s *ChatService) ExecutePlan(ctx context.Context, userID string, req ExecuteRequest) (*types.ExecutionResult, error) {
	plan := &types.QueryPlan{
		QueryType:     types.QueryType(strings.ToLower(string(req.QueryType))),
		DataFetchPlan: req.DataFetchPlan,
		Actions:       req.Actions,
		Reasoning:     req.Reasoning,
	}
	if plan.Actions == nil {
		plan.Actions = []types.ActionStep{}
	}

	exec := s.startExecution(ctx, userID, req)

	result, err := s.executor.Execute(ctx, executor.ExecuteRequest{UserID: userID, Query: req.Query, Plan: plan})
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Str("error_kind", types.ErrorKind(err)).Msg("plan execution failed")
		s.finishExecution(ctx, exec, types.ExecutionFailed, nil, err.Error())
		return nil, err
	}

	s.finishExecution(ctx, exec, types.ExecutionCompleted, executionSummary(result), "")
	return result, nil
}

// History lists the user's recent runs.
func (s *ChatService) History(ctx context.Context, userID string, limit int) ([]*types.Execution, error) {
	if s.executions == nil {
		return []*types.Execution{}, nil
	}
	return s.executions.ListExecutions(ctx, userID, limit)
}

func (s *ChatService) startExecution(ctx context.Context, userID string, req ExecuteRequest) *types.Execution {
	if s.executions == nil {
		return nil
	}

	params, _ := json.Marshal(map[string]any{
		"query_type": req.QueryType,
		"app":        appOf(req),
	})
	now := s.now()
	exec := &types.Execution{
		ID:         common.GenerateExecutionID(),
		UserID:     userID,
		Kind:       types.ExecutionKindChat,
		Status:     types.ExecutionRunning,
		Query:      req.Query,
		Parameters: params,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.executions.CreateExecution(ctx, exec); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to record execution")
		return nil
	}
	return exec
}

func (s *ChatService) finishExecution(ctx context.Context, exec *types.Execution, status types.ExecutionStatus, summary any, errMsg string) {
	if exec == nil {
		return
	}
	var result []byte
	if summary != nil {
		result, _ = json.Marshal(summary)
	}
	if err := s.executions.UpdateExecution(context.WithoutCancel(ctx), exec.ID, status, result, errMsg); err != nil {
		log.Warn().Err(err).Str("execution_id", exec.ID).Msg("failed to update execution")
	}
}

func executionSummary(r *types.ExecutionResult) map[string]any {
	actions := make([]map[string]any, 0, len(r.ActionsTaken))
	for _, a := range r.ActionsTaken {
		actions = append(actions, map[string]any{
			"action":  a.Action,
			"app":     a.App,
			"success": a.Success,
			"skipped": a.Skipped,
		})
	}
	return map[string]any{
		"answer":     r.Answer,
		"confidence": r.Confidence,
		"data_found": r.DataFound,
		"item_count": r.ItemCount,
		"actions":    actions,
	}
}

func appOf(req ExecuteRequest) string {
	if req.DataFetchPlan != nil && req.DataFetchPlan.App != "" {
		return types.NormalizeAppName(req.DataFetchPlan.App)
	}
	if len(req.Actions) > 0 {
		return types.NormalizeAppName(req.Actions[0].App)
	}
	return ""
}

func contains(apps []string, app string) bool {
	for _, a := range apps {
		if types.NormalizeAppName(a) == app {
			return true
		}
	}
	return false
}
