package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/Gabiro3/blimp2/pkg/common"
	"github.com/Gabiro3/blimp2/pkg/notify"
	"github.com/Gabiro3/blimp2/pkg/planner"
	"github.com/Gabiro3/blimp2/pkg/repository"
	"github.com/Gabiro3/blimp2/pkg/types"
)

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrNotTeamWorkflow  = errors.New("workflow has no team members")
	ErrNotWorkflowOwner = errors.New("only the workflow owner can run it")
)

type WorkflowRunner interface {
	RunMultiApp(ctx context.Context, userID string, w *types.Workflow, params map[string]any) (*types.MultiAppResult, error)
}

type CredentialSource interface {
	GetCredential(ctx context.Context, userID, app string) (*types.Credential, error)
}

type WorkflowMatcher interface {
	MatchWorkflow(ctx context.Context, req planner.MatchRequest) (*types.WorkflowMatch, error)
}

type WorkflowOption func(*WorkflowService)

// WithMatcher enables ProcessPrompt. apps may be nil, in which case every
// required app is reported as missing.
func WithMatcher(m WorkflowMatcher, apps AppDirectory) WorkflowOption {
	return func(s *WorkflowService) {
		s.matcher = m
		s.apps = apps
	}
}

// ProcessResult is the outcome of a free-text workflow request.
type ProcessResult struct {
	Workflow     *types.Workflow `json:"workflow"`
	IsNew        bool            `json:"is_new_workflow"`
	RequiredApps []string        `json:"required_apps"`
	MissingApps  []string        `json:"missing_apps"`
	Category     string          `json:"category,omitempty"`
	Reasoning    string          `json:"reasoning,omitempty"`
}

// WorkflowService stores, runs and reports on multi-app workflows
type WorkflowService struct {
	workflows  repository.WorkflowRepository
	executions repository.ExecutionRepository
	runner     WorkflowRunner
	creds      CredentialSource
	sender     notify.Sender
	matcher    WorkflowMatcher
	apps       AppDirectory
	now        func() time.Time
}

func NewWorkflowService(workflows repository.WorkflowRepository, executions repository.ExecutionRepository, runner WorkflowRunner, creds CredentialSource, sender notify.Sender, opts ...WorkflowOption) *WorkflowService {
	s := &WorkflowService{
		workflows:  workflows,
		executions: executions,
		runner:     runner,
		creds:      creds,
		sender:     sender,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessPrompt matches a free-text request against the user's saved
// workflows. When nothing fits, the outlined workflow is saved. The result
// lists the required apps the user still has to connect.
func (s *WorkflowService) ProcessPrompt(ctx context.Context, userID, prompt string, extra map[string]any) (*ProcessResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, &types.InvalidParameterError{App: "workflow", Function: "process", Reason: "prompt is required"}
	}
	if s.matcher == nil {
		return nil, &types.NotConfiguredError{Service: "llm"}
	}

	saved, err := s.workflows.ListWorkflows(ctx, userID)
	if err != nil {
		return nil, err
	}

	var connected []string
	if s.apps != nil {
		if connected, err = s.apps.ConnectedApps(ctx, userID); err != nil {
			return nil, err
		}
	}

	match, err := s.matcher.MatchWorkflow(ctx, planner.MatchRequest{
		Prompt:        prompt,
		Saved:         saved,
		ConnectedApps: connected,
		Context:       extra,
	})
	if err != nil {
		return nil, err
	}

	var w *types.Workflow
	if match.IsNew {
		w, err = s.CreateWorkflow(ctx, userID, &types.Workflow{
			Name:         match.Name,
			Description:  match.Description,
			RequiredApps: match.RequiredApps,
			Steps:        match.Steps,
		})
		if err != nil {
			return nil, err
		}
	} else {
		for _, candidate := range saved {
			if candidate.ID == match.WorkflowID {
				w = candidate
				break
			}
		}
		if w == nil {
			return nil, ErrWorkflowNotFound
		}
	}

	have := make(map[string]bool, len(connected))
	for _, app := range connected {
		have[types.NormalizeAppName(app)] = true
	}
	missing := []string{}
	for _, app := range w.RequiredApps {
		if !have[app] {
			missing = append(missing, app)
		}
	}

	log.Info().
		Str("user_id", userID).
		Str("workflow_id", w.ID).
		Bool("new", match.IsNew).
		Strs("missing_apps", missing).
		Msg("workflow request processed")

	return &ProcessResult{
		Workflow:     w,
		IsNew:        match.IsNew,
		RequiredApps: w.RequiredApps,
		MissingApps:  missing,
		Category:     match.Category,
		Reasoning:    match.Reasoning,
	}, nil
}

// CreateWorkflow validates and saves w for userID.
func (s *WorkflowService) CreateWorkflow(ctx context.Context, userID string, w *types.Workflow) (*types.Workflow, error) {
	w.UserID = userID
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return nil, &types.InvalidParameterError{App: "workflow", Function: "create", Reason: "name is required"}
	}

	apps := make([]string, 0, len(w.RequiredApps))
	seen := map[string]bool{}
	for _, app := range w.RequiredApps {
		app = types.NormalizeAppName(app)
		if app != "" && !seen[app] {
			seen[app] = true
			apps = append(apps, app)
		}
	}
	w.RequiredApps = apps
	if len(apps) < types.MinWorkflowApps {
		return nil, &types.InvalidParameterError{App: "workflow", Function: "create", Reason: fmt.Sprintf("a workflow needs at least %d apps", types.MinWorkflowApps)}
	}
	if len(w.Steps) == 0 {
		return nil, &types.InvalidParameterError{App: "workflow", Function: "create", Reason: "steps are required"}
	}
	if w.Schedule != "" {
		if _, err := cron.ParseStandard(w.Schedule); err != nil {
			return nil, &types.InvalidParameterError{App: "workflow", Function: "create", Reason: fmt.Sprintf("invalid schedule: %v", err)}
		}
	}

	now := s.now()
	if w.ID == "" {
		w.ID = common.GenerateWorkflowID()
	}
	w.IsActive = true
	w.CreatedAt, w.UpdatedAt = now, now

	if err := s.workflows.CreateWorkflow(ctx, w); err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID).Str("workflow_id", w.ID).Strs("apps", apps).Msg("workflow created")
	return w, nil
}

func (s *WorkflowService) ListWorkflows(ctx context.Context, userID string) ([]*types.Workflow, error) {
	return s.workflows.ListWorkflows(ctx, userID)
}

func (s *WorkflowService) GetWorkflow(ctx context.Context, userID, id string) (*types.Workflow, error) {
	w, err := s.workflows.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil || !canRun(w, userID) {
		return nil, ErrWorkflowNotFound
	}
	return w, nil
}

func (s *WorkflowService) DeleteWorkflow(ctx context.Context, userID, id string) error {
	return s.workflows.DeleteWorkflow(ctx, id, userID)
}

// RunMultiApp runs a saved workflow for userID and records the execution.
func (s *WorkflowService) RunMultiApp(ctx context.Context, userID, workflowID string, params map[string]any) (*types.MultiAppResult, error) {
	w, err := s.GetWorkflow(ctx, userID, workflowID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, userID, w, params, true)
}

func (s *WorkflowService) run(ctx context.Context, userID string, w *types.Workflow, params map[string]any, notifyOwner bool) (*types.MultiAppResult, error) {
	merged := mergeParams(w.Parameters, params)
	exec := s.startExecution(ctx, userID, w, types.ExecutionKindWorkflow, merged)

	result, err := s.runner.RunMultiApp(ctx, userID, w, merged)
	if err != nil {
		s.finishExecution(ctx, exec, types.ExecutionFailed, nil, err.Error())
		return nil, err
	}

	status := types.ExecutionCompleted
	if !result.Success {
		status = types.ExecutionFailed
	}
	s.finishExecution(ctx, exec, status, stepSummary(result), result.Error)

	if notifyOwner {
		s.notifyReport(ctx, w, func() (notify.Message, error) {
			return notify.WorkflowReport(result, s.now())
		})
	}
	return result, nil
}

// RunTeam runs a team workflow for each member in order. Members missing a
// credential for any required app are recorded under Errors and skipped.
func (s *WorkflowService) RunTeam(ctx context.Context, teamWorkflowID, adminID string, params map[string]any) (*types.TeamRunResult, error) {
	w, err := s.workflows.GetWorkflow(ctx, teamWorkflowID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWorkflowNotFound
	}
	if w.UserID != adminID {
		return nil, ErrNotWorkflowOwner
	}
	if !w.IsTeam() {
		return nil, ErrNotTeamWorkflow
	}

	out := &types.TeamRunResult{
		Success:      true,
		WorkflowID:   w.ID,
		WorkflowName: w.Name,
		Results:      map[string]*types.MultiAppResult{},
		Errors:       map[string]string{},
	}

	for _, member := range w.Members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.checkCredentials(ctx, member, w.RequiredApps); err != nil {
			log.Info().Err(err).Str("workflow_id", w.ID).Str("user_id", member).Msg("team member skipped")
			out.Errors[member] = err.Error()
			out.Success = false
			continue
		}

		result, err := s.run(ctx, member, w, params, false)
		if err != nil {
			out.Errors[member] = err.Error()
			out.Success = false
			continue
		}
		out.Results[member] = result
		if !result.Success {
			out.Success = false
		}
	}

	s.notifyReport(ctx, w, func() (notify.Message, error) {
		return notify.TeamReport(out, s.now())
	})

	log.Info().
		Str("workflow_id", w.ID).
		Int("members", len(w.Members)).
		Int("failed", len(out.Errors)).
		Bool("success", out.Success).
		Msg("team workflow finished")
	return out, nil
}

// RunWorkflow is the scheduler's entry point.
func (s *WorkflowService) RunWorkflow(ctx context.Context, w *types.Workflow) error {
	if w.IsTeam() {
		_, err := s.RunTeam(ctx, w.ID, w.UserID, nil)
		return err
	}
	_, err := s.run(ctx, w.UserID, w, nil, true)
	return err
}

func (s *WorkflowService) checkCredentials(ctx context.Context, userID string, apps []string) error {
	if s.creds == nil {
		return nil
	}
	for _, app := range apps {
		app = types.NormalizeAppName(app)
		cred, err := s.creds.GetCredential(ctx, userID, app)
		if err != nil {
			return err
		}
		if cred == nil {
			return &types.MissingCredentialsError{App: app}
		}
	}
	return nil
}

// notifyReport renders and sends a run report to the workflow's notify
// address, if it has one. Render and send failures are logged only.
func (s *WorkflowService) notifyReport(ctx context.Context, w *types.Workflow, render func() (notify.Message, error)) {
	if w.NotifyEmail == "" {
		return
	}
	msg, err := render()
	if err != nil {
		log.Warn().Err(err).Str("workflow_id", w.ID).Bool("team", w.IsTeam()).Msg("failed to render workflow report")
		return
	}
	s.send(ctx, w.NotifyEmail, msg)
}

func (s *WorkflowService) send(ctx context.Context, to string, msg notify.Message) {
	if s.sender == nil {
		return
	}
	msg.To = []string{to}
	if _, err := s.sender.Send(context.WithoutCancel(ctx), msg); err != nil {
		log.Warn().Err(err).Str("to", to).Msg("workflow notification failed")
	}
}

func (s *WorkflowService) startExecution(ctx context.Context, userID string, w *types.Workflow, kind types.ExecutionKind, params map[string]any) *types.Execution {
	if s.executions == nil {
		return nil
	}
	raw, _ := json.Marshal(params)
	now := s.now()
	exec := &types.Execution{
		ID:         common.GenerateExecutionID(),
		UserID:     userID,
		WorkflowID: w.ID,
		Kind:       kind,
		Status:     types.ExecutionPending,
		Parameters: raw,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.executions.CreateExecution(ctx, exec); err != nil {
		log.Warn().Err(err).Str("workflow_id", w.ID).Msg("failed to record execution")
		return nil
	}
	if err := s.executions.UpdateExecution(ctx, exec.ID, types.ExecutionRunning, nil, ""); err != nil {
		log.Warn().Err(err).Str("execution_id", exec.ID).Msg("failed to mark execution running")
	}
	return exec
}

func (s *WorkflowService) finishExecution(ctx context.Context, exec *types.Execution, status types.ExecutionStatus, summary any, errMsg string) {
	if exec == nil {
		return
	}
	var raw []byte
	if summary != nil {
		raw, _ = json.Marshal(summary)
	}
	if err := s.executions.UpdateExecution(context.WithoutCancel(ctx), exec.ID, status, raw, errMsg); err != nil {
		log.Warn().Err(err).Str("execution_id", exec.ID).Msg("failed to update execution")
	}
}

// stepSummary drops step payloads so fetched data is never persisted.
func stepSummary(r *types.MultiAppResult) map[string]any {
	steps := make([]types.StepResult, len(r.Steps))
	for i, step := range r.Steps {
		step.Result = nil
		steps[i] = step
	}
	return map[string]any{
		"success":       r.Success,
		"workflow_name": r.WorkflowName,
		"steps":         steps,
	}
}

func mergeParams(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func canRun(w *types.Workflow, userID string) bool {
	if w.UserID == userID {
		return true
	}
	for _, m := range w.Members {
		if m == userID {
			return true
		}
	}
	return false
}
