package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gabiro3/blimp2/pkg/notify"
	"github.com/Gabiro3/blimp2/pkg/planner"
	"github.com/Gabiro3/blimp2/pkg/repository"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type fakeRunner struct {
	mu     sync.Mutex
	users  []string
	params []map[string]any
	fail   map[string]bool
}

func (r *fakeRunner) RunMultiApp(ctx context.Context, userID string, w *types.Workflow, params map[string]any) (*types.MultiAppResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	r.params = append(r.params, params)

	ok := !r.fail[userID]
	result := &types.MultiAppResult{
		Success:      ok,
		WorkflowName: w.Name,
		Steps: []types.StepResult{
			{Step: 1, App: "gmail", Function: "list_messages", Success: true, Result: map[string]any{"messages": []any{"secret body"}}},
			{Step: 2, App: "slack", Function: "send_message", Success: ok},
		},
	}
	if !ok {
		result.Error = "one or more workflow steps failed"
	}
	return result, nil
}

type memberCreds map[string]bool

func (m memberCreds) GetCredential(ctx context.Context, userID, app string) (*types.Credential, error) {
	if !m[userID] {
		return nil, nil
	}
	return &types.Credential{AccessToken: "t"}, nil
}

type recordingSender struct {
	sent []notify.Message
}

func (s *recordingSender) Send(ctx context.Context, msg notify.Message) (string, error) {
	s.sent = append(s.sent, msg)
	return "id", nil
}

func newWorkflowService(t *testing.T, runner WorkflowRunner, creds CredentialSource, sender notify.Sender) (*WorkflowService, *repository.MemoryBackend) {
	backend := repository.NewMemoryBackend()
	return NewWorkflowService(backend, backend, runner, creds, sender), backend
}

func digest() *types.Workflow {
	return &types.Workflow{
		Name:         "Morning digest",
		RequiredApps: []string{"gmail", "gcalendar", "Slack", "gmail"},
		Steps:        []string{"read mail", "read calendar", "post digest"},
		Parameters:   map[string]any{"channel": "#daily", "limit": 10},
		Schedule:     "0 8 * * 1-5",
		NotifyEmail:  "owner@example.com",
	}
}

func TestCreateWorkflow(t *testing.T) {
	svc, _ := newWorkflowService(t, &fakeRunner{}, nil, nil)

	w, err := svc.CreateWorkflow(context.Background(), "owner", digest())
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID)
	assert.True(t, w.IsActive)
	assert.Equal(t, []string{"gmail", "google_calendar", "slack"}, w.RequiredApps)

	got, err := svc.GetWorkflow(context.Background(), "owner", w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Morning digest", got.Name)

	_, err = svc.GetWorkflow(context.Background(), "stranger", w.ID)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestCreateWorkflowValidation(t *testing.T) {
	svc, _ := newWorkflowService(t, &fakeRunner{}, nil, nil)

	tests := []struct {
		name   string
		mutate func(w *types.Workflow)
	}{
		{"no name", func(w *types.Workflow) { w.Name = " " }},
		{"one app", func(w *types.Workflow) { w.RequiredApps = []string{"gmail", "GMAIL"} }},
		{"no steps", func(w *types.Workflow) { w.Steps = nil }},
		{"bad schedule", func(w *types.Workflow) { w.Schedule = "weekdays at 8" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := digest()
			tt.mutate(w)
			_, err := svc.CreateWorkflow(context.Background(), "owner", w)
			assert.True(t, (&types.InvalidParameterError{}).From(err), "got %v", err)
		})
	}
}

func TestRunMultiAppRecordsAndNotifies(t *testing.T) {
	runner := &fakeRunner{}
	sender := &recordingSender{}
	svc, backend := newWorkflowService(t, runner, nil, sender)

	w, err := svc.CreateWorkflow(context.Background(), "owner", digest())
	require.NoError(t, err)

	result, err := svc.RunMultiApp(context.Background(), "owner", w.ID, map[string]any{"limit": 5})
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Len(t, runner.params, 1)
	assert.Equal(t, map[string]any{"channel": "#daily", "limit": 5}, runner.params[0])

	history, err := backend.ListExecutions(context.Background(), "owner", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.ExecutionCompleted, history[0].Status)
	assert.Equal(t, w.ID, history[0].WorkflowID)
	assert.NotContains(t, string(history[0].Result), "secret body")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"owner@example.com"}, sender.sent[0].To)
	assert.Equal(t, "Workflow completed: Morning digest", sender.sent[0].Subject)
}

func TestRunMultiAppUnknownWorkflow(t *testing.T) {
	svc, _ := newWorkflowService(t, &fakeRunner{}, nil, nil)
	_, err := svc.RunMultiApp(context.Background(), "owner", "wf_missing", nil)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestRunTeam(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"bob": true}}
	sender := &recordingSender{}
	svc, _ := newWorkflowService(t, runner, memberCreds{"alice": true, "bob": true}, sender)

	team := digest()
	team.Members = []string{"alice", "carol", "bob"}
	w, err := svc.CreateWorkflow(context.Background(), "admin", team)
	require.NoError(t, err)

	result, err := svc.RunTeam(context.Background(), w.ID, "admin", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, runner.users, "members run in order, carol skipped")
	assert.False(t, result.Success)
	assert.True(t, result.Results["alice"].Success)
	assert.False(t, result.Results["bob"].Success)
	assert.Equal(t, "No credentials found for gmail", result.Errors["carol"])

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Subject, "(team)")
}

func TestReportRenderFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	sender := &recordingSender{}
	svc, _ := newWorkflowService(t, &fakeRunner{}, nil, sender)

	team := digest()
	team.ID = "wf-team"
	team.Members = []string{"alice"}
	svc.notifyReport(context.Background(), team, func() (notify.Message, error) {
		return notify.Message{}, errors.New("template exploded")
	})

	assert.Empty(t, sender.sent)
	assert.Contains(t, buf.String(), "failed to render workflow report")
	assert.Contains(t, buf.String(), "template exploded")
	assert.Contains(t, buf.String(), `"workflow_id":"wf-team"`)
	assert.Contains(t, buf.String(), `"team":true`)

	buf.Reset()
	team.NotifyEmail = ""
	svc.notifyReport(context.Background(), team, func() (notify.Message, error) {
		t.Fatal("render called without a notify address")
		return notify.Message{}, nil
	})
	assert.Empty(t, buf.String())
}

func TestRunTeamGuards(t *testing.T) {
	svc, _ := newWorkflowService(t, &fakeRunner{}, nil, nil)

	solo, err := svc.CreateWorkflow(context.Background(), "admin", digest())
	require.NoError(t, err)
	_, err = svc.RunTeam(context.Background(), solo.ID, "admin", nil)
	assert.ErrorIs(t, err, ErrNotTeamWorkflow)

	team := digest()
	team.Members = []string{"alice"}
	w, err := svc.CreateWorkflow(context.Background(), "admin", team)
	require.NoError(t, err)
	_, err = svc.RunTeam(context.Background(), w.ID, "alice", nil)
	assert.ErrorIs(t, err, ErrNotWorkflowOwner)
}

type erroringRunner struct{}

func (erroringRunner) RunMultiApp(ctx context.Context, userID string, w *types.Workflow, params map[string]any) (*types.MultiAppResult, error) {
	return nil, errors.New("planner unavailable")
}

func TestRunWorkflowFromScheduler(t *testing.T) {
	svc, backend := newWorkflowService(t, erroringRunner{}, nil, nil)
	w, err := svc.CreateWorkflow(context.Background(), "owner", digest())
	require.NoError(t, err)

	assert.ErrorContains(t, svc.RunWorkflow(context.Background(), w), "planner unavailable")

	history, err := backend.ListExecutions(context.Background(), "owner", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.ExecutionFailed, history[0].Status)
}

type scriptedMatcher struct {
	match *types.WorkflowMatch
	err   error
	got   planner.MatchRequest
}

func (m *scriptedMatcher) MatchWorkflow(ctx context.Context, req planner.MatchRequest) (*types.WorkflowMatch, error) {
	m.got = req
	return m.match, m.err
}

type appList []string

func (a appList) ConnectedApps(ctx context.Context, userID string) ([]string, error) {
	return a, nil
}

func TestProcessPromptCreatesWorkflow(t *testing.T) {
	matcher := &scriptedMatcher{match: &types.WorkflowMatch{
		IsNew:        true,
		Name:         "Attachment saver",
		Description:  "Save attachments to Drive",
		RequiredApps: []string{"gmail", "google_drive"},
		Steps:        []string{"find mail with attachments", "upload them"},
		Category:     "files",
	}}
	backend := repository.NewMemoryBackend()
	svc := NewWorkflowService(backend, backend, &fakeRunner{}, nil, nil, WithMatcher(matcher, appList{"gmail"}))

	result, err := svc.ProcessPrompt(context.Background(), "owner", "  save my attachments to drive ", map[string]any{"source": "cli"})
	require.NoError(t, err)

	assert.True(t, result.IsNew)
	assert.NotEmpty(t, result.Workflow.ID)
	assert.Equal(t, []string{"gmail", "google_drive"}, result.RequiredApps)
	assert.Equal(t, []string{"google_drive"}, result.MissingApps)
	assert.Equal(t, "files", result.Category)

	assert.Equal(t, "save my attachments to drive", matcher.got.Prompt)
	assert.Equal(t, []string{"gmail"}, matcher.got.ConnectedApps)
	assert.Equal(t, "cli", matcher.got.Context["source"])

	saved, err := svc.ListWorkflows(context.Background(), "owner")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Attachment saver", saved[0].Name)
}

func TestProcessPromptMatchesSavedWorkflow(t *testing.T) {
	matcher := &scriptedMatcher{}
	backend := repository.NewMemoryBackend()
	svc := NewWorkflowService(backend, backend, &fakeRunner{}, nil, nil, WithMatcher(matcher, appList{"gmail", "google_calendar", "slack"}))

	w, err := svc.CreateWorkflow(context.Background(), "owner", digest())
	require.NoError(t, err)
	matcher.match = &types.WorkflowMatch{WorkflowID: w.ID, Reasoning: "same digest"}

	result, err := svc.ProcessPrompt(context.Background(), "owner", "send me the morning digest", nil)
	require.NoError(t, err)
	assert.False(t, result.IsNew)
	assert.Equal(t, w.ID, result.Workflow.ID)
	assert.Empty(t, result.MissingApps)
	require.Len(t, matcher.got.Saved, 1)

	saved, err := svc.ListWorkflows(context.Background(), "owner")
	require.NoError(t, err)
	assert.Len(t, saved, 1, "a match does not save another workflow")
}

func TestProcessPromptErrors(t *testing.T) {
	svc, _ := newWorkflowService(t, &fakeRunner{}, nil, nil)
	_, err := svc.ProcessPrompt(context.Background(), "owner", "digest", nil)
	assert.True(t, (&types.NotConfiguredError{}).From(err))

	_, err = svc.ProcessPrompt(context.Background(), "owner", " ", nil)
	assert.True(t, (&types.InvalidParameterError{}).From(err))

	backend := repository.NewMemoryBackend()
	failing := NewWorkflowService(backend, backend, &fakeRunner{}, nil, nil,
		WithMatcher(&scriptedMatcher{err: &types.InvalidResponseError{Stage: "workflow match", Reason: "bad"}}, nil))
	_, err = failing.ProcessPrompt(context.Background(), "owner", "digest", nil)
	assert.True(t, (&types.InvalidResponseError{}).From(err))
}

func TestCreateTwoAppWorkflow(t *testing.T) {
	svc, _ := newWorkflowService(t, &fakeRunner{}, nil, nil)
	w := digest()
	w.RequiredApps = []string{"gmail", "gcalendar"}
	created, err := svc.CreateWorkflow(context.Background(), "owner", w)
	require.NoError(t, err)
	assert.Equal(t, []string{"gmail", "google_calendar"}, created.RequiredApps)
}
