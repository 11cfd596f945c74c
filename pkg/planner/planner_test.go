package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gabiro3/blimp2/pkg/llm"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type specMap map[string][]types.FunctionSpec

func (m specMap) Specs(app string) []types.FunctionSpec { return m[app] }

var testSpecs = specMap{
	"gmail": {
		{Name: "list_messages", Description: "List Gmail messages", Kind: types.FunctionKindFetch, Parameters: []types.FunctionParam{{Name: "query", Description: "search"}}},
		{Name: "send_message", Description: "Send a Gmail message", Kind: types.FunctionKindAction},
	},
	"google_calendar": {
		{Name: "list_events", Description: "List events", Kind: types.FunctionKindFetch},
		{Name: "create_event", Description: "Create an event", Kind: types.FunctionKindAction},
	},
	"slack":  {{Name: "send_message", Description: "Post", Kind: types.FunctionKindAction}},
	"notion": {{Name: "create_page", Description: "Create", Kind: types.FunctionKindAction}},
}

type recordingLLM struct {
	response string
	err      error
	requests []llm.Request
}

func (r *recordingLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	r.requests = append(r.requests, req)
	return r.response, r.err
}

func fixedClock() time.Time {
	return time.Date(2024, 11, 18, 14, 30, 0, 0, time.UTC) // a Monday
}

func TestPlanInformational(t *testing.T) {
	fake := &recordingLLM{response: `{
		"query_type": "informational",
		"data_fetch_plan": {"app": "gmail", "function": "list_messages", "parameters": {"query": "from:simon subject:funding", "max_results": 10}, "description": "emails from Simon"},
		"actions": [],
		"reasoning": "search by sender and subject"
	}`}
	p := New(fake, testSpecs, WithClock(fixedClock), WithTemperature(0.2))

	plan, err := p.Plan(context.Background(), PlanRequest{
		Query:         "Has Simon sent me the funding email?",
		TargetApp:     "Gmail",
		ConnectedApps: []string{"Gmail", "gcalendar"},
		Timezone:      "America/New_York",
	})
	require.NoError(t, err)

	assert.Equal(t, types.QueryTypeInformational, plan.QueryType)
	require.NotNil(t, plan.DataFetchPlan)
	assert.Equal(t, "list_messages", plan.DataFetchPlan.Function)
	assert.Equal(t, "from:simon subject:funding", plan.DataFetchPlan.Parameters["query"])

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, llm.FormatJSON, req.Format)
	assert.Equal(t, 0.2, req.Temperature)
	assert.Contains(t, req.System, "Primary App: gmail")
	assert.Contains(t, req.System, "gmail, google_calendar")
	assert.Contains(t, req.System, "2024-11-18T14:30:00Z")
	assert.Contains(t, req.System, "2024-11-18T09:30:00-05:00")
	assert.Contains(t, req.System, "ISO 8601 UTC value with a Z suffix")
	assert.NotContains(t, req.System, "with the user's offset")
	assert.Contains(t, req.System, "Monday")
	assert.Contains(t, req.System, "GMAIL INSTRUCTIONS")
	assert.Contains(t, req.System, `"list_messages"`)
	assert.Contains(t, req.Prompt, "Has Simon sent me the funding email?")
}

func TestPlanConditional(t *testing.T) {
	fake := &recordingLLM{response: `{
		"query_type": "conditional",
		"data_fetch_plan": {"app": "google_calendar", "function": "list_events", "parameters": {"time_min": "2024-11-19T15:00:00Z", "time_max": "2024-11-19T16:00:00Z"}},
		"actions": [{"type": "create_event", "app": "google_calendar", "parameters": {"summary": "Sync"}, "condition": "only_if_available"}],
		"reasoning": "check then book"
	}`}
	plan, err := New(fake, testSpecs, WithClock(fixedClock)).Plan(context.Background(), PlanRequest{
		Query:     "Schedule a sync tomorrow at 3pm if I'm free",
		TargetApp: "gcalendar",
	})
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, "create_event", plan.Actions[0].FunctionName())
	assert.Equal(t, types.ConditionOnlyIfAvailable, plan.Actions[0].Condition)
	assert.Contains(t, fake.requests[0].System, "(UTC)")
}

func TestPlanRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"code fence", "```json\n{\"query_type\": \"informational\"}\n```"},
		{"prose", "Here is the plan: {}"},
		{"trailing object", `{"query_type": "actionable", "actions": [{"type": "send_message", "app": "gmail"}]} {}`},
		{"unknown query type", `{"query_type": "urgent", "actions": []}`},
		{"missing query type", `{"actions": []}`},
		{"non string app", `{"query_type": "informational", "data_fetch_plan": {"app": 7, "function": "list_messages", "parameters": {}}}`},
		{"parameters not object", `{"query_type": "informational", "data_fetch_plan": {"app": "gmail", "function": "list_messages", "parameters": ["x"]}}`},
		{"action without function", `{"query_type": "actionable", "actions": [{"app": "gmail"}]}`},
		{"informational with actions", `{"query_type": "informational", "data_fetch_plan": {"app": "gmail", "function": "list_messages", "parameters": {}}, "actions": [{"type": "send_message", "app": "gmail"}]}`},
		{"conditional without condition", `{"query_type": "conditional", "data_fetch_plan": {"app": "gmail", "function": "list_messages", "parameters": {}}, "actions": [{"type": "send_message", "app": "gmail"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(&recordingLLM{response: tt.response}, testSpecs, WithClock(fixedClock))
			_, err := p.Plan(context.Background(), PlanRequest{Query: "q", TargetApp: "gmail"})
			var invalid *types.InvalidResponseError
			require.ErrorAs(t, err, &invalid)
		})
	}
}

func TestPlanErrors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		_, err := New(nil, testSpecs).Plan(context.Background(), PlanRequest{Query: "q", TargetApp: "gmail"})
		assert.True(t, (&types.NotConfiguredError{}).From(err))
	})

	t.Run("llm failure", func(t *testing.T) {
		fake := &recordingLLM{err: errors.New("503 unavailable")}
		_, err := New(fake, testSpecs).Plan(context.Background(), PlanRequest{Query: "q", TargetApp: "gmail"})
		var upstream *types.UpstreamFailureError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, "llm", upstream.Service)
	})

	t.Run("unknown app", func(t *testing.T) {
		fake := &recordingLLM{}
		_, err := New(fake, testSpecs).Plan(context.Background(), PlanRequest{Query: "q", TargetApp: "myspace"})
		assert.True(t, (&types.UnsupportedOperationError{}).From(err))
		assert.Empty(t, fake.requests)
	})
}

func TestLocationFallsBackToUTC(t *testing.T) {
	p := New(nil, testSpecs)
	assert.Equal(t, time.UTC, p.Location(""))
	assert.Equal(t, time.UTC, p.Location("Mars/Olympus_Mons"))

	loc := p.Location("Europe/Berlin")
	assert.Equal(t, "Europe/Berlin", loc.String())
	assert.Same(t, loc, p.Location("Europe/Berlin"))
}

func TestPlanWorkflow(t *testing.T) {
	fake := &recordingLLM{response: `{
		"function_calls": [
			{"step": 2, "app": "Slack", "function": "send_message", "parameters": {"text": "${step1_output}"}, "depends_on": [1], "uses_output_from": "step_1_output"},
			{"step": 1, "app": "gmail", "function": "list_messages", "parameters": {"query": "is:unread"}, "depends_on": null, "uses_output_from": null}
		],
		"variable_mapping": {"emails": "step_1_output"},
		"reasoning": "read then post"
	}`}
	w := &types.Workflow{Name: "Digest", RequiredApps: []string{"gmail", "slack", "notion"}, Steps: []string{"read", "post"}}

	plan, err := New(fake, testSpecs, WithClock(fixedClock)).PlanWorkflow(context.Background(), w, map[string]any{"channel": "general"})
	require.NoError(t, err)
	require.Len(t, plan.FunctionCalls, 2)

	first := plan.FunctionCalls[0]
	assert.Equal(t, 2, first.Step)
	assert.Equal(t, "slack", first.App)
	assert.Equal(t, []int{1}, first.DependsOn)
	require.NotNil(t, first.UsesOutputFrom)
	assert.Equal(t, 1, *first.UsesOutputFrom)
	assert.Nil(t, plan.FunctionCalls[1].UsesOutputFrom)

	req := fake.requests[0]
	assert.Contains(t, req.System, `"notion"`)
	assert.Contains(t, req.Prompt, "Workflow: Digest")
	assert.Contains(t, req.Prompt, `"channel": "general"`)
}

func TestParseWorkflowPlanRejectsEmpty(t *testing.T) {
	_, err := ParseWorkflowPlan(`{"function_calls": []}`)
	assert.True(t, (&types.InvalidResponseError{}).From(err))

	_, err = ParseWorkflowPlan(`{"function_calls": [{"app": "gmail", "function": "list_messages"}]}`)
	assert.True(t, (&types.InvalidResponseError{}).From(err))
}

func TestMatchWorkflowExisting(t *testing.T) {
	fake := &recordingLLM{response: `{
		"is_new_workflow": false,
		"workflow": {"id": "wf_1", "name": "Meeting invites", "description": "", "required_apps": ["gmail", "gcalendar"], "category": "productivity"},
		"reasoning": "same as the saved invite workflow"
	}`}
	saved := []*types.Workflow{{ID: "wf_1", Name: "Meeting invites", RequiredApps: []string{"gmail", "google_calendar"}, Steps: []string{"read", "book"}}}

	match, err := New(fake, testSpecs).MatchWorkflow(context.Background(), MatchRequest{
		Prompt:        "put meeting emails on my calendar",
		Saved:         saved,
		ConnectedApps: []string{"Gmail"},
		Context:       map[string]any{"source": "cli"},
	})
	require.NoError(t, err)
	assert.False(t, match.IsNew)
	assert.Equal(t, "wf_1", match.WorkflowID)

	req := fake.requests[0]
	assert.Equal(t, llm.FormatJSON, req.Format)
	assert.Contains(t, req.System, `"id": "wf_1"`)
	assert.Contains(t, req.System, "User's Connected Apps: gmail")
	assert.Contains(t, req.System, "create_event: Create an event")
	assert.Contains(t, req.Prompt, "User Request: put meeting emails on my calendar")
	assert.Contains(t, req.Prompt, `{"source":"cli"}`)
}

func TestMatchWorkflowNew(t *testing.T) {
	fake := &recordingLLM{response: `{
		"is_new_workflow": true,
		"workflow": {"id": null, "name": "Attachment saver", "description": "Save attachments to Drive",
			"required_apps": ["Gmail", "gdrive", "gmail"], "steps": ["find mail with attachments", " ", "upload them"], "category": "files"},
		"reasoning": "nothing saved handles attachments"
	}`}

	match, err := New(fake, testSpecs).MatchWorkflow(context.Background(), MatchRequest{Prompt: "save my attachments to drive"})
	require.NoError(t, err)
	assert.True(t, match.IsNew)
	assert.Empty(t, match.WorkflowID)
	assert.Equal(t, []string{"gmail", "google_drive"}, match.RequiredApps)
	assert.Equal(t, []string{"find mail with attachments", "upload them"}, match.Steps)
	assert.Equal(t, "files", match.Category)
	assert.Contains(t, fake.requests[0].System, "User's Connected Apps: None")
}

func TestParseWorkflowMatchRejects(t *testing.T) {
	saved := map[string]bool{"wf_1": true}
	tests := []struct {
		name string
		raw  string
	}{
		{"fenced", "```json\n{}\n```"},
		{"no flag", `{"workflow": {"id": "wf_1"}}`},
		{"no workflow", `{"is_new_workflow": false}`},
		{"unknown id", `{"is_new_workflow": false, "workflow": {"id": "wf_9"}}`},
		{"null id", `{"is_new_workflow": false, "workflow": {"id": null}}`},
		{"no name", `{"is_new_workflow": true, "workflow": {"required_apps": ["gmail", "slack"], "steps": ["a"]}}`},
		{"one app", `{"is_new_workflow": true, "workflow": {"name": "x", "required_apps": ["gmail", "GMAIL"], "steps": ["a"]}}`},
		{"unknown app", `{"is_new_workflow": true, "workflow": {"name": "x", "required_apps": ["gmail", "jira"], "steps": ["a"]}}`},
		{"no steps", `{"is_new_workflow": true, "workflow": {"name": "x", "required_apps": ["gmail", "slack"]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorkflowMatch(tt.raw, saved)
			assert.True(t, (&types.InvalidResponseError{}).From(err), "got %v", err)
		})
	}
}

func TestMatchWorkflowWithoutLLM(t *testing.T) {
	_, err := New(nil, testSpecs).MatchWorkflow(context.Background(), MatchRequest{Prompt: "x"})
	assert.True(t, (&types.NotConfiguredError{}).From(err))
}
