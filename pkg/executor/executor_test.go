package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Gabiro3/blimp2/pkg/integrations"
	"github.com/Gabiro3/blimp2/pkg/llm"
	"github.com/Gabiro3/blimp2/pkg/responder"
	"github.com/Gabiro3/blimp2/pkg/types"
)

func TestMain(m *testing.M) {
	// opencensus (pulled in via genai -> cloud.google.com/go/auth) starts a
	// package-level worker goroutine in init; it is not a leak from this code.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type handlerFunc func(call integrations.Call) (integrations.Payload, error)

type fakeRegistry struct {
	mu       sync.Mutex
	specs    map[string]types.FunctionSpec
	handlers map[string]handlerFunc
	calls    []integrations.Call
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{specs: map[string]types.FunctionSpec{}, handlers: map[string]handlerFunc{}}
}

func (r *fakeRegistry) add(app string, spec types.FunctionSpec, h handlerFunc) {
	r.specs[app+"."+spec.Name] = spec
	r.handlers[app+"."+spec.Name] = h
}

func (r *fakeRegistry) Spec(app, fn string) (types.FunctionSpec, bool) {
	spec, ok := r.specs[app+"."+fn]
	return spec, ok
}

func (r *fakeRegistry) Invoke(ctx context.Context, app, fn string, call integrations.Call) (integrations.Payload, error) {
	h, ok := r.handlers[app+"."+fn]
	if !ok {
		return nil, &types.UnsupportedOperationError{App: app, Function: fn}
	}
	call.App, call.Function = app, fn
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	return h(call)
}

func (r *fakeRegistry) called(app, fn string) []integrations.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integrations.Call
	for _, c := range r.calls {
		if c.App == app && c.Function == fn {
			out = append(out, c)
		}
	}
	return out
}

type fakeCreds map[string]*types.Credential

func (f fakeCreds) GetCredential(ctx context.Context, userID, app string) (*types.Credential, error) {
	return f[app], nil
}

func connected(apps ...string) fakeCreds {
	creds := fakeCreds{}
	for _, app := range apps {
		creds[app] = &types.Credential{AccessToken: "token-" + app}
	}
	return creds
}

type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	requests  []llm.Request
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func gmailRegistry(messages map[string]types.Item, order []string) *fakeRegistry {
	reg := newFakeRegistry()
	reg.add(types.AppGmail, types.FunctionSpec{
		Name: "list_messages", Kind: types.FunctionKindFetch,
		ResultKey: "messages", DataType: types.DataTypeEmail,
	}, func(call integrations.Call) (integrations.Payload, error) {
		stubs := make([]any, 0, len(order))
		for _, id := range order {
			stubs = append(stubs, map[string]any{"id": id, "threadId": "t-" + id})
		}
		return integrations.Payload{"messages": stubs}, nil
	})
	reg.add(types.AppGmail, types.FunctionSpec{
		Name: "get_message", Kind: types.FunctionKindFetch,
		ResultKey: "message", DataType: types.DataTypeEmail, Single: true,
	}, func(call integrations.Call) (integrations.Payload, error) {
		id, _ := call.Params["message_id"].(string)
		msg, ok := messages[id]
		if !ok {
			return nil, &types.UpstreamFailureError{Service: types.AppGmail, Operation: "get_message", Err: errors.New("404")}
		}
		return integrations.Payload{"message": msg}, nil
	})
	return reg
}

func TestExecuteFundingEmailEndToEnd(t *testing.T) {
	reg := gmailRegistry(map[string]types.Item{
		"18c1a2b3": {
			"id":      "18c1a2b3",
			"subject": "Funding round update",
			"from":    "Simon Okafor <simon@example.com>",
			"date":    "2024-11-13",
			"body":    "Term sheet attached. Data room password: hunter2",
		},
	}, []string{"18c1a2b3"})

	model := &scriptedLLM{responses: []string{`{
		"answer": "Yes. Simon sent the funding update on Nov 13 with the term sheet.",
		"confidence": "high",
		"data_found": true,
		"relevant_items": [{"id": "18c1a2b3", "summary": "Funding round update", "sender": "Simon Okafor", "date": "2024-11-13"}],
		"suggested_actions": ["Reply to Simon"]
	}`}}

	ex := New(reg, connected(types.AppGmail), responder.New(model))
	result, err := ex.Execute(context.Background(), ExecuteRequest{
		UserID: "user-1",
		Query:  "Has Simon sent me the funding email?",
		Plan: &types.QueryPlan{
			QueryType: types.QueryTypeInformational,
			DataFetchPlan: &types.DataFetchPlan{
				App:        "gmail",
				Function:   "list_messages",
				Parameters: map[string]any{"query": "from:simon funding", "max_results": 10},
			},
		},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.DataFound)
	assert.Equal(t, types.ConfidenceHigh, result.Confidence)
	assert.Equal(t, types.DataTypeEmail, result.DataType)
	assert.Equal(t, 1, result.ItemCount)
	assert.Empty(t, result.ActionsTaken)
	assert.Nil(t, result.PartialFailure)
	require.Len(t, result.ResourceURLs, 1)
	assert.Equal(t, "https://mail.google.com/mail/u/0/#inbox/18c1a2b3", result.ResourceURLs[0].URL)

	require.Len(t, model.requests, 1)
	prompt := model.requests[0].Prompt
	assert.Contains(t, prompt, "Funding round update")
	assert.Contains(t, prompt, "[REDACTED_PASSWORD]")
	assert.NotContains(t, prompt, "hunter2")

	list := reg.called(types.AppGmail, "list_messages")
	require.Len(t, list, 1)
	assert.Equal(t, "token-gmail", list[0].Credential.AccessToken)
	assert.Equal(t, "user-1", list[0].UserID)
}

func TestGmailDetailsKeepOrderAndDropFailures(t *testing.T) {
	messages := map[string]types.Item{}
	order := []string{"a", "b", "missing", "c", "d", "e", "f"}
	for _, id := range order {
		if id != "missing" {
			messages[id] = types.Item{"id": id, "subject": "subject " + id}
		}
	}
	reg := gmailRegistry(messages, order)
	ex := New(reg, connected(types.AppGmail), nil, WithGmailConcurrency(3))

	spec, _ := reg.Spec(types.AppGmail, "list_messages")
	fetched, err := ex.fetch(context.Background(), "user-1", types.FetchCall{App: types.AppGmail, Function: "list_messages"}, types.Credential{})
	require.NoError(t, err)
	assert.Equal(t, spec.DataType, fetched.dataType)

	ids := make([]string, 0, len(fetched.items))
	for _, item := range fetched.items {
		ids = append(ids, item["id"].(string))
		assert.Contains(t, item, "subject", "details replace the id stubs")
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, ids)
	assert.Len(t, reg.called(types.AppGmail, "get_message"), len(order))

	require.Len(t, fetched.errors, 1)
	assert.Equal(t, "missing", fetched.errors[0].ID)
	assert.Contains(t, fetched.errors[0].Error, "404")
}

func TestExecuteReportsFetchErrors(t *testing.T) {
	reg := gmailRegistry(map[string]types.Item{
		"a": {"id": "a", "subject": "Invoice 1"},
	}, []string{"a", "gone"})
	model := &scriptedLLM{responses: []string{`{"answer": "One invoice.", "confidence": "medium", "relevant_items": []}`}}
	ex := New(reg, connected(types.AppGmail), responder.New(model))

	result, err := ex.Execute(context.Background(), ExecuteRequest{
		UserID: "u",
		Query:  "any invoices?",
		Plan: &types.QueryPlan{
			QueryType:     types.QueryTypeInformational,
			DataFetchPlan: &types.DataFetchPlan{App: "gmail", Function: "list_messages"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ItemCount)
	require.Len(t, result.FetchErrors, 1)
	assert.Equal(t, "gone", result.FetchErrors[0].ID)
	assert.NotEmpty(t, result.FetchErrors[0].Error)
}

func TestActionResultsRedactedBeforeAnswer(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(types.AppSlack, types.FunctionSpec{Name: "send_message", Kind: types.FunctionKindAction},
		func(call integrations.Call) (integrations.Payload, error) {
			return integrations.Payload{
				"ts":      "1731499200.000100",
				"message": map[string]any{"text": call.Params["text"]},
			}, nil
		})

	model := &scriptedLLM{responses: []string{`{"answer": "Posted to #ops.", "confidence": "high", "relevant_items": []}`}}
	ex := New(reg, connected(types.AppSlack), responder.New(model))

	result, err := ex.Execute(context.Background(), ExecuteRequest{
		UserID: "u",
		Query:  "tell #ops the staging password",
		Plan: &types.QueryPlan{
			QueryType: types.QueryTypeActionable,
			Actions: []types.ActionStep{
				{Type: "send_message", App: "slack", Parameters: map[string]any{"channel": "#ops", "text": "staging password: hunter2"}},
			},
		},
	})
	require.NoError(t, err)

	require.Len(t, model.requests, 1)
	prompt := model.requests[0].Prompt
	assert.Contains(t, prompt, "[REDACTED_PASSWORD]")
	assert.NotContains(t, prompt, "hunter2")

	// The caller still gets the raw result.
	require.Len(t, result.ActionsTaken, 1)
	msg := result.ActionsTaken[0].Result["message"].(map[string]any)
	assert.Equal(t, "staging password: hunter2", msg["text"])
}

func TestNormalize(t *testing.T) {
	listSpec := types.FunctionSpec{Name: "list", ResultKey: "files"}

	t.Run("missing key is empty", func(t *testing.T) {
		items, err := normalize(listSpec, integrations.Payload{"other": 1})
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("typed list", func(t *testing.T) {
		items, err := normalize(listSpec, integrations.Payload{"files": []map[string]any{{"id": "1"}, {"id": "2"}}})
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("single", func(t *testing.T) {
		items, err := normalize(types.FunctionSpec{Name: "get", ResultKey: "event", Single: true}, integrations.Payload{"event": map[string]any{"id": "e1"}})
		require.NoError(t, err)
		assert.Equal(t, []types.Item{{"id": "e1"}}, items)
	})

	t.Run("wrong shape", func(t *testing.T) {
		_, err := normalize(listSpec, integrations.Payload{"files": "nope"})
		assert.Error(t, err)
	})
}

func calendarRegistry(events []any) *fakeRegistry {
	reg := newFakeRegistry()
	reg.add(types.AppGoogleCalendar, types.FunctionSpec{
		Name: "list_events", Kind: types.FunctionKindFetch,
		ResultKey: "events", DataType: types.DataTypeEvent,
	}, func(call integrations.Call) (integrations.Payload, error) {
		return integrations.Payload{"events": events}, nil
	})
	reg.add(types.AppGoogleCalendar, types.FunctionSpec{
		Name: "create_event", Kind: types.FunctionKindAction,
	}, func(call integrations.Call) (integrations.Payload, error) {
		return integrations.Payload{"event": map[string]any{"id": "new-event"}}, nil
	})
	return reg
}

func conditionalPlan() *types.QueryPlan {
	return &types.QueryPlan{
		QueryType: types.QueryTypeConditional,
		DataFetchPlan: &types.DataFetchPlan{
			App:        "google_calendar",
			Function:   "list_events",
			Parameters: map[string]any{"time_min": "2024-11-19T15:00:00Z", "time_max": "2024-11-19T16:00:00Z"},
		},
		Actions: []types.ActionStep{{
			Type:       "create_event",
			App:        "google_calendar",
			Parameters: map[string]any{"summary": "Sync", "start_time": "2024-11-19T15:00:00Z"},
			Condition:  types.ConditionOnlyIfAvailable,
		}},
	}
}

func TestConditionalActionSkippedOnConflict(t *testing.T) {
	reg := calendarRegistry([]any{map[string]any{"id": "busy", "summary": "Dentist"}})
	model := &scriptedLLM{responses: []string{`{"answer": "You are busy then.", "confidence": "high", "relevant_items": [{"id": "busy", "summary": "Dentist"}]}`}}
	ex := New(reg, connected(types.AppGoogleCalendar), responder.New(model))

	result, err := ex.Execute(context.Background(), ExecuteRequest{UserID: "u", Query: "book 3pm if free", Plan: conditionalPlan()})
	require.NoError(t, err)

	require.Len(t, result.ActionsTaken, 1)
	action := result.ActionsTaken[0]
	assert.True(t, action.Skipped)
	assert.False(t, action.Success)
	assert.Equal(t, "Time slot not available - conflicts found", action.Reason)
	assert.Empty(t, reg.called(types.AppGoogleCalendar, "create_event"))
	assert.Nil(t, result.PartialFailure)
}

func TestConditionalActionRunsWhenFree(t *testing.T) {
	reg := calendarRegistry([]any{})
	model := &scriptedLLM{responses: []string{`{"answer": "Booked.", "confidence": "high", "relevant_items": []}`}}
	ex := New(reg, connected(types.AppGoogleCalendar), responder.New(model))

	result, err := ex.Execute(context.Background(), ExecuteRequest{UserID: "u", Query: "book 3pm if free", Plan: conditionalPlan()})
	require.NoError(t, err)

	require.Len(t, result.ActionsTaken, 1)
	assert.True(t, result.ActionsTaken[0].Success)
	assert.Equal(t, map[string]any{"event": map[string]any{"id": "new-event"}}, result.ActionsTaken[0].Result)
	assert.Len(t, reg.called(types.AppGoogleCalendar, "create_event"), 1)
	assert.False(t, result.DataFound)
}

func TestPartialActionFailureIsolation(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(types.AppSlack, types.FunctionSpec{Name: "send_message", Kind: types.FunctionKindAction},
		func(call integrations.Call) (integrations.Payload, error) {
			return nil, &types.UpstreamFailureError{Service: types.AppSlack, Operation: "send_message", Err: errors.New("channel_not_found")}
		})
	reg.add(types.AppGmail, types.FunctionSpec{Name: "send_message", Kind: types.FunctionKindAction},
		func(call integrations.Call) (integrations.Payload, error) {
			return integrations.Payload{"message_id": "sent-" + call.Params["to"].(string)}, nil
		})

	model := &scriptedLLM{responses: []string{`{"answer": "Emailed Sarah and Tom; the Slack post failed.", "confidence": "medium", "relevant_items": []}`}}
	ex := New(reg, connected(types.AppSlack, types.AppGmail), responder.New(model))

	result, err := ex.Execute(context.Background(), ExecuteRequest{
		UserID: "u",
		Query:  "email Sarah, tell #general, email Tom",
		Plan: &types.QueryPlan{
			QueryType: types.QueryTypeActionable,
			Actions: []types.ActionStep{
				{Type: "send_message", App: "gmail", Parameters: map[string]any{"to": "sarah@example.com", "subject": "hi", "body": "hi"}},
				{Type: "send_message", App: "slack", Parameters: map[string]any{"channel": "#general", "text": "hi"}},
				{Type: "send_message", App: "gmail", Parameters: map[string]any{"to": "tom@example.com", "subject": "hi", "body": "hi"}},
			},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Len(t, result.ActionsTaken, 3)
	assert.True(t, result.ActionsTaken[0].Success)
	assert.False(t, result.ActionsTaken[1].Success)
	assert.Contains(t, result.ActionsTaken[1].Error, "channel_not_found")
	assert.True(t, result.ActionsTaken[2].Success)
	assert.Equal(t, "sent-tom@example.com", result.ActionsTaken[2].Result["message_id"])

	require.NotNil(t, result.PartialFailure)
	assert.Equal(t, 2, result.PartialFailure.Succeeded)
	assert.Equal(t, 1, result.PartialFailure.Failed)
	assert.Len(t, result.PartialFailure.Errors, 1)

	assert.Contains(t, model.requests[0].Prompt, "Actions Taken")
}

func TestActionMissingCredentialIsRecorded(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(types.AppGmail, types.FunctionSpec{Name: "send_message", Kind: types.FunctionKindAction},
		func(call integrations.Call) (integrations.Payload, error) { return integrations.Payload{}, nil })
	reg.add(types.AppSlack, types.FunctionSpec{Name: "send_message", Kind: types.FunctionKindAction},
		func(call integrations.Call) (integrations.Payload, error) { return integrations.Payload{}, nil })

	ex := New(reg, connected(types.AppGmail), nil)
	results := ex.runActions(context.Background(), ExecuteRequest{
		UserID: "u",
		Plan: &types.QueryPlan{
			QueryType: types.QueryTypeActionable,
			Actions: []types.ActionStep{
				{Type: "send_message", App: "gmail"},
				{Type: "send_message", App: "slack"},
			},
		},
	}, credentialCache{}, nil)

	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "slack")
	assert.Empty(t, reg.called(types.AppSlack, "send_message"))
}

func TestExecuteMissingCredentials(t *testing.T) {
	reg := calendarRegistry(nil)
	ex := New(reg, fakeCreds{}, responder.New(&scriptedLLM{}))

	_, err := ex.Execute(context.Background(), ExecuteRequest{UserID: "u", Plan: conditionalPlan()})
	assert.True(t, (&types.MissingCredentialsError{}).From(err))
	assert.Empty(t, reg.calls)
}

type failingCreds struct{}

func (failingCreds) GetCredential(ctx context.Context, userID, app string) (*types.Credential, error) {
	return nil, errors.New("connection refused")
}

func TestExecuteCredentialLookupFailure(t *testing.T) {
	ex := New(calendarRegistry(nil), failingCreds{}, nil)
	_, err := ex.Execute(context.Background(), ExecuteRequest{UserID: "u", Plan: conditionalPlan()})

	var upstream *types.UpstreamFailureError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "credentials", upstream.Operation)
}

func TestExecuteRejectsInvalidPlan(t *testing.T) {
	ex := New(newFakeRegistry(), fakeCreds{}, nil)
	_, err := ex.Execute(context.Background(), ExecuteRequest{Plan: &types.QueryPlan{QueryType: "maybe"}})
	assert.True(t, (&types.InvalidResponseError{}).From(err))
}

func TestExecuteUnknownFetchFunction(t *testing.T) {
	ex := New(newFakeRegistry(), connected(types.AppGmail), nil)
	_, err := ex.Execute(context.Background(), ExecuteRequest{Plan: &types.QueryPlan{
		QueryType:     types.QueryTypeInformational,
		DataFetchPlan: &types.DataFetchPlan{App: "gmail", Function: "read_minds"},
	}})
	assert.True(t, (&types.UnsupportedOperationError{}).From(err))
}

func TestPartialFailureCounts(t *testing.T) {
	assert.Nil(t, partialFailure(nil))
	assert.Nil(t, partialFailure([]types.ActionResult{{Success: true}, {Success: true}}))
	assert.Nil(t, partialFailure([]types.ActionResult{{Error: "x"}}))

	pf := partialFailure([]types.ActionResult{{Success: true}, {Skipped: true}})
	require.NotNil(t, pf)
	assert.Equal(t, 1, pf.Skipped)
	assert.Empty(t, pf.Errors)
}

func docsRegistry(found []any) *fakeRegistry {
	reg := newFakeRegistry()
	reg.add(types.AppGoogleDocs, types.FunctionSpec{Name: "create_document", Kind: types.FunctionKindAction},
		func(call integrations.Call) (integrations.Payload, error) {
			return integrations.Payload{
				"document_id": "doc-new",
				"web_link":    "https://docs.google.com/document/d/doc-new/edit",
			}, nil
		})
	reg.add(types.AppGoogleDocs, types.FunctionSpec{
		Name: "search_documents", Kind: types.FunctionKindFetch,
		ResultKey: "documents", DataType: types.DataTypeDocument,
	}, func(call integrations.Call) (integrations.Payload, error) {
		return integrations.Payload{"documents": found, "count": len(found)}, nil
	})
	reg.add(types.AppGoogleDocs, types.FunctionSpec{Name: "append_to_document", Kind: types.FunctionKindAction},
		func(call integrations.Call) (integrations.Payload, error) {
			id, _ := call.Params["document_id"].(string)
			return integrations.Payload{"document_id": id, "web_link": "https://docs.google.com/document/d/" + id + "/edit"}, nil
		})
	return reg
}

func researchPlan(params map[string]any) *types.QueryPlan {
	return &types.QueryPlan{
		QueryType: types.QueryTypeActionable,
		DataFetchPlan: &types.DataFetchPlan{
			App:        "google_docs",
			Function:   types.FunctionGenerateAndInsert,
			Parameters: params,
		},
	}
}

const researchBody = "## Solid-state batteries\n\nSolid-state cells replace the liquid electrolyte.\n\n## References\n\n1. Example"

func TestGenerateAndInsertCreatesDocument(t *testing.T) {
	reg := docsRegistry(nil)
	research := &scriptedLLM{responses: []string{researchBody}}
	ex := New(reg, connected(types.AppGoogleDocs), nil, WithResearch(research, 0.6, 3000))

	result, err := ex.Execute(context.Background(), ExecuteRequest{
		UserID: "u",
		Query:  "research solid-state batteries into a new doc",
		Plan:   researchPlan(map[string]any{"research_topic": "solid-state batteries"}),
	})
	require.NoError(t, err)

	created := reg.called(types.AppGoogleDocs, "create_document")
	require.Len(t, created, 1)
	assert.Equal(t, "Research: solid-state batteries", created[0].Params["title"])
	assert.Equal(t, researchBody, created[0].Params["content"])

	assert.Equal(t, 0.6, research.requests[0].Temperature)
	assert.Equal(t, 3000, research.requests[0].MaxTokens)
	assert.Equal(t, llm.FormatText, research.requests[0].Format)

	assert.True(t, result.DataFound)
	assert.Equal(t, types.ConfidenceHigh, result.Confidence)
	assert.Equal(t, types.DataTypeDocument, result.DataType)
	assert.Equal(t, []string{"Open the document to review"}, result.SuggestedActions)
	require.Len(t, result.RelevantItems, 1)
	assert.Equal(t, "doc-new", result.RelevantItems[0]["id"])
	require.Len(t, result.ResourceURLs, 1)
	assert.Equal(t, "https://docs.google.com/document/d/doc-new/edit", result.ResourceURLs[0].URL)
	require.Len(t, result.ActionsTaken, 1)
	assert.Equal(t, "create_document", result.ActionsTaken[0].Action)
}

func TestGenerateAndInsertAppendsToExisting(t *testing.T) {
	reg := docsRegistry([]any{map[string]any{"id": "doc-7", "title": "Battery notes"}})
	ex := New(reg, connected(types.AppGoogleDocs), nil, WithResearch(&scriptedLLM{responses: []string{researchBody}}, 0, 0))

	result, err := ex.Execute(context.Background(), ExecuteRequest{
		UserID: "u",
		Plan: researchPlan(map[string]any{
			"research_topic": "solid-state batteries",
			"action":         "append_to_existing",
			"document_name":  "Battery notes",
		}),
	})
	require.NoError(t, err)

	search := reg.called(types.AppGoogleDocs, "search_documents")
	require.Len(t, search, 1)
	assert.Equal(t, "Battery notes", search[0].Params["query"])

	appended := reg.called(types.AppGoogleDocs, "append_to_document")
	require.Len(t, appended, 1)
	assert.Equal(t, "doc-7", appended[0].Params["document_id"])
	content := appended[0].Params["content"].(string)
	assert.True(t, strings.HasPrefix(content, "\n\n## Research about solid-state batteries"))
	assert.Contains(t, content, researchBody)

	assert.Contains(t, result.Answer, "Battery notes")
	assert.Equal(t, "append_to_document", result.ActionsTaken[0].Action)
}

func TestGenerateAndInsertDocumentNotFound(t *testing.T) {
	reg := docsRegistry([]any{})
	ex := New(reg, connected(types.AppGoogleDocs), nil, WithResearch(&scriptedLLM{responses: []string{researchBody}}, 0, 0))

	_, err := ex.Execute(context.Background(), ExecuteRequest{
		UserID: "u",
		Plan: researchPlan(map[string]any{
			"research_topic": "batteries",
			"action":         "append_to_existing",
			"document_name":  "Nowhere",
		}),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nowhere")
	assert.Empty(t, reg.called(types.AppGoogleDocs, "append_to_document"))
}

func TestGenerateAndInsertWithoutResearchClient(t *testing.T) {
	ex := New(docsRegistry(nil), connected(types.AppGoogleDocs), nil)
	_, err := ex.Execute(context.Background(), ExecuteRequest{
		UserID: "u",
		Plan:   researchPlan(map[string]any{"research_topic": "batteries"}),
	})
	assert.True(t, (&types.NotConfiguredError{}).From(err))
}

func TestGenerateAndInsertOnlyForGoogleDocs(t *testing.T) {
	for _, app := range []string{types.AppSlack, types.AppGmail, types.AppNotion} {
		t.Run(app, func(t *testing.T) {
			reg := docsRegistry(nil)
			research := &scriptedLLM{responses: []string{researchBody}}
			ex := New(reg, connected(app, types.AppGoogleDocs), nil, WithResearch(research, 0, 0))

			plan := researchPlan(map[string]any{"research_topic": "batteries"})
			plan.DataFetchPlan.App = app

			_, err := ex.Execute(context.Background(), ExecuteRequest{UserID: "u", Plan: plan})
			assert.True(t, (&types.UnsupportedOperationError{}).From(err), "got %v", err)
			assert.Empty(t, research.requests)
			assert.Empty(t, reg.called(types.AppGoogleDocs, "create_document"))
		})
	}
}
