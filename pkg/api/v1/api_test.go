package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gabiro3/blimp2/pkg/auth"
	"github.com/Gabiro3/blimp2/pkg/credentials"
	"github.com/Gabiro3/blimp2/pkg/gateway/services"
	"github.com/Gabiro3/blimp2/pkg/planner"
	"github.com/Gabiro3/blimp2/pkg/repository"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type fakeChat struct {
	planErr  error
	execErr  error
	lastUser string
	lastApp  string
	lastReq  services.ExecuteRequest
	limit    int
}

func (f *fakeChat) PlanQuery(ctx context.Context, userID, query, targetApp, timezone string) (*services.PlanResponse, error) {
	f.lastUser, f.lastApp = userID, targetApp
	if f.planErr != nil {
		return nil, f.planErr
	}
	return &services.PlanResponse{Success: true, App: "gmail", QueryType: types.QueryTypeInformational}, nil
}

func (f *fakeChat) ExecutePlan(ctx context.Context, userID string, req services.ExecuteRequest) (*types.ExecutionResult, error) {
	f.lastUser, f.lastReq = userID, req
	if f.execErr != nil {
		return nil, f.execErr
	}
	return &types.ExecutionResult{Success: true, Answer: "Nothing new today."}, nil
}

func (f *fakeChat) History(ctx context.Context, userID string, limit int) ([]*types.Execution, error) {
	f.lastUser, f.limit = userID, limit
	return []*types.Execution{}, nil
}

type testServer struct {
	e         *echo.Echo
	validator *auth.JWTValidator
}

func newTestServer(t *testing.T, register func(api *echo.Group)) *testServer {
	t.Helper()
	v := auth.NewJWTValidator("secret", "admin-token")
	e := echo.New()
	e.Use(auth.HTTPMiddleware(v))
	api := e.Group(HttpServerBaseRoute)
	api.Use(auth.RequireAuthMiddleware(), NewUserMiddleware())
	register(api)
	return &testServer{e: e, validator: v}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.validator.Issue(userID, "", time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var resp Response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&types.NotConnectedError{App: "gmail"}, http.StatusBadRequest},
		{&types.MissingCredentialsError{App: "gmail"}, http.StatusUnauthorized},
		{&types.MissingParameterError{App: "slack", Function: "send_message", Params: []string{"channel"}}, http.StatusBadRequest},
		{&types.UnsupportedOperationError{App: "slack", Function: "fly"}, http.StatusBadRequest},
		{&types.InvalidResponseError{Stage: "plan"}, http.StatusBadGateway},
		{&types.NotConfiguredError{Service: "llm"}, http.StatusServiceUnavailable},
		{&types.UpstreamFailureError{Service: "gmail", Err: errors.New("500")}, http.StatusBadGateway},
		{&types.UpstreamFailureError{Service: "llm", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{auth.ErrForbidden, http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, StatusFor(tt.err), "%T", tt.err)
	}
}

func TestChatRoutes(t *testing.T) {
	chat := &fakeChat{}
	s := newTestServer(t, func(api *echo.Group) { NewChatGroup(api.Group("/chat"), chat) })
	tok := s.token(t, "u1")

	t.Run("plan", func(t *testing.T) {
		rec, resp := s.do(t, http.MethodPost, "/api/v1/chat/plan", tok, `{"query":"any mail from Simon?","app":"Gmail"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
		assert.Equal(t, "u1", chat.lastUser)
		assert.Equal(t, "Gmail", chat.lastApp)
	})

	t.Run("plan requires app", func(t *testing.T) {
		rec, resp := s.do(t, http.MethodPost, "/api/v1/chat/plan", tok, `{"query":"hi"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "app required", resp.Error)
	})

	t.Run("not connected", func(t *testing.T) {
		chat.planErr = &types.NotConnectedError{App: "notion"}
		defer func() { chat.planErr = nil }()
		rec, resp := s.do(t, http.MethodPost, "/api/v1/chat/plan", tok, `{"query":"hi","app":"notion"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, "notion is not connected. Please connect it first.", resp.Error)
	})

	t.Run("execute", func(t *testing.T) {
		body := `{"query":"q","query_type":"informational","data_fetch_plan":{"app":"gmail","function":"list_messages","parameters":{}}}`
		rec, resp := s.do(t, http.MethodPost, "/api/v1/chat/execute", tok, body)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
		assert.Equal(t, "list_messages", chat.lastReq.DataFetchPlan.Function)
	})

	t.Run("internal errors are masked", func(t *testing.T) {
		chat.execErr = errors.New("pq: connection refused")
		defer func() { chat.execErr = nil }()
		rec, resp := s.do(t, http.MethodPost, "/api/v1/chat/execute", tok, `{"query":"q","query_type":"actionable"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal error", resp.Error)
	})

	t.Run("history limit", func(t *testing.T) {
		rec, _ := s.do(t, http.MethodGet, "/api/v1/chat/history?limit=5", tok, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, chat.limit)

		rec, _ = s.do(t, http.MethodGet, "/api/v1/chat/history?limit=-1", tok, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUserResolution(t *testing.T) {
	chat := &fakeChat{}
	s := newTestServer(t, func(api *echo.Group) { NewChatGroup(api.Group("/chat"), chat) })

	rec, _ := s.do(t, http.MethodGet, "/api/v1/chat/history", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/chat/history?user_id=u2", s.token(t, "u1"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/chat/history?user_id=u2", "admin-token", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u2", chat.lastUser)
}

func TestConnectionRoutes(t *testing.T) {
	backend := repository.NewMemoryBackend()
	provider := credentials.NewProvider(backend, nil)
	s := newTestServer(t, func(api *echo.Group) { NewConnectionsGroup(api.Group("/connections"), provider) })
	tok := s.token(t, "u1")

	rec, _ := s.do(t, http.MethodPut, "/api/v1/connections/Google%20Calendar", tok, `{"access_token":"ya29","expires_in":3600}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := s.do(t, http.MethodGet, "/api/v1/connections", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"apps": []any{"google_calendar"}}, resp.Data)

	cred, err := backend.GetCredential(context.Background(), "u1", "google_calendar")
	require.NoError(t, err)
	require.NotNil(t, cred.ExpiresAt)

	rec, _ = s.do(t, http.MethodPut, "/api/v1/connections/myspace", tok, `{"access_token":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPut, "/api/v1/connections/slack", tok, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/connections/google_calendar", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, resp = s.do(t, http.MethodGet, "/api/v1/connections", tok, "")
	assert.Equal(t, map[string]any{"apps": []any{}}, resp.Data)
}

type noopRunner struct{}

func (noopRunner) RunMultiApp(ctx context.Context, userID string, w *types.Workflow, params map[string]any) (*types.MultiAppResult, error) {
	return &types.MultiAppResult{Success: true, WorkflowName: w.Name}, nil
}

func TestWorkflowRoutes(t *testing.T) {
	backend := repository.NewMemoryBackend()
	svc := services.NewWorkflowService(backend, backend, noopRunner{}, nil, nil)
	s := newTestServer(t, func(api *echo.Group) { NewWorkflowsGroup(api.Group("/workflows"), svc) })
	owner := s.token(t, "owner")

	body := `{"id":"wf_mine","name":"Digest","required_apps":["gmail","slack","notion"],"steps":["read","summarize","post"]}`
	rec, resp := s.do(t, http.MethodPost, "/api/v1/workflows", owner, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := resp.Data.(map[string]any)["id"].(string)
	assert.NotEqual(t, "wf_mine", id)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/workflows", owner, `{"name":"Tiny","required_apps":["gmail","GMAIL"],"steps":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = s.do(t, http.MethodPost, "/api/v1/workflows/"+id+"/run", owner, `{"parameters":{"channel":"#ops"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Digest", resp.Data.(map[string]any)["workflow_name"])

	rec, _ = s.do(t, http.MethodPost, "/api/v1/workflows/"+id+"/run-team", owner, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/workflows/"+id, s.token(t, "stranger"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = s.do(t, http.MethodGet, "/api/v1/workflows", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data, 1)

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/workflows/"+id, owner, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodGet, "/api/v1/workflows/"+id, owner, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type newWorkflowMatcher struct{}

func (newWorkflowMatcher) MatchWorkflow(ctx context.Context, req planner.MatchRequest) (*types.WorkflowMatch, error) {
	return &types.WorkflowMatch{
		IsNew:        true,
		Name:         "Invites to calendar",
		RequiredApps: []string{"gmail", "google_calendar"},
		Steps:        []string{"read invites", "create events"},
	}, nil
}

func TestWorkflowProcessRoute(t *testing.T) {
	backend := repository.NewMemoryBackend()
	svc := services.NewWorkflowService(backend, backend, noopRunner{}, nil, nil, services.WithMatcher(newWorkflowMatcher{}, nil))
	s := newTestServer(t, func(api *echo.Group) { NewWorkflowsGroup(api.Group("/workflows"), svc) })
	owner := s.token(t, "owner")

	rec, resp := s.do(t, http.MethodPost, "/api/v1/workflows/process", owner, `{"prompt":"add meeting invites to my calendar"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["is_new_workflow"])
	assert.Equal(t, []any{"gmail", "google_calendar"}, data["missing_apps"])
	assert.Equal(t, "Invites to calendar", data["workflow"].(map[string]any)["name"])

	rec, _ = s.do(t, http.MethodPost, "/api/v1/workflows/process", owner, `{"prompt":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	unconfigured := services.NewWorkflowService(backend, backend, noopRunner{}, nil, nil)
	s = newTestServer(t, func(api *echo.Group) { NewWorkflowsGroup(api.Group("/workflows"), unconfigured) })
	rec, _ = s.do(t, http.MethodPost, "/api/v1/workflows/process", s.token(t, "owner"), `{"prompt":"anything"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("dial tcp: refused") }

func TestHealth(t *testing.T) {
	e := echo.New()
	NewHealthGroup(e.Group("/ok"), nil, repository.NewMemoryBackend())
	NewHealthGroup(e.Group("/down"), nil, failingPinger{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/down", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "postgres")
}
