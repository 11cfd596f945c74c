package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apiv1 "github.com/Gabiro3/blimp2/pkg/api/v1"
	"github.com/Gabiro3/blimp2/pkg/gateway/services"
	"github.com/Gabiro3/blimp2/pkg/types"
)

const defaultRequestTimeout = 3 * time.Minute

// APIError is a non-2xx gateway response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// Client talks to the gateway's HTTP API
type Client struct {
	baseURL string
	token   string
	userID  string
	http    *http.Client
}

// NewClient creates a client. userID is only sent when acting for another
// user with the admin token.
func NewClient(baseURL, token, userID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + apiv1.HttpServerBaseRoute,
		token:   token,
		userID:  userID,
		http:    &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) Plan(ctx context.Context, query, app, timezone string) (*services.PlanResponse, error) {
	var out services.PlanResponse
	err := c.do(ctx, http.MethodPost, "/chat/plan", apiv1.PlanRequest{Query: query, App: app, Timezone: timezone}, &out)
	return &out, err
}

func (c *Client) Execute(ctx context.Context, req services.ExecuteRequest) (*types.ExecutionResult, error) {
	var out types.ExecutionResult
	err := c.do(ctx, http.MethodPost, "/chat/execute", req, &out)
	return &out, err
}

func (c *Client) History(ctx context.Context, limit int) ([]*types.Execution, error) {
	var out []*types.Execution
	err := c.do(ctx, http.MethodGet, "/chat/history?limit="+strconv.Itoa(limit), nil, &out)
	return out, err
}

func (c *Client) Connections(ctx context.Context) ([]string, error) {
	var out struct {
		Apps []string `json:"apps"`
	}
	err := c.do(ctx, http.MethodGet, "/connections", nil, &out)
	return out.Apps, err
}

func (c *Client) Connect(ctx context.Context, app string, req apiv1.StoreCredentialRequest) error {
	return c.do(ctx, http.MethodPut, "/connections/"+url.PathEscape(app), req, nil)
}

func (c *Client) Disconnect(ctx context.Context, app string) error {
	return c.do(ctx, http.MethodDelete, "/connections/"+url.PathEscape(app), nil, nil)
}

func (c *Client) CreateWorkflow(ctx context.Context, w *types.Workflow) (*types.Workflow, error) {
	var out types.Workflow
	err := c.do(ctx, http.MethodPost, "/workflows", w, &out)
	return &out, err
}

// ProcessWorkflow asks the gateway to match prompt against saved workflows,
// saving a new one when nothing fits.
func (c *Client) ProcessWorkflow(ctx context.Context, prompt string, extra map[string]any) (*services.ProcessResult, error) {
	var out services.ProcessResult
	err := c.do(ctx, http.MethodPost, "/workflows/process", apiv1.ProcessWorkflowRequest{Prompt: prompt, Context: extra}, &out)
	return &out, err
}

func (c *Client) ListWorkflows(ctx context.Context) ([]*types.Workflow, error) {
	var out []*types.Workflow
	err := c.do(ctx, http.MethodGet, "/workflows", nil, &out)
	return out, err
}

func (c *Client) GetWorkflow(ctx context.Context, id string) (*types.Workflow, error) {
	var out types.Workflow
	err := c.do(ctx, http.MethodGet, "/workflows/"+url.PathEscape(id), nil, &out)
	return &out, err
}

func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/workflows/"+url.PathEscape(id), nil, nil)
}

func (c *Client) RunWorkflow(ctx context.Context, id string, params map[string]any) (*types.MultiAppResult, error) {
	var out types.MultiAppResult
	err := c.do(ctx, http.MethodPost, "/workflows/"+url.PathEscape(id)+"/run", apiv1.RunWorkflowRequest{Parameters: params}, &out)
	return &out, err
}

func (c *Client) RunTeam(ctx context.Context, id string, params map[string]any) (*types.TeamRunResult, error) {
	var out types.TeamRunResult
	err := c.do(ctx, http.MethodPost, "/workflows/"+url.PathEscape(id)+"/run-team", apiv1.RunWorkflowRequest{Parameters: params}, &out)
	return &out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+c.withUser(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// {success, data, error}; the health check answers {status, error}
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
		Status  string          `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil && resp.StatusCode < 300 {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	if resp.StatusCode >= 300 {
		msg := envelope.Error
		if msg == "" {
			msg = envelope.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil && len(envelope.Data) > 0 {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

func (c *Client) withUser(path string) string {
	if c.userID == "" {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "user_id=" + url.QueryEscape(c.userID)
}
