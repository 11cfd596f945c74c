package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const SlackAPIBase = "https://slack.com/api"

// SlackError is a Web API response with ok=false.
type SlackError struct {
	Method string
	Code   string
}

func (e *SlackError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Code)
}

// SlackClient wraps the Slack Web API.
type SlackClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewSlackClient() *SlackClient {
	return &SlackClient{BaseURL: SlackAPIBase, HTTPClient: newHTTPClient()}
}

// Call invokes a Web API method. Reads go as GET with query params, writes
// as JSON POST. Slack reports failures in the body, not the status.
func (c *SlackClient) Call(ctx context.Context, token, method string, query url.Values, body map[string]any) (map[string]any, error) {
	httpMethod := http.MethodGet
	if body != nil {
		httpMethod = http.MethodPost
	}

	var result map[string]any
	if err := doJSON(ctx, c.HTTPClient, "slack", httpMethod, c.BaseURL+"/"+method, query, body, bearer(token), &result); err != nil {
		return nil, err
	}
	if ok, _ := result["ok"].(bool); !ok {
		code := getString(result, "error")
		if code == "" {
			code = "unknown_error"
		}
		return nil, &SlackError{Method: method, Code: code}
	}
	return result, nil
}

func (c *SlackClient) PostMessage(ctx context.Context, token, channel, text, threadTS string, blocks any) (map[string]any, error) {
	body := map[string]any{"channel": channel, "text": text}
	if threadTS != "" {
		body["thread_ts"] = threadTS
	}
	if blocks != nil {
		body["blocks"] = blocks
	}
	return c.Call(ctx, token, "chat.postMessage", nil, body)
}

func (c *SlackClient) ListChannels(ctx context.Context, token, types string, limit int) ([]map[string]any, error) {
	q := url.Values{"types": {types}, "limit": {strconv.Itoa(limit)}}
	result, err := c.Call(ctx, token, "conversations.list", q, nil)
	if err != nil {
		return nil, err
	}
	return getSlice(result, "channels"), nil
}

func (c *SlackClient) ChannelInfo(ctx context.Context, token, channel string) (map[string]any, error) {
	result, err := c.Call(ctx, token, "conversations.info", url.Values{"channel": {channel}}, nil)
	if err != nil {
		return nil, err
	}
	return getMap(result, "channel"), nil
}

// History returns channel messages newer than oldest (if set), newest first.
func (c *SlackClient) History(ctx context.Context, token, channel string, limit int, oldest string) ([]map[string]any, error) {
	q := url.Values{"channel": {channel}, "limit": {strconv.Itoa(limit)}}
	if oldest != "" {
		q.Set("oldest", oldest)
	}
	result, err := c.Call(ctx, token, "conversations.history", q, nil)
	if err != nil {
		return nil, err
	}
	return getSlice(result, "messages"), nil
}

// SearchMessages returns the matches and the total match count.
func (c *SlackClient) SearchMessages(ctx context.Context, token, query string, count int) ([]map[string]any, int, error) {
	q := url.Values{"query": {query}, "count": {strconv.Itoa(count)}}
	result, err := c.Call(ctx, token, "search.messages", q, nil)
	if err != nil {
		return nil, 0, err
	}
	messages := getMap(result, "messages")
	total := 0
	if v, ok := messages["total"].(float64); ok {
		total = int(v)
	}
	return getSlice(messages, "matches"), total, nil
}

func (c *SlackClient) UserInfo(ctx context.Context, token, userID string) (map[string]any, error) {
	result, err := c.Call(ctx, token, "users.info", url.Values{"user": {userID}}, nil)
	if err != nil {
		return nil, err
	}
	return getMap(result, "user"), nil
}
