package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

const DiscordAPIBase = "https://discord.com/api/v10"

// DiscordClient wraps the Discord REST API using a bot token.
type DiscordClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewDiscordClient() *DiscordClient {
	return &DiscordClient{BaseURL: DiscordAPIBase, HTTPClient: newHTTPClient()}
}

func botAuth(token string) authFunc {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bot "+token)
	}
}

func (c *DiscordClient) request(ctx context.Context, token, method, path string, query url.Values, body, out any) error {
	return doJSON(ctx, c.HTTPClient, "discord", method, c.BaseURL+path, query, body, botAuth(token), out)
}

func (c *DiscordClient) SendMessage(ctx context.Context, token, channelID, content string, embeds []any) (map[string]any, error) {
	body := map[string]any{"content": content}
	if len(embeds) > 0 {
		body["embeds"] = embeds
	}
	var result map[string]any
	err := c.request(ctx, token, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/messages", nil, body, &result)
	return result, err
}

func (c *DiscordClient) GetChannel(ctx context.Context, token, channelID string) (map[string]any, error) {
	var result map[string]any
	err := c.request(ctx, token, http.MethodGet, "/channels/"+url.PathEscape(channelID), nil, nil, &result)
	return result, err
}

func (c *DiscordClient) ListMessages(ctx context.Context, token, channelID string, limit int) ([]map[string]any, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var result []map[string]any
	err := c.request(ctx, token, http.MethodGet, "/channels/"+url.PathEscape(channelID)+"/messages", q, nil, &result)
	return result, err
}
