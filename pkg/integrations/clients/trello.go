package clients

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const TrelloAPIBase = "https://api.trello.com/1"

// TrelloClient wraps the Trello REST API. Trello authenticates with key and
// token query parameters instead of a header.
type TrelloClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewTrelloClient(apiKey string) *TrelloClient {
	return &TrelloClient{BaseURL: TrelloAPIBase, APIKey: apiKey, HTTPClient: newHTTPClient()}
}

func (c *TrelloClient) request(ctx context.Context, token, method, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	key := c.APIKey
	if key == "" {
		key = token
	}
	query.Set("key", key)
	query.Set("token", token)
	return doJSON(ctx, c.HTTPClient, "trello", method, c.BaseURL+path, query, nil, nil, out)
}

func (c *TrelloClient) ListBoards(ctx context.Context, token string) ([]map[string]any, error) {
	var result []map[string]any
	q := url.Values{"fields": {"id,name,desc,url,dateLastActivity,closed"}}
	err := c.request(ctx, token, http.MethodGet, "/members/me/boards", q, &result)
	return result, err
}

func (c *TrelloClient) BoardLists(ctx context.Context, token, boardID string) ([]map[string]any, error) {
	var result []map[string]any
	err := c.request(ctx, token, http.MethodGet, "/boards/"+url.PathEscape(boardID)+"/lists", nil, &result)
	return result, err
}

func (c *TrelloClient) ListCards(ctx context.Context, token, listID string) ([]map[string]any, error) {
	var result []map[string]any
	err := c.request(ctx, token, http.MethodGet, "/lists/"+url.PathEscape(listID)+"/cards", nil, &result)
	return result, err
}

func (c *TrelloClient) CreateCard(ctx context.Context, token, listID, name, desc, due string, labels []string) (map[string]any, error) {
	q := url.Values{"idList": {listID}, "name": {name}}
	if desc != "" {
		q.Set("desc", desc)
	}
	if due != "" {
		q.Set("due", due)
	}
	if len(labels) > 0 {
		q.Set("idLabels", strings.Join(labels, ","))
	}
	var result map[string]any
	err := c.request(ctx, token, http.MethodPost, "/cards", q, &result)
	return result, err
}

// SearchCards searches card names and descriptions, optionally within one board.
func (c *TrelloClient) SearchCards(ctx context.Context, token, query, boardID string) ([]map[string]any, error) {
	q := url.Values{"query": {query}, "modelTypes": {"cards"}}
	if boardID != "" {
		q.Set("idBoards", boardID)
	}
	var result map[string]any
	if err := c.request(ctx, token, http.MethodGet, "/search", q, &result); err != nil {
		return nil, err
	}
	return getSlice(result, "cards"), nil
}
