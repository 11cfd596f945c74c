package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	NotionAPIBase = "https://api.notion.com/v1"
	NotionVersion = "2022-06-28"
)

// NotionClient wraps the Notion public API.
type NotionClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewNotionClient() *NotionClient {
	return &NotionClient{BaseURL: NotionAPIBase, HTTPClient: newHTTPClient()}
}

func (c *NotionClient) request(ctx context.Context, token, method, path string, query url.Values, body, out any) error {
	auth := func(req *http.Request) {
		bearer(token)(req)
		req.Header.Set("Notion-Version", NotionVersion)
	}
	return doJSON(ctx, c.HTTPClient, "notion", method, c.BaseURL+path, query, body, auth, out)
}

// CreatePage creates a page under a page or, when parentID is prefixed
// with "database", under a database.
func (c *NotionClient) CreatePage(ctx context.Context, token, parentID, title string, properties map[string]any, children []any) (map[string]any, error) {
	props := map[string]any{
		"title": map[string]any{"title": []any{map[string]any{"text": map[string]any{"content": title}}}},
	}
	for k, v := range properties {
		props[k] = v
	}

	parent := map[string]any{"page_id": parentID}
	if strings.HasPrefix(parentID, "database") {
		parent = map[string]any{"database_id": parentID}
	}

	body := map[string]any{"parent": parent, "properties": props}
	if len(children) > 0 {
		body["children"] = children
	}

	var result map[string]any
	err := c.request(ctx, token, http.MethodPost, "/pages", nil, body, &result)
	return result, err
}

func (c *NotionClient) GetPage(ctx context.Context, token, pageID string) (map[string]any, error) {
	var result map[string]any
	err := c.request(ctx, token, http.MethodGet, "/pages/"+url.PathEscape(pageID), nil, nil, &result)
	return result, err
}

func (c *NotionClient) UpdatePage(ctx context.Context, token, pageID string, properties map[string]any) (map[string]any, error) {
	var result map[string]any
	err := c.request(ctx, token, http.MethodPatch, "/pages/"+url.PathEscape(pageID), nil, map[string]any{"properties": properties}, &result)
	return result, err
}

// QueryDatabase returns one page of results and whether more exist.
func (c *NotionClient) QueryDatabase(ctx context.Context, token, databaseID string, filter map[string]any, sorts []any, pageSize int) ([]map[string]any, bool, error) {
	body := map[string]any{"page_size": pageSize}
	if len(filter) > 0 {
		body["filter"] = filter
	}
	if len(sorts) > 0 {
		body["sorts"] = sorts
	}

	var result map[string]any
	if err := c.request(ctx, token, http.MethodPost, "/databases/"+url.PathEscape(databaseID)+"/query", nil, body, &result); err != nil {
		return nil, false, err
	}
	hasMore, _ := result["has_more"].(bool)
	return getSlice(result, "results"), hasMore, nil
}

// Search returns pages whose title matches query.
func (c *NotionClient) Search(ctx context.Context, token, query string, pageSize int) ([]map[string]any, error) {
	body := map[string]any{
		"query":     query,
		"page_size": pageSize,
		"filter":    map[string]any{"property": "object", "value": "page"},
	}
	var result map[string]any
	if err := c.request(ctx, token, http.MethodPost, "/search", nil, body, &result); err != nil {
		return nil, err
	}
	return getSlice(result, "results"), nil
}

func (c *NotionClient) BlockChildren(ctx context.Context, token, blockID string, pageSize int) ([]map[string]any, error) {
	q := url.Values{"page_size": {strconv.Itoa(pageSize)}}
	var result map[string]any
	if err := c.request(ctx, token, http.MethodGet, "/blocks/"+url.PathEscape(blockID)+"/children", q, nil, &result); err != nil {
		return nil, err
	}
	return getSlice(result, "results"), nil
}

func (c *NotionClient) GetDatabase(ctx context.Context, token, databaseID string) (map[string]any, error) {
	var result map[string]any
	err := c.request(ctx, token, http.MethodGet, "/databases/"+url.PathEscape(databaseID), nil, nil, &result)
	return result, err
}

// PageTitle returns the plain text of a page's title property.
func PageTitle(page map[string]any) string {
	for _, raw := range getMap(page, "properties") {
		prop, ok := raw.(map[string]any)
		if !ok || getString(prop, "type") != "title" {
			continue
		}
		var b strings.Builder
		for _, rt := range getSlice(prop, "title") {
			b.WriteString(getString(rt, "plain_text"))
		}
		return b.String()
	}
	return ""
}

// BlockText returns the plain text of a paragraph-like block.
func BlockText(block map[string]any) string {
	content := getMap(block, getString(block, "type"))
	if content == nil {
		return ""
	}
	var b strings.Builder
	for _, rt := range getSlice(content, "rich_text") {
		b.WriteString(getString(rt, "plain_text"))
	}
	return b.String()
}
