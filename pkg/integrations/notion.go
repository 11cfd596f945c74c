package integrations

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Gabiro3/blimp2/pkg/integrations/clients"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type notionCreateParams struct {
	ParentID   string         `param:"parent_id" validate:"required"`
	Title      string         `param:"title" validate:"required"`
	Properties map[string]any `param:"properties"`
	Children   []any          `param:"children"`
}

type notionPageParams struct {
	PageID string `param:"page_id" validate:"required"`
}

type notionUpdateParams struct {
	PageID     string         `param:"page_id" validate:"required"`
	Properties map[string]any `param:"properties" validate:"required"`
}

type notionQueryParams struct {
	DatabaseID string         `param:"database_id" validate:"required"`
	Filter     map[string]any `param:"filter"`
	Sorts      []any          `param:"sorts"`
	PageSize   int            `param:"page_size" validate:"gte=0,lte=100"`
}

func (p *notionQueryParams) setDefaults() { p.PageSize = 100 }

type notionRecentParams struct {
	DatabaseID string `param:"database_id" validate:"required"`
	Days       int    `param:"days" validate:"gte=0,lte=365"`
	PageSize   int    `param:"page_size" validate:"gte=0,lte=100"`
}

func (p *notionRecentParams) setDefaults() { p.Days = 7; p.PageSize = 20 }

type notionSearchParams struct {
	Query    string `param:"query"`
	PageSize int    `param:"page_size" validate:"gte=0,lte=100"`
}

func (p *notionSearchParams) setDefaults() { p.PageSize = 20 }

type notionDatabaseParams struct {
	DatabaseID string `param:"database_id" validate:"required"`
}

type notionHandlers struct {
	client *clients.NotionClient
	now    func() time.Time
}

func registerNotion(r *Registry, client *clients.NotionClient, now func() time.Time) {
	h := &notionHandlers{client: client, now: now}
	r.Handle(types.AppNotion, "create_page", Typed(h.createPage))
	r.Handle(types.AppNotion, "get_page", Typed(h.getPage))
	r.Handle(types.AppNotion, "update_page", Typed(h.updatePage))
	r.Handle(types.AppNotion, "query_database", Typed(h.queryDatabase))
	r.Handle(types.AppNotion, "get_recent_pages", Typed(h.recentPages))
	r.Handle(types.AppNotion, "search_pages", Typed(h.searchPages))
	r.Handle(types.AppNotion, "get_page_content", Typed(h.pageContent))
	r.Handle(types.AppNotion, "get_database_schema", Typed(h.databaseSchema))
}

func (h *notionHandlers) createPage(ctx context.Context, call Call, p *notionCreateParams) (Payload, error) {
	page, err := h.client.CreatePage(ctx, call.Token(), p.ParentID, p.Title, p.Properties, p.Children)
	if err != nil {
		return nil, err
	}
	return Payload{"page": notionPageItem(page)}, nil
}

func (h *notionHandlers) getPage(ctx context.Context, call Call, p *notionPageParams) (Payload, error) {
	page, err := h.client.GetPage(ctx, call.Token(), p.PageID)
	if err != nil {
		return nil, err
	}
	return Payload{"page": notionPageItem(page)}, nil
}

func (h *notionHandlers) updatePage(ctx context.Context, call Call, p *notionUpdateParams) (Payload, error) {
	page, err := h.client.UpdatePage(ctx, call.Token(), p.PageID, p.Properties)
	if err != nil {
		return nil, err
	}
	return Payload{"page": notionPageItem(page)}, nil
}

func (h *notionHandlers) queryDatabase(ctx context.Context, call Call, p *notionQueryParams) (Payload, error) {
	pages, hasMore, err := h.client.QueryDatabase(ctx, call.Token(), p.DatabaseID, p.Filter, p.Sorts, p.PageSize)
	if err != nil {
		return nil, err
	}
	return Payload{"results": items(notionPageItems(pages)), "has_more": hasMore}, nil
}

// recentPages keeps database pages edited within the window, newest first.
func (h *notionHandlers) recentPages(ctx context.Context, call Call, p *notionRecentParams) (Payload, error) {
	sorts := []any{map[string]any{"timestamp": "last_edited_time", "direction": "descending"}}
	pages, _, err := h.client.QueryDatabase(ctx, call.Token(), p.DatabaseID, nil, sorts, p.PageSize)
	if err != nil {
		return nil, err
	}

	threshold := h.now().AddDate(0, 0, -p.Days)
	recent := make([]map[string]any, 0, len(pages))
	for _, page := range pages {
		edited, err := time.Parse(time.RFC3339, str(page, "last_edited_time"))
		if err != nil || edited.Before(threshold) {
			continue
		}
		recent = append(recent, page)
	}
	return Payload{"recent_pages": items(notionPageItems(recent)), "count": len(recent), "days_back": p.Days}, nil
}

func (h *notionHandlers) searchPages(ctx context.Context, call Call, p *notionSearchParams) (Payload, error) {
	pages, err := h.client.Search(ctx, call.Token(), p.Query, p.PageSize)
	if err != nil {
		return nil, err
	}
	return Payload{"pages": items(notionPageItems(pages)), "count": len(pages)}, nil
}

func (h *notionHandlers) pageContent(ctx context.Context, call Call, p *notionPageParams) (Payload, error) {
	page, err := h.client.GetPage(ctx, call.Token(), p.PageID)
	if err != nil {
		return nil, err
	}
	blocks, err := h.client.BlockChildren(ctx, call.Token(), p.PageID, 100)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if text := clients.BlockText(b); text != "" {
			lines = append(lines, text)
		}
	}

	item := notionPageItem(page)
	item["content"] = strings.Join(lines, "\n")
	item["block_count"] = len(blocks)
	return Payload{"page": item}, nil
}

func (h *notionHandlers) databaseSchema(ctx context.Context, call Call, p *notionDatabaseParams) (Payload, error) {
	db, err := h.client.GetDatabase(ctx, call.Token(), p.DatabaseID)
	if err != nil {
		return nil, err
	}

	props := sub(db, "properties")
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	schema := make([]map[string]any, 0, len(names))
	for _, name := range names {
		prop, _ := props[name].(map[string]any)
		schema = append(schema, map[string]any{
			"id":      str(prop, "id"),
			"name":    name,
			"type":    str(prop, "type"),
			"summary": name + " (" + str(prop, "type") + ")",
		})
	}
	return Payload{"schema": items(schema), "database_id": p.DatabaseID, "property_count": len(schema)}, nil
}

func notionPageItems(pages []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(pages))
	for _, p := range pages {
		out = append(out, notionPageItem(p))
	}
	return out
}

func notionPageItem(page map[string]any) map[string]any {
	title := clients.PageTitle(page)
	return map[string]any{
		"id":          str(page, "id"),
		"title":       title,
		"summary":     firstNonEmpty(title, "Untitled"),
		"last_edited": str(page, "last_edited_time"),
		"created":     str(page, "created_time"),
		"url":         str(page, "url"),
	}
}
