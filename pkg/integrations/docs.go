package integrations

import (
	"context"
	"fmt"

	"github.com/Gabiro3/blimp2/pkg/integrations/clients"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type docsSearchParams struct {
	Query      string `param:"query"`
	MaxResults int    `param:"max_results" validate:"gte=0,lte=100"`
}

func (p *docsSearchParams) setDefaults() { p.MaxResults = 10 }

type docsCreateParams struct {
	Title   string `param:"title" validate:"required"`
	Content string `param:"content"`
}

type docsAppendParams struct {
	DocumentID string `param:"document_id" validate:"required"`
	Content    string `param:"content" validate:"required"`
}

type docsIDParams struct {
	DocumentID string `param:"document_id" validate:"required"`
}

type docsShareParams struct {
	DocumentID string `param:"document_id" validate:"required"`
	Email      string `param:"email" validate:"required,email"`
	Role       string `param:"role" validate:"oneof=reader commenter writer"`
}

func (p *docsShareParams) setDefaults() { p.Role = "reader" }

type docsHandlers struct {
	docs  *clients.DocsClient
	drive *clients.DriveClient
}

func registerDocs(r *Registry, docs *clients.DocsClient, drive *clients.DriveClient) {
	h := &docsHandlers{docs: docs, drive: drive}
	r.Handle(types.AppGoogleDocs, "search_documents", Typed(h.searchDocuments))
	r.Handle(types.AppGoogleDocs, "create_document", Typed(h.createDocument))
	r.Handle(types.AppGoogleDocs, "append_to_document", Typed(h.appendToDocument))
	r.Handle(types.AppGoogleDocs, "get_document_content", Typed(h.documentContent))
	r.Handle(types.AppGoogleDocs, "share_document", Typed(h.shareDocument))
	r.Handle(types.AppGoogleDocs, "get_document_comments", Typed(h.documentComments))
	r.Handle(types.AppGoogleDocs, "get_recent_documents", Typed(h.recentDocuments))
}

// searchDocuments finds documents whose name contains query.
func (h *docsHandlers) searchDocuments(ctx context.Context, call Call, p *docsSearchParams) (Payload, error) {
	q := fmt.Sprintf("mimeType = '%s' and trashed = false", clients.DocumentMimeType)
	if p.Query != "" {
		q += fmt.Sprintf(" and name contains '%s'", escapeDriveQuery(p.Query))
	}
	files, err := h.drive.ListFiles(ctx, call.Token(), clients.FileQuery{Q: q, PageSize: p.MaxResults, OrderBy: "modifiedTime desc"})
	if err != nil {
		return nil, err
	}
	return Payload{"documents": items(documentItems(files)), "count": len(files)}, nil
}

func (h *docsHandlers) createDocument(ctx context.Context, call Call, p *docsCreateParams) (Payload, error) {
	doc, err := h.docs.CreateDocument(ctx, call.Token(), p.Title)
	if err != nil {
		return nil, err
	}
	docID := str(doc, "documentId")

	if reqs := clients.MarkdownToRequests(p.Content, 1); len(reqs) > 0 {
		if _, err := h.docs.BatchUpdate(ctx, call.Token(), docID, reqs); err != nil {
			return nil, fmt.Errorf("document %s created but content insert failed: %w", docID, err)
		}
	}

	return Payload{
		"document": map[string]any{
			"id":       docID,
			"title":    firstNonEmpty(str(doc, "title"), p.Title),
			"summary":  p.Title,
			"web_link": documentLink(docID),
		},
		"document_id": docID,
		"web_link":    documentLink(docID),
	}, nil
}

func (h *docsHandlers) appendToDocument(ctx context.Context, call Call, p *docsAppendParams) (Payload, error) {
	result, err := h.docs.AppendMarkdown(ctx, call.Token(), p.DocumentID, p.Content)
	if err != nil {
		return nil, err
	}
	result["document_id"] = p.DocumentID
	result["web_link"] = documentLink(p.DocumentID)
	return Payload(result), nil
}

func (h *docsHandlers) documentContent(ctx context.Context, call Call, p *docsIDParams) (Payload, error) {
	doc, err := h.docs.GetDocument(ctx, call.Token(), p.DocumentID)
	if err != nil {
		return nil, err
	}
	return Payload{"document": map[string]any{
		"id":          p.DocumentID,
		"title":       str(doc, "title"),
		"summary":     str(doc, "title"),
		"content":     clients.DocumentText(doc),
		"revision_id": str(doc, "revisionId"),
	}}, nil
}

func (h *docsHandlers) shareDocument(ctx context.Context, call Call, p *docsShareParams) (Payload, error) {
	perm, err := h.drive.ShareFile(ctx, call.Token(), p.DocumentID, p.Email, p.Role)
	if err != nil {
		return nil, err
	}
	return Payload{
		"permission_id": str(perm, "id"),
		"message":       "Document shared with " + p.Email,
	}, nil
}

func (h *docsHandlers) documentComments(ctx context.Context, call Call, p *docsIDParams) (Payload, error) {
	comments, err := h.drive.ListComments(ctx, call.Token(), p.DocumentID)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(comments))
	for _, c := range comments {
		out = append(out, map[string]any{
			"id":          str(c, "id"),
			"document_id": p.DocumentID,
			"summary":     str(c, "content"),
			"content":     str(c, "content"),
			"author":      str(sub(c, "author"), "displayName"),
			"created":     str(c, "createdTime"),
			"resolved":    c["resolved"] == true,
			"reply_count": len(list(c, "replies")),
		})
	}
	return Payload{"comments": items(out), "count": len(out)}, nil
}

func (h *docsHandlers) recentDocuments(ctx context.Context, call Call, p *docsSearchParams) (Payload, error) {
	q := fmt.Sprintf("mimeType = '%s' and trashed = false", clients.DocumentMimeType)
	files, err := h.drive.ListFiles(ctx, call.Token(), clients.FileQuery{Q: q, PageSize: p.MaxResults, OrderBy: "modifiedTime desc"})
	if err != nil {
		return nil, err
	}
	return Payload{"documents": items(documentItems(files)), "count": len(files)}, nil
}

func documentLink(id string) string {
	return "https://docs.google.com/document/d/" + id + "/edit"
}

func documentItems(files []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(files))
	for _, f := range files {
		out = append(out, map[string]any{
			"id":       str(f, "id"),
			"title":    str(f, "name"),
			"summary":  str(f, "name"),
			"modified": str(f, "modifiedTime"),
			"web_link": firstNonEmpty(str(f, "webViewLink"), documentLink(str(f, "id"))),
		})
	}
	return out
}
