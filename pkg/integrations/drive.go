package integrations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Gabiro3/blimp2/pkg/integrations/clients"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type driveListParams struct {
	Query    string `param:"query"`
	PageSize int    `param:"page_size" validate:"gte=0,lte=1000"`
	OrderBy  string `param:"order_by"`
}

func (p *driveListParams) setDefaults() { p.PageSize = 10; p.OrderBy = "modifiedTime desc" }

type driveUploadParams struct {
	FileName    string `param:"file_name" validate:"required"`
	FileContent string `param:"file_content" validate:"required"`
	MimeType    string `param:"mime_type"`
	FolderID    string `param:"folder_id"`
}

func (p *driveUploadParams) setDefaults() { p.MimeType = "text/plain" }

type driveFolderParams struct {
	FolderName     string `param:"folder_name" validate:"required"`
	ParentFolderID string `param:"parent_folder_id"`
}

type driveFileParams struct {
	FileID string `param:"file_id" validate:"required"`
}

type driveRecentParams struct {
	Days       int `param:"days" validate:"gte=0,lte=365"`
	MaxResults int `param:"max_results" validate:"gte=0,lte=1000"`
}

func (p *driveRecentParams) setDefaults() { p.Days = 7; p.MaxResults = 20 }

type driveTypeParams struct {
	FileType   string `param:"file_type" validate:"required,oneof=document spreadsheet presentation pdf image folder"`
	MaxResults int    `param:"max_results" validate:"gte=0,lte=1000"`
}

func (p *driveTypeParams) setDefaults() { p.MaxResults = 20 }

type driveHandlers struct {
	client *clients.DriveClient
	now    func() time.Time
}

func registerDrive(r *Registry, client *clients.DriveClient, now func() time.Time) {
	h := &driveHandlers{client: client, now: now}
	r.Handle(types.AppGoogleDrive, "list_files", Typed(h.listFiles))
	r.Handle(types.AppGoogleDrive, "upload_file", Typed(h.uploadFile))
	r.Handle(types.AppGoogleDrive, "create_folder", Typed(h.createFolder))
	r.Handle(types.AppGoogleDrive, "delete_file", Typed(h.deleteFile))
	r.Handle(types.AppGoogleDrive, "download_file", Typed(h.downloadFile))
	r.Handle(types.AppGoogleDrive, "find_folder", Typed(h.findFolder))
	r.Handle(types.AppGoogleDrive, "get_recent_changes", Typed(h.recentChanges))
	r.Handle(types.AppGoogleDrive, "get_shared_with_me", Typed(h.sharedWithMe))
	r.Handle(types.AppGoogleDrive, "search_files_by_type", Typed(h.searchByType))
}

func (h *driveHandlers) listFiles(ctx context.Context, call Call, p *driveListParams) (Payload, error) {
	files, err := h.client.ListFiles(ctx, call.Token(), clients.FileQuery{
		Q: withoutTrashed(p.Query), PageSize: p.PageSize, OrderBy: p.OrderBy,
	})
	if err != nil {
		return nil, err
	}
	return Payload{"files": items(fileItems(files)), "count": len(files)}, nil
}

func (h *driveHandlers) uploadFile(ctx context.Context, call Call, p *driveUploadParams) (Payload, error) {
	file, err := h.client.UploadFile(ctx, call.Token(), p.FileName, p.MimeType, []byte(p.FileContent), p.FolderID)
	if err != nil {
		return nil, err
	}
	return Payload{"file": fileItem(file)}, nil
}

func (h *driveHandlers) createFolder(ctx context.Context, call Call, p *driveFolderParams) (Payload, error) {
	meta := map[string]any{"name": p.FolderName, "mimeType": clients.FolderMimeType}
	if p.ParentFolderID != "" {
		meta["parents"] = []string{p.ParentFolderID}
	}
	folder, err := h.client.CreateFile(ctx, call.Token(), meta)
	if err != nil {
		return nil, err
	}
	return Payload{"folder": fileItem(folder)}, nil
}

func (h *driveHandlers) deleteFile(ctx context.Context, call Call, p *driveFileParams) (Payload, error) {
	if err := h.client.DeleteFile(ctx, call.Token(), p.FileID); err != nil {
		return nil, err
	}
	return Payload{"file_id": p.FileID}, nil
}

func (h *driveHandlers) downloadFile(ctx context.Context, call Call, p *driveFileParams) (Payload, error) {
	content, err := h.client.DownloadFile(ctx, call.Token(), p.FileID)
	if err != nil {
		return nil, err
	}
	return Payload{"file": map[string]any{"id": p.FileID, "summary": "Downloaded file", "content": content}}, nil
}

// findFolder returns the first folder with an exact name match, or no folder.
func (h *driveHandlers) findFolder(ctx context.Context, call Call, p *driveFolderParams) (Payload, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeDriveQuery(p.FolderName), clients.FolderMimeType)
	files, err := h.client.ListFiles(ctx, call.Token(), clients.FileQuery{Q: q, PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return Payload{"folder": nil}, nil
	}
	return Payload{"folder": fileItem(files[0])}, nil
}

func (h *driveHandlers) recentChanges(ctx context.Context, call Call, p *driveRecentParams) (Payload, error) {
	since := h.now().AddDate(0, 0, -p.Days)
	q := fmt.Sprintf("modifiedTime > '%s' and trashed = false", since.UTC().Format("2006-01-02T15:04:05"))
	files, err := h.client.ListFiles(ctx, call.Token(), clients.FileQuery{Q: q, PageSize: p.MaxResults, OrderBy: "modifiedTime desc"})
	if err != nil {
		return nil, err
	}
	return Payload{"recent_changes": items(fileItems(files)), "count": len(files), "days_back": p.Days}, nil
}

func (h *driveHandlers) sharedWithMe(ctx context.Context, call Call, p *driveRecentParams) (Payload, error) {
	files, err := h.client.ListFiles(ctx, call.Token(), clients.FileQuery{
		Q: "sharedWithMe = true and trashed = false", PageSize: p.MaxResults, OrderBy: "modifiedTime desc",
	})
	if err != nil {
		return nil, err
	}
	return Payload{"shared_files": items(fileItems(files)), "count": len(files)}, nil
}

func (h *driveHandlers) searchByType(ctx context.Context, call Call, p *driveTypeParams) (Payload, error) {
	mimeType := clients.DriveMimeTypes[p.FileType]
	q := fmt.Sprintf("mimeType = '%s' and trashed = false", mimeType)
	if strings.HasSuffix(mimeType, "/") {
		q = fmt.Sprintf("mimeType contains '%s' and trashed = false", mimeType)
	}
	files, err := h.client.ListFiles(ctx, call.Token(), clients.FileQuery{Q: q, PageSize: p.MaxResults, OrderBy: "modifiedTime desc"})
	if err != nil {
		return nil, err
	}
	return Payload{"files": items(fileItems(files)), "file_type": p.FileType, "count": len(files)}, nil
}

func withoutTrashed(q string) string {
	if q == "" {
		return "trashed = false"
	}
	if strings.Contains(q, "trashed") {
		return q
	}
	return "(" + q + ") and trashed = false"
}

func escapeDriveQuery(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}

func fileItems(files []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(files))
	for _, f := range files {
		out = append(out, fileItem(f))
	}
	return out
}

func fileItem(f map[string]any) map[string]any {
	var owner string
	if owners := list(f, "owners"); len(owners) > 0 {
		owner = firstNonEmpty(str(owners[0], "displayName"), str(owners[0], "emailAddress"))
	}
	return map[string]any{
		"id":            str(f, "id"),
		"name":          str(f, "name"),
		"summary":       str(f, "name"),
		"type":          str(f, "mimeType"),
		"size":          str(f, "size"),
		"modified":      str(f, "modifiedTime"),
		"created":       str(f, "createdTime"),
		"web_view_link": str(f, "webViewLink"),
		"owner":         owner,
	}
}
