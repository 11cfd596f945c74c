package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
)

const (
	DriveAPIBase    = "https://www.googleapis.com/drive/v3"
	DriveUploadBase = "https://www.googleapis.com/upload/drive/v3"

	FolderMimeType   = "application/vnd.google-apps.folder"
	DocumentMimeType = "application/vnd.google-apps.document"

	driveFileFields = "id,name,mimeType,size,modifiedTime,createdTime,webViewLink,owners(displayName,emailAddress),shared"
	maxDownloadSize = 1 << 20
)

// DriveMimeTypes maps the friendly file types accepted by search to Drive MIME types.
var DriveMimeTypes = map[string]string{
	"document":     DocumentMimeType,
	"spreadsheet":  "application/vnd.google-apps.spreadsheet",
	"presentation": "application/vnd.google-apps.presentation",
	"pdf":          "application/pdf",
	"image":        "image/",
	"folder":       FolderMimeType,
}

// FileQuery filters a Drive file listing.
type FileQuery struct {
	Q        string
	PageSize int
	OrderBy  string
}

// DriveClient wraps the Google Drive v3 REST API.
type DriveClient struct {
	BaseURL    string
	UploadURL  string
	HTTPClient *http.Client
}

func NewDriveClient() *DriveClient {
	return &DriveClient{BaseURL: DriveAPIBase, UploadURL: DriveUploadBase, HTTPClient: newHTTPClient()}
}

func (c *DriveClient) request(ctx context.Context, token, method, path string, query url.Values, body, out any) error {
	return doJSON(ctx, c.HTTPClient, "drive", method, c.BaseURL+path, query, body, bearer(token), out)
}

func (c *DriveClient) ListFiles(ctx context.Context, token string, q FileQuery) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("fields", "files("+driveFileFields+")")
	if q.Q != "" {
		params.Set("q", q.Q)
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.OrderBy != "" {
		params.Set("orderBy", q.OrderBy)
	}

	var result map[string]any
	if err := c.request(ctx, token, http.MethodGet, "/files", params, nil, &result); err != nil {
		return nil, err
	}
	return getSlice(result, "files"), nil
}

func (c *DriveClient) GetFile(ctx context.Context, token, fileID string) (map[string]any, error) {
	var result map[string]any
	params := url.Values{"fields": {driveFileFields}}
	err := c.request(ctx, token, http.MethodGet, "/files/"+url.PathEscape(fileID), params, nil, &result)
	return result, err
}

// CreateFile creates a metadata-only file such as a folder.
func (c *DriveClient) CreateFile(ctx context.Context, token string, metadata map[string]any) (map[string]any, error) {
	var result map[string]any
	params := url.Values{"fields": {driveFileFields}}
	err := c.request(ctx, token, http.MethodPost, "/files", params, metadata, &result)
	return result, err
}

// UploadFile performs a multipart upload of metadata plus content.
func (c *DriveClient) UploadFile(ctx context.Context, token, name, mimeType string, content []byte, parentID string) (map[string]any, error) {
	metadata := map[string]any{"name": name}
	if parentID != "" {
		metadata["parents"] = []string{parentID}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := w.CreatePart(metaHeader)
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(part).Encode(metadata); err != nil {
		return nil, err
	}

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	contentHeader := textproto.MIMEHeader{}
	contentHeader.Set("Content-Type", mimeType)
	part, err = w.CreatePart(contentHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	u := c.UploadURL + "/files?uploadType=multipart&fields=" + url.QueryEscape(driveFileFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+w.Boundary())
	bearer(token)(req)

	data, err := sendRaw(c.HTTPClient, "drive", req)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *DriveClient) DeleteFile(ctx context.Context, token, fileID string) error {
	return c.request(ctx, token, http.MethodDelete, "/files/"+url.PathEscape(fileID), nil, nil, nil)
}

// DownloadFile returns a file's content as text. Google-native files are
// exported as plain text. Content beyond 1MB is truncated.
func (c *DriveClient) DownloadFile(ctx context.Context, token, fileID string) (string, error) {
	meta, err := c.GetFile(ctx, token, fileID)
	if err != nil {
		return "", err
	}

	u := c.BaseURL + "/files/" + url.PathEscape(fileID)
	if strings.HasPrefix(getString(meta, "mimeType"), "application/vnd.google-apps.") {
		u += "/export?mimeType=" + url.QueryEscape("text/plain")
	} else {
		u += "?alt=media"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	bearer(token)(req)

	data, err := sendRaw(c.HTTPClient, "drive", req)
	if err != nil {
		return "", err
	}
	if len(data) > maxDownloadSize {
		data = data[:maxDownloadSize]
	}
	return string(data), nil
}

// ShareFile grants role on a file to an email address.
func (c *DriveClient) ShareFile(ctx context.Context, token, fileID, email, role string) (map[string]any, error) {
	body := map[string]any{"type": "user", "role": role, "emailAddress": email}
	var result map[string]any
	params := url.Values{"sendNotificationEmail": {"true"}}
	err := c.request(ctx, token, http.MethodPost, "/files/"+url.PathEscape(fileID)+"/permissions", params, body, &result)
	return result, err
}

func (c *DriveClient) ListComments(ctx context.Context, token, fileID string) ([]map[string]any, error) {
	params := url.Values{"fields": {"comments(id,content,author(displayName),createdTime,resolved,replies(content,author(displayName)))"}}
	var result map[string]any
	if err := c.request(ctx, token, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/comments", params, nil, &result); err != nil {
		return nil, err
	}
	return getSlice(result, "comments"), nil
}
