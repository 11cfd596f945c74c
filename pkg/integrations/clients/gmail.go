package clients

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	GmailAPIBase = "https://gmail.googleapis.com/gmail/v1"
)

// GmailMessage represents a parsed Gmail message
type GmailMessage struct {
	ID           string
	ThreadID     string
	From         string
	To           string
	Subject      string
	Date         string
	Snippet      string
	Labels       []string
	InternalDate string
	Body         string
}

// ToItem returns the normalized email record handed to the rest of the pipeline.
func (m *GmailMessage) ToItem() map[string]any {
	labels := make([]any, 0, len(m.Labels))
	for _, l := range m.Labels {
		labels = append(labels, l)
	}
	item := map[string]any{
		"id":           m.ID,
		"threadId":     m.ThreadID,
		"subject":      m.Subject,
		"from":         m.From,
		"to":           m.To,
		"date":         m.Date,
		"snippet":      m.Snippet,
		"labelIds":     labels,
		"internalDate": m.InternalDate,
	}
	if m.Body != "" {
		item["body"] = m.Body
	}
	return item
}

// OutgoingEmail is the input for SendMessage and CreateDraft.
type OutgoingEmail struct {
	To      string
	Cc      string
	Bcc     string
	Subject string
	Body    string
	HTML    bool
}

// GmailClient provides shared Gmail API functionality
type GmailClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewGmailClient creates a new Gmail API client
func NewGmailClient() *GmailClient {
	return &GmailClient{
		BaseURL:    GmailAPIBase,
		HTTPClient: newHTTPClient(),
	}
}

// Request makes a request to the Gmail API
func (c *GmailClient) Request(ctx context.Context, token, method, path string, query url.Values, body, result any) error {
	return doJSON(ctx, c.HTTPClient, "gmail", method, c.BaseURL+path, query, body, bearer(token), result)
}

// ListMessages lists message IDs with optional query and label filters.
// It also returns the API's result size estimate.
func (c *GmailClient) ListMessages(ctx context.Context, token, query string, maxResults int, labelIDs []string) ([]string, int, error) {
	q := url.Values{}
	q.Set("maxResults", strconv.Itoa(maxResults))
	if query != "" {
		q.Set("q", query)
	}
	for _, l := range labelIDs {
		q.Add("labelIds", l)
	}

	var result map[string]any
	if err := c.Request(ctx, token, http.MethodGet, "/users/me/messages", q, nil, &result); err != nil {
		return nil, 0, err
	}

	msgs := getSlice(result, "messages")
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if id := getString(m, "id"); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) > maxResults && maxResults > 0 {
		ids = ids[:maxResults]
	}

	estimate := len(ids)
	if v, ok := result["resultSizeEstimate"].(float64); ok {
		estimate = int(v)
	}
	return ids, estimate, nil
}

// GetMessage fetches a single message in the given format
func (c *GmailClient) GetMessage(ctx context.Context, token, msgID, format string) (map[string]any, error) {
	if format == "" {
		format = "full"
	}
	q := url.Values{"format": {format}}
	var result map[string]any
	if err := c.Request(ctx, token, http.MethodGet, "/users/me/messages/"+url.PathEscape(msgID), q, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *GmailClient) SendMessage(ctx context.Context, token string, email OutgoingEmail) (map[string]any, error) {
	body := map[string]any{"raw": BuildRawMessage(email)}
	var result map[string]any
	if err := c.Request(ctx, token, http.MethodPost, "/users/me/messages/send", nil, body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *GmailClient) CreateDraft(ctx context.Context, token string, email OutgoingEmail) (map[string]any, error) {
	body := map[string]any{"message": map[string]any{"raw": BuildRawMessage(email)}}
	var result map[string]any
	if err := c.Request(ctx, token, http.MethodPost, "/users/me/drafts", nil, body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteMessage permanently deletes a message.
func (c *GmailClient) DeleteMessage(ctx context.Context, token, msgID string) error {
	return c.Request(ctx, token, http.MethodDelete, "/users/me/messages/"+url.PathEscape(msgID), nil, nil, nil)
}

func (c *GmailClient) ModifyMessage(ctx context.Context, token, msgID string, add, remove []string) (map[string]any, error) {
	body := map[string]any{}
	if len(add) > 0 {
		body["addLabelIds"] = add
	}
	if len(remove) > 0 {
		body["removeLabelIds"] = remove
	}
	var result map[string]any
	path := fmt.Sprintf("/users/me/messages/%s/modify", url.PathEscape(msgID))
	if err := c.Request(ctx, token, http.MethodPost, path, nil, body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *GmailClient) GetAttachment(ctx context.Context, token, msgID, attachmentID string) (map[string]any, error) {
	var result map[string]any
	path := fmt.Sprintf("/users/me/messages/%s/attachments/%s", url.PathEscape(msgID), url.PathEscape(attachmentID))
	if err := c.Request(ctx, token, http.MethodGet, path, nil, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ParseMessage extracts structured data from a Gmail API response
func (c *GmailClient) ParseMessage(result map[string]any) *GmailMessage {
	return ParseMessage(result)
}

// ParseMessage extracts structured data from a Gmail API response.
// Missing Subject and From headers get the same placeholders the UI shows.
func ParseMessage(result map[string]any) *GmailMessage {
	msg := &GmailMessage{
		ID:           getString(result, "id"),
		ThreadID:     getString(result, "threadId"),
		Snippet:      getString(result, "snippet"),
		InternalDate: getString(result, "internalDate"),
		Subject:      "No Subject",
		From:         "Unknown",
	}

	if labels, ok := result["labelIds"].([]any); ok {
		for _, l := range labels {
			if s, ok := l.(string); ok {
				msg.Labels = append(msg.Labels, s)
			}
		}
	}

	if payload := getMap(result, "payload"); payload != nil {
		for _, hdr := range getSlice(payload, "headers") {
			value := getString(hdr, "value")
			switch getString(hdr, "name") {
			case "From":
				msg.From = value
			case "To":
				msg.To = value
			case "Subject":
				msg.Subject = value
			case "Date":
				msg.Date = value
			}
		}
	}

	msg.Body = ExtractMessageBody(result)
	return msg
}

// ExtractMessageBody extracts the best available text body from a Gmail message,
// trying text/plain first, then falling back to text/html converted to text
func ExtractMessageBody(msg map[string]any) string {
	payload := getMap(msg, "payload")
	if payload == nil {
		return ""
	}

	if plainText := extractMimePartRecursive(payload, "text/plain"); plainText != "" {
		return plainText
	}

	if htmlText := extractMimePartRecursive(payload, "text/html"); htmlText != "" {
		return HTMLToText(htmlText)
	}

	// Single-part messages carry the body on the payload itself
	if body := getMap(payload, "body"); body != nil {
		mimeType := getString(payload, "mimeType")
		if decoded := decodeBodyData(body); decoded != "" {
			if strings.HasPrefix(mimeType, "text/html") {
				return HTMLToText(decoded)
			}
			return decoded
		}
	}

	return ""
}

// extractMimePartRecursive recursively searches for a MIME part with the given type
func extractMimePartRecursive(part map[string]any, targetMimeType string) string {
	if getString(part, "mimeType") == targetMimeType {
		if body := getMap(part, "body"); body != nil {
			return decodeBodyData(body)
		}
	}

	parts := getSlice(part, "parts")

	// First pass: exact match at this level
	for _, subPart := range parts {
		if getString(subPart, "mimeType") == targetMimeType {
			if body := getMap(subPart, "body"); body != nil {
				if decoded := decodeBodyData(body); decoded != "" {
					return decoded
				}
			}
		}
	}

	// Second pass: multipart containers
	for _, subPart := range parts {
		if strings.HasPrefix(getString(subPart, "mimeType"), "multipart/") {
			if result := extractMimePartRecursive(subPart, targetMimeType); result != "" {
				return result
			}
		}
	}

	// Third pass: anything else with nested parts
	for _, subPart := range parts {
		if _, hasParts := subPart["parts"]; hasParts {
			if result := extractMimePartRecursive(subPart, targetMimeType); result != "" {
				return result
			}
		}
	}

	return ""
}

// decodeBodyData decodes the base64url-encoded body data from a Gmail message part
func decodeBodyData(body map[string]any) string {
	data := getString(body, "data")
	if data == "" {
		return ""
	}

	// Gmail uses URL-safe base64, usually without padding
	decoded, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(data)
		if err != nil {
			padded := data
			switch len(data) % 4 {
			case 2:
				padded += "=="
			case 3:
				padded += "="
			}
			decoded, err = base64.URLEncoding.DecodeString(padded)
			if err != nil {
				log.Debug().Err(err).Msg("undecodable gmail body part")
				return ""
			}
		}
	}

	return string(decoded)
}

// BuildRawMessage renders an RFC 2822 message and encodes it the way the
// send and drafts endpoints expect.
func BuildRawMessage(email OutgoingEmail) string {
	var b strings.Builder
	b.WriteString("To: " + email.To + "\r\n")
	if email.Cc != "" {
		b.WriteString("Cc: " + email.Cc + "\r\n")
	}
	if email.Bcc != "" {
		b.WriteString("Bcc: " + email.Bcc + "\r\n")
	}
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", email.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	if email.HTML {
		b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	} else {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(email.Body)
	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}
