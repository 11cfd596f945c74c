package clients

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf16"
)

const DocsAPIBase = "https://docs.googleapis.com/v1"

var (
	headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	boldRegex    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRegex  = regexp.MustCompile(`\*(.+?)\*`)
)

// DocsClient wraps the Google Docs v1 REST API.
type DocsClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewDocsClient() *DocsClient {
	return &DocsClient{BaseURL: DocsAPIBase, HTTPClient: newHTTPClient()}
}

func (c *DocsClient) request(ctx context.Context, token, method, path string, body, out any) error {
	return doJSON(ctx, c.HTTPClient, "docs", method, c.BaseURL+path, nil, body, bearer(token), out)
}

func (c *DocsClient) CreateDocument(ctx context.Context, token, title string) (map[string]any, error) {
	var result map[string]any
	err := c.request(ctx, token, http.MethodPost, "/documents", map[string]any{"title": title}, &result)
	return result, err
}

func (c *DocsClient) GetDocument(ctx context.Context, token, documentID string) (map[string]any, error) {
	var result map[string]any
	err := c.request(ctx, token, http.MethodGet, "/documents/"+url.PathEscape(documentID), nil, &result)
	return result, err
}

func (c *DocsClient) BatchUpdate(ctx context.Context, token, documentID string, requests []map[string]any) (map[string]any, error) {
	var result map[string]any
	path := "/documents/" + url.PathEscape(documentID) + ":batchUpdate"
	err := c.request(ctx, token, http.MethodPost, path, map[string]any{"requests": requests}, &result)
	return result, err
}

// AppendMarkdown inserts content at the end of the document body.
func (c *DocsClient) AppendMarkdown(ctx context.Context, token, documentID, content string) (map[string]any, error) {
	doc, err := c.GetDocument(ctx, token, documentID)
	if err != nil {
		return nil, err
	}
	requests := MarkdownToRequests(content, DocumentEndIndex(doc))
	if len(requests) == 0 {
		return map[string]any{"message": "No content to append"}, nil
	}
	return c.BatchUpdate(ctx, token, documentID, requests)
}

// DocumentEndIndex returns the index just before the trailing newline of the body.
func DocumentEndIndex(doc map[string]any) int {
	content := getSlice(getMap(doc, "body"), "content")
	if len(content) == 0 {
		return 1
	}
	end, _ := content[len(content)-1]["endIndex"].(float64)
	if end <= 1 {
		return 1
	}
	return int(end) - 1
}

// DocumentText flattens the paragraphs of a document into plain text.
func DocumentText(doc map[string]any) string {
	var b strings.Builder
	for _, el := range getSlice(getMap(doc, "body"), "content") {
		para := getMap(el, "paragraph")
		if para == nil {
			continue
		}
		for _, pe := range getSlice(para, "elements") {
			if run := getMap(pe, "textRun"); run != nil {
				b.WriteString(getString(run, "content"))
			}
		}
	}
	return b.String()
}

// MarkdownToRequests converts markdown-lite text (# headings and **bold**)
// into Docs batchUpdate requests starting at index. Indexes count UTF-16 units.
func MarkdownToRequests(content string, index int) []map[string]any {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var requests []map[string]any
	insert := func(text string) {
		requests = append(requests, map[string]any{
			"insertText": map[string]any{"text": text, "location": map[string]any{"index": index}},
		})
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			insert("\n")
			index++
			continue
		}

		if m := headingRegex.FindStringSubmatch(line); m != nil {
			text := stripInline(strings.TrimSpace(m[2]))
			insert(text + "\n")
			n := utf16Len(text)
			requests = append(requests, map[string]any{
				"updateParagraphStyle": map[string]any{
					"range":          map[string]any{"startIndex": index, "endIndex": index + n},
					"paragraphStyle": map[string]any{"namedStyleType": "HEADING_" + string(rune('0'+len(m[1])))},
					"fields":         "namedStyleType",
				},
			})
			index += n + 1
			continue
		}

		// Bold ranges are measured on the line with earlier markers removed.
		type span struct{ start, end int }
		var bold []span
		removed := 0
		for _, loc := range boldRegex.FindAllStringSubmatchIndex(line, -1) {
			start := utf16Len(line[:loc[0]]) - removed
			inner := utf16Len(line[loc[2]:loc[3]])
			bold = append(bold, span{start, start + inner})
			removed += 4
		}

		text := stripInline(line)
		insert(text + "\n")
		for _, s := range bold {
			requests = append(requests, map[string]any{
				"updateTextStyle": map[string]any{
					"range":     map[string]any{"startIndex": index + s.start, "endIndex": index + s.end},
					"textStyle": map[string]any{"bold": true},
					"fields":    "bold",
				},
			})
		}
		index += utf16Len(text) + 1
	}
	return requests
}

func stripInline(s string) string {
	return italicRegex.ReplaceAllString(boldRegex.ReplaceAllString(s, "$1"), "$1")
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
