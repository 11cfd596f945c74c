package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractMimePartRecursive(t *testing.T) {
	t.Run("direct match", func(t *testing.T) {
		part := map[string]any{
			"mimeType": "text/plain",
			"body": map[string]any{
				"data": "SGVsbG8gV29ybGQh", // "Hello World!" in base64
			},
		}
		result := extractMimePartRecursive(part, "text/plain")
		if result != "Hello World!" {
			t.Errorf("Expected 'Hello World!', got '%s'", result)
		}
	})

	t.Run("multipart alternative", func(t *testing.T) {
		part := map[string]any{
			"mimeType": "multipart/alternative",
			"parts": []any{
				map[string]any{
					"mimeType": "text/plain",
					"body": map[string]any{
						"data": "UGxhaW4gdGV4dCBib2R5", // "Plain text body"
					},
				},
				map[string]any{
					"mimeType": "text/html",
					"body": map[string]any{
						"data": "PGh0bWw-PC9odG1sPg",
					},
				},
			},
		}
		result := extractMimePartRecursive(part, "text/plain")
		if result != "Plain text body" {
			t.Errorf("Expected 'Plain text body', got '%s'", result)
		}
	})

	t.Run("nested multipart", func(t *testing.T) {
		part := map[string]any{
			"mimeType": "multipart/mixed",
			"parts": []any{
				map[string]any{
					"mimeType": "multipart/alternative",
					"parts": []any{
						map[string]any{
							"mimeType": "text/plain",
							"body": map[string]any{
								"data": "TmVzdGVkIHBsYWluIHRleHQ=", // "Nested plain text", padded
							},
						},
					},
				},
				map[string]any{
					"mimeType": "application/pdf",
					"body":     map[string]any{"attachmentId": "att-1"},
				},
			},
		}
		result := extractMimePartRecursive(part, "text/plain")
		if result != "Nested plain text" {
			t.Errorf("Expected 'Nested plain text', got '%s'", result)
		}
	})

	t.Run("no match", func(t *testing.T) {
		part := map[string]any{
			"mimeType": "multipart/mixed",
			"parts": []any{
				map[string]any{"mimeType": "image/png", "body": map[string]any{"attachmentId": "x"}},
			},
		}
		if result := extractMimePartRecursive(part, "text/plain"); result != "" {
			t.Errorf("Expected empty string, got '%s'", result)
		}
	})
}

func TestExtractMessageBodyFallsBackToHTML(t *testing.T) {
	msg := map[string]any{
		"payload": map[string]any{
			"mimeType": "multipart/alternative",
			"parts": []any{
				map[string]any{
					"mimeType": "text/html",
					"body": map[string]any{
						"data": "PGh0bWw-PGhlYWQ-PHN0eWxlPnB7Y29sb3I6cmVkfTwvc3R5bGU-PC9oZWFkPjxib2R5PjxwPkhlbGxvIDxiPnRoZXJlPC9iPjwvcD48c2NyaXB0PmFsZXJ0KDEpPC9zY3JpcHQ-PC9ib2R5PjwvaHRtbD4",
					},
				},
			},
		},
	}

	body := ExtractMessageBody(msg)
	if !strings.Contains(body, "Hello") || !strings.Contains(body, "there") {
		t.Errorf("Expected converted html text, got '%s'", body)
	}
	if strings.Contains(body, "alert") || strings.Contains(body, "color:red") {
		t.Errorf("Expected script and style to be dropped, got '%s'", body)
	}
}

func TestExtractMessageBodySinglePart(t *testing.T) {
	msg := map[string]any{
		"payload": map[string]any{
			"mimeType": "text/plain",
			"body":     map[string]any{"data": "SGkgdGVhbSwgdGhlIHRlcm0gc2hlZXQgaXMgYXR0YWNoZWQu"},
		},
	}
	if body := ExtractMessageBody(msg); body != "Hi team, the term sheet is attached." {
		t.Errorf("Unexpected body '%s'", body)
	}
	if body := ExtractMessageBody(map[string]any{}); body != "" {
		t.Errorf("Expected empty body without payload, got '%s'", body)
	}
}

func TestParseMessage(t *testing.T) {
	raw := map[string]any{
		"id":           "18c1",
		"threadId":     "t-1",
		"snippet":      "Funding round update",
		"internalDate": "1700000000000",
		"labelIds":     []any{"INBOX", "UNREAD"},
		"payload": map[string]any{
			"mimeType": "text/plain",
			"headers": []any{
				map[string]any{"name": "From", "value": "Simon <simon@example.com>"},
				map[string]any{"name": "To", "value": "me@example.com"},
				map[string]any{"name": "Subject", "value": "Funding round update"},
				map[string]any{"name": "Date", "value": "Mon, 13 Nov 2023 10:00:00 +0000"},
			},
			"body": map[string]any{"data": "RnVuZGluZyByb3VuZCB1cGRhdGU"},
		},
	}

	msg := ParseMessage(raw)
	if msg.ID != "18c1" || msg.ThreadID != "t-1" {
		t.Errorf("Unexpected ids %q %q", msg.ID, msg.ThreadID)
	}
	if msg.From != "Simon <simon@example.com>" {
		t.Errorf("Unexpected from '%s'", msg.From)
	}
	if msg.Subject != "Funding round update" {
		t.Errorf("Unexpected subject '%s'", msg.Subject)
	}
	if msg.Body != "Funding round update" {
		t.Errorf("Unexpected body '%s'", msg.Body)
	}
	if len(msg.Labels) != 2 || msg.Labels[1] != "UNREAD" {
		t.Errorf("Unexpected labels %v", msg.Labels)
	}

	item := msg.ToItem()
	if item["id"] != "18c1" || item["subject"] != "Funding round update" || item["body"] != "Funding round update" {
		t.Errorf("Unexpected item %v", item)
	}
}

func TestParseMessageDefaults(t *testing.T) {
	msg := ParseMessage(map[string]any{"id": "x", "payload": map[string]any{"headers": []any{}}})
	if msg.Subject != "No Subject" {
		t.Errorf("Expected 'No Subject', got '%s'", msg.Subject)
	}
	if msg.From != "Unknown" {
		t.Errorf("Expected 'Unknown', got '%s'", msg.From)
	}
	if _, ok := msg.ToItem()["body"]; ok {
		t.Errorf("Expected no body key for an empty body")
	}
}

func TestBuildRawMessage(t *testing.T) {
	raw := BuildRawMessage(OutgoingEmail{
		To:      "simon@example.com",
		Cc:      "cfo@example.com",
		Subject: "Re: funding",
		Body:    "Thanks, will review.",
	})

	decoded, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("Expected url-safe base64, got error: %v", err)
	}
	text := string(decoded)
	for _, want := range []string{"To: simon@example.com", "Cc: cfo@example.com", "Subject: Re: funding", "Thanks, will review."} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected message to contain %q, got:\n%s", want, text)
		}
	}
}

func TestGmailClientListAndGet(t *testing.T) {
	var gotAuth, gotQuery string
	var gotLabels []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users/me/messages":
			gotQuery = r.URL.Query().Get("q")
			gotLabels = r.URL.Query()["labelIds"]
			_ = json.NewEncoder(w).Encode(map[string]any{
				"messages":           []any{map[string]any{"id": "a"}, map[string]any{"id": "b"}},
				"resultSizeEstimate": 42,
			})
		case "/users/me/messages/a":
			if f := r.URL.Query().Get("format"); f != "full" {
				t.Errorf("Expected format=full, got %q", f)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "a", "snippet": "hi"})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"not found"}}`))
		}
	}))
	defer srv.Close()

	c := NewGmailClient()
	c.BaseURL = srv.URL

	ids, estimate, err := c.ListMessages(context.Background(), "tok", "from:simon", 10, []string{"INBOX", "UNREAD"})
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("Unexpected ids %v", ids)
	}
	if estimate != 42 {
		t.Errorf("Expected estimate 42, got %d", estimate)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Unexpected Authorization header %q", gotAuth)
	}
	if gotQuery != "from:simon" || len(gotLabels) != 2 {
		t.Errorf("Unexpected query %q labels %v", gotQuery, gotLabels)
	}

	msg, err := c.GetMessage(context.Background(), "tok", "a", "")
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if msg["snippet"] != "hi" {
		t.Errorf("Unexpected message %v", msg)
	}

	_, err = c.GetMessage(context.Background(), "tok", "missing", "full")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected *APIError, got %T (%v)", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Service != "gmail" {
		t.Errorf("Unexpected API error %+v", apiErr)
	}
}
