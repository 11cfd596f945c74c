package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(handler(w, r))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSlackCallChecksOkField(t *testing.T) {
	srv := jsonServer(t, func(w http.ResponseWriter, r *http.Request) any {
		switch r.URL.Path {
		case "/chat.postMessage":
			assert.Equal(t, http.MethodPost, r.Method)
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "C123", body["channel"])
			return map[string]any{"ok": true, "ts": "1700.01", "channel": "C123"}
		case "/conversations.info":
			assert.Equal(t, http.MethodGet, r.Method)
			return map[string]any{"ok": false, "error": "channel_not_found"}
		}
		return map[string]any{"ok": false}
	})

	c := NewSlackClient()
	c.BaseURL = srv.URL

	res, err := c.PostMessage(context.Background(), "xoxb", "C123", "hello", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "1700.01", res["ts"])

	_, err = c.ChannelInfo(context.Background(), "xoxb", "C999")
	var slackErr *SlackError
	require.ErrorAs(t, err, &slackErr)
	assert.Equal(t, "channel_not_found", slackErr.Code)
}

func TestTrelloSendsKeyAndToken(t *testing.T) {
	srv := jsonServer(t, func(w http.ResponseWriter, r *http.Request) any {
		assert.Equal(t, "/members/me/boards", r.URL.Path)
		assert.Equal(t, "app-key", r.URL.Query().Get("key"))
		assert.Equal(t, "user-token", r.URL.Query().Get("token"))
		assert.Empty(t, r.Header.Get("Authorization"))
		return []any{map[string]any{"id": "b1", "name": "Roadmap"}}
	})

	c := NewTrelloClient("app-key")
	c.BaseURL = srv.URL

	boards, err := c.ListBoards(context.Background(), "user-token")
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "Roadmap", boards[0]["name"])
}

func TestDiscordUsesBotAuthorization(t *testing.T) {
	srv := jsonServer(t, func(w http.ResponseWriter, r *http.Request) any {
		assert.Equal(t, "Bot bot-token", r.Header.Get("Authorization"))
		return map[string]any{"id": "c1", "name": "general"}
	})

	c := NewDiscordClient()
	c.BaseURL = srv.URL

	ch, err := c.GetChannel(context.Background(), "bot-token", "c1")
	require.NoError(t, err)
	assert.Equal(t, "general", ch["name"])
}

func TestAPIErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
	}))
	defer srv.Close()

	c := NewCalendarClient()
	c.BaseURL = srv.URL

	_, err := c.ListEvents(context.Background(), "tok", "primary", EventQuery{MaxResults: 5})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "invalid_token")
}

func TestMarkdownToRequests(t *testing.T) {
	reqs := MarkdownToRequests("# Title\nIntro **bold** end", 1)
	require.Len(t, reqs, 4)

	first := reqs[0]["insertText"].(map[string]any)
	assert.Equal(t, "Title\n", first["text"])
	assert.Equal(t, 1, first["location"].(map[string]any)["index"])

	heading := reqs[1]["updateParagraphStyle"].(map[string]any)
	assert.Equal(t, "HEADING_1", heading["paragraphStyle"].(map[string]any)["namedStyleType"])
	assert.Equal(t, map[string]any{"startIndex": 1, "endIndex": 6}, heading["range"])

	body := reqs[2]["insertText"].(map[string]any)
	assert.Equal(t, "Intro bold end\n", body["text"])
	assert.Equal(t, 7, body["location"].(map[string]any)["index"])

	bold := reqs[3]["updateTextStyle"].(map[string]any)
	assert.Equal(t, map[string]any{"startIndex": 13, "endIndex": 17}, bold["range"])

	assert.Nil(t, MarkdownToRequests("   ", 1))
}

func TestSplitRepo(t *testing.T) {
	owner, repo, err := SplitRepo("octo/hello")
	require.NoError(t, err)
	assert.Equal(t, "octo", owner)
	assert.Equal(t, "hello", repo)

	_, _, err = SplitRepo("hello")
	assert.Error(t, err)
}

func TestGitHubListIssuesSkipsPullRequests(t *testing.T) {
	srv := jsonServer(t, func(w http.ResponseWriter, r *http.Request) any {
		assert.Equal(t, "/repos/octo/hello/issues", r.URL.Path)
		return []any{
			map[string]any{"id": 1, "number": 10, "title": "Bug", "state": "open", "html_url": "https://github.com/octo/hello/issues/10"},
			map[string]any{"id": 2, "number": 11, "title": "PR", "state": "open", "pull_request": map[string]any{"url": "x"}},
		}
	})

	c := &GitHubClient{BaseURL: srv.URL}
	issues, err := c.ListIssues(context.Background(), "tok", "octo", "hello", "open", 10)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "Bug", issues[0]["title"])
	assert.Equal(t, "https://github.com/octo/hello/issues/10", issues[0]["html_url"])
}

func TestHTMLToTextFallsBackOnPlainText(t *testing.T) {
	assert.Equal(t, "a b", StripHTML("<p>a</p><p>b</p>"))
	assert.Contains(t, HTMLToText("<p>Quarterly <strong>numbers</strong></p>"), "**numbers**")
}
