package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gabiro3/blimp2/pkg/types"
)

type redirect struct{ target *url.URL }

func (r redirect) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = r.target.Scheme
	req.URL.Host = r.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func resendServer(t *testing.T, status int, body string, got *map[string]any) *http.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return &http.Client{Transport: redirect{target: target}}
}

func testConfig() types.NotifyConfig {
	return types.NotifyConfig{ResendAPIKey: "re_test", FromEmail: "Blimp <noreply@blimp.test>", Timeout: 5 * time.Second}
}

func TestSend(t *testing.T) {
	var got map[string]any
	s := New(testConfig(), WithHTTPClient(resendServer(t, http.StatusOK, `{"id": "email-123"}`, &got)))

	id, err := s.Send(context.Background(), Message{To: []string{" ops@example.com ", ""}, Subject: "Digest", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "email-123", id)

	assert.Equal(t, "Blimp <noreply@blimp.test>", got["from"])
	assert.Equal(t, []any{"ops@example.com"}, got["to"])
	assert.Equal(t, "Digest", got["subject"])
	assert.Equal(t, "<p>hi</p>", got["html"])
}

func TestSendErrors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := New(types.NotifyConfig{})
		assert.False(t, s.Configured())
		_, err := s.Send(context.Background(), Message{To: []string{"a@example.com"}})
		assert.True(t, (&types.NotConfiguredError{}).From(err))
	})

	t.Run("no recipients", func(t *testing.T) {
		_, err := New(testConfig()).Send(context.Background(), Message{To: []string{"  "}})
		assert.ErrorContains(t, err, "no recipients")
	})

	t.Run("upstream rejects", func(t *testing.T) {
		hc := resendServer(t, http.StatusUnprocessableEntity, `{"statusCode": 422, "name": "validation_error", "message": "Invalid from"}`, nil)
		_, err := New(testConfig(), WithHTTPClient(hc)).Send(context.Background(), Message{To: []string{"a@example.com"}})
		assert.True(t, (&types.UpstreamFailureError{}).From(err))
	})
}

func TestWorkflowReport(t *testing.T) {
	finished := time.Date(2024, 11, 18, 9, 0, 0, 0, time.UTC)
	msg, err := WorkflowReport(&types.MultiAppResult{
		Success:      false,
		WorkflowName: "Morning <digest>",
		Steps: []types.StepResult{
			{Step: 1, App: "gmail", Function: "list_messages", Success: true},
			{Step: 2, App: "slack", Function: "send_message", Error: "not_in_channel"},
			{Step: 3, App: "notion", Function: "create_page", Skipped: true},
		},
	}, finished)
	require.NoError(t, err)

	assert.Equal(t, "Workflow finished with errors: Morning <digest>", msg.Subject)
	assert.Contains(t, msg.HTML, "Morning &lt;digest&gt;")
	assert.Contains(t, msg.HTML, "failed: not_in_channel")
	assert.Contains(t, msg.HTML, "skipped")
	assert.Contains(t, msg.HTML, "Mon, 18 Nov 2024 09:00:00 UTC")
}

func TestTeamReport(t *testing.T) {
	msg, err := TeamReport(&types.TeamRunResult{
		Success:      true,
		WorkflowName: "Standup",
		Results: map[string]*types.MultiAppResult{
			"bob":   {Success: true},
			"alice": {Success: false},
		},
		Errors: map[string]string{"carol": "No credentials found for slack"},
	}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "Workflow completed: Standup (team)", msg.Subject)
	alice := strings.Index(msg.HTML, "alice: failed")
	bob := strings.Index(msg.HTML, "bob: ok")
	carol := strings.Index(msg.HTML, "carol: No credentials found for slack")
	assert.True(t, alice >= 0 && bob > alice && carol > bob, msg.HTML)
}

