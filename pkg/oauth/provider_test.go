package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gabiro3/blimp2/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	soon := now.Add(4 * time.Minute)
	later := now.Add(10 * time.Minute)

	assert.True(t, NeedsRefresh(&types.Credential{RefreshToken: "r", ExpiresAt: &soon}, now))
	assert.False(t, NeedsRefresh(&types.Credential{RefreshToken: "r", ExpiresAt: &later}, now))
	assert.False(t, NeedsRefresh(&types.Credential{ExpiresAt: &soon}, now))
	assert.False(t, NeedsRefresh(&types.Credential{RefreshToken: "r"}, now))
	assert.False(t, NeedsRefresh(nil, now))
}

func TestRegistryRoutesApps(t *testing.T) {
	r := NewRegistryFromConfig(types.IntegrationOAuth{
		Google: types.OAuthClientConfig{ClientID: "id", ClientSecret: "secret"},
	})

	for _, app := range []string{"gmail", "google_calendar", "gdrive", "google_docs"} {
		p, err := r.ProviderForApp(app)
		require.NoError(t, err, app)
		assert.Equal(t, "google", p.Name())
	}

	_, err := r.ProviderForApp("slack")
	assert.Error(t, err, "unconfigured providers are not registered")
}

func TestGoogleRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "r-123", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "id", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new-access","expires_in":3600,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	p := NewGoogleProvider(types.OAuthClientConfig{ClientID: "id", ClientSecret: "secret"})
	p.endpoint.TokenURL = srv.URL

	creds, err := p.Refresh(context.Background(), "r-123")
	require.NoError(t, err)
	assert.Equal(t, "new-access", creds.AccessToken)
	assert.Equal(t, "r-123", creds.RefreshToken)
	require.NotNil(t, creds.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *creds.ExpiresAt, time.Minute)
}

func TestSlackRefreshError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"invalid_refresh_token"}`))
	}))
	defer srv.Close()

	p := NewSlackProvider(types.OAuthClientConfig{ClientID: "id", ClientSecret: "secret"})
	p.tokenURL = srv.URL

	_, err := p.Refresh(context.Background(), "r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_refresh_token")
}
