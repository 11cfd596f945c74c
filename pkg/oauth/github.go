package oauth

import (
	"context"
	"net/http"
	"time"

	"github.com/Gabiro3/blimp2/pkg/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubProvider refreshes expiring user tokens issued to a GitHub App.
// Classic OAuth app tokens never expire and are never refreshed.
type GitHubProvider struct {
	clientID     string
	clientSecret string
	endpoint     oauth2.Endpoint
	httpClient   *http.Client
}

var _ Provider = (*GitHubProvider)(nil)

func NewGitHubProvider(cfg types.OAuthClientConfig) *GitHubProvider {
	return &GitHubProvider{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		endpoint:     github.Endpoint,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GitHubProvider) Name() string {
	return "github"
}

func (g *GitHubProvider) IsConfigured() bool {
	return g.clientID != "" && g.clientSecret != ""
}

func (g *GitHubProvider) SupportsApp(app string) bool {
	return types.NormalizeAppName(app) == types.AppGitHub
}

func (g *GitHubProvider) Refresh(ctx context.Context, refreshToken string) (*types.Credential, error) {
	cfg := &oauth2.Config{
		ClientID:     g.clientID,
		ClientSecret: g.clientSecret,
		Endpoint:     g.endpoint,
	}
	return refreshWithConfig(ctx, g.httpClient, cfg, refreshToken)
}
