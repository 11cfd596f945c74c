package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gabiro3/blimp2/pkg/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleProvider refreshes tokens for Gmail, Calendar, Drive and Docs.
type GoogleProvider struct {
	clientID     string
	clientSecret string
	endpoint     oauth2.Endpoint
	httpClient   *http.Client
}

var _ Provider = (*GoogleProvider)(nil)

func NewGoogleProvider(cfg types.OAuthClientConfig) *GoogleProvider {
	return &GoogleProvider{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		endpoint:     google.Endpoint,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GoogleProvider) Name() string {
	return "google"
}

func (g *GoogleProvider) IsConfigured() bool {
	return g.clientID != "" && g.clientSecret != ""
}

func (g *GoogleProvider) SupportsApp(app string) bool {
	return types.IsGoogleApp(app)
}

func (g *GoogleProvider) Refresh(ctx context.Context, refreshToken string) (*types.Credential, error) {
	endpoint := g.endpoint
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	cfg := &oauth2.Config{
		ClientID:     g.clientID,
		ClientSecret: g.clientSecret,
		Endpoint:     endpoint,
	}
	return refreshWithConfig(ctx, g.httpClient, cfg, refreshToken)
}

// refreshWithConfig runs the standard refresh_token grant through x/oauth2.
func refreshWithConfig(ctx context.Context, client *http.Client, cfg *oauth2.Config, refreshToken string) (*types.Credential, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	token, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh failed: %w", err)
	}

	creds := &types.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = refreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		creds.ExpiresAt = &expiry
	}
	return creds, nil
}
