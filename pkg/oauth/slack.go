package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Gabiro3/blimp2/pkg/types"
	"golang.org/x/oauth2/slack"
)

// SlackProvider refreshes rotated Slack user tokens. Slack answers 200 with
// {"ok": false} on failure, so the response is parsed by hand.
type SlackProvider struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
}

var _ Provider = (*SlackProvider)(nil)

func NewSlackProvider(cfg types.OAuthClientConfig) *SlackProvider {
	return &SlackProvider{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     slack.Endpoint.TokenURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *SlackProvider) Name() string {
	return "slack"
}

func (s *SlackProvider) IsConfigured() bool {
	return s.clientID != "" && s.clientSecret != ""
}

func (s *SlackProvider) SupportsApp(app string) bool {
	return types.NormalizeAppName(app) == types.AppSlack
}

func (s *SlackProvider) Refresh(ctx context.Context, refreshToken string) (*types.Credential, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("no refresh token")
	}

	data := url.Values{
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("refresh failed: status %d", resp.StatusCode)
	}

	var result struct {
		OK           bool   `json:"ok"`
		Error        string `json:"error"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		TokenType    string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("slack refresh error: %s", result.Error)
	}

	creds := &types.Credential{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = refreshToken
	}
	if result.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
		creds.ExpiresAt = &expiry
	}
	return creds, nil
}
