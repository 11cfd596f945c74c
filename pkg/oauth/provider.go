package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/Gabiro3/blimp2/pkg/types"
)

// RefreshWindow is how close to expiry a token may get before it is refreshed.
const RefreshWindow = 5 * time.Minute

// Provider refreshes user tokens for the apps it serves. The authorization
// half of the flow lives outside this service.
type Provider interface {
	// Name returns the provider name (e.g., "google", "github")
	Name() string

	// IsConfigured returns true if the provider has client credentials
	IsConfigured() bool

	// SupportsApp returns true if this provider issues tokens for the app
	SupportsApp(app string) bool

	// Refresh exchanges a refresh token for a new access token
	Refresh(ctx context.Context, refreshToken string) (*types.Credential, error)
}

// Registry maps apps to the provider that can refresh their tokens.
type Registry struct {
	providers map[string]Provider // provider name -> provider
	byApp     map[string]string   // app -> provider name
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		byApp:     make(map[string]string),
	}
}

// NewRegistryFromConfig registers every provider that has client credentials.
func NewRegistryFromConfig(cfg types.IntegrationOAuth) *Registry {
	r := NewRegistry()
	r.Register(NewGoogleProvider(cfg.Google))
	r.Register(NewSlackProvider(cfg.Slack))
	r.Register(NewGitHubProvider(cfg.GitHub))
	return r
}

// Register adds a provider and maps every known app it supports to it.
func (r *Registry) Register(p Provider) {
	if p == nil || !p.IsConfigured() {
		return
	}
	r.providers[p.Name()] = p
	for _, app := range types.KnownApps {
		if p.SupportsApp(app) {
			r.byApp[app] = p.Name()
		}
	}
}

// ProviderForApp returns the provider that refreshes tokens for app.
func (r *Registry) ProviderForApp(app string) (Provider, error) {
	app = types.NormalizeAppName(app)
	name, ok := r.byApp[app]
	if !ok {
		return nil, fmt.Errorf("no oauth provider configured for app: %s", app)
	}
	return r.providers[name], nil
}

// ListConfiguredProviders returns names of all configured providers
func (r *Registry) ListConfiguredProviders() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// NeedsRefresh returns true if creds expire within RefreshWindow of now and
// can be refreshed.
func NeedsRefresh(creds *types.Credential, now time.Time) bool {
	if creds == nil || creds.RefreshToken == "" || creds.ExpiresAt == nil {
		return false
	}
	return creds.ExpiresAt.Sub(now) < RefreshWindow
}
