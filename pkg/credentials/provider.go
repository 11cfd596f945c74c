package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/Gabiro3/blimp2/pkg/common"
	"github.com/Gabiro3/blimp2/pkg/oauth"
	"github.com/Gabiro3/blimp2/pkg/repository"
	"github.com/Gabiro3/blimp2/pkg/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const defaultRefreshTimeout = 15 * time.Second

// Provider resolves a user's connected apps and credentials. Tokens close to
// expiry are refreshed and persisted before being returned. Nothing is cached
// between calls.
type Provider struct {
	store   repository.ConnectionRepository
	oauth   *oauth.Registry
	lock    *common.RedisLock
	timeout time.Duration
	now     func() time.Time
	group   singleflight.Group
}

type Option func(*Provider)

// WithRedisLock serializes refreshes of the same token across gateway replicas.
func WithRedisLock(lock *common.RedisLock) Option {
	return func(p *Provider) { p.lock = lock }
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func NewProvider(store repository.ConnectionRepository, registry *oauth.Registry, opts ...Option) *Provider {
	if registry == nil {
		registry = oauth.NewRegistry()
	}
	p := &Provider{
		store:   store,
		oauth:   registry,
		timeout: defaultRefreshTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ConnectedApps returns the normalized names of the user's active apps.
func (p *Provider) ConnectedApps(ctx context.Context, userID string) ([]string, error) {
	apps, err := p.store.ListConnectedApps(ctx, userID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(apps))
	seen := make(map[string]bool, len(apps))
	for _, a := range apps {
		if !a.IsActive {
			continue
		}
		name := types.NormalizeAppName(a.AppName)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

// IsConnected reports whether app is among the user's active apps.
func (p *Provider) IsConnected(ctx context.Context, userID, app string) (bool, error) {
	apps, err := p.ConnectedApps(ctx, userID)
	if err != nil {
		return false, err
	}
	app = types.NormalizeAppName(app)
	for _, a := range apps {
		if a == app {
			return true, nil
		}
	}
	return false, nil
}

// StoreCredential upserts the credential and marks the app connected.
func (p *Provider) StoreCredential(ctx context.Context, userID, app string, creds *types.Credential) error {
	return p.store.SaveCredential(ctx, userID, types.NormalizeAppName(app), creds)
}

// Disconnect marks app as no longer connected for the user.
func (p *Provider) Disconnect(ctx context.Context, userID, app string) error {
	return p.store.DisconnectApp(ctx, userID, types.NormalizeAppName(app))
}

// GetCredential returns nil, nil when the user has no credential for app.
func (p *Provider) GetCredential(ctx context.Context, userID, app string) (*types.Credential, error) {
	app = types.NormalizeAppName(app)

	creds, err := p.store.GetCredential(ctx, userID, app)
	if err != nil || creds == nil {
		return creds, err
	}
	if !oauth.NeedsRefresh(creds, p.now()) {
		return creds, nil
	}

	v, err, _ := p.group.Do(userID+"/"+app, func() (any, error) {
		return p.refresh(ctx, userID, app, creds)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Credential), nil
}

func (p *Provider) refresh(ctx context.Context, userID, app string, current *types.Credential) (*types.Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if p.lock != nil {
		key := common.Keys.CredentialRefreshLock(userID, app)
		err := p.lock.Acquire(ctx, key, common.RedisLockOptions{TtlS: int(p.timeout / time.Second), Retries: 20})
		switch {
		case err == nil:
			defer p.lock.Release(key)
			// Another replica may have refreshed while we waited.
			if latest, err := p.store.GetCredential(ctx, userID, app); err == nil && latest != nil {
				if !oauth.NeedsRefresh(latest, p.now()) {
					return latest, nil
				}
				current = latest
			}
		case errors.Is(err, common.ErrLockNotObtained):
			log.Warn().Str("user_id", userID).Str("app", app).Msg("refresh lock busy, refreshing anyway")
		default:
			log.Warn().Err(err).Str("app", app).Msg("refresh lock unavailable")
		}
	}

	provider, err := p.oauth.ProviderForApp(app)
	if err != nil {
		log.Warn().Err(err).Str("app", app).Msg("token near expiry but no refresh provider")
		return p.staleOrFail(app, current, err)
	}

	refreshed, err := provider.Refresh(ctx, current.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Str("app", app).Msg("token refresh failed")
		return p.staleOrFail(app, current, err)
	}

	// Keep what the refresh response does not carry.
	refreshed.APIKey = current.APIKey
	refreshed.Extra = current.Extra
	if refreshed.Scope == "" {
		refreshed.Scope = current.Scope
	}

	if err := p.store.SaveCredential(ctx, userID, app, refreshed); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("app", app).Msg("failed to persist refreshed token")
	}

	log.Info().Str("user_id", userID).Str("app", app).Msg("refreshed oauth token")
	return refreshed, nil
}

// staleOrFail returns the current token while it is still valid, otherwise
// the refresh failure.
func (p *Provider) staleOrFail(app string, current *types.Credential, cause error) (*types.Credential, error) {
	if !current.IsExpired(p.now()) {
		return current, nil
	}
	return nil, &types.UpstreamFailureError{Service: app, Operation: "token refresh", Err: cause}
}
