package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ClientFactory builds a provider client for one key.
type ClientFactory func(ctx context.Context, apiKey string) (Client, error)

// RotatingClient walks an ordered key list. A quota or auth failure on the
// active key moves the active index forward; other errors are returned as-is.
// The active index is per instance.
type RotatingClient struct {
	name    string
	keys    []string
	factory ClientFactory

	mu      sync.Mutex
	active  int
	clients map[int]Client
}

func NewRotatingClient(name string, keys []string, factory ClientFactory) (*RotatingClient, error) {
	filtered := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			filtered = append(filtered, k)
		}
	}
	if len(filtered) == 0 {
		return nil, ErrNoKeys
	}

	return &RotatingClient{
		name:    name,
		keys:    filtered,
		factory: factory,
		clients: make(map[int]Client),
	}, nil
}

// ActiveKeyIndex is exposed for tests and diagnostics.
func (r *RotatingClient) ActiveKeyIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *RotatingClient) clientAt(ctx context.Context, idx int) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[idx]; ok {
		return c, nil
	}
	c, err := r.factory(ctx, r.keys[idx])
	if err != nil {
		return nil, err
	}
	r.clients[idx] = c
	return c, nil
}

func (r *RotatingClient) Complete(ctx context.Context, req Request) (string, error) {
	r.mu.Lock()
	start := r.active
	r.mu.Unlock()

	var lastErr error
	for i := 0; i < len(r.keys); i++ {
		idx := (start + i) % len(r.keys)

		client, err := r.clientAt(ctx, idx)
		if err != nil {
			lastErr = err
			continue
		}

		text, err := client.Complete(ctx, req)
		if err == nil {
			r.mu.Lock()
			r.active = idx
			r.mu.Unlock()
			return text, nil
		}

		if !ShouldRotate(err) || ctx.Err() != nil {
			return "", err
		}

		lastErr = err
		log.Warn().Str("provider", r.name).Int("key_index", idx).Err(err).Msg("llm key exhausted, rotating")

		r.mu.Lock()
		if r.active == idx {
			r.active = (idx + 1) % len(r.keys)
		}
		r.mu.Unlock()
	}

	return "", fmt.Errorf("%s: all %d keys exhausted: %w", r.name, len(r.keys), lastErr)
}

// FallbackClient tries each client in order, moving on only for errors that
// would also have rotated a key.
type FallbackClient struct {
	clients []Client
}

func NewFallbackClient(clients ...Client) *FallbackClient {
	return &FallbackClient{clients: clients}
}

func (f *FallbackClient) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error = ErrNoKeys
	for i, c := range f.clients {
		text, err := c.Complete(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !ShouldRotate(err) || ctx.Err() != nil {
			return "", err
		}
		log.Warn().Int("provider_index", i).Err(err).Msg("llm provider unavailable, falling back")
	}
	return "", lastErr
}
