package integrations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Gabiro3/blimp2/pkg/types"
)

// Payload is the result of one app function call. Fetch functions put their
// items under the result_key declared in the definition.
type Payload map[string]any

// Call carries everything a handler needs. App and Function are filled in
// by the registry.
type Call struct {
	UserID     string
	App        string
	Function   string
	Credential types.Credential
	Params     map[string]any
}

// Token returns the bearer token of the call's credential.
func (c Call) Token() string {
	return c.Credential.Token()
}

type Handler func(ctx context.Context, call Call) (Payload, error)

type RegistryOption func(*Registry)

// WithRateLimiter throttles calls per (user, app).
func WithRateLimiter(l *RateLimiter) RegistryOption {
	return func(r *Registry) {
		r.limiter = l
	}
}

// WithCallTimeout bounds every handler invocation.
func WithCallTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.timeout = d
	}
}

// Registry maps (app, function) to a definition and a handler.
type Registry struct {
	specs    map[string]*types.AppSpec
	handlers map[string]map[string]Handler
	limiter  *RateLimiter
	timeout  time.Duration
}

func NewRegistry(specs []*types.AppSpec, opts ...RegistryOption) *Registry {
	r := &Registry{
		specs:    make(map[string]*types.AppSpec, len(specs)),
		handlers: make(map[string]map[string]Handler),
	}
	for _, s := range specs {
		r.specs[types.NormalizeAppName(s.App)] = s
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle registers the handler for app.function, replacing any previous one.
func (r *Registry) Handle(app, function string, h Handler) {
	app = types.NormalizeAppName(app)
	if r.handlers[app] == nil {
		r.handlers[app] = make(map[string]Handler)
	}
	r.handlers[app][function] = h
}

// Apps returns the apps with a definition, sorted.
func (r *Registry) Apps() []string {
	apps := make([]string, 0, len(r.specs))
	for app := range r.specs {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps
}

// Specs returns the function definitions of an app, or nil for an unknown app.
func (r *Registry) Specs(app string) []types.FunctionSpec {
	spec, ok := r.specs[types.NormalizeAppName(app)]
	if !ok {
		return nil
	}
	return spec.Functions
}

func (r *Registry) Spec(app, function string) (types.FunctionSpec, bool) {
	for _, fn := range r.Specs(app) {
		if fn.Name == function {
			return fn, true
		}
	}
	return types.FunctionSpec{}, false
}

// Validate checks that every defined function has a handler and every
// handler has a definition. It runs once at startup.
func (r *Registry) Validate() error {
	var problems []string

	for app, spec := range r.specs {
		for _, fn := range spec.Functions {
			if _, ok := r.handlers[app][fn.Name]; !ok {
				problems = append(problems, fmt.Sprintf("%s.%s has no handler", app, fn.Name))
			}
		}
	}
	for app, fns := range r.handlers {
		for name := range fns {
			if _, ok := r.Spec(app, name); !ok {
				problems = append(problems, fmt.Sprintf("%s.%s has no definition", app, name))
			}
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("function registry is inconsistent: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Invoke runs app.function. Unknown pairs are UnsupportedOperation; handler
// failures other than parameter errors are wrapped as UpstreamFailure.
func (r *Registry) Invoke(ctx context.Context, app, function string, call Call) (Payload, error) {
	app = types.NormalizeAppName(app)
	h, ok := r.handlers[app][function]
	if !ok {
		return nil, &types.UnsupportedOperationError{App: app, Function: function}
	}

	call.App = app
	call.Function = function

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, call.UserID, app); err != nil {
			return nil, &types.UpstreamFailureError{Service: app, Operation: function, Err: fmt.Errorf("rate limited: %w", err)}
		}
	}

	start := time.Now()
	payload, err := h(ctx, call)
	if err != nil {
		log.Warn().
			Err(err).
			Str("user_id", call.UserID).
			Str("app", app).
			Str("function", function).
			Dur("duration", time.Since(start)).
			Msg("app function failed")
		return nil, classify(ctx, app, function, err)
	}

	log.Debug().
		Str("app", app).
		Str("function", function).
		Dur("duration", time.Since(start)).
		Msg("app function completed")

	if payload == nil {
		payload = Payload{}
	}
	return payload, nil
}

func classify(ctx context.Context, app, function string, err error) error {
	switch {
	case (&types.MissingParameterError{}).From(err),
		(&types.InvalidParameterError{}).From(err),
		(&types.UnsupportedOperationError{}).From(err),
		(&types.NotConfiguredError{}).From(err),
		(&types.MissingCredentialsError{}).From(err),
		(&types.UpstreamFailureError{}).From(err):
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return &types.UpstreamFailureError{Service: app, Operation: function, Err: err}
}
