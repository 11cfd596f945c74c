package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/Gabiro3/blimp2/pkg/llm"
	"github.com/Gabiro3/blimp2/pkg/types"
)

const (
	defaultTemperature = 0.3
	locationCacheSize  = 128
)

// SpecSource exposes the function definitions shown to the LLM.
type SpecSource interface {
	Specs(app string) []types.FunctionSpec
}

// PlanRequest is one chat request to plan.
type PlanRequest struct {
	Query         string
	TargetApp     string
	ConnectedApps []string
	Timezone      string
}

type Option func(*Planner)

func WithTemperature(t float64) Option {
	return func(p *Planner) { p.temperature = t }
}

func WithWorkflowTemperature(t float64) Option {
	return func(p *Planner) { p.workflowTemperature = t }
}

// WithTimeout bounds each LLM call.
func WithTimeout(d time.Duration) Option {
	return func(p *Planner) { p.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// Planner turns a natural-language request into a QueryPlan (or a saved
// workflow into a MultiAppPlan) with one LLM call.
type Planner struct {
	llm                 llm.Client
	specs               SpecSource
	temperature         float64
	workflowTemperature float64
	timeout             time.Duration
	now                 func() time.Time
	locations           *lru.Cache[string, *time.Location]
}

// New creates a planner. A nil client is allowed; Plan then fails with
// NotConfigured.
func New(client llm.Client, specs SpecSource, opts ...Option) *Planner {
	cache, _ := lru.New[string, *time.Location](locationCacheSize)
	p := &Planner{
		llm:                 client,
		specs:               specs,
		temperature:         defaultTemperature,
		workflowTemperature: defaultTemperature,
		now:                 time.Now,
		locations:           cache,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Location resolves an IANA timezone name, falling back to UTC for empty
// or unknown names.
func (p *Planner) Location(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	if loc, ok := p.locations.Get(name); ok {
		return loc
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Debug().Str("timezone", name).Err(err).Msg("unknown timezone, using UTC")
		loc = time.UTC
	}
	p.locations.Add(name, loc)
	return loc
}

func (p *Planner) complete(ctx context.Context, operation string, req llm.Request) (string, error) {
	if p.llm == nil {
		return "", &types.NotConfiguredError{Service: "llm"}
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	raw, err := p.llm.Complete(ctx, req)
	if err != nil {
		return "", &types.UpstreamFailureError{Service: "llm", Operation: operation, Err: err}
	}
	return raw, nil
}

// Plan asks the LLM for a plan against req.TargetApp. The caller is
// responsible for checking that the app is connected.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (*types.QueryPlan, error) {
	app := types.NormalizeAppName(req.TargetApp)
	specs := p.specs.Specs(app)
	if len(specs) == 0 {
		return nil, &types.UnsupportedOperationError{App: app, Function: "chat"}
	}

	connected := make([]string, 0, len(req.ConnectedApps))
	for _, a := range req.ConnectedApps {
		connected = append(connected, types.NormalizeAppName(a))
	}

	system, err := renderQueryPrompt(app, connected, specs, p.now(), p.Location(req.Timezone))
	if err != nil {
		return nil, err
	}

	raw, err := p.complete(ctx, "plan", llm.Request{
		System:      system,
		Prompt:      fmt.Sprintf("User Query: %s\n\nReturn the execution plan for %s.", req.Query, app),
		Temperature: p.temperature,
		Format:      llm.FormatJSON,
	})
	if err != nil {
		return nil, err
	}

	plan, err := ParsePlan(raw)
	if err != nil {
		log.Warn().Err(err).Str("app", app).Msg("planner returned an unusable plan")
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		log.Warn().Err(err).Str("app", app).Str("query_type", string(plan.QueryType)).Msg("planner returned an invalid plan")
		return nil, err
	}

	log.Info().
		Str("app", app).
		Str("query_type", string(plan.QueryType)).
		Int("actions", len(plan.Actions)).
		Str("reasoning", plan.Reasoning).
		Msg("query planned")

	return plan, nil
}

// PlanWorkflow asks the LLM how to run a saved multi-app workflow.
func (p *Planner) PlanWorkflow(ctx context.Context, w *types.Workflow, params map[string]any) (*types.MultiAppPlan, error) {
	byApp := make(map[string][]types.FunctionSpec, len(w.RequiredApps))
	for _, app := range w.RequiredApps {
		app = types.NormalizeAppName(app)
		byApp[app] = p.specs.Specs(app)
	}

	system, err := renderWorkflowPrompt(byApp, p.now())
	if err != nil {
		return nil, err
	}

	raw, err := p.complete(ctx, "workflow plan", llm.Request{
		System:      system,
		Prompt:      workflowUserMessage(w, params),
		Temperature: p.workflowTemperature,
		Format:      llm.FormatJSON,
	})
	if err != nil {
		return nil, err
	}

	plan, err := ParseWorkflowPlan(raw)
	if err != nil {
		log.Warn().Err(err).Str("workflow", w.Name).Msg("planner returned an unusable workflow plan")
		return nil, err
	}

	log.Info().
		Str("workflow", w.Name).
		Int("steps", len(plan.FunctionCalls)).
		Str("reasoning", plan.Reasoning).
		Msg("workflow planned")
	return plan, nil
}

// MatchRequest is a free-text workflow request.
type MatchRequest struct {
	Prompt        string
	Saved         []*types.Workflow
	ConnectedApps []string
	Context       map[string]any
}

// MatchWorkflow asks the LLM whether req.Prompt is one of the saved
// workflows or outlines a new one.
func (p *Planner) MatchWorkflow(ctx context.Context, req MatchRequest) (*types.WorkflowMatch, error) {
	byApp := make(map[string][]types.FunctionSpec, len(types.KnownApps))
	for _, app := range types.KnownApps {
		byApp[app] = p.specs.Specs(app)
	}

	connected := make([]string, 0, len(req.ConnectedApps))
	for _, a := range req.ConnectedApps {
		connected = append(connected, types.NormalizeAppName(a))
	}

	system, err := renderMatchPrompt(req.Saved, connected, byApp)
	if err != nil {
		return nil, err
	}

	raw, err := p.complete(ctx, "workflow match", llm.Request{
		System:      system,
		Prompt:      matchUserMessage(req.Prompt, req.Context),
		Temperature: p.workflowTemperature,
		Format:      llm.FormatJSON,
	})
	if err != nil {
		return nil, err
	}

	saved := make(map[string]bool, len(req.Saved))
	for _, w := range req.Saved {
		saved[w.ID] = true
	}
	match, err := ParseWorkflowMatch(raw, saved)
	if err != nil {
		log.Warn().Err(err).Msg("planner returned an unusable workflow match")
		return nil, err
	}

	log.Info().
		Bool("new", match.IsNew).
		Str("workflow_id", match.WorkflowID).
		Strs("apps", match.RequiredApps).
		Str("reasoning", match.Reasoning).
		Msg("workflow request matched")
	return match, nil
}
