package executor

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Gabiro3/blimp2/pkg/integrations"
	"github.com/Gabiro3/blimp2/pkg/llm"
	"github.com/Gabiro3/blimp2/pkg/redact"
	"github.com/Gabiro3/blimp2/pkg/resources"
	"github.com/Gabiro3/blimp2/pkg/responder"
	"github.com/Gabiro3/blimp2/pkg/types"
)

const defaultGmailConcurrency = 5

// Registry is the part of the function registry the executor needs.
type Registry interface {
	Invoke(ctx context.Context, app, function string, call integrations.Call) (integrations.Payload, error)
	Spec(app, function string) (types.FunctionSpec, bool)
}

// CredentialSource returns nil, nil when the user has no credential for app.
type CredentialSource interface {
	GetCredential(ctx context.Context, userID, app string) (*types.Credential, error)
}

type Responder interface {
	Generate(ctx context.Context, req responder.Request) (*types.AnswerResult, error)
}

type WorkflowPlanner interface {
	PlanWorkflow(ctx context.Context, w *types.Workflow, params map[string]any) (*types.MultiAppPlan, error)
}

type Option func(*Executor)

// WithGmailConcurrency bounds the parallel message detail fetches.
func WithGmailConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.gmailConcurrency = n
		}
	}
}

func WithRedactor(f *redact.Filter) Option {
	return func(e *Executor) { e.redactor = f }
}

// WithResearch enables the research-and-insert branch for Google Docs.
func WithResearch(client llm.Client, temperature float64, maxTokens int) Option {
	return func(e *Executor) {
		e.research = client
		e.researchTemperature = temperature
		e.researchMaxTokens = maxTokens
	}
}

func WithWorkflowPlanner(p WorkflowPlanner) Option {
	return func(e *Executor) { e.planner = p }
}

// WithTimeouts bounds LLM calls and credential lookups.
func WithTimeouts(t types.TimeoutsConfig) Option {
	return func(e *Executor) { e.timeouts = t }
}

// ExecuteRequest is one planned chat request.
type ExecuteRequest struct {
	UserID string
	Query  string
	Plan   *types.QueryPlan
}

// Executor runs plans against the function registry.
type Executor struct {
	registry  Registry
	creds     CredentialSource
	responder Responder
	redactor  *redact.Filter
	planner   WorkflowPlanner
	timeouts  types.TimeoutsConfig

	research            llm.Client
	researchTemperature float64
	researchMaxTokens   int

	gmailConcurrency int
}

func New(registry Registry, creds CredentialSource, resp Responder, opts ...Option) *Executor {
	e := &Executor{
		registry:         registry,
		creds:            creds,
		responder:        resp,
		redactor:         redact.New(redact.DefaultOptions()),
		gmailConcurrency: defaultGmailConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// credential resolves the credential of app. A missing credential is
// MissingCredentials.
func (e *Executor) credential(ctx context.Context, userID, app string) (types.Credential, error) {
	if e.timeouts.Credential > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeouts.Credential)
		defer cancel()
	}

	cred, err := e.creds.GetCredential(ctx, userID, app)
	if err != nil {
		if (&types.UpstreamFailureError{}).From(err) {
			return types.Credential{}, err
		}
		return types.Credential{}, &types.UpstreamFailureError{Service: app, Operation: "credentials", Err: err}
	}
	if cred == nil {
		return types.Credential{}, &types.MissingCredentialsError{App: app}
	}
	return *cred, nil
}

// Execute runs a validated plan: fetch, redact, actions, answer.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) (*types.ExecutionResult, error) {
	plan := req.Plan
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	step, err := plan.FetchStep()
	if err != nil {
		return nil, err
	}

	// Without a fetch the first action's app is used for credentials only.
	app := plan.PrimaryApp()
	cred, err := e.credential(ctx, req.UserID, app)
	if err != nil {
		return nil, err
	}

	if gen, ok := step.(types.GenerateAndInsert); ok {
		return e.generateAndInsert(ctx, req, gen, cred)
	}

	fetched := &fetchResult{items: []types.Item{}, dataType: types.DataTypeUnknown}
	if call, ok := step.(types.FetchCall); ok {
		fetched, err = e.fetch(ctx, req.UserID, call, cred)
		if err != nil {
			return nil, err
		}
	}

	items := e.redactor.Items(fetched.items, fetched.dataType)

	log.Info().
		Str("user_id", req.UserID).
		Str("app", app).
		Str("data_type", string(fetched.dataType)).
		Int("items", len(items)).
		Msg("data fetched")

	creds := credentialCache{app: cred}
	actions := e.runActions(ctx, req, creds, items)

	answer, err := e.responder.Generate(ctx, responder.Request{
		Query:        req.Query,
		Items:        items,
		DataType:     fetched.dataType,
		ItemKind:     fetched.itemKind,
		App:          app,
		QueryType:    plan.QueryType,
		ActionsTaken: e.redactor.Actions(actions),
	})
	if err != nil {
		return nil, err
	}

	result := &types.ExecutionResult{
		Success:            true,
		Answer:             answer.Answer,
		Confidence:         answer.Confidence,
		DataFound:          answer.DataFound,
		RelevantItems:      answer.RelevantItems,
		ResourceURLs:       resources.Build(app, answer.RelevantItems),
		ActionsTaken:       actions,
		SuggestedActions:   answer.SuggestedActions,
		ActionableInsights: answer.ActionableInsights,
		App:                app,
		DataType:           fetched.dataType,
		ItemCount:          len(items),
		PartialFailure:     partialFailure(actions),
		FetchErrors:        fetched.errors,
	}
	return result, nil
}

// partialFailure is set when some actions did not complete while others did.
func partialFailure(actions []types.ActionResult) *types.PartialActionFailure {
	var pf types.PartialActionFailure
	for _, a := range actions {
		switch {
		case a.Success:
			pf.Succeeded++
		case a.Skipped:
			pf.Skipped++
		default:
			pf.Failed++
			pf.Errors = append(pf.Errors, a.Action+": "+a.Error)
		}
	}
	if pf.Succeeded == 0 || pf.Failed+pf.Skipped == 0 {
		return nil
	}
	return &pf
}

func (e *Executor) llmContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeouts.LLM > 0 {
		return context.WithTimeout(ctx, e.timeouts.LLM)
	}
	return context.WithCancel(ctx)
}
