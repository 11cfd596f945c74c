package responder

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Gabiro3/blimp2/pkg/llm"
	"github.com/Gabiro3/blimp2/pkg/types"
)

const defaultTemperature = 0.4

//go:embed prompts/*.tmpl
var promptFS embed.FS

var (
	answerTemplate  = template.Must(template.ParseFS(promptFS, "prompts/answer.tmpl"))
	confirmTemplate = template.Must(template.ParseFS(promptFS, "prompts/confirm.tmpl"))
)

var appLabels = map[string]string{
	types.AppGmail:          "Gmail",
	types.AppGoogleCalendar: "Google Calendar",
	types.AppGoogleDrive:    "Google Drive",
	types.AppGoogleDocs:     "Google Docs",
	types.AppSlack:          "Slack",
	types.AppDiscord:        "Discord",
	types.AppNotion:         "Notion",
	types.AppTrello:         "Trello",
	types.AppGitHub:         "GitHub",
}

// Request is everything the answer is grounded on. Items must already be
// redacted.
type Request struct {
	Query        string
	Items        []types.Item
	DataType     types.DataType
	ItemKind     string
	App          string
	QueryType    types.QueryType
	ActionsTaken []types.ActionResult
}

// Confirming reports whether the request gets the action confirmation
// prompt instead of the data-grounded one.
func (r Request) Confirming() bool {
	return r.QueryType == types.QueryTypeActionable && len(r.ActionsTaken) > 0
}

type Option func(*Generator)

func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = t }
}

func WithTimeout(d time.Duration) Option {
	return func(g *Generator) { g.timeout = d }
}

// Generator turns fetched items (or action results) into an AnswerResult
// with one LLM call.
type Generator struct {
	llm         llm.Client
	temperature float64
	timeout     time.Duration
}

func New(client llm.Client, opts ...Option) *Generator {
	g := &Generator{llm: client, temperature: defaultTemperature}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Generate(ctx context.Context, req Request) (*types.AnswerResult, error) {
	if g.llm == nil {
		return nil, &types.NotConfiguredError{Service: "llm"}
	}

	system, err := systemPrompt(req)
	if err != nil {
		return nil, err
	}
	prompt, err := userMessage(req)
	if err != nil {
		return nil, err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	raw, err := g.llm.Complete(ctx, llm.Request{
		System:      system,
		Prompt:      prompt,
		Temperature: g.temperature,
		Format:      llm.FormatJSON,
	})
	if err != nil {
		return nil, &types.UpstreamFailureError{Service: "llm", Operation: "answer", Err: err}
	}

	answer, err := ParseAnswer(raw)
	if err != nil {
		log.Warn().Err(err).Str("app", req.App).Msg("responder returned an unusable answer")
		return nil, err
	}

	if req.Confirming() {
		answer.ActionableInsights = types.InsightActionCompleted
	} else if len(req.Items) == 0 {
		answer.DataFound = false
	}

	log.Debug().
		Str("app", req.App).
		Str("confidence", string(answer.Confidence)).
		Bool("data_found", answer.DataFound).
		Int("relevant_items", len(answer.RelevantItems)).
		Msg("answer generated")

	return answer, nil
}

type promptData struct {
	AppLabel string
	Fields   []Field
}

func systemPrompt(req Request) (string, error) {
	app := types.NormalizeAppName(req.App)
	label, ok := appLabels[app]
	if !ok {
		label = app
	}
	data := promptData{AppLabel: label, Fields: FieldsFor(app, req.ItemKind)}

	tmpl := answerTemplate
	if req.Confirming() {
		tmpl = confirmTemplate
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render answer prompt: %w", err)
	}
	return buf.String(), nil
}

func userMessage(req Request) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "User Query: %s\n\n", req.Query)

	if req.Confirming() {
		actions, err := json.MarshalIndent(req.ActionsTaken, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode actions: %w", err)
		}
		fmt.Fprintf(&b, "Actions Taken:\n%s\n", actions)
		return b.String(), nil
	}

	items := req.Items
	if items == nil {
		items = []types.Item{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}
	dataType := req.DataType
	if dataType == "" {
		dataType = types.DataTypeUnknown
	}
	fmt.Fprintf(&b, "Fetched Data (%s, %d items):\n%s\n", dataType, len(req.Items), data)

	if len(req.ActionsTaken) > 0 {
		actions, err := json.MarshalIndent(req.ActionsTaken, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode actions: %w", err)
		}
		fmt.Fprintf(&b, "\nActions Taken:\n%s\n", actions)
	}
	return b.String(), nil
}
