package planner

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Gabiro3/blimp2/pkg/types"
)

//go:embed prompts/*.tmpl prompts/apps/*.txt
var promptFS embed.FS

var (
	queryTemplate    = template.Must(template.ParseFS(promptFS, "prompts/query.tmpl"))
	workflowTemplate = template.Must(template.ParseFS(promptFS, "prompts/workflow.tmpl"))
	matchTemplate    = template.Must(template.ParseFS(promptFS, "prompts/match.tmpl"))
)

type queryPromptData struct {
	App           string
	ConnectedApps string
	NowUTC        string
	NowLocal      string
	Timezone      string
	Weekday       string
	Date          string
	Functions     string
	Instructions  string
}

type workflowPromptData struct {
	NowUTC    string
	Functions string
}

type matchPromptData struct {
	Workflows     string
	ConnectedApps string
	Functions     string
	KnownApps     string
	MinApps       int
}

// appInstructions returns the app-specific planning hints, or "" when the
// app has none.
func appInstructions(app string) string {
	data, err := promptFS.ReadFile("prompts/apps/" + app + ".txt")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func functionsJSON(specs []types.FunctionSpec) (string, error) {
	views := make([]map[string]any, 0, len(specs))
	for _, fn := range specs {
		views = append(views, fn.PromptView())
	}
	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func renderQueryPrompt(app string, connected []string, specs []types.FunctionSpec, now time.Time, loc *time.Location) (string, error) {
	fns, err := functionsJSON(specs)
	if err != nil {
		return "", fmt.Errorf("render functions: %w", err)
	}

	conn := "None"
	if len(connected) > 0 {
		conn = strings.Join(connected, ", ")
	}

	local := now.In(loc)
	data := queryPromptData{
		App:           app,
		ConnectedApps: conn,
		NowUTC:        now.UTC().Format(time.RFC3339),
		NowLocal:      local.Format(time.RFC3339),
		Timezone:      loc.String(),
		Weekday:       local.Weekday().String(),
		Date:          local.Format("2006-01-02"),
		Functions:     fns,
		Instructions:  appInstructions(app),
	}

	var buf bytes.Buffer
	if err := queryTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render query prompt: %w", err)
	}
	return buf.String(), nil
}

func renderWorkflowPrompt(specsByApp map[string][]types.FunctionSpec, now time.Time) (string, error) {
	views := make(map[string][]map[string]any, len(specsByApp))
	for app, specs := range specsByApp {
		for _, fn := range specs {
			views[app] = append(views[app], fn.PromptView())
		}
	}
	fns, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render functions: %w", err)
	}

	var buf bytes.Buffer
	err = workflowTemplate.Execute(&buf, workflowPromptData{
		NowUTC:    now.UTC().Format(time.RFC3339),
		Functions: string(fns),
	})
	if err != nil {
		return "", fmt.Errorf("render workflow prompt: %w", err)
	}
	return buf.String(), nil
}

func workflowUserMessage(w *types.Workflow, params map[string]any) string {
	steps, _ := json.MarshalIndent(w.Steps, "", "  ")
	p, _ := json.MarshalIndent(params, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Workflow: %s\n", w.Name)
	fmt.Fprintf(&b, "Description: %s\n", w.Description)
	fmt.Fprintf(&b, "Required Apps: %s\n", strings.Join(w.RequiredApps, ", "))
	fmt.Fprintf(&b, "Workflow Steps: %s\n", steps)
	fmt.Fprintf(&b, "Parameters: %s\n", p)
	return b.String()
}

// savedWorkflowView is what the LLM sees of a saved workflow.
type savedWorkflowView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	RequiredApps []string `json:"required_apps"`
	Steps        []string `json:"steps"`
}

func renderMatchPrompt(saved []*types.Workflow, connected []string, specsByApp map[string][]types.FunctionSpec) (string, error) {
	views := make([]savedWorkflowView, 0, len(saved))
	for _, w := range saved {
		views = append(views, savedWorkflowView{
			ID:           w.ID,
			Name:         w.Name,
			Description:  w.Description,
			RequiredApps: w.RequiredApps,
			Steps:        w.Steps,
		})
	}
	workflows, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render workflows: %w", err)
	}

	// Names and descriptions only; parameters are settled when a run is planned.
	catalog := make(map[string][]string, len(specsByApp))
	for app, specs := range specsByApp {
		for _, fn := range specs {
			catalog[app] = append(catalog[app], fn.Name+": "+fn.Description)
		}
	}
	fns, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render functions: %w", err)
	}

	conn := "None"
	if len(connected) > 0 {
		conn = strings.Join(connected, ", ")
	}

	var buf bytes.Buffer
	err = matchTemplate.Execute(&buf, matchPromptData{
		Workflows:     string(workflows),
		ConnectedApps: conn,
		Functions:     string(fns),
		KnownApps:     strings.Join(types.KnownApps, ", "),
		MinApps:       types.MinWorkflowApps,
	})
	if err != nil {
		return "", fmt.Errorf("render match prompt: %w", err)
	}
	return buf.String(), nil
}

func matchUserMessage(prompt string, extra map[string]any) string {
	ctx := "None"
	if len(extra) > 0 {
		data, _ := json.Marshal(extra)
		ctx = string(data)
	}
	return fmt.Sprintf("User Request: %s\n\nAdditional Context: %s\n", prompt, ctx)
}
