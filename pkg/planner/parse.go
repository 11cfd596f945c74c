package planner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/Gabiro3/blimp2/pkg/types"
)

type wireFetch struct {
	App         *string         `json:"app"`
	Function    *string         `json:"function"`
	Parameters  json.RawMessage `json:"parameters"`
	Description string          `json:"description"`
}

type wireAction struct {
	Type        string          `json:"type"`
	App         string          `json:"app"`
	Function    string          `json:"function"`
	Parameters  json.RawMessage `json:"parameters"`
	Description string          `json:"description"`
	Condition   string          `json:"condition"`
}

type wirePlan struct {
	QueryType     *string         `json:"query_type"`
	DataFetchPlan json.RawMessage `json:"data_fetch_plan"`
	Actions       []wireAction    `json:"actions"`
	Reasoning     string          `json:"reasoning"`
}

type wireCall struct {
	Step           *int            `json:"step"`
	App            string          `json:"app"`
	Function       string          `json:"function"`
	Description    string          `json:"description"`
	Parameters     json.RawMessage `json:"parameters"`
	DependsOn      []int           `json:"depends_on"`
	UsesOutputFrom json.RawMessage `json:"uses_output_from"`
}

type wireWorkflowPlan struct {
	FunctionCalls   []wireCall        `json:"function_calls"`
	VariableMapping map[string]string `json:"variable_mapping"`
	Reasoning       string            `json:"reasoning"`
}

type wireMatch struct {
	IsNew    *bool `json:"is_new_workflow"`
	Workflow *struct {
		ID           *string  `json:"id"`
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		RequiredApps []string `json:"required_apps"`
		Steps        []string `json:"steps"`
		Category     string   `json:"category"`
	} `json:"workflow"`
	Reasoning string `json:"reasoning"`
}

// decodeObject decodes exactly one JSON object from raw into out.
// Code fences, prose and trailing data are rejected.
func decodeObject(stage, raw string, out any) error {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return &types.InvalidResponseError{Stage: stage, Reason: "response is not a JSON object"}
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	if err := dec.Decode(out); err != nil {
		return &types.InvalidResponseError{Stage: stage, Reason: "malformed JSON", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return &types.InvalidResponseError{Stage: stage, Reason: "unexpected data after the JSON object"}
	}
	return nil
}

// objectParams decodes a parameters field. Absent or null parameters are
// allowed only when optional is set; anything else must be a JSON object.
func objectParams(stage, field string, raw json.RawMessage, optional bool) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if optional {
			return map[string]any{}, nil
		}
		return nil, &types.InvalidResponseError{Stage: stage, Reason: field + " is missing"}
	}
	if raw[0] != '{' {
		return nil, &types.InvalidResponseError{Stage: stage, Reason: field + " must be an object"}
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &types.InvalidResponseError{Stage: stage, Reason: field + " must be an object", Err: err}
	}
	return params, nil
}

// ParsePlan strictly decodes the planner's JSON response. It checks the
// wire shape only; QueryPlan.Validate checks the plan invariants.
func ParsePlan(raw string) (*types.QueryPlan, error) {
	var wp wirePlan
	if err := decodeObject("plan", raw, &wp); err != nil {
		return nil, err
	}

	if wp.QueryType == nil {
		return nil, &types.InvalidResponseError{Stage: "plan", Reason: "query_type is missing"}
	}
	plan := &types.QueryPlan{
		QueryType: types.QueryType(strings.ToLower(strings.TrimSpace(*wp.QueryType))),
		Reasoning: wp.Reasoning,
		Actions:   make([]types.ActionStep, 0, len(wp.Actions)),
	}
	if !plan.QueryType.Valid() {
		return nil, &types.InvalidResponseError{Stage: "plan", Reason: fmt.Sprintf("unknown query_type %q", *wp.QueryType)}
	}

	fetch := bytes.TrimSpace(wp.DataFetchPlan)
	if len(fetch) > 0 && !bytes.Equal(fetch, []byte("null")) {
		var wf wireFetch
		if err := json.Unmarshal(fetch, &wf); err != nil {
			return nil, &types.InvalidResponseError{Stage: "plan", Reason: "data_fetch_plan is malformed", Err: err}
		}
		if wf.App == nil || wf.Function == nil {
			return nil, &types.InvalidResponseError{Stage: "plan", Reason: "data_fetch_plan needs app and function"}
		}
		params, err := objectParams("plan", "data_fetch_plan.parameters", wf.Parameters, false)
		if err != nil {
			return nil, err
		}
		// An empty function means "no fetch" to the planner.
		if strings.TrimSpace(*wf.Function) != "" {
			plan.DataFetchPlan = &types.DataFetchPlan{
				App:         types.NormalizeAppName(*wf.App),
				Function:    strings.TrimSpace(*wf.Function),
				Parameters:  params,
				Description: wf.Description,
			}
		}
	}

	for i, wa := range wp.Actions {
		if strings.TrimSpace(wa.App) == "" {
			return nil, &types.InvalidResponseError{Stage: "plan", Reason: fmt.Sprintf("action %d has no app", i)}
		}
		if strings.TrimSpace(wa.Function) == "" && strings.TrimSpace(wa.Type) == "" {
			return nil, &types.InvalidResponseError{Stage: "plan", Reason: fmt.Sprintf("action %d has neither function nor type", i)}
		}
		params, err := objectParams("plan", fmt.Sprintf("actions[%d].parameters", i), wa.Parameters, true)
		if err != nil {
			return nil, err
		}
		plan.Actions = append(plan.Actions, types.ActionStep{
			Type:        strings.TrimSpace(wa.Type),
			App:         types.NormalizeAppName(wa.App),
			Function:    strings.TrimSpace(wa.Function),
			Parameters:  params,
			Description: wa.Description,
			Condition:   types.ActionCondition(strings.TrimSpace(wa.Condition)),
		})
	}

	return plan, nil
}

var digitsRegex = regexp.MustCompile(`\d+`)

// ParseWorkflowPlan strictly decodes a multi-app plan.
func ParseWorkflowPlan(raw string) (*types.MultiAppPlan, error) {
	var wp wireWorkflowPlan
	if err := decodeObject("workflow plan", raw, &wp); err != nil {
		return nil, err
	}
	if len(wp.FunctionCalls) == 0 {
		return nil, &types.InvalidResponseError{Stage: "workflow plan", Reason: "function_calls is empty"}
	}

	plan := &types.MultiAppPlan{
		FunctionCalls:   make([]types.FunctionCall, 0, len(wp.FunctionCalls)),
		VariableMapping: wp.VariableMapping,
		Reasoning:       wp.Reasoning,
	}
	for i, wc := range wp.FunctionCalls {
		if wc.Step == nil {
			return nil, &types.InvalidResponseError{Stage: "workflow plan", Reason: fmt.Sprintf("call %d has no step", i)}
		}
		if strings.TrimSpace(wc.App) == "" || strings.TrimSpace(wc.Function) == "" {
			return nil, &types.InvalidResponseError{Stage: "workflow plan", Reason: fmt.Sprintf("step %d needs app and function", *wc.Step)}
		}
		params, err := objectParams("workflow plan", fmt.Sprintf("step %d parameters", *wc.Step), wc.Parameters, true)
		if err != nil {
			return nil, err
		}
		plan.FunctionCalls = append(plan.FunctionCalls, types.FunctionCall{
			Step:           *wc.Step,
			App:            types.NormalizeAppName(wc.App),
			Function:       strings.TrimSpace(wc.Function),
			Description:    wc.Description,
			Parameters:     params,
			DependsOn:      wc.DependsOn,
			UsesOutputFrom: outputStep(wc.UsesOutputFrom),
		})
	}
	return plan, nil
}

// outputStep accepts a step number or a reference such as "step_2_output".
func outputStep(raw json.RawMessage) *int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	m := digitsRegex.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

// ParseWorkflowMatch strictly decodes a workflow match. A match must name
// one of savedIDs; a new workflow needs a name, steps and enough known apps.
func ParseWorkflowMatch(raw string, savedIDs map[string]bool) (*types.WorkflowMatch, error) {
	const stage = "workflow match"

	var wm wireMatch
	if err := decodeObject(stage, raw, &wm); err != nil {
		return nil, err
	}
	if wm.IsNew == nil {
		return nil, &types.InvalidResponseError{Stage: stage, Reason: "is_new_workflow is missing"}
	}
	if wm.Workflow == nil {
		return nil, &types.InvalidResponseError{Stage: stage, Reason: "workflow is missing"}
	}

	w := wm.Workflow
	match := &types.WorkflowMatch{
		IsNew:       *wm.IsNew,
		Name:        strings.TrimSpace(w.Name),
		Description: strings.TrimSpace(w.Description),
		Category:    strings.TrimSpace(w.Category),
		Reasoning:   wm.Reasoning,
	}

	if !match.IsNew {
		if w.ID == nil || !savedIDs[*w.ID] {
			return nil, &types.InvalidResponseError{Stage: stage, Reason: "matched workflow id is not a saved workflow"}
		}
		match.WorkflowID = *w.ID
		return match, nil
	}

	if match.Name == "" {
		return nil, &types.InvalidResponseError{Stage: stage, Reason: "new workflow has no name"}
	}
	seen := map[string]bool{}
	for _, app := range w.RequiredApps {
		app = types.NormalizeAppName(app)
		if !types.IsKnownApp(app) {
			return nil, &types.InvalidResponseError{Stage: stage, Reason: fmt.Sprintf("unknown app %q", app)}
		}
		if !seen[app] {
			seen[app] = true
			match.RequiredApps = append(match.RequiredApps, app)
		}
	}
	if len(match.RequiredApps) < types.MinWorkflowApps {
		return nil, &types.InvalidResponseError{Stage: stage, Reason: fmt.Sprintf("new workflow spans %d apps, need %d", len(match.RequiredApps), types.MinWorkflowApps)}
	}
	for _, step := range w.Steps {
		if step = strings.TrimSpace(step); step != "" {
			match.Steps = append(match.Steps, step)
		}
	}
	if len(match.Steps) == 0 {
		return nil, &types.InvalidResponseError{Stage: stage, Reason: "new workflow has no steps"}
	}
	return match, nil
}
