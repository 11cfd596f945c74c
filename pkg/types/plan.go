package types

import (
	"fmt"
	"strings"
)

type QueryType string

const (
	QueryTypeInformational QueryType = "informational"
	QueryTypeActionable    QueryType = "actionable"
	QueryTypeConditional   QueryType = "conditional"
)

func (q QueryType) Valid() bool {
	switch q {
	case QueryTypeInformational, QueryTypeActionable, QueryTypeConditional:
		return true
	}
	return false
}

// FunctionGenerateAndInsert is the wire name the planner uses for the
// research-and-write branch. It is only interpreted by QueryPlan.FetchStep.
const FunctionGenerateAndInsert = "generate_and_insert_content"

// DataFetchPlan is the fetch half of a plan as produced by the planner.
type DataFetchPlan struct {
	App         string         `json:"app"`
	Function    string         `json:"function"`
	Parameters  map[string]any `json:"parameters"`
	Description string         `json:"description,omitempty"`
}

type ActionCondition string

const (
	ConditionNone            ActionCondition = ""
	ConditionOnlyIfAvailable ActionCondition = "only_if_available"
)

// ActionStep is a side-effecting call. Type names the function when
// Function is empty.
type ActionStep struct {
	Type        string          `json:"type"`
	App         string          `json:"app"`
	Function    string          `json:"function,omitempty"`
	Parameters  map[string]any  `json:"parameters"`
	Description string          `json:"description,omitempty"`
	Condition   ActionCondition `json:"condition,omitempty"`
}

func (a ActionStep) FunctionName() string {
	if a.Function != "" {
		return a.Function
	}
	return a.Type
}

// QueryPlan is the planner's output and the executor's input.
type QueryPlan struct {
	QueryType     QueryType      `json:"query_type"`
	DataFetchPlan *DataFetchPlan `json:"data_fetch_plan,omitempty"`
	Actions       []ActionStep   `json:"actions"`
	Reasoning     string         `json:"reasoning"`
}

// FetchStep is either a FetchCall or a GenerateAndInsert.
type FetchStep interface {
	fetchStep()
}

// FetchCall reads data through a registry function.
type FetchCall struct {
	App        string
	Function   string
	Parameters map[string]any
}

type InsertMode string

const (
	InsertCreateNew        InsertMode = "create_new"
	InsertAppendToExisting InsertMode = "append_to_existing"
)

// GenerateAndInsert researches a topic with the LLM and writes the result
// into a Google Doc.
type GenerateAndInsert struct {
	App           string
	Topic         string
	Mode          InsertMode
	DocumentTitle string
	DocumentName  string
}

func (FetchCall) fetchStep()         {}
func (GenerateAndInsert) fetchStep() {}

// HasFetch reports whether the plan names a fetch function.
func (p *QueryPlan) HasFetch() bool {
	return p.DataFetchPlan != nil && p.DataFetchPlan.Function != ""
}

// FetchStep resolves the wire-level fetch plan into its variant. It returns
// nil when the plan has no fetch.
func (p *QueryPlan) FetchStep() (FetchStep, error) {
	if !p.HasFetch() {
		return nil, nil
	}

	dfp := p.DataFetchPlan
	app := NormalizeAppName(dfp.App)
	if app == "" {
		return nil, &InvalidResponseError{Stage: "plan", Reason: "data_fetch_plan.app is empty"}
	}

	if dfp.Function != FunctionGenerateAndInsert {
		return FetchCall{App: app, Function: dfp.Function, Parameters: dfp.Parameters}, nil
	}

	// Research output is only ever written to Google Docs.
	if app != AppGoogleDocs {
		return nil, &UnsupportedOperationError{App: app, Function: dfp.Function}
	}

	topic := stringParam(dfp.Parameters, "research_topic")
	if topic == "" {
		return nil, &MissingParameterError{App: app, Function: dfp.Function, Params: []string{"research_topic"}}
	}

	step := GenerateAndInsert{
		App:           app,
		Topic:         topic,
		Mode:          InsertMode(stringParam(dfp.Parameters, "action")),
		DocumentTitle: stringParam(dfp.Parameters, "document_title"),
		DocumentName:  stringParam(dfp.Parameters, "document_name"),
	}

	switch step.Mode {
	case "":
		step.Mode = InsertCreateNew
	case InsertCreateNew:
	case InsertAppendToExisting:
		if step.DocumentName == "" {
			return nil, &MissingParameterError{App: app, Function: dfp.Function, Params: []string{"document_name"}}
		}
	default:
		return nil, &InvalidResponseError{Stage: "plan", Reason: fmt.Sprintf("unknown insert action %q", step.Mode)}
	}

	if step.Mode == InsertCreateNew && step.DocumentTitle == "" {
		step.DocumentTitle = "Research: " + topic
	}

	return step, nil
}

// PrimaryApp is the fetch app, or the first action's app when the plan has
// no fetch.
func (p *QueryPlan) PrimaryApp() string {
	if p.DataFetchPlan != nil && p.DataFetchPlan.App != "" {
		return NormalizeAppName(p.DataFetchPlan.App)
	}
	if len(p.Actions) > 0 {
		return NormalizeAppName(p.Actions[0].App)
	}
	return ""
}

// Validate checks the shape invariants tying query_type to the plan body.
func (p *QueryPlan) Validate() error {
	if p == nil {
		return &InvalidResponseError{Stage: "plan", Reason: "plan is empty"}
	}
	if !p.QueryType.Valid() {
		return &InvalidResponseError{Stage: "plan", Reason: fmt.Sprintf("unknown query_type %q", p.QueryType)}
	}

	step, err := p.FetchStep()
	if err != nil {
		return err
	}

	for i, action := range p.Actions {
		if strings.TrimSpace(action.App) == "" {
			return &InvalidResponseError{Stage: "plan", Reason: fmt.Sprintf("action %d has no app", i)}
		}
		if action.FunctionName() == "" {
			return &InvalidResponseError{Stage: "plan", Reason: fmt.Sprintf("action %d has no function", i)}
		}
		if action.Condition != ConditionNone && action.Condition != ConditionOnlyIfAvailable {
			return &InvalidResponseError{Stage: "plan", Reason: fmt.Sprintf("action %d has unknown condition %q", i, action.Condition)}
		}
	}

	_, isCall := step.(FetchCall)

	switch p.QueryType {
	case QueryTypeInformational:
		if len(p.Actions) > 0 {
			return &InvalidResponseError{Stage: "plan", Reason: "informational plans cannot carry actions"}
		}
		if step == nil {
			return &InvalidResponseError{Stage: "plan", Reason: "informational plans need a data_fetch_plan"}
		}
	case QueryTypeActionable:
		if isCall {
			return &InvalidResponseError{Stage: "plan", Reason: "actionable plans cannot carry a data fetch"}
		}
		if step == nil && len(p.Actions) == 0 {
			return &InvalidResponseError{Stage: "plan", Reason: "actionable plans need at least one action"}
		}
	case QueryTypeConditional:
		if !isCall {
			return &InvalidResponseError{Stage: "plan", Reason: "conditional plans need a data fetch"}
		}
		if len(p.Actions) != 1 || p.Actions[0].Condition != ConditionOnlyIfAvailable {
			return &InvalidResponseError{Stage: "plan", Reason: "conditional plans need exactly one only_if_available action"}
		}
	}

	if p.PrimaryApp() == "" {
		return &InvalidResponseError{Stage: "plan", Reason: "plan names no app"}
	}
	return nil
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	s, _ := params[key].(string)
	return strings.TrimSpace(s)
}
