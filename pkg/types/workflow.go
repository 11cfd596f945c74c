package types

import (
	"encoding/json"
	"time"
)

// FunctionCall is one step of a multi-app plan.
type FunctionCall struct {
	Step           int            `json:"step"`
	App            string         `json:"app"`
	Function       string         `json:"function"`
	Description    string         `json:"description,omitempty"`
	Parameters     map[string]any `json:"parameters"`
	DependsOn      []int          `json:"depends_on,omitempty"`
	UsesOutputFrom *int           `json:"uses_output_from,omitempty"`
}

// MultiAppPlan is the LLM-produced plan for a cross-app workflow.
type MultiAppPlan struct {
	FunctionCalls   []FunctionCall    `json:"function_calls"`
	VariableMapping map[string]string `json:"variable_mapping,omitempty"`
	Reasoning       string            `json:"reasoning,omitempty"`
}

type StepResult struct {
	Step     int            `json:"step"`
	App      string         `json:"app"`
	Function string         `json:"function"`
	Success  bool           `json:"success"`
	Result   map[string]any `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Skipped  bool           `json:"skipped,omitempty"`
}

type MultiAppResult struct {
	Success      bool           `json:"success"`
	WorkflowName string         `json:"workflow_name"`
	Steps        []StepResult   `json:"steps"`
	Outputs      map[string]any `json:"outputs,omitempty"`
	Reasoning    string         `json:"reasoning,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// MinWorkflowApps is the smallest app count a saved workflow may span.
// Single-app requests go through the chat pipeline instead.
const MinWorkflowApps = 2

// Workflow is a saved multi-app automation.
type Workflow struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	RequiredApps []string       `json:"required_apps"`
	Steps        []string       `json:"steps"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Schedule     string         `json:"schedule,omitempty"` // cron expression
	NotifyEmail  string         `json:"notify_email,omitempty"`
	Members      []string       `json:"members,omitempty"` // set for team workflows
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (w *Workflow) IsTeam() bool {
	return len(w.Members) > 0
}

type ExecutionKind string

const (
	ExecutionKindChat     ExecutionKind = "chat"
	ExecutionKindWorkflow ExecutionKind = "workflow"
	ExecutionKindTeam     ExecutionKind = "team"
)

type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Execution is the persisted record of a chat or workflow run. It never
// stores fetched items.
type Execution struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	WorkflowID string          `json:"workflow_id,omitempty"`
	Kind       ExecutionKind   `json:"kind"`
	Status     ExecutionStatus `json:"status"`
	Query      string          `json:"query,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TeamRunResult collects one workflow run per team member.
type TeamRunResult struct {
	Success      bool                       `json:"success"`
	WorkflowID   string                     `json:"workflow_id"`
	WorkflowName string                     `json:"workflow_name"`
	Results      map[string]*MultiAppResult `json:"results"`
	Errors       map[string]string          `json:"errors,omitempty"`
}

// WorkflowMatch is the LLM's reading of a free-text workflow request: either
// one of the user's saved workflows or the outline of a new one.
type WorkflowMatch struct {
	IsNew        bool     `json:"is_new_workflow"`
	WorkflowID   string   `json:"workflow_id,omitempty"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	RequiredApps []string `json:"required_apps"`
	Steps        []string `json:"steps,omitempty"`
	Category     string   `json:"category,omitempty"`
	Reasoning    string   `json:"reasoning,omitempty"`
}
