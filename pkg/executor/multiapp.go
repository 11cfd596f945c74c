package executor

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Gabiro3/blimp2/pkg/integrations"
	"github.com/Gabiro3/blimp2/pkg/types"
)

var stepRef = regexp.MustCompile(`\$\{step_?(\d+)_output\}`)

// RunMultiApp plans a saved workflow with the LLM and runs its function
// calls in step order. A step whose dependency failed is skipped.
func (e *Executor) RunMultiApp(ctx context.Context, userID string, w *types.Workflow, params map[string]any) (*types.MultiAppResult, error) {
	if len(w.RequiredApps) < types.MinWorkflowApps {
		return nil, &types.InvalidParameterError{
			App:      "workflow",
			Function: w.Name,
			Reason:   fmt.Sprintf("multi-app workflows need at least %d apps, got %d", types.MinWorkflowApps, len(w.RequiredApps)),
		}
	}
	if e.planner == nil {
		return nil, &types.NotConfiguredError{Service: "llm"}
	}

	creds := credentialCache{}
	credErrs := map[string]error{}
	for _, app := range w.RequiredApps {
		app = types.NormalizeAppName(app)
		if _, err := e.cachedCredential(ctx, creds, userID, app); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Str("app", app).Msg("workflow app unavailable")
			credErrs[app] = err
		}
	}

	plan, err := e.planner.PlanWorkflow(ctx, w, params)
	if err != nil {
		return nil, err
	}

	calls := append([]types.FunctionCall(nil), plan.FunctionCalls...)
	sort.SliceStable(calls, func(i, j int) bool { return calls[i].Step < calls[j].Step })

	result := &types.MultiAppResult{
		Success:      true,
		WorkflowName: w.Name,
		Steps:        make([]types.StepResult, 0, len(calls)),
		Outputs:      map[string]any{},
		Reasoning:    plan.Reasoning,
	}
	failed := map[int]bool{}

	for _, call := range calls {
		app := types.NormalizeAppName(call.App)
		step := types.StepResult{Step: call.Step, App: app, Function: call.Function}

		if dep, ok := failedDependency(call, failed); ok {
			step.Skipped = true
			step.Error = fmt.Sprintf("skipped: step %d failed", dep)
			failed[call.Step] = true
			result.Success = false
			result.Steps = append(result.Steps, step)
			log.Info().Str("user_id", userID).Int("step", call.Step).Int("depends_on", dep).Msg("workflow step skipped")
			continue
		}

		payload, err := e.runStep(ctx, userID, app, call, creds, credErrs, result.Outputs)
		if err != nil {
			step.Error = err.Error()
			failed[call.Step] = true
			result.Success = false
			result.Steps = append(result.Steps, step)
			log.Warn().Err(err).Str("user_id", userID).Int("step", call.Step).Str("app", app).Str("function", call.Function).Msg("workflow step failed")
			continue
		}

		step.Success = true
		step.Result = payload
		result.Outputs[fmt.Sprintf("step_%d_output", call.Step)] = map[string]any(payload)
		result.Steps = append(result.Steps, step)
		log.Info().Str("user_id", userID).Int("step", call.Step).Str("app", app).Str("function", call.Function).Msg("workflow step completed")
	}

	if !result.Success {
		result.Error = "one or more workflow steps failed"
	}
	return result, nil
}

func (e *Executor) runStep(ctx context.Context, userID, app string, call types.FunctionCall, creds credentialCache, credErrs map[string]error, outputs map[string]any) (integrations.Payload, error) {
	if err, ok := credErrs[app]; ok {
		return nil, err
	}
	cred, err := e.cachedCredential(ctx, creds, userID, app)
	if err != nil {
		return nil, err
	}

	params, _ := substitute(call.Parameters, outputs).(map[string]any)
	if params == nil {
		params = map[string]any{}
	}

	return e.registry.Invoke(ctx, app, call.Function, integrations.Call{
		UserID:     userID,
		Credential: cred,
		Params:     params,
	})
}

func failedDependency(call types.FunctionCall, failed map[int]bool) (int, bool) {
	for _, dep := range call.DependsOn {
		if failed[dep] {
			return dep, true
		}
	}
	if call.UsesOutputFrom != nil && failed[*call.UsesOutputFrom] {
		return *call.UsesOutputFrom, true
	}
	return 0, false
}

// substitute replaces ${stepN_output} and ${step_N_output} references in
// strings, maps and lists. A string that is exactly one reference takes the
// referenced value; embedded references are rendered as text. Unknown
// references are left as written.
func substitute(v any, outputs map[string]any) any {
	switch t := v.(type) {
	case string:
		if m := stepRef.FindStringSubmatch(t); m != nil && m[0] == t {
			if out, ok := outputs["step_"+m[1]+"_output"]; ok {
				return out
			}
			return t
		}
		return stepRef.ReplaceAllStringFunc(t, func(ref string) string {
			n := stepRef.FindStringSubmatch(ref)[1]
			out, ok := outputs["step_"+n+"_output"]
			if !ok {
				return ref
			}
			return render(out)
		})
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = substitute(val, outputs)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = substitute(val, outputs)
		}
		return out
	}
	return v
}

func render(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+render(t[k]))
		}
		return strings.Join(parts, "\n")
	case []any:
		parts := make([]string, 0, len(t))
		for _, val := range t {
			parts = append(parts, render(val))
		}
		return strings.Join(parts, "\n")
	}
	return fmt.Sprint(v)
}
