package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Gabiro3/blimp2/pkg/types"
)

var (
	wfFile     string
	wfName     string
	wfDesc     string
	wfApps     []string
	wfSteps    []string
	wfSchedule string
	wfNotify   string
	wfMembers  []string
	wfParams   []string
)

var workflowCmd = &cobra.Command{
	Use:     "workflow",
	Aliases: []string{"wf"},
	Short:   "Manage multi-app workflows",
}

var workflowCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a workflow from flags or a YAML file",
	Example: `  blimp workflow create -f digest.yaml
  blimp workflow create --name "Morning digest" \
    --app gmail --app google_calendar --app slack \
    --step "Summarize unread mail" --step "List today's meetings" --step "Post both to #daily" \
    --schedule "0 8 * * 1-5"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := &types.Workflow{}
		if wfFile != "" {
			var err error
			if w, err = loadWorkflowFile(wfFile); err != nil {
				return err
			}
		}
		if wfName != "" {
			w.Name = wfName
		}
		if wfDesc != "" {
			w.Description = wfDesc
		}
		if len(wfApps) > 0 {
			w.RequiredApps = wfApps
		}
		if len(wfSteps) > 0 {
			w.Steps = wfSteps
		}
		if wfSchedule != "" {
			w.Schedule = wfSchedule
		}
		if wfNotify != "" {
			w.NotifyEmail = wfNotify
		}
		if len(wfMembers) > 0 {
			w.Members = wfMembers
		}
		params, err := parseParams(wfParams)
		if err != nil {
			return err
		}
		if len(params) > 0 {
			w.Parameters = params
		}

		created, err := getClient().CreateWorkflow(cmd.Context(), w)
		if err != nil {
			return err
		}
		if !PrintJSON(created) {
			PrintSuccessf("Created %s", CodeStyle.Render(created.ID))
			printWorkflow(created)
		}
		return nil
	},
}

var workflowProcessCmd = &cobra.Command{
	Use:     "process <request...>",
	Short:   "Match a request to a saved workflow or create a new one",
	Example: `  blimp workflow process "every morning summarize my unread mail and post it to slack"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(wfParams)
		if err != nil {
			return err
		}
		result, err := getClient().ProcessWorkflow(cmd.Context(), strings.Join(args, " "), params)
		if err != nil {
			return err
		}
		if PrintJSON(result) {
			return nil
		}
		if result.IsNew {
			PrintSuccessf("Created %s", CodeStyle.Render(result.Workflow.ID))
		} else {
			PrintInfo("Matched saved workflow " + CodeStyle.Render(result.Workflow.ID))
		}
		printWorkflow(result.Workflow)
		if result.Reasoning != "" {
			PrintKeyValue("Reasoning", result.Reasoning)
		}
		if len(result.MissingApps) > 0 {
			PrintWarning("Not connected: " + strings.Join(result.MissingApps, ", "))
			PrintHint("Connect them with 'blimp connection add <app>'")
		}
		return nil
	},
}

var workflowListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List your workflows",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := getClient().ListWorkflows(cmd.Context())
		if err != nil {
			return err
		}
		if PrintJSON(list) {
			return nil
		}
		if len(list) == 0 {
			PrintInfo("No workflows")
			PrintHint("Create one with 'blimp workflow create'")
			return nil
		}

		table := NewTable("ID", "NAME", "APPS", "SCHEDULE", "TEAM")
		for _, w := range list {
			team := ""
			if w.IsTeam() {
				team = strconv.Itoa(len(w.Members))
			}
			table.AddRow(w.ID, Truncate(w.Name, 32), strings.Join(w.RequiredApps, ","), w.Schedule, team)
		}
		fmt.Println()
		table.Print()
		fmt.Println()
		return nil
	},
}

var workflowShowCmd = &cobra.Command{
	Use:   "show <workflow_id>",
	Short: "Show a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := getClient().GetWorkflow(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !PrintJSON(w) {
			printWorkflow(w)
		}
		return nil
	},
}

var workflowDeleteCmd = &cobra.Command{
	Use:     "delete <workflow_id>",
	Aliases: []string{"rm"},
	Short:   "Delete a workflow",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getClient().DeleteWorkflow(cmd.Context(), args[0]); err != nil {
			return err
		}
		if !PrintJSON(map[string]any{"deleted": args[0]}) {
			PrintSuccessf("Deleted %s", CodeStyle.Render(args[0]))
		}
		return nil
	},
}

var workflowRunCmd = &cobra.Command{
	Use:     "run <workflow_id>",
	Short:   "Run a workflow now",
	Example: `  blimp workflow run wf_123 --param channel=#ops --param limit=5`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(wfParams)
		if err != nil {
			return err
		}

		client := getClient()
		var result *types.MultiAppResult
		err = RunSpinner(cmd.Context(), "Running workflow...", func(ctx context.Context) error {
			r, err := client.RunWorkflow(ctx, args[0], params)
			result = r
			return err
		})
		if err != nil {
			return err
		}
		if !PrintJSON(result) {
			PrintWorkflowResult(result)
		}
		return nil
	},
}

var workflowRunTeamCmd = &cobra.Command{
	Use:   "run-team <workflow_id>",
	Short: "Run a team workflow for every member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(wfParams)
		if err != nil {
			return err
		}

		client := getClient()
		var result *types.TeamRunResult
		err = RunSpinner(cmd.Context(), "Running team workflow...", func(ctx context.Context) error {
			r, err := client.RunTeam(ctx, args[0], params)
			result = r
			return err
		})
		if err != nil {
			return err
		}
		if !PrintJSON(result) {
			PrintTeamResult(result)
		}
		return nil
	},
}

func init() {
	f := workflowCreateCmd.Flags()
	f.StringVarP(&wfFile, "file", "f", "", "YAML workflow definition")
	f.StringVar(&wfName, "name", "", "Workflow name")
	f.StringVar(&wfDesc, "description", "", "Workflow description")
	f.StringArrayVar(&wfApps, "app", nil, "Required app (repeat, at least 2)")
	f.StringArrayVar(&wfSteps, "step", nil, "Step in plain language (repeat)")
	f.StringVar(&wfSchedule, "schedule", "", "Cron schedule, UTC")
	f.StringVar(&wfNotify, "notify", "", "Email to notify after each run")
	f.StringArrayVar(&wfMembers, "member", nil, "Team member user id (repeat)")
	f.StringArrayVar(&wfParams, "param", nil, "Default parameter key=value (repeat)")

	workflowRunCmd.Flags().StringArrayVar(&wfParams, "param", nil, "Parameter key=value (repeat)")
	workflowRunTeamCmd.Flags().StringArrayVar(&wfParams, "param", nil, "Parameter key=value (repeat)")
	workflowProcessCmd.Flags().StringArrayVar(&wfParams, "param", nil, "Extra context key=value (repeat)")

	workflowCmd.AddCommand(workflowCreateCmd)
	workflowCmd.AddCommand(workflowProcessCmd)
	workflowCmd.AddCommand(workflowListCmd)
	workflowCmd.AddCommand(workflowShowCmd)
	workflowCmd.AddCommand(workflowDeleteCmd)
	workflowCmd.AddCommand(workflowRunCmd)
	workflowCmd.AddCommand(workflowRunTeamCmd)
}

// loadWorkflowFile reads a YAML definition using the API's field names.
func loadWorkflowFile(path string) (*types.Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var w types.Workflow
	if err := json.Unmarshal(encoded, &w); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &w, nil
}

// parseParams turns key=value pairs into parameters. Values that parse as
// JSON (numbers, booleans, arrays) keep their type.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		var typed any
		if err := json.Unmarshal([]byte(value), &typed); err == nil {
			params[key] = typed
		} else {
			params[key] = value
		}
	}
	return params, nil
}

func printWorkflow(w *types.Workflow) {
	PrintHeader(w.Name)
	PrintKeyValue("ID", w.ID)
	if w.Description != "" {
		PrintKeyValue("About", w.Description)
	}
	PrintKeyValue("Apps", strings.Join(w.RequiredApps, ", "))
	if w.Schedule != "" {
		PrintKeyValue("Schedule", w.Schedule+" UTC")
	}
	if w.NotifyEmail != "" {
		PrintKeyValue("Notify", w.NotifyEmail)
	}
	if w.IsTeam() {
		PrintKeyValue("Members", strings.Join(w.Members, ", "))
	}
	fmt.Println()
	for i, s := range w.Steps {
		fmt.Printf("  %s %s\n", DimStyle.Render(fmt.Sprintf("%d.", i+1)), s)
	}
	fmt.Println()
}
