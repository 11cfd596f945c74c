package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gabiro3/blimp2/pkg/gateway/services"
	"github.com/Gabiro3/blimp2/pkg/types"
)

var (
	askTimezone string
	askYes      bool
	askPlanOnly bool
	historySize int
)

var askCmd = &cobra.Command{
	Use:   "ask <app> <question...>",
	Short: "Ask a question or give an instruction for one app",
	Long: `Plan a request against one connected app, then run it.

Plans with actions (sending mail, posting messages, creating events) are
shown for confirmation first unless --yes is given.`,
	Example: `  blimp ask gmail "show me emails from Simon about funding"
  blimp ask google_calendar "book 30 minutes with Ana tomorrow at 3pm if I'm free" --yes
  blimp ask slack "what did #eng discuss today" --json`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent requests and workflow runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := getClient().History(cmd.Context(), historySize)
		if err != nil {
			return err
		}
		if PrintJSON(history) {
			return nil
		}
		if len(history) == 0 {
			PrintInfo("No history yet")
			return nil
		}

		now := time.Now()
		table := NewTable("WHEN", "KIND", "STATUS", "REQUEST")
		for _, e := range history {
			label := e.Query
			if label == "" {
				label = e.WorkflowID
			}
			table.AddRow(FormatRelativeTime(e.CreatedAt, now), string(e.Kind), string(e.Status), Truncate(label, 60))
		}
		fmt.Println()
		table.Print()
		fmt.Println()
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askTimezone, "timezone", localTimezone(), "IANA timezone used to resolve dates")
	askCmd.Flags().BoolVarP(&askYes, "yes", "y", false, "Run actions without asking")
	askCmd.Flags().BoolVar(&askPlanOnly, "plan", false, "Only show the plan")
	historyCmd.Flags().IntVarP(&historySize, "limit", "n", 20, "Number of entries")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client := getClient()
	app, query := args[0], strings.Join(args[1:], " ")

	var plan *services.PlanResponse
	err := RunSpinner(ctx, "Planning...", func(ctx context.Context) error {
		var err error
		plan, err = client.Plan(ctx, query, app, askTimezone)
		return err
	})
	if err != nil {
		return err
	}

	if askPlanOnly {
		if !PrintJSON(plan) {
			PrintPlan(plan)
			fmt.Println()
		}
		return nil
	}

	if len(plan.Actions) > 0 && !askYes && !IsJSONOutput() {
		PrintPlan(plan)
		if !confirm("Run these actions?") {
			PrintInfo("Canceled")
			return nil
		}
	}

	var result *types.ExecutionResult
	err = RunSpinner(ctx, "Running...", func(ctx context.Context) error {
		var err error
		result, err = client.Execute(ctx, services.ExecuteRequest{
			Query:         query,
			QueryType:     plan.QueryType,
			DataFetchPlan: plan.DataFetchPlan,
			Actions:       plan.Actions,
			Reasoning:     plan.Reasoning,
		})
		return err
	})
	if err != nil {
		return err
	}

	if !PrintJSON(result) {
		PrintAnswer(result)
	}
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("\n  %s %s ", BoldStyle.Render(prompt), DimStyle.Render("[y/N]"))
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func localTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	if name := time.Local.String(); name != "Local" {
		return name
	}
	return "UTC"
}
