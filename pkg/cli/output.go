package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/Gabiro3/blimp2/pkg/gateway/services"
	"github.com/Gabiro3/blimp2/pkg/types"
)

// outputJSON controls whether commands should output JSON instead of styled text
var outputJSON bool

// SetJSONOutput sets the JSON output mode
func SetJSONOutput(enabled bool) {
	outputJSON = enabled
}

// IsJSONOutput returns true if JSON output mode is enabled
func IsJSONOutput() bool {
	return outputJSON
}

// PrintJSON outputs data as JSON if JSON mode is enabled, returns true if it did
func PrintJSON(data interface{}) bool {
	if !outputJSON {
		return false
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(data)
	return true
}

func PrintSuccess(msg string) {
	fmt.Printf("  %s %s\n", SuccessStyle.Render(SymbolSuccess), msg)
}

func PrintSuccessf(format string, args ...interface{}) {
	PrintSuccess(fmt.Sprintf(format, args...))
}

func PrintErrorMsg(msg string) {
	fmt.Printf("  %s %s\n", ErrorStyle.Render(SymbolError), ErrorStyle.Render(msg))
}

func PrintWarning(msg string) {
	fmt.Printf("  %s %s\n", WarningStyle.Render(SymbolWarning), WarningStyle.Render(msg))
}

func PrintSkipped(msg string) {
	fmt.Printf("  %s %s\n", DimStyle.Render(SymbolSkipped), DimStyle.Render(msg))
}

func PrintInfo(msg string) {
	fmt.Printf("  %s %s\n", InfoStyle.Render(SymbolInfo), msg)
}

// PrintHint prints a subtle hint/suggestion
func PrintHint(msg string) {
	fmt.Printf("\n  %s\n", HintStyle.Render(msg))
}

// PrintSuggestions prints a list of suggestions
func PrintSuggestions(title string, suggestions []string) {
	fmt.Println()
	fmt.Printf("  %s\n", DimStyle.Render(title))
	for _, s := range suggestions {
		fmt.Printf("    %s %s\n", DimStyle.Render(SymbolBullet), s)
	}
}

// PrintHeader prints a section header
func PrintHeader(title string) {
	fmt.Printf("\n  %s\n\n", BoldStyle.Render(title))
}

// PrintKeyValue prints a key-value pair with consistent alignment
func PrintKeyValue(key, value string) {
	fmt.Printf("  %s %s\n", KeyStyle.Render(key), value)
}

func PrintKeyValueStyled(key, value string, valueStyle lipgloss.Style) {
	fmt.Printf("  %s %s\n", KeyStyle.Render(key), valueStyle.Render(value))
}

func PrintBullet(text string) {
	fmt.Printf("    %s %s\n", DimStyle.Render(SymbolBullet), text)
}

// Table represents a styled table
type Table struct {
	Headers []string
	Rows    [][]string
	Widths  []int
}

// NewTable creates a new table with the given headers
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &Table{
		Headers: headers,
		Widths:  widths,
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.Headers))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
			if len(cells[i]) > t.Widths[i] {
				t.Widths[i] = len(cells[i])
			}
		}
	}
	t.Rows = append(t.Rows, row)
}

// String renders the table
func (t *Table) String() string {
	if len(t.Rows) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("  ")
	for i, h := range t.Headers {
		b.WriteString(TableHeaderStyle.Width(t.Widths[i] + 2).Render(h))
	}
	b.WriteString("\n  ")
	for i := range t.Headers {
		b.WriteString(DimStyle.Render(strings.Repeat("─", t.Widths[i])))
		b.WriteString("  ")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		b.WriteString("  ")
		for i, cell := range row {
			b.WriteString(TableCellStyle.Width(t.Widths[i] + 2).Render(cell))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (t *Table) Print() {
	fmt.Print(t.String())
}

// FormatRelativeTime formats a timestamp relative to now (e.g., "2 hours ago")
func FormatRelativeTime(t time.Time, now time.Time) string {
	d := now.Sub(t)
	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	case d < 7*24*time.Hour:
		return plural(int(d.Hours()/24), "day")
	case d < 30*24*time.Hour:
		return plural(int(d.Hours()/24/7), "week")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// Truncate truncates a string to maxLen, adding "..." if needed
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// renderMarkdown renders LLM answers for the terminal, falling back to the
// raw text when no renderer is available.
func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

// PrintPlan shows what a plan will do before it runs.
func PrintPlan(plan *services.PlanResponse) {
	PrintHeader("Plan")
	PrintKeyValue("App", plan.App)
	PrintKeyValueStyled("Type", string(plan.QueryType), queryTypeStyle(plan.QueryType))
	if plan.DataFetchPlan != nil {
		PrintKeyValue("Fetch", CodeStyle.Render(plan.DataFetchPlan.Function))
	}
	for _, a := range plan.Actions {
		line := CodeStyle.Render(a.App + "." + a.FunctionName())
		if a.Description != "" {
			line += " " + DimStyle.Render(a.Description)
		}
		if a.Condition != types.ConditionNone {
			line += " " + WarningStyle.Render("["+string(a.Condition)+"]")
		}
		PrintBullet(line)
	}
	if plan.Reasoning != "" {
		fmt.Printf("\n  %s\n", HintStyle.Render(plan.Reasoning))
	}
}

// PrintAnswer shows an execution result.
func PrintAnswer(r *types.ExecutionResult) {
	fmt.Println()
	fmt.Print(renderMarkdown(r.Answer))

	PrintKeyValueStyled("Confidence", string(r.Confidence), confidenceStyle(r.Confidence))
	if r.ItemCount > 0 {
		PrintKeyValue("Items", fmt.Sprintf("%d %s", r.ItemCount, r.DataType))
	}

	if len(r.ActionsTaken) > 0 {
		PrintHeader("Actions")
		for _, a := range r.ActionsTaken {
			name := a.App + "." + a.Action
			switch {
			case a.Skipped:
				PrintSkipped(name + ": " + a.Reason)
			case a.Success:
				PrintSuccess(name)
			default:
				PrintErrorMsg(name + ": " + a.Error)
			}
		}
	}
	if r.PartialFailure != nil {
		PrintWarning(r.PartialFailure.Error())
	}

	if len(r.ResourceURLs) > 0 {
		PrintHeader("Open")
		for _, u := range r.ResourceURLs {
			PrintBullet(fmt.Sprintf("%s %s", Truncate(u.Summary, 60), LinkStyle.Render(u.URL)))
		}
	}
	if len(r.SuggestedActions) > 0 {
		PrintSuggestions("Suggested next steps:", r.SuggestedActions)
	}
	fmt.Println()
}

// PrintWorkflowResult shows each step of a multi-app run.
func PrintWorkflowResult(r *types.MultiAppResult) {
	PrintHeader(r.WorkflowName)
	for _, s := range r.Steps {
		name := fmt.Sprintf("%d. %s.%s", s.Step, s.App, s.Function)
		switch {
		case s.Skipped:
			PrintSkipped(name + ": " + s.Error)
		case s.Success:
			PrintSuccess(name)
		default:
			PrintErrorMsg(name + ": " + s.Error)
		}
	}
	if r.Error != "" {
		PrintWarning(r.Error)
	}
	fmt.Println()
}

// PrintTeamResult shows one line per member.
func PrintTeamResult(r *types.TeamRunResult) {
	PrintHeader(r.WorkflowName + " (team)")

	members := make([]string, 0, len(r.Results)+len(r.Errors))
	for m := range r.Results {
		members = append(members, m)
	}
	for m := range r.Errors {
		if _, ok := r.Results[m]; !ok {
			members = append(members, m)
		}
	}
	sort.Strings(members)

	for _, m := range members {
		if msg, failed := r.Errors[m]; failed {
			PrintErrorMsg(m + ": " + msg)
			continue
		}
		if res := r.Results[m]; res.Success {
			PrintSuccess(m)
		} else {
			PrintErrorMsg(m + ": " + res.Error)
		}
	}
	fmt.Println()
}
