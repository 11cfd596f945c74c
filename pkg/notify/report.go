package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/Gabiro3/blimp2/pkg/types"
)

//go:embed templates/*.html
var templateFS embed.FS

var workflowTemplate = template.Must(template.ParseFS(templateFS, "templates/workflow.html"))

type memberLine struct {
	User    string
	Success bool
	Error   string
}

type reportView struct {
	Name       string
	Success    bool
	Reasoning  string
	FinishedAt string
	Steps      []types.StepResult
	Members    []memberLine
}

// WorkflowReport renders the email for a finished multi-app run.
func WorkflowReport(result *types.MultiAppResult, finished time.Time) (Message, error) {
	view := reportView{
		Name:       result.WorkflowName,
		Success:    result.Success,
		Reasoning:  result.Reasoning,
		FinishedAt: finished.UTC().Format(time.RFC1123),
		Steps:      result.Steps,
	}
	return render(view, subject(result.WorkflowName, result.Success))
}

// TeamReport renders the summary sent to a team workflow's admin.
func TeamReport(result *types.TeamRunResult, finished time.Time) (Message, error) {
	users := make([]string, 0, len(result.Results)+len(result.Errors))
	for user := range result.Results {
		users = append(users, user)
	}
	for user := range result.Errors {
		if _, ok := result.Results[user]; !ok {
			users = append(users, user)
		}
	}
	sort.Strings(users)

	view := reportView{
		Name:       result.WorkflowName,
		Success:    result.Success,
		FinishedAt: finished.UTC().Format(time.RFC1123),
	}
	for _, user := range users {
		line := memberLine{User: user, Error: result.Errors[user]}
		if r := result.Results[user]; r != nil {
			line.Success = r.Success
		}
		view.Members = append(view.Members, line)
	}
	return render(view, subject(result.WorkflowName+" (team)", result.Success))
}

func subject(name string, ok bool) string {
	if ok {
		return fmt.Sprintf("Workflow completed: %s", name)
	}
	return fmt.Sprintf("Workflow finished with errors: %s", name)
}

func render(view reportView, subject string) (Message, error) {
	var buf bytes.Buffer
	if err := workflowTemplate.Execute(&buf, view); err != nil {
		return Message{}, fmt.Errorf("render workflow report: %w", err)
	}
	return Message{Subject: subject, HTML: buf.String()}, nil
}
