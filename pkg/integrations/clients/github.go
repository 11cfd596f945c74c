package clients

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubClient builds authenticated go-github clients per call.
// BaseURL overrides the API endpoint (GitHub Enterprise or tests).
type GitHubClient struct {
	BaseURL string
}

func NewGitHubClient() *GitHubClient {
	return &GitHubClient{}
}

func (c *GitHubClient) client(ctx context.Context, token string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if c.BaseURL != "" {
		base := c.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// SplitRepo splits "owner/repo" into its parts.
func SplitRepo(fullName string) (string, string, error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(fullName), "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("repository must be in owner/repo form, got %q", fullName)
	}
	return owner, repo, nil
}

func (c *GitHubClient) ListRepositories(ctx context.Context, token string, perPage int) ([]map[string]any, error) {
	client, err := c.client(ctx, token)
	if err != nil {
		return nil, err
	}
	repos, _, err := client.Repositories.ListByAuthenticatedUser(ctx, &github.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(repos))
	for _, r := range repos {
		items = append(items, repositoryItem(r))
	}
	return items, nil
}

// ListIssues lists issues of a repository, excluding pull requests.
func (c *GitHubClient) ListIssues(ctx context.Context, token, owner, repo, state string, perPage int) ([]map[string]any, error) {
	client, err := c.client(ctx, token)
	if err != nil {
		return nil, err
	}
	issues, _, err := client.Issues.ListByRepo(ctx, owner, repo, &github.IssueListByRepoOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(issues))
	for _, is := range issues {
		if is.IsPullRequest() {
			continue
		}
		items = append(items, issueItem(is, owner, repo))
	}
	return items, nil
}

func (c *GitHubClient) ListPullRequests(ctx context.Context, token, owner, repo, state string, perPage int) ([]map[string]any, error) {
	client, err := c.client(ctx, token)
	if err != nil {
		return nil, err
	}
	prs, _, err := client.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(prs))
	for _, pr := range prs {
		items = append(items, map[string]any{
			"id":        strconv.FormatInt(pr.GetID(), 10),
			"number":    pr.GetNumber(),
			"owner":     owner,
			"repo_name": repo,
			"title":     pr.GetTitle(),
			"state":     pr.GetState(),
			"author":    pr.GetUser().GetLogin(),
			"merged":    !pr.GetMergedAt().IsZero(),
			"draft":     pr.GetDraft(),
			"updated":   formatTime(pr.GetUpdatedAt().Time),
			"html_url":  pr.GetHTMLURL(),
		})
	}
	return items, nil
}

func (c *GitHubClient) CreateIssue(ctx context.Context, token, owner, repo, title, body string, labels []string) (map[string]any, error) {
	client, err := c.client(ctx, token)
	if err != nil {
		return nil, err
	}
	req := &github.IssueRequest{Title: github.String(title)}
	if body != "" {
		req.Body = github.String(body)
	}
	if len(labels) > 0 {
		req.Labels = &labels
	}
	issue, _, err := client.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return nil, err
	}
	return issueItem(issue, owner, repo), nil
}

// SearchIssues runs an issue search and returns the matches and total count.
func (c *GitHubClient) SearchIssues(ctx context.Context, token, query string, perPage int) ([]map[string]any, int, error) {
	client, err := c.client(ctx, token)
	if err != nil {
		return nil, 0, err
	}
	result, _, err := client.Search.Issues(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, 0, err
	}

	items := make([]map[string]any, 0, len(result.Issues))
	for _, is := range result.Issues {
		owner, repo := repoFromURL(is.GetRepositoryURL())
		items = append(items, issueItem(is, owner, repo))
	}
	return items, result.GetTotal(), nil
}

func repositoryItem(r *github.Repository) map[string]any {
	return map[string]any{
		"id":          strconv.FormatInt(r.GetID(), 10),
		"owner":       r.GetOwner().GetLogin(),
		"repo_name":   r.GetName(),
		"full_name":   r.GetFullName(),
		"description": r.GetDescription(),
		"private":     r.GetPrivate(),
		"language":    r.GetLanguage(),
		"stars":       r.GetStargazersCount(),
		"updated":     formatTime(r.GetUpdatedAt().Time),
		"html_url":    r.GetHTMLURL(),
	}
}

func issueItem(is *github.Issue, owner, repo string) map[string]any {
	return map[string]any{
		"id":        strconv.FormatInt(is.GetID(), 10),
		"number":    is.GetNumber(),
		"owner":     owner,
		"repo_name": repo,
		"title":     is.GetTitle(),
		"body":      is.GetBody(),
		"state":     is.GetState(),
		"author":    is.GetUser().GetLogin(),
		"updated":   formatTime(is.GetUpdatedAt().Time),
		"html_url":  is.GetHTMLURL(),
	}
}

// repoFromURL extracts owner and repo from an API repository URL
// such as https://api.github.com/repos/owner/repo.
func repoFromURL(raw string) (string, string) {
	_, path, ok := strings.Cut(raw, "/repos/")
	if !ok {
		return "", ""
	}
	owner, repo, _ := strings.Cut(path, "/")
	return owner, repo
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
