package integrations

import (
	"context"

	"github.com/Gabiro3/blimp2/pkg/integrations/clients"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type githubPageParams struct {
	PerPage int `param:"per_page" validate:"gte=0,lte=100"`
}

func (p *githubPageParams) setDefaults() { p.PerPage = 10 }

type githubRepoListParams struct {
	Repo    string `param:"repo" validate:"required"`
	State   string `param:"state" validate:"oneof=open closed all"`
	PerPage int    `param:"per_page" validate:"gte=0,lte=100"`
}

func (p *githubRepoListParams) setDefaults() { p.State = "all"; p.PerPage = 10 }

type githubCreateIssueParams struct {
	Repo   string   `param:"repo" validate:"required"`
	Title  string   `param:"title" validate:"required"`
	Body   string   `param:"body"`
	Labels []string `param:"labels"`
}

type githubSearchParams struct {
	Query   string `param:"query" validate:"required"`
	PerPage int    `param:"per_page" validate:"gte=0,lte=100"`
}

func (p *githubSearchParams) setDefaults() { p.PerPage = 10 }

type githubHandlers struct {
	client *clients.GitHubClient
}

func registerGitHub(r *Registry, client *clients.GitHubClient) {
	h := &githubHandlers{client: client}
	r.Handle(types.AppGitHub, "list_repositories", Typed(h.listRepositories))
	r.Handle(types.AppGitHub, "list_issues", Typed(h.listIssues))
	r.Handle(types.AppGitHub, "list_pull_requests", Typed(h.listPullRequests))
	r.Handle(types.AppGitHub, "create_issue", Typed(h.createIssue))
	r.Handle(types.AppGitHub, "search_issues", Typed(h.searchIssues))
}

func (h *githubHandlers) listRepositories(ctx context.Context, call Call, p *githubPageParams) (Payload, error) {
	repos, err := h.client.ListRepositories(ctx, call.Token(), p.PerPage)
	if err != nil {
		return nil, err
	}
	return Payload{"repositories": items(repos), "count": len(repos)}, nil
}

func (h *githubHandlers) listIssues(ctx context.Context, call Call, p *githubRepoListParams) (Payload, error) {
	owner, repo, err := clients.SplitRepo(p.Repo)
	if err != nil {
		return nil, &types.InvalidParameterError{App: call.App, Function: call.Function, Reason: err.Error()}
	}
	issues, err := h.client.ListIssues(ctx, call.Token(), owner, repo, p.State, p.PerPage)
	if err != nil {
		return nil, err
	}
	return Payload{"issues": items(issues), "repository": p.Repo, "count": len(issues)}, nil
}

func (h *githubHandlers) listPullRequests(ctx context.Context, call Call, p *githubRepoListParams) (Payload, error) {
	owner, repo, err := clients.SplitRepo(p.Repo)
	if err != nil {
		return nil, &types.InvalidParameterError{App: call.App, Function: call.Function, Reason: err.Error()}
	}
	prs, err := h.client.ListPullRequests(ctx, call.Token(), owner, repo, p.State, p.PerPage)
	if err != nil {
		return nil, err
	}
	return Payload{"pull_requests": items(prs), "repository": p.Repo, "count": len(prs)}, nil
}

func (h *githubHandlers) createIssue(ctx context.Context, call Call, p *githubCreateIssueParams) (Payload, error) {
	owner, repo, err := clients.SplitRepo(p.Repo)
	if err != nil {
		return nil, &types.InvalidParameterError{App: call.App, Function: call.Function, Reason: err.Error()}
	}
	issue, err := h.client.CreateIssue(ctx, call.Token(), owner, repo, p.Title, p.Body, p.Labels)
	if err != nil {
		return nil, err
	}
	return Payload{"issue": issue}, nil
}

func (h *githubHandlers) searchIssues(ctx context.Context, call Call, p *githubSearchParams) (Payload, error) {
	issues, total, err := h.client.SearchIssues(ctx, call.Token(), p.Query, p.PerPage)
	if err != nil {
		return nil, err
	}
	return Payload{"issues": items(issues), "query": p.Query, "count": total}, nil
}
