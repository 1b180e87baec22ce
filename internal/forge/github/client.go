// Package github implements the Forge Binding (spec.md §4.6) against
// GitHub's GraphQL API, grounded on the teacher's internal/gh client: the
// same githubv4 + oauth2.StaticTokenSource wiring, and the same
// query/mutate logging wrapper.
package github

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/forge"
	"github.com/shurcooL/githubv4"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

type Client struct {
	httpClient *http.Client
	gh         *githubv4.Client
	owner, repo string
	repositoryID string
}

var _ forge.Binding = (*Client)(nil)

// New creates a GitHub-backed Binding for owner/repo. repositoryID is the
// GraphQL node ID used as CreatePullRequestInput.RepositoryID; callers
// resolve it once at `init` time and persist it on meta.Repository.
func New(token, owner, repo, repositoryID string) (*Client, error) {
	if token == "" {
		return nil, errors.WithStack(forge.ErrAuth)
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), src)
	return &Client{
		httpClient:   httpClient,
		gh:           githubv4.NewClient(httpClient),
		owner:        owner,
		repo:         repo,
		repositoryID: repositoryID,
	}, nil
}

// ResolveRepositoryID fetches the GraphQL node ID for owner/repo, used once
// at `pk init` time and persisted onto meta.Repository so later CreatePR
// calls don't need to re-resolve it.
func (c *Client) ResolveRepositoryID(ctx context.Context) (string, error) {
	var q struct {
		Repository struct {
			ID githubv4.ID
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}
	vars := map[string]any{"owner": githubv4.String(c.owner), "repo": githubv4.String(c.repo)}
	if err := c.query(ctx, &q, vars); err != nil {
		return "", errors.WrapIff(err, "failed to resolve repository id for %s/%s", c.owner, c.repo)
	}
	return fmt.Sprint(q.Repository.ID), nil
}

func (c *Client) query(ctx context.Context, q any, vars map[string]any) error {
	start := time.Now()
	err := c.gh.Query(ctx, q, vars)
	logrus.WithFields(logrus.Fields{"elapsed": time.Since(start)}).
		WithError(err).Debug("github query")
	return err
}

func (c *Client) mutate(ctx context.Context, m any, input githubv4.Input, vars map[string]any) error {
	start := time.Now()
	err := c.gh.Mutate(ctx, m, input, vars)
	logrus.WithFields(logrus.Fields{"elapsed": time.Since(start)}).
		WithError(err).Debug("github mutate")
	return err
}

// existingPROnHead finds an open PR already pointed at head, so CreatePR
// can be idempotent on retry (spec.md §4.6: keyed on (branch, head
// commit)).
func (c *Client) existingPROnHead(ctx context.Context, branch string) (id string, number int64, url string, found bool, err error) {
	var q struct {
		Repository struct {
			PullRequests struct {
				Nodes []struct {
					ID     githubv4.ID
					Number githubv4.Int
					URL    githubv4.URI
					State  githubv4.PullRequestState
				}
			} `graphql:"pullRequests(headRefName: $head, states: [OPEN], first: 1)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}
	vars := map[string]any{
		"owner": githubv4.String(c.owner),
		"repo":  githubv4.String(c.repo),
		"head":  githubv4.String(branch),
	}
	if err := c.query(ctx, &q, vars); err != nil {
		return "", 0, "", false, errors.WithStack(err)
	}
	if len(q.Repository.PullRequests.Nodes) == 0 {
		return "", 0, "", false, nil
	}
	n := q.Repository.PullRequests.Nodes[0]
	return fmt.Sprint(n.ID), int64(n.Number), n.URL.String(), true, nil
}

func (c *Client) CreatePR(ctx context.Context, branch, base, headCommit, title, body string, draft bool) (string, error) {
	if id, _, _, found, err := c.existingPROnHead(ctx, branch); err != nil {
		return "", err
	} else if found {
		return id, nil
	}
	if c.repositoryID == "" {
		id, err := c.ResolveRepositoryID(ctx)
		if err != nil {
			return "", err
		}
		c.repositoryID = id
	}

	var m struct {
		CreatePullRequest struct {
			PullRequest struct {
				ID     githubv4.ID
				Number githubv4.Int
			}
		} `graphql:"createPullRequest(input: $input)"`
	}
	input := githubv4.CreatePullRequestInput{
		RepositoryID: githubv4.ID(c.repositoryID),
		BaseRefName:  githubv4.String(base),
		HeadRefName:  githubv4.String(branch),
		Title:        githubv4.String(title),
		Body:         ptr(githubv4.String(body)),
		Draft:        ptr(githubv4.Boolean(draft)),
	}
	if err := c.mutate(ctx, &m, input, nil); err != nil {
		return "", errors.WrapIff(err, "failed to create pull request for %q", branch)
	}
	return fmt.Sprint(m.CreatePullRequest.PullRequest.ID), nil
}

func (c *Client) UpdatePR(ctx context.Context, prID string, update forge.PRUpdate) error {
	input := githubv4.UpdatePullRequestInput{PullRequestID: githubv4.ID(prID)}
	if update.Base != nil {
		input.BaseRefName = ptr(githubv4.String(*update.Base))
	}
	if update.Title != nil {
		input.Title = ptr(githubv4.String(*update.Title))
	}
	if update.Body != nil {
		input.Body = ptr(githubv4.String(*update.Body))
	}
	if update.State != nil && *update.State == "closed" {
		var m struct {
			ClosePullRequest struct {
				PullRequest struct{ ID githubv4.ID }
			} `graphql:"closePullRequest(input: $input)"`
		}
		return errors.WithStack(c.mutate(ctx, &m, githubv4.ClosePullRequestInput{PullRequestID: githubv4.ID(prID)}, nil))
	}

	var m struct {
		UpdatePullRequest struct {
			PullRequest struct{ ID githubv4.ID }
		} `graphql:"updatePullRequest(input: $input)"`
	}
	if err := c.mutate(ctx, &m, input, nil); err != nil {
		return errors.WrapIff(err, "failed to update pull request %q", prID)
	}
	return nil
}

func (c *Client) MergePR(ctx context.Context, prID string, method forge.MergeMethod) (string, error) {
	status, err := c.GetPRStatus(ctx, prID)
	if err != nil {
		return "", err
	}
	if status.Merged {
		return "", nil // idempotent: already merged, no new commit to report
	}

	var m struct {
		MergePullRequest struct {
			PullRequest struct {
				MergeCommit struct{ Oid githubv4.GitObjectID }
			}
		} `graphql:"mergePullRequest(input: $input)"`
	}
	input := githubv4.MergePullRequestInput{
		PullRequestID: githubv4.ID(prID),
		MergeMethod:   ghMergeMethod(method),
	}
	if err := c.mutate(ctx, &m, input, nil); err != nil {
		return "", errors.WrapIff(err, "failed to merge pull request %q", prID)
	}
	return string(m.MergePullRequest.PullRequest.MergeCommit.Oid), nil
}

func ghMergeMethod(method forge.MergeMethod) *githubv4.PullRequestMergeMethod {
	m := githubv4.PullRequestMergeMethodMerge
	switch method {
	case forge.MergeMethodSquash:
		m = githubv4.PullRequestMergeMethodSquash
	case forge.MergeMethodRebase:
		m = githubv4.PullRequestMergeMethodRebase
	}
	return &m
}

func (c *Client) GetPRStatus(ctx context.Context, prID string) (forge.Status, error) {
	var q struct {
		Node struct {
			PullRequest struct {
				Merged         githubv4.Boolean
				Closed         githubv4.Boolean
				ReviewDecision githubv4.PullRequestReviewDecision
			} `graphql:"... on PullRequest"`
		} `graphql:"node(id: $id)"`
	}
	if err := c.query(ctx, &q, map[string]any{"id": githubv4.ID(prID)}); err != nil {
		return forge.Status{}, errors.WrapIff(err, "failed to fetch status for %q", prID)
	}
	pr := q.Node.PullRequest
	return forge.Status{
		Review: string(pr.ReviewDecision),
		Merged: bool(pr.Merged),
		Closed: bool(pr.Closed),
	}, nil
}

func (c *Client) ListPRs(ctx context.Context) ([]forge.PRSummary, error) {
	var q struct {
		Repository struct {
			PullRequests struct {
				Nodes []struct {
					ID          githubv4.ID
					State       githubv4.PullRequestState
					HeadRefName githubv4.String
				}
			} `graphql:"pullRequests(states: [OPEN], first: 100)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}
	vars := map[string]any{"owner": githubv4.String(c.owner), "repo": githubv4.String(c.repo)}
	if err := c.query(ctx, &q, vars); err != nil {
		return nil, errors.Wrap(err, "failed to list pull requests")
	}
	out := make([]forge.PRSummary, 0, len(q.Repository.PullRequests.Nodes))
	for _, n := range q.Repository.PullRequests.Nodes {
		out = append(out, forge.PRSummary{
			Branch: string(n.HeadRefName),
			PRID:   fmt.Sprint(n.ID),
			State:  string(n.State),
		})
	}
	return out, nil
}

func ptr[T any](v T) *T { return &v }
