// Package gitlab implements the Forge Binding (spec.md §4.6) against
// GitLab's GraphQL API, grounded on the teacher's internal/gl client: the
// shurcooL/graphql generic client plus oauth2.StaticTokenSource, pointed
// at <base>/api/graphql.
package gitlab

import (
	"context"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/forge"
	"github.com/shurcooL/graphql"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://gitlab.com"

type Client struct {
	httpClient  *http.Client
	gl          *graphql.Client
	projectPath string // "group/project"
}

var _ forge.Binding = (*Client)(nil)

func New(token, baseURL, projectPath string) (*Client, error) {
	if token == "" {
		return nil, errors.WithStack(forge.ErrAuth)
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), src)
	return &Client{
		httpClient:  httpClient,
		gl:          graphql.NewClient(baseURL+"/api/graphql", httpClient),
		projectPath: projectPath,
	}, nil
}

func (c *Client) query(ctx context.Context, q any, vars map[string]any) error {
	start := time.Now()
	err := c.gl.Query(ctx, q, vars)
	logrus.WithFields(logrus.Fields{"elapsed": time.Since(start)}).WithError(err).Debug("gitlab query")
	return err
}

func (c *Client) mutate(ctx context.Context, m any, vars map[string]any) error {
	start := time.Now()
	err := c.gl.Mutate(ctx, m, vars)
	logrus.WithFields(logrus.Fields{"elapsed": time.Since(start)}).WithError(err).Debug("gitlab mutate")
	return err
}

// existingMROnBranch mirrors the GitHub binding's idempotency check:
// CreatePR must return the existing merge request's ID rather than
// opening a duplicate when one is already open for branch.
func (c *Client) existingMROnBranch(ctx context.Context, branch string) (id string, found bool, err error) {
	var q struct {
		Project struct {
			MergeRequests struct {
				Nodes []struct {
					ID    graphql.String
					IID   graphql.String
					State graphql.String
				}
			} `graphql:"mergeRequests(sourceBranches: [$branch], state: opened, first: 1)"`
		} `graphql:"project(fullPath: $path)"`
	}
	vars := map[string]any{
		"path":   graphql.ID(c.projectPath),
		"branch": graphql.String(branch),
	}
	if err := c.query(ctx, &q, vars); err != nil {
		return "", false, errors.WithStack(err)
	}
	if len(q.Project.MergeRequests.Nodes) == 0 {
		return "", false, nil
	}
	return string(q.Project.MergeRequests.Nodes[0].ID), true, nil
}

func (c *Client) CreatePR(ctx context.Context, branch, base, headCommit, title, body string, draft bool) (string, error) {
	if id, found, err := c.existingMROnBranch(ctx, branch); err != nil {
		return "", err
	} else if found {
		return id, nil
	}

	title2 := title
	if draft {
		title2 = "Draft: " + title
	}

	var m struct {
		MergeRequestCreate struct {
			MergeRequest struct {
				ID graphql.String
			}
			Errors []graphql.String
		} `graphql:"mergeRequestCreate(input: $input)"`
	}
	input := map[string]any{
		"projectPath":  graphql.ID(c.projectPath),
		"sourceBranch": graphql.String(branch),
		"targetBranch": graphql.String(base),
		"title":        graphql.String(title2),
		"description":  graphql.String(body),
	}
	if err := c.mutate(ctx, &m, map[string]any{"input": input}); err != nil {
		return "", errors.WrapIff(err, "failed to create merge request for %q", branch)
	}
	if len(m.MergeRequestCreate.Errors) > 0 {
		return "", errors.Errorf("gitlab rejected merge request creation: %v", m.MergeRequestCreate.Errors)
	}
	return string(m.MergeRequestCreate.MergeRequest.ID), nil
}

func (c *Client) UpdatePR(ctx context.Context, prID string, update forge.PRUpdate) error {
	input := map[string]any{"id": graphql.ID(prID)}
	if update.Base != nil {
		input["targetBranch"] = graphql.String(*update.Base)
	}
	if update.Title != nil {
		input["title"] = graphql.String(*update.Title)
	}
	if update.Body != nil {
		input["description"] = graphql.String(*update.Body)
	}
	if update.State != nil {
		state := "opened"
		if *update.State == "closed" {
			state = "closed"
		}
		input["state"] = graphql.String(state)
	}

	var m struct {
		MergeRequestUpdate struct {
			Errors []graphql.String
		} `graphql:"mergeRequestUpdate(input: $input)"`
	}
	if err := c.mutate(ctx, &m, map[string]any{"input": input}); err != nil {
		return errors.WrapIff(err, "failed to update merge request %q", prID)
	}
	if len(m.MergeRequestUpdate.Errors) > 0 {
		return errors.Errorf("gitlab rejected merge request update: %v", m.MergeRequestUpdate.Errors)
	}
	return nil
}

func (c *Client) MergePR(ctx context.Context, prID string, method forge.MergeMethod) (string, error) {
	status, err := c.GetPRStatus(ctx, prID)
	if err != nil {
		return "", err
	}
	if status.Merged {
		return "", nil
	}

	input := map[string]any{
		"id":     graphql.ID(prID),
		"squash": graphql.Boolean(method == forge.MergeMethodSquash),
	}

	var m struct {
		MergeRequestAccept struct {
			MergeRequest struct {
				MergeCommitSha graphql.String
			}
			Errors []graphql.String
		} `graphql:"mergeRequestAccept(input: $input)"`
	}
	if err := c.mutate(ctx, &m, map[string]any{"input": input}); err != nil {
		return "", errors.WrapIff(err, "failed to merge merge request %q", prID)
	}
	if len(m.MergeRequestAccept.Errors) > 0 {
		return "", errors.Errorf("gitlab rejected merge request merge: %v", m.MergeRequestAccept.Errors)
	}
	return string(m.MergeRequestAccept.MergeRequest.MergeCommitSha), nil
}

func (c *Client) GetPRStatus(ctx context.Context, prID string) (forge.Status, error) {
	var q struct {
		Node struct {
			MergeRequest struct {
				MergedAt      graphql.String
				State         graphql.String
				ApprovalsLeft graphql.Int
			} `graphql:"... on MergeRequest"`
		} `graphql:"node(id: $id)"`
	}
	if err := c.query(ctx, &q, map[string]any{"id": graphql.ID(prID)}); err != nil {
		return forge.Status{}, errors.WrapIff(err, "failed to fetch status for %q", prID)
	}
	mr := q.Node.MergeRequest
	review := "pending"
	if mr.ApprovalsLeft == 0 {
		review = "approved"
	}
	return forge.Status{
		Review: review,
		Merged: mr.MergedAt != "",
		Closed: string(mr.State) == "closed",
	}, nil
}

func (c *Client) ListPRs(ctx context.Context) ([]forge.PRSummary, error) {
	var q struct {
		Project struct {
			MergeRequests struct {
				Nodes []struct {
					ID           graphql.String
					State        graphql.String
					SourceBranch graphql.String
				}
			} `graphql:"mergeRequests(state: opened, first: 100)"`
		} `graphql:"project(fullPath: $path)"`
	}
	if err := c.query(ctx, &q, map[string]any{"path": graphql.ID(c.projectPath)}); err != nil {
		return nil, errors.Wrap(err, "failed to list merge requests")
	}
	out := make([]forge.PRSummary, 0, len(q.Project.MergeRequests.Nodes))
	for _, n := range q.Project.MergeRequests.Nodes {
		out = append(out, forge.PRSummary{
			Branch: string(n.SourceBranch),
			PRID:   string(n.ID),
			State:  string(n.State),
		})
	}
	return out, nil
}
