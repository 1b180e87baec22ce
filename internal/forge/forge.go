// Package forge is the Forge Binding (C6, spec.md §4.6): a narrow,
// provider-agnostic surface for creating and updating pull requests.
// Concrete implementations (internal/forge/github, internal/forge/gitlab)
// are injected into the Operation Engine; forge.go itself holds no
// transport code.
package forge

import "context"

// Status is the polled review/CI/merge state of a PR (spec.md's
// get-pr-status).
type Status struct {
	Review string // e.g. "approved", "changes_requested", "pending"
	CI     string // e.g. "passing", "failing", "pending"
	Merged bool
	Closed bool
}

// PRUpdate carries the optional fields update-pr may change; a nil
// pointer means "leave unchanged".
type PRUpdate struct {
	Base  *string
	Title *string
	Body  *string
	Draft *bool
	State *string // "open" | "closed"
}

// PRSummary is one row of list-prs(repo).
type PRSummary struct {
	Branch string
	PRID   string
	State  string
}

// MergeMethod selects how `land` integrates a PR's commits into its base
// branch.
type MergeMethod string

const (
	MergeMethodMerge  MergeMethod = "merge"
	MergeMethodSquash MergeMethod = "squash"
	MergeMethodRebase MergeMethod = "rebase"
)

// Binding is the Forge Binding's capability surface. Implementations must
// make CreatePR and UpdatePR idempotent on retry by keying on (branch,
// head commit): calling CreatePR twice for a branch that already has an
// open PR at the same head returns the existing id rather than creating a
// duplicate (spec.md §4.6).
type Binding interface {
	CreatePR(ctx context.Context, branch, base, headCommit, title, body string, draft bool) (prID string, err error)
	UpdatePR(ctx context.Context, prID string, update PRUpdate) error
	GetPRStatus(ctx context.Context, prID string) (Status, error)
	ListPRs(ctx context.Context) ([]PRSummary, error)
	// MergePR merges prID using method, returning the resulting merge
	// commit sha. Implementations must treat an already-merged PR as
	// success (idempotent on retry after a crash between merge and
	// journal commit).
	MergePR(ctx context.Context, prID string, method MergeMethod) (mergeCommit string, err error)
}
