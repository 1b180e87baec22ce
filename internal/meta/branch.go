// Package meta defines the persistent data model of the Stack Engine's
// Metadata Store (C2, spec.md §3-§4.2): branches, PR bindings, and the
// repository record, plus the DB/ReadTx/WriteTx transaction interfaces that
// every other component (C3-C5) is injected with.
package meta

import "time"

// Branch is the persistent record for one tracked branch: name (implicit -
// callers key maps by it), parent, ordered children, last-known head,
// restack anchor, PR binding, and creation time. Fields mirror the Branch
// entity in spec.md §3.
type Branch struct {
	// Name is not serialized: like the teacher's meta.Branch, it is always
	// recoverable from the map key the branch is stored under.
	Name string `json:"-"`

	// Parent is empty iff this branch is a trunk anchor (spec.md I2).
	Parent string `json:"parent"`

	// Children is the user-visible top-to-bottom sibling order (spec.md
	// I3: must equal the set of branches whose Parent is this branch).
	Children []string `json:"children,omitempty"`

	// Head is the last-known head commit of this branch as of the most
	// recent successful engine operation that touched it.
	Head string `json:"head,omitempty"`

	// Anchor is the parent's head this branch was last successfully
	// restacked onto (spec.md §4.3, "Per-child anchor"); the upstream
	// boundary for the next restack.
	Anchor string `json:"anchor,omitempty"`

	CreatedAt time.Time `json:"createdAt"`

	// MergeCommit records the merge commit once `land` has merged this
	// branch on the forge. The same land operation deletes the branch's
	// record, so the value does not outlive that operation.
	MergeCommit string `json:"mergeCommit,omitempty"`

	PullRequest *PullRequest `json:"pullRequest,omitempty"`
}

// PullRequest is the PR Binding record from spec.md §3.
type PullRequest struct {
	ID        string    `json:"id"`
	Number    int64     `json:"number"`
	Permalink string    `json:"permalink"`
	Base      string    `json:"base"`
	Head      string    `json:"head"`
	Draft     bool      `json:"draft"`
	Status    string    `json:"status,omitempty"`
	FetchedAt time.Time `json:"fetchedAt,omitempty"`
}

// Repository identifies the forge-side repository this tree's PRs live in.
type Repository struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// IsTrunk reports whether b has no tracked parent, i.e. it is a stack root
// whose parent is the configured trunk branch.
func (b Branch) IsTrunk() bool { return b.Parent == "" }
