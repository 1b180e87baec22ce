package stackmodel

import "emperror.dev/errors"

// StepKind is one of the atomic step kinds a Plan is built from (spec.md
// §4.3).
type StepKind string

const (
	StepCreateRef     StepKind = "create-ref"
	StepDeleteRef     StepKind = "delete-ref"
	StepRenameRef     StepKind = "rename-ref"
	StepRebase        StepKind = "rebase"
	StepSetParent     StepKind = "set-parent"
	StepUpdatePRBase  StepKind = "update-pr-base"
	StepPush          StepKind = "push"
	StepForgeCreatePR StepKind = "forge-create-pr"
	StepForgeUpdatePR StepKind = "forge-update-pr"
	StepForgeClosePR  StepKind = "forge-close-pr"
	StepForgeMergePR  StepKind = "forge-merge-pr"
	StepDeleteRemote  StepKind = "delete-remote-ref"
	StepCommitMeta    StepKind = "commit-metadata"
)

// Step is one atomic, idempotent-on-repeat unit of work a Plan executes in
// order (spec.md §4.3, §4.5 step 5). Fields not relevant to Kind are left
// zero.
type Step struct {
	Kind StepKind

	// Branch is the step's primary subject branch.
	Branch string
	// AtCommit is the commit create-ref targets.
	AtCommit string
	// NewName is rename-ref's destination name.
	NewName string
	// NewBase/Upstream parameterize rebase: rebase Branch onto head(NewBase)
	// with upstream-exclusive-boundary Upstream (the anchor).
	NewBase  string
	Upstream string
	// Parent is set-parent's destination parent branch name.
	Parent string
	// Force parameterizes delete-ref.
	Force bool
	// Draft parameterizes forge-create-pr.
	Draft bool
	// Title/Body override forge-create-pr's default title (the branch
	// name) and body (a bare stack block); empty means use the default.
	Title string
	Body  string
	// MergeMethod parameterizes forge-merge-pr ("merge" | "squash" |
	// "rebase").
	MergeMethod string
}

// Plan is an ordered, deterministic sequence of Steps compiled from an
// Intent against a Model (spec.md §4.3: "Planning is total and
// deterministic").
type Plan struct {
	Steps []Step
}

func (p *Plan) add(steps ...Step) {
	p.Steps = append(p.Steps, steps...)
}

// PlanCreate compiles the Create(name, parent) Intent: create-ref(name @
// head(parent)), set-parent(name, parent), commit-metadata.
func (m *Model) PlanCreate(name, parent string) (*Plan, error) {
	parentHead, err := m.headOf(parent)
	if err != nil {
		return nil, err
	}
	if m.Has(name) {
		return nil, errors.Errorf("branch %q already tracked", name)
	}
	p := &Plan{}
	p.add(
		Step{Kind: StepCreateRef, Branch: name, AtCommit: parentHead},
		Step{Kind: StepSetParent, Branch: name, Parent: parent},
		Step{Kind: StepCommitMeta},
	)
	return p, nil
}

// PlanRename compiles Rename(b, newName): a single rename-ref plus the
// metadata commit; child edges follow automatically since they're keyed
// by parent name and ApplyMetadataSteps/execute both fix up references to
// the old name as part of applying the step.
func (m *Model) PlanRename(b, newName string) (*Plan, error) {
	if _, err := m.node(b); err != nil {
		return nil, err
	}
	if m.Has(newName) {
		return nil, errors.Errorf("branch %q already tracked", newName)
	}
	p := &Plan{}
	p.add(
		Step{Kind: StepRenameRef, Branch: b, NewName: newName},
		Step{Kind: StepCommitMeta},
	)
	return p, nil
}

// PlanInsertBefore compiles Insert-before(new, existing): new takes
// existing's parent; existing's parent becomes new; existing and its
// descendants are restacked onto new.
func (m *Model) PlanInsertBefore(newName, existing string) (*Plan, error) {
	existingParent, err := m.Parent(existing)
	if err != nil {
		return nil, err
	}
	parentHead, err := m.headOf(existingParent)
	if err != nil {
		return nil, err
	}
	if m.Has(newName) {
		return nil, errors.Errorf("branch %q already tracked", newName)
	}

	p := &Plan{}
	p.add(
		Step{Kind: StepCreateRef, Branch: newName, AtCommit: parentHead},
		Step{Kind: StepSetParent, Branch: newName, Parent: existingParent},
		Step{Kind: StepSetParent, Branch: existing, Parent: newName},
	)

	restack, err := m.planRestackSubtree(existing, newName, newName)
	if err != nil {
		return nil, err
	}
	p.add(restack.Steps...)
	p.add(Step{Kind: StepCommitMeta})
	return p, nil
}

// PlanMove compiles Move(b, newParent): b is reparented onto newParent and
// rebased onto its head using b's existing anchor as the upstream boundary
// (the rebase may replay commits onto an unrelated history, per spec §9);
// b's descendants follow via the same parent-first (pre-order) restack used
// by PlanRestack. If b carries a PR, its base is updated to newParent.
func (m *Model) PlanMove(b, newParent string) (*Plan, error) {
	n, err := m.node(b)
	if err != nil {
		return nil, err
	}
	if n.Parent == newParent {
		return nil, errors.Errorf("%q is already a child of %q", b, newParent)
	}
	if newParent != m.trunk {
		if _, err := m.node(newParent); err != nil {
			return nil, errors.WrapIff(err, "destination parent %q", newParent)
		}
		if newParent == b {
			return nil, errors.Errorf("cannot move %q onto itself", b)
		}
		descendants, err := m.Descendants(b)
		if err != nil {
			return nil, err
		}
		for _, d := range descendants {
			if d == newParent {
				return nil, errors.Errorf("cannot move %q onto its own descendant %q", b, newParent)
			}
		}
	}

	p := &Plan{}
	p.add(Step{Kind: StepSetParent, Branch: b, Parent: newParent})
	if n.Branch.PullRequest != nil {
		p.add(Step{Kind: StepUpdatePRBase, Branch: b, NewBase: newParent})
	}

	restack, err := m.planRestackSubtree(b, newParent, n.Anchor)
	if err != nil {
		return nil, err
	}
	p.add(restack.Steps...)
	p.add(Step{Kind: StepCommitMeta})
	return p, nil
}

// PlanDelete compiles Delete(b, force): children of b are reparented to
// parent(b), keeping their relative order; when the plan is executed they
// are appended at the end of parent(b)'s child list, not placed at b's
// former position. Each child is restacked onto parent(b); delete-ref(b);
// commit-metadata. Any child with a PR binding gets an update-pr-base step
// before b's own forge-close-pr.
func (m *Model) PlanDelete(b string, force bool) (*Plan, error) {
	n, err := m.node(b)
	if err != nil {
		return nil, err
	}
	parent := n.Parent
	children := append([]string(nil), n.Children...)

	p := &Plan{}
	for _, c := range children {
		p.add(Step{Kind: StepSetParent, Branch: c, Parent: parent})
		if cn := m.nodes[c]; cn != nil && cn.Branch.PullRequest != nil {
			p.add(Step{Kind: StepUpdatePRBase, Branch: c, NewBase: parent})
		}
	}
	for _, c := range children {
		anchor := m.nodes[c].Anchor
		p.add(Step{Kind: StepRebase, Branch: c, NewBase: parent, Upstream: anchor})
	}
	if n.Branch.PullRequest != nil {
		p.add(Step{Kind: StepForgeClosePR, Branch: b})
	}
	p.add(Step{Kind: StepDeleteRef, Branch: b, Force: force})
	p.add(Step{Kind: StepCommitMeta})
	return p, nil
}

// PlanLand compiles Land(b, method): merge b's PR on the forge, reparent
// b's children onto parent(b) (restacking them and updating any PR base),
// then delete b's local and remote refs. Mirrors PlanDelete's reparent
// shape but merges instead of closing, and always force-deletes b's refs
// since the branch is gone on the forge side already (spec.md P6).
func (m *Model) PlanLand(b string, method string) (*Plan, error) {
	n, err := m.node(b)
	if err != nil {
		return nil, err
	}
	if n.Branch.PullRequest == nil {
		return nil, errors.Errorf("%q has no pull request to land", b)
	}
	parent := n.Parent
	children := append([]string(nil), n.Children...)

	p := &Plan{}
	p.add(Step{Kind: StepForgeMergePR, Branch: b, MergeMethod: method})

	for _, c := range children {
		p.add(Step{Kind: StepSetParent, Branch: c, Parent: parent})
		if cn := m.nodes[c]; cn != nil && cn.Branch.PullRequest != nil {
			p.add(Step{Kind: StepUpdatePRBase, Branch: c, NewBase: parent})
		}
	}
	for _, c := range children {
		anchor := m.nodes[c].Anchor
		p.add(Step{Kind: StepRebase, Branch: c, NewBase: parent, Upstream: anchor})
	}

	p.add(Step{Kind: StepDeleteRef, Branch: b, Force: true})
	p.add(Step{Kind: StepDeleteRemote, Branch: b})
	p.add(Step{Kind: StepCommitMeta})
	return p, nil
}

// PlanRestack compiles Restack(root): pre-order traversal over root's
// subtree (each parent before its children); each node n with parent p is rebased onto head(p) using n's
// stored anchor as the upstream boundary.
func (m *Model) PlanRestack(root string) (*Plan, error) {
	n, err := m.node(root)
	if err != nil {
		return nil, err
	}
	return m.planRestackSubtree(root, n.Parent, n.Anchor)
}

// planRestackSubtree rebases root onto rootNewBase (using rootUpstream as
// the anchor) and then every descendant in pre-order, each against its
// own stored anchor. Used directly by PlanRestack, and by PlanInsertBefore
// to restack `existing` onto the freshly created branch.
func (m *Model) planRestackSubtree(root, rootNewBase, rootUpstream string) (*Plan, error) {
	p := &Plan{}
	p.add(Step{Kind: StepRebase, Branch: root, NewBase: rootNewBase, Upstream: rootUpstream})

	descendants, err := m.Descendants(root)
	if err != nil {
		return nil, err
	}
	for _, d := range descendants {
		dn := m.nodes[d]
		p.add(Step{Kind: StepRebase, Branch: d, NewBase: dn.Parent, Upstream: dn.Anchor})
	}
	return p, nil
}

func (m *Model) headOf(branch string) (string, error) {
	if branch == m.trunk {
		return "", nil // resolved by the caller against the live trunk ref
	}
	n, err := m.node(branch)
	if err != nil {
		return "", err
	}
	return n.Head, nil
}
