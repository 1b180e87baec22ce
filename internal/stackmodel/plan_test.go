package stackmodel_test

import (
	"testing"

	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/stretchr/testify/require"
)

func applyAndValidate(t *testing.T, m *stackmodel.Model, plan *stackmodel.Plan) *stackmodel.Model {
	t.Helper()
	post := m.Clone()
	require.NoError(t, post.ApplyMetadataSteps(plan.Steps))
	require.NoError(t, post.Validate(10))
	return post
}

func TestPlanCreate(t *testing.T) {
	m := buildModel(t, meta.Branch{Name: "a", Parent: "main"})
	plan, err := m.PlanCreate("b", "a")
	require.NoError(t, err)
	require.Equal(t, []stackmodel.StepKind{
		stackmodel.StepCreateRef, stackmodel.StepSetParent, stackmodel.StepCommitMeta,
	}, kinds(plan))

	post := applyAndValidate(t, m, plan)
	require.True(t, post.Has("b"))
	parent, err := post.Parent("b")
	require.NoError(t, err)
	require.Equal(t, "a", parent)
}

func TestPlanCreateRejectsDuplicateName(t *testing.T) {
	m := buildModel(t, meta.Branch{Name: "a", Parent: "main"})
	_, err := m.PlanCreate("a", "main")
	require.Error(t, err)
}

func TestPlanDeleteReparentsChildren(t *testing.T) {
	m := buildModel(t,
		meta.Branch{Name: "a", Parent: "main"},
		meta.Branch{Name: "b", Parent: "a"},
		meta.Branch{Name: "c", Parent: "a"},
	)
	plan, err := m.PlanDelete("a", false)
	require.NoError(t, err)

	post := m.Clone()
	require.NoError(t, post.ApplyMetadataSteps(plan.Steps))
	require.NoError(t, post.Validate(10))
	require.False(t, post.Has("a"))
	for _, c := range []string{"b", "c"} {
		p, err := post.Parent(c)
		require.NoError(t, err)
		require.Equal(t, "main", p)
	}
}

func TestPlanDeleteWithPRClosesBeforeDeletingRef(t *testing.T) {
	m := buildModel(t, meta.Branch{
		Name: "a", Parent: "main",
		PullRequest: &meta.PullRequest{ID: "PR_1"},
	})
	plan, err := m.PlanDelete("a", false)
	require.NoError(t, err)
	require.Equal(t, []stackmodel.StepKind{
		stackmodel.StepForgeClosePR, stackmodel.StepDeleteRef, stackmodel.StepCommitMeta,
	}, kinds(plan))
}

func TestPlanMoveRejectsOntoOwnDescendant(t *testing.T) {
	m := buildModel(t,
		meta.Branch{Name: "a", Parent: "main"},
		meta.Branch{Name: "b", Parent: "a"},
	)
	_, err := m.PlanMove("a", "b")
	require.Error(t, err)
}

func TestPlanMoveRejectsNoopMove(t *testing.T) {
	m := buildModel(t, meta.Branch{Name: "a", Parent: "main"})
	_, err := m.PlanMove("a", "main")
	require.Error(t, err)
}

func TestPlanMoveUpdatesPRBaseWhenBound(t *testing.T) {
	m := buildModel(t,
		meta.Branch{Name: "a", Parent: "main", PullRequest: &meta.PullRequest{ID: "PR_1"}},
		meta.Branch{Name: "b", Parent: "main"},
	)
	plan, err := m.PlanMove("a", "b")
	require.NoError(t, err)

	found := false
	for _, s := range plan.Steps {
		if s.Kind == stackmodel.StepUpdatePRBase {
			found = true
			require.Equal(t, "b", s.NewBase)
		}
	}
	require.True(t, found, "expected an update-pr-base step")

	post := applyAndValidate(t, m, plan)
	parent, err := post.Parent("a")
	require.NoError(t, err)
	require.Equal(t, "b", parent)
}

func TestPlanLandRequiresPullRequest(t *testing.T) {
	m := buildModel(t, meta.Branch{Name: "a", Parent: "main"})
	_, err := m.PlanLand("a", "squash")
	require.Error(t, err)
}

func TestPlanLandReparentsChildrenAndDeletesBothRefs(t *testing.T) {
	m := buildModel(t,
		meta.Branch{Name: "a", Parent: "main", PullRequest: &meta.PullRequest{ID: "PR_1"}},
		meta.Branch{Name: "b", Parent: "a"},
	)
	plan, err := m.PlanLand("a", "squash")
	require.NoError(t, err)

	require.Equal(t, stackmodel.StepForgeMergePR, plan.Steps[0].Kind)
	require.Equal(t, "squash", plan.Steps[0].MergeMethod)

	last := plan.Steps[len(plan.Steps)-1]
	require.Equal(t, stackmodel.StepCommitMeta, last.Kind)

	var sawDeleteRef, sawDeleteRemote bool
	for _, s := range plan.Steps {
		if s.Kind == stackmodel.StepDeleteRef && s.Branch == "a" {
			sawDeleteRef = true
			require.True(t, s.Force, "landing a merged branch force-deletes its local ref")
		}
		if s.Kind == stackmodel.StepDeleteRemote && s.Branch == "a" {
			sawDeleteRemote = true
		}
	}
	require.True(t, sawDeleteRef)
	require.True(t, sawDeleteRemote)

	// Apply only the topology-affecting steps (ApplyMetadataSteps ignores
	// forge-merge-pr/delete-remote-ref/rebase, the same subset the engine's
	// post-state validation relies on).
	post := m.Clone()
	require.NoError(t, post.ApplyMetadataSteps(plan.Steps))
	require.NoError(t, post.Validate(10))
	require.False(t, post.Has("a"))
	parent, err := post.Parent("b")
	require.NoError(t, err)
	require.Equal(t, "main", parent)
}

func TestPlanRestackPreOrder(t *testing.T) {
	m := buildModel(t,
		meta.Branch{Name: "a", Parent: "main"},
		meta.Branch{Name: "b", Parent: "a"},
		meta.Branch{Name: "c", Parent: "b"},
	)
	plan, err := m.PlanRestack("a")
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)
	require.Equal(t, "a", plan.Steps[0].Branch)
	require.Equal(t, "b", plan.Steps[1].Branch)
	require.Equal(t, "c", plan.Steps[2].Branch)
}

func TestPlanRenameRejectsCollision(t *testing.T) {
	m := buildModel(t,
		meta.Branch{Name: "a", Parent: "main"},
		meta.Branch{Name: "b", Parent: "main"},
	)
	_, err := m.PlanRename("a", "b")
	require.Error(t, err)
}

func kinds(p *stackmodel.Plan) []stackmodel.StepKind {
	out := make([]stackmodel.StepKind, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Kind
	}
	return out
}
