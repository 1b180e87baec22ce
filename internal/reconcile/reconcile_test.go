package reconcile_test

import (
	"context"
	"testing"

	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/pancake-vcs/pk/internal/meta/jsonfiledb"
	"github.com/pancake-vcs/pk/internal/reconcile"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/pancake-vcs/pk/internal/vcs/vcstest"
	"github.com/stretchr/testify/require"
)

func plan(branch string) stackmodel.Plan {
	return stackmodel.Plan{Steps: []stackmodel.Step{{Kind: stackmodel.StepRebase, Branch: branch}}}
}

func TestCheckFlagsMissingRef(t *testing.T) {
	repo := vcstest.New(t)
	rec := reconcile.New(repo.Repo, "main")

	db, err := jsonfiledb.OpenPath(t.TempDir() + "/stacks.json")
	require.NoError(t, err)
	tx := db.WriteTx()
	tx.SetBranch(meta.Branch{Name: "feature-a", Parent: "main"})
	require.NoError(t, tx.Commit())

	jrnl := journal.Open(t.TempDir())
	report, err := rec.Check(context.Background(), db.ReadTx(), jrnl, true, map[string]string{"main": repo.Head("main")}, "")
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	require.Equal(t, reconcile.RuleMissingRef, report.Findings[0].Rule)
	require.Equal(t, "feature-a", report.Findings[0].Branch)
}

func TestCheckDoesNotFlagBranchInvolvedInOpenOperation(t *testing.T) {
	repo := vcstest.New(t)
	rec := reconcile.New(repo.Repo, "main")

	db, err := jsonfiledb.OpenPath(t.TempDir() + "/stacks.json")
	require.NoError(t, err)
	tx := db.WriteTx()
	tx.SetBranch(meta.Branch{Name: "feature-a", Parent: "main"})
	require.NoError(t, tx.Commit())

	jrnl := journal.Open(t.TempDir())
	require.NoError(t, jrnl.Append(journal.Entry{
		OpID:  1,
		State: journal.StateSuspended,
		Plan:  plan("feature-a"),
	}))

	report, err := rec.Check(context.Background(), db.ReadTx(), jrnl, true, map[string]string{"main": repo.Head("main")}, "")
	require.NoError(t, err)
	require.Empty(t, report.Findings)
}

func TestCheckFlagsDivergentHead(t *testing.T) {
	repo := vcstest.New(t)
	rec := reconcile.New(repo.Repo, "main")

	repo.Branch("feature-a")
	sha := repo.CommitFile("a.txt", "hello", "add a")
	repo.Checkout("main")

	db, err := jsonfiledb.OpenPath(t.TempDir() + "/stacks.json")
	require.NoError(t, err)
	tx := db.WriteTx()
	tx.SetBranch(meta.Branch{Name: "feature-a", Parent: "main", Head: "stale-sha-not-" + sha})
	require.NoError(t, tx.Commit())

	jrnl := journal.Open(t.TempDir())
	report, err := rec.Check(context.Background(), db.ReadTx(), jrnl, true, map[string]string{
		"main":      repo.Head("main"),
		"feature-a": repo.Head("feature-a"),
	}, "")
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	require.Equal(t, reconcile.RuleDivergentHead, report.Findings[0].Rule)
}

func TestCheckFlagsUntrackedPrefixedRef(t *testing.T) {
	repo := vcstest.New(t)
	rec := reconcile.New(repo.Repo, "main")
	repo.Branch("pk/untracked")
	repo.Checkout("main")

	db, err := jsonfiledb.OpenPath(t.TempDir() + "/stacks.json")
	require.NoError(t, err)
	jrnl := journal.Open(t.TempDir())

	report, err := rec.Check(context.Background(), db.ReadTx(), jrnl, true, map[string]string{
		"main":         repo.Head("main"),
		"pk/untracked": repo.Head("pk/untracked"),
	}, "pk/")
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	require.Equal(t, reconcile.RuleUntrackedRef, report.Findings[0].Rule)
}

func TestBlockingFiltersByTouchedBranches(t *testing.T) {
	report := &reconcile.DriftReport{Findings: []reconcile.Finding{
		{Rule: reconcile.RuleMissingRef, Branch: "a"},
		{Rule: reconcile.RuleMissingRef, Branch: "b"},
		{Rule: reconcile.RuleUntrackedRef, Branch: "c"},
		{Rule: reconcile.RuleDivergentHead, Branch: "a"},
	}}
	blocking := report.Blocking([]string{"a"})
	require.Len(t, blocking, 1)
	require.Equal(t, "a", blocking[0].Branch)
}

func TestCheckRemoteBaseDrift(t *testing.T) {
	db, err := jsonfiledb.OpenPath(t.TempDir() + "/stacks.json")
	require.NoError(t, err)
	tx := db.WriteTx()
	tx.SetBranch(meta.Branch{
		Name: "feature-a", Parent: "main",
		PullRequest: &meta.PullRequest{ID: "PR_1", Base: "old-base"},
	})
	require.NoError(t, tx.Commit())

	report := &reconcile.DriftReport{}
	report.CheckRemoteBaseDrift(db.ReadTx())
	require.Len(t, report.Findings, 1)
	require.Equal(t, reconcile.RuleRemoteBaseDrift, report.Findings[0].Rule)
}
