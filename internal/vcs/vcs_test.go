package vcs_test

import (
	"context"
	"testing"

	"github.com/pancake-vcs/pk/internal/vcs"
	"github.com/pancake-vcs/pk/internal/vcs/vcstest"
	"github.com/stretchr/testify/require"
)

func TestCreateRenameDeleteBranchLifecycle(t *testing.T) {
	repo := vcstest.New(t)
	ctx := context.Background()

	res := repo.Repo.CreateBranch(ctx, "feature-a", repo.Head("main"))
	require.Equal(t, vcs.Ok, res.Outcome)
	require.True(t, repo.Repo.DoesBranchExist(ctx, "feature-a"))

	// Creating the same name again is rejected rather than silently
	// succeeding, since a second branch create is never idempotent-on-exists.
	res = repo.Repo.CreateBranch(ctx, "feature-a", repo.Head("main"))
	require.Equal(t, vcs.Fatal, res.Outcome)

	res = repo.Repo.RenameBranch(ctx, "feature-a", "feature-b")
	require.Equal(t, vcs.Ok, res.Outcome)
	require.False(t, repo.Repo.DoesBranchExist(ctx, "feature-a"))
	require.True(t, repo.Repo.DoesBranchExist(ctx, "feature-b"))

	res = repo.Repo.DeleteBranch(ctx, "feature-b", false)
	require.Equal(t, vcs.Ok, res.Outcome)
	require.False(t, repo.Repo.DoesBranchExist(ctx, "feature-b"))
}

func TestDeleteBranchMissingIsRefMissing(t *testing.T) {
	repo := vcstest.New(t)
	ctx := context.Background()

	res := repo.Repo.DeleteBranch(ctx, "never-existed", true)
	require.Equal(t, vcs.RefMissing, res.Outcome)
}

func TestUpdateRefCreatesMissingBranch(t *testing.T) {
	repo := vcstest.New(t)
	ctx := context.Background()

	head := repo.Head("main")
	require.False(t, repo.Repo.DoesBranchExist(ctx, "feature-a"))
	require.NoError(t, repo.Repo.UpdateRef(ctx, "feature-a", head))
	require.True(t, repo.Repo.DoesBranchExist(ctx, "feature-a"))

	gotHead, res := repo.Repo.ReadHead(ctx, "feature-a")
	require.Equal(t, vcs.Ok, res.Outcome)
	require.Equal(t, head, gotHead)
}

func TestDeleteRemoteBranchIsIdempotent(t *testing.T) {
	repo := vcstest.New(t)
	ctx := context.Background()

	repo.Branch("feature-a")
	repo.CommitFile("a.txt", "hello", "add a")
	repo.Git("push", "origin", "feature-a")

	res := repo.Repo.DeleteRemoteBranch(ctx, "origin", "feature-a")
	require.Equal(t, vcs.Ok, res.Outcome)

	// Deleting it again finds no remote ref, which is treated as success so
	// a retried delete-remote step never fails on resume.
	res = repo.Repo.DeleteRemoteBranch(ctx, "origin", "feature-a")
	require.Equal(t, vcs.RefMissing, res.Outcome)
}

func TestPushWithLeaseDetectsDivergence(t *testing.T) {
	repo := vcstest.New(t)
	ctx := context.Background()

	repo.Branch("feature-a")
	repo.CommitFile("a.txt", "hello", "add a")
	require.NoError(t, repo.Repo.UpdateRef(ctx, "feature-a", repo.Head("feature-a")))

	res := repo.Repo.PushWithLease(ctx, "origin", "feature-a", "")
	require.Equal(t, vcs.Ok, res.Outcome)
	remoteHead := repo.Head("feature-a")

	// Someone else advances the remote past what we think it is.
	repo.CommitFile("b.txt", "world", "add b")
	localHead := repo.Head("feature-a")
	repo.Git("push", "origin", "feature-a")

	// Reset the local branch back behind what's now on the remote and try
	// to push with a stale expected head: the lease must reject it rather
	// than clobbering the remote's newer commit.
	require.NoError(t, repo.Repo.UpdateRef(ctx, "feature-a", remoteHead))
	res = repo.Repo.PushWithLease(ctx, "origin", "feature-a", remoteHead)
	require.Equal(t, vcs.Diverged, res.Outcome)
	require.Equal(t, localHead, res.ActualHead)
}

func TestRebaseOntoMovesBranch(t *testing.T) {
	repo := vcstest.New(t)
	ctx := context.Background()

	base := repo.Head("main")
	repo.Branch("feature-a")
	aHead := repo.CommitFile("a.txt", "hello", "add a")
	repo.Checkout("main")
	repo.CommitFile("trunk.txt", "trunk change", "advance trunk")
	newMain := repo.Head("main")

	res := repo.Repo.RebaseOnto(ctx, "feature-a", "main", base)
	require.Equal(t, vcs.Ok, res.Outcome)

	head, readRes := repo.Repo.ReadHead(ctx, "feature-a")
	require.Equal(t, vcs.Ok, readRes.Outcome)
	require.NotEqual(t, aHead, head, "rebased commit gets a new id")

	isAncestor, err := repo.Repo.IsAncestor(ctx, newMain, head)
	require.NoError(t, err)
	require.True(t, isAncestor, "rebased branch should now sit on top of trunk's latest commit")
}

func TestRebaseOntoConflict(t *testing.T) {
	repo := vcstest.New(t)
	ctx := context.Background()

	base := repo.Head("main")
	repo.Branch("feature-a")
	repo.CommitFile("same.txt", "from feature", "feature change")
	repo.Checkout("main")
	repo.CommitFile("same.txt", "from trunk", "trunk change")

	res := repo.Repo.RebaseOnto(ctx, "feature-a", "main", base)
	require.Equal(t, vcs.Conflict, res.Outcome)

	abortRes := repo.Repo.RebaseAbort(ctx)
	require.Equal(t, vcs.Ok, abortRes.Outcome)
}

func TestStatusReportsDirtyWorkingTree(t *testing.T) {
	repo := vcstest.New(t)
	ctx := context.Background()

	st, err := repo.Repo.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, "main", st.CurrentBranch)
	require.False(t, st.Dirty)

	repo.Git("rm", "README.md")
	st, err = repo.Repo.Status(ctx)
	require.NoError(t, err)
	require.True(t, st.Dirty)
}
