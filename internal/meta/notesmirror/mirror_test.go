package notesmirror_test

import (
	"context"
	"testing"

	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/pancake-vcs/pk/internal/meta/notesmirror"
	"github.com/pancake-vcs/pk/internal/vcs/vcstest"
	"github.com/stretchr/testify/require"
)

func TestMirrorSyncAndRebuild(t *testing.T) {
	ctx := context.Background()
	repo := vcstest.New(t)

	repo.Branch("feature-a")
	head := repo.CommitFile("a.txt", "hello", "add a")

	mirror := notesmirror.New(repo.Repo)
	err := mirror.Sync(ctx, map[string]meta.Branch{
		"feature-a": {Name: "feature-a", Parent: "main", Head: head, Anchor: "deadbeef"},
	})
	require.NoError(t, err)

	rebuilt, err := mirror.Rebuild(ctx)
	require.NoError(t, err)
	ann, ok := rebuilt["feature-a"]
	require.True(t, ok, "expected feature-a annotation to survive rebuild")
	require.Equal(t, "main", ann.Parent)
	require.Equal(t, "deadbeef", ann.Anchor)
}

func TestMirrorRebuildIgnoresCorruptNotes(t *testing.T) {
	ctx := context.Background()
	repo := vcstest.New(t)
	repo.Branch("feature-a")
	head := repo.CommitFile("a.txt", "hello", "add a")

	require.NoError(t, repo.Repo.WriteNote(ctx, head, "not json"))

	mirror := notesmirror.New(repo.Repo)
	rebuilt, err := mirror.Rebuild(ctx)
	require.NoError(t, err)
	require.Empty(t, rebuilt)
}
