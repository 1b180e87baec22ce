package engine_test

import (
	"context"
	"testing"

	"github.com/pancake-vcs/pk/internal/engine"
	"github.com/pancake-vcs/pk/internal/forge"
	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/pancake-vcs/pk/internal/meta/jsonfiledb"
	"github.com/pancake-vcs/pk/internal/reconcile"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/pancake-vcs/pk/internal/vcs/vcstest"
	"github.com/stretchr/testify/require"
)

// fakeForge is a minimal in-memory Binding, enough to exercise the engine's
// forge-* step kinds without any network dependency.
type fakeForge struct {
	nextID  int
	merged  map[string]bool
}

func newFakeForge() *fakeForge { return &fakeForge{merged: map[string]bool{}} }

func (f *fakeForge) CreatePR(ctx context.Context, branch, base, headCommit, title, body string, draft bool) (string, error) {
	f.nextID++
	return "PR_" + string(rune('0'+f.nextID)), nil
}
func (f *fakeForge) UpdatePR(ctx context.Context, prID string, update forge.PRUpdate) error { return nil }
func (f *fakeForge) GetPRStatus(ctx context.Context, prID string) (forge.Status, error) {
	return forge.Status{Merged: f.merged[prID]}, nil
}
func (f *fakeForge) ListPRs(ctx context.Context) ([]forge.PRSummary, error) { return nil, nil }
func (f *fakeForge) MergePR(ctx context.Context, prID string, method forge.MergeMethod) (string, error) {
	if f.merged[prID] {
		return "", nil
	}
	f.merged[prID] = true
	return "deadbeef", nil
}

type harness struct {
	repo *vcstest.Repo
	db   *jsonfiledb.DB
	eng  *engine.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := vcstest.New(t)
	db, err := jsonfiledb.OpenPath(t.TempDir() + "/stacks.json")
	require.NoError(t, err)
	jrnl := journal.Open(t.TempDir())
	lock := meta.NewLock(t.TempDir())
	rec := reconcile.New(repo.Repo, "main")

	return &harness{
		repo: repo,
		db:   db,
		eng: &engine.Engine{
			Repo:                repo.Repo,
			DB:                  db,
			Journal:             jrnl,
			Lock:                lock,
			Reconciler:          rec,
			Forge:               newFakeForge(),
			Trunk:               "main",
			MaxDepth:            10,
			MetadataFilePresent: true,
		},
	}
}

func TestRunPlanCreateCreatesRefAndMetadata(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
		return model.PlanCreate("feature-a", "main")
	}
	err := h.eng.Run(ctx, journal.Intent{Kind: "create"}, build, false)
	require.NoError(t, err)

	require.True(t, h.repo.Repo.DoesBranchExist(ctx, "feature-a"))
	b, ok := h.db.ReadTx().Branch("feature-a")
	require.True(t, ok)
	require.Equal(t, "", b.Parent) // rooted at trunk
}

func TestRunThenUndoRestoresPreImage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
		return model.PlanCreate("feature-a", "main")
	}
	require.NoError(t, h.eng.Run(ctx, journal.Intent{Kind: "create"}, build, false))

	require.NoError(t, h.eng.Undo(ctx, false))
	_, ok := h.db.ReadTx().Branch("feature-a")
	require.False(t, ok, "undo should remove the branch from metadata")
}

func TestUndoThenRedoReappliesPlan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
		return model.PlanCreate("feature-a", "main")
	}
	require.NoError(t, h.eng.Run(ctx, journal.Intent{Kind: "create"}, build, false))
	require.NoError(t, h.eng.Undo(ctx, false))

	require.NoError(t, h.eng.Redo(ctx))
	_, ok := h.db.ReadTx().Branch("feature-a")
	require.True(t, ok, "redo should recreate the branch metadata")
}

func TestRedoRefusesAfterAnotherOperation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	build := func(name, parent string) func(*stackmodel.Model) (*stackmodel.Plan, error) {
		return func(model *stackmodel.Model) (*stackmodel.Plan, error) {
			return model.PlanCreate(name, parent)
		}
	}
	require.NoError(t, h.eng.Run(ctx, journal.Intent{Kind: "create"}, build("feature-a", "main"), false))
	require.NoError(t, h.eng.Undo(ctx, false))
	require.NoError(t, h.eng.Run(ctx, journal.Intent{Kind: "create"}, build("feature-b", "main"), false))

	err := h.eng.Redo(ctx)
	require.Error(t, err, "redo should refuse once a newer operation has been committed")
}

func TestRunRejectsBlockingDrift(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Track a branch in metadata with no corresponding local ref: R1
	// missing-ref, which blocks any non-repair operation touching it.
	tx := h.db.WriteTx()
	tx.SetBranch(meta.Branch{Name: "feature-a", Parent: "main"})
	require.NoError(t, tx.Commit())

	build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
		return model.PlanRestack("feature-a")
	}
	err := h.eng.Run(ctx, journal.Intent{Kind: "restack"}, build, false)
	require.Error(t, err)
}

func TestRunLandMergesAndReparentsChildren(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	createBuild := func(name, parent string) func(*stackmodel.Model) (*stackmodel.Plan, error) {
		return func(model *stackmodel.Model) (*stackmodel.Plan, error) {
			return model.PlanCreate(name, parent)
		}
	}
	require.NoError(t, h.eng.Run(ctx, journal.Intent{Kind: "create"}, createBuild("a", "main"), false))
	require.NoError(t, h.eng.Run(ctx, journal.Intent{Kind: "create"}, createBuild("b", "a"), false))

	// Bind a PR to "a" directly in metadata (submit is out of scope here;
	// only land's forge-merge-pr/reparent behavior is under test).
	tx := h.db.WriteTx()
	b, _ := tx.Branch("a")
	b.PullRequest = &meta.PullRequest{ID: "PR_1"}
	tx.SetBranch(b)
	require.NoError(t, tx.Commit())

	landBuild := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
		return model.PlanLand("a", "squash")
	}
	require.NoError(t, h.eng.Run(ctx, journal.Intent{Kind: "land"}, landBuild, false))

	_, ok := h.db.ReadTx().Branch("a")
	require.False(t, ok, "landed branch should be gone from metadata")
	childB, ok := h.db.ReadTx().Branch("b")
	require.True(t, ok)
	require.Equal(t, "", childB.Parent, "b should be reparented onto main (trunk)")
	require.False(t, h.repo.Repo.DoesBranchExist(ctx, "a"), "landed branch's local ref should be deleted")
}
