package stackmodel_test

import (
	"testing"

	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/pancake-vcs/pk/internal/meta/jsonfiledb"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/stretchr/testify/require"
)

// buildModel loads a throwaway jsonfiledb with the given branches and
// returns the resulting Model, the same path cmd/pk's commands take.
func buildModel(t *testing.T, branches ...meta.Branch) *stackmodel.Model {
	t.Helper()
	db, err := jsonfiledb.OpenPath(t.TempDir() + "/stacks.json")
	require.NoError(t, err)
	tx := db.WriteTx()
	for _, b := range branches {
		tx.SetBranch(b)
	}
	require.NoError(t, tx.Commit())
	return stackmodel.Build(db.ReadTx(), "main")
}

func TestBuildChildrenAndSiblingOrder(t *testing.T) {
	m := buildModel(t,
		meta.Branch{Name: "feature-a", Parent: "main"},
		meta.Branch{Name: "feature-b", Parent: "main"},
		meta.Branch{Name: "feature-a-1", Parent: "feature-a"},
	)

	children, err := m.Children("main")
	require.NoError(t, err)
	require.Equal(t, []string{"feature-a", "feature-b"}, children)

	children, err = m.Children("feature-a")
	require.NoError(t, err)
	require.Equal(t, []string{"feature-a-1"}, children)

	siblings, err := m.Siblings("feature-a")
	require.NoError(t, err)
	require.Equal(t, []string{"feature-b"}, siblings)
}

func TestDescendantsPreOrder(t *testing.T) {
	m := buildModel(t,
		meta.Branch{Name: "a", Parent: "main"},
		meta.Branch{Name: "b", Parent: "a"},
		meta.Branch{Name: "c", Parent: "a"},
		meta.Branch{Name: "d", Parent: "b"},
	)

	d, err := m.Descendants("a")
	require.NoError(t, err)
	require.Equal(t, []string{"b", "d", "c"}, d)
}

func TestAncestorsStopAtTrunk(t *testing.T) {
	m := buildModel(t,
		meta.Branch{Name: "a", Parent: "main"},
		meta.Branch{Name: "b", Parent: "a"},
	)
	anc, err := m.Ancestors("b")
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, anc)
}

func TestBottomOfAndTopOf(t *testing.T) {
	m := buildModel(t,
		meta.Branch{Name: "a", Parent: "main"},
		meta.Branch{Name: "b", Parent: "a"},
		meta.Branch{Name: "c", Parent: "b"},
	)
	bottom, err := m.BottomOf("c")
	require.NoError(t, err)
	require.Equal(t, "a", bottom)

	top, err := m.TopOf("a")
	require.NoError(t, err)
	require.Equal(t, "c", top)
}

func TestNavigationOnUntrackedBranchFails(t *testing.T) {
	m := buildModel(t, meta.Branch{Name: "a", Parent: "main"})
	_, err := m.Parent("nope")
	require.ErrorIs(t, err, stackmodel.ErrNotFound)
}
