package jsonfiledb_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/pancake-vcs/pk/internal/meta/jsonfiledb"
	"github.com/stretchr/testify/require"
)

func TestJSONFileDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stacks.json")

	db, err := jsonfiledb.OpenPath(path)
	require.NoError(t, err, "db open should succeed if state file does not exist")

	if _, ok := db.ReadTx().Branch("foo"); ok {
		t.Error("non existent branch should not be found")
	}

	tx := db.WriteTx()
	tx.SetBranch(meta.Branch{Name: "foo", CreatedAt: time.Now()})
	require.NoError(t, tx.Commit())

	tx = db.WriteTx()
	tx.SetBranch(meta.Branch{Name: "bar"})
	tx.Abort()
	if _, ok := db.ReadTx().Branch("bar"); ok {
		t.Error("aborted tx should not commit changes")
	}

	foo, ok := db.ReadTx().Branch("foo")
	require.True(t, ok, "branch should be found")
	require.Equal(t, "foo", foo.Name, "branch name should match")

	// Re-open the database and cause it to re-read from disk.
	db, err = jsonfiledb.OpenPath(path)
	require.NoError(t, err, "db open should succeed if state file exists")
	foo, ok = db.ReadTx().Branch("foo")
	require.True(t, ok, "branch should be found after re-open")
	require.Equal(t, "foo", foo.Name, "branch name should match")
}

func TestJSONFileDBChildrenAndRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stacks.json")
	db, err := jsonfiledb.OpenPath(path)
	require.NoError(t, err)

	tx := db.WriteTx()
	tx.SetRepository(meta.Repository{ID: "r1", Owner: "acme", Name: "widgets"})
	tx.SetBranch(meta.Branch{Name: "feature-a", Parent: "main"})
	tx.SetBranch(meta.Branch{Name: "feature-b", Parent: "main"})
	require.NoError(t, tx.Commit())

	rtx := db.ReadTx()
	repo, ok := rtx.Repository()
	require.True(t, ok)
	require.Equal(t, "widgets", repo.Name)

	children := rtx.Children("main")
	require.ElementsMatch(t, []string{"feature-a", "feature-b"}, children)

	tx = db.WriteTx()
	tx.DeleteBranch("feature-a")
	require.NoError(t, tx.Commit())
	require.ElementsMatch(t, []string{"feature-b"}, db.ReadTx().Children("main"))
}
