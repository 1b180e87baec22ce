// Package jsonfiledb is the Metadata Store's primary backing: a single
// atomically-replaced JSON file at .pancake/stacks.json (spec.md §4.2,
// §6). Cross-process exclusivity is a separate concern, handled by
// meta.Lock over .pancake/lock; this package's mutex only serializes
// concurrent goroutines within one pk invocation (e.g. a WriteTx racing a
// background PR-status ReadTx).
package jsonfiledb

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pancake-vcs/pk/internal/meta"
)

// FileName is the Metadata Store's file within the repo's pancake
// directory (spec.md §6).
const FileName = "stacks.json"

type DB struct {
	filepath string

	stateMu sync.Mutex
	state   *state
}

// RepoPath returns the stacks.json path for a repo's pancake directory
// (typically <worktree root>/.pancake, see internal/vcs.Repo.PancakeDir).
func RepoPath(pancakeDir string) string {
	return filepath.Join(pancakeDir, FileName)
}

// OpenRepo opens the metadata store at the conventional path within a
// pancake directory, creating it on first use.
func OpenRepo(pancakeDir string) (*DB, error) {
	return OpenPath(RepoPath(pancakeDir))
}

// OpenPath opens a JSON file database at the given path. If the file does
// not exist, it is created (as well as all ancestor directories) on first
// write; reads against a nonexistent file see an empty store.
func OpenPath(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	st, err := readState(path)
	if err != nil {
		return nil, err
	}
	return &DB{filepath: path, state: st}, nil
}

func (d *DB) ReadTx() meta.ReadTx {
	// Acquire the lock in order to safely snapshot state, but don't hold it
	// for the entire duration of the read transaction.
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return &readTx{d.state.copy()}
}

func (d *DB) WriteTx() meta.WriteTx {
	// For a write transaction, hold the lock until the transaction is
	// aborted/committed so no other transaction can observe or clobber
	// in-flight changes.
	d.stateMu.Lock()
	return &writeTx{db: d, readTx: readTx{d.state.copy()}}
}

var _ meta.DB = &DB{}
