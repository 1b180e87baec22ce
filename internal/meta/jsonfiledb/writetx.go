package jsonfiledb

import "github.com/pancake-vcs/pk/internal/meta"

type writeTx struct {
	db *DB
	readTx
}

var _ meta.WriteTx = &writeTx{}

func (tx *writeTx) SetRepository(repository meta.Repository) {
	tx.state.Repository = repository
}

func (tx *writeTx) SetBranch(branch meta.Branch) {
	if branch.Name == "" {
		panic("cannot set branch with empty name")
	}
	tx.state.setBranch(branch)
}

func (tx *writeTx) DeleteBranch(name string) {
	tx.state.deleteBranch(name)
}

func (tx *writeTx) Abort() {
	// Abort after finalize is a no-op.
	if tx.db == nil {
		return
	}
	tx.db.stateMu.Unlock()
	tx.db = nil
}

func (tx *writeTx) Commit() error {
	if tx.db == nil {
		panic("cannot commit transaction: already finalized")
	}
	// Always unlock the database even if there is an error writing it out.
	defer tx.db.stateMu.Unlock()
	if err := tx.state.write(tx.db.filepath); err != nil {
		return err
	}
	tx.db.state = tx.state
	tx.db = nil
	return nil
}
