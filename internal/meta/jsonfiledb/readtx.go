package jsonfiledb

import "github.com/pancake-vcs/pk/internal/meta"

type readTx struct {
	state *state
}

var _ meta.ReadTx = &readTx{}

func (tx *readTx) Repository() (meta.Repository, bool) {
	return tx.state.Repository, tx.state.Repository.ID != ""
}

func (tx *readTx) Branch(name string) (meta.Branch, bool) {
	return tx.state.branch(name)
}

func (tx *readTx) AllBranches() map[string]meta.Branch {
	return tx.state.allBranches()
}

func (tx *readTx) Children(name string) []string {
	return tx.state.children(name)
}
