// Package stackmodel is the Stack Model (C3, spec.md §4.3): a pure,
// in-memory mirror of the tracked branch tree used for navigation queries
// and to compile structural Intents into ordered Plans. It never touches
// the Repo Adapter or Metadata Store directly — callers load a Model from
// a meta.ReadTx snapshot and feed Plans back through the Operation Engine.
//
// The tree is stored flat (name-keyed), not as a pointer graph, so that
// deletes, reparents, and invariant checks never have to worry about
// leaving dangling back-references — the same arena-of-nodes shape the
// teacher's treedetector/stacks packages use for branch trees.
package stackmodel

import (
	"sort"

	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/meta"
)

// ErrNotFound is returned by navigation queries given an untracked branch
// name.
var ErrNotFound = errors.Sentinel("branch not tracked")

// ErrAmbiguous is returned by Find when more than one branch matches a
// fuzzy pattern at the same precedence tier.
var ErrAmbiguous = errors.Sentinel("ambiguous branch reference")

// Node is one branch's position in the tree, including its trunk-relative
// metadata.
type Node struct {
	Name     string
	Parent   string
	Children []string
	Head     string
	Anchor   string
	Branch   meta.Branch
}

// Model is the in-memory stack tree for one trunk branch. It is built
// fresh from a meta.ReadTx snapshot at the start of every structural
// operation (spec.md §4.5 step 3) and discarded once the operation's Plan
// has been compiled and validated.
type Model struct {
	trunk string
	nodes map[string]*Node
}

// Build constructs a Model from every tracked branch in tx. trunk is the
// configured main branch (spec.md I2): branches whose Parent is empty are
// treated as rooted directly at trunk.
func Build(tx meta.ReadTx, trunk string) *Model {
	all := tx.AllBranches()
	m := &Model{trunk: trunk, nodes: make(map[string]*Node, len(all))}
	for name, b := range all {
		parent := b.Parent
		if parent == "" {
			parent = trunk
		}
		m.nodes[name] = &Node{
			Name:   name,
			Parent: parent,
			Head:   b.Head,
			Anchor: b.Anchor,
			Branch: b,
		}
	}
	for name, n := range m.nodes {
		if n.Parent == trunk {
			continue
		}
		if p, ok := m.nodes[n.Parent]; ok {
			p.Children = append(p.Children, name)
		}
	}
	// Children listed in the stored sibling order come first, in that
	// order; any others follow by name.
	for _, n := range m.nodes {
		sort.Strings(n.Children)
		rank := make(map[string]int, len(n.Branch.Children))
		for i, c := range n.Branch.Children {
			rank[c] = i + 1
		}
		sort.SliceStable(n.Children, func(i, j int) bool {
			ri, rj := rank[n.Children[i]], rank[n.Children[j]]
			return ri != 0 && (rj == 0 || ri < rj)
		})
	}
	return m
}

// Trunk returns the model's configured main branch.
func (m *Model) Trunk() string { return m.trunk }

// Has reports whether name is a tracked branch.
func (m *Model) Has(name string) bool {
	_, ok := m.nodes[name]
	return ok
}

func (m *Model) node(name string) (*Node, error) {
	n, ok := m.nodes[name]
	if !ok {
		return nil, errors.WrapIff(ErrNotFound, "%q", name)
	}
	return n, nil
}

// Parent returns b's parent branch name, or the trunk if b is a stack
// root.
func (m *Model) Parent(b string) (string, error) {
	n, err := m.node(b)
	if err != nil {
		return "", err
	}
	return n.Parent, nil
}

// Children returns b's tracked children in stored sibling order. The
// trunk's children are returned sorted by name.
func (m *Model) Children(b string) ([]string, error) {
	if b == m.trunk {
		return m.trunkChildren(), nil
	}
	n, err := m.node(b)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(n.Children))
	copy(out, n.Children)
	return out, nil
}

func (m *Model) trunkChildren() []string {
	var out []string
	for name, n := range m.nodes {
		if n.Parent == m.trunk {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Siblings returns the other tracked branches sharing b's parent.
func (m *Model) Siblings(b string) ([]string, error) {
	n, err := m.node(b)
	if err != nil {
		return nil, err
	}
	siblings, err := m.Children(n.Parent)
	if err != nil {
		return nil, err
	}
	out := siblings[:0:0]
	for _, s := range siblings {
		if s != b {
			out = append(out, s)
		}
	}
	return out, nil
}

// Ancestors returns b's chain of tracked parents, nearest first, stopping
// at (not including) the trunk.
func (m *Model) Ancestors(b string) ([]string, error) {
	n, err := m.node(b)
	if err != nil {
		return nil, err
	}
	var out []string
	cur := n.Parent
	for cur != m.trunk {
		out = append(out, cur)
		next, ok := m.nodes[cur]
		if !ok {
			break
		}
		cur = next.Parent
	}
	return out, nil
}

// Descendants returns every tracked branch transitively rooted at b, in
// pre-order (parent before children, children in sibling order).
func (m *Model) Descendants(b string) ([]string, error) {
	if _, err := m.node(b); err != nil {
		return nil, err
	}
	var out []string
	var walk func(string)
	walk = func(name string) {
		children, _ := m.Children(name)
		for _, c := range children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(b)
	return out, nil
}

// TopOf returns the deepest descendant along b's current path: at each
// level the last sibling (by stored sibling order, falling back to
// lexicographic) is followed.
func (m *Model) TopOf(b string) (string, error) {
	if _, err := m.node(b); err != nil {
		return "", err
	}
	cur := b
	for {
		children, err := m.Children(cur)
		if err != nil || len(children) == 0 {
			return cur, nil
		}
		cur = children[len(children)-1]
	}
}

// BottomOf returns the branch whose parent is the trunk anchor on b's
// path, i.e. the root of b's stack.
func (m *Model) BottomOf(b string) (string, error) {
	n, err := m.node(b)
	if err != nil {
		return "", err
	}
	cur := n
	for cur.Parent != m.trunk {
		next, ok := m.nodes[cur.Parent]
		if !ok {
			break
		}
		cur = next
	}
	return cur.Name, nil
}
