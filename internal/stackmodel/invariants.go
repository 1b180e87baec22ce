package stackmodel

import "emperror.dev/errors"

// ErrInvariant is wrapped with a specific I1-I4 violation description.
var ErrInvariant = errors.Sentinel("stack invariant violated")

// Validate checks invariants I1-I4 (spec.md §3) against the model's
// current state. The Operation Engine calls this against the *post-state*
// Model (i.e. after applying a candidate Plan in memory) before executing
// any side-effecting step (spec.md §4.5 step 3).
func (m *Model) Validate(maxDepth int) error {
	if err := m.checkAcyclicAndRooted(); err != nil {
		return err
	}
	if err := m.checkBijection(); err != nil {
		return err
	}
	return m.checkDepth(maxDepth)
}

// checkAcyclicAndRooted verifies I1 (acyclic) and I2 (rooted at trunk) in
// one pass: following parent pointers from any node must terminate at the
// trunk without revisiting a node.
func (m *Model) checkAcyclicAndRooted() error {
	for start := range m.nodes {
		seen := map[string]bool{}
		cur := start
		for cur != m.trunk {
			if seen[cur] {
				return errors.WrapIff(ErrInvariant, "I1: cycle detected reaching %q from %q", cur, start)
			}
			seen[cur] = true
			n, ok := m.nodes[cur]
			if !ok {
				return errors.WrapIff(ErrInvariant, "I2: %q's ancestor %q is not rooted at trunk %q", start, cur, m.trunk)
			}
			cur = n.Parent
		}
	}
	return nil
}

// checkBijection verifies I3: every node's Children slice equals exactly
// the set of tracked branches whose Parent is that node.
func (m *Model) checkBijection() error {
	expected := make(map[string]map[string]bool, len(m.nodes))
	for name, n := range m.nodes {
		if expected[n.Parent] == nil {
			expected[n.Parent] = map[string]bool{}
		}
		expected[n.Parent][name] = true
	}
	for name, n := range m.nodes {
		want := expected[name]
		got := map[string]bool{}
		for _, c := range n.Children {
			got[c] = true
		}
		if len(want) != len(got) {
			return errors.WrapIff(ErrInvariant, "I3: %q's child list disagrees with parent pointers", name)
		}
		for c := range want {
			if !got[c] {
				return errors.WrapIff(ErrInvariant, "I3: %q's child list is missing %q", name, c)
			}
		}
	}
	return nil
}

// checkDepth verifies I4: no tracked branch is more than maxDepth parent
// hops from the trunk.
func (m *Model) checkDepth(maxDepth int) error {
	for name := range m.nodes {
		ancestors, err := m.Ancestors(name)
		if err != nil {
			return err
		}
		if len(ancestors)+1 > maxDepth {
			return errors.WrapIff(ErrInvariant, "I4: %q exceeds maximum stack depth %d", name, maxDepth)
		}
	}
	return nil
}
