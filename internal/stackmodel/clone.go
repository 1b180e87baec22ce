package stackmodel

import "emperror.dev/errors"

// Clone returns a deep copy of m, used by the Operation Engine to validate
// a Plan's post-state (spec.md §4.5 step 3) without mutating the Model a
// caller is still holding.
func (m *Model) Clone() *Model {
	out := &Model{trunk: m.trunk, nodes: make(map[string]*Node, len(m.nodes))}
	for name, n := range m.nodes {
		out.nodes[name] = &Node{
			Name:     n.Name,
			Parent:   n.Parent,
			Children: append([]string(nil), n.Children...),
			Head:     n.Head,
			Anchor:   n.Anchor,
			Branch:   n.Branch,
		}
	}
	return out
}

// ApplyMetadataSteps mutates m in place to reflect the topology-affecting
// steps of a Plan (create-ref, delete-ref, rename-ref, set-parent), so that
// Validate can check invariants on the post-state before any step actually
// runs against the Repo Adapter. Steps with no effect on tree shape
// (rebase, push, forge-*, commit-metadata) are ignored.
func (m *Model) ApplyMetadataSteps(steps []Step) error {
	for _, s := range steps {
		switch s.Kind {
		case StepCreateRef:
			if _, exists := m.nodes[s.Branch]; exists {
				return errors.Errorf("create-ref: branch %q already tracked", s.Branch)
			}
			m.nodes[s.Branch] = &Node{Name: s.Branch, Parent: m.trunk}
		case StepDeleteRef:
			n, ok := m.nodes[s.Branch]
			if !ok {
				return errors.Errorf("delete-ref: branch %q not tracked", s.Branch)
			}
			if len(n.Children) > 0 {
				return errors.Errorf("delete-ref: branch %q still has tracked children", s.Branch)
			}
			m.detachFromParent(s.Branch)
			delete(m.nodes, s.Branch)
		case StepRenameRef:
			n, ok := m.nodes[s.Branch]
			if !ok {
				return errors.Errorf("rename-ref: branch %q not tracked", s.Branch)
			}
			if _, exists := m.nodes[s.NewName]; exists {
				return errors.Errorf("rename-ref: branch %q already tracked", s.NewName)
			}
			delete(m.nodes, s.Branch)
			n.Name = s.NewName
			m.nodes[s.NewName] = n
			for _, other := range m.nodes {
				if other.Parent == s.Branch {
					other.Parent = s.NewName
				}
			}
			if p, ok := m.nodes[n.Parent]; ok {
				p.Children = renameChild(p.Children, s.Branch, s.NewName)
			}
		case StepSetParent:
			n, ok := m.nodes[s.Branch]
			if !ok {
				return errors.Errorf("set-parent: branch %q not tracked", s.Branch)
			}
			m.detachFromParent(s.Branch)
			n.Parent = s.Parent
			if p, ok := m.nodes[s.Parent]; ok {
				p.Children = append(p.Children, s.Branch)
			}
		}
	}
	return nil
}

func (m *Model) detachFromParent(name string) {
	n, ok := m.nodes[name]
	if !ok {
		return
	}
	if p, ok := m.nodes[n.Parent]; ok {
		p.Children = removeChild(p.Children, name)
	}
}

func removeChild(children []string, name string) []string {
	out := children[:0:0]
	for _, c := range children {
		if c != name {
			out = append(out, c)
		}
	}
	return out
}

func renameChild(children []string, oldName, newName string) []string {
	out := make([]string, len(children))
	for i, c := range children {
		if c == oldName {
			out[i] = newName
		} else {
			out[i] = c
		}
	}
	return out
}
