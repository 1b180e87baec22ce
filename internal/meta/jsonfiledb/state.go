package jsonfiledb

import (
	"encoding/json"
	"os"
	"path/filepath"

	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/meta"
	"golang.org/x/exp/slices"
)

// schemaVersion is bumped whenever the on-disk shape of state changes in a
// way that requires migration. There is no migration logic yet because
// there has only ever been one shape.
const schemaVersion = 1

// state is the full JSON document persisted at .pancake/stacks.json
// (spec.md §6). Branches are stored as a slice (not a map) so sibling order
// within a parent's Children is the only place ordering is represented, and
// so the file diffs cleanly when inspected by a human.
type state struct {
	Version    int             `json:"version"`
	Branches   []namedBranch   `json:"branches"`
	Repository meta.Repository `json:"repository"`
}

type namedBranch struct {
	Name string `json:"name"`
	meta.Branch
}

func emptyState() *state {
	return &state{Version: schemaVersion}
}

func readState(path string) (*state, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return emptyState(), nil
	}
	if err != nil {
		return nil, errors.WrapIff(err, "failed to read %s", path)
	}
	if len(data) == 0 {
		return emptyState(), nil
	}
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.WrapIff(err, "failed to parse %s", path)
	}
	if s.Version == 0 {
		s.Version = schemaVersion
	}
	return &s, nil
}

// write durably, atomically replaces the file at path with s's contents: it
// writes to a sibling temp file, flushes it to disk, then renames over the
// target. A crash at any point leaves either the old file or the new file
// intact, never a partially-written one (spec.md §4.2, "atomic replace").
func (s *state) write(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapIff(err, "failed to create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".stacks-*.json.tmp")
	if err != nil {
		return errors.WrapIff(err, "failed to create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		_ = tmp.Close()
		return errors.WrapIff(err, "failed to encode metadata")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.WrapIff(err, "failed to sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapIff(err, "failed to close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.WrapIff(err, "failed to replace %s", path)
	}
	return nil
}

func (s *state) copy() *state {
	out := &state{Version: s.Version, Repository: s.Repository}
	out.Branches = make([]namedBranch, len(s.Branches))
	copy(out.Branches, s.Branches)
	for i := range out.Branches {
		if s.Branches[i].Children != nil {
			children := make([]string, len(s.Branches[i].Children))
			copy(children, s.Branches[i].Children)
			out.Branches[i].Children = children
		}
	}
	return out
}

func (s *state) branch(name string) (meta.Branch, bool) {
	for _, b := range s.Branches {
		if b.Name == name {
			br := b.Branch
			br.Name = b.Name
			return br, true
		}
	}
	return meta.Branch{Name: name}, false
}

func (s *state) setBranch(b meta.Branch) {
	for i, existing := range s.Branches {
		if existing.Name == b.Name {
			s.Branches[i] = namedBranch{Name: b.Name, Branch: b}
			return
		}
	}
	s.Branches = append(s.Branches, namedBranch{Name: b.Name, Branch: b})
}

func (s *state) deleteBranch(name string) {
	for i, existing := range s.Branches {
		if existing.Name == name {
			s.Branches = append(s.Branches[:i], s.Branches[i+1:]...)
			return
		}
	}
}

func (s *state) allBranches() map[string]meta.Branch {
	out := make(map[string]meta.Branch, len(s.Branches))
	for _, b := range s.Branches {
		br := b.Branch
		br.Name = b.Name
		out[b.Name] = br
	}
	return out
}

func (s *state) children(name string) []string {
	var out []string
	for _, b := range s.Branches {
		if b.Parent == name {
			out = append(out, b.Name)
		}
	}
	// Sort for deterministic output regardless of storage order.
	slices.Sort(out)
	return out
}
