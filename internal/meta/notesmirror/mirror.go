// Package notesmirror maintains the Metadata Store's secondary recovery
// mirror: a copy of each branch's {parent, anchor} pair written as a git
// note (refs/notes/pancake, internal/vcs.NotesRef) keyed by that branch's
// head commit. It exists purely for the Reconciler's R4 rule (spec.md
// §4.4): if stacks.json is lost or corrupted but local refs and their
// notes survive, topology can be rebuilt without falling back to the
// forge.
//
// This is the teacher's refmeta idea (branch topology recorded directly in
// the git object store) repurposed as a mirror instead of the primary
// store: the teacher's ReadAllBranches/Import read per-branch refs as the
// source of truth, we only ever write notes for recovery and never read
// them except during rebuild.
package notesmirror

import (
	"context"
	"encoding/json"

	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/pancake-vcs/pk/internal/vcs"
	"github.com/sirupsen/logrus"
)

// Annotation is the payload mirrored onto a branch's head commit.
type Annotation struct {
	Branch string `json:"branch"`
	Parent string `json:"parent"`
	Anchor string `json:"anchor,omitempty"`
}

type Mirror struct {
	repo *vcs.Repo
}

func New(repo *vcs.Repo) *Mirror {
	return &Mirror{repo: repo}
}

// Sync writes (or rewrites) the note for every branch whose Head is known.
// The Operation Engine calls it after committing a plan's metadata; other
// metadata writes (undo, init) do not refresh the mirror.
func (m *Mirror) Sync(ctx context.Context, branches map[string]meta.Branch) error {
	for _, b := range branches {
		if b.Head == "" {
			continue
		}
		data, err := json.Marshal(Annotation{Branch: b.Name, Parent: b.Parent, Anchor: b.Anchor})
		if err != nil {
			return errors.WrapIff(err, "failed to encode notes-mirror annotation for %q", b.Name)
		}
		if err := m.repo.WriteNote(ctx, b.Head, string(data)); err != nil {
			return errors.WrapIff(err, "failed to mirror metadata for %q", b.Name)
		}
	}
	return nil
}

// Rebuild reads the note on every commit listed by `git notes list` and
// returns one annotation per branch name; where several commits carry a
// note for the same branch, the last one in list order wins. Commits whose note fails to parse are skipped and logged,
// mirroring the teacher's "corrupt stack metadata, deleting..." tolerance
// in refmeta.unmarshalBranch.
func (m *Mirror) Rebuild(ctx context.Context) (map[string]Annotation, error) {
	commits, err := m.repo.ListNotes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notes-mirror annotations")
	}

	out := make(map[string]Annotation, len(commits))
	for _, commit := range commits {
		content, ok := m.repo.ReadNote(ctx, commit)
		if !ok {
			continue
		}
		var ann Annotation
		if err := json.Unmarshal([]byte(content), &ann); err != nil {
			logrus.WithError(err).WithField("commit", vcs.ShortSha(commit)).
				Warn("corrupt notes-mirror annotation, ignoring")
			continue
		}
		if ann.Branch == "" {
			continue
		}
		out[ann.Branch] = ann
	}
	return out, nil
}
