package vcs

import (
	"context"
	"strings"

	"emperror.dev/errors"
	"github.com/go-git/go-git/v5/plumbing"
)

// ReadHead returns the commit id that the given branch currently points at.
func (r *Repo) ReadHead(ctx context.Context, branch string) (string, Result) {
	ref, err := r.gogit.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return "", Result{Outcome: RefMissing, Detail: err.Error()}
	}
	return ref.Hash().String(), okResult()
}

// DoesBranchExist reports whether a local branch ref exists.
func (r *Repo) DoesBranchExist(ctx context.Context, branch string) bool {
	_, err := r.gogit.Reference(plumbing.NewBranchReferenceName(branch), false)
	return err == nil
}

// CreateBranch creates a new branch ref pointing at atCommit.
func (r *Repo) CreateBranch(ctx context.Context, name, atCommit string) Result {
	if r.DoesBranchExist(ctx, name) {
		return Result{Outcome: Fatal, Detail: "branch already exists: " + name}
	}
	if _, err := r.run(ctx, nil, "branch", name, atCommit); err != nil {
		return fatalResult(err.Error())
	}
	return okResult()
}

// RenameBranch renames a local branch, refusing if the new name is taken.
func (r *Repo) RenameBranch(ctx context.Context, oldName, newName string) Result {
	if r.DoesBranchExist(ctx, newName) {
		return Result{Outcome: Fatal, Detail: "branch already exists: " + newName}
	}
	if _, err := r.run(ctx, nil, "branch", "-m", oldName, newName); err != nil {
		return fatalResult(err.Error())
	}
	return okResult()
}

// DeleteBranch deletes a local branch ref. force uses `-D` instead of `-d`.
func (r *Repo) DeleteBranch(ctx context.Context, name string, force bool) Result {
	flag := "-d"
	if force {
		flag = "-D"
	}
	out, err := r.runClassified(ctx, nil, "branch", flag, name)
	if err != nil {
		return fatalResult(err.Error())
	}
	if out.ExitCode != 0 {
		if strings.Contains(out.Stderr, "not found") {
			return Result{Outcome: RefMissing, Detail: out.Stderr}
		}
		return fatalResult(out.Stderr)
	}
	return okResult()
}

// Checkout switches the working tree to the given branch. It refuses
// (WorkingTreeDirty) if doing so would be blocked by local modifications,
// mirroring `git checkout`'s own safety check.
func (r *Repo) Checkout(ctx context.Context, name string) Result {
	out, err := r.runClassified(ctx, nil, "checkout", name)
	if err != nil {
		return fatalResult(err.Error())
	}
	if out.ExitCode != 0 {
		if strings.Contains(out.Stderr, "overwritten by checkout") ||
			strings.Contains(out.Stderr, "Please commit your changes") {
			return Result{Outcome: WorkingTreeDirty, Detail: out.Stderr}
		}
		return fatalResult(out.Stderr)
	}
	return okResult()
}

// MergeBase returns the merge base commit of two revisions.
func (r *Repo) MergeBase(ctx context.Context, a, b string) (string, error) {
	out, err := r.run(ctx, nil, "merge-base", a, b)
	if err != nil {
		return "", errors.WrapIff(err, "failed to compute merge-base of %q and %q", a, b)
	}
	return out, nil
}

// IsAncestor reports whether ancestor is a (non-strict) ancestor of
// descendant.
func (r *Repo) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	out, err := r.runClassified(ctx, nil, "merge-base", "--is-ancestor", ancestor, descendant)
	if err != nil {
		return false, err
	}
	if out.ExitCode != 0 && out.ExitCode != 1 {
		return false, errors.Errorf("merge-base --is-ancestor: %s", out.Stderr)
	}
	return out.ExitCode == 0, nil
}

// UpdateRef force-sets a local branch ref to point at commit, creating it
// if necessary. Used by the Operation Engine to restore pre-image heads
// during --abort and `undo`.
func (r *Repo) UpdateRef(ctx context.Context, branch, commit string) error {
	_, err := r.run(ctx, nil, "update-ref", fmtRef(branch), commit)
	return errors.WrapIff(err, "failed to reset %q to %s", branch, ShortSha(commit))
}

// ListLocalBranches returns every local branch ref and the commit it
// currently points at, used by the Reconciler to compare against the
// Metadata Store's recorded heads (spec.md §4.4, local-refs snapshot L).
func (r *Repo) ListLocalBranches(ctx context.Context) (map[string]string, error) {
	iter, err := r.gogit.Branches()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list local branches")
	}
	out := map[string]string{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		out[ref.Name().Short()] = ref.Hash().String()
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate local branches")
	}
	return out, nil
}
