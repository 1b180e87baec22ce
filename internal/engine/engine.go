// Package engine is the Operation Engine (C5, spec.md §4.5): the
// transactional heart that turns a compiled Plan into Repo Adapter and
// Forge Binding calls, opening a Journal entry up front so a conflict or
// crash mid-Plan can be resumed (`--continue`) or unwound (`--abort`)
// instead of leaving the tree half-migrated.
package engine

import (
	"context"
	"fmt"
	"time"

	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/forge"
	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/pancake-vcs/pk/internal/meta/notesmirror"
	"github.com/pancake-vcs/pk/internal/reconcile"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/pancake-vcs/pk/internal/vcs"
	"github.com/sirupsen/logrus"
)

// Engine bundles every capability a structural operation needs. One
// Engine is constructed per pk invocation.
type Engine struct {
	Repo       *vcs.Repo
	DB         meta.DB
	Journal    *journal.Journal
	Lock       *meta.Lock
	Reconciler *reconcile.Reconciler
	Mirror     *notesmirror.Mirror
	Forge      forge.Binding // nil if no forge is configured; forge steps are skipped (create-pr and merge-pr log a warning)

	Trunk               string
	MaxDepth            int
	BranchPrefix        string
	MetadataFilePresent bool
}

// BuildPlan compiles an Intent into a Plan against the current Stack
// Model. Returning an error aborts the operation before anything is
// journaled.
type BuildPlan func(model *stackmodel.Model) (*stackmodel.Plan, error)

// Run executes one structural operation end-to-end (spec.md §4.5 steps
// 1-7). repair allows the operation to proceed despite blocking drift
// (used by `stack --repair`).
func (e *Engine) Run(ctx context.Context, intent journal.Intent, build BuildPlan, repair bool) error {
	if err := e.Lock.TryAcquire(); err != nil {
		return errors.WithStack(ErrBusy)
	}
	released := false
	release := func() {
		if !released {
			_ = e.Lock.Release()
			released = true
		}
	}
	if open := e.Journal.OpenEntry(); open != nil && open.State == journal.StateSuspended {
		release()
		return errors.WrapIff(ErrBusy, "operation %d is suspended; finish it with `pk sync --continue` or `pk sync --abort` first", open.OpID)
	}

	tx := e.DB.ReadTx()
	model := stackmodel.Build(tx, e.Trunk)

	plan, err := build(model)
	if err != nil {
		release()
		return err
	}
	touched := touchedBranches(plan)

	localBranches, err := e.Repo.ListLocalBranches(ctx)
	if err != nil {
		release()
		return err
	}
	report, err := e.Reconciler.Check(ctx, tx, e.Journal, e.MetadataFilePresent, localBranches, e.BranchPrefix)
	if err != nil {
		release()
		return err
	}
	if !repair {
		if blocking := report.Blocking(touched); len(blocking) > 0 {
			release()
			return errors.WrapIff(ErrStackInconsistent, "%s", formatFindings(blocking))
		}
	}

	if err := validatePostState(model, plan, e.MaxDepth); err != nil {
		release()
		return err
	}

	opID, err := e.Journal.NextOpID()
	if err != nil {
		release()
		return err
	}
	entry := journal.Entry{
		OpID:      opID,
		Intent:    intent,
		Plan:      *plan,
		PreImage:  e.preImage(tx, touched, localBranches),
		State:     journal.StateOpen,
		OpenedAt:  now(),
		UpdatedAt: now(),
	}
	if err := e.Journal.Append(entry); err != nil {
		release()
		return err
	}

	if err := e.execute(ctx, &entry); err != nil {
		if errors.Is(err, ErrNeedsResolution) || errors.Is(err, ErrRemoteDiverged) {
			// The lock file is left in place until --continue or --abort
			// finishes, though TryAcquire treats it as stale once this
			// process has exited; the Suspended entry, checked at the top
			// of Run, is what stops a second operation.
			return err
		}
		release()
		return err
	}

	release()
	return nil
}

// Continue resumes the single Suspended entry from its recorded step
// (spec.md §4.5 step 6).
func (e *Engine) Continue(ctx context.Context) error {
	entry := e.Journal.OpenEntry()
	if entry == nil || entry.State != journal.StateSuspended {
		return errors.WithStack(ErrNoOpenOperation)
	}
	if rs := e.Repo.CurrentRebaseState(ctx); rs.InProgress {
		res := e.Repo.RebaseContinue(ctx)
		if res.Outcome == vcs.Conflict {
			return errors.WithStack(ErrNeedsResolution)
		}
		if res.Outcome != vcs.Ok {
			return errors.Errorf("failed to continue rebase: %s", res.Detail)
		}
	}
	err := e.execute(ctx, entry)
	if err != nil && (errors.Is(err, ErrNeedsResolution) || errors.Is(err, ErrRemoteDiverged)) {
		return err
	}
	_ = e.Lock.Release()
	return err
}

// Abort rewinds the single Suspended entry via its pre-image (spec.md
// §4.5 step 6, §5 cancellation).
func (e *Engine) Abort(ctx context.Context) error {
	entry := e.Journal.OpenEntry()
	if entry == nil {
		return errors.WithStack(ErrNoOpenOperation)
	}
	if rs := e.Repo.CurrentRebaseState(ctx); rs.InProgress {
		if res := e.Repo.RebaseAbort(ctx); res.Outcome != vcs.Ok {
			logrus.WithField("detail", res.Detail).Warn("rebase abort reported a non-Ok result")
		}
	}
	for branch, head := range entry.PreImage.BranchHeads {
		if !e.Repo.DoesBranchExist(ctx, branch) {
			continue
		}
		if err := e.Repo.UpdateRef(ctx, branch, head); err != nil {
			logrus.WithError(err).WithField("branch", branch).Warn("failed to restore branch head during abort")
		}
	}

	aborted := *entry
	aborted.State = journal.StateAborted
	aborted.UpdatedAt = now()
	if err := e.Journal.Append(aborted); err != nil {
		return err
	}
	return e.Lock.Release()
}

// Undo reverses the last Committed entry (spec.md §4.7). force allows
// reversing even if a touched branch was pushed with a newer head since
// commit.
func (e *Engine) Undo(ctx context.Context, force bool) error {
	entry := e.Journal.LastCommitted()
	if entry == nil {
		return errors.New("nothing to undo")
	}
	if err := e.Lock.TryAcquire(); err != nil {
		return errors.WithStack(ErrBusy)
	}
	defer e.Lock.Release()

	if !force {
		for branch, preHead := range entry.PreImage.BranchHeads {
			remoteHead, err := e.Repo.RemoteTrackingHead(ctx, "origin", branch)
			if err != nil || remoteHead == "" || remoteHead == preHead {
				continue
			}
			current, res := e.Repo.ReadHead(ctx, branch)
			if res.Outcome == vcs.Ok && current != preHead && remoteHead == current {
				return errors.Errorf("%q was pushed with a newer head since this operation; use --force", branch)
			}
		}
	}

	tx := e.DB.WriteTx()
	for name, b := range entry.PreImage.Branches {
		b.Name = name
		tx.SetBranch(b)
	}
	tx.SetRepository(entry.PreImage.Repository)
	for name := range tx.AllBranches() {
		if _, ok := entry.PreImage.Branches[name]; !ok {
			tx.DeleteBranch(name)
		}
	}
	if err := tx.Commit(); err != nil {
		tx.Abort()
		return err
	}
	// Restore every branch that existed before the operation to its
	// pre-image head, creating it back if the operation deleted or renamed
	// it away (UpdateRef creates a missing ref rather than requiring one).
	for branch, head := range entry.PreImage.BranchHeads {
		if err := e.Repo.UpdateRef(ctx, branch, head); err != nil {
			return err
		}
	}
	// Any ref the operation could have produced (a new branch, or a
	// rename's destination name) that didn't exist pre-operation has no
	// pre-image to restore it to; it is cleaned up instead.
	for _, branch := range affectedBranches(entry.Plan) {
		if _, existedBefore := entry.PreImage.BranchHeads[branch]; existedBefore {
			continue
		}
		if e.Repo.DoesBranchExist(ctx, branch) {
			if res := e.Repo.DeleteBranch(ctx, branch, true); res.Outcome != vcs.Ok && res.Outcome != vcs.RefMissing {
				logrus.WithField("detail", res.Detail).Warn("failed to clean up branch ref created since undone operation")
			}
		}
	}

	undone := *entry
	undone.State = journal.StateAborted
	undone.UpdatedAt = now()
	undone.Hint = "reversed by pk undo"
	return e.Journal.Append(undone)
}

// Redo re-executes the journal's most recently undone entry, appending a
// fresh record under the same OpID so it once again supersedes the
// Aborted one (spec.md §10 decision: a redo that isn't immediately
// following its undo is refused, since LastUndone stops matching as soon
// as a newer entry exists).
func (e *Engine) Redo(ctx context.Context) error {
	undone := e.Journal.LastUndone()
	if undone == nil {
		return errors.New("nothing to redo")
	}
	if err := e.Lock.TryAcquire(); err != nil {
		return errors.WithStack(ErrBusy)
	}
	released := false
	release := func() {
		if !released {
			_ = e.Lock.Release()
			released = true
		}
	}

	entry := journal.Entry{
		OpID:      undone.OpID,
		Intent:    undone.Intent,
		Plan:      undone.Plan,
		PreImage:  undone.PreImage,
		State:     journal.StateOpen,
		OpenedAt:  now(),
		UpdatedAt: now(),
	}
	if err := e.Journal.Append(entry); err != nil {
		release()
		return err
	}

	if err := e.execute(ctx, &entry); err != nil {
		if errors.Is(err, ErrNeedsResolution) || errors.Is(err, ErrRemoteDiverged) {
			return err
		}
		release()
		return err
	}
	release()
	return nil
}

func touchedBranches(plan *stackmodel.Plan) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range plan.Steps {
		if s.Branch != "" && !seen[s.Branch] {
			seen[s.Branch] = true
			out = append(out, s.Branch)
		}
	}
	return out
}

// affectedBranches is touchedBranches plus every rename destination name,
// used by Undo to find refs the operation could have produced that have no
// pre-image (spec.md §4.7: reversing a create or a rename must also clean
// up the ref it left behind, not just the metadata record).
func affectedBranches(plan stackmodel.Plan) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, s := range plan.Steps {
		add(s.Branch)
		if s.Kind == stackmodel.StepRenameRef {
			add(s.NewName)
		}
	}
	return out
}

func validatePostState(model *stackmodel.Model, plan *stackmodel.Plan, maxDepth int) error {
	post := model.Clone()
	if err := post.ApplyMetadataSteps(plan.Steps); err != nil {
		return err
	}
	if err := post.Validate(maxDepth); err != nil {
		return errors.WrapIff(ErrStackInconsistent, "%s", err.Error())
	}
	return nil
}

func (e *Engine) preImage(tx meta.ReadTx, touched []string, localBranches map[string]string) journal.PreImage {
	repo, _ := tx.Repository()
	pre := journal.PreImage{
		Branches:    map[string]meta.Branch{},
		Repository:  repo,
		BranchHeads: map[string]string{},
	}
	for _, name := range touched {
		if b, ok := tx.Branch(name); ok {
			pre.Branches[name] = b
		}
		if head, ok := localBranches[name]; ok {
			pre.BranchHeads[name] = head
		}
	}
	return pre
}

func formatFindings(findings []reconcile.Finding) string {
	s := ""
	for i, f := range findings {
		if i > 0 {
			s += "; "
		}
		s += fmt.Sprintf("%s: %s (%s)", f.Rule, f.Branch, f.Detail)
	}
	return s
}

// now is a seam so tests can avoid depending on wall-clock time if needed.
var now = time.Now
