package engine

import (
	"context"

	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/forge"
	"github.com/pancake-vcs/pk/internal/forge/stackblock"
	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/pancake-vcs/pk/internal/vcs"
	"github.com/sirupsen/logrus"
)

// execute runs entry.Plan.Steps starting at entry.StepIndex (spec.md §4.5
// steps 4-7). Metadata changes are accumulated in memory and only written
// to the Metadata Store by the Plan's trailing commit-metadata step, so a
// crash or conflict before that step leaves stacks.json untouched — only
// the journal (Suspended) and the repo's refs record partial progress, and
// resuming replays the already-applied steps' metadata effects before
// continuing.
func (e *Engine) execute(ctx context.Context, entry *journal.Entry) error {
	tx := e.DB.ReadTx()
	pending := snapshotBranches(tx)

	for i := 0; i < entry.StepIndex; i++ {
		applyMetadataStep(pending, entry.Plan.Steps[i], e.Trunk)
		resyncLiveState(ctx, e.Repo, pending, entry.Plan.Steps[i])
	}

	for i := entry.StepIndex; i < len(entry.Plan.Steps); i++ {
		step := entry.Plan.Steps[i]
		if err := e.runStep(ctx, step, pending); err != nil {
			if errors.Is(err, ErrNeedsResolution) || errors.Is(err, ErrRemoteDiverged) {
				suspended := *entry
				suspended.State = journal.StateSuspended
				suspended.StepIndex = i
				suspended.UpdatedAt = now()
				suspended.Hint = err.Error()
				if aerr := e.Journal.Append(suspended); aerr != nil {
					return aerr
				}
				return err
			}
			return err
		}
		applyMetadataStep(pending, step, e.Trunk)
		resyncLiveState(ctx, e.Repo, pending, step)
	}

	committed := *entry
	committed.State = journal.StateCommitted
	committed.StepIndex = len(entry.Plan.Steps)
	committed.UpdatedAt = now()
	return e.Journal.Append(committed)
}

// runStep performs one step's side effects against the Repo Adapter,
// Forge Binding, or Metadata Store. Metadata-only steps (set-parent,
// rename, delete) are folded into pending by the caller; runStep only
// handles the ones with an external effect.
func (e *Engine) runStep(ctx context.Context, step stackmodel.Step, pending map[string]meta.Branch) error {
	switch step.Kind {
	case stackmodel.StepCreateRef:
		at := step.AtCommit
		if at == "" {
			head, res := e.Repo.ReadHead(ctx, e.Trunk)
			if res.Outcome != vcs.Ok {
				return errors.WrapIff(ErrRefMissing, "trunk %q: %s", e.Trunk, res.Detail)
			}
			at = head
		}
		if res := e.Repo.CreateBranch(ctx, step.Branch, at); res.Outcome != vcs.Ok {
			return errors.WrapIff(resultErr(res), "create-ref %q", step.Branch)
		}
		return nil

	case stackmodel.StepDeleteRef:
		res := e.Repo.DeleteBranch(ctx, step.Branch, step.Force)
		if res.Outcome == vcs.RefMissing {
			return nil // already gone; delete is idempotent on retry
		}
		if res.Outcome != vcs.Ok {
			return errors.WrapIff(resultErr(res), "delete-ref %q", step.Branch)
		}
		return nil

	case stackmodel.StepRenameRef:
		if res := e.Repo.RenameBranch(ctx, step.Branch, step.NewName); res.Outcome != vcs.Ok {
			return errors.WrapIff(resultErr(res), "rename-ref %q -> %q", step.Branch, step.NewName)
		}
		return nil

	case stackmodel.StepSetParent:
		return nil // metadata-only; folded by applyMetadataStep

	case stackmodel.StepRebase:
		res := e.Repo.RebaseOnto(ctx, step.Branch, step.NewBase, step.Upstream)
		switch res.Outcome {
		case vcs.Ok:
			return nil
		case vcs.Conflict:
			return errors.WrapIff(ErrNeedsResolution, "conflict rebasing %q onto %q: resolve it and run `pk sync --continue`", step.Branch, step.NewBase)
		default:
			return errors.WrapIff(resultErr(res), "rebase %q onto %q", step.Branch, step.NewBase)
		}

	case stackmodel.StepPush:
		res := e.Repo.PushWithLease(ctx, "origin", step.Branch, "")
		switch res.Outcome {
		case vcs.Ok:
			return nil
		case vcs.Diverged:
			return errors.WrapIff(ErrRemoteDiverged, "%q: remote has commits not reflected locally; fetch and retry", step.Branch)
		default:
			return errors.WrapIff(resultErr(res), "push %q", step.Branch)
		}

	case stackmodel.StepUpdatePRBase:
		b := pending[step.Branch]
		if b.PullRequest == nil || e.Forge == nil {
			return nil
		}
		base := step.NewBase
		if err := e.Forge.UpdatePR(ctx, b.PullRequest.ID, forge.PRUpdate{Base: &base}); err != nil {
			return classifyForgeErr(err)
		}
		return nil

	case stackmodel.StepForgeCreatePR:
		if e.Forge == nil {
			logrus.Warn("no forge configured; skipping forge-create-pr")
			return nil
		}
		b := pending[step.Branch]
		base := b.Parent
		if base == "" {
			base = e.Trunk
		}
		title := step.Title
		if title == "" {
			title = step.Branch
		}
		body := step.Body
		if body == "" {
			body = stackblock.Render("", stackblock.Block{Entries: []stackblock.Entry{{Branch: step.Branch, Current: true}}})
		}
		id, err := e.Forge.CreatePR(ctx, step.Branch, base, b.Head, title, body, step.Draft)
		if err != nil {
			return classifyForgeErr(err)
		}
		nb := pending[step.Branch]
		nb.PullRequest = &meta.PullRequest{ID: id, Base: base, Head: step.Branch, Draft: step.Draft, FetchedAt: now()}
		pending[step.Branch] = nb
		return nil

	case stackmodel.StepForgeUpdatePR:
		b := pending[step.Branch]
		if b.PullRequest == nil || e.Forge == nil {
			return nil
		}
		base := b.Parent
		if base == "" {
			base = e.Trunk
		}
		if err := e.Forge.UpdatePR(ctx, b.PullRequest.ID, forge.PRUpdate{Base: &base}); err != nil {
			return classifyForgeErr(err)
		}
		nb := b
		nb.PullRequest = &meta.PullRequest{ID: b.PullRequest.ID, Base: base, Head: step.Branch, Draft: b.PullRequest.Draft, FetchedAt: now()}
		pending[step.Branch] = nb
		return nil

	case stackmodel.StepForgeClosePR:
		b := pending[step.Branch]
		if b.PullRequest == nil || e.Forge == nil {
			return nil
		}
		closed := "closed"
		if err := e.Forge.UpdatePR(ctx, b.PullRequest.ID, forge.PRUpdate{State: &closed}); err != nil {
			return classifyForgeErr(err)
		}
		return nil

	case stackmodel.StepForgeMergePR:
		if e.Forge == nil {
			logrus.Warn("no forge configured; skipping forge-merge-pr")
			return nil
		}
		b := pending[step.Branch]
		if b.PullRequest == nil {
			return nil
		}
		commit, err := e.Forge.MergePR(ctx, b.PullRequest.ID, forge.MergeMethod(step.MergeMethod))
		if err != nil {
			return classifyForgeErr(err)
		}
		if commit != "" {
			nb := pending[step.Branch]
			nb.MergeCommit = commit
			pending[step.Branch] = nb
		}
		return nil

	case stackmodel.StepDeleteRemote:
		res := e.Repo.DeleteRemoteBranch(ctx, "origin", step.Branch)
		if res.Outcome == vcs.RefMissing {
			return nil
		}
		if res.Outcome != vcs.Ok {
			logrus.WithField("detail", res.Detail).Warn("failed to delete remote ref; the forge's own merge cleanup may have already removed it")
			return nil
		}
		return nil

	case stackmodel.StepCommitMeta:
		return e.commitMetadata(ctx, pending)
	}
	return errors.Errorf("unknown step kind %q", step.Kind)
}

func (e *Engine) commitMetadata(ctx context.Context, pending map[string]meta.Branch) error {
	tx := e.DB.WriteTx()
	existing := tx.AllBranches()
	for name := range existing {
		if _, ok := pending[name]; !ok {
			tx.DeleteBranch(name)
		}
	}
	for name, b := range pending {
		b.Name = name
		tx.SetBranch(b)
	}
	if err := tx.Commit(); err != nil {
		tx.Abort()
		return errors.Wrap(err, "failed to commit metadata")
	}
	if e.Mirror != nil {
		if err := e.Mirror.Sync(ctx, pending); err != nil {
			logrus.WithError(err).Warn("failed to sync notes mirror")
		}
	}
	return nil
}

func classifyForgeErr(err error) error {
	if errors.Is(err, forge.ErrAuth) {
		return errors.WithStack(ErrForgeAuth)
	}
	if errors.Is(err, forge.ErrUnreachable) {
		return errors.WithStack(ErrForgeUnreachable)
	}
	return err
}

// resultErr wraps a non-Ok, non-conflict vcs.Result's detail as a plain
// error for steps that have no more specific engine-level error kind.
func resultErr(res vcs.Result) error {
	return errors.New(res.Detail)
}

func snapshotBranches(tx meta.ReadTx) map[string]meta.Branch {
	all := tx.AllBranches()
	out := make(map[string]meta.Branch, len(all))
	for name, b := range all {
		out[name] = b
	}
	return out
}

// applyMetadataStep folds one step's effect on branch topology into
// pending, without touching the repo or forge. Called both while replaying
// already-completed steps on resume and as each new step succeeds.
func applyMetadataStep(pending map[string]meta.Branch, step stackmodel.Step, trunk string) {
	switch step.Kind {
	case stackmodel.StepCreateRef:
		pending[step.Branch] = meta.Branch{Name: step.Branch, CreatedAt: now()}

	case stackmodel.StepDeleteRef:
		if b, ok := pending[step.Branch]; ok {
			removeChildFrom(pending, b.Parent, step.Branch)
		}
		delete(pending, step.Branch)

	case stackmodel.StepRenameRef:
		b, ok := pending[step.Branch]
		if !ok {
			return
		}
		delete(pending, step.Branch)
		b.Name = step.NewName
		pending[step.NewName] = b
		if p, ok := pending[b.Parent]; ok {
			p.Children = renameIn(p.Children, step.Branch, step.NewName)
			pending[b.Parent] = p
		}
		for name, other := range pending {
			if other.Parent == step.Branch {
				other.Parent = step.NewName
				pending[name] = other
			}
		}

	case stackmodel.StepSetParent:
		b, ok := pending[step.Branch]
		if !ok {
			return
		}
		removeChildFrom(pending, b.Parent, step.Branch)
		newParent := step.Parent
		if newParent == trunk {
			newParent = ""
		}
		b.Parent = newParent
		pending[step.Branch] = b
		if newParent != "" {
			p := pending[newParent]
			p.Children = append(p.Children, step.Branch)
			pending[newParent] = p
		}
	}
}

func removeChildFrom(pending map[string]meta.Branch, parent, child string) {
	if parent == "" {
		return
	}
	p, ok := pending[parent]
	if !ok {
		return
	}
	out := p.Children[:0:0]
	for _, c := range p.Children {
		if c != child {
			out = append(out, c)
		}
	}
	p.Children = out
	pending[parent] = p
}

func renameIn(children []string, oldName, newName string) []string {
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

// resyncLiveState refreshes a branch's recorded Head/Anchor from the repo's
// actual refs after a step that moves commits, both on first execution and
// when replaying already-completed steps on resume, so create-ref/rebase
// always leave pending's Head/Anchor matching what's actually on disk
// instead of the zero value applyMetadataStep alone would leave behind.
func resyncLiveState(ctx context.Context, repo *vcs.Repo, pending map[string]meta.Branch, step stackmodel.Step) {
	switch step.Kind {
	case stackmodel.StepCreateRef, stackmodel.StepRebase:
		b, ok := pending[step.Branch]
		if !ok {
			return
		}
		if head, res := repo.ReadHead(ctx, step.Branch); res.Outcome == vcs.Ok {
			b.Head = head
			if step.Kind == stackmodel.StepCreateRef {
				// A freshly created branch's head is by definition its
				// parent's head at creation time: the correct upstream
				// boundary for its first rebase.
				b.Anchor = head
			}
		}
		if step.Kind == stackmodel.StepRebase {
			if base, res := repo.ReadHead(ctx, step.NewBase); res.Outcome == vcs.Ok {
				b.Anchor = base
			}
		}
		pending[step.Branch] = b
	}
}
