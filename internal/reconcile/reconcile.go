// Package reconcile is the Reconciler (C4, spec.md §4.4): it compares the
// Metadata Store's view of the branch tree (M) against local refs (L) and
// remote PR state (R) and reports drift under rules R1-R5. It is
// consulted at the start of every structural operation, and on demand by
// read-only commands.
package reconcile

import (
	"context"
	"time"

	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/pancake-vcs/pk/internal/meta/notesmirror"
	"github.com/pancake-vcs/pk/internal/vcs"
	"github.com/sirupsen/logrus"
)

// RuleKind identifies which of R1-R5 produced a Finding.
type RuleKind string

const (
	RuleMissingRef     RuleKind = "R1-missing-ref"
	RuleUntrackedRef   RuleKind = "R2-untracked-ref"
	RuleDivergentHead  RuleKind = "R3-divergent-head"
	RuleLostMetadata   RuleKind = "R4-lost-metadata"
	RuleRemoteBaseDrift RuleKind = "R5-remote-base-drift"
)

// Finding is one piece of drift between M, L, and R for a single branch.
type Finding struct {
	Rule    RuleKind
	Branch  string
	Detail  string
	// LocalHead / RecordedHead populated for RuleDivergentHead.
	LocalHead, RecordedHead string
}

// DriftReport is the Reconciler's output: zero or more Findings, plus
// whether any of them block a non-repair operation from proceeding.
type DriftReport struct {
	Findings []Finding
}

// Blocking returns the findings that must halt a non-repair structural
// operation (spec.md §4.5 step 2: StackInconsistent) touching any of
// branches. R2 (untracked ref) never blocks; adopting such refs is offered
// only by `init`. R4 blocks only when stacks.json itself is gone, which by
// definition affects every operation.
func (r *DriftReport) Blocking(branches []string) []Finding {
	set := make(map[string]bool, len(branches))
	for _, b := range branches {
		set[b] = true
	}
	var out []Finding
	for _, f := range r.Findings {
		switch f.Rule {
		case RuleUntrackedRef:
			continue
		case RuleLostMetadata:
			out = append(out, f)
		case RuleMissingRef:
			if set[f.Branch] {
				out = append(out, f)
			}
		default:
			// R3 and R5 are resolved lazily, never blocking.
		}
	}
	return out
}

// Reconciler holds the injected capabilities needed to compare snapshots:
// the Repo Adapter (for local refs) and the Metadata Store's notes mirror
// (for R4 recovery). Forge polling for R5 is the caller's responsibility
// (it is the one read-only auxiliary allowed to run with worker
// parallelism, per spec.md §5) and is passed in as already-fetched PR
// state.
type Reconciler struct {
	repo   *vcs.Repo
	mirror *notesmirror.Mirror
	trunk  string
}

func New(repo *vcs.Repo, trunk string) *Reconciler {
	return &Reconciler{repo: repo, mirror: notesmirror.New(repo), trunk: trunk}
}

// Check runs R1-R4 against the given metadata snapshot and the current
// journal state (R1 defers to an open operation rather than flagging
// orphaning). metadataFilePresent is false when stacks.json itself could
// not be found (triggering R4 instead of a normal empty-store read).
func (r *Reconciler) Check(
	ctx context.Context,
	tx meta.ReadTx,
	jrnl *journal.Journal,
	metadataFilePresent bool,
	localBranches map[string]string, // branch name -> head commit
	branchPrefix string,
) (*DriftReport, error) {
	report := &DriftReport{}

	if !metadataFilePresent {
		annotations, err := r.mirror.Rebuild(ctx)
		if err != nil {
			return nil, err
		}
		detail := "stacks.json missing; annotations found in refs/notes/pancake, but they are not restored automatically"
		if len(annotations) == 0 {
			detail = "stacks.json missing and no recoverable annotations found"
		}
		report.Findings = append(report.Findings, Finding{Rule: RuleLostMetadata, Detail: detail})
		logrus.WithField("recovered", len(annotations)).Warn("reconciler: lost metadata file")
		return report, nil
	}

	open := jrnl.OpenEntry()

	for name, b := range tx.AllBranches() {
		localHead, exists := localBranches[name]
		if !exists {
			if open != nil && involvesBranch(open, name) {
				continue // deferred: an in-flight operation explains the gap
			}
			report.Findings = append(report.Findings, Finding{
				Rule:   RuleMissingRef,
				Branch: name,
				Detail: "tracked in metadata but no matching local ref; orphaned",
			})
			continue
		}
		if b.Head != "" && b.Head != localHead {
			report.Findings = append(report.Findings, Finding{
				Rule:          RuleDivergentHead,
				Branch:        name,
				LocalHead:     localHead,
				RecordedHead:  b.Head,
				Detail:        "local ref moved since last recorded head; trusting local, anchors for children invalidated",
			})
		}
	}

	for name, head := range localBranches {
		if name == r.trunk {
			continue
		}
		if _, tracked := tx.Branch(name); tracked {
			continue
		}
		if branchPrefix != "" && !hasPrefix(name, branchPrefix) {
			continue
		}
		report.Findings = append(report.Findings, Finding{
			Rule:   RuleUntrackedRef,
			Branch: name,
			Detail: "matches tracked-branch pattern but is not tracked; offer adoption via `init`",
		})
		_ = head
	}

	return report, nil
}

// CheckRemoteBaseDrift adds R5 findings for branches whose PR binding's
// last-submitted base no longer equals their current metadata parent.
// Called separately from Check because it requires already-fetched PR
// state from the Forge Binding.
func (r *DriftReport) CheckRemoteBaseDrift(tx meta.ReadTx) {
	for name, b := range tx.AllBranches() {
		if b.PullRequest == nil {
			continue
		}
		parent := b.Parent
		if b.PullRequest.Base != parent {
			r.Findings = append(r.Findings, Finding{
				Rule:   RuleRemoteBaseDrift,
				Branch: name,
				Detail: "PR base does not match metadata parent; queued for update on next submit",
			})
		}
	}
}

func involvesBranch(e *journal.Entry, branch string) bool {
	for _, step := range e.Plan.Steps {
		if step.Branch == branch {
			return true
		}
	}
	return false
}

func hasPrefix(name, prefix string) bool {
	return len(name) >= len(prefix) && name[:len(prefix)] == prefix
}

// StaleWithin reports whether a timestamp is recent enough to be trusted
// without re-fetching (used by callers deciding whether to re-poll the
// forge before computing R5).
func StaleWithin(t time.Time, d time.Duration) bool {
	return time.Since(t) < d
}
