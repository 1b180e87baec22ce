package vcs

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// RebaseState describes whether a rebase is currently in progress in this
// working tree, per spec.md §4.1 current-rebase-state().
type RebaseState struct {
	InProgress bool
	Branch     string
	Onto       string
}

// CurrentRebaseState inspects the git directory for REBASE_HEAD/rebase-merge
// markers left behind by an interrupted `git rebase`.
func (r *Repo) CurrentRebaseState(ctx context.Context) RebaseState {
	rebaseMergeDir := filepath.Join(r.GitDir(), "rebase-merge")
	rebaseApplyDir := filepath.Join(r.GitDir(), "rebase-apply")
	var dir string
	if _, err := os.Stat(rebaseMergeDir); err == nil {
		dir = rebaseMergeDir
	} else if _, err := os.Stat(rebaseApplyDir); err == nil {
		dir = rebaseApplyDir
	} else {
		return RebaseState{}
	}
	branch := ""
	if data, err := os.ReadFile(filepath.Join(dir, "head-name")); err == nil {
		branch = strings.TrimSpace(strings.TrimPrefix(string(data), "refs/heads/"))
	}
	onto := ""
	if data, err := os.ReadFile(filepath.Join(dir, "onto")); err == nil {
		onto = strings.TrimSpace(string(data))
	}
	return RebaseState{InProgress: true, Branch: branch, Onto: onto}
}

var conflictPathPattern = regexp.MustCompile(`(?m)^CONFLICT \([^)]+\): .*? in (.+)$`)

// RebaseOnto runs `git rebase --onto newBase upstream branch`, replaying
// every commit strictly above upstream (the anchor — see spec.md §4.1/§4.3)
// onto newBase. This is the only invocation shape that preserves a child's
// own commits while pulling in a parent's updates; a plain `git rebase
// <parent>` would also replay commits the parent already had, which is
// exactly the bug this three-argument form avoids (see the teacher's
// Reparent implementation for the worked example).
func (r *Repo) RebaseOnto(ctx context.Context, branch, newBase, upstream string) Result {
	out, err := r.runClassified(
		ctx, []string{"GIT_EDITOR=true"},
		"rebase", "--onto", newBase, upstream, branch,
	)
	if err != nil {
		return fatalResult(err.Error())
	}
	return r.classifyRebaseOutput(out)
}

// RebaseContinue resumes an in-progress rebase after conflicts are resolved
// and staged.
func (r *Repo) RebaseContinue(ctx context.Context) Result {
	out, err := r.runClassified(ctx, []string{"GIT_EDITOR=true"}, "rebase", "--continue")
	if err != nil {
		return fatalResult(err.Error())
	}
	return r.classifyRebaseOutput(out)
}

// RebaseAbort aborts an in-progress rebase, restoring the branch to its
// pre-rebase state.
func (r *Repo) RebaseAbort(ctx context.Context) Result {
	out, err := r.runClassified(ctx, nil, "rebase", "--abort")
	if err != nil {
		return fatalResult(err.Error())
	}
	if out.ExitCode != 0 && !strings.Contains(out.Stderr, "No rebase in progress") {
		return fatalResult(out.Stderr)
	}
	return okResult()
}

func (r *Repo) classifyRebaseOutput(out *RunResult) Result {
	if out.ExitCode == 0 {
		return okResult()
	}
	if strings.Contains(out.Stdout, "CONFLICT") || strings.Contains(out.Stderr, "CONFLICT") {
		var paths []string
		for _, m := range conflictPathPattern.FindAllStringSubmatch(out.Stdout, -1) {
			paths = append(paths, m[1])
		}
		return Result{Outcome: Conflict, ConflictPaths: paths, Detail: out.Stdout + out.Stderr}
	}
	return fatalResult(out.Stdout + out.Stderr)
}
