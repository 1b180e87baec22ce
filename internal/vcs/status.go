package vcs

import (
	"context"
	"regexp"
	"strings"
)

// Status is a minimal parse of `git status --porcelain=v2`, enough for the
// engine to decide WorkingTreeDirty vs. clean before starting a structural
// operation (grounded on the teacher's GitStatus parser).
type Status struct {
	CurrentBranch string
	Dirty         bool
}

var (
	branchHeadPattern = regexp.MustCompile(`# branch\.head (.+)`)
	fileLinePattern    = regexp.MustCompile(`^[12u] `)
)

func (r *Repo) Status(ctx context.Context) (Status, error) {
	out, err := r.run(ctx, nil, "status", "--porcelain=v2", "--branch")
	if err != nil {
		return Status{}, err
	}
	var st Status
	for _, line := range strings.Split(out, "\n") {
		if m := branchHeadPattern.FindStringSubmatch(line); len(m) > 0 {
			if m[1] != "(detached)" {
				st.CurrentBranch = m[1]
			}
			continue
		}
		if fileLinePattern.MatchString(line) {
			st.Dirty = true
		}
	}
	return st, nil
}

// DiffEmpty reports whether the working tree (including the index) has no
// differences from the given commit.
func (r *Repo) DiffEmpty(ctx context.Context, commit string) (bool, error) {
	out, err := r.runClassified(ctx, nil, "diff", "--quiet", "--exit-code", commit, "--")
	if err != nil {
		return false, err
	}
	return out.ExitCode == 0, nil
}
