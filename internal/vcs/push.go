package vcs

import (
	"context"
	"strings"
)

// PushWithLease force-pushes branch to remote, but only if the remote's
// current tip still matches expectedRemoteHead (`--force-with-lease`). If
// the remote has moved, this returns Diverged instead of clobbering someone
// else's work, per spec.md §4.1/§4.5 step 7.
func (r *Repo) PushWithLease(ctx context.Context, remote, branch, expectedRemoteHead string) Result {
	lease := branch + ":" + expectedRemoteHead
	if expectedRemoteHead == "" {
		lease = branch
	}
	out, err := r.runClassified(
		ctx, nil,
		"push", "--force-with-lease="+lease, remote, branch,
	)
	if err != nil {
		return fatalResult(err.Error())
	}
	if out.ExitCode == 0 {
		return okResult()
	}
	if strings.Contains(out.Stderr, "stale info") ||
		strings.Contains(out.Stderr, "rejected") {
		actual, _ := r.run(ctx, nil, "rev-parse", "refs/remotes/"+remote+"/"+branch)
		return Result{
			Outcome:      Diverged,
			Branch:       branch,
			ExpectedHead: expectedRemoteHead,
			ActualHead:   actual,
			Detail:       out.Stderr,
		}
	}
	return fatalResult(out.Stderr)
}

// DeleteRemoteBranch deletes branch from remote. A missing remote ref is
// treated as success so the step is idempotent on retry.
func (r *Repo) DeleteRemoteBranch(ctx context.Context, remote, branch string) Result {
	out, err := r.runClassified(ctx, nil, "push", remote, "--delete", branch)
	if err != nil {
		return fatalResult(err.Error())
	}
	if out.ExitCode != 0 {
		if strings.Contains(out.Stderr, "remote ref does not exist") {
			return Result{Outcome: RefMissing, Detail: out.Stderr}
		}
		return fatalResult(out.Stderr)
	}
	return okResult()
}

// Fetch updates remote-tracking refs for the given remote.
func (r *Repo) Fetch(ctx context.Context, remote string) Result {
	out, err := r.runClassified(ctx, nil, "fetch", remote)
	if err != nil {
		return fatalResult(err.Error())
	}
	if out.ExitCode != 0 {
		return fatalResult(out.Stderr)
	}
	return okResult()
}

// RemoteTrackingHead returns the current commit of remote's copy of branch.
func (r *Repo) RemoteTrackingHead(ctx context.Context, remote, branch string) (string, error) {
	return r.run(ctx, nil, "rev-parse", "refs/remotes/"+remote+"/"+branch)
}
