// Package vcs is the Repo Adapter (C1): a capability-typed wrapper around
// the underlying version-control executable. It shells out to git(1) for
// every mutating operation (exactly as the teacher lineage does) and uses
// go-git for cheap, allocation-free ref reads. Every mutating call reports
// one of a small set of typed Results instead of a bare error, so the
// Operation Engine can switch on outcome instead of parsing stderr.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
)

// Missing is the sentinel all-zero object id git uses to mean "does not
// exist" in ref-update plumbing commands.
const Missing = "0000000000000000000000000000000000000000"

type Repo struct {
	repoDir string
	gitDir  string
	gogit   *gogit.Repository
	log     logrus.FieldLogger
}

// Open opens the repository rooted at dir (or any of its ancestors, like
// `git` itself does).
func Open(dir string) (*Repo, error) {
	gogitRepo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open git repository")
	}
	wt, err := gogitRepo.Worktree()
	repoDir := dir
	if err == nil {
		repoDir = wt.Filesystem.Root()
	}
	r := &Repo{
		repoDir: repoDir,
		gogit:   gogitRepo,
		log:     logrus.WithField("repo", filepath.Base(repoDir)),
	}
	gitDir, err := r.revParseGitCommonDir(context.Background())
	if err != nil {
		return nil, err
	}
	r.gitDir = gitDir
	return r, nil
}

func (r *Repo) Dir() string       { return r.repoDir }
func (r *Repo) GitDir() string    { return r.gitDir }
func (r *Repo) PancakeDir() string { return filepath.Join(r.repoDir, ".pancake") }
func (r *Repo) GoGit() *gogit.Repository { return r.gogit }

func (r *Repo) revParseGitCommonDir(ctx context.Context) (string, error) {
	out, err := r.run(ctx, nil, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(out)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.repoDir, dir)
	}
	return filepath.Abs(dir)
}

// run executes `git <args>` in the repository directory and returns trimmed
// stdout, wrapping any failure with the command and stderr for debugging.
func (r *Repo) run(ctx context.Context, stdin []byte, args ...string) (string, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.repoDir
	cmd.Env = append(os.Environ(), "IN_PANCAKE_CLI=1")
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	log := r.log.WithField("duration", time.Since(start))
	if err != nil {
		log.Debugf("git %s failed: %s: %s", args, err, stderr.String())
		return strings.TrimSpace(stdout.String()), errors.WrapIff(
			err, "git %s: %s", strings.Join(args, " "), strings.TrimSpace(stderr.String()),
		)
	}
	log.Debugf("git %s", args)
	return strings.TrimSpace(stdout.String()), nil
}

// RunResult is the outcome of a raw git invocation, kept around so callers
// that need to classify a mutating operation's failure (conflict vs. fatal)
// can inspect exit code and stderr without re-running the command.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (r *Repo) runClassified(ctx context.Context, env []string, args ...string) (*RunResult, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.repoDir
	cmd.Env = append(append(os.Environ(), "IN_PANCAKE_CLI=1"), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := &RunResult{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, errors.Wrapf(err, "git %s", args)
	}
	if exitErr != nil {
		res.ExitCode = exitErr.ExitCode()
	}
	return res, nil
}

// GitVar returns the value git itself would use for a `git var` logical
// variable (e.g. GIT_EDITOR), falling through git's own config/environment
// resolution instead of reimplementing it.
func (r *Repo) GitVar(ctx context.Context, name string) (string, error) {
	return r.run(ctx, nil, "var", name)
}

// RunInteractive runs `git <args>` with stdio connected directly to the
// calling process's terminal, for subcommands that need a pager, an
// editor, or a conflict-resolution prompt (e.g. `commit`, `commit
// --amend`). Unlike run/runClassified it does not capture output, so
// callers only learn success/failure, not stdout/stderr content.
func (r *Repo) RunInteractive(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.repoDir
	cmd.Env = append(os.Environ(), "IN_PANCAKE_CLI=1")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.WrapIff(err, "git %s", strings.Join(args, " "))
	}
	return nil
}

// CurrentBranch returns the short name of HEAD, or an error if HEAD is
// detached (e.g. mid-rebase).
func (r *Repo) CurrentBranch() (string, error) {
	ref, err := r.gogit.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve HEAD")
	}
	if ref.Type() != plumbing.SymbolicReference {
		return "", errors.New("repository is in detached HEAD state")
	}
	return ref.Target().Short(), nil
}

func ShortSha(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func fmtRef(name string) string { return fmt.Sprintf("refs/heads/%s", name) }
