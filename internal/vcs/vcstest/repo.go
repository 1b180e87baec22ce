// Package vcstest spins up a throwaway git repository (with a bare "origin"
// remote) for engine, reconciler, notes-mirror and Repo Adapter tests,
// grounded on the teacher's
// internal/git/gittest helper.
package vcstest

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pancake-vcs/pk/internal/vcs"
	"github.com/stretchr/testify/require"
)

type Repo struct {
	t       *testing.T
	Dir     string
	RepoDir string
	Repo    *vcs.Repo
}

// New initializes a local repo with an initial commit on `main`, pushed to a
// bare "origin" remote, and a committer identity configured.
func New(t *testing.T) *Repo {
	t.Helper()
	base := t.TempDir()
	local := filepath.Join(base, "local")
	remote := filepath.Join(base, "remote")
	require.NoError(t, os.MkdirAll(local, 0o755))
	require.NoError(t, os.MkdirAll(remote, 0o755))

	run(t, remote, "init", "--bare")
	run(t, local, "init", "--initial-branch=main")
	run(t, local, "config", "user.name", "pancake-test")
	run(t, local, "config", "user.email", "pancake-test@nonexistent")
	run(t, local, "remote", "add", "origin", remote)

	require.NoError(t, os.WriteFile(filepath.Join(local, "README.md"), []byte("# hello\n"), 0o644))
	run(t, local, "add", "README.md")
	run(t, local, "commit", "-m", "initial commit")
	run(t, local, "push", "origin", "main")

	repo, err := vcs.Open(local)
	require.NoError(t, err)
	return &Repo{t: t, Dir: base, RepoDir: local, Repo: repo}
}

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	require.NoError(t, err, "git %v failed: %s", args, out.String())
	return strings.TrimSpace(out.String())
}

// CommitFile writes and commits a file on the currently checked-out branch.
func (r *Repo) CommitFile(name, body, msg string) string {
	r.t.Helper()
	require.NoError(r.t, os.WriteFile(filepath.Join(r.RepoDir, name), []byte(body), 0o644))
	run(r.t, r.RepoDir, "add", name)
	run(r.t, r.RepoDir, "commit", "-m", msg)
	return run(r.t, r.RepoDir, "rev-parse", "HEAD")
}

// Branch creates and checks out a new branch from the current HEAD.
func (r *Repo) Branch(name string) {
	r.t.Helper()
	run(r.t, r.RepoDir, "checkout", "-b", name)
}

func (r *Repo) Checkout(name string) {
	r.t.Helper()
	run(r.t, r.RepoDir, "checkout", name)
}

func (r *Repo) Head(ref string) string {
	r.t.Helper()
	return run(r.t, r.RepoDir, "rev-parse", ref)
}

func (r *Repo) Git(args ...string) string {
	r.t.Helper()
	return run(r.t, r.RepoDir, args...)
}

func (r *Repo) DebugTree() string {
	return fmt.Sprintf("repo at %s", r.RepoDir)
}
