package vcs

import (
	"context"
	"strings"

	"emperror.dev/errors"
)

// NotesRef is the namespace the Metadata Store mirrors branch topology into,
// per spec.md §6 ("VCS annotation namespace"): refs/notes/pancake.
const NotesRef = "refs/notes/pancake"

// WriteNote attaches (or replaces) a note on commit under NotesRef.
func (r *Repo) WriteNote(ctx context.Context, commit, content string) error {
	_, err := r.run(ctx, []byte(content), "notes", "--ref", NotesRef, "add", "-f", "-F", "-", commit)
	return errors.WrapIff(err, "failed to write pancake note on %s", ShortSha(commit))
}

// ReadNote returns the note content attached to commit, or ok=false if none
// exists.
func (r *Repo) ReadNote(ctx context.Context, commit string) (content string, ok bool) {
	out, err := r.runClassified(ctx, nil, "notes", "--ref", NotesRef, "show", commit)
	if err != nil || out.ExitCode != 0 {
		return "", false
	}
	return strings.TrimSpace(out.Stdout), true
}

// RemoveNote detaches the note from commit, if any.
func (r *Repo) RemoveNote(ctx context.Context, commit string) error {
	out, err := r.runClassified(ctx, nil, "notes", "--ref", NotesRef, "remove", "--ignore-missing", commit)
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return errors.Errorf("failed to remove pancake note on %s: %s", ShortSha(commit), out.Stderr)
	}
	return nil
}

// ListNotes returns every commit in NotesRef that currently carries a note,
// used by the Reconciler's R4 rebuild-from-annotations recovery path.
func (r *Repo) ListNotes(ctx context.Context) ([]string, error) {
	out, err := r.runClassified(ctx, nil, "notes", "--ref", NotesRef, "list")
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		if strings.Contains(out.Stderr, "No note") {
			return nil, nil
		}
		return nil, errors.Errorf("git notes list: %s", out.Stderr)
	}
	var commits []string
	for _, line := range strings.Split(strings.TrimSpace(out.Stdout), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		commits = append(commits, fields[1])
	}
	return commits, nil
}
