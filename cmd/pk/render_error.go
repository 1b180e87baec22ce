package main

import (
	"fmt"

	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/colors"
	"github.com/pancake-vcs/pk/internal/engine"
	"github.com/pancake-vcs/pk/internal/forge"
	"github.com/pancake-vcs/pk/internal/vcs"
)

// renderError formats err for a non-debug terminal: the failure in red,
// followed by an actionable hint where the error kind has one (spec.md
// §7). No TUI/markdown rendering dependency is involved here — only the
// plain ANSI coloring internal/colors already wraps.
func renderError(err error) string {
	msg := fmt.Sprintf("%s %s\n", colors.Failure("error:"), err.Error())
	if hint := hintFor(err); hint != "" {
		msg += colors.Troubleshooting(hint) + "\n"
	}
	return msg
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, engine.ErrNeedsResolution):
		return "resolve the conflict, `git add` the result, then run `pk sync --continue` (or `pk sync --abort`)."
	case errors.Is(err, engine.ErrRemoteDiverged):
		return "run `pk fetch` and retry."
	case errors.Is(err, engine.ErrBusy):
		return "another pancake command is already running against this repository."
	case errors.Is(err, engine.ErrStackInconsistent):
		return "run `pk stack --repair` to reconcile tracked metadata with local refs before retrying."
	case errors.Is(err, engine.ErrWorkingTreeDirty):
		return "commit or stash your changes first."
	case errors.Is(err, engine.ErrNoOpenOperation):
		return "there is no suspended operation to continue or abort."
	case errors.Is(err, forge.ErrAuth):
		return "check that your forge API token is configured (.pancake/config or GITHUB_TOKEN/GITLAB_TOKEN)."
	case errors.Is(err, forge.ErrUnreachable):
		return "check your network connection and the forge's base_url configuration."
	case errors.Is(err, vcs.ErrRemoteNotFound):
		return "configure a remote (see git remote add) or set repository.remote in .pancake/config."
	default:
		return ""
	}
}
