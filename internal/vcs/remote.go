package vcs

import (
	"context"
	"net/url"
	"strings"

	"emperror.dev/errors"
	giturls "github.com/chainguard-dev/git-urls"
)

// ErrRemoteNotFound is returned by Origin when the given remote is not
// configured.
var ErrRemoteNotFound = errors.Sentinel("remote not found")

// Origin is a remote's parsed URL plus the "owner/repo" slug the Forge
// Binding needs to address it, grounded on the teacher's Origin/RepoSlug
// helper.
type Origin struct {
	URL      *url.URL
	RepoSlug string
}

// Origin resolves remote's URL (honoring any insteadOf rewrite, since it
// shells out to `git remote get-url` rather than reading .git/config
// directly) and slices out its owner/repo path.
func (r *Repo) Origin(ctx context.Context, remote string) (*Origin, error) {
	out, err := r.runClassified(ctx, nil, "remote", "get-url", remote)
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		if strings.Contains(out.Stderr, "No such remote") {
			return nil, errors.WithStack(ErrRemoteNotFound)
		}
		return nil, errors.Errorf("failed to resolve remote %q: %s", remote, out.Stderr)
	}
	raw := strings.TrimSpace(out.Stdout)
	if raw == "" {
		return nil, errors.Errorf("remote %q has an empty URL", remote)
	}
	u, err := giturls.Parse(raw)
	if err != nil {
		return nil, errors.WrapIff(err, "failed to parse remote url %q", raw)
	}
	slug := strings.TrimSuffix(u.Path, ".git")
	slug = strings.TrimPrefix(slug, "/")
	return &Origin{URL: u, RepoSlug: slug}, nil
}
