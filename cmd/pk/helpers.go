package main

import (
	"context"
	"fmt"
	"os"

	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/config"
	"github.com/pancake-vcs/pk/internal/engine"
	"github.com/pancake-vcs/pk/internal/forge"
	"github.com/pancake-vcs/pk/internal/forge/github"
	"github.com/pancake-vcs/pk/internal/forge/gitlab"
	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/pancake-vcs/pk/internal/meta/jsonfiledb"
	"github.com/pancake-vcs/pk/internal/meta/notesmirror"
	"github.com/pancake-vcs/pk/internal/reconcile"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/pancake-vcs/pk/internal/vcs"
	"github.com/sirupsen/logrus"
)

type repoKey struct{}

// getRepo returns the repository already stored on the command context, if
// any; otherwise it opens the git repository rooted at rootFlags.Directory
// (or the working directory) anew. It does not store the result on the
// context.
func getRepo(ctx context.Context) (*vcs.Repo, error) {
	if repo, ok := ctx.Value(repoKey{}).(*vcs.Repo); ok {
		return repo, nil
	}
	dir := rootFlags.Directory
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to determine working directory")
		}
		dir = wd
	}
	return vcs.Open(dir)
}

// pancakeContext bundles every collaborator a structural command's
// PersistentPreRunE-adjacent setup needs, constructed once per invocation.
type pancakeContext struct {
	Repo       *vcs.Repo
	DB         meta.DB
	Journal    *journal.Journal
	Lock       *meta.Lock
	Reconciler *reconcile.Reconciler
	Mirror     *notesmirror.Mirror
	Forge      forge.Binding // nil if none configured
}

func loadPancakeContext(ctx context.Context) (*pancakeContext, error) {
	repo, err := getRepo(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "not a git repository (or any parent up to mount point)")
	}
	pancakeDir := repo.PancakeDir()

	db, err := jsonfiledb.OpenRepo(pancakeDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open metadata store")
	}

	bind, err := loadForgeBinding(ctx, repo, db)
	if err != nil {
		logrus.WithError(err).Debug("forge binding unavailable; forge-* steps will no-op")
	}

	return &pancakeContext{
		Repo:       repo,
		DB:         db,
		Journal:    journal.Open(pancakeDir),
		Lock:       meta.NewLock(pancakeDir),
		Reconciler: reconcile.New(repo, config.Pancake.Repository.MainBranch),
		Mirror:     notesmirror.New(repo),
		Forge:      bind,
	}, nil
}

// loadForgeBinding constructs a forge.Binding from the loaded configuration
// and the origin remote's owner/repo slug. A nil, non-error return means no
// forge is configured at all (e.g. `pk log` in a repo with no PR workflow).
func loadForgeBinding(ctx context.Context, repo *vcs.Repo, db meta.DB) (forge.Binding, error) {
	cfg := config.Pancake.Forge
	if cfg.Kind == "" || cfg.APIToken == "" {
		return nil, nil
	}
	origin, err := repo.Origin(ctx, config.Pancake.Repository.Remote)
	if err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case "github":
		repoID := ""
		if r, ok := db.ReadTx().Repository(); ok {
			repoID = r.ID
		}
		owner, name, ferr := splitSlug(origin.RepoSlug)
		if ferr != nil {
			return nil, ferr
		}
		return github.New(cfg.APIToken, owner, name, repoID)
	case "gitlab":
		return gitlab.New(cfg.APIToken, cfg.BaseURL, origin.RepoSlug)
	default:
		return nil, errors.Errorf("unknown forge kind %q", cfg.Kind)
	}
}

func splitSlug(slug string) (owner, name string, err error) {
	for i := len(slug) - 1; i >= 0; i-- {
		if slug[i] == '/' {
			return slug[:i], slug[i+1:], nil
		}
	}
	return "", "", errors.Errorf("malformed repository slug %q", slug)
}

// newEngine builds an Engine from a loaded pancakeContext, pulling stack
// configuration (trunk, max depth, prefix) from the global config.
func (pc *pancakeContext) newEngine() *engine.Engine {
	return &engine.Engine{
		Repo:                pc.Repo,
		DB:                  pc.DB,
		Journal:             pc.Journal,
		Lock:                pc.Lock,
		Reconciler:          pc.Reconciler,
		Mirror:              pc.Mirror,
		Forge:               pc.Forge,
		Trunk:               config.Pancake.Repository.MainBranch,
		MaxDepth:            config.Pancake.Stack.MaxDepth,
		BranchPrefix:        config.Pancake.Stack.Prefix,
		MetadataFilePresent: metadataFileExists(pc.Repo),
	}
}

func metadataFileExists(repo *vcs.Repo) bool {
	_, err := os.Stat(jsonfiledb.RepoPath(repo.PancakeDir()))
	return err == nil
}

// currentBranchOrArg resolves the branch a navigation/structural command
// should act on: the first positional arg if given (fuzzy-matched against
// the Stack Model), otherwise the current checked-out branch.
func currentBranchOrArg(repo *vcs.Repo, model *stackmodel.Model, args []string) (string, error) {
	if len(args) > 0 {
		return model.Find(args[0])
	}
	cur, err := repo.CurrentBranch()
	if err != nil {
		return "", errors.Wrap(err, "failed to determine current branch; pass a branch name explicitly")
	}
	if !model.Has(cur) {
		return "", errors.Errorf("current branch %q is not tracked by pancake", cur)
	}
	return cur, nil
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}
