package main

import (
	"context"

	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/config"
	"github.com/pancake-vcs/pk/internal/forge/github"
	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var initFlags struct {
	Force      bool
	MainBranch string
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "initialize pancake metadata for this repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}

		tx := pc.DB.ReadTx()
		if _, ok := tx.Repository(); ok && !initFlags.Force {
			return errors.New("repository is already initialized for use with pancake; pass --force to reinitialize")
		}

		trunk := initFlags.MainBranch
		if trunk == "" {
			trunk = config.Pancake.Repository.MainBranch
		}
		if !pc.Repo.DoesBranchExist(ctx, trunk) {
			return errors.Errorf("trunk branch %q does not exist locally", trunk)
		}
		config.Pancake.Repository.MainBranch = trunk

		repository, err := resolveRepositoryRecord(ctx, pc)
		if err != nil {
			logrus.WithError(err).Warn("could not resolve forge repository; continuing without a forge binding")
		}

		wtx := pc.DB.WriteTx()
		wtx.SetRepository(repository)
		if err := wtx.Commit(); err != nil {
			wtx.Abort()
			return errors.Wrap(err, "failed to persist repository metadata")
		}

		localBranches, err := pc.Repo.ListLocalBranches(ctx)
		if err != nil {
			return err
		}
		report, err := pc.Reconciler.Check(ctx, pc.DB.ReadTx(), pc.Journal, true, localBranches, config.Pancake.Stack.Prefix)
		if err != nil {
			return err
		}
		untracked := 0
		for _, f := range report.Findings {
			if f.Rule == "R2-untracked-ref" {
				untracked++
			}
		}

		printf("initialized pancake metadata (trunk=%s)\n", trunk)
		if untracked > 0 {
			printf("%d local branch(es) match the configured prefix but are not yet tracked; use `pk branch create` or adopt them manually.\n", untracked)
		}
		return nil
	},
}

// resolveRepositoryRecord resolves the forge-side repository id for the
// configured remote, so later CreatePR calls don't need to re-resolve it.
// A non-nil error just means `init` proceeds without a forge binding;
// navigation and restack commands don't need one.
func resolveRepositoryRecord(ctx context.Context, pc *pancakeContext) (meta.Repository, error) {
	if config.Pancake.Forge.Kind != "github" || config.Pancake.Forge.APIToken == "" {
		return meta.Repository{}, nil
	}
	origin, err := pc.Repo.Origin(ctx, config.Pancake.Repository.Remote)
	if err != nil {
		return meta.Repository{}, err
	}
	owner, name, err := splitSlug(origin.RepoSlug)
	if err != nil {
		return meta.Repository{}, err
	}
	client, err := github.New(config.Pancake.Forge.APIToken, owner, name, "")
	if err != nil {
		return meta.Repository{}, err
	}
	id, err := client.ResolveRepositoryID(ctx)
	if err != nil {
		return meta.Repository{}, err
	}
	return meta.Repository{ID: id, Owner: owner, Name: name}, nil
}

func init() {
	initCmd.Flags().BoolVar(&initFlags.Force, "force", false, "reinitialize even if metadata already exists")
	initCmd.Flags().StringVar(&initFlags.MainBranch, "main-branch", "", "override the configured trunk branch")
}
