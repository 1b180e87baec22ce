package main

import (
	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/config"
	"github.com/pancake-vcs/pk/internal/vcs"
	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "fetch the remote and fast-forward trunk (see also: sync --from-main)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}
		trunk := config.Pancake.Repository.MainBranch
		if res := pc.Repo.Fetch(ctx, config.Pancake.Repository.Remote); res.Outcome != vcs.Ok {
			return errors.Errorf("failed to fetch %q: %s", config.Pancake.Repository.Remote, res.Detail)
		}
		if err := fastForwardTrunk(ctx, pc, trunk); err != nil {
			return err
		}
		printf("%q is up to date with %q/%q\n", trunk, config.Pancake.Repository.Remote, trunk)
		return nil
	},
}
