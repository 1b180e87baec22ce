package main

import (
	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/config"
	"github.com/pancake-vcs/pk/internal/vcs"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "fetch the configured remote without touching any local ref",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}
		if res := pc.Repo.Fetch(ctx, config.Pancake.Repository.Remote); res.Outcome != vcs.Ok {
			return errors.Errorf("failed to fetch %q: %s", config.Pancake.Repository.Remote, res.Detail)
		}
		printf("fetched %q\n", config.Pancake.Repository.Remote)
		return nil
	},
}
