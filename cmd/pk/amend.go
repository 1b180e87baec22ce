package main

import (
	"emperror.dev/errors"
	"github.com/spf13/cobra"
)

var amendFlags struct {
	NoEdit bool
	All    bool
}

var amendCmd = &cobra.Command{
	Use:   "amend",
	Short: "amend the current commit, then restack descendants of the current branch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}

		gitArgs := []string{"commit", "--amend"}
		if amendFlags.All {
			gitArgs = append(gitArgs, "--all")
		}
		if amendFlags.NoEdit {
			gitArgs = append(gitArgs, "--no-edit")
		}
		if err := pc.Repo.RunInteractive(ctx, gitArgs...); err != nil {
			return errors.Wrap(err, "amend failed")
		}

		return restackDescendantsOfCurrent(ctx, pc)
	},
}

func init() {
	amendCmd.Flags().BoolVar(&amendFlags.NoEdit, "no-edit", false, "keep the existing commit message")
	amendCmd.Flags().BoolVarP(&amendFlags.All, "all", "a", false, "automatically stage modified files")
}
