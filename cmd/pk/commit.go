package main

import (
	"context"

	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/spf13/cobra"
)

var commitFlags struct {
	Message string
	All     bool
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "commit staged changes, then restack descendants of the current branch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}

		gitArgs := []string{"commit"}
		if commitFlags.All {
			gitArgs = append(gitArgs, "--all")
		}
		if commitFlags.Message != "" {
			gitArgs = append(gitArgs, "--message", commitFlags.Message)
		}
		if err := pc.Repo.RunInteractive(ctx, gitArgs...); err != nil {
			return errors.Wrap(err, "commit failed")
		}

		return restackDescendantsOfCurrent(ctx, pc)
	},
}

// restackDescendantsOfCurrent runs a restack rooted at the current branch
// after a local commit/amend changes its tip, so children don't drift out
// from under it. A no-op (not an error) if the current branch isn't
// tracked.
func restackDescendantsOfCurrent(ctx context.Context, pc *pancakeContext) error {
	eng := pc.newEngine()
	cur, err := pc.Repo.CurrentBranch()
	if err != nil || !stackmodel.Build(pc.DB.ReadTx(), eng.Trunk).Has(cur) {
		return nil
	}

	build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
		return model.PlanRestack(cur)
	}

	return eng.Run(ctx, journal.Intent{Kind: "restack", Params: map[string]string{"reason": "post-commit"}}, build, false)
}

func init() {
	commitCmd.Flags().StringVarP(&commitFlags.Message, "message", "m", "", "the commit message")
	commitCmd.Flags().BoolVarP(&commitFlags.All, "all", "a", false, "automatically stage modified files")
}
