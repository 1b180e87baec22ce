package main

import (
	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/engine"
	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/spf13/cobra"
)

var restackFlags struct {
	Continue bool
	Abort    bool
}

var restackCmd = &cobra.Command{
	Use:   "restack [branch]",
	Short: "rebase a branch (default: current) and its descendants onto their recorded parents",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}
		eng := pc.newEngine()

		switch {
		case restackFlags.Continue:
			return eng.Continue(ctx)
		case restackFlags.Abort:
			return eng.Abort(ctx)
		}

		var target string
		build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
			name, err := currentBranchOrArg(pc.Repo, model, args)
			if err != nil {
				return nil, err
			}
			target = name
			return model.PlanRestack(name)
		}

		if err := eng.Run(ctx, journal.Intent{Kind: "restack"}, build, false); err != nil {
			if errors.Is(err, engine.ErrNeedsResolution) {
				printf("conflict while restacking %q; resolve it, `git add` the result, then run `pk restack --continue`\n", target)
			}
			return err
		}
		printf("restacked %q\n", target)
		return nil
	},
}

func init() {
	restackCmd.Flags().BoolVar(&restackFlags.Continue, "continue", false, "resume a restack suspended by a conflict")
	restackCmd.Flags().BoolVar(&restackFlags.Abort, "abort", false, "cancel a restack suspended by a conflict")
}
