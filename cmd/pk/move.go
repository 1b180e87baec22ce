package main

import (
	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/config"
	"github.com/pancake-vcs/pk/internal/engine"
	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/spf13/cobra"
)

var moveFlags struct {
	To       string
	From     string
	Continue bool
	Abort    bool
}

var moveCmd = &cobra.Command{
	Use:   "move",
	Short: "reparent a branch (and restack it and its descendants) onto a new parent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}
		eng := pc.newEngine()
		switch {
		case moveFlags.Continue:
			return eng.Continue(ctx)
		case moveFlags.Abort:
			return eng.Abort(ctx)
		}
		if moveFlags.To == "" {
			return errors.New("--to is required")
		}

		var branch string
		build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
			if moveFlags.From != "" {
				branch, err = model.Find(moveFlags.From)
			} else {
				branch, err = currentBranchOrArg(pc.Repo, model, nil)
			}
			if err != nil {
				return nil, err
			}

			newParent := moveFlags.To
			if newParent != config.Pancake.Repository.MainBranch {
				newParent, err = model.Find(newParent)
				if err != nil {
					return nil, err
				}
			}
			return model.PlanMove(branch, newParent)
		}

		if err := eng.Run(ctx, journal.Intent{Kind: "move", Params: map[string]string{"to": moveFlags.To}}, build, false); err != nil {
			if errors.Is(err, engine.ErrNeedsResolution) {
				printf("conflict while moving %q; resolve it, `git add` the result, then run `pk move --continue`\n", branch)
			}
			return err
		}
		printf("moved %q onto %q\n", branch, moveFlags.To)
		return nil
	},
}

func init() {
	moveCmd.Flags().StringVar(&moveFlags.To, "to", "", "the new parent branch")
	moveCmd.Flags().StringVar(&moveFlags.From, "from", "", "the branch to move (default: current)")
	moveCmd.Flags().BoolVar(&moveFlags.Continue, "continue", false, "resume a move suspended by a conflict")
	moveCmd.Flags().BoolVar(&moveFlags.Abort, "abort", false, "cancel a move suspended by a conflict")
}
