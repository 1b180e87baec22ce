package main

import (
	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/engine"
	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/spf13/cobra"
)

var pushFlags struct {
	All  bool
	NoPR bool
}

var pushCmd = &cobra.Command{
	Use:   "push [branch]",
	Short: "force-push-with-lease a branch (default: current) to its remote",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}
		eng := pc.newEngine()

		var scope []string
		build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
			name, nerr := currentBranchOrArg(pc.Repo, model, args)
			if nerr != nil {
				return nil, nerr
			}
			if pushFlags.All {
				root, rerr := model.BottomOf(name)
				if rerr != nil {
					return nil, rerr
				}
				scope = append([]string{root}, mustDescendants(model, root)...)
			} else {
				scope = []string{name}
			}

			plan := &stackmodel.Plan{}
			for _, b := range scope {
				plan.Steps = append(plan.Steps, stackmodel.Step{Kind: stackmodel.StepPush, Branch: b})
				if pushFlags.NoPR {
					continue
				}
				if bb, ok := pc.DB.ReadTx().Branch(b); ok && bb.PullRequest != nil {
					plan.Steps = append(plan.Steps, stackmodel.Step{Kind: stackmodel.StepForgeUpdatePR, Branch: b})
				}
			}
			plan.Steps = append(plan.Steps, stackmodel.Step{Kind: stackmodel.StepCommitMeta})
			return plan, nil
		}

		if err := eng.Run(ctx, journal.Intent{Kind: "push"}, build, false); err != nil {
			if errors.Is(err, engine.ErrRemoteDiverged) {
				printf("remote has moved since last push; fetch and retry\n")
			}
			return err
		}
		printf("pushed %d branch(es)\n", len(scope))
		return nil
	},
}

func init() {
	pushCmd.Flags().BoolVar(&pushFlags.All, "all", false, "push every branch in the current stack")
	pushCmd.Flags().BoolVar(&pushFlags.NoPR, "no-pr", false, "don't sync PR base after pushing")
}
