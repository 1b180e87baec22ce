package main

import (
	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/forge"
	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/spf13/cobra"
)

var landFlags struct {
	Squash bool
	Merge  bool
	Rebase bool
	All    bool
}

var landCmd = &cobra.Command{
	Use:   "land [branch]",
	Short: "merge a branch's pull request, then reparent and restack its children",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}
		if pc.Forge == nil {
			return errors.New("no forge configured; set [forge] api_token in .pancake/config")
		}
		eng := pc.newEngine()
		method := string(landMergeMethod())

		var landed []string
		build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
			var targets []string
			if landFlags.All {
				cur, cerr := currentBranchOrArg(pc.Repo, model, nil)
				if cerr != nil {
					return nil, cerr
				}
				root, rerr := model.BottomOf(cur)
				if rerr != nil {
					return nil, rerr
				}
				targets = append([]string{root}, mustDescendants(model, root)...)
			} else {
				name, nerr := currentBranchOrArg(pc.Repo, model, args)
				if nerr != nil {
					return nil, nerr
				}
				targets = []string{name}
			}

			// Landing the whole stack (--all) processes root to leaf; each
			// subsequent PlanLand must see the reparenting the previous
			// land already did, so compile against a working clone that's
			// updated in lockstep rather than the original snapshot.
			working := model.Clone()
			plan := &stackmodel.Plan{}
			for _, name := range targets {
				sub, perr := working.PlanLand(name, method)
				if perr != nil {
					return nil, perr
				}
				effects := sub.Steps[:len(sub.Steps)-1] // drop trailing commit-metadata
				if err := working.ApplyMetadataSteps(effects); err != nil {
					return nil, err
				}
				plan.Steps = append(plan.Steps, effects...)
				landed = append(landed, name)
			}
			plan.Steps = append(plan.Steps, stackmodel.Step{Kind: stackmodel.StepCommitMeta})
			return plan, nil
		}

		if err := eng.Run(ctx, journal.Intent{Kind: "land", Params: map[string]string{"method": method}}, build, false); err != nil {
			return err
		}
		for _, name := range landed {
			printf("landed %q\n", name)
		}
		return nil
	},
}

func landMergeMethod() forge.MergeMethod {
	switch {
	case landFlags.Squash:
		return forge.MergeMethodSquash
	case landFlags.Rebase:
		return forge.MergeMethodRebase
	default:
		return forge.MergeMethodMerge
	}
}

func init() {
	landCmd.Flags().BoolVar(&landFlags.Squash, "squash", false, "squash-merge the pull request")
	landCmd.Flags().BoolVar(&landFlags.Merge, "merge", false, "merge-commit the pull request (default)")
	landCmd.Flags().BoolVar(&landFlags.Rebase, "rebase", false, "rebase-merge the pull request")
	landCmd.Flags().BoolVar(&landFlags.All, "all", false, "land every branch in the current stack, bottom to top")
}
