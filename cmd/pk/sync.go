package main

import (
	"context"

	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/config"
	"github.com/pancake-vcs/pk/internal/engine"
	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/pancake-vcs/pk/internal/vcs"
	"github.com/spf13/cobra"
)

var syncFlags struct {
	All      bool
	FromMain bool
	Continue bool
	Abort    bool
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "restack tracked stacks onto trunk (fetching trunk first with --from-main)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}
		eng := pc.newEngine()

		switch {
		case syncFlags.Continue:
			return eng.Continue(ctx)
		case syncFlags.Abort:
			return eng.Abort(ctx)
		}

		if syncFlags.FromMain {
			if res := pc.Repo.Fetch(ctx, config.Pancake.Repository.Remote); res.Outcome != vcs.Ok {
				return errors.Errorf("failed to fetch %q: %s", config.Pancake.Repository.Remote, res.Detail)
			}
			if err := fastForwardTrunk(ctx, pc, eng.Trunk); err != nil {
				return err
			}
		}

		build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
			var roots []string
			if syncFlags.All {
				roots, err = model.Children(eng.Trunk)
				if err != nil {
					return nil, err
				}
			} else {
				cur, cerr := pc.Repo.CurrentBranch()
				if cerr != nil {
					return nil, cerr
				}
				if !model.Has(cur) {
					return nil, errors.Errorf("current branch %q is not tracked; pass --all to sync every stack", cur)
				}
				root, rerr := model.BottomOf(cur)
				if rerr != nil {
					return nil, rerr
				}
				roots = []string{root}
			}

			plan := &stackmodel.Plan{}
			for _, root := range roots {
				sub, perr := model.PlanRestack(root)
				if perr != nil {
					return nil, perr
				}
				plan.Steps = append(plan.Steps, sub.Steps...)
			}
			plan.Steps = append(plan.Steps, stackmodel.Step{Kind: stackmodel.StepCommitMeta})
			return plan, nil
		}

		if err := eng.Run(ctx, journal.Intent{Kind: "restack", Params: map[string]string{"scope": scopeLabel()}}, build, false); err != nil {
			if errors.Is(err, engine.ErrNeedsResolution) {
				printf("conflict while restacking; resolve it, `git add` the result, then run `pk sync --continue`\n")
			}
			return err
		}
		printf("synced\n")
		return nil
	},
}

// fastForwardTrunk advances the local trunk ref to match its freshly
// fetched remote-tracking branch, but only if doing so is a fast-forward
// (the local tip is an ancestor of the remote tip); otherwise it leaves
// trunk alone and restack will surface any real drift against it.
func fastForwardTrunk(ctx context.Context, pc *pancakeContext, trunk string) error {
	remoteHead, err := pc.Repo.RemoteTrackingHead(ctx, config.Pancake.Repository.Remote, trunk)
	if err != nil || remoteHead == "" {
		return nil
	}
	localHead, res := pc.Repo.ReadHead(ctx, trunk)
	if res.Outcome != vcs.Ok || localHead == remoteHead {
		return nil
	}
	isAncestor, err := pc.Repo.IsAncestor(ctx, localHead, remoteHead)
	if err != nil || !isAncestor {
		return nil
	}
	return pc.Repo.UpdateRef(ctx, trunk, remoteHead)
}

func scopeLabel() string {
	if syncFlags.All {
		return "all"
	}
	return "current"
}

func init() {
	syncCmd.Flags().BoolVar(&syncFlags.All, "all", false, "restack every tracked stack, not just the current one")
	syncCmd.Flags().BoolVar(&syncFlags.FromMain, "from-main", false, "fetch the remote and fast-forward trunk before restacking")
	syncCmd.Flags().BoolVar(&syncFlags.Continue, "continue", false, "resume a sync suspended by a conflict")
	syncCmd.Flags().BoolVar(&syncFlags.Abort, "abort", false, "cancel a sync suspended by a conflict")
}
