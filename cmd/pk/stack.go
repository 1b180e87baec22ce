package main

import (
	"context"

	"github.com/pancake-vcs/pk/internal/config"
	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/reconcile"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/spf13/cobra"
)

var stackFlags struct {
	Repair bool
}

var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "report drift between tracked metadata and the repository (--repair to fix it)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}

		tx := pc.DB.ReadTx()
		localBranches, err := pc.Repo.ListLocalBranches(ctx)
		if err != nil {
			return err
		}
		report, err := pc.Reconciler.Check(ctx, tx, pc.Journal, metadataFileExists(pc.Repo), localBranches, config.Pancake.Stack.Prefix)
		if err != nil {
			return err
		}
		if len(report.Findings) == 0 {
			printf("no drift detected\n")
			return nil
		}
		for _, f := range report.Findings {
			printf("[%s] %s: %s\n", f.Rule, f.Branch, f.Detail)
		}

		if !stackFlags.Repair {
			printf("run `pk stack --repair` to reconcile\n")
			return nil
		}
		return repairDrift(ctx, pc, report)
	},
}

// repairDrift applies the Reconciler's findings through the Operation
// Engine, never by splicing the Metadata Store directly, so every repair
// mutation still runs under validatePostState: R1 orphans are handled as
// a real PlanDelete (spec.md §4.4's "require `branch delete` or manual
// recovery" policy) that reparents and restacks b's children before
// dropping b, rather than leaving them pointing at a name no longer in
// metadata; R3 divergent heads are accepted (trust local, per spec.md R3
// policy) by running a PlanRestack for each drifted branch, which rebases
// it and its descendants and records their fresh heads and anchors.
func repairDrift(ctx context.Context, pc *pancakeContext, report *reconcile.DriftReport) error {
	eng := pc.newEngine()
	var toOrphan []string
	var toRestack []string
	for _, f := range report.Findings {
		switch f.Rule {
		case reconcile.RuleMissingRef:
			toOrphan = append(toOrphan, f.Branch)
		case reconcile.RuleDivergentHead:
			toRestack = append(toRestack, f.Branch)
		}
	}

	if len(toOrphan) > 0 {
		build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
			// Mirrors land --all's incremental composition: deleting one
			// orphan can reparent another orphan's children, so later
			// PlanDelete calls must see each prior deletion's effect.
			working := model.Clone()
			plan := &stackmodel.Plan{}
			for _, name := range toOrphan {
				if !working.Has(name) {
					continue
				}
				sub, err := working.PlanDelete(name, true)
				if err != nil {
					return nil, err
				}
				effects := sub.Steps[:len(sub.Steps)-1] // drop trailing commit-metadata
				if err := working.ApplyMetadataSteps(effects); err != nil {
					return nil, err
				}
				plan.Steps = append(plan.Steps, effects...)
			}
			plan.Steps = append(plan.Steps, stackmodel.Step{Kind: stackmodel.StepCommitMeta})
			return plan, nil
		}
		if err := eng.Run(ctx, journal.Intent{Kind: "delete", Params: map[string]string{"reason": "repair"}}, build, true); err != nil {
			return err
		}
		printf("untracked %d orphaned branch(es)\n", len(toOrphan))
	}

	if len(toRestack) == 0 {
		return nil
	}
	build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
		plan := &stackmodel.Plan{}
		for _, name := range toRestack {
			if !model.Has(name) {
				continue
			}
			sub, err := model.PlanRestack(name)
			if err != nil {
				return nil, err
			}
			plan.Steps = append(plan.Steps, sub.Steps...)
		}
		plan.Steps = append(plan.Steps, stackmodel.Step{Kind: stackmodel.StepCommitMeta})
		return plan, nil
	}
	if err := eng.Run(ctx, journal.Intent{Kind: "restack", Params: map[string]string{"reason": "repair"}}, build, true); err != nil {
		return err
	}
	printf("restacked %d drifted branch(es)\n", len(toRestack))
	return nil
}

func init() {
	stackCmd.Flags().BoolVar(&stackFlags.Repair, "repair", false, "apply the Reconciler's repair plan instead of only reporting drift")
}
