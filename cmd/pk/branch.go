package main

import (
	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/config"
	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/pancake-vcs/pk/internal/vcs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// branchCmd groups the create/rename/delete/checkout verbs; each also has a
// short top-level alias (bc/br/bd/co) registered in main.go's init().
var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "create, rename, delete, or check out a tracked branch",
}

var branchCreateFlags struct {
	Parent string
}

func runBranchCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pc, err := loadPancakeContext(ctx)
	if err != nil {
		return err
	}
	eng := pc.newEngine()
	name := args[0]

	build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
		parent := branchCreateFlags.Parent
		if parent == "" {
			cur, err := pc.Repo.CurrentBranch()
			if err != nil {
				return nil, err
			}
			parent = cur
		} else if parent != eng.Trunk {
			resolved, err := model.Find(parent)
			if err != nil {
				return nil, err
			}
			parent = resolved
		}
		return model.PlanCreate(name, parent)
	}

	if err := eng.Run(ctx, journal.Intent{Kind: "create", Params: map[string]string{"branch": name}}, build, false); err != nil {
		return err
	}
	if res := pc.Repo.Checkout(ctx, name); res.Outcome != vcs.Ok {
		logrus.WithField("detail", res.Detail).Warn("created branch but failed to check it out")
	}
	printf("created branch %q\n", name)
	return nil
}

func newBranchCreateCmd(use string, aliases ...string) *cobra.Command {
	c := &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   "create a new branch stacked on the current (or given) parent",
		Args:    cobra.ExactArgs(1),
		RunE:    runBranchCreate,
	}
	c.Flags().StringVar(&branchCreateFlags.Parent, "parent", "", "parent branch (defaults to the current branch)")
	return c
}

var branchCreateCmd = newBranchCreateCmd("create <name>")
var branchCreateAliasCmd = newBranchCreateCmd("bc <name>")

func runBranchRename(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pc, err := loadPancakeContext(ctx)
	if err != nil {
		return err
	}
	eng := pc.newEngine()

	var target, newName string
	if len(args) == 2 {
		target, newName = args[0], args[1]
	} else {
		newName = args[0]
	}

	build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
		name := target
		if name == "" {
			resolved, err := currentBranchOrArg(pc.Repo, model, nil)
			if err != nil {
				return nil, err
			}
			name = resolved
		} else {
			resolved, err := model.Find(name)
			if err != nil {
				return nil, err
			}
			name = resolved
		}
		return model.PlanRename(name, newName)
	}

	if err := eng.Run(ctx, journal.Intent{Kind: "rename", Params: map[string]string{"to": newName}}, build, false); err != nil {
		return err
	}
	printf("renamed branch to %q\n", newName)
	return nil
}

func newBranchRenameCmd(use string, aliases ...string) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   "rename the current (or given) tracked branch",
		Args:    cobra.RangeArgs(1, 2),
		RunE:    runBranchRename,
	}
}

var branchRenameCmd = newBranchRenameCmd("rename <new-name>")
var branchRenameAliasCmd = newBranchRenameCmd("br <new-name>")

var branchDeleteFlags struct {
	Force bool
}

func runBranchDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pc, err := loadPancakeContext(ctx)
	if err != nil {
		return err
	}
	eng := pc.newEngine()

	var target string
	build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
		name, err := currentBranchOrArg(pc.Repo, model, args)
		if err != nil {
			return nil, err
		}
		target = name
		return model.PlanDelete(name, branchDeleteFlags.Force)
	}

	if err := eng.Run(ctx, journal.Intent{Kind: "delete"}, build, false); err != nil {
		return err
	}
	printf("deleted branch %q\n", target)
	return nil
}

func newBranchDeleteCmd(use string, aliases ...string) *cobra.Command {
	c := &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   "delete a tracked branch, reparenting its children",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runBranchDelete,
	}
	c.Flags().BoolVarP(&branchDeleteFlags.Force, "force", "f", false, "delete even if the branch has unmerged commits")
	return c
}

var branchDeleteCmd = newBranchDeleteCmd("delete [name]")
var branchDeleteAliasCmd = newBranchDeleteCmd("bd [name]")

func runBranchCheckout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pc, err := loadPancakeContext(ctx)
	if err != nil {
		return err
	}
	model := stackmodel.Build(pc.DB.ReadTx(), config.Pancake.Repository.MainBranch)
	name, err := currentBranchOrArg(pc.Repo, model, args)
	if err != nil {
		return err
	}
	if res := pc.Repo.Checkout(ctx, name); res.Outcome != vcs.Ok {
		return errors.Errorf("failed to check out %q: %s", name, res.Detail)
	}
	printf("switched to branch %q\n", name)
	return nil
}

func newBranchCheckoutCmd(use string, aliases ...string) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   "check out a tracked branch by fuzzy name",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runBranchCheckout,
	}
}

var branchCheckoutCmd = newBranchCheckoutCmd("checkout [name]")
var branchCheckoutAliasCmd = newBranchCheckoutCmd("co [name]")

func init() {
	branchCmd.AddCommand(branchCreateCmd, branchRenameCmd, branchDeleteCmd, branchCheckoutCmd)
}
