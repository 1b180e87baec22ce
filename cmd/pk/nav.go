package main

import (
	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/config"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/pancake-vcs/pk/internal/vcs"
	"github.com/spf13/cobra"
)

// checkoutResolved checks out the branch resolve(model) returns, reporting
// a uniform error if the navigation query itself failed (e.g. the current
// branch is not tracked).
func checkoutResolved(cmd *cobra.Command, resolve func(model *stackmodel.Model, cur string) (string, error)) error {
	ctx := cmd.Context()
	pc, err := loadPancakeContext(ctx)
	if err != nil {
		return err
	}
	model := stackmodel.Build(pc.DB.ReadTx(), config.Pancake.Repository.MainBranch)
	cur, err := pc.Repo.CurrentBranch()
	if err != nil {
		return err
	}
	target, err := resolve(model, cur)
	if err != nil {
		return err
	}
	if target == cur {
		printf("already on %q\n", cur)
		return nil
	}
	if res := pc.Repo.Checkout(ctx, target); res.Outcome != vcs.Ok {
		return errors.Errorf("failed to check out %q: %s", target, res.Detail)
	}
	printf("switched to branch %q\n", target)
	return nil
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "check out the current branch's child (top if there are multiple)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkoutResolved(cmd, func(model *stackmodel.Model, cur string) (string, error) {
			children, err := model.Children(cur)
			if err != nil {
				return "", err
			}
			if len(children) == 0 {
				return cur, nil
			}
			return children[len(children)-1], nil
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "check out the current branch's parent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkoutResolved(cmd, func(model *stackmodel.Model, cur string) (string, error) {
			if cur == model.Trunk() {
				return cur, nil
			}
			return model.Parent(cur)
		})
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "check out the top of the current stack",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkoutResolved(cmd, func(model *stackmodel.Model, cur string) (string, error) {
			if cur == model.Trunk() {
				children, err := model.Children(cur)
				if err != nil || len(children) == 0 {
					return cur, err
				}
				return model.TopOf(children[len(children)-1])
			}
			return model.TopOf(cur)
		})
	},
}

var bottomCmd = &cobra.Command{
	Use:   "bottom",
	Short: "check out the bottom (trunk-most) branch of the current stack",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkoutResolved(cmd, func(model *stackmodel.Model, cur string) (string, error) {
			if cur == model.Trunk() {
				return cur, nil
			}
			return model.BottomOf(cur)
		})
	},
}
