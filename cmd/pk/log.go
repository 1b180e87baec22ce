package main

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/pancake-vcs/pk/internal/colors"
	"github.com/pancake-vcs/pk/internal/config"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/pancake-vcs/pk/internal/vcs"
	"github.com/spf13/cobra"
)

var logFlags struct {
	All   bool
	Short bool
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "show the current stack (or every stack with --all)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}
		trunk := config.Pancake.Repository.MainBranch
		model := stackmodel.Build(pc.DB.ReadTx(), trunk)

		cur, _ := pc.Repo.CurrentBranch()

		var roots []string
		if logFlags.All {
			roots, err = model.Children(trunk)
			if err != nil {
				return err
			}
		} else if cur != "" && model.Has(cur) {
			root, err := model.BottomOf(cur)
			if err != nil {
				return err
			}
			roots = []string{root}
		} else {
			printf("not currently on a tracked branch; pass --all to see every stack\n")
			return nil
		}
		sort.Strings(roots)

		for _, root := range roots {
			printTree(ctx, pc, model, root, 0, cur)
		}
		return nil
	},
}

func printTree(ctx context.Context, pc *pancakeContext, model *stackmodel.Model, name string, depth int, current string) {
	prefix := strings.Repeat("  ", depth)
	marker := "○"
	if name == current {
		marker = colors.Success("●")
	}
	line := prefix + marker + " " + name

	if !logFlags.Short {
		if head, res := pc.Repo.ReadHead(ctx, name); res.Outcome == vcs.Ok {
			line += " " + colors.Faint(vcs.ShortSha(head))
		}
		if b, ok := pc.DB.ReadTx().Branch(name); ok && b.PullRequest != nil {
			line += " " + colors.Faint("#"+strconv.FormatInt(b.PullRequest.Number, 10))
		}
	}
	printf("%s\n", line)

	children, err := model.Children(name)
	if err != nil {
		return
	}
	sorted := append([]string(nil), children...)
	sort.Strings(sorted)
	for _, c := range sorted {
		printTree(ctx, pc, model, c, depth+1, current)
	}
}

func init() {
	logCmd.Flags().BoolVar(&logFlags.All, "all", false, "show every tracked stack, not just the current one")
	logCmd.Flags().BoolVar(&logFlags.Short, "short", false, "omit commit hashes and PR numbers")
}
