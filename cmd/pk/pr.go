package main

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"emperror.dev/errors"
	"github.com/dustin/go-humanize"
	"github.com/pancake-vcs/pk/internal/colors"
	"github.com/pancake-vcs/pk/internal/config"
	"github.com/pancake-vcs/pk/internal/forge"
	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/spf13/cobra"
)

const prStatusWorkers = 4

var prCmd = &cobra.Command{
	Use:   "pr",
	Short: "inspect pull requests bound to tracked branches",
}

var prStatusCmd = &cobra.Command{
	Use:   "status [branch]",
	Short: "show review/CI status for a branch's bound pull request",
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
		model := stackmodel.Build(pc.DB.ReadTx(), config.Pancake.Repository.MainBranch)
		name, err := currentBranchOrArg(pc.Repo, model, args)
		if err != nil {
			return err
		}
		b, ok := pc.DB.ReadTx().Branch(name)
		if !ok || b.PullRequest == nil {
			printf("%q has no pull request\n", name)
			return nil
		}
		status, err := pc.Forge.GetPRStatus(ctx, b.PullRequest.ID)
		if err != nil {
			return err
		}
		printf("%s #%s %s\n", name, strconv.FormatInt(b.PullRequest.Number, 10), b.PullRequest.Permalink)
		printf("  review: %s\n", status.Review)
		printf("  ci:     %s\n", status.CI)
		if status.Merged {
			printf("  %s\n", colors.Success("merged"))
		} else if status.Closed {
			printf("  %s\n", colors.Failure("closed"))
		}
		if !b.PullRequest.FetchedAt.IsZero() {
			printf("  last synced %s\n", humanize.Time(b.PullRequest.FetchedAt))
		}
		return nil
	},
}

var prListCmd = &cobra.Command{
	Use:   "list",
	Short: "list every pull request bound to a tracked branch, with status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}
		if pc.Forge == nil {
			return errors.New("no forge configured; set [forge] api_token in .pancake/config")
		}

		all := pc.DB.ReadTx().AllBranches()
		var bound []string
		for name, b := range all {
			if b.PullRequest != nil {
				bound = append(bound, name)
			}
		}
		sort.Strings(bound)

		statuses := fetchStatusesBounded(ctx, pc.Forge, all, bound, prStatusWorkers)
		for _, name := range bound {
			b := all[name]
			line := "#" + strconv.FormatInt(b.PullRequest.Number, 10) + " " + name
			if st, ok := statuses[name]; ok {
				line += " review=" + st.Review + " ci=" + st.CI
			}
			if !b.PullRequest.FetchedAt.IsZero() {
				line += " (synced " + humanize.Time(b.PullRequest.FetchedAt) + ")"
			}
			printf("%s\n", line)
		}
		return nil
	},
}

// fetchStatusesBounded fans GetPRStatus calls out across a bounded worker
// pool and publishes results only through the returned map, built after
// every worker has finished — the only form of parallelism the Operation
// Engine allows (spec.md §5): read-only, and never observed mid-flight by
// the rendering code.
func fetchStatusesBounded(ctx context.Context, bind forge.Binding, all map[string]meta.Branch, names []string, workers int) map[string]forge.Status {
	type result struct {
		name   string
		status forge.Status
	}
	jobs := make(chan string)
	results := make(chan result, len(names))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				st, err := bind.GetPRStatus(ctx, all[name].PullRequest.ID)
				if err != nil {
					continue
				}
				results <- result{name: name, status: st}
			}
		}()
	}
	go func() {
		for _, name := range names {
			jobs <- name
		}
		close(jobs)
	}()
	wg.Wait()
	close(results)

	out := make(map[string]forge.Status, len(names))
	for r := range results {
		out[r.name] = r.status
	}
	return out
}

func init() {
	prCmd.AddCommand(prStatusCmd, prListCmd)
}
