package main

import (
	"context"
	"fmt"

	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/config"
	"github.com/pancake-vcs/pk/internal/editor"
	"github.com/pancake-vcs/pk/internal/engine"
	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/pancake-vcs/pk/internal/stackmodel"
	"github.com/spf13/cobra"
)

var submitFlags struct {
	All    bool
	From   string
	Draft  bool
	NoEdit bool
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "push tracked branches and open or update their pull requests",
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
		eng := pc.newEngine()

		preview := stackmodel.Build(pc.DB.ReadTx(), config.Pancake.Repository.MainBranch)
		scope, err := submitScope(pc, preview)
		if err != nil {
			return err
		}
		titles, err := editTitles(ctx, pc, scope)
		if err != nil {
			return err
		}

		build := func(model *stackmodel.Model) (*stackmodel.Plan, error) {
			plan := &stackmodel.Plan{}
			for _, name := range scope {
				plan.Steps = append(plan.Steps, stackmodel.Step{Kind: stackmodel.StepPush, Branch: name})

				hasPR := false
				if b, ok := pc.DB.ReadTx().Branch(name); ok {
					hasPR = b.PullRequest != nil
				}
				if hasPR {
					plan.Steps = append(plan.Steps, stackmodel.Step{Kind: stackmodel.StepForgeUpdatePR, Branch: name})
				} else {
					plan.Steps = append(plan.Steps, stackmodel.Step{
						Kind:   stackmodel.StepForgeCreatePR,
						Branch: name,
						Draft:  submitFlags.Draft,
						Title:  titles[name],
					})
				}
			}
			plan.Steps = append(plan.Steps, stackmodel.Step{Kind: stackmodel.StepCommitMeta})
			return plan, nil
		}

		if err := eng.Run(ctx, journal.Intent{Kind: "submit"}, build, false); err != nil {
			if errors.Is(err, engine.ErrRemoteDiverged) {
				printf("remote has moved since last push; fetch and retry\n")
			}
			return err
		}
		printf("submitted %d branch(es)\n", len(scope))
		return nil
	},
}

// submitScope resolves which tracked branches a submit invocation covers:
// --from starts at a given branch and includes its descendants; --all
// covers the current branch's whole stack (root to every leaf); with
// neither, only the current branch is submitted.
func submitScope(pc *pancakeContext, model *stackmodel.Model) ([]string, error) {
	switch {
	case submitFlags.From != "":
		root, err := model.Find(submitFlags.From)
		if err != nil {
			return nil, err
		}
		return append([]string{root}, mustDescendants(model, root)...), nil

	case submitFlags.All:
		cur, err := currentBranchOrArg(pc.Repo, model, nil)
		if err != nil {
			return nil, err
		}
		root, err := model.BottomOf(cur)
		if err != nil {
			return nil, err
		}
		return append([]string{root}, mustDescendants(model, root)...), nil

	default:
		cur, err := currentBranchOrArg(pc.Repo, model, nil)
		if err != nil {
			return nil, err
		}
		return []string{cur}, nil
	}
}

// editTitles opens the user's editor on a default "<branch>" title for
// each branch in scope that doesn't already have a PR, unless --no-edit
// was passed. Only the first line of the edited text is kept, as the
// title. Branches with an existing PR are skipped entirely: submit only
// edits the title of a *new* PR.
func editTitles(ctx context.Context, pc *pancakeContext, scope []string) (map[string]string, error) {
	titles := make(map[string]string, len(scope))
	if submitFlags.NoEdit {
		return titles, nil
	}
	for _, name := range scope {
		if b, ok := pc.DB.ReadTx().Branch(name); ok && b.PullRequest != nil {
			continue
		}
		edited, err := editor.Launch(ctx, pc.Repo, editor.Config{
			Text:          fmt.Sprintf("%s\n%s This is the title for the pull request of branch %q. Lines starting with '%s' are ignored.\n", name, "#", name, "#"),
			CommentPrefix: "#",
		})
		if err != nil {
			return nil, errors.WrapIff(err, "failed to edit PR title for %q", name)
		}
		if trimmed := firstLine(edited); trimmed != "" {
			titles[name] = trimmed
		}
	}
	return titles, nil
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}

func mustDescendants(model *stackmodel.Model, root string) []string {
	descendants, err := model.Descendants(root)
	if err != nil {
		return nil
	}
	return descendants
}

func init() {
	submitCmd.Flags().BoolVar(&submitFlags.All, "all", false, "submit every branch in the current stack, not just the current branch")
	submitCmd.Flags().StringVar(&submitFlags.From, "from", "", "submit this branch and its descendants")
	submitCmd.Flags().BoolVar(&submitFlags.Draft, "draft", false, "open new pull requests as drafts")
	submitCmd.Flags().BoolVar(&submitFlags.NoEdit, "no-edit", false, "don't prompt to edit the PR title before submitting")
}
