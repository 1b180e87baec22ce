// Binary pk is the pancake CLI: a thin cobra front end over the Stack
// Engine (internal/engine, internal/stackmodel, internal/meta, ...).
package main

import (
	"fmt"
	"os"
	"time"

	"emperror.dev/errors"
	"github.com/kr/text"
	"github.com/pancake-vcs/pk/internal/config"
	"github.com/pancake-vcs/pk/internal/engine"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootFlags struct {
	Debug     bool
	Directory string
}

var rootCmd = &cobra.Command{
	Use: "pk",

	SilenceErrors: true,
	SilenceUsage:  true,

	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if rootFlags.Debug {
			logrus.SetLevel(logrus.DebugLevel)
			logrus.WithField("pk_version", config.Version).Debug("enabled debug logging")
		}

		repoConfigDir := ""
		if repo, err := getRepo(cmd.Context()); err != nil {
			logrus.WithError(err).Debug("unable to load git repo (probably not inside a repo)")
		} else {
			repoConfigDir = repo.PancakeDir()
		}
		if _, err := config.Load(repoConfigDir); err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(
		&rootFlags.Debug, "debug", false,
		"enable verbose debug logging",
	)
	rootCmd.PersistentFlags().StringVarP(
		&rootFlags.Directory, "repo", "C", "",
		"directory to use for the git repository",
	)
	rootCmd.AddCommand(
		initCmd,
		branchCmd,
		branchCreateAliasCmd,
		branchRenameAliasCmd,
		branchDeleteAliasCmd,
		branchCheckoutAliasCmd,
		upCmd,
		downCmd,
		topCmd,
		bottomCmd,
		logCmd,
		syncCmd,
		restackCmd,
		commitCmd,
		amendCmd,
		moveCmd,
		submitCmd,
		prCmd,
		landCmd,
		stackCmd,
		pushCmd,
		pullCmd,
		fetchCmd,
		undoCmd,
		redoCmd,
		versionCmd,
	)
}

func main() {
	startTime := time.Now()
	err := rootCmd.Execute()
	logrus.WithField("duration", time.Since(startTime)).Debug("command exited")
	if err != nil {
		if rootFlags.Debug {
			fmt.Fprintf(os.Stderr, "error: %s\n%s\n", err, text.Indent(fmt.Sprintf("%+v", err), "\t"))
		} else {
			fmt.Fprint(os.Stderr, renderError(err))
		}
		os.Exit(engine.ExitCode(err))
	}
}
