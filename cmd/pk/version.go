package main

import (
	"github.com/pancake-vcs/pk/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the pk version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printf("pk %s\n", config.Version)
		if latest, err := config.FetchLatestVersion(cmd.Context()); err == nil && latest != "" && semver.Compare(config.Version, latest) < 0 {
			printf("a newer version is available: %s\n", latest)
		}
		return nil
	},
}
