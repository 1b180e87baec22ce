package main

import (
	"github.com/spf13/cobra"
)

var undoFlags struct {
	Force bool
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "reverse the last committed structural operation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}
		eng := pc.newEngine()
		if err := eng.Undo(ctx, undoFlags.Force); err != nil {
			return err
		}
		printf("undone\n")
		return nil
	},
}

func init() {
	undoCmd.Flags().BoolVar(&undoFlags.Force, "force", false, "undo even if a touched branch was pushed with a newer head since")
}
