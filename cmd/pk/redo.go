package main

import (
	"github.com/spf13/cobra"
)

var redoCmd = &cobra.Command{
	Use:   "redo",
	Short: "re-apply the last operation reversed by undo",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pc, err := loadPancakeContext(ctx)
		if err != nil {
			return err
		}
		eng := pc.newEngine()
		if err := eng.Redo(ctx); err != nil {
			return err
		}
		printf("redone\n")
		return nil
	},
}
