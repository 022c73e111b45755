package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every tracked manga",
	Long:  "Drop and recreate the library store. Downloaded pages are kept on disk.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, false, "reset", func(rt *runtime) error {
			if err := rt.controller.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Library reset.")
			return nil
		})
	},
}
