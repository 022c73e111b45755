package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a manga to your library",
	Long:  "Scrape the series page at url and store its metadata without downloading pages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, true, args[0], func(rt *runtime) error {
			work, chapters, err := rt.controller.Add(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rt.settle()
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s as %s (%s, %d chapters)\n", work.Name, work.Slug, work.Status, len(chapters))
			return nil
		})
	},
}
