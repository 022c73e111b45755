package cmd

import (
	"github.com/spf13/cobra"
)

const allWorks = "all"

var updateCmd = &cobra.Command{
	Use:   "update <slug|all>",
	Short: "Download new chapters of tracked manga",
	Long: `Re-scrape a stored work and download the chapters that have no local
directory yet. "all" updates every ongoing work, forgetting those whose
directory was removed. Missing pages inside existing chapters are left to
consolidate.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]
		return withRuntime(cmd, true, target, func(rt *runtime) error {
			if target == allWorks {
				return rt.controller.UpdateAll(cmd.Context())
			}
			summary, err := rt.controller.Update(cmd.Context(), target)
			rt.printSummary(cmd.OutOrStdout(), summary)
			return err
		})
	},
}

var consolidateCmd = &cobra.Command{
	Use:   "consolidate <slug|all>",
	Short: "Backfill missing pages of downloaded manga",
	Long: `Re-scrape a stored work and download every page missing from its chapter
directories. "all" consolidates every stored work that has a local directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]
		return withRuntime(cmd, true, target, func(rt *runtime) error {
			if target == allWorks {
				return rt.controller.ConsolidateAll(cmd.Context())
			}
			summary, err := rt.controller.Consolidate(cmd.Context(), target)
			rt.printSummary(cmd.OutOrStdout(), summary)
			return err
		})
	},
}
