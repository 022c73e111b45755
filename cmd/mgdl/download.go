package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kerbaras/mgdl/pkg/services"
)

var downloadCmd = &cobra.Command{
	Use:   "download <url>",
	Short: "Download manga chapters",
	Long: `Scrape the series page at url, store it and download every page that is
not on disk yet. --chapters limits the download to a range of chapter numbers
(5, 5.., ..10, 5..10). --force downloads existing pages again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chaptersFlag, _ := cmd.Flags().GetString("chapters")
		force, _ := cmd.Flags().GetBool("force")

		opts := services.DownloadOptions{Force: force}
		if chaptersFlag != "" {
			r, err := services.ParseChapterRange(chaptersFlag)
			if err != nil {
				return err
			}
			opts.Range = r
		}

		return withRuntime(cmd, true, args[0], func(rt *runtime) error {
			summary, err := rt.controller.Download(cmd.Context(), args[0], opts)
			rt.printSummary(cmd.OutOrStdout(), summary)
			return err
		})
	},
}

func init() {
	downloadCmd.Flags().String("chapters", "", "chapter range (e.g. 5, 5.., ..10, 5..10)")
	downloadCmd.Flags().BoolP("force", "f", false, "download pages that already exist")
}
