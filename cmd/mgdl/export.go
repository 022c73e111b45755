package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <slug>",
	Short: "Package a downloaded manga as EPUB",
	Long:  "Compile the downloaded chapters of a stored work into a single EPUB file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, _ := cmd.Flags().GetString("output")
		if outDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			outDir = wd
		}
		return withRuntime(cmd, false, args[0], func(rt *runtime) error {
			path, err := rt.controller.Export(cmd.Context(), args[0], outDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "EPUB created: %s\n", path)
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "output directory (default current directory)")
}
