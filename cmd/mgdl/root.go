package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mgdl/pkg/services"
)

var (
	configPath string
	benchFlag  bool
	quietFlag  bool
)

var rootCmd = &cobra.Command{
	Use:           "mgdl",
	Short:         "Manga downloader and library keeper",
	Long:          "Scrape manga from a web source, download chapter pages resumably and keep a local library up to date",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/mgdl/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&benchFlag, "bench", false, "collect timings and print a benchmark report")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "only log errors and hide progress")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if kind := services.ErrorKind(err); kind != "unknown" {
			fmt.Fprintf(os.Stderr, "Error (%s): %v\n", kind, err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
