package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mgdl/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the mgdl configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path := configPath
		if path == "" {
			var err error
			if path, err = config.DefaultConfigPath(); err != nil {
				return err
			}
		}
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.CreateSample(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample config to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, exists, err := config.Load(configPath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		source := path
		if !exists {
			source = "defaults (" + path + " not found)"
		}
		fmt.Fprintf(out, "config:     %s\n", source)
		fmt.Fprintf(out, "manga_dir:  %s\n", cfg.MangaDir)
		fmt.Fprintf(out, "data_dir:   %s\n", cfg.DataDir)
		fmt.Fprintf(out, "base_url:   %s\n", cfg.BaseURL)
		fmt.Fprintf(out, "store:      %s (%s)\n", cfg.Store.Driver, cfg.StorePath())
		fmt.Fprintf(out, "fetch:      %d permits, %d attempts, %dms initial delay\n",
			cfg.Fetch.Concurrency, cfg.Fetch.MaxAttempts, cfg.Fetch.InitialDelayMS)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
