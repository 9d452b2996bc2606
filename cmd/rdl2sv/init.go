package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/rdl2sv/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create an rdl2sv.json configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := "rdl2sv.json"
		if len(args) == 1 {
			configPath = args[0]
		}

		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(configPath); err == nil && !force {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", configPath)
		}

		cfg := config.DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return fmt.Errorf("creating config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created %s\n", configPath)
		fmt.Fprintln(out, "\nEdit this file to configure:")
		fmt.Fprintln(out, "  - Bus protocol and address width")
		fmt.Fprintln(out, "  - Output directory and indentation")
		fmt.Fprintln(out, "  - Policy checks and SQLite export")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolP("force", "f", false, "overwrite an existing file")
}
