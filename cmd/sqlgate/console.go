package main

import (
	"fmt"

	"github.com/joacominatel/sqlgate/internal/tui"
	"github.com/spf13/cobra"
)

var consoleURL string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open the terminal console for a running gateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if err := tui.Run(cfg, tui.Options{URL: consoleURL, ConfigPath: configFile}); err != nil {
			return fmt.Errorf("console: %w", err)
		}
		return nil
	},
}

func init() {
	consoleCmd.Flags().StringVar(&consoleURL, "url", "",
		"Gateway URL to connect to (e.g. http://localhost:3000)")
}
