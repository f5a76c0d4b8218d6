package main

import (
	"os"

	"github.com/joacominatel/sqlgate/internal/config"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "sqlgate",
	Short: "Read-only SQL gateway for PostgreSQL",
	Long: `sqlgate exposes a PostgreSQL database over HTTP/JSON: catalog metadata,
admission-gated query execution and a health check. The console command is a
terminal client for a running gateway.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"Path to configuration file (default ~/.sqlgate/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "",
		"Path to a dotenv file (default .env)")

	rootCmd.AddCommand(serveCmd, consoleCmd, passwordCmd, versionCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.LoadOptions{ConfigFile: configFile, EnvFile: envFile})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
