package main

import (
	"fmt"
	"os"

	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	pkgconfig "github.com/goran-ethernal/BountyIndexor/pkg/config"
	"github.com/spf13/cobra"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║         BountyIndexor v%s              ║
║   Bounty Events & Worker Reputation       ║
╚═══════════════════════════════════════════╝
`
)

var (
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bountyindexor",
	Short: "BountyIndexor - bounty event indexer and reputation service",
	Long: `BountyIndexor follows the bounty contract and its payout vault, aggregates
bounties, payouts and per-worker statistics into SQLite and serves worker
reputation scores over an HTTP API.`,
	Version:      version,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("BountyIndexor v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.AddCommand(runCmd, statusCmd, resetCmd, schemaCmd, versionCmd)
}

// componentLogger returns a logger for component honouring the optional logging section.
func componentLogger(cfg *pkgconfig.Config, component string) *logger.Logger {
	if cfg.Logging == nil {
		return logger.NewComponentLoggerFromConfig(component, nil)
	}
	return logger.NewComponentLoggerFromConfig(component, cfg.Logging)
}
