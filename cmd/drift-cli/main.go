package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/common"
)

var (
	serverURL    string
	outputFormat string
	logLevel     string

	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "drift-cli",
	Short: "Discover places that match a vibe",
	Long: `drift-cli sends a free-text vibe and a location to a running Drift server,
prints progress as the stream arrives and finishes with the places ranked
by how well their photos match.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config := common.NewDefaultConfig()
		config.Logging.Level = logLevel
		config.Logging.Output = []string{"stdout"}
		logger = common.InitLogger(config, "drift-cli")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("DRIFT_SERVER_URL", "http://localhost:8085"), "Drift server base URL")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
