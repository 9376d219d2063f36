// epirisk scores pharmacogenomic adverse drug response risk.
//
// Usage:
//
//	epirisk serve [--config=<file>]
//	epirisk mcp [--config=<file>]
//	epirisk score --file=<csv> --medication=<name> [--rxnorm=<code>] [--scorer=rules|ml]
//	epirisk knowledge validate [--dir=<path>] [--format=json|yaml]
//	epirisk train (--outcomes=<export.json> | --from-store) [--out=<dir>] [--rounds=N] [--learning-rate=F]
//	epirisk setup init [--path=<file>] [--force]
//	epirisk setup mcp-client [--client-config=<file>] [--name=<name>]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var configFile string

var rootCmd = &cobra.Command{
	Use:   "epirisk",
	Short: "Pharmacogenomic adverse drug response risk scoring",
	Long: "epirisk maps a patient's genetic variants to functional tags, keeps the ones\n" +
		"on a medication's metabolic pathway and scores the risk of an adverse response.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: config.yaml in ., ./config or /etc/epi-risk)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(knowledgeCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
