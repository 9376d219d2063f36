package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/epi-risk-server/internal/knowledge"
)

var knowledgeFlags struct {
	dir    string
	format string
}

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Inspect the knowledge base",
}

var knowledgeValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate knowledge tables, then print their sizes",
	Long: `Loads every table from --dir (or the built-in tables when --dir is empty)
with the same checks the server applies at start-up and on reload.`,
	RunE: runKnowledgeValidate,
}

func init() {
	f := knowledgeValidateCmd.Flags()
	f.StringVar(&knowledgeFlags.dir, "dir", "", "knowledge directory (default: built-in tables)")
	f.StringVar(&knowledgeFlags.format, "format", "json", "output format: json or yaml")
	knowledgeCmd.AddCommand(knowledgeValidateCmd)
}

func runKnowledgeValidate(cmd *cobra.Command, _ []string) error {
	var (
		tables *knowledge.Tables
		err    error
	)
	if knowledgeFlags.dir == "" {
		tables, err = knowledge.LoadEmbedded()
	} else {
		tables, err = knowledge.LoadDir(knowledgeFlags.dir)
	}
	if err != nil {
		return err
	}

	stats := tables.Stats()
	switch knowledgeFlags.format {
	case "json":
		return writeJSON(cmd.OutOrStdout(), stats)
	case "yaml":
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(stats); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", knowledgeFlags.format)
	}
}
