package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/ingest"
	"github.com/epi-risk-server/internal/service"
)

var scoreFlags struct {
	file       string
	medication string
	rxnorm     string
	scorer     string
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a variant CSV file against one medication",
	Long: `Reads a variant CSV (rsid/genotype or gene/star columns) and prints the
risk assessment as JSON. Use --file=- to read from stdin.`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.StringVarP(&scoreFlags.file, "file", "f", "", "variant CSV file, or - for stdin (required)")
	f.StringVarP(&scoreFlags.medication, "medication", "m", "", "medication name")
	f.StringVar(&scoreFlags.rxnorm, "rxnorm", "", "RxNorm code; takes precedence over --medication")
	f.StringVar(&scoreFlags.scorer, "scorer", "", "rules or ml (default from configuration)")
	_ = scoreCmd.MarkFlagRequired("file")
}

func runScore(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap(bootOptions{stderrLogs: true})
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := readRows(cmd.InOrStdin(), scoreFlags.file)
	if err != nil {
		return err
	}

	assessment, err := a.risk.Evaluate(cmd.Context(), service.EvaluateRequest{
		Rows:           rows,
		MedicationName: scoreFlags.medication,
		MedicationCode: scoreFlags.rxnorm,
		Scorer:         domain.ScorerKind(scoreFlags.scorer),
	})
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), assessment)
}

func readRows(stdin io.Reader, path string) ([]domain.RawVariantRow, error) {
	if path == "-" {
		return ingest.ReadCSV(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open variant file: %w", err)
	}
	defer f.Close()
	rows, err := ingest.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
