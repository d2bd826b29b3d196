package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ojparkinson/massbalance/internal/dashboard"
	"github.com/ojparkinson/massbalance/internal/drawing"
	"github.com/ojparkinson/massbalance/internal/inference"
	"github.com/spf13/cobra"
)

var asJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <drawing>",
	Short: "Suggest profile layers, sections and scales for a drawing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		d, err := drawing.Load(path)
		if err != nil {
			return err
		}

		fileID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		result := inference.NewAnalyzer(cfg.MergeTolerance, logger).Analyze(fileID, d)

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		dashboard.RenderAnalysis(os.Stdout, result, false)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&asJSON, "json", false, "print the analysis as JSON")
}
